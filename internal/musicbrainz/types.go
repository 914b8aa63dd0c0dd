// Package musicbrainz looks recordings up on MusicBrainz and finds their
// cover art on the Cover Art Archive.
package musicbrainz

// Recording is a MusicBrainz recording matched for a song.
type Recording struct {
	ID       string
	Title    string
	Artist   string // Extracted from artist-credit
	LengthMs int
	Score    int // Search relevance score (0-100)
	Release  *Release
}

// Release is the release a recording was picked from.
type Release struct {
	ID          string
	Title       string
	Artist      string
	ReleaseType string // album, single, ep, etc.
	Status      string // official, promotional, bootleg
}

// recordingSearchResponse is the raw response from recording search.
type recordingSearchResponse struct {
	Recordings []recordingResult `json:"recordings"`
}

// recordingResult is a single recording from search results.
type recordingResult struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Score        int             `json:"score"`
	Length       int             `json:"length"`
	ArtistCredit []artistCredit  `json:"artist-credit"`
	Releases     []releaseResult `json:"releases"`
}

// releaseResult is a release attached to a recording.
type releaseResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ReleaseGroup *releaseGroup  `json:"release-group"`
}

// artistCredit represents an artist contribution.
type artistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		SortName string `json:"sort-name"`
	} `json:"artist"`
	JoinPhrase string `json:"joinphrase"`
}

// releaseGroup contains release type info.
type releaseGroup struct {
	ID          string `json:"id"`
	PrimaryType string `json:"primary-type"`
}
