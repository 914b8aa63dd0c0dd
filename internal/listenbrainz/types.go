// Package listenbrainz submits listens to ListenBrainz.
package listenbrainz

// Listen types accepted by submit-listens.
const (
	listenTypePlayingNow = "playing_now"
	listenTypeSingle     = "single"
)

type submission struct {
	ListenType string   `json:"listen_type"`
	Payload    []listen `json:"payload"`
}

type listen struct {
	ListenedAt    int64         `json:"listened_at,omitempty"`
	TrackMetadata trackMetadata `json:"track_metadata"`
}

type trackMetadata struct {
	ArtistName     string         `json:"artist_name"`
	TrackName      string         `json:"track_name"`
	ReleaseName    string         `json:"release_name,omitempty"`
	AdditionalInfo additionalInfo `json:"additional_info"`
}

type additionalInfo struct {
	SubmissionClient        string `json:"submission_client"`
	SubmissionClientVersion string `json:"submission_client_version"`
	MusicServiceName        string `json:"music_service_name,omitempty"`
	OriginURL               string `json:"origin_url,omitempty"`
	ReleaseArtistName       string `json:"release_artist_name,omitempty"`
	RecordingMBID           string `json:"recording_mbid,omitempty"`
	DurationMs              int64  `json:"duration_ms,omitempty"`
}

type response struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type validateTokenResponse struct {
	Valid    bool   `json:"valid"`
	UserName string `json:"user_name"`
	Message  string `json:"message"`
}
