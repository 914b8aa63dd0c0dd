package pipeline

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/llehouerou/scrobbled/internal/song"
)

var (
	// Bracketed marketing suffixes: (Official Video), [HD], (Lyric Video)...
	bracketNoise = regexp.MustCompile(`(?i)\s*[\(\[][^\)\]]*\b(official|video|audio|lyrics?|visuali[sz]er|hd|hq|4k|explicit|clean|full album|mv|m/v)\b[^\)\]]*[\)\]]`)
	// Remaster suffixes: "- Remastered 2011", "(2009 Remaster)".
	remasterNoise = regexp.MustCompile(`(?i)\s*(-\s*(\d{4}\s*)?remaster(ed)?(\s*\d{4})?(\s*version)?|[\(\[](\d{4}\s*)?remaster(ed)?(\s*\d{4})?(\s*version)?[\)\]])\s*$`)
	// Trailing separators left behind by stripping.
	trailingSeparators = regexp.MustCompile(`[\s\-–—|:]+$`)
	leadingSeparators  = regexp.MustCompile(`^[\s\-–—|:]+`)
	// Auto-generated channel names such as "Artist - Topic" or "ArtistVEVO".
	topicSuffix = regexp.MustCompile(`(?i)\s*-\s*topic$`)
	vevoSuffix  = regexp.MustCompile(`(?i)vevo$`)
	whitespace  = regexp.MustCompile(`\s+`)
	// "Artist - Track" titles reported without a separate artist.
	titleSeparator = regexp.MustCompile(`\s+[-–—]\s+`)
)

// Normalize cleans up the raw fields of a song.
type Normalize struct{}

// Name implements Stage.
func (Normalize) Name() string { return "normalize" }

// Process implements Stage.
func (Normalize) Process(_ context.Context, s *song.Song) error {
	artist := CleanText(s.Parsed.Artist)
	track := CleanText(s.Parsed.Track)

	if artist == "" && track != "" {
		artist, track = SplitTitle(track)
	}

	s.Processed = song.Fields{
		Artist:      CleanArtist(artist),
		Track:       CleanTitle(track),
		Album:       CleanTitle(CleanText(s.Parsed.Album)),
		AlbumArtist: CleanArtist(CleanText(s.Parsed.AlbumArtist)),
		Duration:    s.Parsed.DurationValue(),
	}
	return nil
}

// CleanText applies Unicode NFC normalization, trims and collapses
// whitespace.
func CleanText(v string) string {
	v = norm.NFC.String(v)
	v = whitespace.ReplaceAllString(v, " ")
	return strings.TrimSpace(v)
}

// CleanTitle removes marketing noise from a track or album title. A title
// made only of noise is returned unchanged.
func CleanTitle(v string) string {
	out := bracketNoise.ReplaceAllString(v, "")
	out = remasterNoise.ReplaceAllString(out, "")
	out = trailingSeparators.ReplaceAllString(out, "")
	out = strings.TrimSpace(out)
	if out == "" {
		return v
	}
	return out
}

// CleanArtist removes auto-generated channel decorations from an artist.
func CleanArtist(v string) string {
	out := topicSuffix.ReplaceAllString(v, "")
	if out != v {
		return strings.TrimSpace(out)
	}
	out = vevoSuffix.ReplaceAllString(v, "")
	if out == "" {
		return v
	}
	return strings.TrimSpace(out)
}

// SplitTitle splits "Artist - Track" into its parts. When the title has no
// separator the artist is empty.
func SplitTitle(title string) (artist, track string) {
	loc := titleSeparator.FindStringIndex(title)
	if loc == nil {
		return "", title
	}
	artist = strings.TrimSpace(title[:loc[0]])
	track = leadingSeparators.ReplaceAllString(title[loc[1]:], "")
	if artist == "" || track == "" {
		return "", title
	}
	return artist, strings.TrimSpace(track)
}
