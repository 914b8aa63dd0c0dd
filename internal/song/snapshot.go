// Package song holds the song record tracked by a controller and the
// playback snapshots it is built from.
package song

import "time"

// Snapshot is a point-in-time read of playback fields reported by an
// observer. Durations are in seconds, as reported on the wire.
type Snapshot struct {
	Artist      string  `json:"artist"`
	Track       string  `json:"track"`
	Album       string  `json:"album"`
	AlbumArtist string  `json:"albumArtist"`
	UniqueID    string  `json:"uniqueID"`
	Duration    float64 `json:"duration"`
	CurrentTime float64 `json:"currentTime"`
	IsPlaying   bool    `json:"isPlaying"`
	TrackArt    string  `json:"trackArt"`
	IsPodcast   bool    `json:"isPodcast"`
	OriginURL   string  `json:"originUrl"`
}

// IsEmpty reports whether the snapshot carries too little information to
// identify a song.
func (s Snapshot) IsEmpty() bool {
	return (s.Artist == "" || s.Track == "") && s.UniqueID == "" && s.Duration <= 0
}

// DurationValue returns the snapshot duration, or 0 if unknown.
func (s Snapshot) DurationValue() time.Duration {
	return seconds(s.Duration)
}

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
