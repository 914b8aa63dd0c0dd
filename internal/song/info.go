package song

import "time"

// Info is an immutable view of a song handed to services, the context store
// and API clients.
type Info struct {
	Artist         string    `json:"artist"`
	Track          string    `json:"track"`
	Album          string    `json:"album,omitempty"`
	AlbumArtist    string    `json:"albumArtist,omitempty"`
	Duration       float64   `json:"duration,omitempty"`
	UniqueID       string    `json:"uniqueID,omitempty"`
	TrackArt       string    `json:"trackArt,omitempty"`
	OriginURL      string    `json:"originUrl,omitempty"`
	RecordingMBID  string    `json:"recordingMbid,omitempty"`
	ConnectorID    string    `json:"connectorId"`
	ConnectorLabel string    `json:"connectorLabel,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	CurrentTime    float64   `json:"currentTime"`
	IsPlaying      bool      `json:"isPlaying"`
	UserPlayCount  int       `json:"userPlayCount,omitempty"`
	IsLoved        *bool     `json:"isLoved,omitempty"`
	Fingerprint    string    `json:"fingerprint"`

	IsValid           bool `json:"isValid"`
	IsScrobbled       bool `json:"isScrobbled"`
	IsSkipped         bool `json:"isSkipped"`
	IsReplaying       bool `json:"isReplaying"`
	IsCorrectedByUser bool `json:"isCorrectedByUser"`
}

// DurationValue returns the duration as a time.Duration.
func (i Info) DurationValue() time.Duration {
	return seconds(i.Duration)
}

// Info builds an immutable view of the song.
func (s *Song) Info() Info {
	info := Info{
		Artist:            s.Artist(),
		Track:             s.Track(),
		Album:             s.Album(),
		AlbumArtist:       s.AlbumArtist(),
		Duration:          s.Duration().Seconds(),
		UniqueID:          s.Parsed.UniqueID,
		TrackArt:          s.TrackArt(),
		OriginURL:         s.Parsed.OriginURL,
		RecordingMBID:     s.Metadata.RecordingMBID,
		ConnectorID:       s.ConnectorID,
		ConnectorLabel:    s.ConnectorLabel,
		StartedAt:         s.StartTimestamp,
		CurrentTime:       s.Parsed.CurrentTime,
		IsPlaying:         s.Parsed.IsPlaying,
		UserPlayCount:     s.Metadata.UserPlayCount,
		Fingerprint:       s.Fingerprint(),
		IsValid:           s.Flags.IsValid,
		IsScrobbled:       s.Flags.IsScrobbled,
		IsSkipped:         s.Flags.IsSkipped,
		IsReplaying:       s.Flags.IsReplaying,
		IsCorrectedByUser: s.Flags.IsCorrectedByUser,
	}
	if s.Flags.IsLovedInService != nil {
		loved := *s.Flags.IsLovedInService
		info.IsLoved = &loved
	}
	return info
}
