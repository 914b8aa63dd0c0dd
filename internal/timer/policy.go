package timer

import "time"

const (
	// DefaultScrobbleDelay is used when the track duration is unknown.
	DefaultScrobbleDelay = 30 * time.Second
	// MinTrackDuration is the shortest track that can be scrobbled.
	MinTrackDuration = 30 * time.Second
	// MaxScrobbleDelay caps the listening time required for long tracks.
	MaxScrobbleDelay = 4 * time.Minute

	minPercent = 10
	maxPercent = 100
)

// ScrobbleDelay returns how long a track must be played before it becomes
// eligible for scrobbling. The second value is false when the track is too
// short to ever be scrobbled.
func ScrobbleDelay(duration time.Duration, percent int) (time.Duration, bool) {
	if duration <= 0 {
		return DefaultScrobbleDelay, true
	}
	if duration < MinTrackDuration {
		return 0, false
	}

	percent = min(max(percent, minPercent), maxPercent)
	delay := duration * time.Duration(percent) / 100
	return min(delay.Round(100*time.Millisecond), MaxScrobbleDelay), true
}
