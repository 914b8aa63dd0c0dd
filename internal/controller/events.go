package controller

import "github.com/llehouerou/scrobbled/internal/song"

// Reset is emitted when the current song is dropped.
type Reset struct {
	Previous *song.Info
}

// NowPlaying is emitted once a processed song is playing. Sent is false
// when no service accepted the now-playing notification, or when it was not
// sent because the song was already due for scrobbling.
type NowPlaying struct {
	Song song.Info
	Sent bool
}

// Unrecognized is emitted when the pipeline rejected the song.
type Unrecognized struct {
	Song song.Info
}

// ModeChange is emitted on every mode assignment, including re-publishing
// the current mode.
type ModeChange struct {
	Previous Mode
	Current  Mode
	Song     *song.Info
}

// SongUpdate is emitted when the current song record changed.
type SongUpdate struct {
	Song song.Info
}
