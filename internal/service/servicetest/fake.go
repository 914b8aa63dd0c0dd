// Package servicetest provides a configurable in-memory service for tests.
package servicetest

import (
	"context"
	"sync"

	"github.com/llehouerou/scrobbled/internal/service"
	"github.com/llehouerou/scrobbled/internal/song"
)

// Fake is a service.Service whose results are set by the test.
type Fake struct {
	mu sync.Mutex

	id            string
	authenticated bool

	NowPlayingResult service.Result
	ScrobbleResult   service.Result
	LoveResult       service.Result
	Err              error
	// Block, when set, makes every call wait until it is closed or the
	// context ends.
	Block chan struct{}

	nowPlaying  []song.Info
	scrobbles   []song.Info
	loves       []bool
	invalidated int
}

// New returns an authenticated fake that answers OK to everything.
func New(id string) *Fake {
	return &Fake{id: id, authenticated: true}
}

func (f *Fake) ID() string    { return f.id }
func (f *Fake) Label() string { return "Fake " + f.id }

func (f *Fake) IsAuthenticated(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

// SetAuthenticated changes the session state.
func (f *Fake) SetAuthenticated(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authenticated = v
}

func (f *Fake) SendNowPlaying(ctx context.Context, info song.Info) (service.Result, error) {
	if err := f.wait(ctx); err != nil {
		return service.ResultErrorOther, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nowPlaying = append(f.nowPlaying, info)
	return f.NowPlayingResult, f.Err
}

func (f *Fake) Scrobble(ctx context.Context, info song.Info) (service.Result, error) {
	if err := f.wait(ctx); err != nil {
		return service.ResultErrorOther, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrobbles = append(f.scrobbles, info)
	return f.ScrobbleResult, f.Err
}

func (f *Fake) ToggleLove(ctx context.Context, _ song.Info, loved bool) (service.Result, error) {
	if err := f.wait(ctx); err != nil {
		return service.ResultErrorOther, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loves = append(f.loves, loved)
	return f.LoveResult, f.Err
}

func (f *Fake) InvalidateSession(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	f.authenticated = false
	return nil
}

// SetResults sets the result returned by every operation.
func (f *Fake) SetResults(r service.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NowPlayingResult, f.ScrobbleResult, f.LoveResult = r, r, r
}

// NowPlaying returns the songs sent as now playing.
func (f *Fake) NowPlaying() []song.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]song.Info(nil), f.nowPlaying...)
}

// Scrobbles returns the scrobbled songs.
func (f *Fake) Scrobbles() []song.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]song.Info(nil), f.scrobbles...)
}

// Loves returns the love values received.
func (f *Fake) Loves() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.loves...)
}

// Invalidated returns how many times the session was invalidated.
func (f *Fake) Invalidated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidated
}

func (f *Fake) wait(ctx context.Context) error {
	f.mu.Lock()
	block := f.Block
	f.mu.Unlock()
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ service.Service = (*Fake)(nil)
