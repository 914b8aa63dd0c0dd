// Package service defines the contract of a scrobbling service and fans
// operations out to every registered service.
package service

import (
	"context"
	"errors"

	"github.com/llehouerou/scrobbled/internal/song"
)

var (
	// ErrAuth marks errors caused by a missing or rejected session.
	ErrAuth = errors.New("service authentication failed")
	// ErrNotAuthenticated is returned when an operation requires a session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Service is an external listen-tracking service.
type Service interface {
	// ID is a stable identifier used for sessions and the retry queue.
	ID() string
	Label() string
	IsAuthenticated(ctx context.Context) bool
	SendNowPlaying(ctx context.Context, info song.Info) (Result, error)
	Scrobble(ctx context.Context, info song.Info) (Result, error)
	ToggleLove(ctx context.Context, info song.Info, loved bool) (Result, error)
	// InvalidateSession drops the cached session so the next call
	// authenticates again.
	InvalidateSession(ctx context.Context) error
}

// Status describes a registered service.
type Status struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	Authenticated bool   `json:"authenticated"`
}

// normalize folds an error into the result set.
func normalize(r Result, err error) Result {
	if err == nil {
		return r
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrNotAuthenticated) {
		return ResultErrorAuth
	}
	if r == ResultOK || r == ResultIgnore {
		return ResultErrorOther
	}
	return r
}
