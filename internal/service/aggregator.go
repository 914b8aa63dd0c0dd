package service

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/llehouerou/scrobbled/internal/song"
	"github.com/llehouerou/scrobbled/internal/state"
)

// DefaultTimeout bounds a single call to a single service.
const DefaultTimeout = 10 * time.Second

// Queue stores scrobbles that could not be delivered.
type Queue interface {
	AddPendingScrobble(s state.PendingScrobble) error
	// ClaimPendingScrobbles removes the queued entries of one play and
	// reports how many there were.
	ClaimPendingScrobbles(serviceID string, startedAt time.Time, artist, track string) (int64, error)
}

// Aggregator dispatches operations to every authenticated service
// concurrently and collects one Result per service.
type Aggregator struct {
	mu       sync.RWMutex
	services []Service
	timeout  time.Duration
	queue    Queue
	logger   *zap.Logger

	// resubmitMu makes a user retry and a queue retry of the same play
	// exclusive.
	resubmitMu sync.Mutex
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout sets the per-service call timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithQueue enables queueing of scrobbles that failed transiently.
func WithQueue(q Queue) Option {
	return func(a *Aggregator) { a.queue = q }
}

// NewAggregator creates an aggregator over the given services.
func NewAggregator(logger *zap.Logger, services []Service, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		services: append([]Service(nil), services...),
		timeout:  DefaultTimeout,
		logger:   logger.Named("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds a service.
func (a *Aggregator) Register(s Service) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.services = append(a.services, s)
}

// Service returns the registered service with the given ID.
func (a *Aggregator) Service(id string) (Service, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, s := range a.services {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

// Statuses reports every registered service and whether it is authenticated.
func (a *Aggregator) Statuses(ctx context.Context) []Status {
	a.mu.RLock()
	services := append([]Service(nil), a.services...)
	a.mu.RUnlock()

	out := make([]Status, 0, len(services))
	for _, s := range services {
		out = append(out, Status{ID: s.ID(), Label: s.Label(), Authenticated: s.IsAuthenticated(ctx)})
	}
	return out
}

// SendNowPlaying notifies every service that the song started playing.
func (a *Aggregator) SendNowPlaying(ctx context.Context, info song.Info) Results {
	return a.fanOut(ctx, "now playing", nil, func(ctx context.Context, s Service) (Result, error) {
		return s.SendNowPlaying(ctx, info)
	})
}

// Scrobble submits the song to every service. Transient failures are
// queued for retry when a queue is configured.
func (a *Aggregator) Scrobble(ctx context.Context, info song.Info) Results {
	results := a.fanOut(ctx, "scrobble", nil, func(ctx context.Context, s Service) (Result, error) {
		return s.Scrobble(ctx, info)
	})
	a.enqueue(info, results)
	return results
}

// Resubmit submits again a song whose previous scrobble returned previous.
// Services that accepted or declined it are not called. A failure that went
// to the queue is resent only while its entry is still queued, and the
// entry is claimed first so the Retrier cannot send it as well.
func (a *Aggregator) Resubmit(ctx context.Context, info song.Info, previous Results) Results {
	a.resubmitMu.Lock()
	defer a.resubmitMu.Unlock()

	results := make(Results, len(previous))
	retry := make(map[string]bool, len(previous))
	for id, r := range previous {
		switch {
		case r == ResultOK || r == ResultIgnore:
			results[id] = r
		case r == ResultErrorOther && a.queue != nil:
			results[id] = r
			n, err := a.queue.ClaimPendingScrobbles(id, info.StartedAt, info.Artist, info.Track)
			if err != nil {
				a.logger.Warn("claim queued scrobble", zap.String("service", id), zap.Error(err))
				continue
			}
			if n == 0 {
				// Delivered from the queue in the meantime.
				results[id] = ResultOK
				continue
			}
			retry[id] = true
		default:
			results[id] = r
			retry[id] = true
		}
	}
	if len(retry) == 0 {
		return results
	}

	// Services skipped by the fan-out keep their previous result.
	include := func(s Service) bool { return retry[s.ID()] }
	sent := a.fanOut(ctx, "retry scrobble", include, func(ctx context.Context, s Service) (Result, error) {
		return s.Scrobble(ctx, info)
	})
	// A claimed entry whose service was skipped goes back to the queue.
	requeue := make(Results)
	for id := range retry {
		if _, ok := sent[id]; !ok && results[id] == ResultErrorOther && a.queue != nil {
			requeue[id] = ResultErrorOther
		}
	}
	a.enqueue(info, sent)
	a.enqueue(info, requeue)
	maps.Copy(results, sent)
	return results
}

func (a *Aggregator) enqueue(info song.Info, results Results) {
	if a.queue == nil {
		return
	}
	for id, r := range results {
		if r != ResultErrorOther {
			continue
		}
		if err := a.queue.AddPendingScrobble(PendingFromInfo(id, info)); err != nil {
			a.logger.Warn("queue scrobble", zap.String("service", id), zap.Error(err))
		}
	}
}

// ToggleLove loves or unloves the song on every service.
func (a *Aggregator) ToggleLove(ctx context.Context, info song.Info, loved bool) Results {
	return a.fanOut(ctx, "toggle love", nil, func(ctx context.Context, s Service) (Result, error) {
		return s.ToggleLove(ctx, info, loved)
	})
}

type callResult struct {
	result Result
	err    error
}

// fanOut calls every authenticated service accepted by include, or every
// authenticated service when include is nil.
func (a *Aggregator) fanOut(
	ctx context.Context,
	op string,
	include func(Service) bool,
	call func(context.Context, Service) (Result, error),
) Results {
	a.mu.RLock()
	services := append([]Service(nil), a.services...)
	a.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(Results, len(services))
		g       errgroup.Group
	)

	for _, s := range services {
		if include != nil && !include(s) {
			continue
		}
		if !s.IsAuthenticated(ctx) {
			continue
		}
		g.Go(func() error {
			r := a.callOne(ctx, s, op, call)
			mu.Lock()
			results[s.ID()] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // callers never return errors

	return results
}

// callOne runs a single call bounded by the aggregator timeout. A service
// that ignores its context is abandoned once the timeout passes.
func (a *Aggregator) callOne(
	ctx context.Context,
	s Service,
	op string,
	call func(context.Context, Service) (Result, error),
) Result {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- callResult{ResultErrorOther, fmt.Errorf("panic: %v", rec)}
			}
		}()
		r, err := call(cctx, s)
		done <- callResult{r, err}
	}()

	var out callResult
	select {
	case out = <-done:
	case <-cctx.Done():
		out = callResult{ResultErrorOther, cctx.Err()}
	}

	result := normalize(out.result, out.err)
	log := a.logger.With(zap.String("service", s.ID()), zap.String("op", op), zap.Stringer("result", result))
	if out.err != nil {
		log.Warn("service call failed", zap.Error(out.err))
	} else {
		log.Debug("service call done")
	}

	if result == ResultErrorAuth {
		a.invalidate(s)
	}
	return result
}

func (a *Aggregator) invalidate(s Service) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := s.InvalidateSession(ctx); err != nil {
		a.logger.Warn("invalidate session", zap.String("service", s.ID()), zap.Error(err))
		return
	}
	a.logger.Info("session invalidated", zap.String("service", s.ID()))
}

// PendingFromInfo builds a queue entry for a song.
func PendingFromInfo(serviceID string, info song.Info) state.PendingScrobble {
	return state.PendingScrobble{
		ServiceID:      serviceID,
		Artist:         info.Artist,
		Track:          info.Track,
		Album:          info.Album,
		AlbumArtist:    info.AlbumArtist,
		DurationSecs:   int(info.Duration),
		Timestamp:      info.StartedAt,
		MBRecordingID:  info.RecordingMBID,
		OriginURL:      info.OriginURL,
		ConnectorLabel: info.ConnectorLabel,
	}
}

// InfoFromPending rebuilds the song view stored in a queue entry.
func InfoFromPending(p state.PendingScrobble) song.Info {
	return song.Info{
		Artist:         p.Artist,
		Track:          p.Track,
		Album:          p.Album,
		AlbumArtist:    p.AlbumArtist,
		Duration:       float64(p.DurationSecs),
		StartedAt:      p.Timestamp,
		RecordingMBID:  p.MBRecordingID,
		OriginURL:      p.OriginURL,
		ConnectorLabel: p.ConnectorLabel,
		IsValid:        true,
	}
}
