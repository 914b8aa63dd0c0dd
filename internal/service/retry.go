package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/scrobbled/internal/state"
)

const (
	// RetryInterval is the delay between two passes over the queue.
	RetryInterval = 5 * time.Minute
	// MaxAttempts is the number of retries before an entry is left alone.
	MaxAttempts = 10
	// MaxPendingAge is the age after which queued scrobbles are dropped.
	MaxPendingAge = 14 * 24 * time.Hour
)

// RetryStore is the persistence needed to retry queued scrobbles.
type RetryStore interface {
	GetPendingScrobbles() ([]state.PendingScrobble, error)
	DeletePendingScrobble(id int64) error
	HasPendingScrobble(id int64) (bool, error)
	UpdatePendingScrobbleAttempt(id int64, errMsg string) error
	DeleteOldPendingScrobbles(maxAge time.Duration) error
}

// RetryResult summarizes one pass over the queue.
type RetryResult struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// Retrier resubmits queued scrobbles to the service that failed them.
type Retrier struct {
	agg      *Aggregator
	store    RetryStore
	interval time.Duration
	logger   *zap.Logger
}

// NewRetrier creates a retrier for the aggregator's services.
func NewRetrier(agg *Aggregator, store RetryStore, logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{
		agg:      agg,
		store:    store,
		interval: RetryInterval,
		logger:   logger.Named("retry"),
	}
}

// Run retries the queue every interval until ctx is done.
func (r *Retrier) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RetryOnce(ctx); err != nil {
			r.logger.Warn("retry pending scrobbles", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RetryOnce makes one pass over the queue.
func (r *Retrier) RetryOnce(ctx context.Context) (RetryResult, error) {
	var res RetryResult

	if err := r.store.DeleteOldPendingScrobbles(MaxPendingAge); err != nil {
		return res, err
	}
	pending, err := r.store.GetPendingScrobbles()
	if err != nil {
		return res, err
	}

	for i := range pending {
		p := &pending[i]
		if p.Attempts >= MaxAttempts {
			res.Skipped++
			continue
		}

		s, ok := r.agg.Service(p.ServiceID)
		if !ok || !s.IsAuthenticated(ctx) {
			res.Skipped++
			continue
		}

		result, sent := r.retryOne(ctx, s, p)
		switch {
		case !sent:
			res.Skipped++
		case result == ResultOK || result == ResultIgnore:
			res.Succeeded++
		default:
			res.Failed++
		}
	}

	if res.Succeeded > 0 || res.Failed > 0 {
		r.logger.Info("retried pending scrobbles",
			zap.Int("succeeded", res.Succeeded), zap.Int("failed", res.Failed))
	}
	return res, nil
}

// retryOne resubmits one queue entry unless a user retry claimed it first,
// in which case sent is false.
func (r *Retrier) retryOne(ctx context.Context, s Service, p *state.PendingScrobble) (result Result, sent bool) {
	r.agg.resubmitMu.Lock()
	defer r.agg.resubmitMu.Unlock()

	queued, err := r.store.HasPendingScrobble(p.ID)
	if err != nil {
		r.logger.Warn("check pending scrobble", zap.Int64("id", p.ID), zap.Error(err))
		return ResultErrorOther, false
	}
	if !queued {
		return ResultErrorOther, false
	}

	info := InfoFromPending(*p)
	result = r.agg.callOne(ctx, s, "retry scrobble", func(ctx context.Context, s Service) (Result, error) {
		return s.Scrobble(ctx, info)
	})

	switch result {
	case ResultOK, ResultIgnore:
		if err := r.store.DeletePendingScrobble(p.ID); err != nil {
			r.logger.Warn("delete pending scrobble", zap.Int64("id", p.ID), zap.Error(err))
		}
	default:
		if err := r.store.UpdatePendingScrobbleAttempt(p.ID, result.String()); err != nil {
			r.logger.Warn("update pending scrobble", zap.Int64("id", p.ID), zap.Error(err))
		}
	}
	return result, true
}
