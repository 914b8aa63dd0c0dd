// Package pipeline turns the raw fields of a song into validated, enriched
// fields through an ordered list of stages.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/scrobbled/internal/song"
)

// DefaultStageTimeout bounds a single stage.
const DefaultStageTimeout = 5 * time.Second

// Stage is one processing step. A stage reads and writes the song it is
// given; it must not touch persisted user edits.
type Stage interface {
	Name() string
	Process(ctx context.Context, s *song.Song) error
}

// Pipeline runs stages in order.
type Pipeline struct {
	stages       []Stage
	stageTimeout time.Duration
	logger       *zap.Logger
}

// New creates a pipeline running the given stages in order.
func New(logger *zap.Logger, stageTimeout time.Duration, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stageTimeout <= 0 {
		stageTimeout = DefaultStageTimeout
	}
	return &Pipeline{
		stages:       stages,
		stageTimeout: stageTimeout,
		logger:       logger.Named("pipeline"),
	}
}

// Process runs every stage on s. A failing, panicking or slow stage is
// logged and skipped; later stages still run. It returns false when ctx was
// cancelled, meaning the caller no longer owns the song.
func (p *Pipeline) Process(ctx context.Context, s *song.Song) bool {
	for _, stage := range p.stages {
		if ctx.Err() != nil {
			return false
		}
		if err := p.runStage(ctx, stage, s); err != nil {
			p.logger.Warn("stage failed",
				zap.String("stage", stage.Name()),
				zap.String("fingerprint", s.Fingerprint()),
				zap.Error(err))
		}
	}

	if ctx.Err() != nil {
		return false
	}
	s.Flags.FinishedProcessing = true
	return true
}

// runStage runs a stage on a copy of s and applies the copy only when the
// stage finished in time, so an abandoned stage never writes to s.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, s *song.Song) error {
	sctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	work := s.Clone()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("panic: %v", rec)
			}
		}()
		done <- stage.Process(sctx, work)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		*s = *work
		return nil
	case <-sctx.Done():
		return sctx.Err()
	}
}

// Standard returns the stages every song goes through, in order. enricher
// may be nil.
func Standard(edits EditStore, enricher Enricher, forceRecognize bool) []Stage {
	stages := []Stage{Normalize{}, Overrides{Store: edits}}
	if enricher != nil {
		stages = append(stages, Enrich{Enricher: enricher})
	}
	return append(stages, Validate{ForceRecognize: forceRecognize})
}
