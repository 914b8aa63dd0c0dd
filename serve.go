package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/scrobbled/internal/api"
	"github.com/llehouerou/scrobbled/internal/connectors"
	"github.com/llehouerou/scrobbled/internal/contextstore"
	"github.com/llehouerou/scrobbled/internal/controller"
	"github.com/llehouerou/scrobbled/internal/lastfm"
	"github.com/llehouerou/scrobbled/internal/musicbrainz"
	"github.com/llehouerou/scrobbled/internal/notify"
	"github.com/llehouerou/scrobbled/internal/pipeline"
	"github.com/llehouerou/scrobbled/internal/service"
	"github.com/llehouerou/scrobbled/internal/tracker"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scrobbling daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger
	logger.Info("starting", zap.String("log", a.logPath))

	// Contexts from a previous run belong to pages that are gone.
	if err := a.state.ClearContexts(); err != nil {
		logger.Warn("clear contexts", zap.Error(err))
	}

	registry, err := connectors.New(connectorDefinitions(a), a.cfg.DisabledConnectors)
	if err != nil {
		return fmt.Errorf("connectors: %w", err)
	}

	agg := a.aggregator()
	pipelines, err := buildPipelines(a)
	if err != nil {
		return err
	}

	notifier, err := notify.New()
	if err != nil {
		logger.Warn("notifications unavailable", zap.Error(err))
		notifier = nil
	}
	art, err := notify.NewArtCache("")
	if err != nil {
		logger.Warn("cover cache unavailable", zap.Error(err))
		art = nil
	}

	tr := tracker.New(tracker.Config{
		Registry:  registry,
		Options:   a.cfg,
		Pipelines: pipelines,
		Scrobbler: agg,
		Edits:     a.state,
		Backend:   contextstore.NewStateBackend(a.state),
		Notifier:  notifier,
		Art:       art,
		Logger:    logger,
	})
	defer tr.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		service.NewRetrier(agg, a.state, logger).Run(ctx)
	}()

	srv := api.NewServer(a.cfg.ListenAddress(), api.NewRouter(tr, agg, logger), logger)
	err = srv.Run(ctx)
	stop()
	wg.Wait()
	logger.Info("stopped")
	return err
}

func connectorDefinitions(a *app) []connectors.Definition {
	defs := append([]connectors.Definition(nil), connectors.Builtin...)
	for _, c := range a.cfg.Connectors {
		defs = append(defs, connectors.Definition{ID: c.ID, Label: c.Label, Matches: c.Matches})
	}
	return defs
}

// buildPipelines returns one pipeline per force_recognize setting, sharing
// the enrichment cache.
func buildPipelines(a *app) (tracker.PipelineFunc, error) {
	pc := a.cfg.GetPipelineConfig()

	var enrichers []pipeline.Enricher
	if a.cfg.LastfmEnrich() {
		enrichers = append(enrichers, lastfm.NewEnricher(a.lastfmClient, a.lastfm))
	}
	if a.cfg.MusicBrainzEnrich() {
		enrichers = append(enrichers, musicbrainz.NewEnricher(musicbrainz.NewClient()))
	}

	var enricher pipeline.Enricher
	if len(enrichers) > 0 {
		cached, err := pipeline.NewCached(
			pipeline.Chain{Enrichers: enrichers, Logger: a.logger},
			pc.CacheSize, a.state, a.logger,
		)
		if err != nil {
			return nil, fmt.Errorf("enrichment cache: %w", err)
		}
		enricher = cached
	}

	strict := pipeline.New(a.logger, pc.StageTimeout, pipeline.Standard(a.state, enricher, false)...)
	forced := pipeline.New(a.logger, pc.StageTimeout, pipeline.Standard(a.state, enricher, true)...)
	return func(connectorID string) controller.Processor {
		if a.cfg.ForceRecognize(connectorID) {
			return forced
		}
		return strict
	}, nil
}
