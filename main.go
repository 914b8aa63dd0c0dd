package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/scrobbled/internal/config"
	"github.com/llehouerou/scrobbled/internal/errmsg"
	"github.com/llehouerou/scrobbled/internal/lastfm"
	"github.com/llehouerou/scrobbled/internal/listenbrainz"
	"github.com/llehouerou/scrobbled/internal/logging"
	"github.com/llehouerou/scrobbled/internal/service"
	"github.com/llehouerou/scrobbled/internal/state"
)

var configFile = new(string)

func main() {
	rootCmd := &cobra.Command{
		Use:          "scrobbled",
		Short:        "Scrobble what plays in your browser to Last.fm and ListenBrainz",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringVarP(configFile, "config", "c", "", "extra config file, loaded last")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newPendingCommand())

	cobra.CheckErr(rootCmd.Execute())
}

// app holds what every command needs.
type app struct {
	cfg     *config.Config
	state   *state.Manager
	logger  *zap.Logger
	logPath string

	lastfmClient *lastfm.Client
	lastfm       *lastfm.Service
	lbClient     *listenbrainz.Client
	listenbrainz *listenbrainz.Service
}

func openApp() (*app, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}

	logger, logPath, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}

	stateMgr, err := state.Open("")
	if err != nil {
		_ = logger.Sync()
		return nil, errors.New(errmsg.Format(errmsg.OpInitialize, fmt.Errorf("open state: %w", err)))
	}

	stateMgr.SetLogger(logger)

	a := &app{cfg: cfg, state: stateMgr, logger: logger, logPath: logPath}

	if cfg.HasLastfmConfig() {
		a.lastfmClient = lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
		a.lastfm = lastfm.NewService(a.lastfmClient, stateMgr, logger)
	}
	a.lbClient = listenbrainz.NewClient(cfg.ListenBrainz.APIURL)
	a.listenbrainz = listenbrainz.NewService(a.lbClient, cfg.ListenBrainz.Token, stateMgr, logger)
	return a, nil
}

// aggregator returns the configured scrobbling services.
func (a *app) aggregator() *service.Aggregator {
	var services []service.Service
	if a.lastfm != nil {
		services = append(services, a.lastfm)
	}
	services = append(services, a.listenbrainz)
	return service.NewAggregator(a.logger, services,
		service.WithTimeout(a.cfg.GetServicesConfig().RequestTimeout),
		service.WithQueue(a.state),
	)
}

func (a *app) close() {
	if err := a.state.Close(); err != nil {
		a.logger.Warn("close state", zap.Error(err))
	}
	_ = a.logger.Sync()
}
