package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datallboy/godepot/internal/app"
	"github.com/datallboy/godepot/internal/delivery"
	"github.com/datallboy/godepot/internal/infra/config"
	"github.com/datallboy/godepot/internal/infra/logger"
	"github.com/datallboy/godepot/internal/settings"
	"github.com/datallboy/godepot/internal/store"
	"github.com/datallboy/godepot/internal/store/postgres"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "godepot",
		Short:         "Scheduled, windowed, resumable depot downloads",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newDownloadCmd(opts),
		newCatalogCmd(opts),
		newSettingsCmd(opts),
	)
	return cmd
}

// runtime is everything a command needs, built from the config file.
type runtime struct {
	app      *app.Context
	settings *settings.Store
	delivery *delivery.Client
	closers  []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

// bootstrap loads config, opens the logger, store and settings file. The
// delivery client is only built when needDelivery is set.
func bootstrap(ctx context.Context, opts *rootOptions, needDelivery bool) (*runtime, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("logger error: %w", err)
	}

	rt := &runtime{app: app.NewContext(cfg, log)}
	rt.closers = append(rt.closers, log.Close)

	st, err := openStore(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.app.Store = st
	rt.closers = append(rt.closers, st.Close)

	sets, err := settings.Open(cfg.Settings.Path, cfg.Download.OutDir, log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.settings = sets
	rt.app.Settings = sets

	if needDelivery {
		if cfg.Delivery.BaseURL == "" {
			rt.Close()
			return nil, errors.New("delivery.base_url is required (config or GODEPOT_DELIVERY_BASE_URL)")
		}
		rt.delivery = delivery.New(cfg.Delivery.BaseURL, cfg.Delivery.Token, cfg.Delivery.Timeout)
		rt.app.Delivery = rt.delivery
	}

	return rt, nil
}

func openStore(ctx context.Context, cfg *config.Config) (app.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("store error: %w", err)
		}
		return s, nil
	default:
		s, err := store.NewPersistentStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("store error: %w", err)
		}
		return s, nil
	}
}
