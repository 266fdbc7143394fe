package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jason-s-yu/burgerlab/service/internal/auth"
	"github.com/jason-s-yu/burgerlab/service/internal/cache"
	"github.com/jason-s-yu/burgerlab/service/internal/config"
	"github.com/jason-s-yu/burgerlab/service/internal/database"
	"github.com/jason-s-yu/burgerlab/service/internal/handlers"
	"github.com/jason-s-yu/burgerlab/service/internal/study"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// tokenTTL outlives any session plus the time to submit its results.
const tokenTTL = 6 * time.Hour

func (c *cli) serveCmd() *cobra.Command {
	var origins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the study server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context(), origins)
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "extra websocket origin patterns to accept")
	c.bind(cmd, config.KeyHTTPAddr, "addr")
	return cmd
}

func (c *cli) serve(ctx context.Context, origins []string) error {
	cfg := c.cfg
	bundle, err := c.loadBundle()
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(cfg.JWTSecret, tokenTTL)
	if err != nil {
		return fmt.Errorf("%s: %w", config.KeyJWTSecret, err)
	}

	mgrCfg := study.ManagerConfig{
		Rules:        cfg.Rules,
		TickInterval: cfg.TickInterval,
	}
	opts := handlers.Options{
		Addr:              cfg.HTTPAddr,
		Issuer:            issuer,
		AdminPasswordHash: cfg.AdminPasswordHash,
		OriginPatterns:    origins,
	}

	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		store, err := database.Connect(connectCtx, cfg.DatabaseURL)
		if err == nil {
			err = store.EnsureSchema(connectCtx)
		}
		cancel()
		if err != nil {
			return err
		}
		defer store.Close()
		mgrCfg.Results = store
		opts.Results = store
	} else {
		logrus.Warn("DATABASE_URL not set, results will not be persisted")
	}

	if cfg.RedisAddr != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rc, err := cache.Connect(connectCtx, cfg.RedisAddr)
		cancel()
		if err != nil {
			return err
		}
		defer rc.Close()
		mgrCfg.Reserver = rc
		mgrCfg.Actions = rc
	} else {
		logrus.Warn("REDIS_ADDR not set, participant ids are not reserved")
	}

	opts.Manager = study.NewManager(bundle, mgrCfg)
	logrus.WithFields(logrus.Fields{
		"mode":    cfg.Rules.Mode,
		"session": cfg.Rules.SessionDuration,
		"tick":    cfg.TickInterval,
	}).Info("Study configured")
	return handlers.New(opts).Start()
}
