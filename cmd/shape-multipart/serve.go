package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/shapestone/shape-multipart/internal/config"
	"github.com/shapestone/shape-multipart/internal/server"
	"github.com/shapestone/shape-multipart/internal/store"
)

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	configPath := flagSet.String("config", "", "configuration file (.yaml, .toml, or .jsonc)")
	overrides := config.AddFlags(flagSet)
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	level, _ := cfg.Level()
	logger := server.NewLogger(stderr, level)

	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		return err
	}
	srv := server.New(server.Config{
		Address:         cfg.Listen,
		Handler:         server.NewHandler(st, cfg.Field, logger, cfg.DecoderOptions()...),
		ShutdownTimeout: time.Duration(cfg.ShutdownTimeout),
		Logger:          logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx) })
	g.Go(func() error {
		select {
		case <-srv.Ready():
			logger.Info("artifact server ready",
				"address", srv.Addr().String(),
				"root", cfg.Root,
				"field", cfg.Field,
				"compression", cfg.Compression,
			)
		case <-ctx.Done():
		}
		return nil
	})
	return g.Wait()
}
