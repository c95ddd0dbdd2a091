package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Espeer5/wlog/internal/collector"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print every accepted chat entry to the console",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := buildLogger(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		logs, err := newLogs(cfg)
		if err != nil {
			return fmt.Errorf("create log window: %w", err)
		}
		coll := collector.New(logs, log, &printer{w: cmd.OutOrStdout()})

		ctx, stop := signalContext()
		defer stop()
		g, gctx := errgroup.WithContext(ctx)
		for _, src := range sources(cfg, log) {
			g.Go(func() error { return coll.Run(gctx, src) })
		}
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
