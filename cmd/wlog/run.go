package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Espeer5/wlog/internal/collector"
	"github.com/Espeer5/wlog/internal/config"
	"github.com/Espeer5/wlog/internal/server"
	"github.com/Espeer5/wlog/internal/storage"
)

const (
	listenFlag  = "listen"
	dataDirFlag = "data-dir"
	archiveFlag = "archive"
)

var (
	listenAddr  string
	dataDir     string
	archiveMode string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Collect chat lines and serve them over HTTP and WebSocket",
		RunE:  runCollector,
	}
)

func init() {
	defaults := config.Default()
	runCmd.Flags().StringVar(&listenAddr, listenFlag, defaults.Listen, "HTTP listen address, empty to disable")
	runCmd.Flags().StringVar(&dataDir, dataDirFlag, defaults.DataDir, "directory for archives")
	runCmd.Flags().StringVar(&archiveMode, archiveFlag, defaults.Archive, "none|sqlite|journal|both")
}

func runCollector(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log = log.Named("main")

	logs, err := newLogs(cfg)
	if err != nil {
		return fmt.Errorf("create log window: %w", err)
	}
	log.Info("log window ready",
		zap.String("text", humanize.Bytes(uint64(cfg.RingSize))),
		zap.String("entries", humanize.Comma(int64(cfg.MaxEntries))),
		zap.Int("names", cfg.Names),
	)

	coll := collector.New(logs, log)
	arch, closers, err := attachArchives(cfg, coll, log)
	defer func() { err = multierr.Append(err, closeAll(closers)) }()
	if err != nil {
		return err
	}

	var hub *server.Hub
	if cfg.Listen != "" {
		hub = server.NewHub(log)
		coll.AddSink(hub)
	}

	ctx, stop := signalContext()
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	for _, src := range sources(cfg, log) {
		g.Go(func() error { return coll.Run(gctx, src) })
	}
	if hub != nil {
		srv := server.New(log, coll, hub, arch)
		g.Go(func() error { return srv.Run(gctx, cfg.Listen) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	st := coll.Stats()
	log.Info("stopped",
		zap.Uint64("accepted", st.Accepted),
		zap.Uint64("rejected", st.Rejected),
		zap.Uint64("retained", st.UsedEntries),
	)
	return nil
}

type closer interface{ Close() error }

// attachArchives opens the configured archive sinks and returns the SQLite
// one for queries, nil when disabled. Whatever was opened is returned even on
// error so the caller can close it.
func attachArchives(cfg config.Config, coll *collector.Collector, log *zap.Logger) (server.Archive, []closer, error) {
	var (
		arch server.Archive
		out  []closer
	)
	if cfg.UsesSQLite() {
		path := config.ArchivePath(cfg.DataDir)
		a, err := storage.OpenArchive(path)
		if err != nil {
			return nil, out, err
		}
		out = append(out, a)
		coll.AddSink(a)
		arch = a
		log.Info("archiving to sqlite", zap.String("path", path))
	}
	if cfg.UsesJournal() {
		dir := config.JournalDir(cfg.DataDir)
		j, err := storage.NewJournal(dir)
		if err != nil {
			return arch, out, err
		}
		out = append(out, j)
		coll.AddSink(j)
		log.Info("archiving to journal", zap.String("dir", dir))
	}
	return arch, out, nil
}

func closeAll(cs []closer) error {
	var err error
	for _, c := range cs {
		err = multierr.Append(err, c.Close())
	}
	return err
}
