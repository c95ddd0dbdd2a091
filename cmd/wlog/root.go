package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Espeer5/wlog/internal/config"
	"github.com/Espeer5/wlog/internal/feed"
	"github.com/Espeer5/wlog/internal/memory"
	"github.com/Espeer5/wlog/internal/parser"
)

const (
	configFlag     = "config"
	logFileFlag    = "log-file"
	zmqFlag        = "zmq"
	namesFlag      = "names"
	ringSizeFlag   = "ring-size"
	maxEntriesFlag = "max-entries"
	pollFlag       = "poll"
	logLevelFlag   = "log-level"
	fromStartFlag  = "from-start"
)

var (
	configPath string
	overrides  config.Config
	fromStart  bool

	rootCmd = &cobra.Command{
		Use:          "wlog",
		Short:        "Bounded-memory chat log collector",
		Long:         "wlog follows a game chat log, keeps the most recent entries in fixed memory and serves them.",
		SilenceUsage: true,
	}
)

func init() {
	defaults := config.Default()
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, configFlag, "c", "", "YAML configuration file")
	pf.StringVarP(&overrides.LogFile, logFileFlag, "f", "", "chat log file to follow")
	pf.StringVar(&overrides.ZMQAddr, zmqFlag, "", "ZeroMQ PUB endpoint publishing raw chat lines")
	pf.IntVar(&overrides.Names, namesFlag, defaults.Names, "maximum distinct speakers kept")
	pf.IntVar(&overrides.RingSize, ringSizeFlag, defaults.RingSize, "bytes of message text kept")
	pf.IntVar(&overrides.MaxEntries, maxEntriesFlag, defaults.MaxEntries, "entries kept")
	pf.DurationVar(&overrides.PollInterval, pollFlag, defaults.PollInterval, "log file poll interval")
	pf.StringVar(&overrides.LogLevel, logLevelFlag, defaults.LogLevel, "debug|info|warn|error")
	pf.BoolVar(&fromStart, fromStartFlag, false, "read the log file from the beginning")

	rootCmd.AddCommand(runCmd, tailCmd, completeCmd, journalCmd, archiveCmd)
}

// loadConfig reads the config file and applies only the flags set on the
// command line over it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case logFileFlag:
			cfg.LogFile = overrides.LogFile
		case zmqFlag:
			cfg.ZMQAddr = overrides.ZMQAddr
		case namesFlag:
			cfg.Names = overrides.Names
		case ringSizeFlag:
			cfg.RingSize = overrides.RingSize
		case maxEntriesFlag:
			cfg.MaxEntries = overrides.MaxEntries
		case pollFlag:
			cfg.PollInterval = overrides.PollInterval
		case logLevelFlag:
			cfg.LogLevel = overrides.LogLevel
		case listenFlag:
			cfg.Listen = listenAddr
		case dataDirFlag:
			cfg.DataDir = dataDir
		case archiveFlag:
			cfg.Archive = archiveMode
		}
	})
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(lvl)
	return logConfig.Build()
}

func newLogs(cfg config.Config) (*memory.Logs, error) {
	return memory.NewLogs(parser.Wakfu{}, cfg.Names, cfg.RingSize, cfg.MaxEntries)
}

// sources builds one feed per configured input.
func sources(cfg config.Config, log *zap.Logger) []feed.Source {
	var out []feed.Source
	if cfg.LogFile != "" {
		out = append(out, &feed.FileSource{
			Path:      cfg.LogFile,
			Poll:      cfg.PollInterval,
			FromStart: fromStart,
			Log:       log,
		})
	}
	if cfg.ZMQAddr != "" {
		out = append(out, &feed.ZMQSource{Addr: cfg.ZMQAddr, Log: log})
	}
	return out
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
