package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Espeer5/wlog/internal/collector"
	"github.com/Espeer5/wlog/internal/feed"
)

var completeCmd = &cobra.Command{
	Use:   "complete PREFIX",
	Short: "Load the log file once and list the speakers starting with PREFIX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.LogFile == "" {
			return fmt.Errorf("complete needs --%s", logFileFlag)
		}
		logs, err := newLogs(cfg)
		if err != nil {
			return fmt.Errorf("create log window: %w", err)
		}
		coll := collector.New(logs, nil)

		data, err := os.ReadFile(cfg.LogFile)
		if err != nil {
			return err
		}
		split := feed.NewSplitter(feed.DefaultLineSize, func(line []byte) { coll.Feed(line) })
		_, _ = split.Write(data)

		names, err := coll.Complete(args[0])
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}
