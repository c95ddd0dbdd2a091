package main

import (
	"github.com/spf13/cobra"

	"github.com/Espeer5/wlog/internal/storage"
)

var journalCmd = &cobra.Command{
	Use:   "journal FILE...",
	Short: "Print the records of journal files written by run --archive journal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := &printer{w: cmd.OutOrStdout()}
		for _, path := range args {
			if err := storage.ReadJournal(path, p.Accept); err != nil {
				return err
			}
		}
		return nil
	},
}
