package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Espeer5/wlog/internal/config"
	"github.com/Espeer5/wlog/internal/storage"
)

var (
	archiveDB       string
	archiveChannels []string
	archiveSpeakers []string
	archiveLimit    int

	archiveCmd = &cobra.Command{
		Use:   "archive",
		Short: "Print records from the SQLite archive written by run --archive sqlite",
		Args:  cobra.NoArgs,
		RunE:  printArchive,
	}
)

func init() {
	f := archiveCmd.Flags()
	f.StringVar(&archiveDB, "db", config.ArchivePath(config.DefaultDataDir()), "archive database")
	f.StringSliceVar(&archiveChannels, "channel", nil, "only these channels (repeatable)")
	f.StringSliceVar(&archiveSpeakers, "speaker", nil, "only these speakers (repeatable)")
	f.IntVarP(&archiveLimit, "limit", "n", 100, "records to print, oldest first; 0 prints all")
}

func printArchive(cmd *cobra.Command, _ []string) error {
	// Opening creates the database; a typo should not.
	if _, err := os.Stat(archiveDB); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	a, err := storage.OpenArchive(archiveDB)
	if err != nil {
		return err
	}
	defer a.Close()

	p := &printer{w: cmd.OutOrStdout()}
	q := storage.RecordQuery{Channels: archiveChannels, Speakers: archiveSpeakers}
	left := archiveLimit
	for {
		q.Limit = 500
		if archiveLimit > 0 {
			q.Limit = min(q.Limit, left)
		}
		rows, err := a.Query(q)
		if err != nil {
			return err
		}
		for _, row := range rows {
			rec, err := row.Record()
			if err != nil {
				return err
			}
			if err := p.Accept(rec); err != nil {
				return err
			}
		}
		left -= len(rows)
		if len(rows) < q.Limit || (archiveLimit > 0 && left <= 0) {
			return nil
		}
		last := rows[len(rows)-1]
		q.CursorTS, q.CursorID = last.IngestTSMs, last.ID
	}
}
