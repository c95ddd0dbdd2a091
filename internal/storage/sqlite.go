package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Espeer5/wlog/internal/entry"
)

func OpenSQLite(path string) (*sql.DB, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA temp_store=MEMORY;
	`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		entry_index  INTEGER NOT NULL,
		time_ms      INTEGER NOT NULL,
		ingest_ts_ms INTEGER NOT NULL,
		channel      TEXT NOT NULL,
		speaker      TEXT,
		text         TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_entries_channel_ingest
		ON entries(channel, ingest_ts_ms, id);

	CREATE INDEX IF NOT EXISTS idx_entries_speaker_ingest
		ON entries(speaker, ingest_ts_ms, id);
	`
	_, err := db.Exec(schema)
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// InsertRecord stores one resolved record stamped with the current time.
func InsertRecord(db *sql.DB, rec entry.Record) error {
	return insertRecordAt(db, rec, time.Now().UnixMilli())
}

func insertRecordAt(db *sql.DB, rec entry.Record, ingestMs int64) error {
	_, err := db.Exec(`
		INSERT INTO entries (
			entry_index,
			time_ms,
			ingest_ts_ms,
			channel,
			speaker,
			text
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		int64(rec.Index),
		int64(rec.Time),
		ingestMs,
		rec.Channel.String(),
		nullString(rec.Speaker),
		rec.Text,
	)
	return err
}

type RecordRow struct {
	ID         int64  `json:"id"`
	Index      uint64 `json:"index"`
	TimeMs     uint32 `json:"time_ms"`
	IngestTSMs int64  `json:"ingest_ts_ms"`
	Channel    string `json:"channel"`
	Speaker    string `json:"speaker"`
	Text       string `json:"text"`
}

// Record converts an archived row back to the record it was stored from.
func (r RecordRow) Record() (entry.Record, error) {
	ch, ok := entry.ParseChannel(r.Channel)
	if !ok {
		return entry.Record{}, fmt.Errorf("archive row %d: unknown channel %q", r.ID, r.Channel)
	}
	return entry.Record{
		Index:   r.Index,
		Time:    r.TimeMs,
		Channel: ch,
		Speaker: r.Speaker,
		Text:    r.Text,
	}, nil
}

// RecordQuery selects archived records. Empty filters match everything.
// Cursor is (ingest_ts_ms, id) of the last row of the previous page.
type RecordQuery struct {
	StartMs, EndMs int64 // ingest time range, EndMs 0 means unbounded
	Channels       []string
	Speakers       []string
	CursorTS       int64
	CursorID       int64
	Limit          int
}

// QueryRecords returns archived records ordered by ingest time for stable
// paging.
func QueryRecords(db *sql.DB, q RecordQuery) ([]RecordRow, error) {
	where := []string{"ingest_ts_ms >= ?"}
	args := []any{q.StartMs}
	if q.EndMs > 0 {
		where = append(where, "ingest_ts_ms < ?")
		args = append(args, q.EndMs)
	}

	// helper to build "col IN (?, ?, ?)"
	addInStrings := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		ph := make([]string, 0, len(vals))
		for range vals {
			ph = append(ph, "?")
		}
		where = append(where, col+" IN ("+strings.Join(ph, ",")+")")
		for _, v := range vals {
			args = append(args, v)
		}
	}
	addInStrings("channel", q.Channels)
	addInStrings("speaker", q.Speakers)

	// cursor paging
	if q.CursorTS != 0 {
		where = append(where, "(ingest_ts_ms > ? OR (ingest_ts_ms = ? AND id > ?))")
		args = append(args, q.CursorTS, q.CursorTS, q.CursorID)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	stmt := `
SELECT
  id, entry_index, time_ms, ingest_ts_ms,
  channel, speaker, text
FROM entries
WHERE ` + strings.Join(where, "\n  AND ") + `
ORDER BY ingest_ts_ms ASC, id ASC
LIMIT ?`

	rows, err := db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := make([]RecordRow, 0, limit)
	for rows.Next() {
		var (
			r       RecordRow
			index   int64
			timeMs  int64
			speaker sql.NullString
			text    sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &index, &timeMs, &r.IngestTSMs,
			&r.Channel, &speaker, &text,
		); err != nil {
			return nil, err
		}
		r.Index = uint64(index)
		r.TimeMs = uint32(timeMs)
		r.Speaker = speaker.String
		r.Text = text.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Archive is a collector sink that keeps every accepted record in SQLite,
// beyond what the bounded window retains.
type Archive struct {
	db *sql.DB
}

func OpenArchive(path string) (*Archive, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	if err := InitSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Accept(rec entry.Record) error { return InsertRecord(a.db, rec) }

func (a *Archive) Query(q RecordQuery) ([]RecordRow, error) { return QueryRecords(a.db, q) }

func (a *Archive) Close() error { return a.db.Close() }
