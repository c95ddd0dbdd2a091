// Package collector owns one log window and serializes every access to it.
// Sources push raw lines in; queries and sinks read resolved records out.
package collector

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Espeer5/wlog/internal/entry"
	"github.com/Espeer5/wlog/internal/feed"
	"github.com/Espeer5/wlog/internal/memory"
)

// Sink receives every accepted record in index order, outside the window lock
// so queries never wait on a sink. Calls are never concurrent.
type Sink interface {
	Accept(rec entry.Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(rec entry.Record) error

func (f SinkFunc) Accept(rec entry.Record) error { return f(rec) }

// Stats extends the window counters with ingestion totals.
type Stats struct {
	memory.Stats
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

type Collector struct {
	log *zap.Logger

	// feedMu spans ingest and publish so sinks see records in index order
	// even with several sources. Queries only take mu.
	feedMu sync.Mutex

	mu       sync.Mutex
	logs     *memory.Logs
	accepted uint64
	rejected uint64

	sinkMu sync.RWMutex
	sinks  []Sink
}

func New(logs *memory.Logs, log *zap.Logger, sinks ...Sink) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{
		log:   log.Named("collector"),
		logs:  logs,
		sinks: sinks,
	}
}

// AddSink registers s for records accepted from now on.
func (c *Collector) AddSink(s Sink) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Run feeds everything src produces until ctx is done.
func (c *Collector) Run(ctx context.Context, src feed.Source) error {
	return src.Run(ctx, func(chunk []byte) { c.Feed(chunk) })
}

// Feed ingests every line of chunk and reports whether at least one of them
// was accepted.
func (c *Collector) Feed(chunk []byte) bool {
	c.feedMu.Lock()
	defer c.feedMu.Unlock()

	var recs []entry.Record
	for len(chunk) > 0 {
		line := chunk
		if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
			line, chunk = chunk[:i], chunk[i+1:]
		} else {
			chunk = nil
		}
		if len(line) == 0 {
			continue
		}
		rec, err := c.ingest(line)
		if err != nil {
			c.log.Debug("line rejected", zap.ByteString("line", line), zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	c.publish(recs)
	return len(recs) > 0
}

// Ingest adds a single line and returns the resolved record.
func (c *Collector) Ingest(line []byte) (entry.Record, error) {
	c.feedMu.Lock()
	defer c.feedMu.Unlock()

	rec, err := c.ingest(line)
	if err != nil {
		return entry.Record{}, err
	}
	c.publish([]entry.Record{rec})
	return rec, nil
}

func (c *Collector) ingest(line []byte) (entry.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := c.logs.Ingest(line)
	if err != nil {
		c.rejected++
		return entry.Record{}, err
	}
	c.accepted++
	rec, err := c.logs.Resolve(index)
	if err != nil {
		// The entry was just stored; failing to read it back is a bug.
		return entry.Record{}, fmt.Errorf("collector: resolve new entry %d: %w", index, err)
	}
	return rec, nil
}

func (c *Collector) publish(recs []entry.Record) {
	if len(recs) == 0 {
		return
	}
	c.sinkMu.RLock()
	sinks := c.sinks
	c.sinkMu.RUnlock()

	for _, rec := range recs {
		for _, s := range sinks {
			if err := s.Accept(rec); err != nil {
				c.log.Warn("sink failed", zap.Uint64("index", rec.Index), zap.Error(err))
			}
		}
	}
}

// Recent returns up to n retained records, newest-first. n <= 0 means all.
func (c *Collector) Recent(n int) []entry.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logs.Recent(n)
}

// Record returns the retained record at index.
func (c *Collector) Record(index uint64) (entry.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logs.Resolve(index)
}

// Complete lists the speaker names starting with prefix, in order.
func (c *Collector) Complete(prefix string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.logs.NameCompletions(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		name, err := c.logs.NameSource(id)
		if err != nil {
			return nil, fmt.Errorf("collector: completion id %d: %w", id, err)
		}
		out = append(out, name)
	}
	return out, nil
}

func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Stats: c.logs.Stats(), Accepted: c.accepted, Rejected: c.rejected}
}
