package collector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Espeer5/wlog/internal/entry"
	"github.com/Espeer5/wlog/internal/feed"
	"github.com/Espeer5/wlog/internal/memory"
	"github.com/Espeer5/wlog/internal/parser"
)

func newCollector(t *testing.T, sinks ...Sink) *Collector {
	t.Helper()
	logs, err := memory.NewLogs(parser.Wakfu{}, 8, 256, 4)
	require.NoError(t, err)
	return New(logs, zaptest.NewLogger(t), sinks...)
}

type recordSink struct {
	mu   sync.Mutex
	recs []entry.Record
}

func (s *recordSink) Accept(rec entry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func TestFeed_ReportsAcceptance(t *testing.T) {
	sink := &recordSink{}
	c := newCollector(t, sink)

	assert.False(t, c.Feed([]byte("garbage\n\nmore garbage")))
	assert.True(t, c.Feed([]byte("10:00:00,000 - [Guilde] Anna : hi\r\nnoise\n10:00:01,000 - [Groupe] Bob : yo\n")))

	require.Len(t, sink.recs, 2)
	assert.Equal(t, "Anna", sink.recs[0].Speaker)
	assert.Equal(t, "hi", sink.recs[0].Text)
	assert.Equal(t, entry.ChanGuild, sink.recs[0].Channel)
	assert.Equal(t, uint64(1), sink.recs[1].Index)

	st := c.Stats()
	assert.Equal(t, uint64(2), st.Accepted)
	assert.Equal(t, uint64(3), st.Rejected)
	assert.Equal(t, uint64(2), st.UsedEntries)
}

func TestIngest_ErrorAndRecord(t *testing.T) {
	c := newCollector(t)

	_, err := c.Ingest([]byte("nope"))
	assert.ErrorIs(t, err, memory.ErrRejected)
	assert.ErrorIs(t, err, parser.ErrBadTime)

	rec, err := c.Ingest([]byte(`12:00:00,000 - [Privé] FROM "Eve" : psst`))
	require.NoError(t, err)
	assert.Equal(t, entry.ChanPrivateFrom, rec.Channel)

	got, err := c.Record(rec.Index)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = c.Record(rec.Index + 1)
	assert.ErrorIs(t, err, memory.ErrNotIssued)
}

func TestRecentAndEviction(t *testing.T) {
	c := newCollector(t)
	for _, who := range []string{"A", "B", "C", "D", "E"} {
		_, err := c.Ingest([]byte("00:00:00,000 - [Commerce] " + who + " : x"))
		require.NoError(t, err)
	}

	recent := c.Recent(0)
	require.Len(t, recent, 4)
	assert.Equal(t, "E", recent[0].Speaker)
	assert.Equal(t, "B", recent[3].Speaker)

	_, err := c.Record(0)
	assert.ErrorIs(t, err, memory.ErrEvicted)
}

func TestComplete(t *testing.T) {
	c := newCollector(t)
	c.Feed([]byte("00:00:00,000 - [Commerce] Anna : a\n" +
		"00:00:00,000 - [Commerce] Annie : b\n" +
		"00:00:00,000 - [Commerce] Bob : c\n"))

	names, err := c.Complete("An")
	require.NoError(t, err)
	assert.Equal(t, []string{"Anna", "Annie"}, names)

	names, err = c.Complete("Z")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSinkErrorDoesNotStopOthers(t *testing.T) {
	good := &recordSink{}
	c := newCollector(t, SinkFunc(func(entry.Record) error { return errors.New("boom") }))
	c.AddSink(good)

	assert.True(t, c.Feed([]byte("00:00:00,000 - [Guilde] Anna : hi")))
	assert.Len(t, good.recs, 1)
}

type chunkSource [][]byte

func (s chunkSource) Run(ctx context.Context, h feed.Handler) error {
	for _, c := range s {
		h(c)
	}
	return nil
}

func TestRun(t *testing.T) {
	sink := &recordSink{}
	c := newCollector(t, sink)
	src := chunkSource{
		[]byte("00:00:00,000 - [Guilde] Anna : one"),
		[]byte("00:00:00,000 - [Guilde] Anna : two\n00:00:00,000 - [Guilde] Bob : three"),
	}
	require.NoError(t, c.Run(context.Background(), src))
	assert.Len(t, sink.recs, 3)
}

func TestConcurrentFeed(t *testing.T) {
	c := newCollector(t)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Feed([]byte("00:00:00,000 - [Guilde] Anna : hello"))
				_ = c.Recent(2)
			}
		}()
	}
	wg.Wait()

	st := c.Stats()
	assert.Equal(t, uint64(800), st.Accepted)
	assert.Equal(t, uint64(800), st.NextEntry)
	assert.Equal(t, uint64(4), st.UsedEntries)
}

func TestConcurrentFeed_SinksSeeIndexOrder(t *testing.T) {
	sink := &recordSink{}
	c := newCollector(t, sink)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Feed([]byte("00:00:00,000 - [Guilde] Anna : one\n00:00:00,000 - [Guilde] Bob : two"))
				_, _ = c.Ingest([]byte("00:00:00,000 - [Commerce] Gil : three"))
			}
		}()
	}
	wg.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.recs, 1200)
	for i, rec := range sink.recs {
		require.Equal(t, uint64(i), rec.Index, "record %d delivered out of order", i)
	}
}
