// Package server exposes the collector over HTTP: JSON queries under /api
// and a live WebSocket feed on /ws.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Espeer5/wlog/internal/collector"
	"github.com/Espeer5/wlog/internal/entry"
	"github.com/Espeer5/wlog/internal/memory"
	"github.com/Espeer5/wlog/internal/storage"
)

// Store is what the handlers read from. *collector.Collector implements it.
type Store interface {
	Recent(n int) []entry.Record
	Record(index uint64) (entry.Record, error)
	Complete(prefix string) ([]string, error)
	Stats() collector.Stats
}

// Archive answers queries for records older than the window.
// *storage.Archive implements it.
type Archive interface {
	Query(q storage.RecordQuery) ([]storage.RecordRow, error)
}

const (
	defaultLimit = 100
	maxLimit     = 5000
)

type recordView struct {
	Index   uint64 `json:"index"`
	TimeMs  uint32 `json:"time_ms"`
	Clock   string `json:"clock"`
	Channel string `json:"channel"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

func newRecordView(r entry.Record) recordView {
	return recordView{
		Index:   r.Index,
		TimeMs:  r.Time,
		Clock:   entry.Clock(r.Time),
		Channel: r.ChannelName(),
		Speaker: r.Speaker,
		Text:    r.Text,
	}
}

type archiveView struct {
	Rows []storage.RecordRow `json:"rows"`
	// Next is set when the page is full; pass it back as cursor_ts/cursor_id.
	Next *archiveCursor `json:"next,omitempty"`
}

type archiveCursor struct {
	TS int64 `json:"cursor_ts"`
	ID int64 `json:"cursor_id"`
}

type statsView struct {
	collector.Stats
	TextUsedHuman string `json:"text_used_human"`
	TextSizeHuman string `json:"text_size_human"`
	Clients       int    `json:"clients"`
}

// Server wires the handlers onto a gin engine.
type Server struct {
	log     *zap.Logger
	store   Store
	hub     *Hub
	archive Archive
	eng     *gin.Engine
}

// New builds the server. hub and archive may be nil; their routes then
// answer 404.
func New(log *zap.Logger, store Store, hub *Hub, archive Archive) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{log: log.Named("http"), store: store, hub: hub, archive: archive}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.accessLog())

	api := r.Group("/api")
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	api.GET("/entries", s.listEntries)
	api.GET("/entries/:index", s.getEntry)
	api.GET("/names/complete", s.completeNames)
	api.GET("/stats", s.stats)
	api.GET("/archive", s.queryArchive)
	if hub != nil {
		r.GET("/ws", hub.Serve)
	}

	s.eng = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.eng }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.eng,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.hub != nil {
		s.hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// listEntries handles GET /api/entries?limit=N.
//
// Returns up to N retained records, newest-first, with the total retained
// count in X-Total-Count.
func (s *Server) listEntries(c *gin.Context) {
	limit := defaultLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLimit)
	}

	recs := s.store.Recent(limit)
	out := make([]recordView, len(recs))
	for i, r := range recs {
		out[i] = newRecordView(r)
	}
	c.Header("X-Total-Count", strconv.FormatUint(s.store.Stats().UsedEntries, 10))
	c.JSON(http.StatusOK, out)
}

// getEntry handles GET /api/entries/{index}.
//
// Status Codes:
//   - 200 OK        → the record
//   - 400 Bad Request
//   - 404 Not Found → index not issued yet
//   - 410 Gone      → index already evicted
func (s *Server) getEntry(c *gin.Context) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "index must be a non-negative integer"})
		return
	}

	rec, err := s.store.Record(index)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, newRecordView(rec))
	case errors.Is(err, memory.ErrNotIssued):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	case errors.Is(err, memory.ErrEvicted):
		c.JSON(http.StatusGone, gin.H{"message": err.Error()})
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
	}
}

// completeNames handles GET /api/names/complete?prefix=P.
func (s *Server) completeNames(c *gin.Context) {
	names, err := s.store.Complete(c.Query("prefix"))
	if err != nil {
		// A full name table can only answer exact matches.
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"prefix": c.Query("prefix"), "names": names})
}

// queryArchive handles
// GET /api/archive?channel=&speaker=&since=&until=&cursor_ts=&cursor_id=&limit=.
//
// channel and speaker may repeat. since/until bound the ingest time in unix
// milliseconds. Rows come oldest-first.
func (s *Server) queryArchive(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "archive disabled"})
		return
	}

	q := storage.RecordQuery{Limit: defaultLimit}
	for _, name := range c.QueryArray("channel") {
		if _, ok := entry.ParseChannel(name); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"message": "unknown channel " + strconv.Quote(name)})
			return
		}
		q.Channels = append(q.Channels, name)
	}
	q.Speakers = c.QueryArray("speaker")

	ints := []struct {
		key string
		dst *int64
	}{
		{"since", &q.StartMs},
		{"until", &q.EndMs},
		{"cursor_ts", &q.CursorTS},
		{"cursor_id", &q.CursorID},
	}
	for _, p := range ints {
		v := c.Query(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": p.key + " must be a non-negative integer"})
			return
		}
		*p.dst = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
			return
		}
		q.Limit = min(n, maxLimit)
	}

	rows, err := s.archive.Query(q)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	out := archiveView{Rows: rows}
	if len(rows) == q.Limit {
		last := rows[len(rows)-1]
		out.Next = &archiveCursor{TS: last.IngestTSMs, ID: last.ID}
	}
	c.JSON(http.StatusOK, out)
}

// stats handles GET /api/stats.
func (s *Server) stats(c *gin.Context) {
	st := s.store.Stats()
	v := statsView{
		Stats:         st,
		TextUsedHuman: humanize.Bytes(uint64(st.TextUsed)),
		TextSizeHuman: humanize.Bytes(uint64(st.TextSize)),
	}
	if s.hub != nil {
		v.Clients = s.hub.Len()
	}
	c.JSON(http.StatusOK, v)
}
