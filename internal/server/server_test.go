package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Espeer5/wlog/internal/collector"
	"github.com/Espeer5/wlog/internal/entry"
	"github.com/Espeer5/wlog/internal/memory"
	"github.com/Espeer5/wlog/internal/parser"
	"github.com/Espeer5/wlog/internal/storage"
)

func init() { gin.SetMode(gin.TestMode) }

func fixture(t *testing.T) (*collector.Collector, *Hub, *Server) {
	t.Helper()
	logs, err := memory.NewLogs(parser.Wakfu{}, 8, 1024, 3)
	require.NoError(t, err)
	// Handlers and websocket loops may still log after the test returns.
	log := zap.NewNop()
	hub := NewHub(log)
	c := collector.New(logs, log, hub)
	return c, hub, New(log, c, hub, nil)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func feed(c *collector.Collector, lines ...string) {
	c.Feed([]byte(strings.Join(lines, "\n")))
}

func TestListEntries(t *testing.T) {
	c, _, s := fixture(t)
	feed(c,
		"10:00:00,000 - [Guilde] Anna : one",
		"10:00:01,000 - [Guilde] Bob : two",
		"10:00:02,500 - [Commerce] Anna : three",
	)

	w := get(t, s, "/api/entries?limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))

	var got []recordView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].Index)
	assert.Equal(t, "commerce", got[0].Channel)
	assert.Equal(t, "10:00:02.500", got[0].Clock)
	assert.Equal(t, "two", got[1].Text)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/entries?limit=zero").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/entries?limit=-1").Code)
}

func TestGetEntry_Statuses(t *testing.T) {
	c, _, s := fixture(t)
	for i := 0; i < 4; i++ {
		feed(c, "00:00:00,000 - [Groupe] Gil : go")
	}

	w := get(t, s, "/api/entries/3")
	require.Equal(t, http.StatusOK, w.Code)
	var rec recordView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "Gil", rec.Speaker)
	assert.Equal(t, "group", rec.Channel)

	assert.Equal(t, http.StatusGone, get(t, s, "/api/entries/0").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/entries/4").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/entries/x").Code)
}

func TestCompleteNames(t *testing.T) {
	c, _, s := fixture(t)
	feed(c,
		"00:00:00,000 - [Guilde] Anna : a",
		"00:00:00,000 - [Guilde] Annie : b",
		"00:00:00,000 - [Guilde] Bob : c",
	)

	w := get(t, s, "/api/names/complete?prefix=An")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Prefix string   `json:"prefix"`
		Names  []string `json:"names"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "An", body.Prefix)
	assert.Equal(t, []string{"Anna", "Annie"}, body.Names)

	w = get(t, s, "/api/names/complete?prefix=Q")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Names)
}

func TestStats(t *testing.T) {
	c, _, s := fixture(t)
	feed(c, "00:00:00,000 - [Guilde] Anna : hello", "junk")

	w := get(t, s, "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var st map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.EqualValues(t, 1, st["accepted"])
	assert.EqualValues(t, 1, st["rejected"])
	assert.EqualValues(t, 5, st["text_used"])
	assert.EqualValues(t, 1024, st["text_size"])
	assert.Equal(t, "1.0 kB", st["text_size_human"])
	assert.EqualValues(t, 0, st["clients"])
}

func TestWebSocketFeed(t *testing.T) {
	c, hub, s := fixture(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	feed(c, `12:00:00,000 - [Privé] TO "Eve" : see you`)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var rec recordView
	require.NoError(t, json.Unmarshal(msg, &rec))
	assert.Equal(t, "Eve", rec.Speaker)
	assert.Equal(t, "see you", rec.Text)
	assert.Equal(t, entry.ChanPrivateTo.String(), rec.Channel)

	hub.Close()
	assert.Equal(t, 0, hub.Len())
}

func TestQueryArchive(t *testing.T) {
	logs, err := memory.NewLogs(parser.Wakfu{}, 8, 1024, 2)
	require.NoError(t, err)
	arch, err := storage.OpenArchive(filepath.Join(t.TempDir(), "wlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = arch.Close() })

	c := collector.New(logs, zap.NewNop(), arch)
	s := New(zap.NewNop(), c, nil, arch)
	feed(c,
		"10:00:00,000 - [Guilde] Anna : one",
		"10:00:01,000 - [Commerce] Bob : two",
		"10:00:02,000 - [Guilde] Anna : three",
		"10:00:03,000 - [Guilde] Carl : four",
	)

	// Index 0 has left the window but is still archived.
	assert.Equal(t, http.StatusGone, get(t, s, "/api/entries/0").Code)

	var page archiveView
	w := get(t, s, "/api/archive?channel=guild&limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Rows, 2)
	assert.Equal(t, uint64(0), page.Rows[0].Index)
	assert.Equal(t, "one", page.Rows[0].Text)
	assert.Equal(t, "three", page.Rows[1].Text)
	require.NotNil(t, page.Next)

	next := "/api/archive?channel=guild&limit=2" +
		"&cursor_ts=" + strconv.FormatInt(page.Next.TS, 10) +
		"&cursor_id=" + strconv.FormatInt(page.Next.ID, 10)
	page = archiveView{}
	w = get(t, s, next)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Carl", page.Rows[0].Speaker)
	assert.Nil(t, page.Next)

	page = archiveView{}
	w = get(t, s, "/api/archive?speaker=Bob&speaker=Carl")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "commerce", page.Rows[0].Channel)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/archive?channel=shout").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/archive?cursor_ts=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/archive?limit=0").Code)
}

func TestQueryArchive_Disabled(t *testing.T) {
	_, _, s := fixture(t)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/archive").Code)
}
