package feed

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type lineLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLog) add(chunk []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, string(chunk))
}

func (l *lineLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func runSource(t *testing.T, src Source, got *lineLog) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, got.add) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("source did not stop")
		}
	}
}

func TestFileSource_FollowsFromEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")
	appendFile(t, path, "old line\n")

	got := &lineLog{}
	stop := runSource(t, &FileSource{Path: path, Poll: 10 * time.Millisecond, Log: zaptest.NewLogger(t)}, got)
	defer stop()

	// Give the source time to open and seek before appending.
	time.Sleep(50 * time.Millisecond)
	appendFile(t, path, "first\nsec")
	appendFile(t, path, "ond\n")

	require.Eventually(t, func() bool { return len(got.get()) == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, got.get())
}

func TestFileSource_FromStartAndLateCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")

	got := &lineLog{}
	stop := runSource(t, &FileSource{Path: path, Poll: 10 * time.Millisecond, FromStart: true}, got)
	defer stop()

	time.Sleep(30 * time.Millisecond)
	appendFile(t, path, "a\nb\n")

	require.Eventually(t, func() bool { return len(got.get()) == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, got.get())
}

func TestFileSource_Truncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")
	appendFile(t, path, "one\ntwo\n")

	got := &lineLog{}
	stop := runSource(t, &FileSource{Path: path, Poll: 10 * time.Millisecond, FromStart: true}, got)
	defer stop()

	require.Eventually(t, func() bool { return len(got.get()) == 2 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
	require.Eventually(t, func() bool { return len(got.get()) == 3 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "x", got.get()[2])
}

func TestFileSource_RotationByRename(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("cannot rename a file held open on windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.log")
	appendFile(t, path, "one\n")

	got := &lineLog{}
	stop := runSource(t, &FileSource{Path: path, Poll: 10 * time.Millisecond, FromStart: true}, got)
	defer stop()

	require.Eventually(t, func() bool { return len(got.get()) == 1 }, 3*time.Second, 10*time.Millisecond)

	// Lines written to the old file before the new one appears are kept.
	require.NoError(t, os.Rename(path, filepath.Join(dir, "chat.log.1")))
	appendFile(t, filepath.Join(dir, "chat.log.1"), "two\n")
	time.Sleep(50 * time.Millisecond)
	appendFile(t, path, "three\n")

	require.Eventually(t, func() bool { return len(got.get()) == 3 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"one", "two", "three"}, got.get())
}
