package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler receives chunks made of one or more complete lines separated by
// '\n'. The chunk is only valid for the duration of the call.
type Handler func(chunk []byte)

// Source produces raw chat lines until ctx is done.
type Source interface {
	Run(ctx context.Context, h Handler) error
}

// FileSource follows a growing log file, like tail -f. It wakes on fsnotify
// write events and, as a fallback, every Poll interval.
type FileSource struct {
	Path      string
	Poll      time.Duration
	FromStart bool // read existing content instead of starting at the end
	LineSize  int
	Log       *zap.Logger
}

func (f *FileSource) Run(ctx context.Context, h Handler) error {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("file_source").With(zap.String("path", f.Path))
	poll := f.Poll
	if poll <= 0 {
		poll = time.Second
	}

	wake := make(chan struct{}, 1)
	go f.watch(ctx, log, wake)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	split := NewSplitter(f.LineSize, func(line []byte) { h(line) })
	var (
		file   *os.File
		offset int64
	)
	defer func() {
		if file != nil {
			_ = file.Close()
		}
	}()

	buf := make([]byte, 32*1024)
	first := true
	for {
		if file == nil {
			fh, err := os.Open(f.Path)
			switch {
			case err == nil:
				file = fh
				offset = 0
				if first && !f.FromStart {
					if offset, err = file.Seek(0, io.SeekEnd); err != nil {
						return fmt.Errorf("feed: seek %s: %w", f.Path, err)
					}
				}
				log.Info("following", zap.Int64("offset", offset))
			case errors.Is(err, os.ErrNotExist):
				if first {
					log.Warn("log file missing, waiting for it")
				}
			default:
				return fmt.Errorf("feed: open %s: %w", f.Path, err)
			}
			first = false
		}

		if file != nil {
			// Truncated in place: start over.
			if st, err := file.Stat(); err == nil && st.Size() < offset {
				log.Info("file truncated, rewinding", zap.Int64("size", st.Size()))
				if _, err := file.Seek(0, io.SeekStart); err != nil {
					return fmt.Errorf("feed: rewind %s: %w", f.Path, err)
				}
				offset = 0
				split.Reset()
			}
			for {
				n, err := file.Read(buf)
				if n > 0 {
					offset += int64(n)
					_, _ = split.Write(buf[:n])
				}
				if err == io.EOF {
					break
				}
				if err != nil {
					return fmt.Errorf("feed: read %s: %w", f.Path, err)
				}
				if n == 0 {
					break
				}
			}

			// Rotated by rename: the old file is drained, follow the new one
			// from its start.
			if replaced(file, f.Path) {
				log.Info("file replaced, reopening", zap.Int64("offset", offset))
				_ = file.Close()
				file = nil
				split.Reset()
				continue
			}
		}

		select {
		case <-ctx.Done():
			if d := split.Dropped(); d > 0 {
				log.Debug("overlong lines dropped", zap.Int("count", d))
			}
			return nil
		case <-wake:
		case <-ticker.C:
		}
	}
}

// replaced reports whether path now names a different file than the open
// one. A missing path is not a replacement; the writer may not have created
// the new file yet.
func replaced(file *os.File, path string) bool {
	cur, err := file.Stat()
	if err != nil {
		return false
	}
	st, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !os.SameFile(cur, st)
}

// watch signals wake on writes to the followed file. Without a watcher the
// poll ticker alone drives reads.
func (f *FileSource) watch(ctx context.Context, log *zap.Logger, wake chan<- struct{}) {
	abs, err := filepath.Abs(f.Path)
	if err != nil {
		abs = f.Path
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("watcher init, polling only", zap.Error(err))
		return
	}
	defer w.Close()

	dir := filepath.Dir(abs)
	if err := w.Add(dir); err != nil {
		log.Warn("watch add dir, polling only", zap.String("dir", dir), zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Name != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}
