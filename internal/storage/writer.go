/*******************************************************************************
*  internal/storage/writer.go
*
*  The journal writer appends every accepted chat record to a per-channel
*  file so that history survives eviction from the in-memory window and
*  restarts of the collector. Records are protobuf Structs framed with a
*  4-byte big-endian length.
*******************************************************************************/

package storage

/*******************************************************************************
*  IMPORTS
*******************************************************************************/

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Espeer5/wlog/internal/entry"
)

/*******************************************************************************
*  TYPES
*******************************************************************************/

// maxFrame bounds a single journal record on read.
const maxFrame = 1 << 20

var ErrCorrupt = errors.New("storage: corrupt journal")

type Journal struct {
	baseDir string

	mu    sync.Mutex
	files map[string]*os.File // channel -> file
}

/*******************************************************************************
*  FUNCTIONS
*******************************************************************************/

// NewJournal creates a journal that writes per-channel files under baseDir.
func NewJournal(baseDir string) (*Journal, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create baseDir: %w", err)
	}
	return &Journal{
		baseDir: baseDir,
		files:   make(map[string]*os.File),
	}, nil
}

// Close closes all open files.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var err error
	for channel, f := range j.files {
		if cerr := f.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", channel, cerr))
		}
	}
	j.files = make(map[string]*os.File)
	return err
}

// Path is the journal file of a channel.
func (j *Journal) Path(c entry.Channel) string {
	return filepath.Join(j.baseDir, c.String()+".log")
}

// Accept appends rec to its channel file.
func (j *Journal) Accept(rec entry.Record) error {
	data, err := MarshalRecord(rec)
	if err != nil {
		return err
	}

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(data)))

	// Length and data go out under the lock so frames never interleave.
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := j.getFile(rec.Channel)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(buf[:], data...)); err != nil {
		return fmt.Errorf("write record %d: %w", rec.Index, err)
	}
	return nil
}

// getFile lazily opens/creates the file for a channel. Caller holds j.mu.
func (j *Journal) getFile(c entry.Channel) (*os.File, error) {
	name := c.String()
	if f, ok := j.files[name]; ok {
		return f, nil
	}

	f, err := os.OpenFile(j.Path(c), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file for channel %q: %w", name, err)
	}

	j.files[name] = f
	return f, nil
}

// MarshalRecord encodes rec as a protobuf Struct. Struct strings must be
// valid UTF-8, so invalid sequences in the speaker and text (a name cut at
// the cell size, raw bytes from the log) are replaced with U+FFFD.
func MarshalRecord(rec entry.Record) ([]byte, error) {
	st, err := structpb.NewStruct(map[string]any{
		"index":   float64(rec.Index),
		"time_ms": float64(rec.Time),
		"channel": rec.Channel.String(),
		"speaker": strings.ToValidUTF8(rec.Speaker, "\uFFFD"),
		"text":    strings.ToValidUTF8(rec.Text, "\uFFFD"),
	})
	if err != nil {
		return nil, fmt.Errorf("build record %d: %w", rec.Index, err)
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal record %d: %w", rec.Index, err)
	}
	return data, nil
}

// UnmarshalRecord decodes a record written by MarshalRecord.
func UnmarshalRecord(data []byte) (entry.Record, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return entry.Record{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	f := st.GetFields()
	ch, ok := entry.ParseChannel(f["channel"].GetStringValue())
	if !ok {
		return entry.Record{}, fmt.Errorf("%w: unknown channel %q", ErrCorrupt, f["channel"].GetStringValue())
	}
	return entry.Record{
		Index:   uint64(f["index"].GetNumberValue()),
		Time:    uint32(f["time_ms"].GetNumberValue()),
		Channel: ch,
		Speaker: f["speaker"].GetStringValue(),
		Text:    f["text"].GetStringValue(),
	}, nil
}

// ReadJournal calls fn for every record of a journal file in write order.
func ReadJournal(path string, fn func(entry.Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var hdr [4]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: truncated length prefix: %w", ErrCorrupt, err)
		}
		n := binary.BigEndian.Uint32(hdr[:])
		if n > maxFrame {
			return fmt.Errorf("%w: frame of %d bytes", ErrCorrupt, n)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return fmt.Errorf("%w: truncated frame: %w", ErrCorrupt, err)
		}
		rec, err := UnmarshalRecord(data)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
