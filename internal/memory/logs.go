/*******************************************************************************
*  internal/memory/logs.go
*
*  Logs is the bounded log window: a fixed circular array of entry records,
*  their message bytes in a RingBuffer, and speaker identities in a name
*  table. New entries evict the oldest ones until both the record array and
*  the byte ring have room.
*******************************************************************************/

package memory

/*******************************************************************************
*  IMPORTS
*******************************************************************************/

import (
	"errors"
	"fmt"

	"github.com/Espeer5/wlog/internal/entry"
	"github.com/Espeer5/wlog/internal/names"
)

/*******************************************************************************
*  TYPES
*******************************************************************************/

var (
	ErrRejected  = errors.New("memory: line rejected")
	ErrTooLarge  = errors.New("memory: message larger than ring buffer")
	ErrNotIssued = errors.New("memory: entry not issued yet")
	ErrEvicted   = errors.New("memory: entry evicted")
)

// Parser extracts one entry from one raw line.
type Parser interface {
	Parse(line []byte) (entry.Parsed, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(line []byte) (entry.Parsed, error)

func (f ParserFunc) Parse(line []byte) (entry.Parsed, error) { return f(line) }

// Logs is not safe for concurrent use; callers serialize ingestion and
// queries themselves.
type Logs struct {
	parser  Parser
	names   *names.Table
	text    *RingBuffer
	entries []entry.Entry
	used    uint64
	next    uint64
}

// Stats is a snapshot of the window counters and capacities.
type Stats struct {
	UsedEntries uint64 `json:"used_entries"`
	NextEntry   uint64 `json:"next_entry"`
	MaxEntries  int    `json:"max_entries"`
	TextUsed    int    `json:"text_used"`
	TextSize    int    `json:"text_size"`
	Names       int    `json:"names"`
	MaxNames    int    `json:"max_names"`
}

/*******************************************************************************
*  FUNCTIONS
*******************************************************************************/

// NewLogs creates a window holding at most maxEntries records, ringSize bytes
// of text and maxNames distinct speakers.
func NewLogs(parser Parser, maxNames, ringSize, maxEntries int) (*Logs, error) {
	if parser == nil {
		return nil, errors.New("memory: nil parser")
	}
	if maxEntries <= 0 {
		return nil, fmt.Errorf("memory: max entries must be positive, got %d", maxEntries)
	}
	if maxNames <= 0 {
		return nil, fmt.Errorf("memory: max names must be positive, got %d", maxNames)
	}
	rb, err := NewRingBuffer(ringSize)
	if err != nil {
		return nil, err
	}
	tbl, err := names.New(maxNames)
	if err != nil {
		return nil, err
	}
	return &Logs{
		parser:  parser,
		names:   tbl,
		text:    rb,
		entries: make([]entry.Entry, maxEntries),
	}, nil
}

// Ingest parses line and appends it as a new entry, returning its index.
// A rejected line leaves the window unchanged.
func (l *Logs) Ingest(line []byte) (uint64, error) {
	p, err := l.parser.Parse(line)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	if p.Message.Size < 0 || p.Message.End() > uint64(len(line)) {
		return 0, fmt.Errorf("%w: message span %d+%d outside %d-byte line",
			ErrRejected, p.Message.Offset, p.Message.Size, len(line))
	}

	text := line[p.Message.Offset:p.Message.End()]
	if n := len(text); n > 0 && text[n-1] == '\r' {
		text = text[:n-1]
	}
	if len(text) > l.text.Size() {
		return 0, fmt.Errorf("%w: %w (%d > %d)", ErrRejected, ErrTooLarge, len(text), l.text.Size())
	}

	src, err := l.names.Hash(string(p.Speaker))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	return l.add(entry.Entry{Time: p.Time, Channel: p.Channel, Source: src}, text)
}

func (l *Logs) add(e entry.Entry, text []byte) (uint64, error) {
	capN := uint64(len(l.entries))
	start := l.text.Offset()
	end := start + uint64(l.text.Written())
	free := l.text.Free()

	drop := 0
	for l.used > 0 && (free+drop < len(text) || l.used == capN) {
		drop += l.entries[(l.next-l.used)%capN].Text.Size
		l.used--
	}
	l.text.Erase(start, drop)

	if err := l.text.Write(end, text); err != nil {
		return 0, fmt.Errorf("memory: store text of entry %d: %w", l.next, err)
	}

	e.Text = entry.Span{Offset: end, Size: len(text)}
	index := l.next
	l.entries[index%capN] = e
	l.next++
	l.used++
	return index, nil
}

// Entry returns the record at index.
func (l *Logs) Entry(index uint64) (entry.Entry, error) {
	if index >= l.next {
		return entry.Entry{}, fmt.Errorf("%w: %d (next is %d)", ErrNotIssued, index, l.next)
	}
	if index < l.next-l.used {
		return entry.Entry{}, fmt.Errorf("%w: %d (oldest is %d)", ErrEvicted, index, l.next-l.used)
	}
	return l.entries[index%uint64(len(l.entries))], nil
}

// ReadText copies ring bytes at [offset, offset+len(out)) into out.
func (l *Logs) ReadText(offset uint64, out []byte) {
	l.text.Read(offset, out)
}

// Text returns a copy of the text of e.
func (l *Logs) Text(e entry.Entry) []byte {
	out := make([]byte, e.Text.Size)
	l.text.Read(e.Text.Offset, out)
	return out
}

// UsedEntries is the number of retained entries.
func (l *Logs) UsedEntries() uint64 { return l.used }

// NextEntry is the index the next accepted entry will get.
func (l *Logs) NextEntry() uint64 { return l.next }

// FirstEntry is the index of the oldest retained entry.
func (l *Logs) FirstEntry() uint64 { return l.next - l.used }

func (l *Logs) Stats() Stats {
	return Stats{
		UsedEntries: l.used,
		NextEntry:   l.next,
		MaxEntries:  len(l.entries),
		TextUsed:    l.text.Written(),
		TextSize:    l.text.Size(),
		Names:       l.names.Len(),
		MaxNames:    l.names.MaxNames(),
	}
}

// Resolve returns the entry at index with its speaker name and text copied
// out. A speaker id that has been deindexed resolves to an empty name.
func (l *Logs) Resolve(index uint64) (entry.Record, error) {
	e, err := l.Entry(index)
	if err != nil {
		return entry.Record{}, err
	}
	speaker, _ := l.names.Name(e.Source)
	return entry.Record{
		Index:   index,
		Time:    e.Time,
		Channel: e.Channel,
		Speaker: speaker,
		Text:    string(l.Text(e)),
	}, nil
}

// Recent returns up to max most recent entries, newest-first.
func (l *Logs) Recent(max int) []entry.Record {
	if l.used == 0 {
		return nil
	}
	if max <= 0 || uint64(max) > l.used {
		max = int(l.used)
	}

	out := make([]entry.Record, 0, max)
	for i := 0; i < max; i++ {
		r, err := l.Resolve(l.next - 1 - uint64(i))
		if err != nil {
			break
		}
		out = append(out, r)
	}
	return out
}

// IndexSource interns name and returns its id.
func (l *Logs) IndexSource(name string) (int, error) { return l.names.Hash(name) }

// DeindexSource releases a speaker id. Entries already carrying it are not
// rewritten: they become orphaned, or later resolve to whichever new name
// reuses the id.
func (l *Logs) DeindexSource(id int) error { return l.names.Unhash(id) }

// NameSource returns the speaker name bound to id.
func (l *Logs) NameSource(id int) (string, error) { return l.names.Name(id) }

// ReadNameSource copies the speaker name into buf, nul-terminated.
func (l *Logs) ReadNameSource(id int, buf []byte) (int, error) { return l.names.ReadName(id, buf) }

// NameComplete finds the first speaker starting with prefix.
func (l *Logs) NameComplete(prefix string) (level, id int, err error) {
	return l.names.Complete(prefix)
}

// NameNextComplete continues a completion started with NameComplete.
func (l *Logs) NameNextComplete(level, id int) (int, error) {
	return l.names.NextComplete(level, id)
}

// NameCompletions lists every speaker id starting with prefix.
func (l *Logs) NameCompletions(prefix string) ([]int, error) {
	return l.names.Completions(prefix)
}
