// Package names interns short identifier strings (speaker names) into small
// stable integer ids. Names are kept in fixed 64-byte cells ordered by a
// red-black arena, which also gives sorted prefix completion.
package names

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Espeer5/wlog/internal/rbt"
)

// NameSize is the size of a name cell. Longer names are truncated; a name of
// exactly NameSize bytes is stored without a terminating nul.
const NameSize = 64

var (
	ErrFull     = errors.New("names: table is full")
	ErrNotFound = errors.New("names: not found")
)

// Table maps names to ids and back. It is not safe for concurrent use.
type Table struct {
	cells []byte
	arena *rbt.Arena
}

// New creates a table able to hold max names at once.
func New(max int) (*Table, error) {
	if max < 0 {
		return nil, fmt.Errorf("names: negative capacity %d", max)
	}
	cells := make([]byte, max*NameSize)
	arena, err := rbt.New(cells, NameSize, NameSize, max)
	if err != nil {
		return nil, fmt.Errorf("names: %w", err)
	}
	return &Table{cells: cells, arena: arena}, nil
}

// MaxNames returns the table capacity.
func (t *Table) MaxNames() int { return t.arena.Cap() }

// Len returns the number of interned names.
func (t *Table) Len() int { return t.arena.Len() }

func pad(name string) []byte {
	key := make([]byte, NameSize)
	copy(key, name)
	return key
}

func (t *Table) cell(id int) []byte {
	return t.cells[id*NameSize : (id+1)*NameSize]
}

// Hash returns the id of name, interning it first if it is new.
func (t *Table) Hash(name string) (int, error) {
	key := pad(name)
	free, err := t.arena.GetFree()
	if err != nil {
		id, lerr := t.arena.Lookup(key)
		if lerr != nil {
			return rbt.None, fmt.Errorf("%w: cannot add %q", ErrFull, name)
		}
		return id, nil
	}

	copy(t.cell(free), key)
	id, err := t.arena.Bind(key, free)
	if err != nil {
		return rbt.None, fmt.Errorf("names: bind %q: %w", name, err)
	}
	return id, nil
}

// Lookup returns the id of an already interned name.
func (t *Table) Lookup(name string) (int, error) {
	id, err := t.arena.Lookup(pad(name))
	if err != nil {
		return rbt.None, ErrNotFound
	}
	return id, nil
}

// Unhash releases id. Entries that still carry id are not touched: they keep
// the number and will resolve to whatever name reuses it next.
func (t *Table) Unhash(id int) error {
	if err := t.arena.Unbind(id); err != nil {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// Name returns the name bound to id.
func (t *Table) Name(id int) (string, error) {
	if !t.arena.IsBound(id) {
		return "", fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	c := t.cell(id)
	if n := bytes.IndexByte(c, 0); n >= 0 {
		c = c[:n]
	}
	return string(c), nil
}

// ReadName copies the name bound to id into buf, truncated to len(buf)-1
// bytes and always nul-terminated. It returns the name length copied.
func (t *Table) ReadName(id int, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("names: empty destination buffer")
	}
	if !t.arena.IsBound(id) {
		return 0, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	c := t.cell(id)
	if n := bytes.IndexByte(c, 0); n >= 0 {
		c = c[:n]
	}
	n := copy(buf[:len(buf)-1], c)
	clear(buf[n:])
	return n, nil
}

// Complete finds the least interned name starting with prefix. level is the
// prefix length to hand back to NextComplete.
func (t *Table) Complete(prefix string) (level int, id int, err error) {
	key := pad(prefix)
	level = min(len(prefix), NameSize)

	free, err := t.arena.GetFree()
	if err != nil {
		// No slot to probe with: only an exact match can be answered.
		id, lerr := t.arena.Lookup(key)
		if lerr != nil {
			return level, rbt.None, fmt.Errorf("%w: completion of %q", ErrFull, prefix)
		}
		return level, id, nil
	}

	copy(t.cell(free), key)
	id, err = t.arena.Bind(key, free)
	if err != nil {
		return level, rbt.None, fmt.Errorf("names: probe %q: %w", prefix, err)
	}
	if id != free {
		return level, id, nil
	}

	// The probe sits right before its first completion in key order.
	next, nerr := t.arena.Next(id)
	if uerr := t.arena.Unbind(id); uerr != nil {
		return level, rbt.None, fmt.Errorf("names: drop probe: %w", uerr)
	}
	if nerr != nil || !bytes.Equal(t.cell(next)[:level], key[:level]) {
		return level, rbt.None, fmt.Errorf("%w: no name starts with %q", ErrNotFound, prefix)
	}
	return level, next, nil
}

// NextComplete returns the name following id in key order if it still shares
// the first level bytes.
func (t *Table) NextComplete(level, id int) (int, error) {
	next, err := t.arena.Next(id)
	if err != nil {
		return rbt.None, fmt.Errorf("%w: no completion after id %d", ErrNotFound, id)
	}
	level = max(0, min(level, NameSize))
	if !bytes.Equal(t.cell(id)[:level], t.cell(next)[:level]) {
		return rbt.None, fmt.Errorf("%w: no completion after id %d", ErrNotFound, id)
	}
	return next, nil
}

// Completions lists every interned id starting with prefix, in key order.
func (t *Table) Completions(prefix string) ([]int, error) {
	level, id, err := t.Complete(prefix)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := []int{id}
	for {
		id, err = t.NextComplete(level, id)
		if err != nil {
			return out, nil
		}
		out = append(out, id)
	}
}
