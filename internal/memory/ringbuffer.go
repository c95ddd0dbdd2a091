/*******************************************************************************
*  internal/memory/ringbuffer.go
*
*  wlog keeps message text in a fixed-capacity byte ring addressed by logical
*  offsets that only ever grow. Physical position is offset mod size. Only the
*  retained window [start, start+used) holds data; every other offset reads
*  back as zero.
*******************************************************************************/

package memory

/*******************************************************************************
*  IMPORTS
*******************************************************************************/

import (
	"errors"
	"fmt"
)

/*******************************************************************************
*  TYPES
*******************************************************************************/

var (
	ErrInvalid  = errors.New("memory: invalid ring buffer")
	ErrOverflow = errors.New("memory: write exceeds ring capacity")
)

// RingBuffer is a byte ring over an unbounded logical address space. It is
// not safe for concurrent use.
type RingBuffer struct {
	data  []byte
	start uint64 // logical offset of the oldest retained byte
	used  uint64 // retained bytes, never above len(data)
}

/*******************************************************************************
*  FUNCTIONS
*******************************************************************************/

func NewRingBuffer(size int) (*RingBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrInvalid, size)
	}
	return &RingBuffer{data: make([]byte, size)}, nil
}

// Valid reports whether the ring can be used.
func (r *RingBuffer) Valid() bool {
	return r != nil && len(r.data) > 0 && r.used <= uint64(len(r.data))
}

// Size is the capacity in bytes.
func (r *RingBuffer) Size() int {
	if !r.Valid() {
		return 0
	}
	return len(r.data)
}

// Offset is the logical offset of the oldest retained byte. It carries no
// meaning while Written is zero.
func (r *RingBuffer) Offset() uint64 {
	if !r.Valid() {
		return 0
	}
	return r.start
}

// Written is the number of retained bytes.
func (r *RingBuffer) Written() int {
	if !r.Valid() {
		return 0
	}
	return int(r.used)
}

// Free is the number of bytes that can be appended after the window.
func (r *RingBuffer) Free() int {
	return r.Size() - r.Written()
}

// Read fills out with the bytes at logical offsets [offset, offset+len(out)).
// Bytes outside the retained window read as zero.
func (r *RingBuffer) Read(offset uint64, out []byte) {
	clear(out)
	if !r.Valid() || r.used == 0 {
		return
	}
	lo := max(offset, r.start)
	hi := min(offset+uint64(len(out)), r.start+r.used)
	if lo < hi {
		r.get(lo, out[lo-offset:hi-offset])
	}
}

// Write stores data at logical offset. It fails, leaving the ring untouched,
// when the window would have to span more than Size bytes. On success Written
// never shrinks and Offset never grows, except that an empty ring restarts at
// offset.
func (r *RingBuffer) Write(offset uint64, data []byte) error {
	if !r.Valid() {
		return ErrInvalid
	}
	if len(data) == 0 {
		return nil
	}

	size := uint64(len(r.data))
	n := uint64(len(data))
	start, used := r.start, r.used
	if used == 0 {
		start = offset
	}

	if offset < start {
		end := max(start+used, offset+n)
		if end-offset > size {
			return fmt.Errorf("%w: %d bytes at %d before window start %d", ErrOverflow, n, offset, start)
		}
		r.put(offset, data)
		if offset+n < start {
			r.zero(offset+n, start-(offset+n))
		}
		r.start = offset
		r.used = end - offset
		return nil
	}

	gap := offset - start
	if gap > size || n > size-gap {
		return fmt.Errorf("%w: %d bytes at %d past window start %d", ErrOverflow, n, offset, start)
	}
	if gap > used {
		r.zero(start+used, gap-used)
	}
	r.put(offset, data)
	r.start = start
	r.used = max(used, gap+n)
	return nil
}

// Erase zeroes [offset, offset+length). Overlap with either edge of the
// window shrinks the window; a range strictly inside it is only zeroed.
func (r *RingBuffer) Erase(offset uint64, length int) {
	if !r.Valid() || length <= 0 || r.used == 0 {
		return
	}
	end := r.start + r.used
	lo := max(offset, r.start)
	hi := min(offset+uint64(length), end)
	if lo >= hi {
		return
	}
	r.zero(lo, hi-lo)

	switch {
	case lo == r.start:
		r.start = hi
		r.used = end - hi
	case hi == end:
		r.used = lo - r.start
	}
}

func (r *RingBuffer) put(offset uint64, src []byte) {
	pos := offset % uint64(len(r.data))
	n := copy(r.data[pos:], src)
	copy(r.data, src[n:])
}

func (r *RingBuffer) get(offset uint64, dst []byte) {
	pos := offset % uint64(len(r.data))
	n := copy(dst, r.data[pos:])
	copy(dst[n:], r.data)
}

func (r *RingBuffer) zero(offset, length uint64) {
	pos := offset % uint64(len(r.data))
	first := min(length, uint64(len(r.data))-pos)
	clear(r.data[pos : pos+first])
	clear(r.data[:length-first])
}
