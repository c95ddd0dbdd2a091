/*******************************************************************************
*  internal/feed/splitter.go
*
*  Splitter cuts a raw byte stream into newline-terminated lines using a fixed
*  line buffer. A partial line is kept for the next write. A line that does
*  not fit the buffer is dropped up to its newline so the stream never stalls.
*******************************************************************************/

package feed

/*******************************************************************************
*  IMPORTS
*******************************************************************************/

import (
	"bytes"
)

/*******************************************************************************
*  TYPES
*******************************************************************************/

// DefaultLineSize is the longest line a Splitter keeps by default.
const DefaultLineSize = 1024

// Splitter implements io.Writer. It is not safe for concurrent use.
type Splitter struct {
	buf     []byte
	emit    func(line []byte)
	skip    bool // inside an overlong line
	dropped int
}

/*******************************************************************************
*  FUNCTIONS
*******************************************************************************/

// NewSplitter calls emit with every complete line, without its newline. The
// slice is only valid for the duration of the call.
func NewSplitter(size int, emit func(line []byte)) *Splitter {
	if size <= 0 {
		size = DefaultLineSize
	}
	return &Splitter{buf: make([]byte, 0, size), emit: emit}
}

func (s *Splitter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		chunk := p
		if i >= 0 {
			chunk = p[:i]
		}

		if !s.skip {
			if len(s.buf)+len(chunk) > cap(s.buf) {
				s.buf = s.buf[:0]
				s.skip = true
				s.dropped++
			} else {
				s.buf = append(s.buf, chunk...)
			}
		}

		if i < 0 {
			break
		}
		if !s.skip {
			s.emit(s.buf)
		}
		s.buf = s.buf[:0]
		s.skip = false
		p = p[i+1:]
	}
	return n, nil
}

// Pending is the number of buffered bytes of an unfinished line.
func (s *Splitter) Pending() int { return len(s.buf) }

// Dropped counts overlong lines discarded so far.
func (s *Splitter) Dropped() int { return s.dropped }

// Reset forgets any partial line.
func (s *Splitter) Reset() {
	s.buf = s.buf[:0]
	s.skip = false
}
