package memory

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRing(t *testing.T, size int) *RingBuffer {
	t.Helper()
	rb, err := NewRingBuffer(size)
	require.NoError(t, err)
	return rb
}

func read(rb *RingBuffer, offset uint64, n int) []byte {
	out := make([]byte, n)
	rb.Read(offset, out)
	return out
}

// --- RingBuffer tests ---

func TestNewRingBuffer_RejectsZero(t *testing.T) {
	_, err := NewRingBuffer(0)
	assert.ErrorIs(t, err, ErrInvalid)

	var nilRing *RingBuffer
	assert.False(t, nilRing.Valid())
	assert.ErrorIs(t, nilRing.Write(0, []byte("x")), ErrInvalid)
	assert.Equal(t, []byte{0, 0}, read(nilRing, 0, 2))
}

func TestRingBuffer_RoundTrip(t *testing.T) {
	rb := newRing(t, 8)

	require.NoError(t, rb.Write(100, []byte("hello")))
	assert.Equal(t, uint64(100), rb.Offset())
	assert.Equal(t, 5, rb.Written())
	assert.Equal(t, []byte("hello"), read(rb, 100, 5))

	// Partially outside the window on both sides.
	assert.Equal(t, []byte("\x00\x00hello\x00"), read(rb, 98, 8))
}

func TestRingBuffer_OversizedWriteIntoEmpty(t *testing.T) {
	rb := newRing(t, 8)
	before := rb.Offset()

	err := rb.Write(0, make([]byte, 10))
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, 0, rb.Written())
	assert.Equal(t, before, rb.Offset())
}

func TestRingBuffer_AppendWraps(t *testing.T) {
	rb := newRing(t, 8)

	require.NoError(t, rb.Write(0, []byte("abcdef")))
	rb.Erase(0, 4)
	assert.Equal(t, uint64(4), rb.Offset())
	assert.Equal(t, 2, rb.Written())

	require.NoError(t, rb.Write(6, []byte("ghijkl")))
	assert.Equal(t, 8, rb.Written())
	assert.Equal(t, []byte("efghijkl"), read(rb, 4, 8))

	// Full: any byte past the end fails and changes nothing.
	assert.ErrorIs(t, rb.Write(12, []byte("m")), ErrOverflow)
	assert.Equal(t, []byte("efghijkl"), read(rb, 4, 8))
}

func TestRingBuffer_GapIsZeroFilled(t *testing.T) {
	rb := newRing(t, 8)

	require.NoError(t, rb.Write(0, []byte("abcdefgh")))
	rb.Erase(0, 8)
	assert.Equal(t, 0, rb.Written())

	require.NoError(t, rb.Write(20, []byte("xy")))
	require.NoError(t, rb.Write(25, []byte("z")))
	assert.Equal(t, 6, rb.Written())
	assert.Equal(t, []byte("xy\x00\x00\x00z"), read(rb, 20, 6))
}

func TestRingBuffer_WriteBeforeStart(t *testing.T) {
	rb := newRing(t, 8)
	require.NoError(t, rb.Write(10, []byte("ab")))

	require.NoError(t, rb.Write(6, []byte("x")))
	assert.Equal(t, uint64(6), rb.Offset())
	assert.Equal(t, 6, rb.Written())
	assert.Equal(t, []byte("x\x00\x00\x00ab"), read(rb, 6, 6))

	// Would need a 9-byte span.
	assert.ErrorIs(t, rb.Write(3, []byte("q")), ErrOverflow)
	assert.Equal(t, uint64(6), rb.Offset())
	assert.Equal(t, 6, rb.Written())
}

func TestRingBuffer_WriteBeforeStartOverlapping(t *testing.T) {
	rb := newRing(t, 8)
	require.NoError(t, rb.Write(4, []byte("cd")))

	require.NoError(t, rb.Write(2, []byte("ABCDE")))
	assert.Equal(t, uint64(2), rb.Offset())
	assert.Equal(t, 5, rb.Written())
	assert.Equal(t, []byte("ABCDE"), read(rb, 2, 5))
}

func TestRingBuffer_OverwriteInside(t *testing.T) {
	rb := newRing(t, 8)
	require.NoError(t, rb.Write(0, []byte("abcdef")))
	require.NoError(t, rb.Write(2, []byte("XY")))

	assert.Equal(t, 6, rb.Written())
	assert.Equal(t, []byte("abXYef"), read(rb, 0, 6))
}

func TestRingBuffer_EraseEdges(t *testing.T) {
	rb := newRing(t, 16)
	require.NoError(t, rb.Write(0, []byte("0123456789")))

	// Interior: zeroed, bounds unchanged.
	rb.Erase(4, 2)
	assert.Equal(t, uint64(0), rb.Offset())
	assert.Equal(t, 10, rb.Written())
	assert.Equal(t, []byte("0123\x00\x006789"), read(rb, 0, 10))

	// Suffix.
	rb.Erase(8, 100)
	assert.Equal(t, 8, rb.Written())
	assert.Equal(t, []byte{0, 0}, read(rb, 8, 2))

	// Prefix, starting before the window.
	rb.Erase(0, 0)
	assert.Equal(t, 8, rb.Written())
	rb.Erase(0, 3)
	assert.Equal(t, uint64(3), rb.Offset())
	assert.Equal(t, 5, rb.Written())

	// Outside the window entirely.
	rb.Erase(100, 5)
	assert.Equal(t, 5, rb.Written())

	// Everything.
	rb.Erase(0, 50)
	assert.Equal(t, 0, rb.Written())
	assert.Equal(t, make([]byte, 16), read(rb, 0, 16))
}

// Random appends and prefix erases compared with a flat model of the logical
// address space.
func TestRingBuffer_RandomizedAgainstModel(t *testing.T) {
	const size = 32
	rng := rand.New(rand.NewSource(11))
	rb := newRing(t, size)
	model := map[uint64]byte{}
	var next uint64

	for step := 0; step < 5000; step++ {
		switch rng.Intn(3) {
		case 0, 1:
			n := rng.Intn(12) + 1
			data := make([]byte, n)
			rng.Read(data)
			for i := range data {
				if data[i] == 0 {
					data[i] = 1
				}
			}
			usedBefore := rb.Written()
			err := rb.Write(next, data)
			if usedBefore+n > size {
				require.ErrorIs(t, err, ErrOverflow, "step %d", step)
				require.Equal(t, usedBefore, rb.Written())
				continue
			}
			require.NoError(t, err, "step %d", step)
			require.GreaterOrEqual(t, rb.Written(), usedBefore)
			for i, b := range data {
				model[next+uint64(i)] = b
			}
			next += uint64(n)
		case 2:
			n := rng.Intn(10)
			start := rb.Offset()
			rb.Erase(start, n)
			for i := 0; i < n; i++ {
				delete(model, start+uint64(i))
			}
		}

		require.LessOrEqual(t, rb.Written(), size)
		lo := rb.Offset()
		if lo > 8 {
			lo -= 8
		}
		got := read(rb, lo, size+16)
		want := make([]byte, size+16)
		for i := range want {
			want[i] = model[lo+uint64(i)]
		}
		require.True(t, bytes.Equal(want, got), "step %d", step)
	}
}
