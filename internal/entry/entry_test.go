package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelString(t *testing.T) {
	assert.Equal(t, "guild", ChanGuild.String())
	assert.Equal(t, "channel(200)", Channel(200).String())
}

func TestParseChannel(t *testing.T) {
	for c := ChanCommerce; c < ChanInvalid; c++ {
		got, ok := ParseChannel(c.String())
		assert.True(t, ok)
		assert.Equal(t, c, got)
	}
	_, ok := ParseChannel("invalid")
	assert.False(t, ok)
	_, ok = ParseChannel("nope")
	assert.False(t, ok)
}

func TestClock(t *testing.T) {
	assert.Equal(t, "00:00:00.000", Clock(0))
	assert.Equal(t, "13:05:09.042", Clock(((13*60+5)*60+9)*1000+42))
}

func TestSpanEnd(t *testing.T) {
	assert.Equal(t, uint64(15), Span{Offset: 10, Size: 5}.End())
}
