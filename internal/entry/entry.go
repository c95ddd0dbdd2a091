// Package entry holds the record types shared by the parser, the log window
// and the sinks fed from it.
package entry

import "fmt"

// Channel identifies the chat channel a line was posted on.
type Channel uint8

const (
	ChanCommerce Channel = iota
	ChanGuild
	ChanProximity
	ChanRecruitment
	ChanPrivateFrom
	ChanPrivateTo
	ChanGroup
	ChanJoin
	ChanLeave
	ChanInvalid
)

var channelNames = [...]string{
	ChanCommerce:    "commerce",
	ChanGuild:       "guild",
	ChanProximity:   "proximity",
	ChanRecruitment: "recruitment",
	ChanPrivateFrom: "private-from",
	ChanPrivateTo:   "private-to",
	ChanGroup:       "group",
	ChanJoin:        "join",
	ChanLeave:       "leave",
	ChanInvalid:     "invalid",
}

func (c Channel) String() string {
	if int(c) < len(channelNames) {
		return channelNames[c]
	}
	return fmt.Sprintf("channel(%d)", uint8(c))
}

// ParseChannel maps a channel name back to its value.
func ParseChannel(s string) (Channel, bool) {
	for i, n := range channelNames {
		if n == s && Channel(i) != ChanInvalid {
			return Channel(i), true
		}
	}
	return ChanInvalid, false
}

// Span addresses bytes by offset and length. Inside a parsed line the offset
// is relative to the line; inside the log window it is a logical ring offset.
type Span struct {
	Offset uint64
	Size   int
}

// End is the first offset past the span.
func (s Span) End() uint64 { return s.Offset + uint64(s.Size) }

// Entry is the fixed-size record kept by the log window.
type Entry struct {
	Time    uint32 // milliseconds since midnight
	Channel Channel
	Source  int // id in the name table
	Text    Span
}

// Parsed is what a line parser extracts from one raw line. Speaker and the
// Message span both point into that line.
type Parsed struct {
	Time    uint32
	Channel Channel
	Speaker []byte
	Message Span
}

// Record is an entry resolved for consumers: speaker name and text copied out
// of the window.
type Record struct {
	Index   uint64  `json:"index"`
	Time    uint32  `json:"time_ms"`
	Channel Channel `json:"-"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// ChannelName is the channel as a string, for encoders.
func (r Record) ChannelName() string { return r.Channel.String() }

// Clock renders a milliseconds-since-midnight time as HH:MM:SS.mmm.
func Clock(ms uint32) string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
