// Package parser turns raw chat log lines into entry.Parsed values.
package parser

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Espeer5/wlog/internal/entry"
)

var (
	ErrNoMatch = errors.New("parser: line matches no channel")
	ErrBadTime = errors.New("parser: malformed timestamp")
)

// stampSize is the length of the "HH:MM:SS,mmm - " header.
const stampSize = 15

type channelForm struct {
	channel entry.Channel
	prefix  []byte
	infix   []byte
	suffix  []byte // join/leave lines end the message before this
}

// Tried in order; the first matching form wins.
var forms = []channelForm{
	{entry.ChanCommerce, []byte("[Commerce] "), []byte(" : "), nil},
	{entry.ChanGuild, []byte("[Guilde] "), []byte(" : "), nil},
	{entry.ChanProximity, []byte("[Proximité] "), []byte(" : "), nil},
	{entry.ChanRecruitment, []byte("[Recrutement] "), []byte(" : "), nil},
	{entry.ChanPrivateFrom, []byte(`[Privé] FROM "`), []byte(`" : `), nil},
	{entry.ChanPrivateTo, []byte(`[Privé] TO "`), []byte(`" : `), nil},
	{entry.ChanGroup, []byte("[Groupe] "), []byte(" : "), nil},
	{entry.ChanJoin, []byte("[Information (jeu)] "), []byte(" ("), []byte(") a rejoint notre monde")},
	{entry.ChanLeave, []byte("[Information (jeu)] "), []byte(" ("), []byte(") vient de quitter notre monde")},
}

// Wakfu parses lines of the game's chat log:
//
//	13:05:09,042 - [Guilde] Anna : hello
//	13:05:10,001 - [Privé] FROM "Bob" : psst
//	13:05:11,500 - [Information (jeu)] Carl (12) a rejoint notre monde
type Wakfu struct{}

// Parse implements memory.Parser.
func (Wakfu) Parse(line []byte) (entry.Parsed, error) {
	ms, err := ParseStamp(line)
	if err != nil {
		return entry.Parsed{}, err
	}
	body := line[stampSize:]

	for _, f := range forms {
		if !bytes.HasPrefix(body, f.prefix) {
			continue
		}
		rest := body[len(f.prefix):]
		i := bytes.Index(rest, f.infix)
		if i < 0 {
			continue
		}
		msgStart := len(f.prefix) + i + len(f.infix)
		msgEnd := len(body)
		if f.suffix != nil {
			j := bytes.Index(body[msgStart:], f.suffix)
			if j < 0 {
				continue
			}
			msgEnd = msgStart + j
		}
		return entry.Parsed{
			Time:    ms,
			Channel: f.channel,
			Speaker: rest[:i],
			Message: entry.Span{
				Offset: uint64(stampSize + msgStart),
				Size:   msgEnd - msgStart,
			},
		}, nil
	}
	return entry.Parsed{}, fmt.Errorf("%w: %q", ErrNoMatch, clip(body))
}

// ParseStamp reads the "HH:MM:SS,mmm - " header and returns milliseconds
// since midnight.
func ParseStamp(line []byte) (uint32, error) {
	if len(line) < stampSize {
		return 0, fmt.Errorf("%w: line of %d bytes", ErrBadTime, len(line))
	}
	h := line[:stampSize]
	if h[2] != ':' || h[5] != ':' || h[8] != ',' || !bytes.Equal(h[12:], []byte(" - ")) {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, h)
	}
	hour, ok1 := digits(h[0:2])
	minute, ok2 := digits(h[3:5])
	sec, ok3 := digits(h[6:8])
	milli, ok4 := digits(h[9:12])
	if !ok1 || !ok2 || !ok3 || !ok4 || hour > 23 || minute > 59 || sec > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, h)
	}
	return ((hour*60+minute)*60+sec)*1000 + milli, nil
}

func digits(b []byte) (uint32, bool) {
	var v uint32
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint32(c-'0')
	}
	return v, true
}

func clip(b []byte) []byte {
	if len(b) > 40 {
		return b[:40]
	}
	return b
}
