package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/Espeer5/wlog/internal/entry"
)

// printer writes one console line per record:
//
//	[HH:MM:SS.mmm] [channel] Speaker: text
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) Accept(rec entry.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, "[%s] [%s] %s: %s\n", entry.Clock(rec.Time), rec.ChannelName(), rec.Speaker, rec.Text)
	return err
}
