package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

const barWidth = 30

// ProgressBar reports transfer progress on one terminal line. It is an
// io.Writer counting the bytes written to it, so it can sit behind an
// io.TeeReader.
type ProgressBar struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	total int64
	done  int64
}

// NewProgressBar creates a progress bar writing to w.
func NewProgressBar(w io.Writer, label string) *ProgressBar {
	return &ProgressBar{w: w, label: label}
}

// SetTotal sets the expected byte count; zero or less shows a running count.
func (p *ProgressBar) SetTotal(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// Write counts b and redraws the bar.
func (p *ProgressBar) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += int64(len(b))
	p.draw()
	return len(b), nil
}

// Written returns the byte count so far.
func (p *ProgressBar) Written() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish draws the final state and ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total < p.done {
		p.total = p.done
	}
	p.draw()
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) draw() {
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r%s %s", p.label, humanize.IBytes(uint64(p.done)))
		return
	}
	frac := float64(p.done) / float64(p.total)
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * barWidth)
	fmt.Fprintf(p.w, "\r%s [%s%s] %3d%% %s/%s",
		p.label,
		strings.Repeat("#", filled),
		strings.Repeat("-", barWidth-filled),
		int(frac*100),
		humanize.IBytes(uint64(p.done)),
		humanize.IBytes(uint64(p.total)))
}
