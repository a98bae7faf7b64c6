package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
)

// TransferProgress tracks one photo moving over the data channel and
// renders an in-place progress line.
type TransferProgress struct {
	mu        sync.Mutex
	name      string
	total     int64
	current   int64
	started   bool
	startTime time.Time
	speed     float64
	complete  bool

	bar progress.Model
}

// NewTransferProgress creates a progress line for one file.
func NewTransferProgress(name string, total int64) *TransferProgress {
	bar := progress.New(
		progress.WithGradient(ProgressStart, ProgressEnd),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	return &TransferProgress{
		name:  name,
		total: total,
		bar:   bar,
	}
}

// Update records the new byte count and redraws the line. Timing starts
// from the first byte, not from construction.
func (p *TransferProgress) Update(current int64) {
	p.mu.Lock()
	if !p.started && current > 0 {
		p.started = true
		p.startTime = time.Now()
	}
	if p.started {
		if elapsed := time.Since(p.startTime).Seconds(); elapsed > 0 {
			p.speed = float64(current) / elapsed
		}
	}
	p.current = current
	if p.total > 0 && current >= p.total {
		p.complete = true
	}
	p.mu.Unlock()

	fmt.Printf("\r\033[K%s", p.view())
}

// Finish completes the bar and moves to the next line.
func (p *TransferProgress) Finish() {
	p.mu.Lock()
	p.current = p.total
	p.complete = true
	p.mu.Unlock()

	fmt.Printf("\r\033[K%s\n", p.view())
}

func (p *TransferProgress) view() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	icon := IconPhoto
	if p.complete {
		icon = IconSuccess
	}

	var percent float64
	if p.total > 0 {
		percent = float64(p.current) / float64(p.total)
	} else if p.complete {
		percent = 1
	}

	line := fmt.Sprintf("%s %s %s %5.1f%%",
		icon,
		TruncateName(p.name, 30),
		p.bar.ViewAs(percent),
		percent*100,
	)
	if !p.complete && p.speed > 0 {
		line += MutedStyle.Render(" " + FormatSpeed(p.speed))
	}
	line += MutedStyle.Render(fmt.Sprintf(" (%s/%s)", FormatSize(p.current), FormatSize(p.total)))
	return line
}
