package main

import (
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// barProgress shows prep.Progress on a terminal progress bar.
type barProgress struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
	max int
}

func newBarProgress(description string) *barProgress {
	return &barProgress{
		bar: progressbar.NewOptions(1,
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionThrottle(100*time.Millisecond),
		),
	}
}

func (p *barProgress) Expect(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.max += n
	p.bar.ChangeMax(p.max)
}

func (p *barProgress) Done(n int) {
	p.bar.Add(n)
}

func (p *barProgress) Finish() {
	p.bar.Finish()
}

// newSpinner returns a bar for work of unknown size.
func newSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
	)
}
