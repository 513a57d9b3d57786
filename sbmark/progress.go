package sbmark

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v2"
)

// Ticker counts completed operations.
type Ticker interface {
	Add(n int) error
}

type NilTicker struct{}

func (*NilTicker) Add(int) error { return nil }

// ProgressTicker renders a progress bar. Add may be called from any worker.
type ProgressTicker struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func NewProgressTicker(total int, w io.Writer) *ProgressTicker {
	return &ProgressTicker{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetWriter(w),
		),
	}
}

func (t *ProgressTicker) Add(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bar.Add(n)
}

func (t *ProgressTicker) Finish() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bar.Finish()
}
