package output

import (
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Progress renders fetch progress on a terminal. A disabled Progress is a
// no-op, so callers never need to check.
type Progress struct {
	bar *progressbar.ProgressBar
	max int
}

func NewProgress(w io.Writer, enabled bool, description string) *Progress {
	if !enabled {
		return &Progress{}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Progress{bar: bar, max: -1}
}

// Update sets the number of records fetched. total may be nil.
func (p *Progress) Update(fetched int, total *int) {
	if p.bar == nil {
		return
	}
	if total != nil && *total > 0 && *total != p.max {
		p.max = *total
		p.bar.ChangeMax(*total)
	}
	_ = p.bar.Set(fetched)
}

// Finish clears the bar.
func (p *Progress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

// Enabled reports whether anything is rendered.
func (p *Progress) Enabled() bool {
	return p.bar != nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
