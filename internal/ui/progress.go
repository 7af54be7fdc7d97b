package ui

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Progress tracks submissions of the download loop.
type Progress struct {
	bar *progressbar.ProgressBar
}

func NewProgress(w io.Writer, total int, description string) *Progress {
	return &Progress{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetItsString("file"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
		),
	}
}

// Step advances by one and updates the description.
func (p *Progress) Step(description string) {
	p.bar.Describe(description)
	_ = p.bar.Add(1)
}

func (p *Progress) Finish() { _ = p.bar.Finish() }
