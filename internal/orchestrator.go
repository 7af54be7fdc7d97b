package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LinkGrab/internal/scanner"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ScanResult summarizes one scan.
type ScanResult struct {
	Tab      scanner.Tab
	FileType string
	Frames   int
	Matched  int
	Kept     int
	Dropped  int
}

// Orchestrator owns the scan -> select -> download cycle.
// Phase changes happen under mu; host calls and callbacks run outside it.
type Orchestrator struct {
	cfg   *SecurityConfig
	host  scanner.TabHost
	dl    scanner.Downloader
	loc   *Localizer
	stats *AppStats

	onStatus   func(Status)
	onSubmit   func(index, total int, url string)
	newLimiter func(time.Duration) *rate.Limiter

	mu         sync.Mutex
	phase      Phase
	fileType   string
	candidates []string
	selected   []bool
	status     Status
}

// NewOrchestrator creates an idle orchestrator. cfg must be prepared.
func NewOrchestrator(cfg *SecurityConfig, host scanner.TabHost, dl scanner.Downloader) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		host:       host,
		dl:         dl,
		loc:        NewLocalizer("en"),
		stats:      &AppStats{},
		phase:      PhaseIdle,
		newLimiter: spacingLimiter,
	}
}

// SetLocalizer sets the language for status messages.
func (o *Orchestrator) SetLocalizer(l *Localizer) { o.loc = l }

// SetStats sets the counters the orchestrator reports into.
func (o *Orchestrator) SetStats(s *AppStats) { o.stats = s }

// SetStatusCallback sets the status line observer.
func (o *Orchestrator) SetStatusCallback(fn func(Status)) { o.onStatus = fn }

// SetSubmitCallback is called after each accepted submission.
func (o *Orchestrator) SetSubmitCallback(fn func(index, total int, url string)) { o.onSubmit = fn }

// spacingLimiter hands out one token per delay; the first is immediate.
func spacingLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Candidates returns a copy of the current list.
func (o *Orchestrator) Candidates() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.candidates...)
}

func (o *Orchestrator) emit(kind StatusKind, key string, args ...any) {
	st := Status{Kind: kind, Text: o.loc.T(key, args...)}
	o.mu.Lock()
	o.status = st
	o.mu.Unlock()
	if o.onStatus != nil {
		o.onStatus(st)
	}
}

// Scan runs the extractor in every frame of the active tab and lists the
// candidates that pass validation. Zero survivors is not an error.
func (o *Orchestrator) Scan(ctx context.Context, fileType string) (ScanResult, error) {
	pattern, err := CompileRule(o.cfg, fileType)
	if err != nil {
		return ScanResult{}, err
	}

	o.mu.Lock()
	switch o.phase {
	case PhaseScanning:
		o.mu.Unlock()
		return ScanResult{}, ErrScanInProgress
	case PhaseDownloading:
		o.mu.Unlock()
		return ScanResult{}, ErrDownloadInProgress
	}
	o.phase = PhaseScanning
	o.fileType = fileType
	o.candidates = nil
	o.selected = nil
	o.mu.Unlock()

	o.emit(StatusInfo, MsgScanning)
	res := ScanResult{FileType: fileType}

	tab, err := o.host.ActiveTab(ctx)
	var frames []scanner.FrameResult
	if err == nil {
		res.Tab = tab
		frames, err = o.host.ExecuteInFrames(ctx, tab, FrameScriptFor(pattern))
	}
	if err != nil {
		o.setPhase(PhaseIdle)
		o.emit(StatusError, MsgScanError, err.Error())
		logrus.WithError(err).WithField("type", fileType).Error("scan failed")
		return res, fmt.Errorf("%w: %w", ErrScanFailure, err)
	}

	merged := MergeFrames(frames, o.stats)
	kept, dropped := FilterCandidates(o.cfg, merged)
	res.Frames = len(frames)
	res.Matched = len(merged)
	res.Kept = len(kept)
	res.Dropped = dropped
	o.stats.Candidates.Add(int64(len(kept)))
	o.stats.Dropped.Add(int64(dropped))

	logrus.WithFields(logrus.Fields{
		"tab": tab.ID, "type": fileType, "pattern": pattern.Desc(), "frames": res.Frames,
		"matched": res.Matched, "kept": res.Kept, "dropped": res.Dropped,
	}).Info("scan complete")

	if len(kept) == 0 {
		o.setPhase(PhaseIdle)
		o.emit(StatusError, MsgNoFiles)
		return res, nil
	}

	o.mu.Lock()
	o.candidates = kept
	o.selected = make([]bool, len(kept))
	o.phase = PhaseListed
	o.mu.Unlock()
	o.emit(StatusSuccess, MsgFound, len(kept))
	return res, nil
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

// SetSelected checks or unchecks candidate i.
func (o *Orchestrator) SetSelected(i int, on bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i < 0 || i >= len(o.selected) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	o.selected[i] = on
	return nil
}

// Toggle flips candidate i.
func (o *Orchestrator) Toggle(i int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i < 0 || i >= len(o.selected) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	o.selected[i] = !o.selected[i]
	return nil
}

// ToggleAll unchecks everything when all are checked, otherwise checks everything.
func (o *Orchestrator) ToggleAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	all := len(o.selected) > 0
	for _, on := range o.selected {
		if !on {
			all = false
			break
		}
	}
	for i := range o.selected {
		o.selected[i] = !all
	}
}

// IsSelected reports the checkbox state of candidate i.
func (o *Orchestrator) IsSelected(i int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return i >= 0 && i < len(o.selected) && o.selected[i]
}

// Selected returns checked URLs in list order.
func (o *Orchestrator) Selected() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selectedLocked()
}

func (o *Orchestrator) selectedLocked() []string {
	var out []string
	for i, on := range o.selected {
		if on {
			out = append(out, o.candidates[i])
		}
	}
	return out
}

// Stats returns how many candidates are checked and how many are listed.
func (o *Orchestrator) Stats() (selected, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, on := range o.selected {
		if on {
			selected++
		}
	}
	return selected, len(o.candidates)
}

// SelectionText is the "selected N of M" counter line.
func (o *Orchestrator) SelectionText() string {
	n, total := o.Stats()
	return o.loc.T(MsgSelectedStats, n, total)
}

// Checklist returns the rows to display for the current list.
func (o *Orchestrator) Checklist() []ChecklistItem {
	o.mu.Lock()
	urls := append([]string(nil), o.candidates...)
	sel := append([]bool(nil), o.selected...)
	o.mu.Unlock()
	return BuildChecklist(o.cfg, urls, func(i int) bool { return sel[i] })
}

// Download submits the selected URLs one at a time, DownloadDelay apart,
// each with the uniquify conflict policy. It does not wait for the
// downloads themselves.
func (o *Orchestrator) Download(ctx context.Context) error {
	o.mu.Lock()
	switch o.phase {
	case PhaseListed:
	case PhaseDownloading:
		o.mu.Unlock()
		o.emit(StatusError, MsgDownloadBusy)
		return ErrDownloadInProgress
	default:
		o.mu.Unlock()
		return ErrNotListed
	}
	urls := o.selectedLocked()
	if len(urls) == 0 {
		o.mu.Unlock()
		o.emit(StatusError, MsgSelectAtLeastOne)
		return ErrNoSelection
	}
	if len(urls) > o.cfg.MaxDownloads {
		o.mu.Unlock()
		o.emit(StatusError, MsgMaxDownloads, o.cfg.MaxDownloads)
		return fmt.Errorf("%w: %d > %d", ErrTooManySelected, len(urls), o.cfg.MaxDownloads)
	}
	o.phase = PhaseDownloading
	o.mu.Unlock()
	defer o.setPhase(PhaseIdle)

	limiter := o.newLimiter(o.cfg.DownloadDelay)
	for i, u := range urls {
		if err := limiter.Wait(ctx); err != nil {
			logrus.WithError(err).Warn("download loop interrupted")
			return err
		}
		o.emit(StatusInfo, MsgDownloading, i+1, len(urls))
		req := scanner.DownloadRequest{
			URL:           u,
			SuggestedName: SanitizeFilename(FilenameFromURL(u), o.cfg.MaxFilenameLength),
			Conflict:      scanner.ConflictUniquify,
		}
		if err := o.dl.Submit(ctx, req); err != nil {
			logrus.WithFields(logrus.Fields{"url": u, "err": err}).Warn("submit rejected")
			continue
		}
		o.stats.Submitted.Add(1)
		if o.onSubmit != nil {
			o.onSubmit(i, len(urls), u)
		}
	}

	o.emit(StatusSuccess, MsgDone)
	return nil
}
