package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"LinkGrab/internal/scanner"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeHost struct {
	frames   [][]string
	failed   map[int]bool
	tabErr   error
	execErr  error
	release  chan struct{}
	started  chan struct{}
	tabCalls int
}

func (h *fakeHost) ActiveTab(context.Context) (scanner.Tab, error) {
	h.tabCalls++
	if h.tabErr != nil {
		return scanner.Tab{}, h.tabErr
	}
	return scanner.Tab{ID: "tab-1", URL: "https://page.example/"}, nil
}

func (h *fakeHost) ExecuteInFrames(_ context.Context, _ scanner.Tab, script scanner.FrameScript) ([]scanner.FrameResult, error) {
	if h.started != nil {
		close(h.started)
	}
	if h.release != nil {
		<-h.release
	}
	if h.execErr != nil {
		return nil, h.execErr
	}
	out := make([]scanner.FrameResult, 0, len(h.frames))
	for i, links := range h.frames {
		name := fmt.Sprintf("frame-%d", i)
		if h.failed[i] {
			out = append(out, scanner.FrameResult{FrameURL: name, Err: errors.New("blocked by CSP")})
			continue
		}
		out = append(out, scanner.FrameResult{FrameURL: name, URLs: script(links)})
	}
	return out, nil
}

type fakeDownloader struct {
	mu      sync.Mutex
	reqs    []scanner.DownloadRequest
	times   []time.Time
	reject  map[string]bool
	release chan struct{}
}

func (d *fakeDownloader) Submit(_ context.Context, req scanner.DownloadRequest) error {
	if d.release != nil {
		<-d.release
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.times = append(d.times, time.Now())
	if d.reject[req.URL] {
		return errors.New("rejected")
	}
	d.reqs = append(d.reqs, req)
	return nil
}

func (d *fakeDownloader) requests() []scanner.DownloadRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]scanner.DownloadRequest(nil), d.reqs...)
}

type statusLog struct {
	mu  sync.Mutex
	all []Status
}

func (l *statusLog) add(st Status) {
	l.mu.Lock()
	l.all = append(l.all, st)
	l.mu.Unlock()
}

func (l *statusLog) last() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.all) == 0 {
		return Status{}
	}
	return l.all[len(l.all)-1]
}

func newTestOrchestrator(t *testing.T, host *fakeHost, dl *fakeDownloader, delay time.Duration) (*Orchestrator, *statusLog) {
	t.Helper()
	cfg := DefaultSecurityConfig()
	cfg.DownloadDelay = delay
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg.Prepare()
	o := NewOrchestrator(cfg, host, dl)
	log := &statusLog{}
	o.SetStatusCallback(log.add)
	return o, log
}

func pdfLinks(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://files.example/doc-%02d.pdf", i)
	}
	return out
}

func waitPhase(t *testing.T, o *Orchestrator, p Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for o.Phase() != p {
		if time.Now().After(deadline) {
			t.Fatalf("phase %s not reached, at %s", p, o.Phase())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestOrchestrator_ScanListsCandidates(t *testing.T) {
	host := &fakeHost{
		frames: [][]string{
			{"https://a.org/a.pdf", "https://a.org/A.PDF?x=1", "https://a.org/page.html", "https://a.org/a.pdf"},
			{"http://localhost/local.pdf", "https://b.org/b.pdf", "https://a.org/a.pdf"},
			{"https://c.org/never.pdf"},
		},
		failed: map[int]bool{2: true},
	}
	o, log := newTestOrchestrator(t, host, &fakeDownloader{}, 0)
	var stats AppStats
	o.SetStats(&stats)

	res, err := o.Scan(context.Background(), "pdf")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if o.Phase() != PhaseListed {
		t.Fatalf("expected Listed, got %s", o.Phase())
	}
	want := []string{"https://a.org/a.pdf", "https://a.org/A.PDF?x=1", "https://b.org/b.pdf"}
	got := o.Candidates()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if res.Frames != 3 || res.Matched != 4 || res.Kept != 3 || res.Dropped != 1 || res.Tab.ID != "tab-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if stats.FramesFailed.Load() != 1 || stats.Candidates.Load() != 3 {
		t.Fatalf("unexpected stats failed=%d candidates=%d", stats.FramesFailed.Load(), stats.Candidates.Load())
	}
	if st := log.last(); st.Kind != StatusSuccess || st.Text != "Found 3 files" {
		t.Fatalf("unexpected status %+v", st)
	}
	if log.all[0].Kind != StatusInfo {
		t.Fatalf("scan must start with an info status, got %+v", log.all[0])
	}
	if n, total := o.Stats(); n != 0 || total != 3 {
		t.Fatalf("nothing is selected after a scan, got %d of %d", n, total)
	}
}

func TestOrchestrator_ScanEmpty(t *testing.T) {
	host := &fakeHost{frames: [][]string{{"https://a.org/x.html", "http://127.0.0.1/a.pdf"}}}
	o, log := newTestOrchestrator(t, host, &fakeDownloader{}, 0)

	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatalf("empty scan is not an error: %v", err)
	}
	if o.Phase() != PhaseIdle {
		t.Fatalf("expected Idle, got %s", o.Phase())
	}
	if st := log.last(); st.Kind != StatusError || st.Text != o.loc.T(MsgNoFiles) {
		t.Fatalf("unexpected status %+v", st)
	}
	if len(o.Candidates()) != 0 {
		t.Fatal("no candidates expected")
	}
}

func TestOrchestrator_ScanFailure(t *testing.T) {
	host := &fakeHost{execErr: errors.New("cannot access chrome:// URL")}
	o, log := newTestOrchestrator(t, host, &fakeDownloader{}, 0)

	_, err := o.Scan(context.Background(), "pdf")
	if !errors.Is(err, ErrScanFailure) {
		t.Fatalf("expected ErrScanFailure, got %v", err)
	}
	if o.Phase() != PhaseIdle {
		t.Fatalf("expected Idle, got %s", o.Phase())
	}
	st := log.last()
	if st.Kind != StatusError || st.Text != "Scan error: cannot access chrome:// URL" {
		t.Fatalf("unexpected status %+v", st)
	}

	host = &fakeHost{tabErr: errors.New("no active tab")}
	o, _ = newTestOrchestrator(t, host, &fakeDownloader{}, 0)
	if _, err := o.Scan(context.Background(), "pdf"); !errors.Is(err, ErrScanFailure) {
		t.Fatalf("expected ErrScanFailure, got %v", err)
	}
}

func TestOrchestrator_ScanUnknownType(t *testing.T) {
	host := &fakeHost{}
	o, _ := newTestOrchestrator(t, host, &fakeDownloader{}, 0)
	if _, err := o.Scan(context.Background(), "exe"); !errors.Is(err, ErrUnknownFileType) {
		t.Fatalf("expected ErrUnknownFileType, got %v", err)
	}
	if host.tabCalls != 0 || o.Phase() != PhaseIdle {
		t.Fatal("unknown type must not reach the host")
	}
}

func TestOrchestrator_Rescan(t *testing.T) {
	host := &fakeHost{frames: [][]string{pdfLinks(3)}}
	o, _ := newTestOrchestrator(t, host, &fakeDownloader{}, 0)
	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatal(err)
	}
	o.ToggleAll()

	host.frames = [][]string{pdfLinks(2)}
	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatal(err)
	}
	if n, total := o.Stats(); n != 0 || total != 2 {
		t.Fatalf("rescan must reset the list, got %d of %d", n, total)
	}
}

func TestOrchestrator_Selection(t *testing.T) {
	host := &fakeHost{frames: [][]string{pdfLinks(3)}}
	o, _ := newTestOrchestrator(t, host, &fakeDownloader{}, 0)
	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatal(err)
	}

	if err := o.Toggle(1); err != nil {
		t.Fatal(err)
	}
	if !o.IsSelected(1) || o.IsSelected(0) {
		t.Fatal("toggle failed")
	}
	if got := o.SelectionText(); got != "Selected 1 of 3 files" {
		t.Fatalf("unexpected counter %q", got)
	}

	// some checked: check all
	o.ToggleAll()
	if n, _ := o.Stats(); n != 3 {
		t.Fatalf("expected all checked, got %d", n)
	}
	// all checked: uncheck all
	o.ToggleAll()
	if n, _ := o.Stats(); n != 0 {
		t.Fatalf("expected none checked, got %d", n)
	}

	if err := o.SetSelected(3, true); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := o.Toggle(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}

	_ = o.SetSelected(2, true)
	_ = o.SetSelected(0, true)
	sel := o.Selected()
	if len(sel) != 2 || sel[0] != "https://files.example/doc-00.pdf" || sel[1] != "https://files.example/doc-02.pdf" {
		t.Fatalf("selection must keep list order, got %v", sel)
	}
	items := o.Checklist()
	if len(items) != 3 || !items[0].Checked || items[1].Checked || items[0].Label != "doc-00.pdf" {
		t.Fatalf("unexpected checklist %+v", items)
	}
}

func TestOrchestrator_DownloadNotListed(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeHost{}, &fakeDownloader{}, 0)
	if err := o.Download(context.Background()); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed, got %v", err)
	}
}

func TestOrchestrator_DownloadNoSelection(t *testing.T) {
	dl := &fakeDownloader{}
	o, log := newTestOrchestrator(t, &fakeHost{frames: [][]string{pdfLinks(2)}}, dl, 0)
	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatal(err)
	}
	if err := o.Download(context.Background()); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
	if st := log.last(); st.Kind != StatusError || st.Text != "Please select at least one file" {
		t.Fatalf("unexpected status %+v", st)
	}
	if o.Phase() != PhaseListed || len(dl.requests()) != 0 {
		t.Fatal("must stay listed without submitting")
	}
}

func TestOrchestrator_DownloadTooMany(t *testing.T) {
	dl := &fakeDownloader{}
	o, log := newTestOrchestrator(t, &fakeHost{frames: [][]string{pdfLinks(51)}}, dl, 0)
	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatal(err)
	}
	o.ToggleAll()
	if err := o.Download(context.Background()); !errors.Is(err, ErrTooManySelected) {
		t.Fatalf("expected ErrTooManySelected, got %v", err)
	}
	if st := log.last(); st.Kind != StatusError || st.Text != "You can download up to 50 files at a time" {
		t.Fatalf("unexpected status %+v", st)
	}
	if o.Phase() != PhaseListed || len(dl.requests()) != 0 {
		t.Fatal("must stay listed without submitting")
	}

	// exactly the maximum is fine
	_ = o.Toggle(50)
	if err := o.Download(context.Background()); err != nil {
		t.Fatalf("50 files must be accepted: %v", err)
	}
	if len(dl.requests()) != 50 {
		t.Fatalf("expected 50 submissions, got %d", len(dl.requests()))
	}
}

func TestOrchestrator_DownloadSpacing(t *testing.T) {
	const delay = 40 * time.Millisecond
	dl := &fakeDownloader{}
	links := []string{
		"https://a.org/one.pdf",
		"https://a.org/dir/two%20words.pdf?token=abc",
		"https://b.org/three<x>.pdf",
	}
	o, log := newTestOrchestrator(t, &fakeHost{frames: [][]string{links}}, dl, delay)
	var stats AppStats
	o.SetStats(&stats)
	var submitted []int
	o.SetSubmitCallback(func(i, total int, _ string) {
		if total != 3 {
			t.Errorf("unexpected total %d", total)
		}
		submitted = append(submitted, i)
	})

	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatal(err)
	}
	o.ToggleAll()

	start := time.Now()
	if err := o.Download(context.Background()); err != nil {
		t.Fatalf("download: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 2*delay-2*time.Millisecond {
		t.Fatalf("3 submissions took %s, want >= %s", elapsed, 2*delay)
	}
	for i := 1; i < len(dl.times); i++ {
		if gap := dl.times[i].Sub(dl.times[i-1]); gap < delay-time.Millisecond {
			t.Fatalf("gap %d was %s", i, gap)
		}
	}

	reqs := dl.requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(reqs))
	}
	wantNames := []string{"one.pdf", "two%20words.pdf_token=abc", "three_x_.pdf"}
	for i, r := range reqs {
		if r.URL != links[i] {
			t.Errorf("request %d out of order: %s", i, r.URL)
		}
		if r.Conflict != scanner.ConflictUniquify {
			t.Errorf("request %d conflict %q", i, r.Conflict)
		}
		if r.SuggestedName != wantNames[i] {
			t.Errorf("request %d name %q, want %q", i, r.SuggestedName, wantNames[i])
		}
	}
	if len(submitted) != 3 || stats.Submitted.Load() != 3 {
		t.Fatalf("expected 3 submit callbacks, got %v", submitted)
	}
	if o.Phase() != PhaseIdle {
		t.Fatalf("expected Idle, got %s", o.Phase())
	}
	if st := log.last(); st.Kind != StatusSuccess || st.Text != "Download finished!" {
		t.Fatalf("unexpected status %+v", st)
	}
	// progress messages
	var progress []string
	for _, st := range log.all {
		if st.Kind == StatusInfo {
			progress = append(progress, st.Text)
		}
	}
	if len(progress) != 4 || progress[1] != "Downloading file 1 of 3..." || progress[3] != "Downloading file 3 of 3..." {
		t.Fatalf("unexpected progress statuses %v", progress)
	}
	// the list survives for display
	if len(o.Candidates()) != 3 {
		t.Fatal("candidates must remain after download")
	}
	if err := o.Download(context.Background()); !errors.Is(err, ErrNotListed) {
		t.Fatalf("download after finish needs a new scan, got %v", err)
	}
}

func TestOrchestrator_SubmitErrorContinues(t *testing.T) {
	links := pdfLinks(3)
	dl := &fakeDownloader{reject: map[string]bool{links[1]: true}}
	o, log := newTestOrchestrator(t, &fakeHost{frames: [][]string{links}}, dl, 0)
	var stats AppStats
	o.SetStats(&stats)
	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatal(err)
	}
	o.ToggleAll()
	if err := o.Download(context.Background()); err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(dl.requests()) != 2 || stats.Submitted.Load() != 2 {
		t.Fatalf("expected 2 accepted submissions, got %d", len(dl.requests()))
	}
	if log.last().Kind != StatusSuccess {
		t.Fatal("loop must finish with success")
	}
}

func TestOrchestrator_DownloadReentry(t *testing.T) {
	dl := &fakeDownloader{release: make(chan struct{})}
	o, _ := newTestOrchestrator(t, &fakeHost{frames: [][]string{pdfLinks(2)}}, dl, 0)
	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatal(err)
	}
	o.ToggleAll()

	done := make(chan error, 1)
	go func() { done <- o.Download(context.Background()) }()
	waitPhase(t, o, PhaseDownloading)

	if err := o.Download(context.Background()); !errors.Is(err, ErrDownloadInProgress) {
		t.Fatalf("expected ErrDownloadInProgress, got %v", err)
	}
	if _, err := o.Scan(context.Background(), "pdf"); !errors.Is(err, ErrDownloadInProgress) {
		t.Fatalf("scan during download: %v", err)
	}
	if !o.Phase().IsBusy() {
		t.Fatal("controls must be disabled while downloading")
	}

	close(dl.release)
	if err := <-done; err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(dl.requests()) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(dl.requests()))
	}
}

func TestOrchestrator_ScanReentry(t *testing.T) {
	host := &fakeHost{frames: [][]string{pdfLinks(1)}, release: make(chan struct{}), started: make(chan struct{})}
	o, _ := newTestOrchestrator(t, host, &fakeDownloader{}, 0)

	done := make(chan error, 1)
	go func() {
		_, err := o.Scan(context.Background(), "pdf")
		done <- err
	}()
	<-host.started
	if _, err := o.Scan(context.Background(), "pdf"); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("expected ErrScanInProgress, got %v", err)
	}
	if err := o.Download(context.Background()); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed while scanning, got %v", err)
	}
	close(host.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if o.Phase() != PhaseListed {
		t.Fatalf("expected Listed, got %s", o.Phase())
	}
}

func TestOrchestrator_DownloadCancelled(t *testing.T) {
	dl := &fakeDownloader{}
	o, _ := newTestOrchestrator(t, &fakeHost{frames: [][]string{pdfLinks(3)}}, dl, time.Hour)
	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatal(err)
	}
	o.ToggleAll()

	ctx, cancel := context.WithCancel(context.Background())
	o.SetSubmitCallback(func(int, int, string) { cancel() })
	if err := o.Download(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(dl.requests()) != 1 {
		t.Fatalf("expected 1 submission before cancel, got %d", len(dl.requests()))
	}
	if o.Phase() != PhaseIdle {
		t.Fatalf("expected Idle, got %s", o.Phase())
	}
}

func TestOrchestrator_Localized(t *testing.T) {
	o, log := newTestOrchestrator(t, &fakeHost{frames: [][]string{pdfLinks(1)}}, &fakeDownloader{}, 0)
	o.SetLocalizer(NewLocalizer("he"))
	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatal(err)
	}
	if st := log.last(); st.Text != "נמצאו 1 קבצים" {
		t.Fatalf("unexpected status %q", st.Text)
	}
	_ = o.Download(context.Background())
	if st := log.last(); st.Text != "אנא בחר לפחות קובץ אחד" {
		t.Fatalf("unexpected status %q", st.Text)
	}
}

func TestOrchestrator_ScanLogsPattern(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	prev := logrus.GetLevel()
	logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetLevel(prev)

	o, _ := newTestOrchestrator(t, &fakeHost{frames: [][]string{pdfLinks(1)}}, &fakeDownloader{}, 0)
	if _, err := o.Scan(context.Background(), "pdf"); err != nil {
		t.Fatal(err)
	}
	for _, e := range hook.AllEntries() {
		if e.Message != "scan complete" {
			continue
		}
		if e.Data["pattern"] != `(?i)\.pdf(\?.*)?$` {
			t.Fatalf("unexpected pattern field %v", e.Data["pattern"])
		}
		return
	}
	t.Fatal("scan complete entry not logged")
}
