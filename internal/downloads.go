package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"LinkGrab/internal/scanner"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
)

var ErrManagerClosed = errors.New("download manager closed")

// DownloadResult is reported when a submitted download ends.
type DownloadResult struct {
	URL      string
	Path     string
	Bytes    int64
	Duration time.Duration
	Err      error
}

// DownloadManager is the local stand-in for the browser download manager:
// Submit queues and returns, a worker pool does the transfers.
type DownloadManager struct {
	ctx     context.Context
	client  *Client
	dir     string
	maxName int
	stats   *AppStats

	pool *ants.Pool
	wg   sync.WaitGroup
	// mu orders Submit's wg.Add against Close's wg.Wait
	mu     sync.Mutex
	closed bool
	onDone func(DownloadResult)
}

// NewDownloadManager creates dir if needed. Transfers run under ctx, not
// under the context passed to Submit.
func NewDownloadManager(ctx context.Context, client *Client, dir string, workers, maxName int, stats *AppStats) (*DownloadManager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("download dir: %w", err)
	}
	if workers <= 0 {
		workers = 3
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	if stats == nil {
		stats = &AppStats{}
	}
	return &DownloadManager{ctx: ctx, client: client, dir: dir, maxName: maxName, stats: stats, pool: pool}, nil
}

// SetDoneCallback sets a hook called from worker goroutines.
func (m *DownloadManager) SetDoneCallback(fn func(DownloadResult)) { m.onDone = fn }

// Submit queues req without waiting for a free worker.
func (m *DownloadManager) Submit(_ context.Context, req scanner.DownloadRequest) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.wg.Add(1)
	m.mu.Unlock()
	go func() {
		if err := m.pool.Submit(func() {
			defer m.wg.Done()
			m.finish(m.transfer(req))
		}); err != nil {
			m.wg.Done()
			m.finish(DownloadResult{URL: req.URL, Err: err})
		}
	}()
	return nil
}

func (m *DownloadManager) finish(res DownloadResult) {
	fields := logrus.Fields{"url": res.URL, "file": res.Path, "bytes": res.Bytes, "took": res.Duration.Round(time.Millisecond)}
	if res.Err != nil {
		m.stats.DownloadFailures.Add(1)
		logrus.WithFields(fields).WithError(res.Err).Error("download failed")
	} else {
		m.stats.Completed.Add(1)
		logrus.WithFields(fields).Info("download complete")
	}
	if m.onDone != nil {
		m.onDone(res)
	}
}

func (m *DownloadManager) transfer(req scanner.DownloadRequest) DownloadResult {
	start := time.Now()
	res := DownloadResult{URL: req.URL}

	resp, err := m.client.Open(m.ctx, req.URL)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	name := DiskName(req.URL, m.maxName)
	if name == unknownFilename && req.SuggestedName != "" {
		name = DiskName("file:///"+req.SuggestedName, m.maxName)
	}
	f, path, err := createTarget(m.dir, name, req.Conflict)
	if err != nil {
		res.Err = err
		return res
	}
	res.Path = path

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		res.Err = err
		return res
	}
	res.Bytes = n
	res.Duration = time.Since(start)
	return res
}

// Wait blocks until every submitted download has ended.
func (m *DownloadManager) Wait() { m.wg.Wait() }

// Close stops accepting submissions, waits for running ones and frees the pool.
// Submit may be called concurrently with Close.
func (m *DownloadManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
	m.pool.Release()
}
