package internal

import (
	"sync/atomic"
	"time"
)

// AppStats atomic counters for totals
type AppStats struct {
	start            time.Time
	FramesScanned    atomic.Int64
	FramesFailed     atomic.Int64
	Candidates       atomic.Int64
	Dropped          atomic.Int64
	Submitted        atomic.Int64
	Completed        atomic.Int64
	DownloadFailures atomic.Int64
}

func (s *AppStats) Start() {
	s.start = time.Now()
}

func (s *AppStats) Elapsed() time.Duration {
	return time.Since(s.start)
}
