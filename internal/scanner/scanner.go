// Package scanner holds the narrow host contracts the link scan runs against:
// a tab whose frames can each run an extraction script, and a download
// manager that accepts fire-and-forget submissions.
package scanner

import (
	"context"
)

// Tab is a handle to the page being inspected.
type Tab struct {
	ID  string
	URL string
}

// FrameScript runs once per frame over that frame's resolved link hrefs
// and returns what the frame contributes to the scan.
type FrameScript func(links []string) []string

// FrameResult is the outcome of running a FrameScript in one frame.
// A frame that could not be reached carries Err and no URLs.
type FrameResult struct {
	FrameURL string
	URLs     []string
	Err      error
}

// TabHost exposes the active tab and cross-frame script execution.
type TabHost interface {
	ActiveTab(ctx context.Context) (Tab, error)
	ExecuteInFrames(ctx context.Context, tab Tab, script FrameScript) ([]FrameResult, error)
}

// ConflictAction decides what happens when the target file already exists.
type ConflictAction string

const (
	ConflictUniquify  ConflictAction = "uniquify"
	ConflictOverwrite ConflictAction = "overwrite"
)

// DownloadRequest is a single submission to the download manager.
type DownloadRequest struct {
	URL           string
	SuggestedName string
	Conflict      ConflictAction
}

// Downloader accepts downloads. Submit returns once the request is queued;
// completion is not reported back to the caller.
type Downloader interface {
	Submit(ctx context.Context, req DownloadRequest) error
}
