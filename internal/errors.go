package internal

import "errors"

var (
	ErrUnknownFileType    = errors.New("unknown file type")
	ErrInvalidRule        = errors.New("invalid file type rule")
	ErrScanFailure        = errors.New("scan failed")
	ErrScanInProgress     = errors.New("scan already in progress")
	ErrNotListed          = errors.New("no scan results to download")
	ErrDownloadInProgress = errors.New("download already in progress")
	ErrNoSelection        = errors.New("no files selected")
	ErrTooManySelected    = errors.New("too many files selected")
	ErrIndexOutOfRange    = errors.New("candidate index out of range")
)
