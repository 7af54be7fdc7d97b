// Package ui renders the scan to a terminal: coloured status lines, the
// candidate checklist (static or keyboard driven) and download progress.
package ui
