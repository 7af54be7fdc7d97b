package internal

// Phase is the orchestrator's position in the scan/download cycle.
type Phase string

const (
	PhaseIdle        Phase = "Idle"
	PhaseScanning    Phase = "Scanning"
	PhaseListed      Phase = "Listed"
	PhaseDownloading Phase = "Downloading"
)

func (p Phase) String() string { return string(p) }

// IsBusy reports whether the action controls are disabled in this phase.
func (p Phase) IsBusy() bool {
	return p == PhaseScanning || p == PhaseDownloading
}

// StatusKind selects the status line styling.
type StatusKind string

const (
	StatusInfo    StatusKind = "info"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status is what the status line shows.
type Status struct {
	Kind StatusKind
	Text string
}
