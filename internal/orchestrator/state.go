package orchestrator

// State is the orchestrator's position in a sync pass.
type State int

const (
	Idle State = iota
	Walking
	Detecting
	Uploading
	Done
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Walking:
		return "walking"
	case Detecting:
		return "detecting"
	case Uploading:
		return "uploading"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Active reports whether a pass is in progress.
func (s State) Active() bool {
	return s == Walking || s == Detecting || s == Uploading
}

// ProgressState is the coarse status reported to hosts.
type ProgressState string

const (
	NotStarted ProgressState = "notStarted"
	InProgress ProgressState = "uploading"
	Indexing   ProgressState = "indexing"
	Complete   ProgressState = "done"
)

// Progress is what a host shows for a root.
type Progress struct {
	State    ProgressState `json:"state"`
	Fraction float64       `json:"fraction"`
}
