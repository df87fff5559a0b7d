package download

// State is the lifecycle state of a download task.
type State int

const (
	// StateQueued means the task exists but no worker has started transferring.
	StateQueued State = iota

	// StateDownloading means a worker owns the task and is moving bytes.
	StateDownloading

	// StatePaused means the transfer stopped with its partial data kept.
	StatePaused

	// StateCompleted means the file is fully present and verified at its target.
	StateCompleted

	// StateErrored means the transfer failed. See Snapshot.Err.
	StateErrored

	// StateCancelled means the user abandoned the transfer.
	StateCancelled
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateDownloading:
		return "downloading"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, bool) {
	for st := StateQueued; st <= StateCancelled; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

// Terminal reports whether the task instance can no longer change state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored || s == StateCancelled
}

// Active reports whether the task still holds its file identity.
// At most one active task exists per file.
func (s State) Active() bool {
	return s == StateQueued || s == StateDownloading || s == StatePaused
}
