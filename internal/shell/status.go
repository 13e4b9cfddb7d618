package shell

// ProcessStatus represents the current state of a shell child process.
type ProcessStatus int

const (
	// StatusPending indicates the process has not yet started.
	StatusPending ProcessStatus = iota
	// StatusRunning indicates the process is actively running.
	StatusRunning
	// StatusExited indicates the process exited on its own.
	StatusExited
	// StatusKilled indicates the process was terminated via Kill.
	StatusKilled
)

// String returns a human-readable representation of the status.
func (s ProcessStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusExited:
		return "exited"
	case StatusKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the process has stopped for good.
func (s ProcessStatus) IsTerminal() bool {
	return s == StatusExited || s == StatusKilled
}
