package shell

import "errors"

// Sentinel errors for the shell execution core. Callers match with errors.Is.
var (
	// ErrSpawnFailed is returned when the shell child process could not be
	// created, e.g. the privileged shell binary is missing. Fatal to the
	// Session or Stream being constructed.
	ErrSpawnFailed = errors.New("shell: spawn failed")

	// ErrSessionClosed is returned for operations attempted after Close,
	// or on a session whose process is no longer alive.
	ErrSessionClosed = errors.New("shell: session closed")

	// ErrConnectionDied is returned when the child process went away in the
	// middle of a command, before the completion marker could be read.
	// Never reported as a normal command failure.
	ErrConnectionDied = errors.New("shell: connection died")

	// ErrInvalidArgument is returned for caller errors detected before any
	// process interaction: an empty variant list, a variant containing a
	// newline, or a nil stream observer.
	ErrInvalidArgument = errors.New("shell: invalid argument")

	// ErrAlreadyExecuted is returned when Execute is called a second time
	// on a Stream. Streams are single-shot.
	ErrAlreadyExecuted = errors.New("shell: stream already executed")
)
