package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/shellfw/internal/log"
	"github.com/zjrosen/shellfw/internal/tracing"
)

// Observer receives the lifecycle of one streamed command. Callbacks are
// invoked from the stream's read goroutine, in strict order: OnStart once,
// OnLine per output line in arrival order, then exactly one of OnStop or
// OnDied, after which no further callbacks fire.
type Observer interface {
	// OnStart fires once, immediately after the command has been written
	// to the shell.
	OnStart()

	// OnLine fires for each output line as it arrives.
	OnLine(line string)

	// OnStop fires when the command finished and its exit code could be
	// read. Terminal.
	OnStop(exitCode int)

	// OnDied fires when the connection was severed before an exit code
	// could be read, e.g. the shell was killed externally. Terminal.
	OnDied()
}

// Stream is a persistent shell connection dedicated to one long-running
// command whose output is observed incrementally. A Stream is single-shot:
// after its terminal callback it is closed for good, and re-issuing a
// command requires a new Stream. That rule is what guarantees the stream
// never writes to a process that may already be dead.
type Stream struct {
	proc   *Process
	obs    Observer
	tracer trace.Tracer

	privileged bool
	started    atomic.Bool
	terminal   sync.Once
	done       chan struct{} // Closed after the terminal callback
}

// NewStream spawns a dedicated shell for streaming. The observer is fixed
// for the stream's lifetime; a nil observer fails with ErrInvalidArgument
// before any process is spawned.
func NewStream(privileged bool, obs Observer, opts ...Option) (*Stream, error) {
	if obs == nil {
		return nil, fmt.Errorf("%w: nil observer", ErrInvalidArgument)
	}

	st := newSettings(opts...)
	proc, err := Spawn(context.Background(), st.spawnConfig(privileged))
	if err != nil {
		return nil, err
	}

	log.Info(log.CatStream, "stream opened", "pid", proc.PID(), "privileged", privileged)
	return &Stream{
		proc:       proc,
		obs:        obs,
		tracer:     otel.Tracer(tracing.TracerName),
		privileged: privileged,
		done:       make(chan struct{}),
	}, nil
}

// Execute writes the command to the shell and starts the read loop. There
// is no variant fallback: streaming targets long-running commands where
// trying alternatives is not meaningful.
//
// A second Execute fails with ErrAlreadyExecuted. Execute on a stream whose
// process is gone fails with ErrSessionClosed; no callbacks fire for a
// failed Execute.
func (s *Stream) Execute(command string) error {
	if strings.ContainsAny(command, "\n\r") {
		return fmt.Errorf("%w: command contains a line break", ErrInvalidArgument)
	}
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("%w: blank command", ErrInvalidArgument)
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyExecuted
	}
	if !s.proc.Alive() {
		return ErrSessionClosed
	}

	token := uuid.NewString()

	// The command, its completion marker, and a trailing exit: once the
	// command finishes the shell reports the status and leaves, so the
	// read loop sees EOF instead of an idle shell.
	if err := s.proc.WriteLine(command); err != nil {
		return err
	}
	if err := s.proc.WriteLine("echo " + token + " $?"); err != nil {
		return err
	}
	if err := s.proc.WriteLine("exit"); err != nil {
		return err
	}

	log.Debug(log.CatStream, "command written", "pid", s.proc.PID(), "command", command)
	s.obs.OnStart()

	go s.readLoop(command, token)
	return nil
}

// readLoop forwards output lines to the observer until the completion
// marker or EOF, then delivers the terminal callback exactly once.
func (s *Stream) readLoop(command, token string) {
	_, span := s.tracer.Start(context.Background(), "stream.execute",
		trace.WithAttributes(attribute.Bool("shell.privileged", s.privileged)))
	defer span.End()

	defer close(s.done)

	for line := range s.proc.Lines() {
		idx := strings.Index(line, token)
		if idx < 0 {
			s.obs.OnLine(line)
			continue
		}

		// Tail output without a trailing newline ends up glued to the
		// marker line; hand it to the observer before finishing.
		if head := line[:idx]; head != "" {
			s.obs.OnLine(head)
		}

		fields := strings.Fields(line[idx+len(token):])
		if code, err := parseExitStatus(fields); err == nil {
			span.SetAttributes(attribute.Int("shell.exit_code", code))
			s.fireStop(code)
		} else {
			// Marker arrived mangled; treat it like a severed connection
			// rather than inventing an exit code.
			log.Warn(log.CatStream, "malformed completion marker", "pid", s.proc.PID(), "line", line)
			s.fireDied()
		}

		// Drain whatever the shell still prints on its way out.
		for range s.proc.Lines() { //nolint:revive // intentional drain
		}
		break
	}

	// EOF without a marker: the shell or its command was torn down.
	s.fireDied()
	s.proc.Close()
	log.Debug(log.CatStream, "stream finished", "pid", s.proc.PID(), "command", command)
}

func parseExitStatus(fields []string) (int, error) {
	if len(fields) == 0 {
		return 0, fmt.Errorf("missing exit status")
	}
	return strconv.Atoi(fields[0])
}

// fireStop delivers OnStop unless a terminal callback already fired.
func (s *Stream) fireStop(code int) {
	s.terminal.Do(func() {
		log.Info(log.CatStream, "stream stopped", "pid", s.proc.PID(), "code", code)
		s.obs.OnStop(code)
	})
}

// fireDied delivers OnDied unless a terminal callback already fired.
func (s *Stream) fireDied() {
	s.terminal.Do(func() {
		log.Info(log.CatStream, "stream died", "pid", s.proc.PID())
		s.obs.OnDied()
	})
}

// Stop kills the underlying shell. Safe to call at any time, any number of
// times, and concurrently with natural exit: the command's observer still
// receives exactly one terminal callback, delivered by the read loop (OnDied
// when the kill prevented exit-status retrieval, OnStop when the status had
// already been read).
func (s *Stream) Stop() {
	s.proc.Kill()
}

// Done returns a channel closed after the terminal callback has been
// delivered. Useful for composing external timeouts around a stream.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Running reports whether the stream's process is still alive.
func (s *Stream) Running() bool {
	return s.proc.Alive()
}

// PID returns the underlying shell's process ID.
func (s *Stream) PID() int {
	return s.proc.PID()
}
