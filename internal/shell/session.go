package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/shellfw/internal/lines"
	"github.com/zjrosen/shellfw/internal/log"
	"github.com/zjrosen/shellfw/internal/tracing"
)

// Callback receives the outcome of an asynchronous execution.
// It runs on the session's worker goroutine, never on the submitting one,
// so callback code must not assume caller-thread affinity.
type Callback func(result *Result, err error)

type job struct {
	variants []string
	opts     []ExecOption
	callback Callback
}

// Session is a persistent shell connection for one-shot or sequential
// command execution. It owns exactly one child shell process; at most one
// command executes against that process at any instant, with concurrent
// callers queueing on an internal mutex.
//
// The shell is spawned eagerly at construction, which is where spawn
// failures surface. A Session whose process has died is not respawned;
// callers create a new Session.
type Session struct {
	proc       *Process
	privileged bool
	tracer     trace.Tracer

	mu sync.Mutex // serializes command execution on the wire

	qmu      sync.Mutex
	queue    []*job
	closed   bool
	kick     chan struct{}
	closedCh chan struct{}

	closeOnce  sync.Once
	workerDone chan struct{}
}

// NewSession spawns a shell (privileged via the su helper when requested)
// and starts the async worker. Construction fails with an error wrapping
// ErrSpawnFailed when the shell cannot be started.
func NewSession(privileged bool, opts ...Option) (*Session, error) {
	st := newSettings(opts...)

	proc, err := Spawn(context.Background(), st.spawnConfig(privileged))
	if err != nil {
		return nil, err
	}

	s := &Session{
		proc:       proc,
		privileged: privileged,
		tracer:     otel.Tracer(tracing.TracerName),
		kick:       make(chan struct{}, 1),
		closedCh:   make(chan struct{}),
		workerDone: make(chan struct{}),
	}
	go s.worker()

	log.Info(log.CatSession, "session opened", "pid", proc.PID(), "privileged", privileged)
	return s, nil
}

// IsOpen reports whether the session can still execute commands.
func (s *Session) IsOpen() bool {
	s.qmu.Lock()
	closed := s.closed
	s.qmu.Unlock()
	return !closed && s.proc.Alive()
}

// Privileged reports whether this session runs the elevated shell.
func (s *Session) Privileged() bool {
	return s.privileged
}

// PID returns the underlying shell's process ID.
func (s *Session) PID() int {
	return s.proc.PID()
}

// Execute runs the command variants in order against the shell, stopping at
// the first one whose exit code satisfies the success check (exit 0 unless
// overridden with WithSuccessCheck). It blocks the caller until a variant
// succeeds or all have been attempted.
//
// When every variant fails, the Result carries Variant == VariantNone along
// with the LAST attempt's exit code and output; attempts are never mixed.
// Errors are reserved for protocol-level problems: ErrInvalidArgument for a
// bad variant list, ErrSessionClosed when the session is closed or dead,
// ErrConnectionDied when the shell vanishes mid-command.
func (s *Session) Execute(variants []string, opts ...ExecOption) (*Result, error) {
	if err := validateVariants(variants); err != nil {
		return nil, err
	}
	o := defaultExecOptions()
	for _, opt := range opts {
		opt(&o)
	}

	_, span := s.tracer.Start(context.Background(), "session.execute",
		trace.WithAttributes(
			attribute.Int("shell.variant_count", len(variants)),
			attribute.Bool("shell.privileged", s.privileged),
		))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() || !s.proc.Alive() {
		span.SetStatus(codes.Error, "session closed")
		return nil, ErrSessionClosed
	}

	var lastCode int
	var lastOut []string
	var lastStderr []string

	for i, variant := range variants {
		s.proc.DrainStderr() // stderr left over from a previous command is not ours

		code, out, err := s.runVariant(variant)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "connection died")
			return nil, err
		}
		stderr := s.proc.DrainStderr()

		if o.okCheck(code) {
			span.SetAttributes(
				attribute.Int("shell.variant", i),
				attribute.Int("shell.exit_code", code),
			)
			log.Debug(log.CatSession, "command succeeded", "variant", i, "code", code, "lines", len(out))
			return &Result{ExitCode: code, Variant: i, Output: lines.New(out), Stderr: stderr}, nil
		}

		log.Debug(log.CatSession, "variant failed", "variant", i, "code", code)
		lastCode, lastOut, lastStderr = code, out, stderr
	}

	span.SetAttributes(
		attribute.Int("shell.variant", VariantNone),
		attribute.Int("shell.exit_code", lastCode),
	)
	log.Info(log.CatSession, "all variants failed", "attempts", len(variants), "lastCode", lastCode)
	return &Result{ExitCode: lastCode, Variant: VariantNone, Output: lines.New(lastOut), Stderr: lastStderr}, nil
}

// runVariant writes one command plus its completion marker and reads output
// until the marker comes back. The marker token is random per call so it
// cannot collide with command output, and the shell's status variable rides
// on the marker line, which is how the exit code gets back to us.
func (s *Session) runVariant(variant string) (int, []string, error) {
	token := uuid.NewString()

	if err := s.proc.WriteLine(variant); err != nil {
		return 0, nil, s.deathError(err)
	}
	if err := s.proc.WriteLine("echo " + token + " $?"); err != nil {
		return 0, nil, s.deathError(err)
	}

	var out []string
	for line := range s.proc.Lines() {
		idx := strings.Index(line, token)
		if idx < 0 {
			out = append(out, line)
			continue
		}

		// Output not ending in a newline leaves its tail glued to the
		// marker line; split it back out.
		if head := line[:idx]; head != "" {
			out = append(out, head)
		}

		fields := strings.Fields(line[idx+len(token):])
		if len(fields) == 0 {
			return 0, out, fmt.Errorf("%w: completion marker missing exit status", ErrConnectionDied)
		}
		code, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, out, fmt.Errorf("%w: unparseable exit status %q", ErrConnectionDied, fields[0])
		}
		return code, out, nil
	}

	// The output channel closed: the shell went away before the marker.
	return 0, out, s.deathError(nil)
}

func (s *Session) deathError(cause error) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if cause != nil {
		return cause
	}
	return fmt.Errorf("%w: shell exited before the completion marker", ErrConnectionDied)
}

// ExecuteAsync queues the variants for execution on the session worker and
// returns immediately. Submissions against one Session execute one at a
// time in submission order, and callbacks fire in that same order.
//
// A job still queued when the session closes has its callback invoked with
// ErrSessionClosed; callbacks are never silently dropped.
func (s *Session) ExecuteAsync(variants []string, callback Callback, opts ...ExecOption) error {
	if callback == nil {
		return fmt.Errorf("%w: nil callback", ErrInvalidArgument)
	}
	if err := validateVariants(variants); err != nil {
		return err
	}

	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		go callback(nil, ErrSessionClosed)
		return nil
	}
	s.queue = append(s.queue, &job{variants: variants, opts: opts, callback: callback})
	s.qmu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
	return nil
}

// worker drains the async queue one job at a time. It exits once the
// session is closed and every remaining job has been answered.
func (s *Session) worker() {
	defer close(s.workerDone)

	for {
		select {
		case <-s.kick:
		case <-s.closedCh:
		}

		for {
			s.qmu.Lock()
			if len(s.queue) == 0 {
				done := s.closed
				s.qmu.Unlock()
				if done {
					return
				}
				break
			}
			j := s.queue[0]
			s.queue = s.queue[1:]
			s.qmu.Unlock()

			res, err := s.Execute(j.variants, j.opts...)
			j.callback(res, err)
		}
	}
}

func (s *Session) isClosed() bool {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return s.closed
}

// Close terminates the shell process, releases its I/O handles, and waits
// for the async worker to answer any queued jobs with ErrSessionClosed.
// Idempotent: a second Close is a no-op. Must not be called from inside an
// async callback, which runs on the worker being waited for.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.qmu.Lock()
		s.closed = true
		s.qmu.Unlock()
		close(s.closedCh)

		// Politely ask the shell to leave before killing the group. The
		// write fails harmlessly if the process is already gone.
		_ = s.proc.WriteLine("exit")
		s.proc.Close()
		<-s.workerDone

		log.Info(log.CatSession, "session closed", "pid", s.proc.PID())
	})
	return nil
}

// validateVariants rejects caller errors before any process interaction.
func validateVariants(variants []string) error {
	if len(variants) == 0 {
		return fmt.Errorf("%w: empty variant list", ErrInvalidArgument)
	}
	for i, v := range variants {
		if strings.ContainsAny(v, "\n\r") {
			return fmt.Errorf("%w: variant %d contains a line break", ErrInvalidArgument, i)
		}
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: variant %d is blank", ErrInvalidArgument, i)
		}
	}
	return nil
}
