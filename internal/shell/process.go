// Package shell provides resilient command execution against a persistent
// child shell. A Session runs one-shot commands with multi-variant fallback
// over a sentinel line protocol; a Stream follows one long-running command,
// pushing output to an observer as it arrives. Both own a single Process,
// the thin wrapper around the spawned shell binary.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	gops "github.com/shirou/gopsutil/v3/process"

	"github.com/zjrosen/shellfw/internal/log"
)

// DefaultStderrCapacity is the default number of stderr lines retained.
const DefaultStderrCapacity = 100

// outputChannelBuffer bounds how far the stdout pump can run ahead of the
// consumer before it blocks.
const outputChannelBuffer = 256

// CommandFactoryFunc creates an exec.Cmd. Tests use this to substitute the
// real shell binary.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// SpawnConfig describes the shell child process to create.
type SpawnConfig struct {
	// Binary is the shell interpreter to spawn (e.g. "sh" or "su").
	Binary string
	// Args are passed to the binary.
	Args []string
	// Env entries are appended to os.Environ().
	Env []string
	// Dir is the working directory; empty means inherit.
	Dir string
	// StderrCapacity bounds the retained stderr ring buffer.
	// Zero means DefaultStderrCapacity.
	StderrCapacity int
	// CommandFactory substitutes exec.CommandContext, for tests.
	CommandFactory CommandFactoryFunc
}

// Process owns one spawned shell interpreter and its standard streams.
// Command text is written to stdin via WriteLine; stdout arrives line by
// line on the Lines channel, which closes when the process goes away.
// That close is the only death signal readers need.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	lines     chan string
	stderrBuf *OutputBuffer

	ctx    context.Context
	cancel context.CancelFunc

	writeMu  sync.Mutex
	mu       sync.RWMutex
	status   ProcessStatus
	exitCode int

	reaped chan struct{} // Closed once the process has been waited on
	wg     sync.WaitGroup
}

// Spawn starts the shell binary described by cfg and wires up its pipes.
// On any failure every created resource is released and the returned error
// wraps ErrSpawnFailed; there is no half-open Process.
func Spawn(ctx context.Context, cfg SpawnConfig) (*Process, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("%w: no shell binary configured", ErrInvalidArgument)
	}

	capacity := cfg.StderrCapacity
	if capacity <= 0 {
		capacity = DefaultStderrCapacity
	}

	procCtx, cancel := context.WithCancel(ctx)

	var cmd *exec.Cmd
	if cfg.CommandFactory != nil {
		cmd = cfg.CommandFactory(procCtx, cfg.Binary, cfg.Args...)
	} else {
		// #nosec G204 -- binary and args come from SpawnConfig, not user input
		cmd = exec.CommandContext(procCtx, cfg.Binary, cfg.Args...)
	}
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}

	// The shell's own children (the commands it runs) inherit our stdout
	// pipe. Killing only the shell would leave them holding the pipe open
	// and the read loop would never see EOF, so put the shell in its own
	// process group and kill the whole group on cancel.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdin io.WriteCloser
	var stdout, stderr io.ReadCloser

	cleanup := func() {
		cancel()
		if stdin != nil {
			_ = stdin.Close()
		}
		if stdout != nil {
			_ = stdout.Close()
		}
		if stderr != nil {
			_ = stderr.Close()
		}
	}

	var err error
	if stdin, err = cmd.StdinPipe(); err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrSpawnFailed, err)
	}
	if stdout, err = cmd.StdoutPipe(); err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawnFailed, err)
	}
	if stderr, err = cmd.StderrPipe(); err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrSpawnFailed, err)
	}

	log.Debug(log.CatProc, "spawning shell", "binary", cfg.Binary, "args", fmt.Sprint(cfg.Args))

	if err = cmd.Start(); err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: starting %s: %v", ErrSpawnFailed, cfg.Binary, err)
	}

	p := &Process{
		cmd:       cmd,
		stdin:     stdin,
		stdout:    stdout,
		stderr:    stderr,
		lines:     make(chan string, outputChannelBuffer),
		stderrBuf: NewOutputBuffer(capacity),
		ctx:       procCtx,
		cancel:    cancel,
		status:    StatusRunning,
		reaped:    make(chan struct{}),
	}

	p.wg.Add(3)
	go p.pumpStdout()
	go p.pumpStderr()
	go p.waitForExit()

	return p, nil
}

// pumpStdout reads stdout lines into the lines channel. The channel is
// closed when the pipe reaches EOF, i.e. when the process is gone.
func (p *Process) pumpStdout() {
	defer p.wg.Done()
	defer close(p.lines)

	scanner := bufio.NewScanner(p.stdout)
	// Large outputs: 64KB initial, 1MB max line length.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		select {
		case p.lines <- scanner.Text():
		case <-p.ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.Debug(log.CatProc, "stdout scanner error", "pid", p.PID(), "error", err)
	}
}

// pumpStderr retains stderr lines in the ring buffer.
func (p *Process) pumpStderr() {
	defer p.wg.Done()

	scanner := bufio.NewScanner(p.stderr)
	for scanner.Scan() {
		line := scanner.Text()
		p.stderrBuf.Write(line)
		log.Debug(log.CatProc, "stderr", "pid", p.PID(), "line", line)
	}
}

// waitForExit reaps the process and records its exit code.
func (p *Process) waitForExit() {
	defer p.wg.Done()
	defer close(p.reaped)

	err := p.cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	p.exitCode = code

	// Kill already set the terminal status; don't override it.
	if p.status != StatusKilled {
		p.status = StatusExited
	}
	log.Debug(log.CatProc, "shell exited", "pid", p.PID(), "code", code, "status", p.status)
}

// WriteLine writes one line of command text to the shell's stdin.
// Writing to a dead process returns an error wrapping ErrConnectionDied;
// a Process is never written to once it is known to be dead.
func (p *Process) WriteLine(line string) error {
	if !p.Alive() {
		return fmt.Errorf("%w: process is not running", ErrConnectionDied)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		return fmt.Errorf("%w: writing command: %v", ErrConnectionDied, err)
	}
	return nil
}

// Lines returns the channel of stdout lines. The channel is closed when the
// process dies or is killed.
func (p *Process) Lines() <-chan string {
	return p.lines
}

// DrainStderr returns and clears the retained stderr lines.
func (p *Process) DrainStderr() []string {
	return p.stderrBuf.Drain()
}

// Status returns the current process status. Thread-safe.
func (p *Process) Status() ProcessStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Alive reports whether the shell can still be talked to. Beyond the status
// check it probes the OS for the PID, catching processes killed externally
// before the reaper has run.
func (p *Process) Alive() bool {
	if p.Status() != StatusRunning {
		return false
	}
	if p.cmd.Process == nil {
		return false
	}
	exists, err := gops.PidExists(int32(p.cmd.Process.Pid))
	return err == nil && exists
}

// PID returns the OS process ID, or -1 if not started.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// ExitCode returns the process exit code. The second return is false until
// the process has been reaped.
func (p *Process) ExitCode() (int, bool) {
	select {
	case <-p.reaped:
	default:
		return 0, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitCode, true
}

// Kill terminates the process group. It is a no-op when the process is
// already in a terminal state; calling it any number of times is safe.
func (p *Process) Kill() {
	p.mu.Lock()
	if p.status.IsTerminal() {
		p.mu.Unlock()
		return
	}
	p.status = StatusKilled
	p.mu.Unlock()

	log.Debug(log.CatProc, "killing shell", "pid", p.PID())
	p.cancel()
}

// Wait blocks until the process has been reaped and returns its exit code.
func (p *Process) Wait() int {
	<-p.reaped
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitCode
}

// Close kills the process (if still running), waits for the pumps to wind
// down, and releases the I/O handles. Idempotent.
func (p *Process) Close() {
	p.Kill()
	p.wg.Wait()
	p.writeMu.Lock()
	_ = p.stdin.Close()
	p.writeMu.Unlock()
}
