package shell

// Option configures a Session or Stream at construction time.
type Option func(*settings)

type settings struct {
	shellBinary    string
	shellArgs      []string
	suBinary       string
	suArgs         []string
	env            []string
	dir            string
	stderrCapacity int
	commandFactory CommandFactoryFunc
}

func newSettings(opts ...Option) settings {
	st := settings{
		shellBinary: "sh",
		suBinary:    "su",
	}
	for _, opt := range opts {
		opt(&st)
	}
	return st
}

// spawnConfig resolves the settings into a SpawnConfig for the requested
// privilege level.
func (st settings) spawnConfig(privileged bool) SpawnConfig {
	binary, args := st.shellBinary, st.shellArgs
	if privileged {
		binary, args = st.suBinary, st.suArgs
	}
	return SpawnConfig{
		Binary:         binary,
		Args:           args,
		Env:            st.env,
		Dir:            st.dir,
		StderrCapacity: st.stderrCapacity,
		CommandFactory: st.commandFactory,
	}
}

// WithShellBinary overrides the unprivileged shell invocation (default "sh").
func WithShellBinary(binary string, args ...string) Option {
	return func(st *settings) {
		st.shellBinary = binary
		st.shellArgs = args
	}
}

// WithSuBinary overrides the privileged shell invocation (default "su").
func WithSuBinary(binary string, args ...string) Option {
	return func(st *settings) {
		st.suBinary = binary
		st.suArgs = args
	}
}

// WithEnv appends environment variables ("KEY=VALUE") to the child's
// environment.
func WithEnv(env ...string) Option {
	return func(st *settings) {
		st.env = append(st.env, env...)
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(st *settings) {
		st.dir = dir
	}
}

// WithStderrCapacity bounds the retained stderr ring buffer.
func WithStderrCapacity(capacity int) Option {
	return func(st *settings) {
		st.stderrCapacity = capacity
	}
}

// WithCommandFactory substitutes the exec.Cmd constructor, for tests.
func WithCommandFactory(fn CommandFactoryFunc) Option {
	return func(st *settings) {
		st.commandFactory = fn
	}
}
