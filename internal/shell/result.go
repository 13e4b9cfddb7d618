package shell

import "github.com/zjrosen/shellfw/internal/lines"

// VariantNone is the Variant value when no command variant satisfied the
// success check. The Result then carries the last attempt's exit code and
// output so the caller can diagnose the final failure.
const VariantNone = -1

// Result is the outcome of one Session execution. Immutable once produced.
type Result struct {
	// ExitCode is the shell exit status of the successful variant, or of
	// the last attempted variant when all failed.
	ExitCode int

	// Variant is the index of the variant that succeeded, or VariantNone.
	Variant int

	// Output holds the stdout lines captured for the reported variant.
	Output lines.Lines

	// Stderr holds stderr lines observed during the reported attempt.
	// Attribution is best-effort: stderr is not part of the line protocol.
	Stderr []string
}

// Ok reports whether a variant succeeded.
func (r *Result) Ok() bool {
	return r.Variant != VariantNone
}

// SuccessCheck decides whether an exit code counts as success.
type SuccessCheck func(exitCode int) bool

// ExecOption configures a single execution.
type ExecOption func(*execOptions)

type execOptions struct {
	okCheck SuccessCheck
}

func defaultExecOptions() execOptions {
	return execOptions{
		okCheck: func(code int) bool { return code == 0 },
	}
}

// WithSuccessCheck overrides the default exit-code-zero success check.
// Useful for commands where a non-zero status still means "worked", e.g.
// grep with no matches.
func WithSuccessCheck(fn SuccessCheck) ExecOption {
	return func(o *execOptions) {
		if fn != nil {
			o.okCheck = fn
		}
	}
}
