package toolbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/shellfw/internal/lines"
	"github.com/zjrosen/shellfw/internal/shell"
)

// fakeExecutor records executions and replays canned results.
type fakeExecutor struct {
	calls   [][]string
	results []*shell.Result
	err     error
}

func (f *fakeExecutor) Execute(variants []string, opts ...shell.ExecOption) (*shell.Result, error) {
	f.calls = append(f.calls, variants)
	if f.err != nil {
		return nil, f.err
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res, nil
}

func TestVariants_CoversAllToolboxes(t *testing.T) {
	assert.Equal(t,
		[]string{"df -h", "busybox df -h", "toolbox df -h"},
		Variants("df -h"))
}

func TestCommand_QuotesArguments(t *testing.T) {
	assert.Equal(t, "ls 'a dir'", Command("ls", "a dir"))
	assert.Equal(t, "which df", Command("which", "df"))
}

func TestLocator_FindResolvesAndCaches(t *testing.T) {
	exec := &fakeExecutor{results: []*shell.Result{{
		ExitCode: 0,
		Variant:  1,
		Output:   lines.New([]string{"/system/xbin/df"}),
	}}}
	l := NewLocator(exec, time.Minute)

	path, err := l.Find(context.Background(), "df")
	require.NoError(t, err)
	assert.Equal(t, "/system/xbin/df", path)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, Variants("which df"), exec.calls[0])

	// Second lookup is served from cache.
	path, err = l.Find(context.Background(), "df")
	require.NoError(t, err)
	assert.Equal(t, "/system/xbin/df", path)
	assert.Len(t, exec.calls, 1)
}

func TestLocator_FindMissIsNotCached(t *testing.T) {
	exec := &fakeExecutor{results: []*shell.Result{
		{ExitCode: 127, Variant: shell.VariantNone, Output: lines.New(nil)},
		{ExitCode: 0, Variant: 0, Output: lines.New([]string{"/bin/df"})},
	}}
	l := NewLocator(exec, time.Minute)

	_, err := l.Find(context.Background(), "df")
	require.ErrorIs(t, err, ErrNotFound)

	path, err := l.Find(context.Background(), "df")
	require.NoError(t, err)
	assert.Equal(t, "/bin/df", path)
	assert.Len(t, exec.calls, 2)
}

func TestLocator_FindEmptyOutputFallsBackToName(t *testing.T) {
	exec := &fakeExecutor{results: []*shell.Result{{
		ExitCode: 0,
		Variant:  0,
		Output:   lines.New([]string{"   "}),
	}}}
	l := NewLocator(exec, time.Minute)

	path, err := l.Find(context.Background(), "true")
	require.NoError(t, err)
	assert.Equal(t, "true", path)
}

func TestLocator_FindBlankNameIsInvalid(t *testing.T) {
	l := NewLocator(&fakeExecutor{}, time.Minute)
	_, err := l.Find(context.Background(), "  ")
	require.ErrorIs(t, err, shell.ErrInvalidArgument)
}
