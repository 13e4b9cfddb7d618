package shell

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	sess, err := NewSession(false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

// -----------------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------------

func TestNewSession(t *testing.T) {
	t.Run("spawns eagerly", func(t *testing.T) {
		sess := newTestSession(t)

		assert.True(t, sess.IsOpen())
		assert.False(t, sess.Privileged())
		assert.Greater(t, sess.PID(), 0)
	})

	t.Run("spawn failure surfaces at construction", func(t *testing.T) {
		_, err := NewSession(false, WithShellBinary("no-such-shell-binary"))

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSpawnFailed)
	})
}

// -----------------------------------------------------------------------------
// Execute
// -----------------------------------------------------------------------------

func TestSessionExecute(t *testing.T) {
	t.Run("runs a single command", func(t *testing.T) {
		sess := newTestSession(t)

		res, err := sess.Execute([]string{"echo hello"})

		require.NoError(t, err)
		assert.True(t, res.Ok())
		assert.Equal(t, 0, res.Variant)
		assert.Equal(t, 0, res.ExitCode)
		assert.Equal(t, []string{"hello"}, res.Output.Strings())
	})

	t.Run("falls back to the next variant on failure", func(t *testing.T) {
		sess := newTestSession(t)

		res, err := sess.Execute([]string{
			"definitely-not-a-command-xyz --version",
			"echo fallback",
		})

		require.NoError(t, err)
		assert.True(t, res.Ok())
		assert.Equal(t, 1, res.Variant)
		assert.Equal(t, []string{"fallback"}, res.Output.Strings())
	})

	t.Run("all variants failing reports the last attempt", func(t *testing.T) {
		sess := newTestSession(t)

		res, err := sess.Execute([]string{
			"sh -c 'echo first; exit 3'",
			"sh -c 'echo second; exit 7'",
		})

		require.NoError(t, err)
		assert.False(t, res.Ok())
		assert.Equal(t, VariantNone, res.Variant)
		assert.Equal(t, 7, res.ExitCode)
		assert.Equal(t, []string{"second"}, res.Output.Strings())
	})

	t.Run("custom success check accepts non-zero codes", func(t *testing.T) {
		sess := newTestSession(t)

		res, err := sess.Execute([]string{"false"},
			WithSuccessCheck(func(code int) bool { return code == 0 || code == 1 }))

		require.NoError(t, err)
		assert.True(t, res.Ok())
		assert.Equal(t, 0, res.Variant)
		assert.Equal(t, 1, res.ExitCode)
	})

	t.Run("handles output without a trailing newline", func(t *testing.T) {
		sess := newTestSession(t)

		res, err := sess.Execute([]string{"printf 'no-newline'"})

		require.NoError(t, err)
		assert.True(t, res.Ok())
		assert.Equal(t, []string{"no-newline"}, res.Output.Strings())
	})

	t.Run("empty output stays distinguishable from no output", func(t *testing.T) {
		sess := newTestSession(t)

		res, err := sess.Execute([]string{"true"})
		require.NoError(t, err)
		assert.Nil(t, res.Output.Strings())

		res, err = sess.Execute([]string{"echo"})
		require.NoError(t, err)
		assert.Equal(t, []string{""}, res.Output.Strings())
	})

	t.Run("commands run sequentially in one shell", func(t *testing.T) {
		sess := newTestSession(t)

		_, err := sess.Execute([]string{"SHELLFW_STATE=carried"})
		require.NoError(t, err)

		res, err := sess.Execute([]string{"echo $SHELLFW_STATE"})
		require.NoError(t, err)
		assert.Equal(t, []string{"carried"}, res.Output.Strings())
	})

	t.Run("rejects invalid variant lists", func(t *testing.T) {
		sess := newTestSession(t)

		_, err := sess.Execute(nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = sess.Execute([]string{"echo a\necho b"})
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = sess.Execute([]string{"   "})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("concurrent callers serialize without interleaving", func(t *testing.T) {
		sess := newTestSession(t)

		var wg sync.WaitGroup
		results := make([]*Result, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				res, err := sess.Execute([]string{fmt.Sprintf("echo job-%d", n)})
				require.NoError(t, err)
				results[n] = res
			}(i)
		}
		wg.Wait()

		for i, res := range results {
			require.True(t, res.Ok())
			assert.Equal(t, []string{fmt.Sprintf("job-%d", i)}, res.Output.Strings())
		}
	})
}

// -----------------------------------------------------------------------------
// ExecuteAsync
// -----------------------------------------------------------------------------

func TestSessionExecuteAsync(t *testing.T) {
	t.Run("callbacks fire in submission order", func(t *testing.T) {
		sess := newTestSession(t)

		var mu sync.Mutex
		var order []string
		done := make(chan struct{})

		for i := 0; i < 3; i++ {
			i := i
			err := sess.ExecuteAsync([]string{fmt.Sprintf("echo async-%d", i)}, func(res *Result, err error) {
				require.NoError(t, err)
				line, _ := res.Output.Line(0)
				mu.Lock()
				order = append(order, line)
				finished := len(order) == 3
				mu.Unlock()
				if finished {
					close(done)
				}
			})
			require.NoError(t, err)
		}

		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for async callbacks")
		}
		assert.Equal(t, []string{"async-0", "async-1", "async-2"}, order)
	})

	t.Run("nil callback is an invalid argument", func(t *testing.T) {
		sess := newTestSession(t)

		err := sess.ExecuteAsync([]string{"echo hi"}, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("invalid variants are rejected before queueing", func(t *testing.T) {
		sess := newTestSession(t)

		err := sess.ExecuteAsync(nil, func(*Result, error) {})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("queued jobs are answered with ErrSessionClosed on close", func(t *testing.T) {
		sess, err := NewSession(false)
		require.NoError(t, err)

		errs := make(chan error, 2)
		cb := func(res *Result, err error) { errs <- err }

		require.NoError(t, sess.ExecuteAsync([]string{"sleep 30"}, cb))
		require.NoError(t, sess.ExecuteAsync([]string{"echo queued"}, cb))

		time.Sleep(100 * time.Millisecond) // let the worker pick up the sleep
		require.NoError(t, sess.Close())

		// Close waits for the worker, so both callbacks have already fired.
		for i := 0; i < 2; i++ {
			select {
			case err := <-errs:
				assert.ErrorIs(t, err, ErrSessionClosed)
			case <-time.After(5 * time.Second):
				t.Fatal("missing callback after close")
			}
		}
	})

	t.Run("submission after close invokes the callback with ErrSessionClosed", func(t *testing.T) {
		sess, err := NewSession(false)
		require.NoError(t, err)
		require.NoError(t, sess.Close())

		errs := make(chan error, 1)
		require.NoError(t, sess.ExecuteAsync([]string{"echo hi"}, func(res *Result, err error) {
			errs <- err
		}))

		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrSessionClosed)
		case <-time.After(5 * time.Second):
			t.Fatal("callback never fired")
		}
	})
}

// -----------------------------------------------------------------------------
// Close
// -----------------------------------------------------------------------------

func TestSessionClose(t *testing.T) {
	t.Run("close is idempotent", func(t *testing.T) {
		sess, err := NewSession(false)
		require.NoError(t, err)

		require.NoError(t, sess.Close())
		require.NoError(t, sess.Close())
		assert.False(t, sess.IsOpen())
	})

	t.Run("execute after close fails", func(t *testing.T) {
		sess, err := NewSession(false)
		require.NoError(t, err)
		require.NoError(t, sess.Close())

		_, err = sess.Execute([]string{"echo hi"})
		assert.ErrorIs(t, err, ErrSessionClosed)
	})

	t.Run("externally killed shell reports a dead connection", func(t *testing.T) {
		sess, err := NewSession(false)
		require.NoError(t, err)
		t.Cleanup(func() { _ = sess.Close() })

		sess.proc.Kill()
		sess.proc.Wait()

		_, err = sess.Execute([]string{"echo hi"})
		assert.ErrorIs(t, err, ErrSessionClosed)
		assert.False(t, sess.IsOpen())
	})
}
