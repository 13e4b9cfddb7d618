package shell

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// OutputBuffer
// -----------------------------------------------------------------------------

func TestOutputBuffer(t *testing.T) {
	t.Run("returns lines in write order", func(t *testing.T) {
		buf := NewOutputBuffer(5)
		buf.Write("one")
		buf.Write("two")
		buf.Write("three")

		assert.Equal(t, []string{"one", "two", "three"}, buf.Lines())
		assert.Equal(t, 3, buf.Len())
	})

	t.Run("empty buffer yields nil", func(t *testing.T) {
		buf := NewOutputBuffer(5)

		assert.Nil(t, buf.Lines())
		assert.Equal(t, 0, buf.Len())
	})

	t.Run("overwrites oldest lines at capacity", func(t *testing.T) {
		buf := NewOutputBuffer(3)
		for i := 1; i <= 5; i++ {
			buf.Write(fmt.Sprintf("line-%d", i))
		}

		assert.Equal(t, []string{"line-3", "line-4", "line-5"}, buf.Lines())
		assert.Equal(t, 3, buf.Len())
	})

	t.Run("drain returns lines and resets", func(t *testing.T) {
		buf := NewOutputBuffer(3)
		buf.Write("a")
		buf.Write("b")

		require.Equal(t, []string{"a", "b"}, buf.Drain())
		assert.Equal(t, 0, buf.Len())
		assert.Nil(t, buf.Drain())

		// The buffer is reusable after a drain.
		buf.Write("c")
		assert.Equal(t, []string{"c"}, buf.Lines())
	})

	t.Run("clamps capacity to one", func(t *testing.T) {
		buf := NewOutputBuffer(0)
		buf.Write("first")
		buf.Write("second")

		assert.Equal(t, []string{"second"}, buf.Lines())
	})

	t.Run("concurrent writes do not race", func(t *testing.T) {
		buf := NewOutputBuffer(8)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					buf.Write(fmt.Sprintf("w%d-%d", n, j))
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 8, buf.Len())
	})
}
