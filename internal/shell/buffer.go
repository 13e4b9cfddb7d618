package shell

import "sync"

// OutputBuffer is a thread-safe ring buffer for recent output lines.
// It keeps a bounded memory footprint by discarding the oldest lines when
// capacity is reached. Used to retain stderr output between commands.
type OutputBuffer struct {
	lines    []string
	capacity int
	start    int // Index of oldest line
	count    int // Number of lines stored
	mu       sync.RWMutex
}

// NewOutputBuffer creates an OutputBuffer with the given capacity.
// Capacity must be at least 1.
func NewOutputBuffer(capacity int) *OutputBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &OutputBuffer{
		lines:    make([]string, capacity),
		capacity: capacity,
	}
}

// Write appends a line, overwriting the oldest line when full.
func (b *OutputBuffer) Write(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count < b.capacity {
		b.lines[b.count] = line
		b.count++
	} else {
		b.lines[b.start] = line
		b.start = (b.start + 1) % b.capacity
	}
}

// Lines returns all buffered lines in chronological order.
func (b *OutputBuffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot()
}

// Drain returns all buffered lines in chronological order and resets the
// buffer. Sessions call this per command attempt to attribute stderr to the
// command that produced it.
func (b *OutputBuffer) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.snapshot()
	b.start = 0
	b.count = 0
	return out
}

// Len returns the number of lines currently stored.
func (b *OutputBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// snapshot copies the buffered lines in order. Callers must hold the lock.
func (b *OutputBuffer) snapshot() []string {
	if b.count == 0 {
		return nil
	}
	result := make([]string, b.count)
	for i := 0; i < b.count; i++ {
		result[i] = b.lines[(b.start+i)%b.capacity]
	}
	return result
}
