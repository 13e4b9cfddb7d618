// Package lines provides an immutable, queryable container for
// line-oriented command output.
package lines

import "strings"

// Lines wraps an ordered sequence of output lines. All transforms return a
// new value; the receiver is never mutated, so a Lines may be shared freely
// across goroutines once constructed.
//
// A Lines built from a nil slice ("no data") and one built from an empty
// slice both report Size() == 0 but remain distinguishable via Strings().
type Lines struct {
	lines []string
}

// New creates a Lines from the given slice. The slice is copied so later
// mutation by the caller cannot leak into the container.
func New(raw []string) Lines {
	if raw == nil {
		return Lines{}
	}
	cp := make([]string, len(raw))
	copy(cp, raw)
	return Lines{lines: cp}
}

// Size returns the number of lines.
func (l Lines) Size() int {
	return len(l.lines)
}

// Strings returns a copy of the underlying slice. It returns nil when the
// container was built without data, and a non-nil empty slice when it was
// built from an empty one.
func (l Lines) Strings() []string {
	if l.lines == nil {
		return nil
	}
	cp := make([]string, len(l.lines))
	copy(cp, l.lines)
	return cp
}

// Join concatenates all lines using sep.
func (l Lines) Join(sep string) string {
	return strings.Join(l.lines, sep)
}

// String joins all lines with newlines.
func (l Lines) String() string {
	return l.Join("\n")
}

// KeepFunc returns a Lines holding only the lines for which pred is true.
func (l Lines) KeepFunc(pred func(string) bool) Lines {
	if l.Size() == 0 {
		return l
	}
	kept := make([]string, 0, len(l.lines))
	for _, line := range l.lines {
		if pred(line) {
			kept = append(kept, line)
		}
	}
	return Lines{lines: kept}
}

// DropFunc returns a Lines with every line for which pred is true removed.
func (l Lines) DropFunc(pred func(string) bool) Lines {
	return l.KeepFunc(func(line string) bool { return !pred(line) })
}

// Keep retains only lines containing substr.
func (l Lines) Keep(substr string) Lines {
	return l.KeepFunc(func(line string) bool { return strings.Contains(line, substr) })
}

// Drop removes lines containing substr.
func (l Lines) Drop(substr string) Lines {
	return l.DropFunc(func(line string) bool { return strings.Contains(line, substr) })
}

// Trim removes lines that are empty or contain only whitespace. The relative
// order of the remaining lines is preserved.
func (l Lines) Trim() Lines {
	return l.KeepFunc(func(line string) bool { return strings.TrimSpace(line) != "" })
}

// Slice keeps the lines in the half-open index range [start, stop). Negative
// indices address from the end, so Slice(1, -1) drops the first and last line.
//
// When the resolved start lies beyond the resolved stop the selection wraps:
// Slice(-1, 1) keeps only the first and last line. This mirrors the
// bidirectional range selection of the original line container.
func (l Lines) Slice(start, stop int) Lines {
	if l.Size() == 0 {
		return l
	}
	n := len(l.lines)
	begin := start
	if begin < 0 {
		begin += n
	}
	end := stop
	if end < 0 {
		end += n
	}

	var spans [][2]int
	switch {
	case begin > end && end == 0:
		spans = [][2]int{{begin, n}}
	case begin > end:
		spans = [][2]int{{0, end}, {begin, n}}
	default:
		spans = [][2]int{{begin, end}}
	}

	kept := make([]string, 0, n)
	for _, span := range spans {
		lo, hi := span[0], span[1]
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		for i := lo; i < hi; i++ {
			kept = append(kept, l.lines[i])
		}
	}
	return Lines{lines: kept}
}

// SliceFrom keeps the lines from start to the end.
func (l Lines) SliceFrom(start int) Lines {
	return l.Slice(start, len(l.lines))
}

// Exclude removes the lines in the index range [start, stop), the inverse of
// Slice. Exclude(1, -1) keeps only the first and last line.
func (l Lines) Exclude(start, stop int) Lines {
	return l.Slice(stop, start)
}

// Line returns the line at index n, trimmed of surrounding whitespace.
// Negative indices address from the end (-1 is the last line).
// The second return is false when the index is out of range.
func (l Lines) Line(n int) (string, bool) {
	return l.line(n, false)
}

// LineSkipEmpty behaves like Line but walks past whitespace-only lines:
// toward the start for negative indices, toward the end otherwise.
// Returns false when every candidate line is empty.
func (l Lines) LineSkipEmpty(n int) (string, bool) {
	return l.line(n, true)
}

// Last returns the last non-empty line.
func (l Lines) Last() (string, bool) {
	return l.line(-1, true)
}

func (l Lines) line(n int, skipEmpty bool) (string, bool) {
	if l.Size() == 0 {
		return "", false
	}
	idx := n
	if idx < 0 {
		idx += len(l.lines)
	}
	for idx >= 0 && idx < len(l.lines) {
		trimmed := strings.TrimSpace(l.lines[idx])
		if !skipEmpty || trimmed != "" {
			return trimmed, true
		}
		if n < 0 {
			idx--
		} else {
			idx++
		}
	}
	return "", false
}
