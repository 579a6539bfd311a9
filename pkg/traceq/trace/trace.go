// Package trace defines the stack-frame records the fact store is built
// from, and a generator that produces traces with embedded anomalies for
// each failure scenario.
package trace

// Frame is a single captured stack frame.
//
// Param values are restricted to int, int64, string, or nil (nil renders as
// the null atom). CallerID of zero means the frame has no caller.
type Frame struct {
	ID        int
	Name      string
	CallerID  int
	Timestamp int64
	Allocated int64
	Status    string
	Params    map[string]any
}

// Frame statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusError     = "error"
)
