package callgraph

import (
	"strings"
	"testing"

	"github.com/probelab/traceq/pkg/traceq/fact"
	"github.com/probelab/traceq/pkg/traceq/trace"
)

// graphFixture builds 1 -> 2 -> {3, 4}, 4 -> 5.
func graphFixture() *Graph {
	frames := []trace.Frame{
		{ID: 1, Name: "main", Timestamp: 1000, Status: trace.StatusActive},
		{ID: 2, Name: "dispatch", CallerID: 1, Timestamp: 1010, Status: trace.StatusActive},
		{ID: 3, Name: "read_file", CallerID: 2, Timestamp: 1020, Status: trace.StatusCompleted},
		{ID: 4, Name: "parse_input", CallerID: 2, Timestamp: 1030, Status: trace.StatusActive},
		{ID: 5, Name: "validate_data", CallerID: 4, Timestamp: 1040, Status: trace.StatusActive},
	}
	return New(fact.Build(frames, nil))
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestChain(t *testing.T) {
	g := graphFixture()

	if got := g.Chain(1, Callees); !equalIDs(got, []int64{2, 3, 4, 5}) {
		t.Errorf("callee chain from 1 = %v", got)
	}
	if got := g.Chain(5, Callers); !equalIDs(got, []int64{4, 2, 1}) {
		t.Errorf("caller chain from 5 = %v", got)
	}
	if got := g.Chain(3, Callees); got != nil {
		t.Errorf("leaf callee chain = %v, want empty", got)
	}
}

func TestPath(t *testing.T) {
	g := graphFixture()

	if got := g.Path(1, 5); !equalIDs(got, []int64{1, 2, 4, 5}) {
		t.Errorf("path 1->5 = %v", got)
	}
	if got := g.Path(3, 5); got != nil {
		t.Errorf("path 3->5 = %v, want nil (siblings)", got)
	}
	if got := g.Path(5, 1); got != nil {
		t.Errorf("path 5->1 = %v, want nil (wrong direction)", got)
	}
	if got := g.Path(2, 2); !equalIDs(got, []int64{2}) {
		t.Errorf("path 2->2 = %v", got)
	}
}

func TestPathInCycle(t *testing.T) {
	frames := []trace.Frame{
		{ID: 1, Name: "acquire_lock", CallerID: 2, Timestamp: 1000, Status: trace.StatusActive},
		{ID: 2, Name: "acquire_lock", CallerID: 1, Timestamp: 1010, Status: trace.StatusActive},
	}
	g := New(fact.Build(frames, nil))

	// BFS must terminate on cyclic graphs.
	if got := g.Path(1, 2); !equalIDs(got, []int64{1, 2}) {
		t.Errorf("path 1->2 = %v", got)
	}
	if got := g.Chain(1, Callees); !equalIDs(got, []int64{2}) {
		t.Errorf("chain from 1 = %v", got)
	}
}

func TestDescribe(t *testing.T) {
	g := graphFixture()
	info := g.Describe(2)

	if !equalIDs(info.DirectCallers, []int64{1}) {
		t.Errorf("direct callers = %v", info.DirectCallers)
	}
	if !equalIDs(info.DirectCallees, []int64{3, 4}) {
		t.Errorf("direct callees = %v", info.DirectCallees)
	}
	if !equalIDs(info.CalleeChain, []int64{3, 4, 5}) {
		t.Errorf("callee chain = %v", info.CalleeChain)
	}
}

func TestFrames(t *testing.T) {
	if got := graphFixture().Frames(); !equalIDs(got, []int64{1, 2, 3, 4, 5}) {
		t.Errorf("frames = %v", got)
	}
}

func TestFormatInfo(t *testing.T) {
	g := graphFixture()

	text := FormatInfo(g.Describe(1))
	if !strings.Contains(text, "none (root frame)") {
		t.Errorf("root frame summary: %q", text)
	}
	if !strings.Contains(text, "1 -> 2") {
		t.Errorf("callee chain rendering: %q", text)
	}

	text = FormatInfo(g.Describe(3))
	if !strings.Contains(text, "none (leaf frame)") {
		t.Errorf("leaf frame summary: %q", text)
	}
}
