package eval

import (
	"testing"

	"github.com/probelab/traceq/pkg/traceq/fact"
	"github.com/probelab/traceq/pkg/traceq/parse"
	"github.com/probelab/traceq/pkg/traceq/trace"
)

// testStore builds a small fixed trace:
//
//	frame(1, init, 1000, completed)         allocated(1, 2048)
//	frame(2, process_request, 1050, active) allocated(2, 4096)  calls(1, 2)  param(2, handler, null)
//	frame(3, process_request, 1100, error)  allocated(3, 512)   calls(2, 3)
//	frame(4, spin, 1200, active)            allocated(4, 256)   calls(4, 4)
func testStore() *fact.Store {
	frames := []trace.Frame{
		{ID: 1, Name: "init", Timestamp: 1000, Allocated: 2048, Status: trace.StatusCompleted},
		{ID: 2, Name: "process_request", CallerID: 1, Timestamp: 1050, Allocated: 4096,
			Status: trace.StatusActive, Params: map[string]any{"handler": nil}},
		{ID: 3, Name: "process_request", CallerID: 2, Timestamp: 1100, Allocated: 512,
			Status: trace.StatusError},
		{ID: 4, Name: "spin", CallerID: 4, Timestamp: 1200, Allocated: 256,
			Status: trace.StatusActive},
	}
	return fact.Build(frames, nil)
}

func mustQuery(t *testing.T, text string) parse.Query {
	t.Helper()
	q, _, err := parse.NewValidator(nil, 0).Validate(text)
	if err != nil {
		t.Fatalf("Validate(%q): %s", text, err.Message)
	}
	return q
}

func run(t *testing.T, text string) Result {
	t.Helper()
	return New(testStore()).Execute(mustQuery(t, text))
}

func wantBinding(t *testing.T, env Bindings, name string, val fact.Term) {
	t.Helper()
	got, ok := env[name]
	if !ok {
		t.Errorf("variable %s unbound in %v", name, env)
		return
	}
	if !got.Equal(val) {
		t.Errorf("%s = %s, want %s", name, got, val)
	}
}

func TestSimpleAllVariables(t *testing.T) {
	res := run(t, "?- frame(X, Y, Z, W).")
	if !res.Success {
		t.Fatal("simple query should always succeed")
	}
	if len(res.Bindings) != 4 {
		t.Fatalf("got %d environments, want 4", len(res.Bindings))
	}
	wantBinding(t, res.Bindings[0], "X", fact.Int(1))
	wantBinding(t, res.Bindings[0], "Y", fact.Atom("init"))
	wantBinding(t, res.Bindings[0], "Z", fact.Int(1000))
	wantBinding(t, res.Bindings[0], "W", fact.Atom("completed"))
}

func TestSimpleConstantFilter(t *testing.T) {
	res := run(t, `?- status(F, "error").`)
	if len(res.Bindings) != 1 {
		t.Fatalf("got %d environments, want 1", len(res.Bindings))
	}
	wantBinding(t, res.Bindings[0], "F", fact.Int(3))
}

func TestSimpleGround(t *testing.T) {
	res := run(t, "?- status(1, completed).")
	if len(res.Bindings) != 1 || len(res.Bindings[0]) != 0 {
		t.Fatalf("ground match should yield one empty environment, got %v", res.Bindings)
	}

	res = run(t, "?- status(1, error).")
	if !res.Success {
		t.Error("ground mismatch still succeeds, with zero environments")
	}
	if len(res.Bindings) != 0 {
		t.Errorf("got %d environments, want 0", len(res.Bindings))
	}
}

func TestSimpleNoDedup(t *testing.T) {
	// Each matching fact contributes a row even when nothing binds.
	res := run(t, "?- frame(_, _, _, _).")
	if len(res.Bindings) != 4 {
		t.Fatalf("got %d environments, want 4 (one per fact)", len(res.Bindings))
	}
	for _, env := range res.Bindings {
		if len(env) != 0 {
			t.Errorf("anonymous variables must not bind: %v", env)
		}
	}
}

func TestCompoundJoin(t *testing.T) {
	res := run(t, "?- frame(Id, Name, T, S), status(Id, error).")
	if len(res.Bindings) != 1 {
		t.Fatalf("got %d environments, want 1", len(res.Bindings))
	}
	env := res.Bindings[0]
	wantBinding(t, env, "Id", fact.Int(3))
	wantBinding(t, env, "Name", fact.Atom("process_request"))
	wantBinding(t, env, "S", fact.Atom("error"))

	// Supporting facts from both conditions are collected.
	var sawFrame, sawStatus bool
	for _, m := range res.Matched {
		switch m.Predicate {
		case fact.PredFrame:
			sawFrame = true
		case fact.PredStatus:
			sawStatus = true
		}
	}
	if !sawFrame || !sawStatus {
		t.Errorf("matched facts missing a condition's support: %v", res.Matched)
	}
}

func TestCompoundSharedVariableRestricts(t *testing.T) {
	// Two frames are named process_request; only one also errored.
	res := run(t, "?- frame(Id, process_request, T, S), status(Id, error).")
	if len(res.Bindings) != 1 {
		t.Fatalf("got %d environments, want 1", len(res.Bindings))
	}
	wantBinding(t, res.Bindings[0], "Id", fact.Int(3))
}

func TestCompoundGroundFirst(t *testing.T) {
	res := run(t, "?- status(3, error), frame(3, N, T, S).")
	if len(res.Bindings) != 1 {
		t.Fatalf("got %d environments, want 1", len(res.Bindings))
	}
	wantBinding(t, res.Bindings[0], "N", fact.Atom("process_request"))
	wantBinding(t, res.Bindings[0], "T", fact.Int(1100))
}

func TestCompoundEmptyJoin(t *testing.T) {
	res := run(t, "?- frame(Id, N, T, S), param(Id, mode, fast).")
	if !res.Success {
		t.Error("an empty join still succeeds")
	}
	if len(res.Bindings) != 0 {
		t.Errorf("got %d environments, want 0", len(res.Bindings))
	}
}

func TestCompoundDedupsMergedEnvironments(t *testing.T) {
	// The second condition matches two facts without binding anything, which
	// would duplicate each surviving environment; duplicates collapse.
	res := run(t, "?- status(3, error), frame(_, process_request, _, _).")
	if len(res.Bindings) != 1 {
		t.Fatalf("got %d environments, want 1 after dedup", len(res.Bindings))
	}
}

func TestSelfConsistency(t *testing.T) {
	// A repeated variable must take the same value at both positions within
	// one fact. Frame 4 calls itself.
	res := run(t, "?- calls(X, X).")
	if len(res.Bindings) != 1 {
		t.Fatalf("got %d environments, want 1", len(res.Bindings))
	}
	wantBinding(t, res.Bindings[0], "X", fact.Int(4))

	// No frame's id equals its name.
	res = run(t, "?- frame(X, X, T, S).")
	if len(res.Bindings) != 0 {
		t.Errorf("got %d environments, want 0", len(res.Bindings))
	}
}

func TestNegation(t *testing.T) {
	res := run(t, `?- \+ status(1, "error").`)
	if !res.Success {
		t.Error("negation of an absent fact should succeed")
	}
	if len(res.Bindings) != 1 || len(res.Bindings[0]) != 0 {
		t.Errorf("negation success carries one empty environment, got %v", res.Bindings)
	}

	res = run(t, `?- \+ status(3, error).`)
	if res.Success {
		t.Error("negation of a present fact should fail")
	}
	if len(res.Bindings) != 0 {
		t.Errorf("negation failure carries no environments, got %v", res.Bindings)
	}
}

func TestNegationMirrorsPositive(t *testing.T) {
	// For every ground condition, \+ succeeds exactly when the positive
	// query matches nothing.
	conds := []string{
		"status(1, completed)",
		"status(1, error)",
		"calls(1, 2)",
		"calls(2, 1)",
		"param(2, handler, null)",
		"param(2, handler, set)",
		"frame(4, spin, 1200, active)",
		"frame(4, spin, 1200, completed)",
	}
	for _, cond := range conds {
		pos := run(t, "?- "+cond+".")
		neg := run(t, `?- \+ `+cond+".")
		if neg.Success == (len(pos.Bindings) > 0) {
			t.Errorf("%s: positive rows=%d, negation success=%v",
				cond, len(pos.Bindings), neg.Success)
		}
	}
}

func TestQuotedAndBarewordInterchangeable(t *testing.T) {
	quoted := run(t, `?- status(F, "active").`)
	bare := run(t, "?- status(F, active).")
	if len(quoted.Bindings) != len(bare.Bindings) {
		t.Fatalf("quoted %d rows, bareword %d rows", len(quoted.Bindings), len(bare.Bindings))
	}
}

func TestDeterministic(t *testing.T) {
	a := run(t, "?- frame(X, Y, Z, W).")
	b := run(t, "?- frame(X, Y, Z, W).")
	if len(a.Bindings) != len(b.Bindings) {
		t.Fatalf("row counts differ: %d vs %d", len(a.Bindings), len(b.Bindings))
	}
	for i := range a.Bindings {
		if !a.Bindings[i].Equal(b.Bindings[i]) {
			t.Errorf("row %d differs: %v vs %v", i, a.Bindings[i], b.Bindings[i])
		}
	}
}

func TestBaseEnvironmentNotMutated(t *testing.T) {
	base := Bindings{"F": fact.Int(3)}
	f := fact.Fact{Predicate: fact.PredStatus, Args: []fact.Term{fact.Int(3), fact.Atom("error")}}

	env, ok := unify([]parse.Term{{Variable: "F"}, {Variable: "S"}}, f, base)
	if !ok {
		t.Fatal("unify should succeed")
	}
	if _, bound := base["S"]; bound {
		t.Error("unify extended the base environment in place")
	}
	if !env["S"].Equal(fact.Atom("error")) {
		t.Errorf("S = %s, want error", env["S"])
	}
}
