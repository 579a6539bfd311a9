// Package eval executes validated queries against a fact store. Evaluation
// is a pure function over in-memory state: once a query has passed
// validation it cannot fail, only produce zero results.
package eval

import (
	"github.com/probelab/traceq/pkg/traceq/fact"
	"github.com/probelab/traceq/pkg/traceq/parse"
)

// Bindings is one complete assignment of variables to values. Environments
// are copy-on-extend: a candidate branch never mutates the environment it
// was derived from.
type Bindings map[string]fact.Term

// Equal reports whether two environments bind the same variables to equal
// values.
func (b Bindings) Equal(o Bindings) bool {
	if len(b) != len(o) {
		return false
	}
	for name, val := range b {
		other, ok := o[name]
		if !ok || !val.Equal(other) {
			return false
		}
	}
	return true
}

// Result is the outcome of one query evaluation.
//
// For simple and compound queries Success is always true; zero environments
// means the query matched nothing. A negation query succeeds with exactly
// one empty environment when no fact matches, and fails with zero
// environments when one does.
type Result struct {
	Success  bool
	Bindings []Bindings
	// Matched holds the facts supporting the surviving environments, in
	// first-use order, without duplicates. The significance classifier
	// consumes this.
	Matched []fact.Fact
}

// Evaluator runs queries against one read-only store.
type Evaluator struct {
	store *fact.Store
}

// New creates an evaluator over the given store.
func New(store *fact.Store) *Evaluator {
	return &Evaluator{store: store}
}

// Execute evaluates a validated query. Results are deterministic: facts are
// scanned in store insertion order and conditions left to right.
func (ev *Evaluator) Execute(q parse.Query) Result {
	switch q.Kind {
	case parse.Negation:
		return ev.executeNegation(q.Conds[0])
	case parse.Compound:
		return ev.executeConjunction(q.Conds)
	default:
		return ev.executeConjunction(q.Conds[:1])
	}
}

// candidate pairs an environment with the facts that produced it.
type candidate struct {
	env   Bindings
	facts []fact.Fact
}

func (ev *Evaluator) executeConjunction(conds []parse.Condition) Result {
	current := []candidate{{env: Bindings{}}}

	for i, cond := range conds {
		// Environments can collide once earlier bindings constrain a later
		// condition; merged duplicates are dropped there. The first
		// condition keeps one environment per matching fact.
		dedup := i > 0

		var next []candidate
		for _, cand := range current {
			if ground(cond, cand.env) {
				// Fully ground under this environment: a boolean filter,
				// no need to enumerate every matching fact.
				if f, ok := ev.firstMatch(cond, cand.env); ok {
					next = appendCandidate(next, extendCandidate(cand, cand.env, f), dedup)
				}
				continue
			}
			for _, f := range ev.store.Facts(cond.Predicate) {
				if env, ok := unify(cond.Args, f, cand.env); ok {
					next = appendCandidate(next, extendCandidate(cand, env, f), dedup)
				}
			}
		}
		current = next
		if len(current) == 0 {
			break
		}
	}

	res := Result{Success: true, Bindings: make([]Bindings, 0, len(current))}
	for _, cand := range current {
		res.Bindings = append(res.Bindings, cand.env)
		for _, f := range cand.facts {
			res.Matched = appendUniqueFact(res.Matched, f)
		}
	}
	return res
}

func (ev *Evaluator) executeNegation(cond parse.Condition) Result {
	// The validator guarantees the condition is ground.
	if _, ok := ev.firstMatch(cond, nil); ok {
		return Result{Success: false}
	}
	return Result{Success: true, Bindings: []Bindings{{}}}
}

func (ev *Evaluator) firstMatch(cond parse.Condition, env Bindings) (fact.Fact, bool) {
	for _, f := range ev.store.Facts(cond.Predicate) {
		if _, ok := unify(cond.Args, f, env); ok {
			return f, true
		}
	}
	return fact.Fact{}, false
}

// unify matches condition arguments against one fact, consulting base for
// variables bound by earlier conditions. On success it returns the (possibly
// extended) environment; base itself is never modified.
func unify(args []parse.Term, f fact.Fact, base Bindings) (Bindings, bool) {
	if len(args) != len(f.Args) {
		return nil, false
	}

	env := base
	copied := false
	for i, arg := range args {
		val := f.Args[i]

		if !arg.IsVariable() {
			if !arg.Value.Equal(val) {
				return nil, false
			}
			continue
		}
		if arg.Anonymous() {
			continue
		}

		if bound, ok := env[arg.Variable]; ok {
			if !bound.Equal(val) {
				return nil, false
			}
			continue
		}

		if !copied {
			env = copyBindings(base)
			copied = true
		}
		env[arg.Variable] = val
	}

	if env == nil {
		env = Bindings{}
	}
	return env, true
}

func copyBindings(b Bindings) Bindings {
	out := make(Bindings, len(b)+1)
	for name, val := range b {
		out[name] = val
	}
	return out
}

// ground reports whether every argument is a constant or already bound.
// The anonymous variable keeps a condition non-ground: each matching fact
// still produces a row.
func ground(cond parse.Condition, env Bindings) bool {
	for _, arg := range cond.Args {
		if !arg.IsVariable() {
			continue
		}
		if arg.Anonymous() {
			return false
		}
		if _, ok := env[arg.Variable]; !ok {
			return false
		}
	}
	return true
}

func extendCandidate(cand candidate, env Bindings, f fact.Fact) candidate {
	facts := make([]fact.Fact, len(cand.facts), len(cand.facts)+1)
	copy(facts, cand.facts)
	return candidate{env: env, facts: append(facts, f)}
}

func appendCandidate(list []candidate, c candidate, dedup bool) []candidate {
	if dedup {
		for _, existing := range list {
			if existing.env.Equal(c.env) {
				return list
			}
		}
	}
	return append(list, c)
}

func appendUniqueFact(list []fact.Fact, f fact.Fact) []fact.Fact {
	for _, existing := range list {
		if sameFact(existing, f) {
			return list
		}
	}
	return append(list, f)
}

func sameFact(a, b fact.Fact) bool {
	if a.Predicate != b.Predicate || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if !a.Args[i].Equal(b.Args[i]) {
			return false
		}
	}
	return true
}
