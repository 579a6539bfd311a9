// Package report renders binding environments into readable text and flags
// significance categories. Classification is a pure function of the matched
// facts and the result size, independent of any formatting.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/probelab/traceq/pkg/traceq/eval"
	"github.com/probelab/traceq/pkg/traceq/fact"
	"github.com/probelab/traceq/pkg/traceq/parse"
)

// Category names a significance pattern in matched facts.
type Category string

const (
	CategoryError         Category = "error"
	CategoryMemoryAnomaly Category = "memoryAnomaly"
	CategoryRecursion     Category = "recursion"
	CategoryNullParameter Category = "nullParameter"
	CategoryDeadlock      Category = "deadlock"
	CategoryPattern       Category = "pattern"
)

// Thresholds tunes the significance classifier.
type Thresholds struct {
	// MemoryBytes flags any matched allocation at or above this size.
	MemoryBytes int64
	// RecursionCalls flags a calls result with more than this many edges.
	RecursionCalls int
	// PatternMatches flags any result with more than this many rows.
	PatternMatches int
}

// DefaultThresholds returns the built-in tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MemoryBytes:    1 << 20,
		RecursionCalls: 10,
		PatternMatches: 5,
	}
}

// Formatted is the rendered outcome of one query.
type Formatted struct {
	Text        string
	Significant bool
	Category    Category
}

// Formatter renders results for one store.
type Formatter struct {
	store *fact.Store
	th    Thresholds
}

// New creates a formatter. Zero-valued threshold fields fall back to the
// defaults.
func New(store *fact.Store, th Thresholds) *Formatter {
	def := DefaultThresholds()
	if th.MemoryBytes <= 0 {
		th.MemoryBytes = def.MemoryBytes
	}
	if th.RecursionCalls <= 0 {
		th.RecursionCalls = def.RecursionCalls
	}
	if th.PatternMatches <= 0 {
		th.PatternMatches = def.PatternMatches
	}
	return &Formatter{store: store, th: th}
}

// Format renders a result and stamps its significance.
func (f *Formatter) Format(q parse.Query, res eval.Result) Formatted {
	significant, category := f.Classify(q, res)

	var text string
	switch {
	case q.Kind == parse.Negation:
		text = formatNegation(q.Conds[0], res)
	case len(res.Bindings) == 0:
		text = f.formatEmpty(q)
	default:
		text = formatBindings(res.Bindings)
	}

	if significant {
		text = significanceBanner(category) + "\n" + text
	}

	return Formatted{Text: text, Significant: significant, Category: category}
}

// Classify applies the significance categories in priority order; the first
// match wins. Negation results are never significant.
func (f *Formatter) Classify(q parse.Query, res eval.Result) (bool, Category) {
	if q.Kind == parse.Negation || len(res.Bindings) == 0 {
		return false, ""
	}

	calls := 0
	edges := make(map[int64][]int64)

	for _, m := range res.Matched {
		switch m.Predicate {
		case fact.PredStatus:
			if len(m.Args) == 2 && m.Args[1].Equal(fact.Atom(statusError)) {
				return true, CategoryError
			}
		case fact.PredFrame:
			if len(m.Args) == 4 && m.Args[3].Equal(fact.Atom(statusError)) {
				return true, CategoryError
			}
		case fact.PredCalls:
			calls++
			if len(m.Args) == 2 && m.Args[0].Kind == fact.KindInt && m.Args[1].Kind == fact.KindInt {
				edges[m.Args[0].Int] = append(edges[m.Args[0].Int], m.Args[1].Int)
			}
		}
	}

	for _, m := range res.Matched {
		if m.Predicate == fact.PredAllocated && len(m.Args) == 2 &&
			m.Args[1].Kind == fact.KindInt && m.Args[1].Int >= f.th.MemoryBytes {
			return true, CategoryMemoryAnomaly
		}
	}

	if calls > f.th.RecursionCalls {
		return true, CategoryRecursion
	}

	for _, m := range res.Matched {
		if m.Predicate == fact.PredParam && len(m.Args) == 3 && m.Args[2].IsNull() {
			return true, CategoryNullParameter
		}
	}

	if hasCycle(edges) {
		return true, CategoryDeadlock
	}

	if len(res.Bindings) > f.th.PatternMatches {
		return true, CategoryPattern
	}

	return false, ""
}

// statusError mirrors trace.StatusError; the render path does not depend on
// the trace package.
const statusError = "error"

func formatBindings(envs []eval.Bindings) string {
	// Zero-variable results carry empty environments; report the count.
	if allEmpty(envs) {
		return fmt.Sprintf("Yes - found %d matching fact(s).", len(envs))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d result(s):", len(envs))
	for i, env := range envs {
		names := make([]string, 0, len(env))
		for name := range env {
			names = append(names, name)
		}
		sort.Strings(names)

		pairs := make([]string, 0, len(names))
		for _, name := range names {
			pairs = append(pairs, fmt.Sprintf("%s = %s", name, env[name]))
		}
		fmt.Fprintf(&b, "\n  %d. %s", i+1, strings.Join(pairs, ", "))
	}
	return b.String()
}

func allEmpty(envs []eval.Bindings) bool {
	for _, env := range envs {
		if len(env) > 0 {
			return false
		}
	}
	return true
}

// formatEmpty explains an empty-but-successful result, restating what was
// asked and suggesting why nothing matched.
func (f *Formatter) formatEmpty(q parse.Query) string {
	cond := q.Conds[0]
	arity, _ := f.store.Arity(cond.Predicate)

	if len(f.store.Facts(cond.Predicate)) == 0 {
		return fmt.Sprintf(
			"No facts recorded for '%s'.\nFacts exist for: %s.",
			cond.Predicate, strings.Join(f.recordedPredicates(), ", "))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "No results for %s/%d", cond.Predicate, arity)
	if q.Kind == parse.Compound {
		b.WriteString(" joined with ")
		rest := make([]string, 0, len(q.Conds)-1)
		for _, c := range q.Conds[1:] {
			a, _ := f.store.Arity(c.Predicate)
			rest = append(rest, fmt.Sprintf("%s/%d", c.Predicate, a))
		}
		b.WriteString(strings.Join(rest, ", "))
	}
	b.WriteString(".\n")

	if hasVariables(q) {
		b.WriteString("The pattern matched no facts. The condition may be checking\n")
		b.WriteString("for data that is absent from this trace.\n")
		b.WriteString("Suggestions:\n")
		b.WriteString("  - try different constant values\n")
		b.WriteString("  - check that constants match the types in the facts")
	} else {
		b.WriteString("No exact match for the specified values.\n")
		b.WriteString("Suggestions:\n")
		fmt.Fprintf(&b, "  - use variables (uppercase) to see what values exist, e.g. ?- %s(%s).\n",
			cond.Predicate, exampleVars(arity))
		b.WriteString("  - check your values for typos")
	}
	return b.String()
}

func formatNegation(cond parse.Condition, res eval.Result) string {
	if res.Success {
		return fmt.Sprintf("Yes - no fact matches %s; the negated condition holds.", cond.Raw)
	}
	return fmt.Sprintf("No - a fact matches %s, so the negation fails.", cond.Raw)
}

func significanceBanner(c Category) string {
	messages := map[Category]string{
		CategoryError:         "Error status detected!",
		CategoryMemoryAnomaly: "High memory allocation detected!",
		CategoryRecursion:     "Recursive call pattern detected!",
		CategoryNullParameter: "Null parameter detected!",
		CategoryDeadlock:      "Potential deadlock detected!",
		CategoryPattern:       "Pattern detected in results!",
	}
	return fmt.Sprintf("SIGNIFICANT [%s]: %s", c, messages[c])
}

func (f *Formatter) recordedPredicates() []string {
	var names []string
	for _, name := range f.store.Schema().Predicates() {
		if len(f.store.Facts(name)) > 0 {
			names = append(names, name)
		}
	}
	return names
}

func hasVariables(q parse.Query) bool {
	for _, cond := range q.Conds {
		for _, arg := range cond.Args {
			if arg.IsVariable() {
				return true
			}
		}
	}
	return false
}

func exampleVars(arity int) string {
	letters := []string{"X", "Y", "Z", "W", "V", "U"}
	if arity > len(letters) {
		arity = len(letters)
	}
	return strings.Join(letters[:arity], ", ")
}

// hasCycle detects a caller->callee cycle with three-state DFS coloring.
func hasCycle(edges map[int64][]int64) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int64]int, len(edges))

	var visit func(n int64) bool
	visit = func(n int64) bool {
		color[n] = gray
		for _, next := range edges[n] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}

	nodes := make([]int64, 0, len(edges))
	for n := range edges {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	for _, n := range nodes {
		if color[n] == white {
			if visit(n) {
				return true
			}
		}
	}
	return false
}
