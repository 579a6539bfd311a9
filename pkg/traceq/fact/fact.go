// Package fact holds the in-memory fact store the query engine evaluates
// against. Facts are immutable once built; the store is read-only after
// construction and safe to share.
package fact

import (
	"fmt"
	"sort"

	"github.com/probelab/traceq/pkg/traceq/trace"
)

// Well-known predicate names.
const (
	PredFrame     = "frame"
	PredCalls     = "calls"
	PredAllocated = "allocated"
	PredParam     = "param"
	PredStatus    = "status"
)

// Schema maps each queryable predicate to its declared arity.
type Schema map[string]int

// DefaultSchema returns the five predicate families built from a trace.
func DefaultSchema() Schema {
	return Schema{
		PredFrame:     4,
		PredCalls:     2,
		PredAllocated: 2,
		PredParam:     3,
		PredStatus:    2,
	}
}

// Predicates returns the schema's predicate names, sorted.
func (s Schema) Predicates() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fact is one ground assertion: a predicate name and its argument terms.
type Fact struct {
	Predicate string
	Args      []Term
}

// String renders the fact in source form, e.g. frame(1, init, 1000, active).
func (f Fact) String() string {
	s := f.Predicate + "("
	for i, a := range f.Args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + ")"
}

// Store holds facts grouped by predicate, preserving insertion order within
// each group. It is never mutated after Build returns.
type Store struct {
	schema Schema
	facts  map[string][]Fact
	total  int
}

// Build converts trace frames into the five predicate families. The
// conversion is deterministic: frames in input order, params in sorted name
// order.
func Build(frames []trace.Frame, schema Schema) *Store {
	if schema == nil {
		schema = DefaultSchema()
	}

	s := &Store{
		schema: schema,
		facts:  make(map[string][]Fact, len(schema)),
	}

	for _, fr := range frames {
		s.add(Fact{Predicate: PredFrame, Args: []Term{
			Int(int64(fr.ID)), Atom(fr.Name), Int(fr.Timestamp), Atom(fr.Status),
		}})

		if fr.CallerID != 0 {
			s.add(Fact{Predicate: PredCalls, Args: []Term{
				Int(int64(fr.CallerID)), Int(int64(fr.ID)),
			}})
		}

		s.add(Fact{Predicate: PredAllocated, Args: []Term{
			Int(int64(fr.ID)), Int(fr.Allocated),
		}})

		names := make([]string, 0, len(fr.Params))
		for name := range fr.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s.add(Fact{Predicate: PredParam, Args: []Term{
				Int(int64(fr.ID)), Atom(name), paramTerm(fr.Params[name]),
			}})
		}

		s.add(Fact{Predicate: PredStatus, Args: []Term{
			Int(int64(fr.ID)), Atom(fr.Status),
		}})
	}

	return s
}

func paramTerm(v any) Term {
	switch val := v.(type) {
	case nil:
		return Null()
	case int:
		return Int(int64(val))
	case int64:
		return Int(val)
	case string:
		return Str(val)
	default:
		return Str(fmt.Sprint(val))
	}
}

func (s *Store) add(f Fact) {
	s.facts[f.Predicate] = append(s.facts[f.Predicate], f)
	s.total++
}

// Schema returns the declared predicate arities.
func (s *Store) Schema() Schema { return s.schema }

// Facts returns the facts for a predicate in insertion order. The returned
// slice must not be modified.
func (s *Store) Facts(predicate string) []Fact { return s.facts[predicate] }

// Len returns the total number of facts.
func (s *Store) Len() int { return s.total }

// Arity returns the declared arity for a predicate.
func (s *Store) Arity(predicate string) (int, bool) {
	n, ok := s.schema[predicate]
	return n, ok
}
