// Package parse validates query text and produces the typed query AST.
// Malformed input never panics and never surfaces as a Go error: every
// failure is reported as a *Error carrying a message and a correction hint.
package parse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/probelab/traceq/pkg/traceq/fact"
)

// Kind is the top-level query form.
type Kind int

const (
	// Simple is a single condition.
	Simple Kind = iota
	// Compound is a conjunction of two or more conditions.
	Compound
	// Negation is a single negated ground condition.
	Negation
)

func (k Kind) String() string {
	switch k {
	case Simple:
		return "simple"
	case Compound:
		return "compound"
	case Negation:
		return "negation"
	}
	return "unknown"
}

// Term is one argument position in a condition: either a variable name or a
// constant value.
type Term struct {
	Variable string
	Value    fact.Term
}

// IsVariable reports whether the term is a variable.
func (t Term) IsVariable() bool { return t.Variable != "" }

// Anonymous reports whether the term is the anonymous variable, which
// matches anything and never binds.
func (t Term) Anonymous() bool { return t.Variable == "_" }

// Condition is one predicate application inside a query.
type Condition struct {
	Predicate string
	Args      []Term
	// Raw is the source segment, kept for diagnostics.
	Raw string
}

// Query is a validated query AST.
type Query struct {
	Kind  Kind
	Conds []Condition
}

// Description summarizes a validated query for UI consumption.
type Description struct {
	Type          string
	Predicates    []string
	Variables     []string
	VariableCount int
}

// ErrorKind classifies validation failures.
type ErrorKind int

const (
	MissingPrefix ErrorKind = iota
	MissingTerminator
	MalformedNegation
	UnparsableCondition
	UnknownPredicate
	ArityMismatch
	UppercasePredicateName
	NonGroundNegation
)

func (k ErrorKind) String() string {
	switch k {
	case MissingPrefix:
		return "MissingPrefix"
	case MissingTerminator:
		return "MissingTerminator"
	case MalformedNegation:
		return "MalformedNegation"
	case UnparsableCondition:
		return "UnparsableCondition"
	case UnknownPredicate:
		return "UnknownPredicate"
	case ArityMismatch:
		return "ArityMismatch"
	case UppercasePredicateName:
		return "UppercasePredicateName"
	case NonGroundNegation:
		return "NonGroundNegation"
	}
	return "Unknown"
}

// Error is a typed validation failure with an actionable hint.
type Error struct {
	Kind    ErrorKind
	Message string
	Hint    string
	// Segment is the offending condition text, when one can be named.
	Segment string
}

func (e *Error) Error() string { return e.Message }

func errf(kind ErrorKind, segment, message, hint string) *Error {
	return &Error{Kind: kind, Message: message, Hint: hint, Segment: segment}
}

// Validator checks query text against a predicate schema.
type Validator struct {
	schema        fact.Schema
	maxConditions int
}

// DefaultMaxConditions bounds the nested-loop join cost for untrusted input.
const DefaultMaxConditions = 8

// NewValidator creates a validator. maxConditions <= 0 selects the default
// cap.
func NewValidator(schema fact.Schema, maxConditions int) *Validator {
	if schema == nil {
		schema = fact.DefaultSchema()
	}
	if maxConditions <= 0 {
		maxConditions = DefaultMaxConditions
	}
	return &Validator{schema: schema, maxConditions: maxConditions}
}

// Validate parses query text into an AST or a typed error. It never panics,
// whatever the input.
func (v *Validator) Validate(text string) (Query, Description, *Error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, Description{}, errf(MissingPrefix, "",
			"Empty input - please enter a query.",
			"A query should look like: ?- predicate(arg1, arg2).")
	}

	if !strings.HasPrefix(text, "?-") {
		return Query{}, Description{}, errf(MissingPrefix, "",
			"Missing query prefix '?-'.",
			"All queries must start with '?-'. Try: ?- predicate(arguments).")
	}
	if !strings.HasSuffix(text, ".") {
		return Query{}, Description{}, errf(MissingTerminator, "",
			"Missing period at the end.",
			"All queries must end with a period (.).")
	}

	body := strings.TrimSpace(text[2 : len(text)-1])
	if body == "" {
		return Query{}, Description{}, errf(UnparsableCondition, "",
			"Empty query body.",
			"Specify what you want to query. Example: ?- frame(1, X, Y, Z).")
	}

	if strings.HasPrefix(body, `\+`) {
		return v.validateNegation(body)
	}

	segments := splitTop(body)
	if len(segments) == 1 {
		cond, err := v.parseCondition(segments[0])
		if err != nil {
			return Query{}, Description{}, err
		}
		q := Query{Kind: Simple, Conds: []Condition{cond}}
		return q, describe(q), nil
	}
	return v.validateCompound(segments)
}

func (v *Validator) validateNegation(body string) (Query, Description, *Error) {
	rest := strings.TrimSpace(body[2:])
	if rest == "" {
		return Query{}, Description{}, errf(MalformedNegation, "",
			"Empty negation query.",
			`Specify what to check for absence. Example: ?- \+ status(1, error).`)
	}

	segments := splitTop(rest)
	if len(segments) != 1 {
		return Query{}, Description{}, errf(MalformedNegation, rest,
			"Negation applies to exactly one condition.",
			`Negate a single condition: ?- \+ status(1, error).`)
	}

	cond, err := v.parseCondition(segments[0])
	if err != nil {
		return Query{}, Description{}, err
	}
	for _, arg := range cond.Args {
		if arg.IsVariable() {
			return Query{}, Description{}, errf(NonGroundNegation, cond.Raw,
				fmt.Sprintf("Negated condition contains the variable '%s'.", arg.Variable),
				"Negation checks absence of a specific fact; use constants only.")
		}
	}

	q := Query{Kind: Negation, Conds: []Condition{cond}}
	return q, describe(q), nil
}

func (v *Validator) validateCompound(segments []string) (Query, Description, *Error) {
	if len(segments) > v.maxConditions {
		return Query{}, Description{}, errf(UnparsableCondition, "",
			fmt.Sprintf("Too many conditions: %d (limit %d).", len(segments), v.maxConditions),
			"Break the investigation into smaller queries.")
	}

	conds := make([]Condition, 0, len(segments))
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if strings.HasPrefix(seg, `\+`) {
			return Query{}, Description{}, errf(MalformedNegation, seg,
				"Negation cannot appear inside a conjunction.",
				`Run the negated check on its own: ?- \+ status(1, error).`)
		}
		cond, err := v.parseCondition(seg)
		if err != nil {
			err.Message = fmt.Sprintf("Error in condition %d: %s", i+1, err.Message)
			return Query{}, Description{}, err
		}
		conds = append(conds, cond)
	}

	q := Query{Kind: Compound, Conds: conds}
	return q, describe(q), nil
}

func (v *Validator) parseCondition(seg string) (Condition, *Error) {
	seg = strings.TrimSpace(seg)
	if seg == "" {
		return Condition{}, errf(UnparsableCondition, seg,
			"Empty condition.",
			"Check for extra commas between conditions.")
	}

	open := strings.IndexByte(seg, '(')
	if open < 0 {
		return Condition{}, errf(UnparsableCondition, seg,
			"Missing parentheses around arguments.",
			"Queries need parentheses: ?- predicate(arg1, arg2).")
	}

	name := strings.TrimSpace(seg[:open])
	if name == "" {
		return Condition{}, errf(UnparsableCondition, seg,
			"Missing predicate name.",
			"Specify what you want to query. Example: ?- frame(1, X, Y, Z).")
	}
	if first, _ := utf8.DecodeRuneInString(name); unicode.IsUpper(first) {
		return Condition{}, errf(UppercasePredicateName, seg,
			fmt.Sprintf("Predicate name '%s' starts with an uppercase letter.", name),
			"Predicate names must be lowercase.")
	}
	if !isIdent(name) {
		return Condition{}, errf(UnparsableCondition, seg,
			fmt.Sprintf("Invalid predicate name '%s'.", name),
			"Predicate names contain only letters, digits, and underscores.")
	}

	if !strings.HasSuffix(seg, ")") {
		return Condition{}, errf(UnparsableCondition, seg,
			"Mismatched parentheses.",
			"Make sure each '(' has a matching ')'.")
	}
	argsText := seg[open+1 : len(seg)-1]
	if strings.ContainsAny(argsText, "()") {
		return Condition{}, errf(UnparsableCondition, seg,
			"Mismatched parentheses.",
			"Arguments cannot contain parentheses.")
	}
	if strings.TrimSpace(argsText) == "" {
		return Condition{}, errf(UnparsableCondition, seg,
			"Empty argument list.",
			fmt.Sprintf("The %s predicate requires arguments.", name))
	}

	var args []Term
	for _, raw := range splitTop(argsText) {
		arg, err := parseArg(strings.TrimSpace(raw), seg)
		if err != nil {
			return Condition{}, err
		}
		args = append(args, arg)
	}

	arity, known := v.schema[name]
	if !known {
		return Condition{}, errf(UnknownPredicate, seg,
			fmt.Sprintf("Unknown predicate '%s'.", name),
			fmt.Sprintf("Valid predicates are: %s.", strings.Join(v.schema.Predicates(), ", ")))
	}
	if len(args) != arity {
		return Condition{}, errf(ArityMismatch, seg,
			fmt.Sprintf("Predicate '%s' takes %d arguments, got %d.", name, arity, len(args)),
			fmt.Sprintf("Write %s with exactly %d arguments.", name, arity))
	}

	return Condition{Predicate: name, Args: args, Raw: seg}, nil
}

func parseArg(raw, segment string) (Term, *Error) {
	if raw == "" {
		return Term{}, errf(UnparsableCondition, segment,
			"Empty argument in query.",
			"Check for extra commas or missing arguments.")
	}

	if raw[0] == '"' || raw[0] == '\'' {
		if len(raw) < 2 || raw[len(raw)-1] != raw[0] {
			return Term{}, errf(UnparsableCondition, segment,
				fmt.Sprintf("Unterminated quote in argument %s.", raw),
				"Close the quote: \"value\".")
		}
		return Term{Value: fact.Str(raw[1 : len(raw)-1])}, nil
	}

	first, _ := utf8.DecodeRuneInString(raw)
	if unicode.IsUpper(first) || first == '_' {
		if !isIdentTail(raw) {
			return Term{}, errf(UnparsableCondition, segment,
				fmt.Sprintf("Invalid variable name '%s'.", raw),
				"Variables start with an uppercase letter or underscore.")
		}
		return Term{Variable: raw}, nil
	}

	if looksNumeric(raw) {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Term{}, errf(UnparsableCondition, segment,
				fmt.Sprintf("Invalid number '%s'.", raw),
				"Numeric arguments must be plain integers.")
		}
		return Term{Value: fact.Int(n)}, nil
	}

	if unicode.IsLower(first) && isIdentTail(raw) {
		return Term{Value: fact.Atom(raw)}, nil
	}

	return Term{}, errf(UnparsableCondition, segment,
		fmt.Sprintf("Invalid argument '%s'.", raw),
		"Arguments are atoms (lowercase), variables (uppercase), or numbers.")
}

func describe(q Query) Description {
	d := Description{Type: q.Kind.String()}
	seen := make(map[string]bool)
	for _, cond := range q.Conds {
		d.Predicates = append(d.Predicates, cond.Predicate)
		for _, arg := range cond.Args {
			if arg.IsVariable() && !arg.Anonymous() && !seen[arg.Variable] {
				seen[arg.Variable] = true
				d.Variables = append(d.Variables, arg.Variable)
			}
		}
	}
	d.VariableCount = len(d.Variables)
	return d
}

// splitTop splits on commas at paren depth zero, outside quotes. It never
// fails; unbalanced input just yields odd segments for the condition parser
// to reject.
func splitTop(s string) []string {
	var (
		segments []string
		start    int
		depth    int
		quote    byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				segments = append(segments, s[start:i])
				start = i + 1
			}
		}
	}
	segments = append(segments, s[start:])
	return segments
}

func isIdent(s string) bool {
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLower(r) {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return s != ""
}

// isIdentTail accepts identifier characters after any first rune.
func isIdentTail(s string) bool {
	for i, r := range s {
		if i == 0 {
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return s != ""
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
