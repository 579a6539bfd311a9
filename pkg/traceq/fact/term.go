package fact

import "strconv"

// Kind discriminates the closed set of term representations.
type Kind int

const (
	// KindInt is an integer value.
	KindInt Kind = iota
	// KindStr is a quoted string value.
	KindStr
	// KindAtom is a bareword symbol.
	KindAtom
)

// Term is a ground value stored in a fact or written as a query constant.
// It is a small tagged union; no reflection is involved in comparisons.
type Term struct {
	Kind Kind
	Int  int64
	Text string
}

// Int makes an integer term.
func Int(v int64) Term { return Term{Kind: KindInt, Int: v} }

// Str makes a quoted-string term.
func Str(s string) Term { return Term{Kind: KindStr, Text: s} }

// Atom makes a bareword term.
func Atom(s string) Term { return Term{Kind: KindAtom, Text: s} }

// Null is the absence atom used for missing parameter values.
func Null() Term { return Atom("null") }

// Equal reports value equality. Atoms and quoted strings denote the same
// textual value; the kind only records surface syntax, so atom init and
// string "init" compare equal.
func (t Term) Equal(o Term) bool {
	if t.Kind == KindInt || o.Kind == KindInt {
		return t.Kind == KindInt && o.Kind == KindInt && t.Int == o.Int
	}
	return t.Text == o.Text
}

// IsNull reports whether the term is the null atom.
func (t Term) IsNull() bool {
	return t.Kind != KindInt && t.Text == "null"
}

// String renders the term the way it appears in results: integers as
// digits, textual values bare.
func (t Term) String() string {
	if t.Kind == KindInt {
		return strconv.FormatInt(t.Int, 10)
	}
	return t.Text
}
