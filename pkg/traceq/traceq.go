// Package traceq is a fact-query engine for stack-trace diagnostics. A
// captured trace is compiled once into an immutable fact store; callers then
// ask Prolog-style queries (`?- status(F, error).`) and receive variable
// bindings, rendered text, and a significance classification.
package traceq

import (
	"fmt"

	"github.com/probelab/traceq/pkg/traceq/callgraph"
	"github.com/probelab/traceq/pkg/traceq/config"
	"github.com/probelab/traceq/pkg/traceq/eval"
	"github.com/probelab/traceq/pkg/traceq/fact"
	"github.com/probelab/traceq/pkg/traceq/internalerr"
	"github.com/probelab/traceq/pkg/traceq/parse"
	"github.com/probelab/traceq/pkg/traceq/report"
	"github.com/probelab/traceq/pkg/traceq/session"
	"github.com/probelab/traceq/pkg/traceq/trace"
)

// Engine evaluates queries against one trace. The fact store is read-only
// after New returns, so an Engine may be shared across goroutines for
// querying; the session log is the only mutable state and is unsynchronized.
type Engine struct {
	store     *fact.Store
	validator *parse.Validator
	exec      *eval.Evaluator
	formatter *report.Formatter
	graph     *callgraph.Graph
	session   *session.Log
}

// Options configures an Engine.
type Options struct {
	// Frames is the captured trace the fact store is built from.
	Frames []trace.Frame
	// Config overrides the default tunables when set.
	Config *config.Config
}

// New builds the fact store from the trace and wires the engine.
func New(opts Options) (*Engine, error) {
	cfg := config.Default()
	if opts.Config != nil {
		cfg = *opts.Config
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if len(opts.Frames) > cfg.Limits.MaxFrames {
		return nil, fmt.Errorf("%w: %d frames, limit %d",
			internalerr.ErrTraceTooLarge, len(opts.Frames), cfg.Limits.MaxFrames)
	}

	store := fact.Build(opts.Frames, cfg.Schema())

	return &Engine{
		store:     store,
		validator: parse.NewValidator(store.Schema(), cfg.Limits.MaxConditions),
		exec:      eval.New(store),
		formatter: report.New(store, report.Thresholds{
			MemoryBytes:    cfg.Thresholds.MemoryBytes,
			RecursionCalls: cfg.Thresholds.RecursionCalls,
			PatternMatches: cfg.Thresholds.PatternMatches,
		}),
		graph:   callgraph.New(store),
		session: session.NewLog(),
	}, nil
}

// Response is the structured result of one Ask call.
type Response struct {
	// Valid is false when the query text failed validation; Err then
	// carries the typed error and Text a rendered message.
	Valid bool
	Err   *parse.Error

	// Query and Description are set for valid queries.
	Query       parse.Query
	Description parse.Description

	// Success mirrors the executor: false only for a negation query whose
	// negated fact exists.
	Success  bool
	Bindings []eval.Bindings

	Text        string
	Significant bool
	Category    report.Category
}

// Ask validates, executes, formats, and records one query. Malformed input
// yields a Response with Valid=false; it never returns a Go error.
func (e *Engine) Ask(text string) Response {
	q, desc, verr := e.validator.Validate(text)
	if verr != nil {
		resp := Response{
			Valid: false,
			Err:   verr,
			Text:  fmt.Sprintf("Error: %s\n%s", verr.Message, verr.Hint),
		}
		e.session.Record(session.Entry{QueryText: text})
		return resp
	}

	res := e.exec.Execute(q)
	formatted := e.formatter.Format(q, res)

	e.session.Record(session.Entry{
		QueryText:   text,
		Valid:       true,
		Success:     res.Success,
		ResultCount: len(res.Bindings),
		Significant: formatted.Significant,
		Category:    string(formatted.Category),
	})

	return Response{
		Valid:       true,
		Query:       q,
		Description: desc,
		Success:     res.Success,
		Bindings:    res.Bindings,
		Text:        formatted.Text,
		Significant: formatted.Significant,
		Category:    formatted.Category,
	}
}

// Store exposes the read-only fact store.
func (e *Engine) Store() *fact.Store { return e.store }

// Graph exposes the call graph built from the trace.
func (e *Engine) Graph() *callgraph.Graph { return e.graph }

// Session exposes the investigation log.
func (e *Engine) Session() *session.Log { return e.session }
