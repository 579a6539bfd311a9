// Package callgraph answers relationship questions over the calls facts of
// a store: transitive caller/callee chains, shortest call paths, and
// per-frame summaries.
package callgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/probelab/traceq/pkg/traceq/fact"
)

// Direction selects which way a chain is walked.
type Direction int

const (
	// Callees walks from a frame to the frames it (transitively) called.
	Callees Direction = iota
	// Callers walks from a frame to the frames that (transitively) called it.
	Callers
)

// Graph is an immutable view of the calls relation, built once per store.
type Graph struct {
	callees map[int64][]int64
	callers map[int64][]int64
}

// New builds the graph from the store's calls facts, preserving fact order
// on each adjacency list.
func New(store *fact.Store) *Graph {
	g := &Graph{
		callees: make(map[int64][]int64),
		callers: make(map[int64][]int64),
	}
	for _, f := range store.Facts(fact.PredCalls) {
		if len(f.Args) != 2 || f.Args[0].Kind != fact.KindInt || f.Args[1].Kind != fact.KindInt {
			continue
		}
		caller, callee := f.Args[0].Int, f.Args[1].Int
		g.callees[caller] = append(g.callees[caller], callee)
		g.callers[callee] = append(g.callers[callee], caller)
	}
	return g
}

// Chain returns every frame reachable from start in the given direction,
// breadth-first, excluding start itself.
func (g *Graph) Chain(start int64, dir Direction) []int64 {
	adj := g.callees
	if dir == Callers {
		adj = g.callers
	}

	visited := map[int64]bool{start: true}
	queue := []int64{start}
	var chain []int64

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adj[current] {
			if visited[next] {
				continue
			}
			visited[next] = true
			chain = append(chain, next)
			queue = append(queue, next)
		}
	}
	return chain
}

// Path returns the shortest caller-to-callee path between two frames,
// including both endpoints, or nil when none exists.
func (g *Graph) Path(from, to int64) []int64 {
	if from == to {
		return []int64{from}
	}

	type node struct {
		id   int64
		path []int64
	}
	visited := map[int64]bool{from: true}
	queue := []node{{id: from, path: []int64{from}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.callees[current.id] {
			path := append(append([]int64{}, current.path...), next)
			if next == to {
				return path
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, node{id: next, path: path})
			}
		}
	}
	return nil
}

// Info summarizes one frame's relationships.
type Info struct {
	FrameID       int64
	DirectCallers []int64
	DirectCallees []int64
	CallerChain   []int64
	CalleeChain   []int64
}

// Describe collects direct and transitive relationships for a frame.
func (g *Graph) Describe(frameID int64) Info {
	return Info{
		FrameID:       frameID,
		DirectCallers: append([]int64(nil), g.callers[frameID]...),
		DirectCallees: append([]int64(nil), g.callees[frameID]...),
		CallerChain:   g.Chain(frameID, Callers),
		CalleeChain:   g.Chain(frameID, Callees),
	}
}

// Frames returns every frame id that appears in a calls fact, sorted.
func (g *Graph) Frames() []int64 {
	seen := make(map[int64]bool)
	for id := range g.callees {
		seen[id] = true
	}
	for id := range g.callers {
		seen[id] = true
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FormatInfo renders a relationship summary for display.
func FormatInfo(info Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Relationships for frame %d:\n", info.FrameID)

	if len(info.DirectCallers) > 0 {
		fmt.Fprintf(&b, "  direct callers: %s\n", joinIDs(info.DirectCallers))
	} else {
		b.WriteString("  direct callers: none (root frame)\n")
	}
	if len(info.DirectCallees) > 0 {
		fmt.Fprintf(&b, "  direct callees: %s\n", joinIDs(info.DirectCallees))
	} else {
		b.WriteString("  direct callees: none (leaf frame)\n")
	}

	if len(info.CallerChain) > 0 {
		fmt.Fprintf(&b, "  caller chain: %s -> %d\n", joinArrow(info.CallerChain), info.FrameID)
	} else {
		b.WriteString("  caller chain: (root frame)\n")
	}
	if len(info.CalleeChain) > 0 {
		fmt.Fprintf(&b, "  callee chain: %d -> %s\n", info.FrameID, joinArrow(info.CalleeChain))
	} else {
		b.WriteString("  callee chain: (leaf frame)\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}

func joinArrow(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, " -> ")
}
