package trace

import (
	"fmt"
	"math/rand"
)

// Scenario selects which anomaly the generator embeds in a trace.
type Scenario string

const (
	MemoryLeak         Scenario = "memory_leak"
	StackOverflow      Scenario = "stack_overflow"
	NullPointer        Scenario = "null_pointer"
	Deadlock           Scenario = "deadlock"
	ResourceExhaustion Scenario = "resource_exhaustion"
)

// Scenarios lists every supported scenario.
func Scenarios() []Scenario {
	return []Scenario{MemoryLeak, StackOverflow, NullPointer, Deadlock, ResourceExhaustion}
}

// ParseScenario resolves a scenario name.
func ParseScenario(name string) (Scenario, error) {
	for _, s := range Scenarios() {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown scenario %q", name)
}

// Function names used for filler frames.
var systemFunctions = []string{
	"init_system", "load_config", "start_ai_core", "process_request",
	"allocate_buffer", "parse_input", "validate_data", "execute_query",
	"format_response", "cleanup_resources", "log_event", "check_permissions",
	"acquire_lock", "release_lock", "read_file", "write_file",
}

// Generator produces stack traces with one embedded anomaly.
// The same seed always yields the same trace.
type Generator struct {
	scenario Scenario
	rng      *rand.Rand

	frames    []Frame
	nextID    int
	timestamp int64
}

// NewGenerator creates a generator for the given scenario and seed.
func NewGenerator(scenario Scenario, seed int64) *Generator {
	return &Generator{
		scenario: scenario,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Generate builds a trace of roughly numFrames frames. Anomaly frames are
// placed after the first half of normal frames, as a real crash dump would
// show setup succeeding before the failure.
func (g *Generator) Generate(numFrames int) []Frame {
	if numFrames <= 0 {
		numFrames = 12
	}

	g.frames = nil
	g.nextID = 1
	g.timestamp = 1000

	g.normalFrames(numFrames / 2)

	switch g.scenario {
	case MemoryLeak:
		g.injectMemoryLeak()
	case StackOverflow:
		g.injectStackOverflow()
	case NullPointer:
		g.injectNullPointer()
	case Deadlock:
		g.injectDeadlock()
	case ResourceExhaustion:
		g.injectResourceExhaustion()
	}

	if remaining := numFrames - len(g.frames); remaining > 0 {
		g.normalFrames(remaining)
	}

	return g.frames
}

func (g *Generator) lastID() int {
	if len(g.frames) == 0 {
		return 0
	}
	return g.frames[len(g.frames)-1].ID
}

func (g *Generator) push(f Frame) {
	g.frames = append(g.frames, f)
	g.nextID++
}

func (g *Generator) normalFrames(count int) {
	for i := 0; i < count; i++ {
		g.push(Frame{
			ID:        g.nextID,
			Name:      systemFunctions[g.rng.Intn(len(systemFunctions))],
			CallerID:  g.lastID(),
			Timestamp: g.timestamp,
			Allocated: int64(1024 + g.rng.Intn(7169)), // 1KB to 8KB
			Status:    []string{StatusActive, StatusCompleted}[g.rng.Intn(2)],
			Params:    g.normalParams(),
		})
		g.timestamp += int64(10 + g.rng.Intn(91))
	}
}

func (g *Generator) normalParams() map[string]any {
	params := make(map[string]any)
	for i := 0; i < g.rng.Intn(4); i++ {
		name := fmt.Sprintf("arg%d", i)
		switch g.rng.Intn(3) {
		case 0:
			params[name] = g.rng.Intn(1001)
		case 1:
			params[name] = fmt.Sprintf("data_%d", 1+g.rng.Intn(100))
		default:
			params[name] = nil
		}
	}
	return params
}

// injectMemoryLeak adds repeated buffer allocations with no matching
// cleanup frames, 1MB each.
func (g *Generator) injectMemoryLeak() {
	for i := 0; i < 3; i++ {
		g.push(Frame{
			ID:        g.nextID,
			Name:      "allocate_buffer",
			CallerID:  g.lastID(),
			Timestamp: g.timestamp,
			Allocated: 1 << 20,
			Status:    StatusActive,
			Params:    map[string]any{"buffer_size": 1 << 20, "buffer_id": i},
		})
		g.timestamp += 50
	}
}

// injectStackOverflow adds a recursive chain deeper than the max_depth its
// own parameters declare.
func (g *Generator) injectStackOverflow() {
	for depth := 0; depth < 15; depth++ {
		g.push(Frame{
			ID:        g.nextID,
			Name:      "recursive_process",
			CallerID:  g.lastID(),
			Timestamp: g.timestamp,
			Allocated: 4096,
			Status:    StatusActive,
			Params:    map[string]any{"depth": depth, "max_depth": 10},
		})
		g.timestamp += 5
	}
}

// injectNullPointer adds an errored frame whose parameters are null.
func (g *Generator) injectNullPointer() {
	g.push(Frame{
		ID:        g.nextID,
		Name:      "process_request",
		CallerID:  g.lastID(),
		Timestamp: g.timestamp,
		Allocated: 2048,
		Status:    StatusError,
		Params:    map[string]any{"request_data": nil, "handler": nil},
	})
	g.timestamp += 20
}

// injectDeadlock adds two lock-acquisition frames whose caller edges form a
// cycle: each frame is recorded as called by the other.
func (g *Generator) injectDeadlock() {
	first := g.nextID
	second := g.nextID + 1

	g.push(Frame{
		ID:        first,
		Name:      "acquire_lock",
		CallerID:  second,
		Timestamp: g.timestamp,
		Allocated: 1024,
		Status:    StatusActive,
		Params:    map[string]any{"lock_id": "lock_a", "waiting_for": "lock_b"},
	})
	g.timestamp += 10

	g.push(Frame{
		ID:        second,
		Name:      "acquire_lock",
		CallerID:  first,
		Timestamp: g.timestamp,
		Allocated: 1024,
		Status:    StatusActive,
		Params:    map[string]any{"lock_id": "lock_b", "waiting_for": "lock_a"},
	})
	g.timestamp += 10
}

// injectResourceExhaustion adds five 10MB dataset loads.
func (g *Generator) injectResourceExhaustion() {
	for i := 0; i < 5; i++ {
		g.push(Frame{
			ID:        g.nextID,
			Name:      "load_dataset",
			CallerID:  g.lastID(),
			Timestamp: g.timestamp,
			Allocated: 10 << 20,
			Status:    StatusActive,
			Params:    map[string]any{"dataset_id": i, "size": "large"},
		})
		g.timestamp += 100
	}
}
