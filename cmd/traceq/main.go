// Command traceq is a diagnostic terminal over a stack trace: load a trace
// from an archive (or generate a scenario), then investigate it with
// Prolog-style queries.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/probelab/traceq/pkg/traceq"
	"github.com/probelab/traceq/pkg/traceq/callgraph"
	"github.com/probelab/traceq/pkg/traceq/config"
	"github.com/probelab/traceq/pkg/traceq/trace"
	"github.com/probelab/traceq/pkg/traceq/trace/sqlite"
)

func main() {
	var (
		dbPath     = flag.String("db", "", "Trace archive path (optional)")
		traceName  = flag.String("trace", "", "Named trace to load from the archive")
		saveAs     = flag.String("save", "", "Save the generated trace under this name (requires --db)")
		scenario   = flag.String("scenario", string(trace.MemoryLeak), "Scenario to generate when no trace is loaded")
		seed       = flag.Int64("seed", 1985, "Generator seed")
		numFrames  = flag.Int("frames", 12, "Number of frames to generate")
		configPath = flag.String("config", "", "YAML config file (optional)")
		query      = flag.String("query", "", "One-shot query (non-interactive mode)")
	)
	flag.Parse()

	ctx := context.Background()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = &loaded
	}

	frames, err := loadFrames(ctx, *dbPath, *traceName, *saveAs, *scenario, *seed, *numFrames)
	if err != nil {
		log.Fatal(err)
	}

	engine, err := traceq.New(traceq.Options{Frames: frames, Config: cfg})
	if err != nil {
		log.Fatal(err)
	}

	// One-shot query mode
	if *query != "" {
		resp := engine.Ask(*query)
		fmt.Println(resp.Text)
		if !resp.Valid {
			os.Exit(1)
		}
		return
	}

	runREPL(engine, frames)
}

func loadFrames(ctx context.Context, dbPath, traceName, saveAs, scenario string, seed int64, numFrames int) ([]trace.Frame, error) {
	if traceName != "" {
		if dbPath == "" {
			return nil, fmt.Errorf("--trace requires --db")
		}
		archive, err := sqlite.Open(ctx, dbPath)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		defer archive.Close()
		frames, err := archive.Load(ctx, traceName)
		if err != nil {
			return nil, fmt.Errorf("load trace: %w", err)
		}
		return frames, nil
	}

	sc, err := trace.ParseScenario(scenario)
	if err != nil {
		return nil, err
	}
	frames := trace.NewGenerator(sc, seed).Generate(numFrames)

	if saveAs != "" {
		if dbPath == "" {
			return nil, fmt.Errorf("--save requires --db")
		}
		archive, err := sqlite.Open(ctx, dbPath)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		defer archive.Close()
		if err := archive.Save(ctx, saveAs, scenario, frames); err != nil {
			return nil, fmt.Errorf("save trace: %w", err)
		}
		log.Printf("Saved trace %q (%d frames)", saveAs, len(frames))
	}

	return frames, nil
}

func runREPL(engine *traceq.Engine, frames []trace.Frame) {
	fmt.Println("===========================================")
	fmt.Println("  traceq diagnostic terminal")
	fmt.Printf("  %d frames, %d facts loaded\n", len(frames), engine.Store().Len())
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Write queries like: ?- status(F, error).")
	fmt.Println("Commands: :facts  :chain <id>  :path <from> <to>  :session  (Ctrl+D to exit)")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("?> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			runCommand(engine, line)
			continue
		}

		resp := engine.Ask(line)
		fmt.Println(resp.Text)
		fmt.Println()
	}

	fmt.Println("\nSession closed.")
}

func runCommand(engine *traceq.Engine, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":facts":
		for _, pred := range engine.Store().Schema().Predicates() {
			for _, f := range engine.Store().Facts(pred) {
				fmt.Printf("  %s.\n", f)
			}
		}

	case ":chain":
		if len(fields) != 2 {
			fmt.Println("usage: :chain <frame-id>")
			return
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("frame id must be a number")
			return
		}
		fmt.Println(callgraph.FormatInfo(engine.Graph().Describe(id)))

	case ":path":
		if len(fields) != 3 {
			fmt.Println("usage: :path <from> <to>")
			return
		}
		from, err1 := strconv.ParseInt(fields[1], 10, 64)
		to, err2 := strconv.ParseInt(fields[2], 10, 64)
		if err1 != nil || err2 != nil {
			fmt.Println("frame ids must be numbers")
			return
		}
		path := engine.Graph().Path(from, to)
		if path == nil {
			fmt.Printf("no call path from %d to %d\n", from, to)
			return
		}
		parts := make([]string, len(path))
		for i, id := range path {
			parts[i] = strconv.FormatInt(id, 10)
		}
		fmt.Println(strings.Join(parts, " -> "))

	case ":session":
		entries := engine.Session().Entries()
		fmt.Printf("%d queries asked\n", len(entries))
		for _, e := range entries {
			marker := " "
			if e.Significant {
				marker = "*"
			}
			fmt.Printf("  %s %s  %s\n", marker, e.ID, e.QueryText)
		}
		if discoveries := engine.Session().Discoveries(); len(discoveries) > 0 {
			fmt.Printf("discoveries: %s\n", strings.Join(discoveries, ", "))
		}

	default:
		fmt.Println("unknown command:", fields[0])
	}
}
