package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowlens/flowlens/pkg/diagram"
	"github.com/flowlens/flowlens/pkg/filetree"
	"github.com/flowlens/flowlens/pkg/impact"
	"github.com/flowlens/flowlens/pkg/providers"
	"github.com/flowlens/flowlens/pkg/schema"
	"github.com/flowlens/flowlens/pkg/tracer"
	"github.com/flowlens/flowlens/pkg/tui"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
// The .env file is gitignored so secrets never end up in source control.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "flowlens",
	Short: "Interactive execution tracer",
	Long:  "flowlens — trace a function line by line, inspect its state at each pause, and find the functions a diff makes worth tracing.",
}

// --- trace ---

var (
	traceRepo    string
	traceArgs    string
	traceStop    int
	traceWhen    string
	traceTimeout time.Duration
)

var traceCmd = &cobra.Command{
	Use:   "trace [path::function]",
	Short: "Trace one function interactively, one event per continue",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrace,
}

func runTrace(cmd *cobra.Command, args []string) error {
	req := schema.TraceRequest{
		RepoRoot:    traceRepo,
		EntryFullID: args[0],
		ArgsJSON:    traceArgs,
		StopLine:    traceStop,
	}

	session, err := tracer.NewSession(req, os.Stdout, os.Stderr)
	if err != nil {
		// Machine controllers read the event stream; give them a
		// parseable failure before exiting non-zero.
		tracer.EmitSetupFailure(os.Stdout, err)
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	session.WaitTimeout = traceTimeout
	if traceWhen != "" {
		if err := session.Probe.SetCondition(traceWhen); err != nil {
			return err
		}
	}

	// An initial stop line runs the first cycle before handing the
	// loop to the controller.
	if traceStop > 0 {
		if err := session.ContinueUntil(traceStop, traceWhen); err != nil {
			return err
		}
		if err := session.Emit(session.WaitForEvent()); err != nil {
			return err
		}
		if session.Terminal() {
			return nil
		}
	}

	return session.Run(cmd.Context())
}

// --- flows ---

var (
	flowsRepo    string
	flowsOut     string
	flowsDiagram string
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Report changed functions, their call graph, and the roots worth tracing",
	RunE:  runFlows,
}

func runFlows(cmd *cobra.Command, args []string) error {
	analyzer := &impact.Analyzer{Repo: flowsRepo, Executor: &providers.RealExecutor{}}

	report, err := analyzer.Analyze(context.Background())
	if err != nil {
		return err
	}
	if flowsOut != "" {
		if err := os.MkdirAll(flowsOut, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := report.WriteArtifacts(flowsOut); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ analysis artifacts written to %s\n", flowsOut)
	}

	if flowsDiagram != "" {
		out, err := diagram.Generate(report.Graph, report.Parents, diagram.Format(flowsDiagram))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	return printJSON(os.Stdout, map[string]interface{}{
		"parents":   report.Parents,
		"functions": report.Bodies,
	})
}

// --- tree ---

var treeCmd = &cobra.Command{
	Use:   "tree [root]",
	Short: "Print the folder/file tree of a directory as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTree,
}

func runTree(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	node, err := filetree.Build(root)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, node)
}

// --- tui ---

var (
	tuiRepo string
	tuiArgs string
)

var tuiCmd = &cobra.Command{
	Use:   "tui [path::function]",
	Short: "Step through a trace in a terminal UI",
	Args:  cobra.ExactArgs(1),
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	req := schema.TraceRequest{
		RepoRoot:    tuiRepo,
		EntryFullID: args[0],
		ArgsJSON:    tuiArgs,
	}

	// The terminal owns stdout; events only land in the run artifacts.
	session, err := tracer.NewSession(req, io.Discard, os.Stderr)
	if err != nil {
		return err
	}
	return tui.Run(session)
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema utilities",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the JSON Schema for trace requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flowlens %s (build: %s)\n", version, commit)
	},
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func init() {
	traceCmd.Flags().StringVar(&traceRepo, "repo", ".", "path to the repo containing the target file")
	traceCmd.Flags().StringVar(&traceArgs, "args", "", `call arguments as {"args": [...], "kwargs": {...}}`)
	traceCmd.Flags().IntVar(&traceStop, "stop-line", 0, "run the first cycle to this line before reading commands")
	traceCmd.Flags().StringVar(&traceWhen, "when", "", "pause condition over the locals at the target line")
	traceCmd.Flags().DurationVar(&traceTimeout, "timeout", tracer.DefaultWaitTimeout, "how long each cycle waits for an event")

	flowsCmd.Flags().StringVar(&flowsRepo, "repo", ".", "path to the git repo to analyze")
	flowsCmd.Flags().StringVar(&flowsOut, "out", "", "directory for functions.json, call_graph.json, parent_functions.json")
	flowsCmd.Flags().StringVar(&flowsDiagram, "diagram", "", "render the call graph instead: mermaid or ascii")

	tuiCmd.Flags().StringVar(&tuiRepo, "repo", ".", "path to the repo containing the target file")
	tuiCmd.Flags().StringVar(&tuiArgs, "args", "", `call arguments as {"args": [...], "kwargs": {...}}`)

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(flowsCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
