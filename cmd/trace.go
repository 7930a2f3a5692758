package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agenticgokit/traceval/internal/config"
	"github.com/agenticgokit/traceval/internal/trace"
	"github.com/agenticgokit/traceval/internal/transcript"
	"github.com/agenticgokit/traceval/internal/tui"
	"github.com/agenticgokit/traceval/internal/utils"
)

// traceCmd represents the trace command
var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect the execution traces inside a report",
	Long: `Inspect the nested execution traces recorded with each transcript.

An entry is selected by its id or by its zero-based index. Without one,
show and mermaid use the first entry and explore starts at the entry list.

Examples:
  traceval trace show reports/run-42.json calendar-1
  traceval trace mermaid reports/run-42.json 3 -o flow.md
  traceval trace explore reports/run-42.json`,
}

var showCmd = &cobra.Command{
	Use:   "show <report.json> [entry]",
	Short: "Print the flattened tool calls and context of an entry",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, entries, index, err := loadEntry(args)
		if err != nil {
			return err
		}
		showEntry(entries[index], trace.NewWalker(cfg.Trace.MaxDepth))
		return nil
	},
}

var mermaidCmd = &cobra.Command{
	Use:   "mermaid <report.json> [entry]",
	Short: "Generate a Mermaid delegation diagram for an entry",
	Long: `Generate Markdown with a Mermaid flowchart of an entry's delegation tree.

Agent calls link to the calls made inside their nested process. Failed
calls and trace errors are highlighted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, entries, index, err := loadEntry(args)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		return writeMermaid(entries[index], trace.NewWalker(cfg.Trace.MaxDepth), output)
	},
}

var exploreCmd = &cobra.Command{
	Use:   "explore <report.json> [entry]",
	Short: "Browse entries and their traces interactively",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rep, err := transcript.LoadReport(args[0], transcript.LoadOptions{MaxDepth: cfg.Trace.MaxDepth})
		if err != nil {
			return err
		}

		model := tui.NewExplorer(rep.Entries, cfg.Trace.MaxDepth)
		if len(args) == 2 {
			index, err := findEntry(rep.Entries, args[1])
			if err != nil {
				return err
			}
			model = tui.NewEntryExplorer(rep.Entries, index, cfg.Trace.MaxDepth)
		}
		if err := tui.Run(model); err != nil {
			return fmt.Errorf("failed to run explorer: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.AddCommand(showCmd)
	traceCmd.AddCommand(mermaidCmd)
	traceCmd.AddCommand(exploreCmd)

	mermaidCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
}

// loadEntry loads the report named by args[0] and resolves the optional
// entry selector in args[1].
func loadEntry(args []string) (config.Config, []transcript.Entry, int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, 0, err
	}
	rep, err := transcript.LoadReport(args[0], transcript.LoadOptions{MaxDepth: cfg.Trace.MaxDepth})
	if err != nil {
		return config.Config{}, nil, 0, err
	}
	if len(rep.Entries) == 0 {
		return config.Config{}, nil, 0, utils.NewUserError("Report has no entries", "", nil)
	}

	index := 0
	if len(args) > 1 {
		if index, err = findEntry(rep.Entries, args[1]); err != nil {
			return config.Config{}, nil, 0, err
		}
	}
	return cfg, rep.Entries, index, nil
}

// findEntry matches sel against entry IDs first, then as an index.
func findEntry(entries []transcript.Entry, sel string) (int, error) {
	for i, e := range entries {
		if e.ID != "" && e.ID == sel {
			return i, nil
		}
	}
	if i, err := strconv.Atoi(sel); err == nil && i >= 0 && i < len(entries) {
		return i, nil
	}
	return 0, utils.NewUserError(fmt.Sprintf("Entry %q not found", sel),
		fmt.Sprintf("Use an entry id or an index between 0 and %d", len(entries)-1), nil)
}

func entryTitle(e transcript.Entry) string {
	if e.ID != "" {
		return e.ID
	}
	if e.Input != nil {
		return firstLine(*e.Input)
	}
	return "transcript"
}

func showEntry(e transcript.Entry, w *trace.Walker) {
	bold := color.New(color.Bold)

	bold.Printf("Entry: %s\n", entryTitle(e))
	if e.TaskType != "" {
		fmt.Printf("Task type: %s\n", e.TaskType)
	}
	if e.Input != nil {
		fmt.Printf("Input: %s\n", *e.Input)
	}
	if e.ActualOutput != nil {
		fmt.Printf("Output: %s\n", *e.ActualOutput)
	}

	calls := w.ToolCalls(e.Trace)
	bold.Printf("\nTools called (%d)\n", len(calls))
	for i, c := range calls {
		fmt.Printf("  %2d. %s %s\n", i+1, color.CyanString(c.Name), trace.CanonicalArgs(c.InputParameters))
	}

	lines := w.Context(e.Trace)
	bold.Printf("\nContext (%d)\n", len(lines))
	for i, c := range lines {
		fmt.Printf("  %2d. %s\n", i+1, c)
	}

	if e.Trace != nil && e.Trace.Error != "" {
		fmt.Println()
		color.Red("Trace error: %s", e.Trace.Error)
	}
}

func writeMermaid(e transcript.Entry, w *trace.Walker, output string) error {
	var content strings.Builder
	title := entryTitle(e)
	fmt.Fprintf(&content, "# Agent Trace: %s\n\n", title)
	fmt.Fprintf(&content, "**Tool calls:** %d | **Delegation depth:** %d\n\n",
		len(w.ToolCalls(e.Trace)), e.Trace.Depth())
	content.WriteString("## Execution Flow\n\n")
	content.WriteString(w.Render(e.Trace, title))

	if output == "" {
		fmt.Println(content.String())
		return nil
	}
	if err := os.WriteFile(output, []byte(content.String()), 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	fmt.Printf("✅ Generated Mermaid diagram: %s\n", output)
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
