package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/braidworks/braid/eventlog"
	"github.com/braidworks/braid/eventlog/sqlite"
	"github.com/braidworks/braid/graph"
)

var replayCmd = &cobra.Command{
	Use:   "replay [run-id]",
	Short: "Rebuild a run's execution graph from the event log",
	Long: `Reads a persisted run from the SQLite event log and prints its execution
tree. Without a run id it lists the stored runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Store.Path == "" {
			return fmt.Errorf("replay needs a persistent event log: set store.path or BRAID_DB_PATH")
		}

		log, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer log.Close()

		if len(args) == 0 {
			return listRuns(cmd.Context(), log)
		}
		return printRun(cmd.Context(), log, args[0])
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func listRuns(ctx context.Context, log *sqlite.Log) error {
	runs, err := log.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs stored")
		return nil
	}
	for _, id := range runs {
		fmt.Println(id)
	}
	return nil
}

func printRun(ctx context.Context, log eventlog.Log, runID string) error {
	g, err := eventlog.Replay(ctx, log, runID)
	if err != nil {
		return err
	}
	root, ok := g.Root()
	if !ok {
		return fmt.Errorf("run %s has no events", runID)
	}
	printNode(root, 0)
	return nil
}

func printNode(n graph.Node, depth int) {
	indent := strings.Repeat("  ", depth)

	label := string(n.Kind)
	if n.Name != "" {
		label += " " + n.Name
	}
	fmt.Printf("%s%s [%s]", indent, label, n.Status)
	if n.Steps > 0 {
		fmt.Printf(" steps=%d", n.Steps)
	}
	if n.Retries > 0 {
		fmt.Printf(" retries=%d", n.Retries)
	}
	if !n.Usage.IsZero() {
		fmt.Printf(" tokens=%d", n.Usage.TotalTokens)
	}
	fmt.Println()

	if n.Error != nil {
		fmt.Printf("%s  error: %s\n", indent, n.Error.Message)
	}
	if n.Output != "" {
		fmt.Printf("%s  output: %s\n", indent, firstLine(n.Output, 120))
	}
	for _, c := range n.Children {
		printNode(c, depth+1)
	}
}

// firstLine flattens output to its first line and caps its length so deep
// trees stay readable.
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
