package cli

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var tracesLimit int

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Inspect recorded searches",
	Long:  `Every search is recorded with its request, timing and top results.`,
	RunE:  runTracesList,
}

var tracesShowCmd = &cobra.Command{
	Use:   "show [trace-id]",
	Short: "Show a recorded search",
	Args:  cobra.ExactArgs(1),
	RunE:  runTracesShow,
}

func init() {
	tracesCmd.Flags().IntVarP(&tracesLimit, "limit", "n", 20, "number of traces to list")
	tracesCmd.AddCommand(tracesShowCmd)
	rootCmd.AddCommand(tracesCmd)
}

func runTracesList(cmd *cobra.Command, _ []string) error {
	if traceService == nil {
		return errors.New("trace service not configured")
	}
	traces, err := traceService.ListTraces(cmd.Context(), tracesLimit)
	if err != nil {
		return err
	}
	if len(traces) == 0 {
		cmd.Println("No searches recorded.")
		return nil
	}
	for _, t := range traces {
		query := t.Query
		if query == "" {
			parts := make([]string, 0, len(t.FieldQueries))
			for f, q := range t.FieldQueries {
				parts = append(parts, f+"="+q)
			}
			sort.Strings(parts)
			query = strings.Join(parts, " ")
		}
		cmd.Printf("%s  %s  %-8s %5d hits %6dms  %s\n",
			t.ID, t.CreatedAt.Format("2006-01-02 15:04:05"), t.Mode, t.NResults, t.Took.Milliseconds(), query)
	}
	return nil
}

func runTracesShow(cmd *cobra.Command, args []string) error {
	if traceService == nil {
		return errors.New("trace service not configured")
	}
	trace, err := traceService.GetTrace(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, trace)
}
