package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/laws-africa/peachjam/internal/adapters/driving/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse search results in the terminal",
	Long: `Launches an interactive search browser.

Controls:
  enter      Search / open the selected document
  tab        Cycle text, semantic and hybrid search
  ↑/k, ↓/j   Move through results
  [ ]        Previous / next page
  /          New search
  ?          Help
  esc        Back
  ctrl+c     Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("tui panic: %v", r)
		}
	}()

	app, err := tui.NewApp(cmd.Context(), &tui.Ports{
		Search:    searchService,
		Documents: documentService,
	})
	if err != nil {
		return err
	}
	if err := app.Run(cmd.Context()); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
