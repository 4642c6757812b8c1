package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down]",
	Short: "Apply database migrations",
	Long: `Applies the embedded schema migrations. The database is migrated up
automatically when opened; use this to roll back, or to step through changes.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE:      runMigrate,
}

func init() {
	migrateCmd.Flags().IntVarP(&migrateSteps, "steps", "n", 0, "number of migrations to apply (0 = all)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrator == nil {
		return errors.New("database not configured")
	}
	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("unknown direction %q, want up or down", direction)
	}
	if direction == "down" && migrateSteps == 0 {
		return errors.New("refusing to roll back every migration, pass --steps")
	}
	if err := migrator.Migrate(direction, migrateSteps); err != nil {
		return err
	}
	cmd.Printf("Migrated %s.\n", direction)
	return nil
}
