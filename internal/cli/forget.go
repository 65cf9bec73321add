package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/config"
)

var forgetReason string

var forgetCmd = &cobra.Command{
	Use:   "forget <memory-id>",
	Short: "Delete a memory, leaving a tombstone",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

func init() {
	forgetCmd.Flags().StringVar(&forgetReason, "reason", "operator request", "reason recorded in the tombstone")
}

func runForget(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := db.GetMemory(args[0])
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("memory %s not found", args[0])
	}

	if err := db.DeleteMemoryAudited(m.ID, forgetReason); err != nil {
		return err
	}
	fmt.Printf("deleted %s: %s\n", m.ID, m.Summary)
	return nil
}
