package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/engine"
)

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run one decay pass over the memory store",
	RunE:  runDecay,
}

func runDecay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng := engine.New(db, nil, cfg.Engine)
	updated, err := eng.RunDecay(time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("decayed %d memories\n", updated)
	return nil
}
