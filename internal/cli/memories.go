package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/store"
)

var (
	memoriesOwner string
	memoriesTier  string
)

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "List stored memories for an owner",
	RunE:  runMemories,
}

func init() {
	memoriesCmd.Flags().StringVar(&memoriesOwner, "owner", "", "owner id (required)")
	memoriesCmd.Flags().StringVar(&memoriesTier, "tier", "", "filter by tier (private|scoped|community|universal)")
	memoriesCmd.MarkFlagRequired("owner")
}

func runMemories(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	memories, err := db.ListMemories(memoriesOwner, store.Tier(memoriesTier))
	if err != nil {
		return err
	}
	if len(memories) == 0 {
		fmt.Println("no memories")
		return nil
	}

	for _, m := range memories {
		accessed := "never"
		if m.LastAccessedAt != nil {
			accessed = time.UnixMilli(*m.LastAccessedAt).Format("2006-01-02")
		}
		fmt.Printf("%s  %-10s %-9s conf=%.2f uses=%-3d accessed=%s\n  %s\n",
			m.ID, m.Kind, m.Tier, m.Confidence, m.RetrievalCount, accessed, m.Summary)
	}
	return nil
}
