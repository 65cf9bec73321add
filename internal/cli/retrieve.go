package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/store"
)

var (
	retrieveOwner     string
	retrieveContext   string
	retrieveScope     string
	retrieveCommunity string
	retrieveLimit     int
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Run a hybrid memory search from a given access context",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringVar(&retrieveOwner, "owner", "", "owner id (required)")
	retrieveCmd.Flags().StringVar(&retrieveContext, "context", "private", "context kind (private|scoped|community)")
	retrieveCmd.Flags().StringVar(&retrieveScope, "scope", "", "scope id (scoped context)")
	retrieveCmd.Flags().StringVar(&retrieveCommunity, "community", "", "community id (scoped/community context)")
	retrieveCmd.Flags().IntVar(&retrieveLimit, "limit", 5, "max results")
	retrieveCmd.MarkFlagRequired("owner")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng, err := buildEngine(db, cfg)
	if err != nil {
		return err
	}

	qc := store.QueryContext{
		Kind:        store.ContextKind(retrieveContext),
		OwnerID:     retrieveOwner,
		ScopeID:     retrieveScope,
		CommunityID: retrieveCommunity,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	results, err := eng.Retrieve(ctx, qc, strings.Join(args, " "), retrieveLimit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. [%.4f] %s (%s/%s, conf=%.2f)\n", i+1, r.Score,
			r.Memory.Summary, r.Memory.Kind, r.Memory.Tier, r.Memory.Confidence)
		if r.Memory.Detail != "" {
			fmt.Printf("   %s\n", r.Memory.Detail)
		}
	}
	return nil
}
