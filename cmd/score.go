package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arbscout/sourcing-cli/internal/model"
	"github.com/arbscout/sourcing-cli/internal/pipeline"
)

var scoreCmd = &cobra.Command{
	Use:   "score [ASIN]",
	Short: "Score one product and print a recommendation",
	Long: `Score a single product from a raw catalog snapshot.

The snapshot comes either from a JSON file (--file, "-" for stdin) or is
fetched live by ASIN through the catalog API (requires catalog.key).

Examples:
  # Score a saved snapshot
  score --file snapshot.json

  # Fetch and score by ASIN with a known acquisition cost
  score B00EXAMPLE1 --buy-cost 12.50

  # Solve the max buy cost for the aggressive margin strategy
  score B00EXAMPLE1 --strategy aggressive

  # Machine-readable output
  score --file snapshot.json --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("file", "", "read the raw snapshot from a JSON file instead of the API")
	f.String("strategy", "balanced", "margin strategy for the suggested buy cost (conservative, balanced, aggressive)")
	f.String("buy-cost", "", "known acquisition cost; switches ROI to the forward computation")
	f.Int("domain", 0, "marketplace domain for config resolution (default from config)")
	f.String("format", "text", "output format: text or json")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initScoring(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	file, _ := cmd.Flags().GetString("file")
	strategy, _ := cmd.Flags().GetString("strategy")
	buyCostFlag, _ := cmd.Flags().GetString("buy-cost")
	domainID, _ := cmd.Flags().GetInt("domain")
	format, _ := cmd.Flags().GetString("format")

	if domainID == 0 {
		domainID = cfg.Catalog.Domain
	}

	var buyCost *decimal.Decimal
	if buyCostFlag != "" {
		d, err := decimal.NewFromString(buyCostFlag)
		if err != nil {
			return eris.Wrapf(err, "score: parse buy cost %q", buyCostFlag)
		}
		buyCost = &d
	}

	snap, err := resolveSnapshot(ctx, args, file, env)
	if err != nil {
		return err
	}

	result := env.Scorer.Evaluate(ctx, pipeline.Request{
		Snapshot: snap,
		DomainID: domainID,
		Strategy: strategy,
		BuyCost:  buyCost,
	})

	zap.L().Info("scored product",
		zap.String("asin", result.Recommendation.ASIN),
		zap.String("recommendation", string(result.Recommendation.Recommendation)),
		zap.Float64("combined_score", result.Recommendation.CombinedScore),
	)

	if format == "json" {
		return printJSON(result)
	}
	env.Renderer.Result(os.Stdout, result)
	return nil
}

func resolveSnapshot(ctx context.Context, args []string, file string, env *scoringEnv) (*model.RawSnapshot, error) {
	if file != "" {
		snaps, err := loadSnapshotFile(file)
		if err != nil {
			return nil, err
		}
		if len(snaps) != 1 {
			return nil, eris.Errorf("score: expected one snapshot in %s, got %d", file, len(snaps))
		}
		return snaps[0], nil
	}

	if len(args) == 0 {
		return nil, eris.New("score: pass an ASIN or --file")
	}

	client, err := catalogClient(env.Store)
	if err != nil {
		return nil, err
	}
	return client.Product(ctx, args[0])
}
