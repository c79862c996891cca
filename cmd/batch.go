package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arbscout/sourcing-cli/internal/model"
	"github.com/arbscout/sourcing-cli/internal/pipeline"
)

var batchCmd = &cobra.Command{
	Use:   "batch [ASIN...]",
	Short: "Score many products and print a summary",
	Long: `Score a batch of products concurrently.

Snapshots come from a JSON file holding an array (--file, "-" for stdin)
or are fetched live for each ASIN argument. Every product gets a result;
individual failures degrade to SKIP rather than aborting the batch.

Examples:
  # Score a saved batch
  batch --file snapshots.json

  # Fetch and score a list of ASINs
  batch B00AAAA B00BBBB B00CCCC --strategy conservative`,
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.String("file", "", "read raw snapshots from a JSON array file")
	f.String("strategy", "balanced", "margin strategy for suggested buy costs")
	f.Int("domain", 0, "marketplace domain for config resolution (default from config)")
	f.Int("concurrency", 0, "max concurrent evaluations (default from config)")
	f.String("format", "text", "output format: text or json")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initScoring(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	file, _ := cmd.Flags().GetString("file")
	strategy, _ := cmd.Flags().GetString("strategy")
	domainID, _ := cmd.Flags().GetInt("domain")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	format, _ := cmd.Flags().GetString("format")

	if domainID == 0 {
		domainID = cfg.Catalog.Domain
	}
	if concurrency == 0 {
		concurrency = cfg.Batch.MaxConcurrent
	}

	snaps, err := batchSnapshots(ctx, args, file, env)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return eris.New("batch: nothing to score, pass ASINs or --file")
	}

	reqs := make([]pipeline.Request, len(snaps))
	for i, snap := range snaps {
		reqs[i] = pipeline.Request{
			Snapshot: snap,
			DomainID: domainID,
			Strategy: strategy,
		}
	}

	runID := uuid.NewString()
	zap.L().Info("batch starting",
		zap.String("run_id", runID),
		zap.Int("products", len(reqs)),
		zap.Int("concurrency", concurrency),
	)

	results, err := env.Scorer.EvaluateBatch(ctx, reqs, concurrency)
	if err != nil {
		return eris.Wrap(err, "batch: evaluate")
	}

	zap.L().Info("batch complete", zap.String("run_id", runID), zap.Int("products", len(results)))

	if format == "json" {
		return printJSON(results)
	}
	for _, res := range results {
		env.Renderer.Line(os.Stdout, res)
	}
	env.Renderer.Summary(os.Stdout, results)
	return nil
}

// batchSnapshots loads snapshots from the file when given; otherwise it
// fetches each ASIN argument sequentially so the client's rate limiter and
// token budget stay in control of API pressure.
func batchSnapshots(ctx context.Context, args []string, file string, env *scoringEnv) ([]*model.RawSnapshot, error) {
	if file != "" {
		return loadSnapshotFile(file)
	}
	if len(args) == 0 {
		return nil, nil
	}

	client, err := catalogClient(env.Store)
	if err != nil {
		return nil, err
	}

	snaps := make([]*model.RawSnapshot, 0, len(args))
	for _, asin := range args {
		snap, err := client.Product(ctx, asin)
		if err != nil {
			zap.L().Warn("fetch failed, product will score as SKIP",
				zap.String("asin", asin), zap.Error(err))
			snaps = append(snaps, &model.RawSnapshot{ASIN: asin})
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
