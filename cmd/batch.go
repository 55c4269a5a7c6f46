package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/batch"
)

var (
	batchIn          string
	batchOut         string
	batchConcurrency int
	batchLimit       int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Georeference a CSV or tab-separated occurrence file",
	Long: "Reads Darwin Core style occurrence rows, resolves each one, and " +
		"writes one JSON line per record. Failed records are reported in " +
		"place rather than aborting the run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchConcurrency == 0 {
			batchConcurrency = cfg.Batch.Concurrency
		}
		if batchLimit == 0 {
			batchLimit = cfg.Batch.Limit
		}
		cfg.Batch.Concurrency = batchConcurrency
		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		in, err := os.Open(batchIn)
		if err != nil {
			return eris.Wrapf(err, "batch: open %s", batchIn)
		}
		defer in.Close()

		var out io.Writer = os.Stdout
		if batchOut != "" {
			f, err := os.Create(batchOut)
			if err != nil {
				return eris.Wrapf(err, "batch: create %s", batchOut)
			}
			defer f.Close()
			out = f
		}

		runner := batch.New(
			batch.Resolver(env.pipeline, cfg.Resolver.Evaluator()),
			batch.WithConcurrency(batchConcurrency),
			batch.WithLimit(batchLimit),
		)
		sum, err := runner.Run(ctx, in, out)
		if err != nil {
			return err
		}

		zap.L().Info("batch run complete",
			zap.String("run_id", sum.RunID),
			zap.Int64("records", sum.Records),
			zap.Int64("resolved", sum.Resolved),
			zap.Int64("failed", sum.Failed))
		fmt.Fprintf(os.Stderr, "run %s: %d records, %d resolved, %d failed\n",
			sum.RunID, sum.Records, sum.Resolved, sum.Failed)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchIn, "in", "", "input CSV or TSV file")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "output JSONL file (default stdout)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "records in flight (default from config)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "stop after this many records")
	batchCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(batchCmd)
}
