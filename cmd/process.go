package main

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/swasya-health/capture-pipeline/internal/pipeline"
)

var processConcurrency int

var processCmd = &cobra.Command{
	Use:   "process <bucket/key> [bucket/key...]",
	Short: "Process uploaded capture artifacts through the pipeline",
	Long:  "Runs each artifact locator through extraction, structuring, and persistence. Locators are bucket-qualified object keys, e.g. phc-document-uploads/PAT_1A2B3C4D/scan.jpg.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(processConcurrency)

		var failed atomic.Int64
		for _, locator := range args {
			g.Go(func() error {
				bucket, key, err := parseLocator(locator)
				if err == nil {
					_, err = env.Pipeline.Run(ctx, bucket, key)
				}
				if err != nil {
					failed.Add(1)
					zap.L().Error("processing failed",
						zap.String("locator", locator),
						zap.String("failure_kind", string(pipeline.KindOf(err))),
						zap.Error(err),
					)
					// Keep going; other artifacts are independent.
					return nil
				}
				return nil
			})
		}
		_ = g.Wait()

		if n := failed.Load(); n > 0 {
			return eris.Errorf("%d of %d artifacts failed", n, len(args))
		}
		fmt.Printf("processed %d artifacts\n", len(args))
		return nil
	},
}

// parseLocator splits "bucket/path/to/object" into bucket and key.
func parseLocator(locator string) (bucket, key string, err error) {
	bucket, key, found := strings.Cut(strings.TrimPrefix(locator, "/"), "/")
	if !found || bucket == "" || key == "" {
		return "", "", eris.Errorf("invalid locator %q, want bucket/key", locator)
	}
	return bucket, key, nil
}

func init() {
	processCmd.Flags().IntVar(&processConcurrency, "concurrency", 4, "max artifacts processed in parallel")
	rootCmd.AddCommand(processCmd)
}
