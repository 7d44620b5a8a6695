package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/cert-teacher/internal/cli"
	"github.com/fpang/cert-teacher/internal/lambdaboot"
	"github.com/fpang/cert-teacher/internal/pipeline"
	"github.com/fpang/cert-teacher/internal/s3util"
	"github.com/fpang/cert-teacher/internal/store"
)

var (
	processBucketFlag      string
	processTableFlag       string
	processConcurrencyFlag int
	processDryRunFlag      bool
	processFailFastFlag    bool
)

var processCmd = &cobra.Command{
	Use:   "process <key>...",
	Short: "Run the pipeline locally for uploaded keys",
	Long: `Process runs the same extraction, translation and explanation pipeline as
the Lambda for objects already in the bucket. Keys run concurrently; the
three model calls for one key always run in order.

With --dry-run the records are printed instead of written to the table.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processBucketFlag, "bucket", "", "Bucket holding the images (default $BUCKET_NAME)")
	processCmd.Flags().StringVar(&processTableFlag, "table", "", "Question table (default $QUESTION_TABLE_NAME)")
	processCmd.Flags().IntVarP(&processConcurrencyFlag, "concurrency", "j", 4, "Keys processed at once")
	processCmd.Flags().BoolVar(&processDryRunFlag, "dry-run", false, "Print records instead of writing them")
	processCmd.Flags().BoolVar(&processFailFastFlag, "fail-fast", false, "Stop starting new keys after the first failure")
}

func runProcess(cmd *cobra.Command, args []string) error {
	required := []string{lambdaboot.EnvBucketName}
	if !processDryRunFlag {
		required = append(required, lambdaboot.EnvTableName)
	}
	cfg, clients, err := bootstrap(cmd.Context(), processBucketFlag, processTableFlag, required...)
	if err != nil {
		return err
	}

	generator, err := lambdaboot.NewBedrock(cmd.Context(), clients, cfg)
	if err != nil {
		return err
	}

	var records store.RecordWriter
	var memory *store.MemoryStore
	if processDryRunFlag {
		memory = store.NewMemoryStore()
		records = memory
	} else {
		records = lambdaboot.InitQuestionStore(clients.Config, cfg.TableName)
	}

	p, err := pipeline.New(pipeline.Deps{
		Objects:           s3util.Fetcher{Client: lambdaboot.InitS3(clients.Config)},
		Generator:         generator,
		Records:           records,
		ExplanationFormat: cfg.ExplanationFormat,
		Timeout:           cfg.PipelineTimeout,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("bucket", cfg.BucketName).
		Str("model", generator.ModelID()).
		Int("keys", len(args)).
		Bool("dryRun", processDryRunFlag).
		Msg("Processing keys")

	failed := processKeys(cmd.Context(), p, cfg.BucketName, args, processConcurrencyFlag, processFailFastFlag, cmd.OutOrStdout())

	if memory != nil {
		for _, key := range args {
			rec, _ := memory.GetRecord(cmd.Context(), store.RecordID(key))
			if rec != nil {
				cli.PrintJSON(cmd.OutOrStdout(), rec)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d keys failed", failed, len(args))
	}
	return nil
}

// processKeys runs p for each key with at most limit in flight and returns
// how many failed. A failed key does not stop the others unless failFast
// is set, in which case keys not yet started are skipped.
func processKeys(ctx context.Context, p *pipeline.Pipeline, bucket string, keys []string, limit int, failFast bool, out io.Writer) int {
	g, gctx := errgroup.WithContext(ctx)
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	var mu sync.Mutex
	failed := 0
	report := func(format string, a ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, a...)
	}

	for _, key := range keys {
		g.Go(func() error {
			runCtx := ctx
			if failFast {
				runCtx = gctx
			}
			start := time.Now()
			outcome, err := p.Process(runCtx, pipeline.UploadEvent{Bucket: bucket, Key: key})
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				stage, _ := pipeline.FailedStage(err)
				report("FAIL %s [%s] %v\n", key, stage, err)
				if failFast && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}
			report("ok   %s -> %s (%s)\n", key, outcome.ID, cli.FormatElapsed(time.Since(start)))
			return nil
		})
	}
	g.Wait()
	return failed
}
