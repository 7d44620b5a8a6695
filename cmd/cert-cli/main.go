package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/fpang/cert-teacher/internal/lambdaboot"
	"github.com/fpang/cert-teacher/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "cert-cli",
	Short: "Administrative tool for the exam-question pipeline",
	Long: `Cert CLI uploads question images, runs the extraction, translation and
explanation pipeline locally, and reads stored question records.

Settings come from the same environment as the Lambdas: QUESTION_TABLE_NAME,
BUCKET_NAME, BEDROCK_MODEL_ID, SSM_MODEL_ID_PARAM, BEDROCK_MAX_TOKENS,
BEDROCK_RETRY_ATTEMPTS, PIPELINE_TIMEOUT and EXPLANATION_TEMPLATE.

Examples:
  cert-cli upload ./dea01.png
  cert-cli upload                       # opens a file picker
  cert-cli process dea01.png dea02.png --concurrency 2
  cert-cli process dea01.png --dry-run
  cert-cli get dea01`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	rootCmd.AddCommand(getCmd, uploadCmd, processCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads configuration and AWS clients for a subcommand.
// Flag values, when set, override the environment.
func bootstrap(ctx context.Context, bucket, table string, required ...string) (lambdaboot.Config, lambdaboot.AWSClients, error) {
	cfg, err := lambdaboot.LoadConfig(os.Getenv)
	if err != nil {
		return cfg, lambdaboot.AWSClients{}, err
	}
	if bucket != "" {
		cfg.BucketName = bucket
	}
	if table != "" {
		cfg.TableName = table
	}
	if err := cfg.Require(required...); err != nil {
		return cfg, lambdaboot.AWSClients{}, err
	}
	clients, err := lambdaboot.LoadAWS(ctx)
	return cfg, clients, err
}
