package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/cert-teacher/internal/lambdaboot"
	"github.com/fpang/cert-teacher/internal/logging"
	"github.com/fpang/cert-teacher/internal/viewer"
	"github.com/fpang/cert-teacher/internal/web"
)

// CLI flags
var (
	portFlag   int
	bucketFlag string
	tableFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "cert-web",
	Short: "Local web UI for uploading exam questions",
	Long: `Cert Web starts a local web server for the exam-question flow: upload a
photographed question, then show its Japanese translation and the
explanation once the pipeline has written them.

Bucket and table default to BUCKET_NAME and QUESTION_TABLE_NAME.

Examples:
  cert-web
  cert-web --port 9090
  cert-web --bucket exam-uploads --table questions`,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVar(&bucketFlag, "bucket", "", "Upload bucket (default $BUCKET_NAME)")
	rootCmd.Flags().StringVar(&tableFlag, "table", "", "Question table (default $QUESTION_TABLE_NAME)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	logging.Init()

	cfg, err := lambdaboot.LoadConfig(os.Getenv)
	if err != nil {
		return err
	}
	if bucketFlag != "" {
		cfg.BucketName = bucketFlag
	}
	if tableFlag != "" {
		cfg.TableName = tableFlag
	}
	if err := cfg.Require(lambdaboot.EnvBucketName, lambdaboot.EnvTableName); err != nil {
		return err
	}

	clients, err := lambdaboot.LoadAWS(cmd.Context())
	if err != nil {
		return err
	}

	handler, err := web.NewHandler(web.Config{
		Bucket:   cfg.BucketName,
		Objects:  lambdaboot.InitS3(clients.Config),
		Records:  lambdaboot.InitQuestionStore(clients.Config, cfg.TableName),
		Sessions: viewer.NewMemorySessions(viewer.DefaultSessionTTL),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", portFlag),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info().
		Int("port", portFlag).
		Str("bucket", cfg.BucketName).
		Str("table", cfg.TableName).
		Msg("Starting web server")
	fmt.Printf("\n  Cert Teacher: http://localhost:%d\n\n", portFlag)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
