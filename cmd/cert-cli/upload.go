package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fpang/cert-teacher/internal/cli"
	"github.com/fpang/cert-teacher/internal/lambdaboot"
	"github.com/fpang/cert-teacher/internal/s3util"
	"github.com/fpang/cert-teacher/internal/store"
)

var uploadBucketFlag string

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a question image to start the pipeline",
	Long: `Upload puts an image into the question bucket under its own filename.
The upload notification starts the pipeline; the record id is the filename
without its extension. Without a file argument a file picker opens.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		} else {
			picked, err := cli.SelectImage(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			path = picked
		}

		abs, mediaType, err := cli.ValidateImageFile(path)
		if err != nil {
			return err
		}

		cfg, clients, err := bootstrap(cmd.Context(), uploadBucketFlag, "", lambdaboot.EnvBucketName)
		if err != nil {
			return err
		}

		f, err := os.Open(abs)
		if err != nil {
			return err
		}
		defer f.Close()

		key := filepath.Base(abs)
		if err := s3util.UploadObject(cmd.Context(), lambdaboot.InitS3(clients.Config), cfg.BucketName, key, f, mediaType); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded s3://%s/%s\nRecord id: %s\n", cfg.BucketName, key, store.RecordID(key))
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadBucketFlag, "bucket", "", "Upload bucket (default $BUCKET_NAME)")
}
