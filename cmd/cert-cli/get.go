package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fpang/cert-teacher/internal/cli"
	"github.com/fpang/cert-teacher/internal/lambdaboot"
	"github.com/fpang/cert-teacher/internal/store"
)

var getTableFlag string

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a stored question record",
	Long: `Get reads one record from the question table and prints it as JSON.
The id is the uploaded filename without its extension.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, clients, err := bootstrap(cmd.Context(), "", getTableFlag, lambdaboot.EnvTableName)
		if err != nil {
			return err
		}
		questions := lambdaboot.InitQuestionStore(clients.Config, cfg.TableName)
		return printRecord(cmd.Context(), questions, cfg.TableName, args[0], cmd.OutOrStdout())
	},
}

func init() {
	getCmd.Flags().StringVar(&getTableFlag, "table", "", "Question table (default $QUESTION_TABLE_NAME)")
}

// printRecord writes the record for id as indented JSON.
func printRecord(ctx context.Context, records store.RecordReader, table, id string, out io.Writer) error {
	rec, err := records.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no record with id %q in %s (the pipeline may still be running)", id, table)
	}
	return cli.PrintJSON(out, rec)
}
