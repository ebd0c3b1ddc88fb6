// Package process implements the command categorizing a card export.
package process

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"fjacquet/budget-csv/cmd/common"
	"fjacquet/budget-csv/cmd/root"
	outcsv "fjacquet/budget-csv/internal/common"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/validation"
	"fjacquet/budget-csv/internal/worker"

	"github.com/spf13/cobra"
)

var (
	inputFile string
	output    string
	recipient string
	format    string
)

// Cmd represents the process command
var Cmd = &cobra.Command{
	Use:   "process",
	Short: "Categorize a credit card CSV export",
	Long: `Categorize every transaction of a credit card CSV export for a profile.

Rows are matched against the profile's keyword rules first; the others are
sent to the configured AI provider. Every new answer, and every row left as
"NEEDS CATEGORY", is saved as a rule. The categorized file is handed to the
configured delivery sink and a budget summary is printed.

Example:
  budget-csv process -p alice -i march.csv -r alice@example.com
  budget-csv process -p alice -i march.csv -o march-categorized.csv -f json`,
	RunE: processFunc,
}

func init() {
	Cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input CSV file (- for stdin)")
	Cmd.Flags().StringVarP(&output, "output", "o", "", "Also write the categorized CSV to this file")
	Cmd.Flags().StringVarP(&recipient, "recipient", "r", "", "Email recipient for the smtp delivery sink")
	Cmd.Flags().StringVarP(&format, "format", "f", "text", "Summary format (text, json, yaml, csv)")
	_ = Cmd.MarkFlagRequired("input")
}

func processFunc(cmd *cobra.Command, args []string) error {
	logger := root.GetLogger()
	ctx := cmd.Context()

	if err := validation.IsValidOutputFormat(format); err != nil {
		return err
	}
	data, err := common.ReadInput(inputFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	appContainer, err := root.GetContainer(ctx)
	if err != nil {
		return err
	}

	queue := appContainer.NewQueue()
	if err := queue.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := queue.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("Job queue did not stop cleanly")
		}
	}()

	job, err := queue.Submit(worker.Submission{
		Profile:   root.ProfileName(),
		Recipient: recipient,
		Source:    filepath.Base(inputFile),
		Data:      data,
	})
	if err != nil {
		return err
	}

	done, err := queue.Wait(ctx, job.ID)
	if err != nil {
		return err
	}
	if done.Status == worker.StatusFailed {
		return fmt.Errorf("processing failed after %d rows: %s", done.RowsProcessed, done.Error)
	}

	if output != "" {
		if err := outcsv.WriteFile(output, done.CSV); err != nil {
			return err
		}
		logger.WithField(logging.FieldOutputFile, output).Info("Categorized file written")
	}

	return common.PrintReport(cmd.OutOrStdout(), done.Report, format, logger)
}
