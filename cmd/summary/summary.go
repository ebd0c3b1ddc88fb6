// Package summary implements the budget summary command.
package summary

import (
	"bytes"

	"fjacquet/budget-csv/cmd/common"
	"fjacquet/budget-csv/cmd/root"
	"fjacquet/budget-csv/internal/validation"

	"github.com/spf13/cobra"
)

var (
	inputFile string
	format    string
)

// Cmd represents the summary command
var Cmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize an already categorized CSV against the profile budgets",
	Long: `Read a CSV file holding a Category column, such as one produced by the
process command and edited by hand, and print spending per category against
the profile's budgets. Nothing is learned or delivered.

Example:
  budget-csv summary -p alice -i alice_20240314T093000.csv -f yaml`,
	RunE: summaryFunc,
}

func init() {
	Cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Categorized CSV file (- for stdin)")
	Cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, yaml, csv)")
	_ = Cmd.MarkFlagRequired("input")
}

func summaryFunc(cmd *cobra.Command, args []string) error {
	if err := validation.IsValidOutputFormat(format); err != nil {
		return err
	}
	data, err := common.ReadInput(inputFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	appContainer, err := root.GetContainer(cmd.Context())
	if err != nil {
		return err
	}

	rep, err := appContainer.GetProcessor().Summarize(cmd.Context(), root.ProfileName(), bytes.NewReader(data))
	if err != nil {
		return err
	}
	return common.PrintReport(cmd.OutOrStdout(), rep, format, root.GetLogger())
}
