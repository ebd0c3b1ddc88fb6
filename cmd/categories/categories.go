// Package categories implements the budget category management commands.
package categories

import (
	"fmt"

	"fjacquet/budget-csv/cmd/common"
	"fjacquet/budget-csv/cmd/root"
	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Cmd represents the categories command
var Cmd = &cobra.Command{
	Use:   "categories",
	Short: "Manage the budget categories of a profile",
	Long: `Categories are the names offered to the AI model and the lines of the
budget summary. Names are unique per profile, ignoring case.`,
}

var (
	newName   string
	newBudget string
)

func parseBudget(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := models.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, &apperrors.ValidationError{Field: "budget", Reason: err.Error()}
	}
	return d, nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories and their budgets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		categories, err := c.GetStore().ListCategories(cmd.Context(), root.ProfileName())
		if err != nil {
			return err
		}

		tw := common.NewTable(cmd.OutOrStdout())
		fmt.Fprintln(tw, "NAME\tBUDGET")
		for _, cat := range categories {
			fmt.Fprintf(tw, "%s\t%s\n", cat.Name, models.FormatAmount(cat.Budget))
		}
		return tw.Flush()
	},
}

var addCmd = &cobra.Command{
	Use:   "add NAME [BUDGET]",
	Short: "Add a category",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := ""
		if len(args) == 2 {
			raw = args[1]
		}
		budget, err := parseBudget(raw)
		if err != nil {
			return err
		}
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		category := models.NewCategory(args[0], budget)
		if err := c.GetStore().CreateCategory(cmd.Context(), root.ProfileName(), category); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added category %s (budget %s)\n", category.Name, models.FormatAmount(category.Budget))
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update NAME",
	Short: "Rename a category or change its budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if newName == "" && newBudget == "" {
			return &apperrors.ValidationError{Field: "update", Reason: "nothing to change; use --name or --budget"}
		}
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		profile := root.ProfileName()

		categories, err := c.GetStore().ListCategories(cmd.Context(), profile)
		if err != nil {
			return err
		}
		var current *models.Category
		for i := range categories {
			if models.SameName(categories[i].Name, args[0]) {
				current = &categories[i]
				break
			}
		}
		if current == nil {
			return &apperrors.NotFoundError{Entity: "category", Key: args[0]}
		}

		updated := *current
		if newName != "" {
			updated.Name = newName
		}
		if newBudget != "" {
			if updated.Budget, err = parseBudget(newBudget); err != nil {
				return err
			}
		}
		if err := c.GetStore().UpdateCategory(cmd.Context(), profile, current.Name, updated); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated category %s (budget %s)\n", updated.Name, models.FormatAmount(updated.Budget))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		if err := c.GetStore().DeleteCategory(cmd.Context(), root.ProfileName(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %s\n", args[0])
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&newName, "name", "", "New category name")
	updateCmd.Flags().StringVar(&newBudget, "budget", "", "New budget")
	Cmd.AddCommand(listCmd, addCmd, updateCmd, deleteCmd)
}
