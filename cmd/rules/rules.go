// Package rules implements the keyword rule management commands.
package rules

import (
	"fmt"

	"fjacquet/budget-csv/cmd/common"
	"fjacquet/budget-csv/cmd/root"
	"fjacquet/budget-csv/internal/models"

	"github.com/spf13/cobra"
)

// Cmd represents the rules command
var Cmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the keyword rules of a profile",
	Long: `Keyword rules map a keyword found in a transaction description to a
category. Keywords are matched case-insensitively and stored upper-cased; when
several rules match, the oldest wins.`,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in matching order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		rules, err := c.GetStore().ListRules(cmd.Context(), root.ProfileName())
		if err != nil {
			return err
		}

		tw := common.NewTable(cmd.OutOrStdout())
		fmt.Fprintln(tw, "KEYWORD\tCATEGORY")
		for _, r := range rules {
			fmt.Fprintf(tw, "%s\t%s\n", r.Keyword, r.Category)
		}
		return tw.Flush()
	},
}

var addCmd = &cobra.Command{
	Use:   "add KEYWORD CATEGORY",
	Short: "Add a rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		rule := models.NewRule(args[0], args[1])
		if err := c.GetStore().CreateRule(cmd.Context(), root.ProfileName(), rule); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added rule %s -> %s\n", rule.Keyword, rule.Category)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename KEYWORD NEW_KEYWORD CATEGORY",
	Short: "Replace a rule's keyword and category, keeping its position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		rule := models.NewRule(args[1], args[2])
		if err := c.GetStore().RenameRule(cmd.Context(), root.ProfileName(), args[0], rule); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated rule %s -> %s\n", rule.Keyword, rule.Category)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete KEYWORD",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		if err := c.GetStore().DeleteRule(cmd.Context(), root.ProfileName(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %s\n", models.NormalizeKeyword(args[0]))
		return nil
	},
}

func init() {
	Cmd.AddCommand(listCmd, addCmd, renameCmd, deleteCmd)
}
