// Package profiles implements the profile management commands.
package profiles

import (
	"fmt"

	"fjacquet/budget-csv/cmd/root"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"

	"github.com/spf13/cobra"
)

// Cmd represents the profiles command
var Cmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage profiles",
	Long:  `A profile owns one set of keyword rules and one set of budget categories.`,
}

var seed bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		names, err := c.GetStore().ListProfiles(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		st := c.GetStore()
		if err := st.CreateProfile(cmd.Context(), args[0]); err != nil {
			return err
		}

		if seed {
			categories := models.DefaultCategories()
			for _, cat := range categories {
				if err := st.CreateCategory(cmd.Context(), args[0], cat); err != nil {
					return fmt.Errorf("error seeding category %s: %w", cat.Name, err)
				}
			}
			root.GetLogger().WithFields(
				logging.Field{Key: logging.FieldProfile, Value: args[0]},
				logging.Field{Key: logging.FieldCount, Value: len(categories)},
			).Debug("Seeded default categories")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created profile %s\n", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a profile with its rules and categories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		if err := c.GetStore().DeleteProfile(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", args[0])
		return nil
	},
}

func init() {
	createCmd.Flags().BoolVar(&seed, "seed", false, "Add the default categories")
	Cmd.AddCommand(listCmd, createCmd, deleteCmd)
}
