// Package enqueue implements the command publishing an upload to the
// worker queue.
package enqueue

import (
	"fmt"
	"path/filepath"

	"fjacquet/budget-csv/cmd/common"
	"fjacquet/budget-csv/cmd/root"
	"fjacquet/budget-csv/internal/amqp"
	"fjacquet/budget-csv/internal/store"

	"github.com/spf13/cobra"
)

var (
	inputFile string
	recipient string
)

// Cmd represents the enqueue command
var Cmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a card export for a background worker",
	Long: `Publish a card export to the AMQP queue served by "budget-csv worker".
The worker categorizes it and delivers the result; nothing is printed here.

Example:
  budget-csv enqueue -p alice -i march.csv -r alice@example.com`,
	RunE: enqueueFunc,
}

func init() {
	Cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input CSV file (- for stdin)")
	Cmd.Flags().StringVarP(&recipient, "recipient", "r", "", "Email recipient for the smtp delivery sink")
	_ = Cmd.MarkFlagRequired("input")
}

func enqueueFunc(cmd *cobra.Command, args []string) error {
	profile := root.ProfileName()
	if err := store.ValidateProfileName(profile); err != nil {
		return err
	}
	data, err := common.ReadInput(inputFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	amqpCfg := root.GetConfig().Worker.AMQP
	if amqpCfg.URL == "" {
		return fmt.Errorf("worker.amqp.url (or AMQP_URL) is required to enqueue uploads")
	}

	client, err := amqp.NewClient(amqpCfg.URL, amqpCfg.Exchange, amqpCfg.Queue, root.GetLogger())
	if err != nil {
		return err
	}
	defer client.Close()

	msg := amqp.NewUploadMessage(profile, recipient, filepath.Base(inputFile), data)
	if err := client.PublishUpload(cmd.Context(), msg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued %s for profile %s\n", msg.Filename, profile)
	return nil
}
