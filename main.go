package main

import (
	"fmt"
	"os"

	"fjacquet/budget-csv/cmd/categories"
	"fjacquet/budget-csv/cmd/enqueue"
	"fjacquet/budget-csv/cmd/process"
	"fjacquet/budget-csv/cmd/profiles"
	"fjacquet/budget-csv/cmd/root"
	"fjacquet/budget-csv/cmd/rules"
	"fjacquet/budget-csv/cmd/summary"
	"fjacquet/budget-csv/cmd/worker"
)

func init() {
	root.Cmd.AddCommand(process.Cmd)
	root.Cmd.AddCommand(summary.Cmd)
	root.Cmd.AddCommand(rules.Cmd)
	root.Cmd.AddCommand(categories.Cmd)
	root.Cmd.AddCommand(profiles.Cmd)
	root.Cmd.AddCommand(enqueue.Cmd)
	root.Cmd.AddCommand(worker.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		root.Shutdown()
		os.Exit(1)
	}
}
