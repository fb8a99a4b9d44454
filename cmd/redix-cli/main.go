// Redix CLI — инструмент командной строки для управления
// plans, jobs и dead-letter очередью через HTTP API.
//
// Использование:
//
//	redix [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	plan  Управление планами
//	job   Управление jobs
//	dlq   Работа с dead-letter очередью
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/omnibrowser/redix-core/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "redix",
		Short:         "Redix CLI — browser task orchestration tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewPlanCmd(clientFn, outputFn),
		cli.NewJobCmd(clientFn, outputFn),
		cli.NewDLQCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
