package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDLQCmd создаёт группу команд для работы с dead-letter очередью.
func NewDLQCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Manage the dead-letter queue",
	}

	cmd.AddCommand(
		newDLQListCmd(clientFn, outputFn),
		newDLQRecoverCmd(clientFn, outputFn),
	)

	return cmd
}

func newDLQListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List dead-letter entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			entries, err := client.ListDeadLetters()
			if err != nil {
				return err
			}

			headers := []string{"ATTEMPTS", "LAST_ERROR", "FAILED_AT"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{strconv.Itoa(e.Attempts), e.LastError, e.FailedAt}
			}

			out.Print(headers, rows, entries)
			return nil
		},
	}
}

func newDLQRecoverCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Re-enqueue dead-letter entries with a fresh retry budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.RecoverDeadLetters()
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Recovered %d entries, %d remaining", result.Recovered, result.Remaining))
			out.Print(
				[]string{"RECOVERED", "REMAINING"},
				[][]string{{strconv.Itoa(result.Recovered), strconv.Itoa(result.Remaining)}},
				result,
			)
			return nil
		},
	}
}
