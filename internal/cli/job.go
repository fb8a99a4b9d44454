package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для управления jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage jobs",
	}

	cmd.AddCommand(
		newJobSubmitCmd(clientFn, outputFn),
		newJobShowCmd(clientFn, outputFn),
		newJobCancelCmd(clientFn, outputFn),
		newJobPauseCmd(clientFn, outputFn),
		newJobResumeCmd(clientFn, outputFn),
		newJobEventsCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var priority int
	var delayMs int64
	var userID string
	var jobID string

	cmd := &cobra.Command{
		Use:   "submit PLAN_ID",
		Short: "Enqueue an approved plan for execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.CreateJob(CreateJobRequest{
				PlanID:   args[0],
				Priority: priority,
				DelayMs:  delayMs,
				UserID:   userID,
				JobID:    jobID,
			})
			if err != nil {
				return err
			}

			if result.Deduplicated {
				out.Success(fmt.Sprintf("Job already enqueued: %s", result.JobID))
			} else {
				out.Success(fmt.Sprintf("Job enqueued: %s", result.JobID))
			}
			out.Print(
				[]string{"JOB_ID", "DEDUPLICATED"},
				[][]string{{result.JobID, strconv.FormatBool(result.Deduplicated)}},
				result,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 0, "Job priority (higher runs first)")
	cmd.Flags().Int64Var(&delayMs, "delay-ms", 0, "Delay before the job becomes runnable, in milliseconds")
	cmd.Flags().StringVar(&userID, "user-id", "", "User ID for rate limiting")
	cmd.Flags().StringVar(&jobID, "job-id", "", "Explicit job ID for client-side idempotency")

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			printJob(out, job)
			return nil
		},
	}
}

func newJobCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Request cooperative cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.CancelJob(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job cancelled: %s (%s)", job.ID, job.Status))
			return nil
		},
	}
}

func newJobPauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pause ID",
		Short: "Pause a queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.PauseJob(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job paused: %s", job.ID))
			return nil
		},
	}
}

func newJobResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Return a paused job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.ResumeJob(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job resumed: %s", job.ID))
			return nil
		},
	}
}

func newJobEventsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var afterSequence int64
	var limit int

	cmd := &cobra.Command{
		Use:   "events JOB_ID",
		Short: "List the event history of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			events, err := client.ListEvents(args[0], ListEventsOpts{
				AfterSequence: afterSequence,
				Limit:         limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"SEQ", "EVENT", "TIMESTAMP"}
			rows := make([][]string, len(events))
			for i, ev := range events {
				rows[i] = []string{strconv.FormatInt(ev.Sequence, 10), ev.EventType, ev.Timestamp}
			}

			out.Print(headers, rows, events)
			return nil
		},
	}

	cmd.Flags().Int64Var(&afterSequence, "after-sequence", 0, "Return only events after this sequence number")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of events (most recent)")

	return cmd
}

func printJob(out *Output, job *JobResponse) {
	out.Print(
		[]string{"ID", "STATUS", "PROGRESS", "ATTEMPTS", "ERROR", "UPDATED"},
		[][]string{{
			job.ID,
			job.Status,
			strconv.Itoa(job.Progress) + "%",
			strconv.Itoa(job.Attempts),
			job.Error,
			job.UpdatedAt,
		}},
		job,
	)
}
