package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	integrationapp "github.com/meschain/marketsync/internal/application/integration"
	"github.com/meschain/marketsync/internal/bootstrap"
	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/scheduler"
)

var (
	runTimeout      time.Duration
	runPollInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <marketplace> <job-type>",
	Short: "Run one sync job in-process and wait for it",
	Long: `Run starts the worker pool of every enabled marketplace, submits one
scheduled job and waits until it reaches a terminal state. Retries happen
in-process with the configured backoff.

Job types: product, stock, price, order.`,
	Args: cobra.ExactArgs(2),
	RunE: runJob,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "Give up waiting after this long")
	runCmd.Flags().DurationVar(&runPollInterval, "poll", 500*time.Millisecond, "Job state poll interval")
}

func runJob(cmd *cobra.Command, args []string) error {
	marketplace, err := integration.ParseMarketplaceCode(args[0])
	if err != nil {
		return err
	}
	jobType, err := integration.ParseJobType(args[1])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	return withApp(ctx, func(app *bootstrap.App) error {
		if err := app.StartWorkers(ctx); err != nil {
			return err
		}
		job, _, err := app.Orchestrator.RunScheduledSync(ctx, marketplace, jobType)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Submitted %s job %s for %s\n", jobType, job.ID, marketplace)

		finished, err := waitForJob(ctx, app.Orchestrator, job.ID, runPollInterval)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				_ = app.Orchestrator.Cancel(job.ID)
			}
			return err
		}
		resp := integrationapp.ToSyncJobResponse(finished, false)
		if err := printResult(cmd.OutOrStdout(), resp, func(w io.Writer) error {
			return printJob(w, resp)
		}); err != nil {
			return err
		}
		if finished.State != integration.JobStateDone {
			return fmt.Errorf("job ended %s: %s", finished.State, finished.LastError)
		}
		return nil
	})
}

// jobSource is the part of the orchestrator waitForJob polls
type jobSource interface {
	Job(jobID uuid.UUID) (*integration.SyncJob, error)
	History(limit int) []integration.SyncJob
}

// waitForJob polls until the job leaves the live set and shows up in history
func waitForJob(ctx context.Context, jobs jobSource, jobID uuid.UUID, every time.Duration) (*integration.SyncJob, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		job, err := jobs.Job(jobID)
		switch {
		case err == nil && job.State.IsTerminal():
			return job, nil
		case err != nil && !errors.Is(err, scheduler.ErrJobNotFound):
			return nil, err
		case err != nil:
			for _, h := range jobs.History(0) {
				if h.ID == jobID {
					return &h, nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printJob(w io.Writer, job integrationapp.SyncJobResponse) error {
	fmt.Fprintf(w, "Job:         %s\n", job.ID)
	fmt.Fprintf(w, "Marketplace: %s\n", job.Marketplace)
	fmt.Fprintf(w, "Type:        %s\n", job.JobType)
	fmt.Fprintf(w, "State:       %s (attempt %d/%d)\n", job.State, job.Attempt, job.MaxAttempts)
	if job.LastError != "" {
		fmt.Fprintf(w, "Error:       [%s] %s\n", job.ErrorKind, job.LastError)
	}
	if r := job.Result; r != nil {
		fmt.Fprintf(w, "Items:       %d processed, %d ok, %d failed, %d skipped, %d conflicts\n",
			r.Processed, r.Succeeded, r.Failed, r.Skipped, r.Conflicts)
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  - %s [%s] %s\n", f.EntityID, f.Kind, f.Message)
		}
	}
	return nil
}
