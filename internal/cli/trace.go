package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/substate/internal/harness"
	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/tracedb"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Run      string // defaults to the scenario name
	Path     string // optional: only listeners registered at this path
}

// TraceUpdate is one committed update in the trace output.
type TraceUpdate struct {
	Revision int64    `json:"revision"`
	ID       string   `json:"id"`
	Changes  []string `json:"changes"`
	Digest   string   `json:"digest"`
}

// TraceNotification is one listener invocation in the trace output.
type TraceNotification struct {
	UpdateID   string `json:"update_id"`
	Revision   int64  `json:"revision"`
	Seq        int    `json:"seq"`
	ListenerID uint64 `json:"listener_id"`
	Path       string `json:"path"`
	Change     string `json:"change"`
}

// TraceResult holds what was recorded for one run.
type TraceResult struct {
	Run           string              `json:"run"`
	Scenario      string              `json:"scenario"`
	Pass          bool                `json:"pass"`
	Errors        []string            `json:"errors,omitempty"`
	Updates       []TraceUpdate       `json:"updates"`
	Notifications []TraceNotification `json:"notifications"`
}

// Text implements Texter.
func (r TraceResult) Text(w io.Writer) {
	fmt.Fprintf(w, "Run %s (scenario %s)\n", r.Run, r.Scenario)
	byUpdate := make(map[string][]TraceNotification)
	for _, n := range r.Notifications {
		byUpdate[n.UpdateID] = append(byUpdate[n.UpdateID], n)
	}
	for _, u := range r.Updates {
		fmt.Fprintf(w, "rev %d  %s  changes=%v\n", u.Revision, u.ID, u.Changes)
		for _, n := range byUpdate[u.ID] {
			fmt.Fprintf(w, "  %3d  %-24s <- %s\n", n.Seq, n.Path, n.Change)
		}
	}
	fmt.Fprintf(w, "%d updates, %d notifications\n", len(r.Updates), len(r.Notifications))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "✗ %s\n", e)
	}
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <scenario-file>",
		Short: "Record a scenario's notifications into a trace database",
		Long: `Run one scenario, record every committed update and listener
invocation into a SQLite trace database, and print what was stored.

Recording a run again replaces its previous contents. Update ids are
prefixed with the run name so several runs can share one database.

Exit codes:
  0 - Scenario recorded and passed
  1 - Scenario recorded but its expectations failed
  2 - Command error (missing file, database error, etc.)

Examples:
  substate trace scenario.yaml --db ./trace.db
  substate trace scenario.yaml --db ./trace.db --path users.a.name
  substate trace scenario.yaml --db ./trace.db --run nightly --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "trace database file")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run name (default scenario name)")
	cmd.Flags().StringVar(&opts.Path, "path", "", "only show listeners registered at this path")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, scenarioFile string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)
	logger := opts.logger(cmd)

	var filter *path.Path
	if opts.Path != "" {
		p, err := path.Parse(opts.Path)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("invalid path: %v", err), nil)
		}
		filter = &p
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("failed to load scenario: %v", err), nil)
	}
	run := opts.Run
	if run == "" {
		run = scenario.Name
	}

	db, err := tracedb.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeTraceDatabase, fmt.Sprintf("failed to open trace database: %v", err), nil)
	}
	defer db.Close()

	if err := db.DeleteRun(ctx, run); err != nil {
		return f.Fail(ExitCommandError, ErrCodeTraceDatabase, err.Error(), nil)
	}
	rec, err := tracedb.NewRecorder(ctx, db, run, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeTraceDatabase, err.Error(), nil)
	}

	result, err := harness.Run(scenario,
		harness.WithTracer(rec),
		harness.WithLogger(logger),
		harness.WithUpdatePrefix(run),
	)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("execution failed: %v", err), nil)
	}
	if err := rec.Err(); err != nil {
		return f.Fail(ExitCommandError, ErrCodeTraceDatabase, fmt.Sprintf("recording failed: %v", err), nil)
	}
	logger.Debug("scenario recorded", "run", run, "revision", result.Revision)

	out, err := readTrace(ctx, db, run, filter)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeTraceDatabase, err.Error(), nil)
	}
	out.Scenario = scenario.Name
	out.Pass = result.Pass
	out.Errors = result.Errors

	if !result.Pass {
		if f.Format == "json" {
			if err := f.encode(CLIResponse{
				Status: "error",
				Data:   out,
				Error: &CLIError{
					Code:    ErrCodeTestFailed,
					Message: fmt.Sprintf("scenario %s failed", scenario.Name),
				},
			}); err != nil {
				return err
			}
		} else {
			out.Text(f.Writer)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return f.Success(out)
}

// readTrace loads a run back from the database. A non-nil filter keeps
// only notifications of listeners registered exactly there.
func readTrace(ctx context.Context, db *tracedb.DB, run string, filter *path.Path) (TraceResult, error) {
	out := TraceResult{
		Run:           run,
		Updates:       []TraceUpdate{},
		Notifications: []TraceNotification{},
	}

	updates, err := db.ReadUpdates(ctx, run)
	if err != nil {
		return out, err
	}
	for _, u := range updates {
		changes := make([]string, len(u.Changes))
		for i, c := range u.Changes {
			changes[i] = c.String()
		}
		out.Updates = append(out.Updates, TraceUpdate{
			Revision: u.Revision,
			ID:       u.ID,
			Changes:  changes,
			Digest:   u.Digest,
		})
	}

	var notes []tracedb.Notification
	if filter != nil {
		notes, err = db.ReadNotificationsAt(ctx, run, *filter)
	} else {
		notes, err = db.ReadNotifications(ctx, run)
	}
	if err != nil {
		return out, err
	}
	for _, n := range notes {
		out.Notifications = append(out.Notifications, TraceNotification(n))
	}
	return out, nil
}
