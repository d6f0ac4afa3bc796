package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/shapeql/internal/loader"
	"github.com/roach88/shapeql/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	List bool // list recorded compilations instead of replaying
}

// ReplayResult is the JSON payload of the replay command.
type ReplayResult struct {
	store.ReplayReport
	Reproduced bool `json:"clean"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompile recorded compilations and report drift",
		Long: `Recompile every compilation recorded with compile --db against the current
schema and shapes, in recording order, and compare query hashes.

Exit codes:
  0 - Every recorded compilation reproduces its query
  1 - Drift or failures detected
  2 - Command error (database not found, etc.)

Examples:
  shapeql replay --db ./shapeql.db --schema schema.graphql --shapes shapes.cue
  shapeql replay --db ./shapeql.db --list
  shapeql replay --db ./shapeql.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	addInputFlags(cmd.Flags())
	cmd.Flags().String("db", "", "path to SQLite database (required)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded compilations")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(cmd, opts.RootOptions)

	if opts.Config.DB == "" {
		return outputCommandError(formatter, loader.ErrCodeNotFound,
			"no database: set --db, SHAPEQL_DB or db in the config file")
	}
	st, err := store.Open(opts.Config.DB)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, errors.Wrap(err, "opening database").Error())
	}
	defer st.Close()

	if opts.List {
		return runList(ctx, st, formatter)
	}

	inputs, loadErrs := LoadInputs(opts.RootOptions, st)
	if len(loadErrs) > 0 {
		return outputLoadErrors(formatter, loadErrs)
	}

	report, err := inputs.Engine.Replay(ctx)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, errors.Wrap(err, "replaying").Error())
	}
	opts.Logger.Debug(fmt.Sprintf("replayed %d compilation(s)", report.Total))

	if formatter.json() {
		result := ReplayResult{ReplayReport: report, Reproduced: report.Clean()}
		if report.Clean() {
			return formatter.Success(result)
		}
		_ = formatter.Error(ErrCodeDrift, replaySummary(report), result)
		return NewExitError(ExitFailure, "replay found drift")
	}
	return outputReplayText(formatter.Writer, report, opts.Verbose)
}

func replaySummary(r store.ReplayReport) string {
	return fmt.Sprintf("%d compilation(s): %d matched, %d drifted, %d failed",
		r.Total, r.Matched, len(r.Drifted), len(r.Failures))
}

func outputReplayText(w io.Writer, report store.ReplayReport, verbose bool) error {
	if report.Total == 0 {
		fmt.Fprintln(w, "No compilations found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %s\n", replaySummary(report))
	fmt.Fprintln(w)

	for _, d := range report.Drifted {
		fmt.Fprintf(w, "✗ Drift: %s (seq %d, field %s)\n", d.Compilation.ID, d.Compilation.Seq, d.Compilation.Field)
		fmt.Fprintf(w, "  recorded: %s\n", d.Compilation.QueryHash)
		fmt.Fprintf(w, "  current:  %s\n", d.QueryHash)
		if verbose {
			fmt.Fprintln(w, "  query now:")
			fmt.Fprint(w, indent(d.Query, "    "))
		}
		fmt.Fprintln(w)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "✗ Failed: %s (seq %d, field %s)\n", f.Compilation.ID, f.Compilation.Seq, f.Compilation.Field)
		fmt.Fprintf(w, "  %s\n\n", f.Error)
	}

	if report.Clean() {
		fmt.Fprintln(w, "✓ All compilations reproduce their queries")
		return nil
	}
	fmt.Fprintln(w, "✗ Replay found drift")
	return NewExitError(ExitFailure, "replay found drift")
}

func runList(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	records, err := st.ListCompilations(ctx)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, errors.Wrap(err, "listing compilations").Error())
	}
	if formatter.json() {
		return formatter.Success(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(formatter.Writer, "No compilations found in database.")
		return nil
	}
	for _, c := range records {
		fmt.Fprintf(formatter.Writer, "%d\t%s\t%s\t%s\t%s\n", c.Seq, c.ID, c.Mode, c.Field, c.QueryHash)
	}
	return nil
}

func indent(s, prefix string) string {
	var out []byte
	start := true
	for i := 0; i < len(s); i++ {
		if start {
			out = append(out, prefix...)
			start = false
		}
		out = append(out, s[i])
		if s[i] == '\n' {
			start = true
		}
	}
	return string(out)
}
