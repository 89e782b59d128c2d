package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/starmatch/internal/batcher"
	"github.com/roach88/starmatch/internal/engine"
)

// SyncResult reports one refresh pass.
type SyncResult struct {
	Player     string       `json:"player"`
	Remote     string       `json:"remote"`
	Delta      int          `json:"delta"`
	Written    int          `json:"written"`
	Operations []OpView     `json:"operations"`
	Progress   ProgressView `json:"progress"`
}

func (r SyncResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ledger: %s\n", r.Remote)
	fmt.Fprintf(&b, "Delta:  %d level(s), %d written\n", r.Delta, r.Written)
	for _, op := range r.Operations {
		fmt.Fprintf(&b, "  %s\n", op)
	}
	b.WriteString(r.Progress.String())
	return b.String()
}

// OpView is the printable form of a logged ledger write.
type OpView struct {
	ID          string          `json:"id"`
	Seq         int64           `json:"seq"`
	Player      string          `json:"player"`
	Levels      []int           `json:"levels"`
	Stars       []int           `json:"stars"`
	Sponsored   bool            `json:"sponsored"`
	State       string          `json:"state"`
	ErrorReason string          `json:"error_reason,omitempty"`
	Transitions []TransitionLog `json:"transitions,omitempty"`
}

// TransitionLog is one recorded lifecycle step of an operation.
type TransitionLog struct {
	Seq    int64  `json:"seq"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

func newOpView(op batcher.Operation) OpView {
	return OpView{
		ID:          op.ID,
		Seq:         op.Seq,
		Player:      op.PlayerID,
		Levels:      op.Levels,
		Stars:       op.Stars,
		Sponsored:   op.Sponsored,
		State:       string(op.State),
		ErrorReason: op.ErrorReason,
	}
}

func (v OpView) String() string {
	s := fmt.Sprintf("#%d %s levels=%v stars=%v", v.Seq, v.State, v.Levels, v.Stars)
	if v.Sponsored {
		s += " sponsored"
	}
	if v.ErrorReason != "" {
		s += fmt.Sprintf(" (%s)", v.ErrorReason)
	}
	return s
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local progress with the ledger",
		Long: `Run one refresh pass for the current player.

The ledger's ratings are merged into local progress, then every level
the ledger is missing or holds a lower rating for is written back in
batches.

Exit codes:
  0 - Synced
  1 - Ledger unavailable or write failed
  2 - Command error (no player, bad config, etc.)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				return runSync(ctx, cmd, rootOpts, a)
			})
		},
	}
}

func runSync(ctx context.Context, cmd *cobra.Command, o *RootOptions, a *app) error {
	f := o.formatter(cmd)

	report, err := a.engine.Refresh(ctx)
	if errors.Is(err, engine.ErrNoPlayer) {
		return NewExitError(ExitCommandError, "sync needs a player: pass --player or set player_id")
	}

	res := SyncResult{
		Player:     report.Player,
		Remote:     report.Result.Remote.String(),
		Delta:      len(report.Result.Delta),
		Written:    report.Written(),
		Operations: make([]OpView, 0, len(report.Operations)),
		Progress:   newProgressView(report.Player, a.engine.Progress(ctx)),
	}
	for _, op := range report.Operations {
		res.Operations = append(res.Operations, newOpView(op))
	}

	if err != nil {
		var se *engine.SyncError
		code := "E_SYNC_FAILED"
		if errors.As(err, &se) {
			code = string(se.Code)
		}
		f.Error(code, a.engine.Status().Reason, res)
		return WrapExitError(ExitFailure, "sync failed", err)
	}
	return f.Success(res)
}

// OpsOptions holds flags for the ops command.
type OpsOptions struct {
	*RootOptions
	All         bool
	Transitions bool
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OpsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List logged ledger writes",
		Long: `List the write operations recorded in the local log, oldest first.

Examples:
  starmatch ops --player alice
  starmatch ops --all --transitions --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				return runOps(ctx, cmd, opts, a)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "list every player's operations")
	cmd.Flags().BoolVar(&opts.Transitions, "transitions", false, "include each operation's lifecycle")
	return cmd
}

func runOps(ctx context.Context, cmd *cobra.Command, opts *OpsOptions, a *app) error {
	player := a.engine.Player()
	if opts.All {
		player = ""
	} else if player == "" {
		return NewExitError(ExitCommandError, "ops needs a player: pass --player or --all")
	}

	ops, err := a.store.Operations(ctx, player)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read operation log", err)
	}

	views := make(OpTable, 0, len(ops))
	for _, op := range ops {
		v := newOpView(op)
		if opts.Transitions {
			ts, err := a.store.Transitions(ctx, op.ID)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read operation log", err)
			}
			for _, t := range ts {
				v.Transitions = append(v.Transitions, TransitionLog{
					Seq:    t.Seq,
					From:   string(t.From),
					To:     string(t.To),
					Reason: t.Reason,
				})
			}
		}
		views = append(views, v)
	}

	return opts.formatter(cmd).Success(views)
}

// OpTable is the ops command result.
type OpTable []OpView

// WriteText renders one row per operation, followed by its transitions
// when they were loaded.
func (t OpTable) WriteText(w io.Writer) error {
	if len(t) == 0 {
		_, err := fmt.Fprintln(w, "No operations logged.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tPLAYER\tSTATE\tLEVELS\tSTARS\tREASON")
	for _, v := range t {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%v\t%v\t%s\n", v.Seq, v.Player, v.State, v.Levels, v.Stars, v.ErrorReason)
		for _, tr := range v.Transitions {
			fmt.Fprintf(tw, "\t\t  %s -> %s\t\t\t%s\n", tr.From, tr.To, tr.Reason)
		}
	}
	return tw.Flush()
}
