package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/starmatch/internal/levels"
)

// LevelsOptions holds flags for the levels command.
type LevelsOptions struct {
	*RootOptions
	All bool // one row per level instead of per tier
}

// LevelRange is a run of consecutive levels sharing one configuration.
type LevelRange struct {
	From             int `json:"from"`
	To               int `json:"to"`
	GridSize         int `json:"grid_size"`
	TimeLimitSeconds int `json:"time_limit_seconds"`
	OptimalMoves     int `json:"optimal_moves"`
	AcceptableMoves  int `json:"acceptable_moves"`
}

// NewLevelsCommand creates the levels command.
func NewLevelsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LevelsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Show the level catalog",
		Long: `Show board size, time limit and star thresholds for every level.

Finishing in at most OPTIMAL moves earns 3 stars, at most ACCEPTABLE
earns 2, anything else 1.

Examples:
  starmatch levels
  starmatch levels --all --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			return opts.formatter(cmd).Success(levelRanges(cat, opts.All))
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "list every level instead of tiers")
	return cmd
}

// LevelTable is the levels command result.
type LevelTable []LevelRange

// levelRanges groups the catalog into runs of identical configuration.
// With each set, every level is its own run.
func levelRanges(cat *levels.Catalog, each bool) LevelTable {
	var out LevelTable
	for _, c := range cat.Levels() {
		if n := len(out); n > 0 && !each {
			last := &out[n-1]
			if last.GridSize == c.GridSize && last.TimeLimitSeconds == c.TimeLimitSeconds &&
				last.OptimalMoves == c.OptimalMoves && last.AcceptableMoves == c.AcceptableMoves {
				last.To = c.Level
				continue
			}
		}
		out = append(out, LevelRange{
			From:             c.Level,
			To:               c.Level,
			GridSize:         c.GridSize,
			TimeLimitSeconds: c.TimeLimitSeconds,
			OptimalMoves:     c.OptimalMoves,
			AcceptableMoves:  c.AcceptableMoves,
		})
	}
	return out
}

// WriteText renders the table with one row per range.
func (t LevelTable) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVELS\tGRID\tTIME\tOPTIMAL\tACCEPTABLE")
	for _, r := range t {
		span := fmt.Sprint(r.From)
		if r.To != r.From {
			span = fmt.Sprintf("%d-%d", r.From, r.To)
		}
		fmt.Fprintf(tw, "%s\t%dx%d\t%ds\t%d\t%d\n",
			span, r.GridSize, r.GridSize, r.TimeLimitSeconds, r.OptimalMoves, r.AcceptableMoves)
	}
	return tw.Flush()
}
