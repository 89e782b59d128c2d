package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/starmatch/internal/progress"
)

// ProgressView is the printable form of a player's progress.
type ProgressView struct {
	Player               string      `json:"player"`
	HighestUnlockedLevel int         `json:"highest_unlocked_level"`
	CompletedLevels      []int       `json:"completed_levels"`
	LevelStars           map[int]int `json:"level_stars"`
	TotalStars           int         `json:"total_stars"`
	SoundEnabled         bool        `json:"sound_enabled"`
}

func newProgressView(player string, d progress.Data) ProgressView {
	return ProgressView{
		Player:               player,
		HighestUnlockedLevel: d.HighestUnlockedLevel,
		CompletedLevels:      d.Completed(),
		LevelStars:           d.LevelStars,
		TotalStars:           d.TotalStars(),
		SoundEnabled:         d.SoundEnabled,
	}
}

func (v ProgressView) String() string {
	var b strings.Builder
	who := v.Player
	if who == "" {
		who = "guest"
	}
	fmt.Fprintf(&b, "Player:   %s\n", who)
	fmt.Fprintf(&b, "Unlocked: %d\n", v.HighestUnlockedLevel)
	fmt.Fprintf(&b, "Stars:    %d\n", v.TotalStars)
	sound := "off"
	if v.SoundEnabled {
		sound = "on"
	}
	fmt.Fprintf(&b, "Sound:    %s", sound)
	for _, l := range v.CompletedLevels {
		fmt.Fprintf(&b, "\n  level %-3d %s", l, strings.Repeat("*", v.LevelStars[l]))
	}
	return b.String()
}

// CompleteResult reports a recorded level.
type CompleteResult struct {
	Level    int          `json:"level"`
	Moves    int          `json:"moves"`
	Stars    int          `json:"stars"`
	Progress ProgressView `json:"progress"`
}

func (r CompleteResult) String() string {
	return fmt.Sprintf("Level %d cleared in %d moves: %d star(s)\n%s", r.Level, r.Moves, r.Stars, r.Progress)
}

// NewProgressCommand creates the progress command.
func NewProgressCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show local progress",
		Long: `Show the current player's locally stored progress.

Nothing is read from the ledger; run "starmatch sync" to reconcile first.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				v := newProgressView(a.engine.Player(), a.engine.Progress(ctx))
				return rootOpts.formatter(cmd).Success(v)
			})
		},
	}
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <level> <moves>",
		Short: "Record a cleared level",
		Long: `Record a level won in the given number of moves.

The star rating comes from the level's thresholds. Ratings never go
down, and clearing the frontier level unlocks the next one. The result
is stored locally only.

Examples:
  starmatch complete 1 9
  starmatch complete 12 20 --player alice`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseIntArg("level", args[0])
			if err != nil {
				return err
			}
			moves, err := parseIntArg("moves", args[1])
			if err != nil {
				return err
			}

			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				d, stars, err := a.engine.CompleteLevel(ctx, level, moves)
				if err != nil {
					return WrapExitError(ExitCommandError, "cannot record level", err)
				}
				return rootOpts.formatter(cmd).Success(CompleteResult{
					Level:    level,
					Moves:    moves,
					Stars:    stars,
					Progress: newProgressView(a.engine.Player(), d),
				})
			})
		},
	}
}

// NewSoundCommand creates the sound command.
func NewSoundCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "sound on|off",
		Short:         "Set the sound preference",
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{"on", "off"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
			default:
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid sound setting %q: want on or off", args[0]))
			}

			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				d := a.local.SetSound(ctx, a.engine.Player(), enabled)
				return rootOpts.formatter(cmd).Success(newProgressView(a.engine.Player(), d))
			})
		},
	}
}

// withApp opens the component graph, runs fn and closes it again.
func withApp(cmd *cobra.Command, o *RootOptions, fn func(context.Context, *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.openApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func parseIntArg(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q: must be an integer", name, s))
	}
	return n, nil
}
