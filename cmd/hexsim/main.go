package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/gravitas-games/hexrts/internal/config"
	"github.com/gravitas-games/hexrts/internal/game"
	"github.com/gravitas-games/hexrts/internal/persistence"
	"github.com/gravitas-games/hexrts/internal/tick"
)

func main() {
	var opts simOptions

	rootCmd := &cobra.Command{
		Use:   "hexsim",
		Short: "Headless hex territory simulation",
		Long: `Generates a hex map, gives each player a starting territory, queues
buildings and runs the simulation for a number of frames or turns.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	f := rootCmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "YAML config file")
	f.IntVarP(&opts.radius, "radius", "r", 12, "map radius in hexes")
	f.Int64VarP(&opts.seed, "seed", "s", 1, "world generation seed")
	f.IntVarP(&opts.players, "players", "p", 4, "number of players")
	f.StringVarP(&opts.mode, "mode", "m", "realtime", "clock: realtime or turn_based")
	f.IntVar(&opts.frames, "frames", 600, "frames to run in realtime mode")
	f.IntVar(&opts.turns, "turns", 5, "turns to run in turn_based mode")
	f.DurationVar(&opts.dt, "dt", defaultDt, "frame length in realtime mode")
	f.IntVarP(&opts.builds, "builds", "b", 2, "buildings queued per player")
	f.StringVar(&opts.dbPath, "db", "", "save the final map to this sqlite file")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log simulation events")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts simOptions, out io.Writer) error {
	titleColor := color.New(color.FgCyan, color.Bold)
	successColor := color.New(color.FgGreen, color.Bold)
	infoColor := color.New(color.FgYellow)

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	titleColor.Fprintf(out, "hexsim: radius %d, seed %d, %s\n", cfg.Session.MapRadius, cfg.Simulation.Seed, cfg.Simulation.Mode)

	res, err := simulate(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	defer res.world.Close()
	w := res.world

	infoColor.Fprintf(out, "%s tiles, %d players, %s buildings queued\n",
		humanize.Comma(int64(w.Grid.Len())), len(res.owners), humanize.Comma(int64(res.queued)))
	if res.skipped > 0 {
		infoColor.Fprintf(out, "%d buildings had no free site\n", res.skipped)
	}
	if w.Mode.Mode() == tick.TurnBased {
		successColor.Fprintf(out, "ran to turn %d\n\n", w.Turns.Turn())
	} else {
		successColor.Fprintf(out, "ran %s frames, %s simulated\n\n", humanize.Comma(int64(w.Frames())), w.Elapsed())
	}

	printSummary(out, w.Summary())

	if opts.dbPath != "" {
		size, err := save(ctx, opts.dbPath, w, logger)
		if err != nil {
			return err
		}
		successColor.Fprintf(out, "\nsaved to %s (%s)\n", opts.dbPath, humanize.Bytes(uint64(size)))
	}
	return nil
}

func printSummary(out io.Writer, rows []game.OwnerSummary) {
	table := tablewriter.NewTable(out,
		tablewriter.WithHeader([]string{"Owner", "Tiles", "Border", "Edges", "Built", "Queued", "Completed", "Food", "Wood", "Stone"}),
	)
	for _, s := range rows {
		_ = table.Append([]string{
			strconv.Itoa(s.Owner),
			humanize.Comma(int64(s.Tiles)),
			strconv.Itoa(s.BorderTiles),
			strconv.Itoa(s.BorderEdges),
			strconv.Itoa(s.Buildings),
			strconv.Itoa(s.Queued),
			humanize.Comma(int64(s.Completed)),
			humanize.CommafWithDigits(s.Food, 1),
			humanize.CommafWithDigits(s.Wood, 1),
			humanize.CommafWithDigits(s.Stone, 1),
		})
	}
	_ = table.Render()
}

// save writes the grid, queued jobs and a snapshot to path and returns the file size.
func save(ctx context.Context, path string, w *game.World, logger *slog.Logger) (int64, error) {
	store, err := persistence.Open(path, logger)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	if err := store.SaveGrid(ctx, w.Grid); err != nil {
		return 0, err
	}
	if err := store.SaveJobs(ctx, w.SavedJobs()); err != nil {
		return 0, err
	}
	turn := w.Turns.Turn()
	if err := store.SaveSnapshot(ctx, turn, w.Grid); err != nil {
		return 0, err
	}
	if err := store.SaveMeta(ctx, "turn", strconv.Itoa(turn)); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
