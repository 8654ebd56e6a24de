package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/fuel-engine/engine"
	"github.com/warp/fuel-engine/fuelcost"
	"github.com/warp/fuel-engine/store/sqlite"
)

type projectOptions struct {
	scenario string
	start    string
	years    int
	rollup   string
	asJSON   bool
}

func newProjectCommand(a *app) *cobra.Command {
	var opts projectOptions

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Print the cost projection of a stored scenario",
		Example: `  fuelcast project --scenario budget-2025 --years 5 --rollup annual
  fuelcast project --scenario budget-2025 --start 2025-07 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch opts.rollup {
			case "period", "annual", "total":
			default:
				return fmt.Errorf("--rollup must be period, annual or total")
			}
			return a.project(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.scenario, "scenario", "", "scenario id")
	f.StringVar(&opts.start, "start", "", "first period (YYYY-MM); defaults to the as-of month")
	f.IntVar(&opts.years, "years", 1, "horizon in years (1-16)")
	f.StringVar(&opts.rollup, "rollup", "period", "period, annual or total")
	f.BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func (a *app) project(cmd *cobra.Command, opts projectOptions) error {
	ctx := cmd.Context()

	reg, calc, err := a.registry()
	if err != nil {
		return err
	}
	store, err := sqlite.New(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ev := engine.NewEvaluator(reg, store)
	ev.Logger = &a.logger
	id := engine.ScenarioID(opts.scenario)

	var start engine.Period
	if opts.start != "" {
		if start, err = engine.ParsePeriod(opts.start); err != nil {
			return err
		}
	} else {
		s, err := store.GetScenario(ctx, id)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
		start = engine.MonthOf(s.AsOf)
	}

	began := time.Now()
	proj, err := engine.NewProjector(ev).Project(ctx, id, start, opts.years)
	if err != nil {
		return err
	}

	var parts []*fuelcost.CostSummary
	it := proj.Iter(ctx)
	for it.Next() {
		s, err := calc.Compute(it.Set())
		if err != nil {
			return err
		}
		parts = append(parts, s)
	}
	if err := it.Err(); err != nil {
		return err
	}
	a.logger.Debug().
		Str("scenario", string(id)).
		Int("periods", len(parts)).
		Dur("elapsed", time.Since(began)).
		Msg("projection evaluated")

	rows := parts
	switch opts.rollup {
	case "annual":
		if rows, err = fuelcost.Annual(parts); err != nil {
			return err
		}
	case "total":
		total, err := fuelcost.Summarize(parts...)
		if err != nil {
			return err
		}
		rows = []*fuelcost.CostSummary{total}
	}

	if opts.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return printCosts(cmd.OutOrStdout(), rows)
}

func printCosts(w io.Writer, rows []*fuelcost.CostSummary) error {
	if len(rows) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprint(tw, "PERIOD\t")
	for _, c := range rows[0].Categories {
		fmt.Fprintf(tw, "%s\t", c.Category)
	}
	fmt.Fprintln(tw, "TOTAL\tNET MWH\t$/MWH\t")

	for _, r := range rows {
		label := r.From.String()
		if r.To != r.From {
			label += ".." + r.To.String()
		}
		fmt.Fprintf(tw, "%s\t", label)
		for _, c := range r.Categories {
			fmt.Fprintf(tw, "%s\t", c.Amount.StringFixed(0))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", r.Total.StringFixed(0), r.NetGenerationMWh.StringFixed(0), r.CostPerMWh)
	}
	return tw.Flush()
}
