package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/fuel-engine/engine"
	"github.com/warp/fuel-engine/factory"
	"github.com/warp/fuel-engine/fuelcost"
)

func newDriversCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "Inspect driver tables",
	}
	cmd.AddCommand(newDriversValidateCommand(a), newDriversListCommand(a))
	return cmd
}

func newDriversValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a driver table",
		Long: `Validate a driver table.

Checks field rules, formula shapes, references, escalation rates and
dependency cycles, then that the cost categories resolve against it.
Without a file the configured table (or the embedded catalog) is checked.`,
		Example: `  fuelcast drivers validate ./plant-drivers.yaml`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				reg *engine.Registry
				err error
			)
			source := "embedded catalog"
			switch {
			case len(args) == 1:
				source = args[0]
				reg, err = factory.NewDriverFactory().LoadRegistryFile(args[0])
			case a.cfg.DriverTable != "":
				source = a.cfg.DriverTable
				reg, err = factory.NewDriverFactory().LoadRegistryFile(a.cfg.DriverTable)
			default:
				reg, err = fuelcost.DefaultRegistry()
			}
			if err != nil {
				return err
			}
			if _, err := fuelcost.NewCalculator(reg, fuelcost.DefaultCategoryMap()); err != nil {
				return fmt.Errorf("%s: %w", source, err)
			}

			a.logger.Debug().Str("source", source).Int("drivers", reg.Len()).Msg("driver table validated")
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d drivers, %d escalating, OK\n", source, reg.Len(), len(reg.Escalating()))
			return nil
		},
	}
}

func newDriversListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drivers in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := a.registry()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tCATEGORY\tUNIT\tDEFAULT")
			for _, name := range reg.Order() {
				d, _ := reg.Get(name)
				def := ""
				if d.Kind == engine.KindInput {
					def = d.Default.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.Kind, d.Category, d.Unit, def)
			}
			return tw.Flush()
		},
	}
}
