package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openhydro/sewerflow/pkg/engine"
)

// recalcCommand creates the recalc command.
func (c *CLI) recalcCommand() *cobra.Command {
	var (
		full   bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "recalc <network.json>",
		Short: "Run a recalculation cycle over a network file",
		Long: `Recalc diffs the network file against the last committed snapshot,
determines the impacted segments, refreshes their elevations and cascades
invert depths downstream. Results are written back to the file.

With --full every segment is treated as impacted, regardless of edits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := c.openSession(ctx, args[0])
			if err != nil {
				return err
			}
			defer sess.close(ctx)

			spinner := newSpinnerWithContext(ctx, "Recalculating depths...")
			spinner.Start()

			var report *engine.Report
			if full {
				report, err = sess.engine.Recalculate(ctx)
			} else {
				report, err = sess.engine.OnGeometryChanged(ctx)
			}
			if err != nil {
				spinner.StopWithError(fmt.Sprintf("Recalculation failed: %v", err))
				return err
			}
			spinner.Stop()

			if report.EventCount == 0 && !full {
				printInfo("No geometry changes since the last cycle")
				return nil
			}

			if !dryRun {
				if err := sess.save(ctx); err != nil {
					return err
				}
			}

			printReport(report, args[0], dryRun)
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "recalculate the whole network, not just changed segments")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute but do not write results back to the file")
	return cmd
}

func printReport(report *engine.Report, path string, dryRun bool) {
	printSuccess("Cycle %s complete (%s)", report.CycleID[:8], report.Duration.Round(time.Millisecond))
	printDetail("events: %d, impacted: %d", report.EventCount, report.ImpactedSegments)
	printDetail("elevations updated: %d, depths recalculated: %d", report.ElevationsUpdated, report.DepthsRecalculated)
	printDetail("cascade stops: %d, convergent updates: %d", report.CascadeStops, report.ConvergentUpdates)

	if report.DeferredChains > 0 {
		printWarning("%d chain(s) deferred: no elevation source", report.DeferredChains)
	}
	if report.Failures > 0 {
		printWarning("%d segment(s) skipped with invalid data", report.Failures)
	}
	if dryRun {
		printInfo("Dry run, file not modified")
	} else {
		printFile(path)
	}
}
