package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/0xbhavyaalag/EcoSphere/internal/app"
	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/locator"
	"github.com/0xbhavyaalag/EcoSphere/internal/spatial"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect and manage stored reports",
}

var reportsStatus string

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app.App, _ *slog.Logger) error {
			reports, err := a.Lifecycle.Filter(reportsStatus)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tLOCATION\tSOURCE\tDESCRIPTION")
			for _, r := range reports {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Status.Label(),
					r.Coordinate, r.Coordinate.Source, truncate(r.Description, 40))
			}
			return w.Flush()
		})
	},
}

var reportsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count reports by status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app.App, _ *slog.Logger) error {
			s := a.Lifecycle.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:       %d\n", s.Total)
			for _, st := range domain.Statuses {
				fmt.Fprintf(out, "%-12s %d\n", st.Label()+":", s.Count(st))
			}
			return nil
		})
	},
}

var reportsSetStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Change the status of a report",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App, _ *slog.Logger) error {
			r, err := a.Lifecycle.UpdateStatus(cmd.Context(), args[0], domain.Status(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report %s is now %s.\n", r.ID, r.Status.Label())
			return nil
		})
	},
}

var reportsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App, _ *slog.Logger) error {
			if err := a.Lifecycle.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report %s deleted.\n", args[0])
			return nil
		})
	},
}

var reportsOfficesCmd = &cobra.Command{
	Use:   "offices",
	Short: "Look up the nearest municipal office for every report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app.App, logger *slog.Logger) error {
			reports, err := a.Lifecycle.Filter(reportsStatus)
			if err != nil {
				return err
			}

			var bar *progressbar.ProgressBar
			if isatty.IsTerminal(os.Stderr.Fd()) {
				bar = progressbar.NewOptions(len(reports),
					progressbar.OptionSetDescription("Locating offices"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tOFFICE\tDISTANCE")
			locateOffices(cmd.Context(), a.Locator, reports, func(r domain.Report, res locator.Result, err error) {
				switch {
				case err != nil:
					logger.Warn("office lookup failed", "report_id", r.ID, "error", err)
					fmt.Fprintf(w, "%s\t%s\t(lookup failed)\t-\n", r.ID, r.Status.Label())
				case res.Office == nil && res.RateLimited:
					fmt.Fprintf(w, "%s\t%s\t(rate limited)\t-\n", r.ID, r.Status.Label())
				case res.Office == nil:
					fmt.Fprintf(w, "%s\t%s\t(none found)\t-\n", r.ID, r.Status.Label())
				default:
					fmt.Fprintf(w, "%s\t%s\t%s\t%.2f km\n", r.ID, r.Status.Label(), res.Office.Name, res.Office.DistanceKm)
				}
				if bar != nil {
					_ = bar.Add(1)
				}
			})
			if bar != nil {
				_ = bar.Finish()
			}
			return w.Flush()
		})
	},
}

// officeFinder is the slice of *locator.Locator the offices command needs.
type officeFinder interface {
	LocateNearestOffice(ctx context.Context, point domain.Coordinate) (locator.Result, error)
	Pause(ctx context.Context) error
}

// locateOffices looks up each report's office in turn, pausing between
// reports so consecutive lookups keep the geocoder's request pacing.
func locateOffices(ctx context.Context, finder officeFinder, reports []domain.Report, visit func(domain.Report, locator.Result, error)) {
	for i, r := range reports {
		if i > 0 {
			if err := finder.Pause(ctx); err != nil {
				return
			}
		}
		res, err := finder.LocateNearestOffice(ctx, r.Coordinate)
		visit(r, res, err)
		if ctx.Err() != nil {
			return
		}
	}
}

var hotspotRes int

var reportsHotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "Group reports into H3 cells, busiest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app.App, _ *slog.Logger) error {
			reports, err := a.Lifecycle.Filter(domain.FilterAll)
			if err != nil {
				return err
			}
			cells, err := spatial.Hotspots(reports, hotspotRes)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CELL\tCENTER\tTOTAL\tOPEN\tRESOLVED")
			for _, h := range cells {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", h.Cell, h.Center, h.Stats.Total, h.Open(), h.Stats.Resolved)
			}
			return w.Flush()
		})
	},
}

func init() {
	reportsListCmd.Flags().StringVar(&reportsStatus, "status", domain.FilterAll, "filter by status (reported, in-progress, resolved, all)")
	reportsOfficesCmd.Flags().StringVar(&reportsStatus, "status", domain.FilterAll, "only reports with this status")
	reportsHotspotsCmd.Flags().IntVar(&hotspotRes, "res", spatial.DefaultResolution, "H3 resolution (0-15)")

	reportsCmd.AddCommand(reportsListCmd, reportsStatsCmd, reportsSetStatusCmd, reportsDeleteCmd, reportsOfficesCmd, reportsHotspotsCmd)
	rootCmd.AddCommand(reportsCmd)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
