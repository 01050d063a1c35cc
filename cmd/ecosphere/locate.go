package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/0xbhavyaalag/EcoSphere/internal/app"
	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/geo"
)

var locateCmd = &cobra.Command{
	Use:   "locate <lat> <lon>",
	Short: "Find the municipal office nearest to a point",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		point, err := parsePoint(args[0], args[1])
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(a *app.App, _ *slog.Logger) error {
			res, err := a.Locator.LocateNearestOffice(cmd.Context(), point)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Area.DisplayName != "" {
				fmt.Fprintf(out, "Area:     %s\n", res.Area.DisplayName)
			}
			if res.Office == nil && res.RateLimited {
				fmt.Fprintln(out, "Office search was rate limited. Try again in a minute.")
				return nil
			}
			if res.Office == nil {
				fmt.Fprintln(out, "No municipal office found nearby.")
				return nil
			}
			printOffice(out, res.Office)
			return nil
		})
	},
}

var whereamiCmd = &cobra.Command{
	Use:   "whereami [ip]",
	Short: "Resolve a position from IP geolocation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ip string
		if len(args) == 1 {
			ip = args[0]
		}

		return withApp(cmd.Context(), func(a *app.App, _ *slog.Logger) error {
			coord, err := a.Resolver.Resolve(cmd.Context(), geo.Request{ClientIP: ip})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (source %s, accuracy ~%.0f m)\n", coord, coord.Source, coord.Accuracy)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(locateCmd, whereamiCmd)
}

func parsePoint(latStr, lonStr string) (domain.Coordinate, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("invalid latitude %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("invalid longitude %q", lonStr)
	}
	return domain.ManualCoordinate(lat, lon)
}

func printOffice(out io.Writer, o *domain.MunicipalOffice) {
	fmt.Fprintf(out, "Office:   %s\n", o.Name)
	fmt.Fprintf(out, "Address:  %s\n", o.Address)
	fmt.Fprintf(out, "Location: %s\n", o.Coordinate)
	fmt.Fprintf(out, "Distance: %.2f km\n", o.DistanceKm)
	fmt.Fprintf(out, "Query:    %s\n", o.SourceQuery)
}
