package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"

	"github.com/sharedharvest/pantry-directory/internal/geo"
)

var (
	searchQuery  string
	searchLat    float64
	searchLng    float64
	searchRadius float64
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the pantry directory",
	Long: `Filters active pantry records by a case-insensitive substring match
and, when --lat/--lng/--radius are all given, by great-circle distance.

Examples:
  pantryctl search --query bethlehem
  pantryctl search --lat 40.62 --lng -75.37 --radius 10`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		latSet := cmd.Flags().Changed("lat")
		lngSet := cmd.Flags().Changed("lng")
		radiusSet := cmd.Flags().Changed("radius")
		if err := checkRadiusFlags(latSet, lngSet, radiusSet); err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		q := geo.Query{Text: searchQuery}
		if latSet {
			center := geom.Coord{searchLng, searchLat}
			q.Center = &center
			q.RadiusMiles = &searchRadius
		}

		records, err := e.Engine.Search(ctx, q)
		if err != nil {
			return err
		}

		for _, rec := range records {
			location := rec.City
			if rec.Address != "" {
				location = rec.Address + ", " + rec.City
			}
			fmt.Printf("%s\t%s, %s %s\n", rec.Name, location, rec.State, rec.PostalCode)
		}
		fmt.Printf("%d record(s)\n", len(records))
		return nil
	},
}

// checkRadiusFlags rejects a partial radius filter: the three flags travel
// together, like the HTTP surface's lat/lng/radius parameters.
func checkRadiusFlags(latSet, lngSet, radiusSet bool) error {
	if (latSet || lngSet || radiusSet) && !(latSet && lngSet && radiusSet) {
		return eris.New("--lat, --lng and --radius must be given together")
	}
	return nil
}

func init() {
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "substring to match against name, address, city, state, postal code")
	searchCmd.Flags().Float64Var(&searchLat, "lat", 0, "center latitude in decimal degrees")
	searchCmd.Flags().Float64Var(&searchLng, "lng", 0, "center longitude in decimal degrees")
	searchCmd.Flags().Float64Var(&searchRadius, "radius", 0, "radius in miles")
	rootCmd.AddCommand(searchCmd)
}
