package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"weather-monitor/internal/display"
	"weather-monitor/internal/weather"

	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search OpenWeatherMap for locations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			payload, err := a.openWeather.FindLocations(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tID\tTOWN\tCOUNTRY\tLAT\tLON")
			for i, loc := range weather.LocationsFromSearch(payload, time.Now()) {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%.4f\t%.4f\n", i+1, loc.ID, loc.Town, loc.Country, loc.Lat, loc.Lon)
			}
			return tw.Flush()
		},
	}
}

func addCmd() *cobra.Command {
	var pick int

	cmd := &cobra.Command{
		Use:   "add <query>",
		Short: "Search for a location and start tracking it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			payload, err := a.openWeather.FindLocations(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			results := weather.LocationsFromSearch(payload, time.Now())
			if pick < 1 || pick > len(results) {
				return fmt.Errorf("search returned %d results, cannot pick %d", len(results), pick)
			}

			loc, err := a.db.SaveLocation(cmd.Context(), results[pick-1])
			if err != nil {
				return err
			}
			fmt.Printf("Added %s, %s (id %d, UTC%+d)\n", loc.Town, loc.Country, loc.ID, loc.Timezone)

			payloadForecast, err := a.openWeather.Forecast(cmd.Context(), loc.ID)
			if err != nil {
				return fmt.Errorf("location added but forecast fetch failed: %w", err)
			}
			return weather.Ingest(a.db, payloadForecast)
		},
	}

	cmd.Flags().IntVarP(&pick, "pick", "p", 1, "which search result to add, starting at 1")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked locations with their current forecast",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			locations, err := a.db.Locations()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTOWN\tCOUNTRY\tSYMBOL\tTEMP\tTIME")
			for _, loc := range locations {
				current := a.db.CurrentForecast(loc.ID)
				if !current.Available() {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t-\t-\n", loc.ID, loc.Town, loc.Country, display.NotAvailableSymbol)
					continue
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.1f°C\t%s\n", loc.ID, loc.Town, loc.Country,
					a.db.SymbolAt(current, loc), display.Celsius(current.Temp), display.HourLabel(current.Time, loc.Timezone))
			}
			return tw.Flush()
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <location-id>",
		Short: "Show the stored forecasts of a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid location id %q", args[0])
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			loc, err := a.db.LocationByID(id)
			if err != nil {
				return err
			}
			forecasts, err := a.db.Forecasts(id)
			if err != nil {
				return err
			}

			fmt.Printf("%s, %s (UTC%+d)\n", loc.Town, loc.Country, loc.Timezone)
			now := time.Now()
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DAY\tHOUR\tSYMBOL\tTEMP\tPRESSURE\tHUMIDITY\tCLOUDS\tWIND")
			for _, f := range forecasts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f°C\t%d Pa\t%d%%\t%d%%\t%.1f m/s %d°\n",
					display.DayLabel(f.Time, now, loc.Timezone), display.HourLabel(f.Time, loc.Timezone),
					a.db.SymbolAt(f, loc), display.Celsius(f.Temp), display.Pascal(f.Pressure),
					f.Humidity, f.Clouds, f.WindSpeed, f.WindDirection)
			}
			return tw.Flush()
		},
	}
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <location-id>",
		Short: "Stop tracking a location and delete its forecasts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid location id %q", args[0])
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			loc, err := a.db.LocationByID(id)
			if err != nil {
				return err
			}
			if err := a.db.RemoveLocation(id); err != nil {
				return err
			}
			fmt.Printf("Removed %s (id %d)\n", loc.Town, loc.ID)
			return nil
		},
	}
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch forecasts for every tracked location once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			publisher := a.publisher()
			defer publisher.Close()

			return a.collector(publisher).RefreshOnce(cmd.Context())
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.json>",
		Short: "Store a forecast payload saved to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var payload weather.ForecastPayload
			if err := json.Unmarshal(data, &payload); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := weather.Ingest(a.db, payload); err != nil {
				return err
			}
			if payload.Cod.NotFound() {
				fmt.Printf("Payload for location %d reports %s, nothing stored\n", payload.City.ID, payload.Cod)
				return nil
			}
			fmt.Printf("Ingested %d samples for location %d\n", len(payload.List), payload.City.ID)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete forecasts whose time has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return a.db.RemoveOldForecasts()
		},
	}
}

