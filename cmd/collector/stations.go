package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/aussie-weather-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/aussie-weather-etl/internal/adapter/openweather"
	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/couchcryptid/aussie-weather-etl/internal/registry"
)

func newStationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stations",
		Short: "Manage the station table",
	}
	cmd.AddCommand(
		newStationsInitCmd(),
		newStationsCorrectCmd(),
		newStationsGeocodeCmd(),
		newStationsListCmd(),
	)
	return cmd
}

func newStationsInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Derive the station table from the reference dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.openStationStore(ctx); err != nil {
				return err
			}
			defer a.close()

			locations, err := csvstore.ReadReferenceLocations(a.cfg.ReferencePath)
			if err != nil {
				return err
			}
			stations, err := registry.NewFromReference(locations)
			if err != nil {
				return err
			}
			if err := a.store.Save(ctx, stations); err != nil {
				return err
			}

			a.logger.Info("station table initialized",
				"stations", len(stations), "observations", len(locations))
			return nil
		},
	}
}

func newStationsCorrectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correct",
		Short: "Normalize station display names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.openStationStore(ctx); err != nil {
				return err
			}
			defer a.close()

			reg, err := registry.Load(ctx, a.store, a.logger, a.metrics)
			if err != nil {
				return err
			}
			reg.CorrectNames(nil)
			if err := reg.Flush(ctx); err != nil {
				return err
			}

			a.logger.Info("station names corrected", "stations", len(reg.Stations()))
			return nil
		},
	}
}

func newStationsGeocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode",
		Short: "Resolve coordinates for stations that lack them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.openStationStore(ctx); err != nil {
				return err
			}
			defer a.close()

			reg, err := registry.Load(ctx, a.store, a.logger, a.metrics)
			if err != nil {
				return err
			}

			client, err := a.weatherClient()
			if err != nil {
				return err
			}
			geocoder := openweather.NewCachedGeocoder(client, a.cfg.GeocodeCacheSize)

			reg.GeocodeMissing(ctx, geocoder, a.cfg.CountryCode)
			return reg.Flush(ctx)
		},
	}
}

func newStationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the station table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.openStationStore(ctx); err != nil {
				return err
			}
			defer a.close()

			reg, err := registry.Load(ctx, a.store, a.logger, a.metrics)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCORRECTED\tLAT\tLON\tLAST PROCESSED")
			for _, st := range reg.Stations() {
				lastProcessed := "-"
				if !st.LastProcessed.IsZero() {
					lastProcessed = domain.FormatDate(st.LastProcessed)
				}
				coords := []string{"-", "-"}
				if st.HasCoordinates() {
					coords[0] = fmt.Sprintf("%.4f", st.Latitude)
					coords[1] = fmt.Sprintf("%.4f", st.Longitude)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					st.Name, st.CorrectedName, coords[0], coords[1], lastProcessed)
			}
			return w.Flush()
		},
	}
}
