package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weather-monitor/config"
	"weather-monitor/internal/api"
	"weather-monitor/internal/collector"
	"weather-monitor/internal/mqtt"
	"weather-monitor/internal/storage"
	"weather-monitor/internal/weather"

	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "weather-monitor",
		Short: "Weather forecast monitor",
		Long:  "Track locations and keep their OpenWeatherMap forecasts in a local SQLite database",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(&levelFilter{w: os.Stderr, verbose: verbose})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(removeCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// levelFilter drops DEBUG lines unless verbose output was requested.
type levelFilter struct {
	w       io.Writer
	verbose bool
}

func (f *levelFilter) Write(p []byte) (int, error) {
	if !f.verbose && bytes.Contains(p, []byte("DEBUG:")) {
		return len(p), nil
	}
	return f.w.Write(p)
}

// app holds what every subcommand needs.
type app struct {
	cfg         *config.Config
	db          *storage.Database
	openWeather *weather.OpenWeatherClient
}

func openApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	timezones, err := weather.NewTimezoneResolver(cfg.Timezone.Provider, cfg.Timezone.APIKey, cfg.Timezone.Rate)
	if err != nil {
		return nil, err
	}

	db, err := storage.NewDatabase(cfg.Database.Path, timezones, log.Default())
	if err != nil {
		return nil, err
	}
	log.Printf("DEBUG: database opened at %s", cfg.Database.Path)

	return &app{
		cfg:         cfg,
		db:          db,
		openWeather: weather.NewOpenWeatherClient(cfg.OpenWeather.APIKey, cfg.OpenWeather.Rate),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Printf("ERROR: closing database: %v", err)
	}
}

func (a *app) publisher() *mqtt.Publisher {
	publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
		Broker:      a.cfg.MQTT.Broker,
		ClientID:    a.cfg.MQTT.ClientID,
		Username:    a.cfg.MQTT.Username,
		Password:    a.cfg.MQTT.Password,
		TopicPrefix: a.cfg.MQTT.TopicPrefix,
		Enabled:     a.cfg.MQTT.Enabled,
	})
	if err != nil {
		log.Printf("WARN: MQTT connection failed: %v", err)
		publisher, _ = mqtt.NewPublisher(mqtt.PublisherConfig{Enabled: false})
	} else if a.cfg.MQTT.Enabled {
		log.Printf("INFO: MQTT connected to %s", a.cfg.MQTT.Broker)
	}
	return publisher
}

func (a *app) collector(publisher collector.Publisher) *collector.Collector {
	return collector.NewCollector(collector.CollectorConfig{
		Store:           a.db,
		Fetcher:         a.openWeather,
		Publisher:       publisher,
		RefreshInterval: a.cfg.Collector.RefreshInterval,
		SweepInterval:   a.cfg.Collector.SweepInterval,
		Enabled:         a.cfg.Collector.Enabled,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring service",
		Long:  "Start the collector, API server, and MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			publisher := a.publisher()
			defer publisher.Close()

			locations, err := a.db.Locations()
			if err != nil {
				return err
			}
			for _, loc := range locations {
				if err := publisher.PublishDiscovery(loc); err != nil {
					log.Printf("ERROR: discovery for %s: %v", loc.Town, err)
				}
			}

			coll := a.collector(publisher)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			collectorDone := make(chan struct{})
			go func() {
				defer close(collectorDone)
				if err := coll.Start(ctx); err != nil {
					log.Printf("ERROR: collector: %v", err)
				}
			}()

			var server *api.Server
			if a.cfg.API.Enabled {
				server = api.NewServer(api.ServerConfig{
					Port:      a.cfg.API.Port,
					Store:     a.db,
					Searcher:  a.openWeather,
					Collector: coll,
					Announcer: publisher,
				})

				go func() {
					if err := server.Start(); err != nil {
						log.Printf("ERROR: API server: %v", err)
					}
				}()
			}

			log.Println("INFO: weather monitor started. Press Ctrl+C to stop.")

			<-ctx.Done()
			log.Println("INFO: shutting down...")

			if server != nil {
				shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
				defer stop()
				if err := server.Stop(shutdownCtx); err != nil {
					log.Printf("ERROR: API shutdown: %v", err)
				}
			}
			<-collectorDone
			return nil
		},
	}
}
