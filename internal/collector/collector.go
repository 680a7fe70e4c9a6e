package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"weather-monitor/internal/storage"
	"weather-monitor/internal/weather"

	"github.com/go-co-op/gocron"
)

// Store is the part of the database the collector drives.
type Store interface {
	Locations() ([]storage.Location, error)
	SaveForecasts(batch storage.ForecastBatch) error
	CurrentForecast(locationID int64) storage.Forecast
	SymbolAt(f storage.Forecast, loc storage.Location) string
	RemoveOldForecasts() error
}

// Fetcher downloads the forecast of one location.
type Fetcher interface {
	Forecast(ctx context.Context, locationID int64) (weather.ForecastPayload, error)
}

// Publisher receives the current forecast of each refreshed location.
type Publisher interface {
	PublishForecast(loc storage.Location, f storage.Forecast, symbol string) error
}

type Collector struct {
	store           Store
	fetcher         Fetcher
	publisher       Publisher
	refreshInterval time.Duration
	sweepInterval   time.Duration
	fetchTimeout    time.Duration
	enabled         bool

	mu           sync.RWMutex
	lastRefresh  time.Time
	isCollecting bool
}

type CollectorConfig struct {
	Store           Store
	Fetcher         Fetcher
	Publisher       Publisher
	RefreshInterval time.Duration
	SweepInterval   time.Duration
	Enabled         bool
}

func NewCollector(cfg CollectorConfig) *Collector {
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = 3 * time.Hour
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = time.Hour
	}
	return &Collector{
		store:           cfg.Store,
		fetcher:         cfg.Fetcher,
		publisher:       cfg.Publisher,
		refreshInterval: refresh,
		sweepInterval:   sweep,
		fetchTimeout:    30 * time.Second,
		enabled:         cfg.Enabled,
	}
}

// Start sweeps and refreshes once, then keeps doing both on a schedule
// until ctx is done.
func (c *Collector) Start(ctx context.Context) error {
	if !c.enabled {
		log.Println("INFO: collector is disabled")
		return nil
	}

	c.mu.Lock()
	c.isCollecting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.isCollecting = false
		c.mu.Unlock()
	}()

	log.Printf("INFO: starting collector, refresh every %s, sweep every %s", c.refreshInterval, c.sweepInterval)

	if err := c.Sweep(); err != nil {
		log.Printf("ERROR: initial sweep: %v", err)
	}
	if err := c.RefreshOnce(ctx); err != nil {
		log.Printf("ERROR: initial refresh: %v", err)
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	_, err := s.Every(c.refreshInterval).WaitForSchedule().Do(func() {
		if err := c.RefreshOnce(ctx); err != nil {
			log.Printf("ERROR: scheduled refresh: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	_, err = s.Every(c.sweepInterval).WaitForSchedule().Do(func() {
		if err := c.Sweep(); err != nil {
			log.Printf("ERROR: scheduled sweep: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.StartAsync()
	<-ctx.Done()
	s.Stop()

	log.Println("INFO: collector stopped")
	return nil
}

// Sweep drops forecasts whose time has passed.
func (c *Collector) Sweep() error {
	if err := c.store.RemoveOldForecasts(); err != nil {
		return fmt.Errorf("remove old forecasts: %w", err)
	}
	log.Println("DEBUG: removed stale forecasts")
	return nil
}

// RefreshOnce fetches and stores the forecast of every location
// concurrently. Failures of single locations are logged and joined into the
// returned error; the other locations are still refreshed.
func (c *Collector) RefreshOnce(ctx context.Context) error {
	if c.fetcher == nil {
		return errors.New("collector has no forecast fetcher")
	}

	locations, err := c.store.Locations()
	if err != nil {
		return fmt.Errorf("list locations: %w", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, loc := range locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.refreshLocation(ctx, loc); err != nil {
				log.Printf("ERROR: refresh of %s (%d) failed: %v", loc.Town, loc.ID, err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("location %d: %w", loc.ID, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	c.mu.Lock()
	c.lastRefresh = time.Now()
	c.mu.Unlock()

	log.Printf("INFO: refreshed %d locations, %d failed", len(locations), len(errs))
	return errors.Join(errs...)
}

func (c *Collector) refreshLocation(ctx context.Context, loc storage.Location) error {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	payload, err := c.fetcher.Forecast(ctx, loc.ID)
	if err != nil {
		return err
	}
	if err := weather.Ingest(c.store, payload); err != nil {
		return err
	}

	if c.publisher == nil {
		return nil
	}
	current := c.store.CurrentForecast(loc.ID)
	if err := c.publisher.PublishForecast(loc, current, c.store.SymbolAt(current, loc)); err != nil {
		log.Printf("ERROR: publishing %s to MQTT: %v", loc.Town, err)
	}
	return nil
}

func (c *Collector) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

func (c *Collector) IsCollecting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isCollecting
}
