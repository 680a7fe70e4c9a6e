package weather

import (
	"log"
	"math"
	"strconv"
	"time"

	"weather-monitor/internal/storage"
)

// ForecastSaver persists a forecast batch.
type ForecastSaver interface {
	SaveForecasts(batch storage.ForecastBatch) error
}

// LocationsFromSearch turns a search payload into unsaved locations. The
// time zone is left at zero until the location is saved.
func LocationsFromSearch(p SearchPayload, now time.Time) []storage.Location {
	n := p.Count
	if n > len(p.List) || n < 0 {
		n = len(p.List)
	}

	locations := make([]storage.Location, 0, n)
	for _, r := range p.List[:n] {
		town := r.Name
		if town == "" {
			town = r.Sys.Country
		}
		locations = append(locations, storage.Location{
			ID:        r.ID,
			Town:      town,
			Country:   r.Sys.Country,
			Lat:       r.Coord.Lat,
			Lon:       r.Coord.Lon,
			DateAdded: now.Unix(),
		})
	}
	return locations
}

// BatchFromPayload maps a forecast payload onto a batch for its city.
func BatchFromPayload(p ForecastPayload) storage.ForecastBatch {
	batch := storage.ForecastBatch{
		LocationID: p.City.ID,
		Forecasts:  make([]storage.Forecast, 0, len(p.List)),
	}
	for _, s := range p.List {
		code := storage.NotAvailableCode
		if len(s.Weather) > 0 {
			code = strconv.Itoa(s.Weather[0].ID)
		}
		batch.Forecasts = append(batch.Forecasts, storage.Forecast{
			LocationID:    p.City.ID,
			Time:          s.Dt,
			Temp:          s.Main.Temp,
			Pressure:      round(s.Main.Pressure),
			Humidity:      round(s.Main.Humidity),
			Clouds:        round(s.Clouds.All),
			WindSpeed:     s.Wind.Speed,
			WindDirection: round(s.Wind.Deg),
			SymbolCode:    code,
		})
	}
	return batch
}

// Ingest saves a fetched forecast. A payload carrying the not-found status
// is discarded without error.
func Ingest(saver ForecastSaver, p ForecastPayload) error {
	if p.Cod.NotFound() {
		log.Printf("WARN: discarding forecast for city %d: provider answered %s %v", p.City.ID, p.Cod, p.Message)
		return nil
	}
	return saver.SaveForecasts(BatchFromPayload(p))
}

func round(v float64) int {
	return int(math.Round(v))
}
