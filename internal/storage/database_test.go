package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"weather-monitor/internal/display"
)

type fixedZone struct {
	offset int
	err    error
}

func (z fixedZone) OffsetHours(context.Context, float64, float64) (int, error) {
	return z.offset, z.err
}

var testNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newTestDatabase(t *testing.T, zone TimezoneResolver) (*Database, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	db, err := NewDatabase(filepath.Join(t.TempDir(), "weather.db"), zone, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	db.now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = db.Close() })
	return db, &buf
}

func paris() Location {
	return Location{ID: 42, Town: "Paris", Country: "FR", Lat: 48.85, Lon: 2.35}
}

func sample(at int64, temp float64, code string) Forecast {
	return Forecast{
		Time:          at,
		Temp:          temp,
		Pressure:      1013,
		Humidity:      70,
		Clouds:        20,
		WindSpeed:     3.5,
		WindDirection: 180,
		SymbolCode:    code,
	}
}

func mustSaveLocation(t *testing.T, db *Database, loc Location) Location {
	t.Helper()
	saved, err := db.SaveLocation(context.Background(), loc)
	if err != nil {
		t.Fatalf("SaveLocation: %v", err)
	}
	return saved
}

func mustSaveForecasts(t *testing.T, db *Database, id int64, forecasts ...Forecast) {
	t.Helper()
	if err := db.SaveForecasts(ForecastBatch{LocationID: id, Forecasts: forecasts}); err != nil {
		t.Fatalf("SaveForecasts: %v", err)
	}
}

func TestLocationLifecycle(t *testing.T) {
	db, _ := newTestDatabase(t, fixedZone{offset: 1})
	now := testNow.Unix()

	saved := mustSaveLocation(t, db, paris())
	if saved.Timezone != 1 {
		t.Errorf("Timezone = %d, want 1", saved.Timezone)
	}
	if saved.DateAdded != now {
		t.Errorf("DateAdded = %d, want %d", saved.DateAdded, now)
	}

	got, err := db.LocationByID(42)
	if err != nil {
		t.Fatalf("LocationByID: %v", err)
	}
	if got != saved {
		t.Errorf("stored location = %+v, want %+v", got, saved)
	}

	mustSaveForecasts(t, db, 42,
		sample(now+3600, 285.0, "800"),
		sample(now+3600+10800, 284.0, "500"),
	)
	forecasts, err := db.Forecasts(42)
	if err != nil {
		t.Fatalf("Forecasts: %v", err)
	}
	if len(forecasts) != 2 {
		t.Fatalf("got %d forecasts, want 2", len(forecasts))
	}
	if forecasts[0].Time != now+3600 || forecasts[0].SymbolCode != "800" || forecasts[0].LocationID != 42 {
		t.Errorf("first forecast = %+v", forecasts[0])
	}
	if forecasts[1].SymbolCode != "500" || forecasts[1].Temp != 284.0 {
		t.Errorf("second forecast = %+v", forecasts[1])
	}

	if err := db.RemoveLocation(42); err != nil {
		t.Fatalf("RemoveLocation: %v", err)
	}
	if _, err := db.LocationByID(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("LocationByID after remove: err = %v, want ErrNotFound", err)
	}
	if forecasts, _ := db.Forecasts(42); len(forecasts) != 0 {
		t.Errorf("forecasts survived their location: %+v", forecasts)
	}
}

func TestSaveLocationRejectsDuplicate(t *testing.T) {
	db, _ := newTestDatabase(t, fixedZone{offset: 1})

	mustSaveLocation(t, db, paris())
	if _, err := db.SaveLocation(context.Background(), paris()); err == nil {
		t.Error("saving the same location twice should fail")
	}
}

func TestSaveLocationTimezoneFailure(t *testing.T) {
	lookup := errors.New("lookup failed")
	db, _ := newTestDatabase(t, fixedZone{err: lookup})

	if _, err := db.SaveLocation(context.Background(), paris()); !errors.Is(err, lookup) {
		t.Fatalf("err = %v, want the lookup error", err)
	}
	if _, err := db.LocationByID(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("location was stored despite the failed lookup: %v", err)
	}
}

func TestLocationsOldestFirst(t *testing.T) {
	db, _ := newTestDatabase(t, fixedZone{})

	for i, town := range []string{"Lyon", "Nice", "Brest"} {
		db.now = func() time.Time { return testNow.Add(time.Duration(3-i) * time.Minute) }
		mustSaveLocation(t, db, Location{ID: int64(i + 1), Town: town})
	}

	locations, err := db.Locations()
	if err != nil {
		t.Fatalf("Locations: %v", err)
	}
	var towns []string
	for _, l := range locations {
		towns = append(towns, l.Town)
	}
	if got := strings.Join(towns, ","); got != "Brest,Nice,Lyon" {
		t.Errorf("order = %s", got)
	}
}

func TestSaveForecastsUpdatesInPlace(t *testing.T) {
	db, _ := newTestDatabase(t, fixedZone{})
	now := testNow.Unix()
	mustSaveLocation(t, db, paris())

	mustSaveForecasts(t, db, 42, sample(now+100, 280, "800"), sample(now+10900, 281, "801"))
	before, _ := db.Forecasts(42)

	mustSaveForecasts(t, db, 42, sample(now+100, 290, "500"))
	after, err := db.Forecasts(42)
	if err != nil {
		t.Fatalf("Forecasts: %v", err)
	}

	if len(after) != 2 {
		t.Fatalf("got %d forecasts after re-ingest, want 2", len(after))
	}
	if after[0].ID != before[0].ID {
		t.Errorf("forecast_id changed from %d to %d", before[0].ID, after[0].ID)
	}
	if after[0].Temp != 290 || after[0].SymbolCode != "500" {
		t.Errorf("slot was not replaced: %+v", after[0])
	}
	if after[1] != before[1] {
		t.Errorf("untouched slot changed: %+v", after[1])
	}
}

func TestSaveForecastsLargeBatch(t *testing.T) {
	db, _ := newTestDatabase(t, fixedZone{})
	mustSaveLocation(t, db, paris())

	var batch []Forecast
	for i := 0; i < 3*upsertChunk+7; i++ {
		batch = append(batch, sample(testNow.Unix()+int64(i)*10800, 280, "803"))
	}
	mustSaveForecasts(t, db, 42, batch...)
	mustSaveForecasts(t, db, 42, batch...)

	forecasts, err := db.Forecasts(42)
	if err != nil {
		t.Fatalf("Forecasts: %v", err)
	}
	if len(forecasts) != len(batch) {
		t.Errorf("got %d forecasts, want %d", len(forecasts), len(batch))
	}
}

func TestSaveForecastsUnknownLocation(t *testing.T) {
	db, logs := newTestDatabase(t, fixedZone{})

	err := db.SaveForecasts(ForecastBatch{LocationID: 99, Forecasts: []Forecast{sample(testNow.Unix(), 280, "800")}})
	if !errors.Is(err, ErrUnknownLocation) {
		t.Fatalf("err = %v, want ErrUnknownLocation", err)
	}
	if !strings.Contains(logs.String(), "CRITICAL:") {
		t.Errorf("expected a critical log entry, got %q", logs.String())
	}
	if forecasts, _ := db.Forecasts(99); len(forecasts) != 0 {
		t.Errorf("orphan forecasts were written: %+v", forecasts)
	}
}

func TestCurrentForecast(t *testing.T) {
	now := testNow.Unix()

	tests := []struct {
		name  string
		times []int64
		want  int64
	}{
		{"nearest upcoming slot", []int64{now - 100, now + 7200, now + 3600}, now + 3600},
		{"just inside window", []int64{now + currentWindow - 1}, now + currentWindow - 1},
		{"window end is exclusive", []int64{now + currentWindow}, 0},
		{"now itself is not upcoming", []int64{now}, 0},
		{"only past slots", []int64{now - 10800, now - 1}, 0},
		{"no slots", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, logs := newTestDatabase(t, fixedZone{})
			mustSaveLocation(t, db, paris())
			var batch []Forecast
			for _, at := range tt.times {
				batch = append(batch, sample(at, 280, "800"))
			}
			mustSaveForecasts(t, db, 42, batch...)

			got := db.CurrentForecast(42)
			if tt.want == 0 {
				if got.Available() || got.ID != 0 || got.SymbolCode != NotAvailableCode || got.LocationID != 42 {
					t.Errorf("expected the placeholder, got %+v", got)
				}
				if !strings.Contains(logs.String(), "ERROR:") {
					t.Errorf("a missing forecast should be logged, got %q", logs.String())
				}
				return
			}
			if got.Time != tt.want || !got.Available() {
				t.Errorf("current forecast = %+v, want time %d", got, tt.want)
			}
		})
	}
}

func TestRemoveOldForecasts(t *testing.T) {
	db, _ := newTestDatabase(t, fixedZone{})
	now := testNow.Unix()
	mustSaveLocation(t, db, paris())
	mustSaveForecasts(t, db, 42, sample(now-10800, 280, "800"), sample(now-1, 280, "800"), sample(now, 280, "800"), sample(now+10800, 280, "800"))

	if err := db.RemoveOldForecasts(); err != nil {
		t.Fatalf("RemoveOldForecasts: %v", err)
	}
	forecasts, _ := db.Forecasts(42)
	if len(forecasts) != 2 || forecasts[0].Time != now {
		t.Errorf("remaining forecasts = %+v", forecasts)
	}
}

func TestSymbol(t *testing.T) {
	db, _ := newTestDatabase(t, fixedZone{offset: 1})
	mustSaveLocation(t, db, paris())

	noon := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC).Unix()
	evening := time.Date(2026, 10, 15, 19, 30, 0, 0, time.UTC).Unix()
	mustSaveForecasts(t, db, 42, sample(noon, 280, "800"), sample(evening, 280, "800"))
	forecasts, _ := db.Forecasts(42)

	if got := db.Symbol(forecasts[0]); got != display.ClearSymbol {
		t.Errorf("noon symbol = %q", got)
	}
	if got := db.Symbol(forecasts[1]); got != display.NightSymbol {
		t.Errorf("20:30 local symbol = %q, want night", got)
	}
	if got := db.Symbol(NotAvailable(42)); got != display.NotAvailableSymbol {
		t.Errorf("placeholder symbol = %q", got)
	}
}

func TestNewDatabaseBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "weather.db")
	if _, err := NewDatabase(path, fixedZone{}, log.New(io.Discard, "", 0)); err == nil {
		t.Error("expected an error for an unwritable path")
	}
}
