package weather

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"weather-monitor/internal/storage"
)

type recordingSaver struct {
	batches []storage.ForecastBatch
	err     error
}

func (s *recordingSaver) SaveForecasts(batch storage.ForecastBatch) error {
	s.batches = append(s.batches, batch)
	return s.err
}

const forecastBody = `{
	"cod": "200",
	"city": {"id": 2988507, "name": "Paris", "country": "FR"},
	"list": [
		{"dt": 1760518800, "main": {"temp": 285.4, "pressure": 1013.4, "humidity": 71},
		 "clouds": {"all": 20}, "wind": {"speed": 3.6, "deg": 211.6}, "weather": [{"id": 801, "main": "Clouds"}]},
		{"dt": 1760529600, "main": {"temp": 283.1, "pressure": 1012, "humidity": 80},
		 "clouds": {"all": 90}, "wind": {"speed": 5.1, "deg": 190}, "weather": [{"id": 500}]},
		{"dt": 1760540400, "main": {"temp": 282}, "weather": []}
	]
}`

func TestStatusCodeAcceptsNumberAndString(t *testing.T) {
	tests := []struct {
		body     string
		want     StatusCode
		notFound bool
	}{
		{`{"cod": 404}`, "404", true},
		{`{"cod": "404"}`, "404", true},
		{`{"cod": "200"}`, "200", false},
		{`{"cod": 200}`, "200", false},
		{`{"cod": null}`, "", false},
		{`{}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var p ForecastPayload
			if err := json.Unmarshal([]byte(tt.body), &p); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if p.Cod != tt.want || p.Cod.NotFound() != tt.notFound {
				t.Errorf("cod = %q (not found %v), want %q (%v)", p.Cod, p.Cod.NotFound(), tt.want, tt.notFound)
			}
		})
	}
}

func TestBatchFromPayload(t *testing.T) {
	var p ForecastPayload
	if err := json.Unmarshal([]byte(forecastBody), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	batch := BatchFromPayload(p)
	if batch.LocationID != 2988507 || len(batch.Forecasts) != 3 {
		t.Fatalf("batch = %+v", batch)
	}

	first := batch.Forecasts[0]
	want := storage.Forecast{
		LocationID:    2988507,
		Time:          1760518800,
		Temp:          285.4,
		Pressure:      1013,
		Humidity:      71,
		Clouds:        20,
		WindSpeed:     3.6,
		WindDirection: 212,
		SymbolCode:    "801",
	}
	if first != want {
		t.Errorf("first forecast = %+v, want %+v", first, want)
	}
	if got := batch.Forecasts[1].SymbolCode; got != "500" {
		t.Errorf("second symbol = %q", got)
	}
	if got := batch.Forecasts[2].SymbolCode; got != storage.NotAvailableCode {
		t.Errorf("sample without weather got symbol %q", got)
	}
}

func TestIngest(t *testing.T) {
	var p ForecastPayload
	if err := json.Unmarshal([]byte(forecastBody), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	saver := &recordingSaver{}
	if err := Ingest(saver, p); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(saver.batches) != 1 || len(saver.batches[0].Forecasts) != 3 {
		t.Errorf("saved batches = %+v", saver.batches)
	}

	failing := &recordingSaver{err: storage.ErrUnknownLocation}
	if err := Ingest(failing, p); !errors.Is(err, storage.ErrUnknownLocation) {
		t.Errorf("Ingest error = %v, want the saver's error", err)
	}
}

func TestIngestDiscardsNotFound(t *testing.T) {
	for _, body := range []string{
		`{"cod": "404", "message": "city not found"}`,
		`{"cod": 404, "message": "city not found", "list": [{"dt": 1, "weather": [{"id": 800}]}]}`,
	} {
		var p ForecastPayload
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		saver := &recordingSaver{}
		if err := Ingest(saver, p); err != nil {
			t.Errorf("Ingest(%s) = %v, want nil", body, err)
		}
		if len(saver.batches) != 0 {
			t.Errorf("Ingest(%s) saved %d batches", body, len(saver.batches))
		}
	}
}

func TestLocationsFromSearch(t *testing.T) {
	body := `{
		"cod": "200",
		"count": 2,
		"list": [
			{"id": 2988507, "name": "Paris", "coord": {"lat": 48.8534, "lon": 2.3488}, "sys": {"country": "FR"}},
			{"id": 4717560, "name": "", "coord": {"lat": 33.66, "lon": -95.5555}, "sys": {"country": "US"}},
			{"id": 1, "name": "Beyond count", "sys": {"country": "XX"}}
		]
	}`
	var p SearchPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	got := LocationsFromSearch(p, now)
	if len(got) != 2 {
		t.Fatalf("got %d locations, want 2", len(got))
	}

	want := storage.Location{ID: 2988507, Town: "Paris", Country: "FR", Lat: 48.8534, Lon: 2.3488, DateAdded: now.Unix()}
	if got[0] != want {
		t.Errorf("first = %+v, want %+v", got[0], want)
	}
	if got[1].Town != "US" || got[1].Timezone != 0 {
		t.Errorf("nameless result = %+v, want town from country", got[1])
	}
}

func TestLocationsFromSearchCountLargerThanList(t *testing.T) {
	p := SearchPayload{Count: 5, List: []SearchResult{{ID: 1, Name: "Oslo"}}}
	if got := LocationsFromSearch(p, time.Now()); len(got) != 1 {
		t.Errorf("got %d locations, want 1", len(got))
	}
}
