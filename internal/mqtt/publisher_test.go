package mqtt

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"weather-monitor/internal/storage"
)

func TestDisabledPublisherIsNoop(t *testing.T) {
	p, err := NewPublisher(PublisherConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	loc := storage.Location{ID: 1, Town: "Oslo"}
	if err := p.PublishForecast(loc, storage.NotAvailable(1), "l"); err != nil {
		t.Errorf("PublishForecast: %v", err)
	}
	if err := p.PublishDiscovery(loc); err != nil {
		t.Errorf("PublishDiscovery: %v", err)
	}
	if p.IsConnected() {
		t.Error("disabled publisher reports a connection")
	}
	p.Close()
}

func TestForecastMessages(t *testing.T) {
	loc := storage.Location{ID: 42, Town: "Paris", Country: "FR", Timezone: 1}
	f := storage.Forecast{
		ID: 7, LocationID: 42, Time: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC).Unix(),
		Temp: 293.15, Pressure: 1013, Humidity: 70, Clouds: 20, WindSpeed: 3.46, WindDirection: 180, SymbolCode: "800",
	}
	now := time.Unix(1760518800, 0)

	msgs, err := forecastMessages("weather", loc, f, "f", now)
	if err != nil {
		t.Fatalf("forecastMessages: %v", err)
	}

	got := make(map[string]message, len(msgs))
	for _, m := range msgs {
		got[m.topic] = m
	}

	want := map[string]string{
		"weather/42/temperature":    "20.0",
		"weather/42/pressure":       "1013",
		"weather/42/wind_speed":     "3.5",
		"weather/42/symbol_code":    "800",
		"weather/42/symbol":         "f",
		"weather/42/available":      "true",
		"weather/42/wind_direction": "180",
	}
	for topic, payload := range want {
		m, ok := got[topic]
		if !ok {
			t.Errorf("missing topic %s", topic)
			continue
		}
		if string(m.payload) != payload || m.retained {
			t.Errorf("%s = %q (retained %v), want %q", topic, m.payload, m.retained, payload)
		}
	}

	status, ok := got["weather/42/status"]
	if !ok || !status.retained {
		t.Fatalf("status message missing or not retained: %+v", status)
	}
	var s Status
	if err := json.Unmarshal(status.payload, &s); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if s.LocationID != 42 || s.Town != "Paris" || !s.Available || s.LocalTime != "13:00" || s.UpdatedAt != now.Unix() {
		t.Errorf("status = %+v", s)
	}
}

func TestForecastMessagesPlaceholder(t *testing.T) {
	msgs, err := forecastMessages("weather", storage.Location{ID: 3}, storage.NotAvailable(3), "l", time.Now())
	if err != nil {
		t.Fatalf("forecastMessages: %v", err)
	}
	for _, m := range msgs {
		switch m.topic {
		case "weather/3/available":
			if string(m.payload) != "false" {
				t.Errorf("available = %s", m.payload)
			}
		case "weather/3/temperature":
			if string(m.payload) != "0.0" {
				t.Errorf("placeholder temperature = %s", m.payload)
			}
		case "weather/3/status":
			if strings.Contains(string(m.payload), `"time"`) {
				t.Errorf("placeholder status carries a time: %s", m.payload)
			}
		}
	}
}

func TestDiscoveryMessages(t *testing.T) {
	msgs, err := discoveryMessages("weather", storage.Location{ID: 42, Town: "Paris"})
	if err != nil {
		t.Fatalf("discoveryMessages: %v", err)
	}
	if len(msgs) == 0 {
		t.Fatal("no discovery messages")
	}

	for _, m := range msgs {
		if !strings.HasPrefix(m.topic, "homeassistant/sensor/weather_42/") || !m.retained {
			t.Errorf("unexpected discovery message %s", m.topic)
		}
		var cfg map[string]interface{}
		if err := json.Unmarshal(m.payload, &cfg); err != nil {
			t.Fatalf("payload of %s: %v", m.topic, err)
		}
		if topic, _ := cfg["state_topic"].(string); !strings.HasPrefix(topic, "weather/42/") {
			t.Errorf("state_topic = %v", cfg["state_topic"])
		}
	}
}
