package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"weather-monitor/internal/display"
	"weather-monitor/internal/storage"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	enabled     bool
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
}

// message is one MQTT publication.
type message struct {
	topic    string
	payload  []byte
	retained bool
}

// Status is the retained JSON document published for a location.
type Status struct {
	LocationID    int64   `json:"location_id"`
	Town          string  `json:"town"`
	Country       string  `json:"country"`
	Available     bool    `json:"available"`
	Time          int64   `json:"time,omitempty"`
	LocalTime     string  `json:"local_time,omitempty"`
	Temperature   float64 `json:"temperature"`
	Pressure      int     `json:"pressure"`
	Humidity      int     `json:"humidity"`
	Clouds        int     `json:"clouds"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection int     `json:"wind_direction"`
	SymbolCode    string  `json:"symbol_code"`
	Symbol        string  `json:"symbol"`
	UpdatedAt     int64   `json:"updated_at"`
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false}, nil
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "weather-monitor-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Printf("WARN: MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Printf("INFO: MQTT connected as %s", clientID)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
		enabled:     true,
	}, nil
}

// PublishForecast publishes the current forecast of loc, one topic per field
// plus the retained status document.
func (p *Publisher) PublishForecast(loc storage.Location, f storage.Forecast, symbol string) error {
	if !p.enabled {
		return nil
	}

	msgs, err := forecastMessages(p.topicPrefix, loc, f, symbol, time.Now())
	if err != nil {
		return err
	}
	return p.send(msgs)
}

// PublishDiscovery announces the sensors of loc to Home Assistant.
func (p *Publisher) PublishDiscovery(loc storage.Location) error {
	if !p.enabled {
		return nil
	}

	msgs, err := discoveryMessages(p.topicPrefix, loc)
	if err != nil {
		return err
	}
	return p.send(msgs)
}

func (p *Publisher) send(msgs []message) error {
	var last error
	for _, m := range msgs {
		token := p.client.Publish(m.topic, 0, m.retained, m.payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("ERROR: failed to publish to %s: %v", m.topic, token.Error())
			last = fmt.Errorf("failed to publish %s: %w", m.topic, token.Error())
		}
	}
	return last
}

func locationTopic(prefix string, id int64) string {
	return fmt.Sprintf("%s/%d", prefix, id)
}

func forecastMessages(prefix string, loc storage.Location, f storage.Forecast, symbol string, now time.Time) ([]message, error) {
	base := locationTopic(prefix, loc.ID)
	celsius := display.Celsius(f.Temp)
	if !f.Available() {
		celsius = 0
	}

	values := []struct {
		name  string
		value string
	}{
		{"temperature", strconv.FormatFloat(celsius, 'f', 1, 64)},
		{"pressure", strconv.Itoa(f.Pressure)},
		{"humidity", strconv.Itoa(f.Humidity)},
		{"clouds", strconv.Itoa(f.Clouds)},
		{"wind_speed", strconv.FormatFloat(f.WindSpeed, 'f', 1, 64)},
		{"wind_direction", strconv.Itoa(f.WindDirection)},
		{"symbol_code", f.SymbolCode},
		{"symbol", symbol},
		{"available", strconv.FormatBool(f.Available())},
	}

	msgs := make([]message, 0, len(values)+1)
	for _, v := range values {
		msgs = append(msgs, message{topic: base + "/" + v.name, payload: []byte(v.value)})
	}

	status := Status{
		LocationID:    loc.ID,
		Town:          loc.Town,
		Country:       loc.Country,
		Available:     f.Available(),
		Temperature:   celsius,
		Pressure:      f.Pressure,
		Humidity:      f.Humidity,
		Clouds:        f.Clouds,
		WindSpeed:     f.WindSpeed,
		WindDirection: f.WindDirection,
		SymbolCode:    f.SymbolCode,
		Symbol:        symbol,
		UpdatedAt:     now.Unix(),
	}
	if f.Available() {
		status.Time = f.Time
		status.LocalTime = display.HourLabel(f.Time, loc.Timezone)
	}
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	msgs = append(msgs, message{topic: base + "/status", payload: statusJSON, retained: true})
	return msgs, nil
}

func discoveryMessages(prefix string, loc storage.Location) ([]message, error) {
	sensors := []struct {
		Name        string
		ID          string
		Unit        string
		DeviceClass string
	}{
		{"Temperature", "temperature", "°C", "temperature"},
		{"Pressure", "pressure", "hPa", "atmospheric_pressure"},
		{"Humidity", "humidity", "%", "humidity"},
		{"Clouds", "clouds", "%", ""},
		{"Wind Speed", "wind_speed", "m/s", "wind_speed"},
		{"Wind Direction", "wind_direction", "°", ""},
		{"Condition", "symbol_code", "", ""},
	}

	device := map[string]interface{}{
		"identifiers":  []string{fmt.Sprintf("weather_%d", loc.ID)},
		"name":         fmt.Sprintf("Weather %s", loc.Town),
		"manufacturer": "OpenWeatherMap",
		"model":        "5 day / 3 hour forecast",
	}

	msgs := make([]message, 0, len(sensors))
	for _, sensor := range sensors {
		config := map[string]interface{}{
			"name":        fmt.Sprintf("%s %s", loc.Town, sensor.Name),
			"unique_id":   fmt.Sprintf("weather_%d_%s", loc.ID, sensor.ID),
			"state_topic": locationTopic(prefix, loc.ID) + "/" + sensor.ID,
			"device":      device,
		}
		if sensor.Unit != "" {
			config["unit_of_measurement"] = sensor.Unit
		}
		if sensor.DeviceClass != "" {
			config["device_class"] = sensor.DeviceClass
		}

		payload, err := json.Marshal(config)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, message{
			topic:    fmt.Sprintf("homeassistant/sensor/weather_%d/%s/config", loc.ID, sensor.ID),
			payload:  payload,
			retained: true,
		})
	}
	return msgs, nil
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}
