package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	OpenWeather OpenWeatherConfig `mapstructure:"openweather"`
	Timezone    TimezoneConfig    `mapstructure:"timezone"`
	Collector   CollectorConfig   `mapstructure:"collector"`
	API         APIConfig         `mapstructure:"api"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type OpenWeatherConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Rate is the request budget in requests per second.
	Rate float64 `mapstructure:"rate"`
}

type TimezoneConfig struct {
	// Provider is "google", "openmeteo" or empty to pick by api key.
	Provider string  `mapstructure:"provider"`
	APIKey   string  `mapstructure:"api_key"`
	Rate     float64 `mapstructure:"rate"`
}

type CollectorConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
}

type APIConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

var defaults = map[string]interface{}{
	"database.path":              "./weather.db",
	"openweather.api_key":        "",
	"openweather.rate":           1.0,
	"timezone.provider":          "",
	"timezone.api_key":           "",
	"timezone.rate":              1.0,
	"collector.enabled":          true,
	"collector.refresh_interval": "3h",
	"collector.sweep_interval":   "1h",
	"api.port":                   8045,
	"api.enabled":                true,
	"mqtt.enabled":               false,
	"mqtt.broker":                "tcp://localhost:1883",
	"mqtt.topic_prefix":          "weather",
	"mqtt.client_id":             "",
	"mqtt.username":              "",
	"mqtt.password":              "",
}

// Load reads config.yaml (or configPath) and the environment. A .env file in
// the working directory is loaded first; OPENWEATHER_API_KEY and friends
// override file values.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("DEBUG: no .env file loaded")
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/weather-monitor")
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
