package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	APIBaseURL     string `mapstructure:"API_BASE_URL"`
	RealtimeURL    string `mapstructure:"REALTIME_URL"`
	Env            string `mapstructure:"ENV"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	RequestTimeout int    `mapstructure:"REQUEST_TIMEOUT_SEC"`

	// Scheduling constants pinned by the API contract.
	SlotGranularityMin int     `mapstructure:"SLOT_GRANULARITY_MIN"`
	HeavyLoadThreshold float64 `mapstructure:"HEAVY_LOAD_THRESHOLD"`

	// Realtime connection policy.
	ConnectTimeoutSec    int `mapstructure:"CONNECT_TIMEOUT_SEC"`
	ReconnectMaxAttempts int `mapstructure:"RECONNECT_MAX_ATTEMPTS"`

	// Polling fallback intervals.
	MessagePollSec int `mapstructure:"MESSAGE_POLL_SEC"`
	UnreadPollSec  int `mapstructure:"UNREAD_POLL_SEC"`
	PollBurst      int `mapstructure:"POLL_BURST"`
	PollsPerMinute int `mapstructure:"POLLS_PER_MINUTE"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("API_BASE_URL", "http://localhost:8080/api")
	viper.SetDefault("REALTIME_URL", "ws://localhost:8080/realtime")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("REQUEST_TIMEOUT_SEC", 15)
	viper.SetDefault("SLOT_GRANULARITY_MIN", 30)
	viper.SetDefault("HEAVY_LOAD_THRESHOLD", 0.7)
	viper.SetDefault("CONNECT_TIMEOUT_SEC", 10)
	viper.SetDefault("RECONNECT_MAX_ATTEMPTS", 5)
	viper.SetDefault("MESSAGE_POLL_SEC", 10)
	viper.SetDefault("UNREAD_POLL_SEC", 5)
	viper.SetDefault("POLL_BURST", 3)
	viper.SetDefault("POLLS_PER_MINUTE", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// HTTPTimeout returns the outbound HTTP timeout as a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// ConnectTimeout returns the live-channel dial timeout as a duration.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}
