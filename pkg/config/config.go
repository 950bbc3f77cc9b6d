package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Market    MarketConfig    `mapstructure:"market"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`    // debug, info, warn, error
	Encoding string `mapstructure:"encoding"` // json, console
}

// FeedConfig selects and parameterizes the upstream real-time source.
type FeedConfig struct {
	Mode      string   `mapstructure:"mode"` // "ws" (broker session) or "kafka" (replay)
	URL       string   `mapstructure:"url"`
	AppKey    string   `mapstructure:"app_key"`
	AppSecret string   `mapstructure:"app_secret"`
	UserID    string   `mapstructure:"user_id"` // HTS id, optional
	Symbols   []string `mapstructure:"symbols"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type ProvidersConfig struct {
	BrokerBaseURL string `mapstructure:"broker_base_url"`
	WebBaseURL    string `mapstructure:"web_base_url"`
	ChartBaseURL  string `mapstructure:"chart_base_url"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
}

type CacheConfig struct {
	TTLSec int `mapstructure:"ttl_sec"`
}

type RelayConfig struct {
	BroadcastMs int `mapstructure:"broadcast_ms"`
}

// MarketConfig is the regular trading session window, "HH:MM" local time.
type MarketConfig struct {
	Open  string `mapstructure:"open"`
	Close string `mapstructure:"close"`
}

type MirrorConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	// This ensures variables like APP_PORT are available as real env vars
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults (12-Factor App: Dev/Prod Parity)
	v.SetDefault("app.port", ":8765")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("feed.mode", "ws")
	v.SetDefault("feed.url", "ws://ops.koreainvestment.com:21000")
	v.SetDefault("feed.app_key", "")
	v.SetDefault("feed.app_secret", "")
	v.SetDefault("feed.user_id", "")
	v.SetDefault("feed.symbols", []string{"005930", "000660"})

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_ticks")
	v.SetDefault("kafka.group_id", "quote-relay-group")

	v.SetDefault("providers.broker_base_url", "https://openapivts.koreainvestment.com:29443")
	v.SetDefault("providers.web_base_url", "")
	v.SetDefault("providers.chart_base_url", "")
	v.SetDefault("providers.timeout_sec", 5)

	v.SetDefault("cache.ttl_sec", 30)

	v.SetDefault("relay.broadcast_ms", 100)

	v.SetDefault("market.open", "09:00")
	v.SetDefault("market.close", "15:30")

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.addr", "localhost:6379")
	v.SetDefault("mirror.password", "")
	v.SetDefault("mirror.db", 0)

	// 3. Configure Viper to read Environment Variables
	// This maps dot-notation to underscores (e.g., "app.port" -> "APP_PORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly Bind Env Vars to Keys
	// This is crucial for Viper to map flat Env Vars (APP_PORT) to nested structs (App.Port)
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.encoding")
	bindEnv(v, "feed.mode", "feed.url", "feed.app_key", "feed.app_secret", "feed.user_id", "feed.symbols")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id")
	bindEnv(v, "providers.broker_base_url", "providers.web_base_url", "providers.chart_base_url", "providers.timeout_sec")
	bindEnv(v, "cache.ttl_sec")
	bindEnv(v, "relay.broadcast_ms")
	bindEnv(v, "market.open", "market.close")
	bindEnv(v, "mirror.enabled", "mirror.addr", "mirror.password", "mirror.db")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	// 6. Basic Validation
	if cfg.Feed.Mode != "ws" && cfg.Feed.Mode != "kafka" {
		return nil, fmt.Errorf("feed.mode must be \"ws\" or \"kafka\", got %q", cfg.Feed.Mode)
	}
	if cfg.Feed.Mode == "kafka" && len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty in kafka feed mode")
	}
	if cfg.Relay.BroadcastMs <= 0 {
		return nil, fmt.Errorf("relay.broadcast_ms must be positive")
	}

	return &cfg, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}

// NewLogger builds the process logger from the logger section.
func NewLogger(lc LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}

	zc := zap.NewProductionConfig()
	if lc.Encoding == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
