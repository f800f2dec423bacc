// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/YaganovValera/market-streamer/internal/dxlink"
	"github.com/YaganovValera/market-streamer/internal/sink"
	"github.com/YaganovValera/market-streamer/pkg/httpserver"
	"github.com/YaganovValera/market-streamer/pkg/kafka"
	"github.com/YaganovValera/market-streamer/pkg/logger"
	"github.com/YaganovValera/market-streamer/pkg/telemetry"
)

// Config — все настройки сервиса. Собирается из файла, ENV (префикс
// STREAMER) и дефолтов, в этом порядке приоритета.
type Config struct {
	ServiceName    string            `mapstructure:"service_name"`
	ServiceVersion string            `mapstructure:"service_version"`
	DXLink         dxlink.Config     `mapstructure:"dxlink"`
	Symbols        map[string]string `mapstructure:"symbols"` // caller-facing -> символ фида
	Kafka          KafkaConfig       `mapstructure:"kafka"`
	Telemetry      telemetry.Config  `mapstructure:"telemetry"`
	Logging        logger.Config     `mapstructure:"logging"`
	HTTP           httpserver.Config `mapstructure:"http"`
}

// KafkaConfig — настройки продьюсера плюс топики публикации.
type KafkaConfig struct {
	kafka.Config `mapstructure:",squash"`
	Topics       sink.Topics `mapstructure:"topics"`
}

// Load собирает конфиг. Пустой path означает "только ENV и defaults".
func Load(path string) (*Config, error) {
	v := viper.New()
	seedDefaults(v)

	v.SetEnvPrefix("STREAMER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func seedDefaults(v *viper.Viper) {
	for key, val := range map[string]interface{}{
		"service_name":    "market-streamer",
		"service_version": "v1.0.0",

		"dxlink.version":       "0.1-js/1.0.0",
		"dxlink.auth_timeout":  "30s",
		"dxlink.write_timeout": "5s",
		"dxlink.dial_timeout":  "5s",

		"kafka.acks":            "all",
		"kafka.timeout":         "15s",
		"kafka.compression":     "none",
		"kafka.flush_frequency": "0s",
		"kafka.flush_messages":  0,
		"kafka.topics.quotes":   "marketdata.quotes",
		"kafka.topics.candles":  "marketdata.candles",
		"kafka.topics.greeks":   "marketdata.greeks",

		"telemetry.otel_endpoint": "otel-collector:4317",
		"telemetry.insecure":      false,

		"logging.level":    "info",
		"logging.dev_mode": false,

		"http.addr":             ":8080",
		"http.read_timeout":     "10s",
		"http.write_timeout":    "15s",
		"http.idle_timeout":     "60s",
		"http.shutdown_timeout": "5s",
		"http.metrics_path":     "/metrics",
		"http.healthz_path":     "/healthz",
		"http.readyz_path":      "/readyz",
	} {
		v.SetDefault(key, val)
	}
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &cfg,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			looseBoolHook,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// looseBoolHook разбирает "true"/"false" из ENV, где всё приходит строками.
func looseBoolHook(f, t reflect.Kind, data interface{}) (interface{}, error) {
	if f == reflect.String && t == reflect.Bool {
		return strconv.ParseBool(data.(string))
	}
	return data, nil
}

// Validate проверяет обязательные поля и enum-значения.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required")
	}
	if c.DXLink.URL == "" {
		return fmt.Errorf("dxlink.url is required")
	}
	if c.DXLink.Token == "" {
		return fmt.Errorf("dxlink.token is required")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must contain at least one entry")
	}
	for original, streamer := range c.Symbols {
		if original == "" || streamer == "" {
			return fmt.Errorf("symbols must not contain empty entries")
		}
	}
	if err := c.validateKafka(); err != nil {
		return err
	}
	if c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.otel_endpoint is required")
	}
	if !oneOf(c.Logging.Level, "debug", "info", "warn", "error") {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error]")
	}
	return c.validateHTTP()
}

func (c *Config) validateKafka() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	topics := c.Kafka.Topics
	if topics.Quotes == "" && topics.Candles == "" && topics.Greeks == "" {
		return fmt.Errorf("kafka.topics: at least one topic is required")
	}
	if !oneOf(c.Kafka.RequiredAcks, "all", "leader", "none") {
		return fmt.Errorf("kafka.acks must be one of [all, leader, none]")
	}
	if !oneOf(c.Kafka.Compression, "none", "gzip", "snappy", "lz4", "zstd") {
		return fmt.Errorf("kafka.compression must be one of [none, gzip, snappy, lz4, zstd]")
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	for key, p := range map[string]string{
		"http.metrics_path": c.HTTP.MetricsPath,
		"http.healthz_path": c.HTTP.HealthzPath,
		"http.readyz_path":  c.HTTP.ReadyzPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/'", key)
		}
	}
	return nil
}

func oneOf(val string, allowed ...string) bool {
	val = strings.ToLower(val)
	for _, a := range allowed {
		if val == a {
			return true
		}
	}
	return false
}

// Print выводит конфиг в JSON с замаскированным токеном; полезно в DevMode.
func (c *Config) Print() {
	masked := *c
	if masked.DXLink.Token != "" {
		masked.DXLink.Token = "***"
	}
	b, _ := json.MarshalIndent(masked, "", "  ")
	fmt.Println("Loaded configuration:\n", string(b))
}
