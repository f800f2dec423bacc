// pkg/telemetry/otel_test.go
package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/YaganovValera/market-streamer/pkg/logger"
)

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing endpoint", Config{ServiceName: "svc", ServiceVersion: "v1"}, true},
		{"missing service name", Config{Endpoint: "host:1234", ServiceVersion: "v1"}, true},
		{"missing version", Config{Endpoint: "host:1234", ServiceName: "svc"}, true},
		{"complete", Config{Endpoint: "host:1234", ServiceName: "svc", ServiceVersion: "v1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateConfig(tc.cfg); (err != nil) != tc.wantErr {
				t.Errorf("validateConfig = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Endpoint: "e", ServiceName: "s", ServiceVersion: "v", SamplerRatio: 2.5}
	applyDefaults(&cfg)

	if cfg.Timeout != 5*time.Second || cfg.ReconnectPeriod != 5*time.Second {
		t.Errorf("timeouts = %v/%v, want 5s/5s", cfg.Timeout, cfg.ReconnectPeriod)
	}
	if cfg.SamplerRatio != 1.0 {
		t.Errorf("SamplerRatio = %v, want clamped to 1.0", cfg.SamplerRatio)
	}
}

func TestInitTracer_AndShutdown(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "error", DevMode: true})
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	// экспортёр ленивый: коллектора на адресе нет, но Init и Shutdown
	// обязаны отработать без ошибок
	shutdown, err := InitTracer(context.Background(), Config{
		Endpoint:       "localhost:4317",
		ServiceName:    "test-streamer",
		ServiceVersion: "v0.0.1",
		Insecure:       true,
	}, log)
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
