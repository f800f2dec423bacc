// pkg/kafka/producer_test.go
package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/YaganovValera/market-streamer/pkg/backoff"
	"github.com/YaganovValera/market-streamer/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", DevMode: true})
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestConfig_DefaultsAndValidate(t *testing.T) {
	cases := []struct {
		name     string
		input    Config
		wantErr  bool
		wantAcks string
		wantComp string
	}{
		{"empty", Config{}, true, "all", "none"},
		{"no brokers", Config{Compression: "gzip"}, true, "all", "gzip"},
		{"ok", Config{Brokers: []string{"b1"}}, false, "all", "none"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.input
			cfg.applyDefaults()
			if cfg.RequiredAcks != tc.wantAcks {
				t.Errorf("RequiredAcks = %q, want %q", cfg.RequiredAcks, tc.wantAcks)
			}
			if cfg.Compression != tc.wantComp {
				t.Errorf("Compression = %q, want %q", cfg.Compression, tc.wantComp)
			}
			if err := cfg.validate(); (err != nil) != tc.wantErr {
				t.Errorf("validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestBuildSaramaConfig_RequiredAcks(t *testing.T) {
	cases := []struct {
		acks    string
		want    sarama.RequiredAcks
		wantErr bool
	}{
		{"all", sarama.WaitForAll, false},
		{"ALL", sarama.WaitForAll, false},
		{"leader", sarama.WaitForLocal, false},
		{"LeAdEr", sarama.WaitForLocal, false},
		{"none", sarama.NoResponse, false},
		{"invalid", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.acks, func(t *testing.T) {
			cfg := Config{Brokers: []string{"x"}, RequiredAcks: tc.acks, Compression: "none"}
			sc, err := buildSaramaConfig(cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("buildSaramaConfig(%q): want error", tc.acks)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildSaramaConfig(%q): %v", tc.acks, err)
			}
			if sc.Producer.RequiredAcks != tc.want {
				t.Errorf("RequiredAcks = %v, want %v", sc.Producer.RequiredAcks, tc.want)
			}
		})
	}
}

func TestBuildSaramaConfig_Compression(t *testing.T) {
	valid := []string{"none", "gzip", "snappy", "lz4", "zstd", "NONE"}
	for _, comp := range valid {
		cfg := Config{Brokers: []string{"x"}, RequiredAcks: "all", Compression: comp}
		if _, err := buildSaramaConfig(cfg); err != nil {
			t.Errorf("buildSaramaConfig(%q): %v", comp, err)
		}
	}
	cfg := Config{Brokers: []string{"x"}, RequiredAcks: "all", Compression: "bogus"}
	if _, err := buildSaramaConfig(cfg); err == nil {
		t.Error("buildSaramaConfig(bogus): want error")
	}
}

func TestBuildSaramaConfig_Idempotent(t *testing.T) {
	cfg := Config{Brokers: []string{"x"}, RequiredAcks: "all", Compression: "none"}
	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		t.Fatalf("buildSaramaConfig: %v", err)
	}
	if !sc.Producer.Idempotent || sc.Net.MaxOpenRequests != 1 {
		t.Errorf("Idempotent = %v, MaxOpenRequests = %d; want true, 1",
			sc.Producer.Idempotent, sc.Net.MaxOpenRequests)
	}
}

// Публикация переживает временный сбой брокера за счёт ретрая.
func TestPublish_RetryAndSuccess(t *testing.T) {
	mockProd := mocks.NewSyncProducer(t, sarama.NewConfig())
	defer mockProd.Close()

	mockProd.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	mockProd.ExpectSendMessageAndSucceed()

	p := &syncProducer{
		prod: mockProd,
		log:  newTestLogger(t),
		backoffCfg: backoff.Config{
			InitialInterval: time.Millisecond,
			Multiplier:      1,
			MaxInterval:     time.Millisecond,
			MaxElapsedTime:  50 * time.Millisecond,
		},
	}
	if err := p.Publish(context.Background(), "topic", []byte("key"), []byte("value")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestNewProducer_InvalidConfig(t *testing.T) {
	if _, err := NewProducer(context.Background(), Config{}, newTestLogger(t)); err == nil {
		t.Fatal("want error for empty config")
	}

	cfg := Config{Brokers: []string{"dummy"}, RequiredAcks: "invalid"}
	if _, err := NewProducer(context.Background(), cfg, newTestLogger(t)); err == nil {
		t.Fatal("want error for invalid acks")
	}
}
