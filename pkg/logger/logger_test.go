// pkg/logger/logger_test.go
package logger_test

import (
	"context"
	"testing"

	"github.com/YaganovValera/market-streamer/pkg/logger"
)

func TestNew_Levels(t *testing.T) {
	cases := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"", false}, // дефолт info
		{"loud", true},
	}
	for _, tc := range cases {
		_, err := logger.New(logger.Config{Level: tc.level, DevMode: true})
		if (err != nil) != tc.wantErr {
			t.Errorf("level %q: got err=%v, wantErr=%v", tc.level, err, tc.wantErr)
		}
	}
}

func TestNamed_ReturnsDistinctLogger(t *testing.T) {
	l, err := logger.New(logger.Config{Level: "info", DevMode: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sub := l.Named("component")
	if sub == l {
		t.Error("Named should return a new logger")
	}
	sub.Info("named logger works")
}

func TestWithContext_AddsIDs(t *testing.T) {
	l, err := logger.New(logger.Config{Level: "info", DevMode: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := logger.ContextWithTraceID(context.Background(), "trace-123")
	ctx = logger.ContextWithRequestID(ctx, "req-456")
	l.WithContext(ctx).Info("enriched")

	// без ID в контексте возвращается тот же логгер
	if got := l.WithContext(context.Background()); got != l {
		t.Error("WithContext without IDs should return the receiver")
	}
}

func TestSync_NoPanic(t *testing.T) {
	l, err := logger.New(logger.Config{Level: "info", DevMode: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Sync()
}
