// internal/app/streamer.go
//
// Сборка сервиса: трассировка, Kafka-продьюсер, подписка на фид,
// HTTP-сервер операционных ручек. Завершение — по сигналу контекста
// или при фатальной ошибке подписки.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YaganovValera/market-streamer/internal/config"
	"github.com/YaganovValera/market-streamer/internal/dxlink"
	"github.com/YaganovValera/market-streamer/internal/metrics"
	"github.com/YaganovValera/market-streamer/internal/sink"
	"github.com/YaganovValera/market-streamer/internal/symbols"
	"github.com/YaganovValera/market-streamer/pkg/backoff"
	"github.com/YaganovValera/market-streamer/pkg/httpserver"
	"github.com/YaganovValera/market-streamer/pkg/kafka"
	"github.com/YaganovValera/market-streamer/pkg/logger"
	"github.com/YaganovValera/market-streamer/pkg/telemetry"
)

func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	backoff.SetServiceLabel(cfg.ServiceName)
	kafka.SetServiceLabel(cfg.ServiceName)
	metrics.Register(nil)

	// Трассировка
	cfg.Telemetry.ServiceName = cfg.ServiceName
	cfg.Telemetry.ServiceVersion = cfg.ServiceVersion
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownSafe(ctx, "telemetry", func() error { return shutdownTracer(ctx) }, log)

	// Таблица символов
	translations, err := symbols.New(cfg.Symbols)
	if err != nil {
		return fmt.Errorf("symbol translations: %w", err)
	}

	// Kafka-продьюсер
	producer, err := kafka.NewProducer(ctx, cfg.Kafka.Config, log)
	if err != nil {
		return fmt.Errorf("kafka producer init: %w", err)
	}
	defer shutdownSafe(ctx, "kafka-producer", producer.Close, log)

	// Sink и подписка
	recordSink, err := sink.New(producer, cfg.Kafka.Topics, log)
	if err != nil {
		return fmt.Errorf("sink init: %w", err)
	}

	subscription, err := dxlink.New(cfg.DXLink, log, translations, recordSink.Handlers(ctx))
	if err != nil {
		return fmt.Errorf("subscription init: %w", err)
	}
	defer shutdownSafe(ctx, "subscription", subscription.Close, log)

	// HTTP-сервер: readiness завязан на Kafka
	readiness := func() error { return producer.Ping(ctx) }
	httpSrv, err := httpserver.New(cfg.HTTP, readiness, log)
	if err != nil {
		return fmt.Errorf("httpserver init: %w", err)
	}

	if err := subscription.Open(ctx); err != nil {
		return fmt.Errorf("open subscription: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Start(ctx) })
	g.Go(func() error {
		select {
		case <-subscription.Done():
			if err := subscription.Err(); err != nil {
				return fmt.Errorf("subscription terminated: %w", err)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			log.WithContext(ctx).Info("streamer stopped by context")
			return nil
		}
		return err
	}
	return nil
}

// shutdownSafe оборачивает вызов Close()/Shutdown() с логированием.
func shutdownSafe(ctx context.Context, name string, fn func() error, log *logger.Logger) {
	log.WithContext(ctx).Info(fmt.Sprintf("%s: shutting down", name))
	if err := fn(); err != nil {
		log.WithContext(ctx).Error(fmt.Sprintf("%s shutdown error", name), zap.Error(err))
	} else {
		log.WithContext(ctx).Info(fmt.Sprintf("%s: shutdown complete", name))
	}
}
