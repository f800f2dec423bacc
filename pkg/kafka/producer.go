// pkg/kafka/producer.go
//
// Синхронный sarama-продьюсер с идемпотентной записью, ретраями
// подключения и публикации через pkg/backoff, otel-обёрткой и метриками.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/dnwe/otelsarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/market-streamer/pkg/backoff"
	"github.com/YaganovValera/market-streamer/pkg/logger"
)

var tracer = otel.Tracer("kafka-producer")

// serviceLabel попадает в лейбл service всех метрик пакета.
var serviceLabel = "unknown"

// SetServiceLabel вызывается один раз при старте, до первой публикации.
func SetServiceLabel(name string) { serviceLabel = name }

var (
	connectAttempts = counter("connect_attempts_total", "Kafka producer connect attempts")
	connectErrors   = counter("connect_errors_total", "Kafka producer connect errors")
	publishSuccess  = counter("publish_success_total", "Successful publishes")
	publishErrors   = counter("publish_errors_total", "Publish errors")
	pingSuccess     = counter("ping_success_total", "Successful pings")
	pingErrors      = counter("ping_errors_total", "Ping errors")

	publishLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "streamer", Subsystem: "kafka_producer", Name: "publish_latency_seconds",
		Help:    "Publish latency (seconds)",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})
)

func counter(name, help string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamer", Subsystem: "kafka_producer", Name: name, Help: help,
	}, []string{"service"})
}

// Config — настройки синхронного продьюсера.
// Нулевые значения заменяются дефолтами в applyDefaults().
type Config struct {
	// Brokers — адреса брокеров кластера.
	Brokers []string `mapstructure:"brokers"`

	// RequiredAcks: "all" (дефолт) | "leader" | "none".
	RequiredAcks string `mapstructure:"acks"`

	// Timeout ограничивает ожидание ack от кластера.
	Timeout time.Duration `mapstructure:"timeout"`

	// Compression: "none" (дефолт) | "gzip" | "snappy" | "lz4" | "zstd".
	Compression string `mapstructure:"compression"`

	// FlushFrequency и FlushMessages управляют буфером продьюсера;
	// ноль отключает соответствующий порог.
	FlushFrequency time.Duration `mapstructure:"flush_frequency"`
	FlushMessages  int           `mapstructure:"flush_messages"`

	// Backoff — стратегия ретраев подключения и публикации.
	Backoff backoff.Config `mapstructure:"backoff"`
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RequiredAcks == "" {
		c.RequiredAcks = "all"
	}
	if c.Compression == "" {
		c.Compression = "none"
	}
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka producer: brokers required")
	}
	return nil
}

// buildSaramaConfig переводит Config в sarama.Config.
// Идемпотентная запись требует MaxOpenRequests = 1.
func buildSaramaConfig(c Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Timeout = c.Timeout
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1

	switch strings.ToLower(c.RequiredAcks) {
	case "all":
		sc.Producer.RequiredAcks = sarama.WaitForAll
	case "leader":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "none":
		sc.Producer.RequiredAcks = sarama.NoResponse
	default:
		return nil, fmt.Errorf("kafka producer: invalid RequiredAcks %q", c.RequiredAcks)
	}

	switch strings.ToLower(c.Compression) {
	case "none":
		sc.Producer.Compression = sarama.CompressionNone
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	default:
		return nil, fmt.Errorf("kafka producer: invalid Compression %q", c.Compression)
	}

	if c.FlushFrequency > 0 {
		sc.Producer.Flush.Frequency = c.FlushFrequency
	}
	if c.FlushMessages > 0 {
		sc.Producer.Flush.Messages = c.FlushMessages
	}
	return sc, nil
}

type syncProducer struct {
	prod       sarama.SyncProducer
	client     sarama.Client
	log        *logger.Logger
	backoffCfg backoff.Config
}

// NewProducer подключается к кластеру с ретраями и возвращает готовый
// Producer, обёрнутый для трассировки.
func NewProducer(ctx context.Context, cfg Config, log *logger.Logger) (Producer, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log = log.Named("kafka-producer")

	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: new client: %w", err)
	}

	var prod sarama.SyncProducer
	connCtx, span := tracer.Start(ctx, "Connect",
		trace.WithAttributes(attribute.StringSlice("brokers", cfg.Brokers)))
	err = backoff.Execute(connCtx, cfg.Backoff, log, func(ctx context.Context) error {
		connectAttempts.WithLabelValues(serviceLabel).Inc()
		p, perr := sarama.NewSyncProducerFromClient(client)
		if perr != nil {
			connectErrors.WithLabelValues(serviceLabel).Inc()
			return perr
		}
		prod = p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.End()
		_ = client.Close()
		log.Error("kafka producer connect failed", zap.Error(err))
		return nil, fmt.Errorf("kafka producer: connect: %w", err)
	}
	span.End()

	log.Info("kafka producer ready", zap.Strings("brokers", cfg.Brokers))
	return &syncProducer{
		prod:       otelsarama.WrapSyncProducer(sc, prod),
		client:     client,
		log:        log,
		backoffCfg: cfg.Backoff,
	}, nil
}

func (p *syncProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	ctx, span := tracer.Start(ctx, "Publish", trace.WithAttributes(attribute.String("topic", topic)))
	defer span.End()

	start := time.Now()
	err := backoff.Execute(ctx, p.backoffCfg, p.log, func(context.Context) error {
		msg := &sarama.ProducerMessage{
			Topic: topic,
			Value: sarama.ByteEncoder(value),
		}
		if key != nil {
			msg.Key = sarama.ByteEncoder(key)
		}
		_, _, serr := p.prod.SendMessage(msg)
		return serr
	})
	publishLatency.WithLabelValues(serviceLabel).Observe(time.Since(start).Seconds())

	if err != nil {
		publishErrors.WithLabelValues(serviceLabel).Inc()
		span.RecordError(err)
		p.log.Error("publish failed", zap.String("topic", topic), zap.Error(err))
		return err
	}
	publishSuccess.WithLabelValues(serviceLabel).Inc()
	return nil
}

// Ping обновляет метаданные клиента, подтверждая доступность кластера.
func (p *syncProducer) Ping(ctx context.Context) error {
	_, span := tracer.Start(ctx, "Ping")
	defer span.End()

	if err := p.client.RefreshMetadata(); err != nil {
		pingErrors.WithLabelValues(serviceLabel).Inc()
		span.RecordError(err)
		return fmt.Errorf("kafka producer: ping: %w", err)
	}
	pingSuccess.WithLabelValues(serviceLabel).Inc()
	return nil
}

func (p *syncProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		_ = p.client.Close()
		return fmt.Errorf("kafka producer: close: %w", err)
	}
	return p.client.Close()
}
