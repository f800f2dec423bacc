// pkg/backoff/backoff.go
//
// Экспоненциальные ретраи поверх cenkalti/backoff: единый Execute
// с метриками и структурными логами. Отмена контекста прерывает
// и паузу, и дальнейшие попытки.
package backoff

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/YaganovValera/market-streamer/pkg/logger"
)

var serviceLabel = "unknown"

// SetServiceLabel задаёт лейбл service для метрик; вызывается один раз в main.
func SetServiceLabel(name string) { serviceLabel = name }

var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamer", Subsystem: "backoff", Name: "retries_total",
		Help: "Number of back-off retry attempts",
	}, []string{"service"})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamer", Subsystem: "backoff", Name: "failures_total",
		Help: "Number of operations that gave up after retries",
	}, []string{"service"})

	successesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamer", Subsystem: "backoff", Name: "successes_total",
		Help: "Number of operations that eventually succeeded",
	}, []string{"service"})

	retryDelays = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "streamer", Subsystem: "backoff", Name: "retry_delay_seconds",
		Help:    "Histogram of retry delays (seconds)",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})
)

// Config — параметры экспоненциальной стратегии.
// Нулевые значения означают "взять разумный дефолт".
type Config struct {
	// InitialInterval — первая пауза перед повтором.
	InitialInterval time.Duration `mapstructure:"initial_interval"`

	// RandomizationFactor — джиттер пауз, 0.0 ≤ f ≤ 1.0.
	RandomizationFactor float64 `mapstructure:"randomization_factor"`

	// Multiplier — во сколько раз растёт каждая следующая пауза.
	Multiplier float64 `mapstructure:"multiplier"`

	// MaxInterval — потолок отдельной паузы.
	MaxInterval time.Duration `mapstructure:"max_interval"`

	// MaxElapsedTime — общий бюджет на все попытки; ноль → без лимита.
	MaxElapsedTime time.Duration `mapstructure:"max_elapsed_time"`

	// PerAttemptTimeout ограничивает каждую отдельную попытку;
	// ноль → без лимита.
	PerAttemptTimeout time.Duration `mapstructure:"per_attempt_timeout"`
}

func (c *Config) applyDefaults() {
	if c.InitialInterval <= 0 {
		c.InitialInterval = time.Second
	}
	if c.RandomizationFactor <= 0 {
		c.RandomizationFactor = 0.5
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
}

func (c Config) validate() error {
	if c.RandomizationFactor < 0 || c.RandomizationFactor > 1 {
		return fmt.Errorf("backoff: RandomizationFactor must be in [0,1]")
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("backoff: Multiplier must be >= 1")
	}
	return nil
}

// RetryableFunc — единица работы, повторяемая до успеха или исчерпания
// стратегии.
type RetryableFunc func(ctx context.Context) error

// ErrMaxRetries возвращается из Execute, когда попытки исчерпаны.
type ErrMaxRetries struct {
	Err      error // последняя ошибка fn
	Attempts int   // сколько попыток сделано
}

func (e *ErrMaxRetries) Error() string {
	return fmt.Sprintf("backoff: %d attempt(s) failed: %v", e.Attempts, e.Err)
}
func (e *ErrMaxRetries) Unwrap() error { return e.Err }

// Permanent помечает ошибку как неповторяемую: Execute вернёт её сразу.
func Permanent(err error) error { return backoff.Permanent(err) }

// Execute повторяет fn по стратегии cfg, считая попытки в метриках
// и логируя каждый повтор.
func Execute(ctx context.Context, cfg Config, log *logger.Logger, fn RetryableFunc) error {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("backoff: invalid config: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.RandomizationFactor = cfg.RandomizationFactor
	bo.Multiplier = cfg.Multiplier
	bo.MaxInterval = cfg.MaxInterval
	bo.MaxElapsedTime = cfg.MaxElapsedTime // ноль = без лимита

	attempts := 0
	operation := func() error {
		attempts++
		if cfg.PerAttemptTimeout > 0 {
			attemptCtx, cancel := context.WithTimeout(ctx, cfg.PerAttemptTimeout)
			defer cancel()
			return fn(attemptCtx)
		}
		return fn(ctx)
	}
	notify := func(err error, delay time.Duration) {
		retriesTotal.WithLabelValues(serviceLabel).Inc()
		retryDelays.WithLabelValues(serviceLabel).Observe(delay.Seconds())
		log.Warn("back-off retry",
			zap.Int("attempt", attempts),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		failuresTotal.WithLabelValues(serviceLabel).Inc()
		log.Error("back-off give-up", zap.Int("attempts", attempts), zap.Error(err))
		return &ErrMaxRetries{Err: err, Attempts: attempts}
	}

	successesTotal.WithLabelValues(serviceLabel).Inc()
	return nil
}
