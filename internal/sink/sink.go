// internal/sink/sink.go
//
// Sink публикует декодированные записи фида в Kafka: по топику на вид
// события, ключ — caller-facing символ. Отсутствующие значения фида
// (NaN после декодирования) сериализуются как null.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/YaganovValera/market-streamer/internal/dxlink"
	"github.com/YaganovValera/market-streamer/internal/metrics"
	"github.com/YaganovValera/market-streamer/pkg/kafka"
	"github.com/YaganovValera/market-streamer/pkg/logger"
)

var tracer = otel.Tracer("streamer/sink")

// Topics — топики публикации по видам событий. Пустой топик отключает
// подписку на соответствующий вид.
type Topics struct {
	Quotes  string `mapstructure:"quotes"`
	Candles string `mapstructure:"candles"`
	Greeks  string `mapstructure:"greeks"`
}

func (t Topics) validate() error {
	if t.Quotes == "" && t.Candles == "" && t.Greeks == "" {
		return fmt.Errorf("sink: at least one topic must be configured")
	}
	return nil
}

// Sink превращает батчи записей в Kafka-сообщения.
type Sink struct {
	producer kafka.Producer
	topics   Topics
	log      *logger.Logger
}

func New(producer kafka.Producer, topics Topics, log *logger.Logger) (*Sink, error) {
	if producer == nil {
		return nil, fmt.Errorf("sink: producer is required")
	}
	if err := topics.validate(); err != nil {
		return nil, err
	}
	return &Sink{producer: producer, topics: topics, log: log.Named("sink")}, nil
}

// Handlers собирает обработчики фида: только для видов с настроенным топиком.
func (s *Sink) Handlers(ctx context.Context) dxlink.Handlers {
	var h dxlink.Handlers
	if s.topics.Quotes != "" {
		h.OnQuote = func(batch map[string]dxlink.Quote) { s.publishQuotes(ctx, batch) }
	}
	if s.topics.Candles != "" {
		h.OnCandle = func(batch map[string]dxlink.Candle) { s.publishCandles(ctx, batch) }
	}
	if s.topics.Greeks != "" {
		h.OnGreeks = func(batch map[string]dxlink.Greeks) { s.publishGreeks(ctx, batch) }
	}
	return h
}

// nullable переводит NaN в null при сериализации.
func nullable(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

type quoteRecord struct {
	Symbol      string    `json:"symbol"`
	EventSymbol string    `json:"eventSymbol"`
	BidPrice    *float64  `json:"bidPrice"`
	AskPrice    *float64  `json:"askPrice"`
	CapturedAt  time.Time `json:"capturedAt"`
}

type candleRecord struct {
	Symbol      string    `json:"symbol"`
	EventSymbol string    `json:"eventSymbol"`
	Open        *float64  `json:"open"`
	High        *float64  `json:"high"`
	Low         *float64  `json:"low"`
	Close       *float64  `json:"close"`
	Volume      *float64  `json:"volume"`
	CapturedAt  time.Time `json:"capturedAt"`
}

type greeksRecord struct {
	Symbol      string    `json:"symbol"`
	EventSymbol string    `json:"eventSymbol"`
	Price       *float64  `json:"price"`
	Volatility  *float64  `json:"volatility"`
	Delta       *float64  `json:"delta"`
	Gamma       *float64  `json:"gamma"`
	Theta       *float64  `json:"theta"`
	Rho         *float64  `json:"rho"`
	Vega        *float64  `json:"vega"`
	CapturedAt  time.Time `json:"capturedAt"`
}

func (s *Sink) publishQuotes(ctx context.Context, batch map[string]dxlink.Quote) {
	ctx, span := tracer.Start(ctx, "PublishQuotes")
	defer span.End()

	for symbol, q := range batch {
		rec := quoteRecord{
			Symbol:      q.Symbol,
			EventSymbol: q.EventSymbol,
			BidPrice:    nullable(q.BidPrice),
			AskPrice:    nullable(q.AskPrice),
			CapturedAt:  q.CapturedAt,
		}
		s.publish(ctx, s.topics.Quotes, symbol, rec)
	}
}

func (s *Sink) publishCandles(ctx context.Context, batch map[string]dxlink.Candle) {
	ctx, span := tracer.Start(ctx, "PublishCandles")
	defer span.End()

	for symbol, c := range batch {
		rec := candleRecord{
			Symbol:      c.Symbol,
			EventSymbol: c.EventSymbol,
			Open:        nullable(c.Open),
			High:        nullable(c.High),
			Low:         nullable(c.Low),
			Close:       nullable(c.Close),
			Volume:      nullable(c.Volume),
			CapturedAt:  c.CapturedAt,
		}
		s.publish(ctx, s.topics.Candles, symbol, rec)
	}
}

func (s *Sink) publishGreeks(ctx context.Context, batch map[string]dxlink.Greeks) {
	ctx, span := tracer.Start(ctx, "PublishGreeks")
	defer span.End()

	for symbol, g := range batch {
		rec := greeksRecord{
			Symbol:      g.Symbol,
			EventSymbol: g.EventSymbol,
			Price:       nullable(g.Price),
			Volatility:  nullable(g.Volatility),
			Delta:       nullable(g.Delta),
			Gamma:       nullable(g.Gamma),
			Theta:       nullable(g.Theta),
			Rho:         nullable(g.Rho),
			Vega:        nullable(g.Vega),
			CapturedAt:  g.CapturedAt,
		}
		s.publish(ctx, s.topics.Greeks, symbol, rec)
	}
}

// publish сериализует запись и отправляет её в топик; ошибки не фатальны
// для потока, фиксируются в метриках и логе.
func (s *Sink) publish(ctx context.Context, topic, symbol string, rec any) {
	bytes, err := json.Marshal(rec)
	if err != nil {
		metrics.SerializeErrors.Inc()
		s.log.WithContext(ctx).Error("marshal record failed",
			zap.String("topic", topic),
			zap.String("symbol", symbol),
			zap.Error(err))
		return
	}

	start := time.Now()
	if err := s.producer.Publish(ctx, topic, []byte(symbol), bytes); err != nil {
		metrics.PublishErrors.Inc()
		s.log.WithContext(ctx).Error("publish record failed",
			zap.String("topic", topic),
			zap.String("symbol", symbol),
			zap.Error(err))
		return
	}
	metrics.PublishLatency.Observe(time.Since(start).Seconds())
}
