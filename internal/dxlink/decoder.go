// internal/dxlink/decoder.go
//
// Декодер компактных событий: плоский массив значений режется на блоки
// фиксированной ширины, поля читаются по фиксированным смещениям внутри блока.
// Разделителей нет, границы блоков чисто позиционные (index * width).
package dxlink

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// SymbolTranslator — внешний коллаборатор: отдаёт набор символов фида для
// подписки и разрешает символы фида обратно в caller-facing символы.
type SymbolTranslator interface {
	StreamerSymbols() []string
	OriginalSymbol(streamerSymbol string) (string, bool)
}

// Ширины блоков по видам событий.
const (
	quoteStride  = 13
	candleStride = 18
	greeksStride = 14
)

// parseFeedEvent разбирает полезную нагрузку FEED_DATA: [kind, flatArray].
func parseFeedEvent(raw json.RawMessage) (EventType, []any, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", nil, fmt.Errorf("feed event envelope: %w", err)
	}
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("feed event envelope: want 2 elements, got %d", len(parts))
	}

	var kind string
	if err := json.Unmarshal(parts[0], &kind); err != nil {
		return "", nil, fmt.Errorf("feed event kind: %w", err)
	}
	var values []any
	if err := json.Unmarshal(parts[1], &values); err != nil {
		return "", nil, fmt.Errorf("feed event values: %w", err)
	}
	return EventType(kind), values, nil
}

// toFloat приводит значение фида к float64; null и мусор дают NaN.
func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// resolve читает символ фида из блока и разрешает его в caller-facing символ.
func resolve(data []any, base int, tr SymbolTranslator) (original, feed string, ok bool) {
	feed, ok = data[base+1].(string)
	if !ok {
		return "", "", false
	}
	original, ok = tr.OriginalSymbol(feed)
	return original, feed, ok
}

// decodeQuotes декодирует блоки Quote: symbol@1, bidPrice@7, askPrice@11.
// Возвращает записи по caller-facing символам и число пропущенных блоков.
func decodeQuotes(data []any, tr SymbolTranslator, now time.Time) (map[string]Quote, int) {
	out := make(map[string]Quote)
	skipped := 0
	for i := 0; i+quoteStride <= len(data); i += quoteStride {
		original, feed, ok := resolve(data, i, tr)
		if !ok {
			skipped++
			continue
		}
		out[original] = Quote{
			Symbol:      original,
			EventSymbol: feed,
			BidPrice:    toFloat(data[i+7]),
			AskPrice:    toFloat(data[i+11]),
			CapturedAt:  now,
		}
	}
	if len(data)%quoteStride != 0 {
		skipped++ // неполный хвостовой блок
	}
	return out, skipped
}

// decodeCandles декодирует блоки Candle:
// symbol@1, open@8, high@9, low@10, close@11, volume@12.
func decodeCandles(data []any, tr SymbolTranslator, now time.Time) (map[string]Candle, int) {
	out := make(map[string]Candle)
	skipped := 0
	for i := 0; i+candleStride <= len(data); i += candleStride {
		original, feed, ok := resolve(data, i, tr)
		if !ok {
			skipped++
			continue
		}
		out[original] = Candle{
			Symbol:      original,
			EventSymbol: feed,
			Open:        toFloat(data[i+8]),
			High:        toFloat(data[i+9]),
			Low:         toFloat(data[i+10]),
			Close:       toFloat(data[i+11]),
			Volume:      toFloat(data[i+12]),
			CapturedAt:  now,
		}
	}
	if len(data)%candleStride != 0 {
		skipped++
	}
	return out, skipped
}

// decodeGreeks декодирует блоки Greeks:
// symbol@1, price@8, volatility@9, delta@10, gamma@11, theta@12, rho@13, vega@13.
// Rho и Vega читают одно и то же смещение — так устроен наблюдаемый layout
// фида; менять без сверки с вышестоящим протоколом нельзя.
func decodeGreeks(data []any, tr SymbolTranslator, now time.Time) (map[string]Greeks, int) {
	out := make(map[string]Greeks)
	skipped := 0
	for i := 0; i+greeksStride <= len(data); i += greeksStride {
		original, feed, ok := resolve(data, i, tr)
		if !ok {
			skipped++
			continue
		}
		out[original] = Greeks{
			Symbol:      original,
			EventSymbol: feed,
			Price:       toFloat(data[i+8]),
			Volatility:  toFloat(data[i+9]),
			Delta:       toFloat(data[i+10]),
			Gamma:       toFloat(data[i+11]),
			Theta:       toFloat(data[i+12]),
			Rho:         toFloat(data[i+13]),
			Vega:        toFloat(data[i+13]),
			CapturedAt:  now,
		}
	}
	if len(data)%greeksStride != 0 {
		skipped++
	}
	return out, skipped
}
