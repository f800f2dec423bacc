// internal/dxlink/events.go
package dxlink

import "time"

// EventType — закрытый набор видов событий фида.
type EventType string

const (
	EventTypeQuote  EventType = "Quote"
	EventTypeCandle EventType = "Candle"
	EventTypeGreeks EventType = "Greeks"
)

// Quote — лучшие bid/ask по инструменту.
type Quote struct {
	Symbol      string    `json:"symbol"`      // caller-facing символ
	EventSymbol string    `json:"eventSymbol"` // символ фида
	BidPrice    float64   `json:"bidPrice"`
	AskPrice    float64   `json:"askPrice"`
	CapturedAt  time.Time `json:"capturedAt"` // момент декодирования, не из фида
}

// Candle — OHLCV-свеча.
type Candle struct {
	Symbol      string    `json:"symbol"`
	EventSymbol string    `json:"eventSymbol"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	CapturedAt  time.Time `json:"capturedAt"`
}

// Greeks — греческие показатели опциона.
type Greeks struct {
	Symbol      string    `json:"symbol"`
	EventSymbol string    `json:"eventSymbol"`
	Price       float64   `json:"price"`
	Volatility  float64   `json:"volatility"`
	Delta       float64   `json:"delta"`
	Gamma       float64   `json:"gamma"`
	Theta       float64   `json:"theta"`
	Rho         float64   `json:"rho"`
	Vega        float64   `json:"vega"`
	CapturedAt  time.Time `json:"capturedAt"`
}

// Handlers — колбэки подписчика по видам событий.
// Каждый вызывается с батчем записей, ключ — caller-facing символ.
// Хотя бы один обработчик обязателен.
type Handlers struct {
	OnQuote  func(map[string]Quote)
	OnCandle func(map[string]Candle)
	OnGreeks func(map[string]Greeks)
}

func (h Handlers) empty() bool {
	return h.OnQuote == nil && h.OnCandle == nil && h.OnGreeks == nil
}

// eventTypes возвращает виды событий, для которых зарегистрирован обработчик.
func (h Handlers) eventTypes() []EventType {
	types := make([]EventType, 0, 3)
	if h.OnQuote != nil {
		types = append(types, EventTypeQuote)
	}
	if h.OnCandle != nil {
		types = append(types, EventTypeCandle)
	}
	if h.OnGreeks != nil {
		types = append(types, EventTypeGreeks)
	}
	return types
}
