// internal/dxlink/messages.go
//
// Wire-сообщения протокола: текстовые фреймы, один JSON-объект на фрейм.
package dxlink

import "encoding/json"

const (
	msgTypeSetup            = "SETUP"
	msgTypeAuth             = "AUTH"
	msgTypeAuthState        = "AUTH_STATE"
	msgTypeChannelRequest   = "CHANNEL_REQUEST"
	msgTypeFeedSubscription = "FEED_SUBSCRIPTION"
	msgTypeFeedData         = "FEED_DATA"
	msgTypeKeepalive        = "KEEPALIVE"
	msgTypeError            = "ERROR"
)

const (
	// controlChannel — служебный канал (SETUP/AUTH/KEEPALIVE).
	controlChannel = 0
	// feedChannel — канал фида, согласуемый через CHANNEL_REQUEST.
	feedChannel = 1
)

const (
	authStateAuthorized = "AUTHORIZED"
	feedService         = "FEED"
	feedContractAuto    = "AUTO"
)

type setupMessage struct {
	Type    string `json:"type"`
	Channel int    `json:"channel"`
	Version string `json:"version"`
}

type authMessage struct {
	Type    string `json:"type"`
	Channel int    `json:"channel"`
	Token   string `json:"token"`
}

type channelParameters struct {
	Contract string `json:"contract"`
}

type channelRequestMessage struct {
	Type       string            `json:"type"`
	Channel    int               `json:"channel"`
	Service    string            `json:"service"`
	Parameters channelParameters `json:"parameters"`
}

// SubscriptionEntry — одна пара (символ фида, вид события) в FEED_SUBSCRIPTION.
type SubscriptionEntry struct {
	Symbol string    `json:"symbol"`
	Type   EventType `json:"type"`
}

type feedSubscriptionMessage struct {
	Type    string              `json:"type"`
	Channel int                 `json:"channel"`
	Add     []SubscriptionEntry `json:"add"`
}

type keepaliveMessage struct {
	Type    string `json:"type"`
	Channel int    `json:"channel"`
}

// serverMessage — входящий фрейм; поля заполняются в зависимости от Type.
type serverMessage struct {
	Type             string          `json:"type"`
	Channel          int             `json:"channel"`
	KeepaliveTimeout float64         `json:"keepaliveTimeout"` // SETUP, секунды
	State            string          `json:"state"`            // AUTH_STATE
	Error            string          `json:"error"`            // ERROR
	Message          string          `json:"message"`          // ERROR
	Data             json.RawMessage `json:"data"`             // FEED_DATA: [kind, flatArray]
}
