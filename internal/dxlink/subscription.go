// internal/dxlink/subscription.go
//
// Подписка на поток рыночных данных: websocket-рукопожатие
// (SETUP -> AUTH -> AUTH_STATE -> CHANNEL_REQUEST -> FEED_SUBSCRIPTION),
// периодический KEEPALIVE и цикл приёма компактных событий.
package dxlink

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/YaganovValera/market-streamer/internal/metrics"
	"github.com/YaganovValera/market-streamer/pkg/backoff"
	"github.com/YaganovValera/market-streamer/pkg/logger"
	"github.com/YaganovValera/market-streamer/pkg/looper"
)

// Config — параметры подключения к стримеру.
type Config struct {
	// URL — wss-адрес стримера.
	URL string `mapstructure:"url"`
	// Token — одноразовый токен авторизации.
	Token string `mapstructure:"token"`
	// Version — версия протокола в SETUP.
	Version string `mapstructure:"version"`
	// AuthTimeout ограничивает ожидание AUTH_STATE=AUTHORIZED.
	AuthTimeout time.Duration `mapstructure:"auth_timeout"`
	// WriteTimeout — дедлайн одной записи во фрейм.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// DialTimeout — таймаут одной попытки установить соединение.
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// Backoff управляет ретраями установления соединения.
	Backoff backoff.Config `mapstructure:"backoff"`
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "0.1-js/1.0.0"
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	// Backoff получает дефолты внутри backoff.Execute.
}

func (c *Config) validate() error {
	if c.URL == "" {
		return fmt.Errorf("dxlink: url is required")
	}
	if c.Token == "" {
		return fmt.Errorf("dxlink: token is required")
	}
	return nil
}

// defaultKeepaliveTimeoutSec используется, если SETUP сервера
// не принёс валидный keepaliveTimeout.
const defaultKeepaliveTimeoutSec = 60

// Looper запускает периодические фоновые циклы приёма и keepalive.
type Looper interface {
	Cancel()
	Stop()
}

// Subscription — одно подключение к стримеру. Создаётся через New,
// открывается Open и завершается Close; повторное использование не
// поддерживается.
type Subscription struct {
	cfg        Config
	log        *logger.Logger
	translator SymbolTranslator
	handlers   Handlers

	conn   *websocket.Conn
	sendMu sync.Mutex // gorilla: один писатель на соединение

	receiveLoop Looper

	keepaliveMu   sync.Mutex
	keepaliveLoop Looper
	keepaliveOnce sync.Once

	authorized atomic.Bool
	authOnce   sync.Once
	authCh     chan struct{}

	failOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
	err       error

	// startLooper подменяется в тестах; по умолчанию pkg/looper.
	startLooper func(interval time.Duration, fn func()) Looper
}

// New валидирует входные данные и готовит подписку. Соединение не
// устанавливается до Open.
func New(cfg Config, log *logger.Logger, translator SymbolTranslator, handlers Handlers) (*Subscription, error) {
	if handlers.empty() {
		return nil, ErrNoHandlers
	}
	if translator == nil {
		return nil, fmt.Errorf("dxlink: symbol translator is required")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Subscription{
		cfg:        cfg,
		log:        log.Named("dxlink"),
		translator: translator,
		handlers:   handlers,
		authCh:     make(chan struct{}),
		done:       make(chan struct{}),
		startLooper: func(interval time.Duration, fn func()) Looper {
			return looper.Start(interval, fn)
		},
	}, nil
}

// Open устанавливает соединение, проводит рукопожатие и подписывается
// на все пары (символ, вид события). Возвращается после подтверждения
// авторизации; приём продолжается в фоне до Close или фатальной ошибки.
func (s *Subscription) Open(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.DialTimeout}

	err := backoff.Execute(ctx, s.cfg.Backoff, s.log, func(ctx context.Context) error {
		conn, _, derr := dialer.DialContext(ctx, s.cfg.URL, nil)
		if derr != nil {
			return fmt.Errorf("dial %s: %w", s.cfg.URL, derr)
		}
		s.conn = conn
		return nil
	})
	if err != nil {
		return fmt.Errorf("dxlink: connect: %w", err)
	}

	// Первый вызов receive не должен обогнать присвоение receiveLoop.
	ready := make(chan struct{})
	s.receiveLoop = s.startLooper(0, func() {
		<-ready
		s.receive()
	})
	close(ready)

	if err := s.send(setupMessage{Type: msgTypeSetup, Channel: controlChannel, Version: s.cfg.Version}); err != nil {
		s.finish(err)
		return err
	}
	if err := s.send(authMessage{Type: msgTypeAuth, Channel: controlChannel, Token: s.cfg.Token}); err != nil {
		s.finish(err)
		return err
	}

	if err := s.waitAuthorized(ctx); err != nil {
		s.finish(err)
		return err
	}

	if err := s.send(channelRequestMessage{
		Type:       msgTypeChannelRequest,
		Channel:    feedChannel,
		Service:    feedService,
		Parameters: channelParameters{Contract: feedContractAuto},
	}); err != nil {
		s.finish(err)
		return err
	}

	entries := s.subscriptionEntries()
	if err := s.send(feedSubscriptionMessage{Type: msgTypeFeedSubscription, Channel: feedChannel, Add: entries}); err != nil {
		s.finish(err)
		return err
	}

	s.log.Info("subscription opened",
		zap.String("url", s.cfg.URL),
		zap.Int("entries", len(entries)))
	return nil
}

// waitAuthorized блокируется до AUTH_STATE=AUTHORIZED, фатальной ошибки
// приёма, отмены контекста или истечения AuthTimeout.
func (s *Subscription) waitAuthorized(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.AuthTimeout)
	defer timer.Stop()

	select {
	case <-s.authCh:
		return nil
	case <-s.done:
		if err := s.Err(); err != nil {
			return err
		}
		return fmt.Errorf("dxlink: connection closed before authorization")
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrAuthTimeout
	}
}

// subscriptionEntries строит декартово произведение символов фида и видов
// событий с зарегистрированными обработчиками.
func (s *Subscription) subscriptionEntries() []SubscriptionEntry {
	symbols := s.translator.StreamerSymbols()
	types := s.handlers.eventTypes()

	entries := make([]SubscriptionEntry, 0, len(symbols)*len(types))
	for _, sym := range symbols {
		for _, t := range types {
			entries = append(entries, SubscriptionEntry{Symbol: sym, Type: t})
		}
	}
	return entries
}

// send сериализует и пишет один фрейм под мьютексом записи.
func (s *Subscription) send(msg any) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// receive — одна итерация цикла приёма: читает фрейм и диспатчит его.
func (s *Subscription) receive() {
	var msg serverMessage
	if err := s.conn.ReadJSON(&msg); err != nil {
		if isOrderlyClose(err) {
			s.receiveLoop.Cancel()
			s.finish(nil)
			return
		}
		s.receiveLoop.Cancel()
		s.finish(&TransportError{Op: "read", Err: err})
		return
	}

	switch msg.Type {
	case msgTypeSetup:
		s.startKeepalive(msg.KeepaliveTimeout)

	case msgTypeAuthState:
		if msg.State == authStateAuthorized {
			s.authorized.Store(true)
			s.authOnce.Do(func() { close(s.authCh) })
		}

	case msgTypeFeedData:
		s.handleFeedData(msg.Data)

	case msgTypeError:
		metrics.ProtocolErrors.Inc()
		s.receiveLoop.Cancel()
		s.finish(&StreamerError{Code: msg.Error, Message: msg.Message})

	case msgTypeKeepalive:
		// сервер эхо-подтверждает keepalive; реагировать не нужно

	default:
		s.log.Debug("ignoring message", zap.String("type", msg.Type))
	}
}

// startKeepalive запускает цикл KEEPALIVE с периодом в половину
// серверного keepaliveTimeout. Повторные SETUP игнорируются.
func (s *Subscription) startKeepalive(timeoutSec float64) {
	s.keepaliveOnce.Do(func() {
		if timeoutSec <= 0 {
			timeoutSec = defaultKeepaliveTimeoutSec
		}
		interval := time.Duration(math.Floor(timeoutSec/2)) * time.Second

		loop := s.startLooper(interval, func() {
			if err := s.send(keepaliveMessage{Type: msgTypeKeepalive, Channel: controlChannel}); err != nil {
				s.log.Warn("keepalive failed", zap.Error(err))
				return
			}
			metrics.KeepalivesTotal.Inc()
		})

		s.keepaliveMu.Lock()
		s.keepaliveLoop = loop
		s.keepaliveMu.Unlock()

		s.log.Debug("keepalive started", zap.Duration("interval", interval))
	})
}

// handleFeedData декодирует батч [kind, flatArray] и вызывает обработчик.
func (s *Subscription) handleFeedData(raw []byte) {
	kind, values, err := parseFeedEvent(raw)
	if err != nil {
		s.receiveLoop.Cancel()
		s.finish(&TransportError{Op: "parse", Err: err})
		return
	}

	metrics.FeedEventsTotal.WithLabelValues(string(kind)).Inc()
	now := time.Now().UTC()

	switch kind {
	case EventTypeQuote:
		if s.handlers.OnQuote == nil {
			s.log.Debug("no handler for event kind", zap.String("kind", string(kind)))
			return
		}
		records, skipped := decodeQuotes(values, s.translator, now)
		s.noteSkips(kind, skipped)
		if len(records) > 0 {
			s.handlers.OnQuote(records)
		}

	case EventTypeCandle:
		if s.handlers.OnCandle == nil {
			s.log.Debug("no handler for event kind", zap.String("kind", string(kind)))
			return
		}
		records, skipped := decodeCandles(values, s.translator, now)
		s.noteSkips(kind, skipped)
		if len(records) > 0 {
			s.handlers.OnCandle(records)
		}

	case EventTypeGreeks:
		if s.handlers.OnGreeks == nil {
			s.log.Debug("no handler for event kind", zap.String("kind", string(kind)))
			return
		}
		records, skipped := decodeGreeks(values, s.translator, now)
		s.noteSkips(kind, skipped)
		if len(records) > 0 {
			s.handlers.OnGreeks(records)
		}

	default:
		s.log.Debug("unknown event kind", zap.String("kind", string(kind)))
	}
}

func (s *Subscription) noteSkips(kind EventType, skipped int) {
	if skipped == 0 {
		return
	}
	metrics.DecodeSkips.Add(float64(skipped))
	s.log.Warn("skipped undecodable records",
		zap.String("kind", string(kind)),
		zap.Int("count", skipped))
}

// finish фиксирует причину завершения и останавливает фоновые циклы.
// Первый вызов выигрывает; err == nil означает штатное закрытие.
func (s *Subscription) finish(err error) {
	s.failOnce.Do(func() {
		s.err = err

		s.keepaliveMu.Lock()
		if s.keepaliveLoop != nil {
			s.keepaliveLoop.Cancel()
		}
		s.keepaliveMu.Unlock()

		if s.receiveLoop != nil {
			s.receiveLoop.Cancel()
		}

		if err != nil {
			s.log.Error("subscription terminated", zap.Error(err))
		}
		close(s.done)
	})
}

// Authorized сообщает, подтвердил ли сервер авторизацию соединения.
func (s *Subscription) Authorized() bool { return s.authorized.Load() }

// Done закрывается при завершении подписки (Close или фатальная ошибка).
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err возвращает причину завершения; валиден после закрытия Done,
// nil — штатное закрытие.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close останавливает keepalive, закрывает соединение и дожидается
// выхода цикла приёма. Идемпотентен; безопасен до Open.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.keepaliveMu.Lock()
		if s.keepaliveLoop != nil {
			s.keepaliveLoop.Stop()
		}
		s.keepaliveMu.Unlock()

		if s.conn != nil {
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = s.conn.Close() // разблокирует читателя

			if s.receiveLoop != nil {
				s.receiveLoop.Stop()
			}
		}
		s.finish(nil)
	})
	return nil
}

// isOrderlyClose различает штатное закрытие соединения и сбой транспорта.
func isOrderlyClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return false
}
