package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Tick is one trade print from the live feed.
type Tick struct {
	Symbol string
	Price  float64
	Size   float64
	At     time.Time
}

// StreamConfig configures tick stream behavior.
type StreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// TickStream consumes the provider's WebSocket trade feed. One channel per
// subscribed symbol; subscriptions survive reconnects.
type TickStream struct {
	endpoint string
	config   StreamConfig
	logger   zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// subs maps symbol to delivery channel; also the resubscribe set.
	subs   map[string]chan Tick
	subsMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewTickStream connects to the feed endpoint and starts the read and ping
// loops.
func NewTickStream(ctx context.Context, endpoint string, config *StreamConfig, logger zerolog.Logger) (*TickStream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &TickStream{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		subs:     make(map[string]chan Tick),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

func (s *TickStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// streamCommand is the subscribe/unsubscribe wire message.
type streamCommand struct {
	Action string `json:"action"`
	Symbol string `json:"symbol"`
}

// streamMessage is one inbound feed message.
type streamMessage struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
	TS     int64   `json:"ts"` // unix milliseconds
}

// Subscribe registers for symbol's trade ticks and returns the delivery
// channel. Subscribing the same symbol twice returns the existing channel.
func (s *TickStream) Subscribe(symbol string) (<-chan Tick, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("stream closed")
	}

	s.subsMu.Lock()
	if ch, ok := s.subs[symbol]; ok {
		s.subsMu.Unlock()
		return ch, nil
	}
	// Buffer absorbs bursts; delivery blocks rather than dropping ticks.
	ch := make(chan Tick, 1024)
	s.subs[symbol] = ch
	s.subsMu.Unlock()

	if err := s.writeCommand(streamCommand{Action: "subscribe", Symbol: symbol}); err != nil {
		s.subsMu.Lock()
		delete(s.subs, symbol)
		s.subsMu.Unlock()
		return nil, err
	}

	return ch, nil
}

func (s *TickStream) writeCommand(cmd streamCommand) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("write %s: %w", cmd.Action, err)
	}
	return nil
}

// Close closes the connection and all subscription channels.
func (s *TickStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.subsMu.Lock()
	for symbol, ch := range s.subs {
		close(ch)
		delete(s.subs, symbol)
	}
	s.subsMu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *TickStream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

func (s *TickStream) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("tick stream reconnect failed")
		return
	}

	s.resubscribeAll()
	s.logger.Info().Msg("tick stream reconnected")
}

func (s *TickStream) resubscribeAll() {
	s.subsMu.RLock()
	symbols := make([]string, 0, len(s.subs))
	for symbol := range s.subs {
		symbols = append(symbols, symbol)
	}
	s.subsMu.RUnlock()

	for _, symbol := range symbols {
		if err := s.writeCommand(streamCommand{Action: "subscribe", Symbol: symbol}); err != nil {
			s.logger.Warn().Str("symbol", symbol).Err(err).Msg("resubscribe failed")
		}
	}
}

func (s *TickStream) handleMessage(message []byte) {
	var msg streamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.logger.Debug().Err(err).Msg("unparseable stream message")
		return
	}
	if msg.Type != "tick" {
		return
	}

	tick := Tick{
		Symbol: msg.Symbol,
		Price:  msg.Price,
		Size:   msg.Size,
		At:     time.UnixMilli(msg.TS).UTC(),
	}

	s.subsMu.RLock()
	ch, ok := s.subs[msg.Symbol]
	s.subsMu.RUnlock()

	if ok {
		// Block until delivered; ticks are never dropped.
		select {
		case ch <- tick:
		case <-s.done:
		}
	}
}

func (s *TickStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Reader notices the dead connection and reconnects.
					s.logger.Debug().Err(err).Msg("ping write failed")
				}
			}
			s.connMu.Unlock()
		}
	}
}
