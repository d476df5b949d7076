package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"factorlab/internal/domain"
)

// FeedConfig configures the bar feed client.
type FeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultFeedConfig returns the default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// BarFeed streams end-of-day bars from a WebSocket endpoint. It reconnects
// with exponential backoff and resubscribes to the active symbol set, so a
// consumer sees one long-lived channel across connection drops.
type BarFeed struct {
	endpoint string
	config   FeedConfig
	log      zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// symbols is the active subscription set, replayed after reconnect.
	symbols   []string
	symbolsMu sync.RWMutex

	out chan SymbolBar

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewBarFeed connects to the endpoint and starts the read and ping loops.
func NewBarFeed(ctx context.Context, endpoint string, config *FeedConfig, log zerolog.Logger) (*BarFeed, error) {
	cfg := DefaultFeedConfig()
	if config != nil {
		cfg = *config
	}

	f := &BarFeed{
		endpoint: endpoint,
		config:   cfg,
		log:      log,
		// Blocking send ensures no bar loss; buffer absorbs bursts.
		out:  make(chan SymbolBar, 4096),
		done: make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// connect establishes the WebSocket connection.
func (f *BarFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

// Subscribe requests bars for the given symbols and returns the stream.
// The channel stays open across reconnects and closes only on Close.
func (f *BarFeed) Subscribe(symbols []string) (<-chan SymbolBar, error) {
	if f.closed.Load() {
		return nil, fmt.Errorf("feed closed")
	}

	f.symbolsMu.Lock()
	f.symbols = append(f.symbols[:0], symbols...)
	f.symbolsMu.Unlock()

	if err := f.sendSubscribe(symbols); err != nil {
		return nil, err
	}
	return f.out, nil
}

func (f *BarFeed) sendSubscribe(symbols []string) error {
	req := feedRequest{Op: "subscribe", Symbols: symbols}

	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("not connected")
	}

	f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	if err := f.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the connection and the bar channel.
func (f *BarFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	close(f.out)
	return nil
}

// readLoop reads messages and dispatches bars to the consumer channel.
func (f *BarFeed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read.
		reconnectDelay = f.config.ReconnectDelay

		f.handleMessage(message)
	}
}

// reconnect re-establishes the connection and replays the subscription.
func (f *BarFeed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		// Reconnect failed, the next read error retries.
		f.log.Warn().Err(err).Msg("bar feed reconnect failed")
		return
	}

	f.symbolsMu.RLock()
	symbols := append([]string(nil), f.symbols...)
	f.symbolsMu.RUnlock()

	if len(symbols) > 0 {
		if err := f.sendSubscribe(symbols); err != nil {
			f.log.Warn().Err(err).Msg("bar feed resubscribe failed")
			return
		}
	}

	f.log.Info().Str("endpoint", f.endpoint).Msg("bar feed reconnected")
}

// handleMessage parses one feed message and forwards bar events.
func (f *BarFeed) handleMessage(message []byte) {
	var msg feedMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		f.log.Warn().Err(err).Msg("bar feed: malformed message")
		return
	}

	switch msg.Type {
	case "bar":
		row, err := msg.toSymbolBar()
		if err != nil {
			f.log.Warn().Err(err).Str("symbol", msg.Symbol).Msg("bar feed: bad bar")
			return
		}
		// Block until the consumer drains - never drop bars.
		select {
		case f.out <- row:
		case <-f.done:
		}
	case "subscribed", "":
		// Acknowledgements carry no payload.
	case "error":
		f.log.Warn().Str("reason", msg.Reason).Msg("bar feed: server error")
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (f *BarFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, the reader handles reconnect.
					f.log.Debug().Err(err).Msg("bar feed ping failed")
				}
			}
			f.connMu.Unlock()
		}
	}
}

// Feed message types.

type feedRequest struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

type feedMessage struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Reason string  `json:"reason,omitempty"`
}

func (m *feedMessage) toSymbolBar() (SymbolBar, error) {
	if m.Symbol == "" {
		return SymbolBar{}, fmt.Errorf("missing symbol")
	}
	day, err := time.Parse("2006-01-02", m.Date)
	if err != nil {
		return SymbolBar{}, fmt.Errorf("parse date %q: %w", m.Date, err)
	}
	if m.Close <= 0 || m.Open <= 0 {
		return SymbolBar{}, fmt.Errorf("non-positive price")
	}
	return SymbolBar{
		Symbol: m.Symbol,
		Bar: domain.Bar{
			Date:   domain.DateOf(day),
			Open:   m.Open,
			High:   m.High,
			Low:    m.Low,
			Close:  m.Close,
			Volume: m.Volume,
		},
	}, nil
}
