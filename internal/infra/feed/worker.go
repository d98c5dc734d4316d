// Package feed ingests venue ticker streams over WebSocket and publishes
// QUOTE_UPDATED events into the bus. The core never talks to a feed
// directly; it only sees quotes on the bus.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"arb_go/internal/domain"
	"arb_go/internal/event"
	"arb_go/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	maxRetries       = 10
	handshakeTimeout = 10 * time.Second
	pingInterval     = 30 * time.Second
	readTimeout      = 60 * time.Second
)

var errNotConnected = errors.New("not connected")

// tickerMessage is the normalized wire format the worker consumes.
type tickerMessage struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	BidSize   float64 `json:"bid_size"`
	AskSize   float64 `json:"ask_size"`
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
}

// Worker maintains one venue's ticker stream.
type Worker struct {
	venue   string
	wsURL   string
	symbols []string
	bus     *event.Bus
	metrics *infra.Metrics

	mu        sync.RWMutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a feed worker for one venue.
func NewWorker(venue, wsURL string, symbols []string, bus *event.Bus, metrics *infra.Metrics) *Worker {
	return &Worker{
		venue:   venue,
		wsURL:   wsURL,
		symbols: symbols,
		bus:     bus,
		metrics: metrics,
	}
}

// Connect starts the connection loop in the background.
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("feed connection failed",
				slog.String("venue", w.venue),
				slog.Any("error", err),
				slog.Int("retry", retryCount))
			if w.metrics != nil {
				w.metrics.RecordError()
			}
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, http.Header{})
	if err != nil {
		return domain.NewVenueError(w.venue, "dial", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	if w.metrics != nil {
		w.metrics.IncrementConnections()
	}
	slog.Info("feed connected",
		slog.String("venue", w.venue),
		slog.Int("subs", len(w.symbols)))
	return nil
}

func (w *Worker) subscribe() error {
	sub, err := json.Marshal(map[string]any{
		"op":      "subscribe",
		"channel": "ticker",
		"symbols": w.symbols,
	})
	if err != nil {
		return err
	}
	if err := w.threadSafeWrite(websocket.TextMessage, sub); err != nil {
		return domain.NewVenueError(w.venue, "subscribe", err)
	}
	return nil
}

// threadSafeWrite serializes writes and guards against a connection torn
// down by a concurrent close. Writing on a closed connection is a fatal
// error for the caller, not a panic.
func (w *Worker) threadSafeWrite(messageType int, data []byte) error {
	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return domain.NewFatalVenueError(w.venue, "write", errNotConnected)
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return conn.WriteMessage(messageType, data)
}

func (w *Worker) readLoop(ctx context.Context) {
	defer w.closeConnection()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return
	}

	// The ping loop lives exactly as long as this read loop.
	done := make(chan struct{})
	defer close(done)
	go w.pingLoop(ctx, done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("feed read failed",
				slog.String("venue", w.venue),
				slog.Any("error", err))
			if w.metrics != nil {
				w.metrics.RecordError()
			}
			return
		}

		w.handleMessage(message)
	}
}

func (w *Worker) pingLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := w.threadSafeWrite(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (w *Worker) handleMessage(message []byte) {
	var tick tickerMessage
	if err := json.Unmarshal(message, &tick); err != nil {
		slog.Debug("unparseable feed message", slog.String("venue", w.venue))
		return
	}
	if tick.Symbol == "" || tick.Bid <= 0 || tick.Ask <= 0 {
		return
	}

	quote := domain.Quote{
		Venue:     w.venue,
		Symbol:    tick.Symbol,
		Bid:       decimal.NewFromFloat(tick.Bid),
		Ask:       decimal.NewFromFloat(tick.Ask),
		BidSize:   decimal.NewFromFloat(tick.BidSize),
		AskSize:   decimal.NewFromFloat(tick.AskSize),
		Timestamp: time.UnixMilli(tick.Timestamp),
	}

	w.bus.Publish(event.New(event.KindQuoteUpdated, event.QuotePayload{Quote: quote}))
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	if w.connected {
		w.connected = false
		if w.metrics != nil {
			w.metrics.DecrementConnections()
		}
	}
}

// IsConnected reports connection state.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Disconnect stops the worker and waits for the loop to exit.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}

// String identifies the worker in logs.
func (w *Worker) String() string {
	return fmt.Sprintf("feed[%s]", w.venue)
}
