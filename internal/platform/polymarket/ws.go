package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

const (
	// DefaultMarketURL is the CLOB market channel endpoint.
	DefaultMarketURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

	// DefaultPingInterval is how often the text keepalive is sent.
	DefaultPingInterval = 10 * time.Second

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	defaultHandshakeTimeout = 15 * time.Second

	frameBuffer = 256

	pingFrame = "PING"
	pongFrame = "PONG"
)

// SessionConfig configures a market channel session.
type SessionConfig struct {
	URL              string
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.URL == "" {
		c.URL = DefaultMarketURL
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	return c
}

// Session owns one market channel connection for a fixed set of assets. It
// never reconnects; once Frames is closed the session is over and Err tells
// why.
type Session struct {
	id     string
	url    string
	conn   *websocket.Conn
	logger *slog.Logger

	frames chan []byte

	// gorilla allows one concurrent writer.
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// Dial connects, subscribes to assetIDs and starts the read and keepalive
// loops. ctx bounds the handshake and the lifetime of the session:
// cancelling it closes the connection.
func Dial(ctx context.Context, cfg SessionConfig, assetIDs []string, logger *slog.Logger) (*Session, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, &domain.ConnectionError{Op: "dial", URL: cfg.URL, Err: err}
	}

	s := &Session{
		id:     uuid.NewString(),
		url:    cfg.URL,
		conn:   conn,
		frames: make(chan []byte, frameBuffer),
		done:   make(chan struct{}),
	}
	s.logger = logger.With(slog.String("component", "polymarket_ws"), slog.String("session", s.id))

	req, err := json.Marshal(subscribeRequest{AssetsIDs: assetIDs, Type: "MARKET"})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("polymarket/ws: marshal subscription: %w", err)
	}
	if err := s.write(websocket.TextMessage, req); err != nil {
		conn.Close()
		return nil, &domain.ConnectionError{Op: "subscribe", URL: cfg.URL, Err: err}
	}
	s.logger.Info("subscribed", slog.Int("assets", len(assetIDs)))

	s.wg.Add(2)
	go s.readLoop()
	go s.keepalive(cfg.PingInterval)
	go func() {
		select {
		case <-ctx.Done():
			s.shutdown()
		case <-s.done:
		}
	}()
	return s, nil
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Frames yields raw frames in arrival order. PONG replies are filtered out.
// The channel is closed when the session ends.
func (s *Session) Frames() <-chan []byte { return s.frames }

// Done is closed once the session starts shutting down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the *domain.ConnectionError that ended the session, or nil if
// it was closed by the caller or its context.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close releases the connection and waits for the background loops to exit.
// It is safe to call more than once.
func (s *Session) Close() error {
	err := s.shutdown()
	s.wg.Wait()
	return err
}

// shutdown closes the connection exactly once. It does not wait, so the read
// loop may call it.
func (s *Session) shutdown() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.closeErr = s.conn.Close()
		s.logger.Info("session closed")
	})
	return s.closeErr
}

func (s *Session) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

// readLoop has no read deadline: a stalled feed is only noticed through a
// transport error or close.
func (s *Session) readLoop() {
	defer s.wg.Done()
	defer close(s.frames)

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.setErr(&domain.ConnectionError{Op: "read", URL: s.url, Err: err})
				s.logger.Warn("connection lost", slog.String("error", err.Error()))
			}
			s.shutdown()
			return
		}
		if bytes.Equal(bytes.TrimSpace(msg), []byte(pongFrame)) {
			continue
		}
		select {
		case s.frames <- msg:
		case <-s.done:
			return
		}
	}
}

// keepalive sends a text PING every interval. A failed send ends the loop
// but leaves the session open.
func (s *Session) keepalive(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.write(websocket.TextMessage, []byte(pingFrame)); err != nil {
				s.logger.Debug("keepalive stopped", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
