// Package relay exposes an MT5 trading backend over the WebSocket protocol
// spoken by ATAS-side clients: JSON request envelopes answered by status
// responses, with symbol mapping applied on the way through.
package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	atasmt5 "github.com/WolfMoss/atas-mt5"
	"github.com/WolfMoss/atas-mt5/symbolmap"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 10 * 1024 * 1024

	// monitorPeriod is how often the relay checks the trading backend and
	// reconnects it after an outage.
	monitorPeriod    = 30 * time.Second
	reconnectTimeout = 60 * time.Second
)

// Server accepts WebSocket clients and routes their requests to a Trader.
type Server struct {
	logger   *zap.Logger
	trader   Trader
	mapper   *symbolmap.Mapper
	upgrader websocket.Upgrader

	httpServer *http.Server

	mu       sync.Mutex
	sessions map[*session]struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a relay server that will listen on addr. The mapper translates
// platform symbols before orders reach the trader.
func New(addr string, trader Trader, mapper *symbolmap.Mapper, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger: logger,
		trader: trader,
		mapper: mapper,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: make(map[*session]struct{}),
		stop:     make(chan struct{}),
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s}

	return s
}

// ListenAndServe serves WebSocket clients until Shutdown is called. It also
// starts the backend health monitor.
func (s *Server) ListenAndServe() error {
	go s.monitor()

	s.logger.Info("websocket server listening", zap.String("addr", s.httpServer.Addr))

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting clients and closes every open connection. Safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	err := s.httpServer.Shutdown(ctx)

	// Upgraded connections are hijacked from the http server, so they have
	// to be closed by hand; this unblocks the per-connection read loops.
	s.mu.Lock()
	for sess := range s.sessions {
		sess.conn.Close()
	}
	s.mu.Unlock()

	return err
}

// ServeHTTP upgrades any incoming request to a WebSocket session. The relay
// answers on every path, so it can be mounted directly or behind a mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	s.handleConn(r.Context(), conn)
}

func (s *Server) handleConn(ctx context.Context, conn *websocket.Conn) {
	sess := &session{conn: conn}

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()

		if err := conn.Close(); err != nil {
			s.logger.Warn("failed to close websocket connection", zap.Error(err))
		}
	}()

	s.logger.Info("client connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	welcome := atasmt5.Welcome{
		Status:       atasmt5.StatusSuccess,
		Message:      "connected to MT5 websocket service",
		MT5Connected: s.trader.Connected(),
	}
	if err := sess.writeJSON(welcome); err != nil {
		s.logger.Error("failed to send welcome message", zap.Error(err))
		return
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket connection closed unexpectedly", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		s.handleMessage(ctx, sess, message)
	}

	s.logger.Info("client disconnected", zap.String("remote_addr", conn.RemoteAddr().String()))
}

// Broadcast sends a message to every connected client. Write failures are
// logged and do not interrupt delivery to the remaining clients.
func (s *Server) Broadcast(message any) {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		if err := sess.writeJSON(message); err != nil {
			s.logger.Warn("broadcast write failed",
				zap.String("remote_addr", sess.conn.RemoteAddr().String()),
				zap.Error(err),
			)
		}
	}
}

// monitor reconnects the trading backend whenever it drops.
func (s *Server) monitor() {
	ticker := time.NewTicker(monitorPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.trader.Connected() {
				continue
			}

			s.logger.Warn("MT5 connection lost, reconnecting")

			ctx, cancel := context.WithTimeout(context.Background(), reconnectTimeout)
			if err := s.trader.Reconnect(ctx); err != nil {
				s.logger.Error("MT5 reconnect failed", zap.Error(err))
			} else {
				s.logger.Info("MT5 reconnected")
			}
			cancel()
		}
	}
}

// session is one client connection. Writes go through a mutex because both
// the read loop and Broadcast produce frames for the same connection.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (sess *session) writeJSON(v any) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return sess.conn.WriteJSON(v)
}
