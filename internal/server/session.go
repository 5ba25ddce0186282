// Package server manages individual push connections, running the read and
// write pumps that tie a WebSocket to a client's outbound.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gorelay/internal/registry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// session is one live push connection of a registered client.
type session struct {
	conn       *websocket.Conn
	out        *registry.Outbound
	credential string
	addr       string
	log        *slog.Logger
	server     *Server
}

// start launches both pumps. Whichever pump stops first cancels the shared
// context and closes the socket, which stops the other.
func (sess *session) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)

	sess.server.wg.Add(2)
	go func() {
		defer sess.server.wg.Done()
		sess.writePump(ctx, cancel)
	}()
	go func() {
		defer sess.server.wg.Done()
		sess.readPump(cancel)
	}()
}

// setupReadConnection configures the read deadline and pong handler.
func (sess *session) setupReadConnection() {
	if err := sess.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		sess.log.Warn("Error setting initial read deadline", "error", err)
	}
	sess.conn.SetPongHandler(func(string) error {
		if err := sess.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			sess.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the reason the read loop ended.
func (sess *session) handleReadError(err error) {
	switch {
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		sess.log.Info("Client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		sess.log.Info("Client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		sess.log.Warn("Unexpected WebSocket error", "error", err)
	default:
		sess.log.Warn("WebSocket read error", "error", err)
	}
}

// readPump drains and discards client frames of any size. It owns the
// session lifetime: when the peer goes away it detaches the client from the
// registry.
func (sess *session) readPump(cancel context.CancelFunc) {
	defer func() {
		cancel()
		sess.server.registry.Detach(sess.credential, sess.out)
		sess.closeConnection()
	}()

	sess.setupReadConnection()

	for {
		_, r, err := sess.conn.NextReader()
		if err == nil {
			_, err = io.Copy(io.Discard, r)
		}
		if err != nil {
			sess.handleReadError(err)
			return
		}
	}
}

// writePump forwards frames from the outbound to the socket and keeps the
// connection alive with pings.
func (sess *session) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		sess.closeConnection()
	}()

	for sess.processWriteEvent(ctx, ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (sess *session) processWriteEvent(ctx context.Context, ticker *time.Ticker) bool {
	select {
	case <-ctx.Done():
		return sess.writeCloseMessage()
	case frame, ok := <-sess.out.C():
		if !ok {
			return sess.writeCloseMessage()
		}
		return sess.writeFrame(frame)
	case <-ticker.C:
		return sess.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (sess *session) closeConnection() {
	if err := sess.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			sess.log.Warn("Error closing connection", "error", err)
		}
	}
}

// writeCloseMessage sends a close frame to the client and stops the pump.
func (sess *session) writeCloseMessage() bool {
	if err := sess.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := sess.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		if !isExpectedCloseError(err) {
			sess.log.Warn("Error writing close message", "error", err)
		}
	}
	return false
}

// writeFrame writes one message frame.
func (sess *session) writeFrame(frame []byte) bool {
	if err := sess.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		sess.log.Warn("Error setting write deadline", "error", err)
		return false
	}
	if err := sess.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !isExpectedCloseError(err) {
			sess.log.Warn("Error writing message", "error", err)
		}
		return false
	}
	sess.server.metrics.FramesWritten.Inc()
	return true
}

// handlePing sends a ping message to keep the connection alive
func (sess *session) handlePing() bool {
	if err := sess.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		sess.log.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		sess.log.Warn("Error writing ping message", "error", err)
		return false
	}
	return true
}
