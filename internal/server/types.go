// Package server defines the request/response payloads of the HTTP API and
// utility helpers shared by handlers and sessions.
package server

import (
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/Tyrowin/gorelay/internal/registry"
)

// ErrUpgradeRejected is returned when a push connection is requested with an
// unknown credential.
var ErrUpgradeRejected = errors.New("upgrade rejected")

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

// RegisterResponse carries the issued credential.
type RegisterResponse struct {
	Token string `json:"token"`
}

// SendMessageRequest is the body of POST /send_message.
type SendMessageRequest struct {
	Token string `json:"token" validate:"required"`
	To    string `json:"to" validate:"required,max=64"`
	Body  string `json:"body"`
}

// ErrorResponse is written for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ClientView is the only externally visible projection of a client.
type ClientView struct {
	Name string `json:"name"`
}

func newClientView(c registry.Client) ClientView {
	return ClientView{Name: c.Name}
}

func newClientViews(clients []registry.Client) []ClientView {
	return lo.Map(clients, func(c registry.Client, _ int) ClientView {
		return newClientView(c)
	})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
