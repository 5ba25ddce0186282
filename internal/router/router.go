// Package router delivers direct messages between registered clients.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Tyrowin/gorelay/internal/registry"
)

var (
	// ErrUnauthorized is returned when the sender credential is not registered.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRecipientNotFound is returned when no client has the recipient name.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrRecipientOffline is returned when the recipient has no live connection.
	ErrRecipientOffline = errors.New("recipient offline")
)

// Outcome labels, one per Route result.
const (
	OutcomeDelivered         = "delivered"
	OutcomeUnauthorized      = "unauthorized"
	OutcomeRecipientNotFound = "recipient_not_found"
	OutcomeRecipientOffline  = "recipient_offline"
	OutcomeError             = "error"
)

// Message is the frame pushed to a recipient's connection.
type Message struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// Directory resolves clients by credential and by name.
type Directory interface {
	FindByCredential(credential string) (registry.Client, error)
	FindByName(name string) (registry.Client, error)
}

// Router validates a sender and recipient and hands the message to the
// recipient's outbound.
type Router struct {
	dir Directory
	log *slog.Logger
}

// New creates a Router over dir.
func New(dir Directory, log *slog.Logger) *Router {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{dir: dir, log: log}
}

// Route sends body from the client holding senderCredential to the client
// named recipientName. A nil error means the message was handed to the
// recipient's outbound; it may still be dropped if that connection is closing
// or its buffer is full.
func (r *Router) Route(senderCredential, recipientName, body string) error {
	sender, err := r.dir.FindByCredential(senderCredential)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("resolve sender: %w", err)
	}

	recipient, err := r.dir.FindByName(recipientName)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return ErrRecipientNotFound
		}
		return fmt.Errorf("resolve recipient: %w", err)
	}

	switch recipient.State {
	case registry.StateConnected:
	case registry.StateRegistered, registry.StateGrace:
		return ErrRecipientOffline
	default:
		return fmt.Errorf("recipient %q in unexpected state %s", recipient.Name, recipient.State)
	}

	frame, err := json.Marshal(Message{From: sender.Name, Body: body})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	if !recipient.Outbound.Send(frame) {
		r.log.Debug("Dropped message for closing or saturated connection",
			"from", sender.Name, "to", recipient.Name)
	}
	return nil
}

// Outcome maps a Route error to its outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeDelivered
	case errors.Is(err, ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, ErrRecipientNotFound):
		return OutcomeRecipientNotFound
	case errors.Is(err, ErrRecipientOffline):
		return OutcomeRecipientOffline
	default:
		return OutcomeError
	}
}
