// Package server implements the HTTP and WebSocket transport of the relay.
//
// The implementation is organized into specialized files for configuration,
// origin policy, sessions, routing, metrics, and HTTP handlers. The registry
// and router packages hold the relay state and delivery rules; this package
// only translates between them and the wire.
package server
