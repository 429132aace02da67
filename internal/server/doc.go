// Package server implements the WebSocket media gateway that accepts
// telephony media streams and the HTTP API for monitoring and call
// history, as well as the Prometheus metrics endpoint.
package server
