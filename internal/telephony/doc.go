// Package telephony implements the media-stream side of the relay: the
// JSON event envelopes carried over the telephony provider's WebSocket and
// a thin endpoint wrapper for reading and writing them.
package telephony
