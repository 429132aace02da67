// Package conversation implements the client side of the speech-to-speech
// conversational API: a WebSocket session that streams caller audio up,
// and surfaces model audio, speech boundaries and tool calls as a typed
// event stream.
package conversation
