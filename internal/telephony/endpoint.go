package telephony

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Endpoint wraps an accepted media-stream WebSocket connection. Reads are
// single-consumer; writes are serialized internally so multiple goroutines
// may send concurrently.
type Endpoint struct {
	conn      *websocket.Conn
	streamSID string

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewEndpoint wraps an upgraded connection for the given stream.
func NewEndpoint(conn *websocket.Conn, streamSID string) *Endpoint {
	return &Endpoint{conn: conn, streamSID: streamSID}
}

// StreamSID returns the stream identifier this endpoint serves.
func (e *Endpoint) StreamSID() string {
	return e.streamSID
}

// Receive blocks until the next event arrives. It returns an error when
// the connection closes or the payload cannot be parsed.
func (e *Endpoint) Receive() (*Event, error) {
	_, data, err := e.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("media-stream read failed: %w", err)
	}
	return ParseEvent(data)
}

// SendMedia sends one chunk of μ-law audio to the caller.
func (e *Endpoint) SendMedia(mulaw []byte) error {
	return e.send(NewMediaEvent(e.streamSID, mulaw))
}

// SendMark sends a playback checkpoint label.
func (e *Endpoint) SendMark(name string) error {
	return e.send(NewMarkEvent(e.streamSID, name))
}

// SendClear tells the provider to drop buffered outbound audio.
func (e *Endpoint) SendClear() error {
	return e.send(NewClearEvent(e.streamSID))
}

func (e *Endpoint) send(ev *Event) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("media-stream write failed: %w", err)
	}
	return nil
}

// Close shuts down the underlying connection. Safe to call more than once.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.writeMu.Lock()
		e.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		e.writeMu.Unlock()
		e.closeErr = e.conn.Close()
	})
	return e.closeErr
}
