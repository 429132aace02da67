package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/conversation"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/relay"
)

// fakeConversation is a minimal conversational endpoint for gateway tests.
type fakeConversation struct {
	events chan conversation.Event

	mu    sync.Mutex
	audio [][]byte

	closeOnce sync.Once
}

func newFakeConversation() *fakeConversation {
	return &fakeConversation{events: make(chan conversation.Event, 64)}
}

func (f *fakeConversation) SendAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	f.audio = append(f.audio, buf)
	return nil
}

func (f *fakeConversation) SendFunctionResult(string, string) error { return nil }
func (f *fakeConversation) Interrupt() error                        { return nil }
func (f *fakeConversation) Events() <-chan conversation.Event       { return f.events }

func (f *fakeConversation) Close() error {
	f.closeOnce.Do(func() {})
	return nil
}

func (f *fakeConversation) audioCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.audio)
}

func testManager(t *testing.T) *relay.Manager {
	t.Helper()
	cfg := relay.DefaultConfig()
	cfg.FlushInterval = 10 * time.Millisecond
	mgr, err := relay.NewManager(nil, nil, nil, nil, relay.ManagerConfig{
		Relay:          cfg,
		SessionTimeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

func dialGateway(t *testing.T, gw *Gateway) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleMedia))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendHandshake(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	msgs := []string{
		`{"event": "connected"}`,
		`{"event": "start", "streamSid": "MZgw1", "start": {
			"streamSid": "MZgw1", "callSid": "CAgw1",
			"mediaFormat": {"encoding": "audio/x-mulaw", "sampleRate": 8000, "channels": 1}
		}}`,
	}
	for _, msg := range msgs {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("handshake write failed: %v", err)
		}
	}
}

func TestGatewayRelaysCall(t *testing.T) {
	mgr := testManager(t)
	conv := newFakeConversation()
	gw := NewGateway(nil, mgr, func(context.Context) (relay.ConversationalEndpoint, error) {
		return conv, nil
	})

	conn := dialGateway(t, gw)
	sendHandshake(t, conn)

	// Wait for the relay to come up, then stream caller audio.
	deadline := time.Now().Add(2 * time.Second)
	for mgr.ActiveCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mgr.ActiveCount() != 1 {
		t.Fatal("relay did not start after handshake")
	}

	payload := base64.StdEncoding.EncodeToString(make([]byte, 160))
	media := `{"event": "media", "streamSid": "MZgw1", "media": {"payload": "` + payload + `"}}`
	for i := 0; i < 5; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(media)); err != nil {
			t.Fatalf("media write failed: %v", err)
		}
	}

	deadline = time.Now().Add(2 * time.Second)
	for conv.audioCount() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := conv.audioCount(); got != 5 {
		t.Fatalf("expected 5 audio chunks at the model, got %d", got)
	}

	// Caller hangs up; the relay must unwind and deregister.
	conn.WriteMessage(websocket.TextMessage, []byte(`{"event": "stop", "streamSid": "MZgw1"}`))

	deadline = time.Now().Add(2 * time.Second)
	for mgr.ActiveCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mgr.ActiveCount() != 0 {
		t.Error("relay still registered after the call ended")
	}
}

func TestGatewayRejectsBadHandshake(t *testing.T) {
	mgr := testManager(t)
	gw := NewGateway(nil, mgr, func(context.Context) (relay.ConversationalEndpoint, error) {
		t.Error("dial must not be called before a valid handshake")
		return nil, nil
	})

	conn := dialGateway(t, gw)

	// Media before start is a protocol violation.
	conn.WriteMessage(websocket.TextMessage, []byte(`{"event": "media", "streamSid": "MZx"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the gateway to close the connection")
	}
	if mgr.ActiveCount() != 0 {
		t.Error("no relay should have started")
	}
}

func TestGatewayClosesOnDialFailure(t *testing.T) {
	mgr := testManager(t)
	gw := NewGateway(nil, mgr, func(context.Context) (relay.ConversationalEndpoint, error) {
		return nil, context.DeadlineExceeded
	})

	conn := dialGateway(t, gw)
	sendHandshake(t, conn)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the gateway to close the connection")
	}
	if mgr.ActiveCount() != 0 {
		t.Error("no relay should have started")
	}
}
