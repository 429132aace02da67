package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/relay"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/telephony"
)

// handshakeTimeout bounds the wait for the provider's start event.
const handshakeTimeout = 10 * time.Second

// DialConversation opens a conversational session for a new call.
// Injectable so tests can supply a fake.
type DialConversation func(ctx context.Context) (relay.ConversationalEndpoint, error)

// Gateway accepts media-stream WebSocket connections and hands each call
// to the relay manager.
type Gateway struct {
	logger   *slog.Logger
	manager  *relay.Manager
	dial     DialConversation
	upgrader websocket.Upgrader
}

// NewGateway creates the media gateway.
func NewGateway(logger *slog.Logger, manager *relay.Manager, dial DialConversation) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		logger:  logger,
		manager: manager,
		dial:    dial,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Telephony providers connect server-to-server without an
			// Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleMedia serves one media-stream connection: it performs the
// provider handshake, dials the conversational API and runs the relay
// until the call ends.
func (g *Gateway) HandleMedia(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("Media upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	start, err := g.awaitStart(conn)
	if err != nil {
		g.logger.Warn("Media handshake failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		conn.Close()
		return
	}

	g.logger.Info("Call connected",
		slog.String("stream_sid", start.StreamSID),
		slog.String("call_sid", start.CallSID),
		slog.String("remote", r.RemoteAddr),
	)

	ctx, cancel := context.WithTimeout(r.Context(), handshakeTimeout)
	conv, err := g.dial(ctx)
	cancel()
	if err != nil {
		g.logger.Error("Failed to reach conversational API",
			slog.String("stream_sid", start.StreamSID),
			slog.String("error", err.Error()),
		)
		conn.Close()
		return
	}

	endpoint := telephony.NewEndpoint(conn, start.StreamSID)
	rel, err := g.manager.StartRelay(endpoint, conv, start.CallSID, start.StreamSID)
	if err != nil {
		g.logger.Error("Failed to start relay",
			slog.String("stream_sid", start.StreamSID),
			slog.String("error", err.Error()),
		)
		conv.Close()
		endpoint.Close()
		return
	}

	// The relay owns both connections now; block until the call ends so
	// the HTTP handler keeps the WebSocket alive.
	rel.Wait()
	g.manager.Remove(start.StreamSID)

	g.logger.Info("Call finished",
		slog.String("stream_sid", start.StreamSID),
		slog.String("call_sid", start.CallSID),
	)
}

// awaitStart reads handshake events until the start payload arrives.
func (g *Gateway) awaitStart(conn *websocket.Conn) (*telephony.StartPayload, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("handshake read failed: %w", err)
		}

		ev, err := telephony.ParseEvent(data)
		if err != nil {
			return nil, err
		}

		switch ev.Event {
		case telephony.EventConnected:
			continue
		case telephony.EventStart:
			if ev.Start == nil || ev.Start.StreamSID == "" {
				return nil, fmt.Errorf("start event missing stream SID")
			}
			return ev.Start, nil
		default:
			return nil, fmt.Errorf("unexpected handshake event %q", ev.Event)
		}
	}
}
