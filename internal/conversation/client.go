package conversation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Config holds the parameters for a conversational session.
type Config struct {
	// URL is the WebSocket endpoint of the conversational API.
	URL string
	// APIKey authenticates the session. Sent as a bearer token.
	APIKey string
	// Model selects the speech-to-speech model.
	Model string
	// Voice selects the synthesized voice.
	Voice string
	// Instructions is the system prompt applied to the session.
	Instructions string
	// Tools are the functions the model may call during the conversation.
	Tools []ToolDefinition
}

// ToolDefinition describes one callable function exposed to the model.
type ToolDefinition struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// FunctionExecutor runs a tool call requested by the model and returns its
// result as a JSON string.
type FunctionExecutor interface {
	Execute(ctx context.Context, name, arguments string) (string, error)
}

// serverEvent is the inbound wire envelope. Only the fields needed to
// route and decode events are mapped.
type serverEvent struct {
	Type      string `json:"type"`
	Delta     string `json:"delta,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Error     *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client is a live session with the conversational API. Create one with
// Dial; consume Events until a KindClosed event arrives.
type Client struct {
	conn *websocket.Conn

	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the conversational API, configures the session for
// PCM16 audio with server-side turn detection, and starts the receive
// loop.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation URL: %w", err)
	}
	if cfg.Model != "" {
		q := u.Query()
		q.Set("model", cfg.Model)
		u.RawQuery = q.Encode()
	}

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("conversation dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("conversation dial failed: %w", err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}

	if err := c.sendSessionUpdate(cfg); err != nil {
		conn.Close()
		return nil, err
	}

	go c.receiveLoop()
	return c, nil
}

func (c *Client) sendSessionUpdate(cfg Config) error {
	session := map[string]interface{}{
		"modalities":          []string{"text", "audio"},
		"input_audio_format":  "pcm16",
		"output_audio_format": "pcm16",
		"turn_detection": map[string]interface{}{
			"type": "server_vad",
		},
	}
	if cfg.Voice != "" {
		session["voice"] = cfg.Voice
	}
	if cfg.Instructions != "" {
		session["instructions"] = cfg.Instructions
	}
	if len(cfg.Tools) > 0 {
		tools := make([]ToolDefinition, len(cfg.Tools))
		copy(tools, cfg.Tools)
		for i := range tools {
			if tools[i].Type == "" {
				tools[i].Type = "function"
			}
		}
		session["tools"] = tools
	}

	return c.send(map[string]interface{}{
		"type":    "session.update",
		"session": session,
	})
}

// Events returns the stream of session events. The channel is closed
// after a KindClosed event is delivered.
func (c *Client) Events() <-chan Event {
	return c.events
}

// SendAudio streams one chunk of PCM16 caller audio to the session.
func (c *Client) SendAudio(pcm []byte) error {
	return c.send(map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	})
}

// SendFunctionResult delivers a tool call result back to the model and
// asks it to continue the response.
func (c *Client) SendFunctionResult(callID, output string) error {
	err := c.send(map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	})
	if err != nil {
		return err
	}
	return c.send(map[string]interface{}{"type": "response.create"})
}

// Interrupt cancels the in-flight model response. Used when the caller
// starts speaking over the assistant.
func (c *Client) Interrupt() error {
	return c.send(map[string]interface{}{"type": "response.cancel"})
}

func (c *Client) send(msg interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("conversation write failed: %w", err)
	}
	return nil
}

func (c *Client) receiveLoop() {
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// Local close; report a clean shutdown.
				c.emit(Event{Kind: KindClosed})
			default:
				c.emit(Event{Kind: KindClosed, Err: fmt.Errorf("conversation read failed: %w", err)})
			}
			return
		}

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.emit(Event{Kind: KindError, Err: fmt.Errorf("failed to parse conversation event: %w", err)})
			continue
		}

		switch ev.Type {
		case "response.audio.delta":
			audio, err := base64.StdEncoding.DecodeString(ev.Delta)
			if err != nil {
				c.emit(Event{Kind: KindError, Err: fmt.Errorf("failed to decode audio delta: %w", err)})
				continue
			}
			c.emit(Event{Kind: KindAudioDelta, Audio: audio})

		case "input_audio_buffer.speech_started":
			c.emit(Event{Kind: KindSpeechStarted})

		case "input_audio_buffer.speech_stopped":
			c.emit(Event{Kind: KindSpeechStopped})

		case "response.function_call_arguments.done":
			c.emit(Event{
				Kind:      KindFunctionCall,
				CallID:    ev.CallID,
				Name:      ev.Name,
				Arguments: ev.Arguments,
			})

		case "error":
			msg := "unknown error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			c.emit(Event{Kind: KindError, Err: fmt.Errorf("conversation server error: %s", msg)})
		}
	}
}

// emit delivers an event unless the client is shutting down and the
// consumer has stopped draining.
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Close ends the session. Safe to call more than once; the receive loop
// drains out with a clean KindClosed event.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
