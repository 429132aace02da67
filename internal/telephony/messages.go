package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Media-stream event types. Connected, start, media and stop arrive from
// the provider; media, mark and clear are sent back to it.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
	EventClear     = "clear"
)

// Event is the JSON envelope exchanged on the media-stream WebSocket.
// Only the payload matching Event is populated.
type Event struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Mark      *MarkPayload  `json:"mark,omitempty"`
}

// StartPayload carries the stream metadata delivered with the start event.
type StartPayload struct {
	StreamSID   string      `json:"streamSid"`
	CallSID     string      `json:"callSid"`
	AccountSID  string      `json:"accountSid,omitempty"`
	Tracks      []string    `json:"tracks,omitempty"`
	MediaFormat MediaFormat `json:"mediaFormat"`
}

// MediaFormat describes the audio encoding on the media stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one chunk of base64 μ-law audio.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// MarkPayload labels a playback checkpoint the provider echoes back once
// the audio before it has been played.
type MarkPayload struct {
	Name string `json:"name"`
}

// ParseEvent decodes a raw WebSocket message into an Event.
func ParseEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse media-stream event: %w", err)
	}
	if ev.Event == "" {
		return nil, fmt.Errorf("media-stream event missing event type")
	}
	return &ev, nil
}

// DecodePayload returns the raw μ-law bytes of a media event.
func (e *Event) DecodePayload() ([]byte, error) {
	if e.Media == nil {
		return nil, fmt.Errorf("event %q has no media payload", e.Event)
	}
	audio, err := base64.StdEncoding.DecodeString(e.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode media payload: %w", err)
	}
	return audio, nil
}

// NewMediaEvent builds an outbound media event for the given stream,
// base64-encoding the μ-law audio.
func NewMediaEvent(streamSID string, mulaw []byte) *Event {
	return &Event{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media: &MediaPayload{
			Payload: base64.StdEncoding.EncodeToString(mulaw),
		},
	}
}

// NewMarkEvent builds an outbound mark event with the given label.
func NewMarkEvent(streamSID, name string) *Event {
	return &Event{
		Event:     EventMark,
		StreamSID: streamSID,
		Mark:      &MarkPayload{Name: name},
	}
}

// NewClearEvent builds the event that tells the provider to drop any
// buffered outbound audio.
func NewClearEvent(streamSID string) *Event {
	return &Event{
		Event:     EventClear,
		StreamSID: streamSID,
	}
}
