package telephony

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestParseStartEvent(t *testing.T) {
	raw := []byte(`{
		"event": "start",
		"streamSid": "MZ1234",
		"start": {
			"streamSid": "MZ1234",
			"callSid": "CA5678",
			"tracks": ["inbound"],
			"mediaFormat": {"encoding": "audio/x-mulaw", "sampleRate": 8000, "channels": 1}
		}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	if ev.Event != EventStart {
		t.Errorf("expected start event, got %q", ev.Event)
	}
	if ev.Start == nil {
		t.Fatal("start payload missing")
	}
	if ev.Start.CallSID != "CA5678" {
		t.Errorf("expected call SID CA5678, got %q", ev.Start.CallSID)
	}
	if ev.Start.MediaFormat.SampleRate != 8000 {
		t.Errorf("expected 8000 Hz, got %d", ev.Start.MediaFormat.SampleRate)
	}
}

func TestParseMediaEventAndDecode(t *testing.T) {
	audio := []byte{0x7F, 0xFF, 0x00, 0x80}
	raw := []byte(`{
		"event": "media",
		"streamSid": "MZ1234",
		"media": {"track": "inbound", "payload": "` +
		base64.StdEncoding.EncodeToString(audio) + `"}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}

	got, err := ev.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("payload mismatch: got %x, want %x", got, audio)
	}
}

func TestParseEventErrors(t *testing.T) {
	if _, err := ParseEvent([]byte("not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := ParseEvent([]byte(`{"streamSid": "MZ1"}`)); err == nil {
		t.Error("expected error for missing event type")
	}
}

func TestDecodePayloadErrors(t *testing.T) {
	ev := &Event{Event: EventStop, StreamSID: "MZ1"}
	if _, err := ev.DecodePayload(); err == nil {
		t.Error("expected error for event without media payload")
	}

	ev = &Event{Event: EventMedia, Media: &MediaPayload{Payload: "!!not-base64!!"}}
	if _, err := ev.DecodePayload(); err == nil {
		t.Error("expected error for invalid base64 payload")
	}
}

func TestNewMediaEventRoundTrip(t *testing.T) {
	audio := bytes.Repeat([]byte{0x55}, 160)

	ev := NewMediaEvent("MZ1234", audio)
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	parsed, err := ParseEvent(data)
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	if parsed.Event != EventMedia || parsed.StreamSID != "MZ1234" {
		t.Errorf("unexpected envelope: %+v", parsed)
	}
	got, err := parsed.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Error("audio did not survive the round trip")
	}
}

func TestNewMarkAndClearEvents(t *testing.T) {
	mark := NewMarkEvent("MZ1", "frame-7")
	if mark.Event != EventMark || mark.Mark == nil || mark.Mark.Name != "frame-7" {
		t.Errorf("unexpected mark event: %+v", mark)
	}

	clear := NewClearEvent("MZ1")
	if clear.Event != EventClear || clear.StreamSID != "MZ1" {
		t.Errorf("unexpected clear event: %+v", clear)
	}

	data, err := json.Marshal(clear)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if bytes.Contains(data, []byte(`"media"`)) || bytes.Contains(data, []byte(`"mark"`)) {
		t.Errorf("clear event carries unexpected payloads: %s", data)
	}
}
