package store

import (
	"context"
	"time"
)

// CallRecord is the persisted summary of one relayed call.
type CallRecord struct {
	ID            string    `json:"id"`
	CallSID       string    `json:"call_sid"`
	StreamSID     string    `json:"stream_sid"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	Duration      float64   `json:"duration_seconds"`
	FramesIn      uint64    `json:"frames_in"`
	FramesOut     uint64    `json:"frames_out"`
	BytesIn       uint64    `json:"bytes_in"`
	BytesOut      uint64    `json:"bytes_out"`
	DecodeErrors  uint64    `json:"decode_errors"`
	Errors        uint64    `json:"errors"`
	FunctionCalls uint64    `json:"function_calls"`
	SpeechFrames  uint64    `json:"speech_frames"`
}

// CallStore persists and retrieves call records.
type CallStore interface {
	SaveCallRecord(ctx context.Context, rec *CallRecord) error
	ListRecentCalls(ctx context.Context, limit int) ([]*CallRecord, error)
	GetCallRecord(ctx context.Context, streamSID string) (*CallRecord, error)
	Close() error
}

// Noop discards every record. Used when call history is disabled.
type Noop struct{}

func (Noop) SaveCallRecord(context.Context, *CallRecord) error { return nil }

func (Noop) ListRecentCalls(context.Context, int) ([]*CallRecord, error) { return nil, nil }

func (Noop) GetCallRecord(context.Context, string) (*CallRecord, error) { return nil, ErrNotFound }

func (Noop) Close() error { return nil }
