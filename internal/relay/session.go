package relay

import (
	"sync/atomic"
	"time"
)

// State is the lifecycle phase of a relay.
type State int32

const (
	StateCreated State = iota
	StateActive
	StateStopping
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session carries the identity and live counters of one relayed call.
// All counters are updated atomically so both pumps can write without
// coordination.
type Session struct {
	CallSID   string
	StreamSID string
	StartTime time.Time

	state atomic.Int32

	framesIn      atomic.Uint64
	framesOut     atomic.Uint64
	bytesIn       atomic.Uint64
	bytesOut      atomic.Uint64
	decodeErrors  atomic.Uint64
	errors        atomic.Uint64
	functionCalls atomic.Uint64
	speechFrames  atomic.Uint64

	lastActivity atomic.Int64 // unix nanoseconds
}

// NewSession creates a session in StateCreated.
func NewSession(callSID, streamSID string) *Session {
	s := &Session{
		CallSID:   callSID,
		StreamSID: streamSID,
		StartTime: time.Now(),
	}
	s.lastActivity.Store(s.StartTime.UnixNano())
	return s
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// transition atomically moves the session from one state to another.
// Returns false if the session was not in the expected state.
func (s *Session) transition(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

func (s *Session) setState(to State) {
	s.state.Store(int32(to))
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the most recent media or event.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) recordFrameIn(n int) {
	s.framesIn.Add(1)
	s.bytesIn.Add(uint64(n))
	s.Touch()
}

func (s *Session) recordFrameOut(n int) {
	s.framesOut.Add(1)
	s.bytesOut.Add(uint64(n))
	s.Touch()
}

func (s *Session) recordDecodeError() {
	s.decodeErrors.Add(1)
}

func (s *Session) recordError() {
	s.errors.Add(1)
}

func (s *Session) recordFunctionCall() {
	s.functionCalls.Add(1)
	s.Touch()
}

func (s *Session) recordSpeechFrame() {
	s.speechFrames.Add(1)
}

// Stats is a point-in-time snapshot of a session.
type Stats struct {
	CallSID       string    `json:"call_sid"`
	StreamSID     string    `json:"stream_sid"`
	State         string    `json:"state"`
	StartTime     time.Time `json:"start_time"`
	LastActivity  time.Time `json:"last_activity"`
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

// Stats returns a consistent snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		CallSID:       s.CallSID,
		StreamSID:     s.StreamSID,
		State:         s.State().String(),
		StartTime:     s.StartTime,
		LastActivity:  s.LastActivity(),
		Duration:      time.Since(s.StartTime).Seconds(),
		FramesIn:      s.framesIn.Load(),
		FramesOut:     s.framesOut.Load(),
		BytesIn:       s.bytesIn.Load(),
		BytesOut:      s.bytesOut.Load(),
		DecodeErrors:  s.decodeErrors.Load(),
		Errors:        s.errors.Load(),
		FunctionCalls: s.functionCalls.Load(),
		SpeechFrames:  s.speechFrames.Load(),
	}
}
