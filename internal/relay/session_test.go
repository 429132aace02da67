package relay

import (
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSession("CA1", "MZ1")
	if s.State() != StateCreated {
		t.Fatalf("new session should be created, got %s", s.State())
	}

	if !s.transition(StateCreated, StateActive) {
		t.Fatal("created -> active transition refused")
	}
	if s.transition(StateCreated, StateActive) {
		t.Error("transition from a stale state should fail")
	}
	if !s.transition(StateActive, StateStopping) {
		t.Fatal("active -> stopping transition refused")
	}
	s.setState(StateStopped)
	if s.State() != StateStopped {
		t.Errorf("expected stopped, got %s", s.State())
	}
}

func TestSessionStatsSnapshot(t *testing.T) {
	s := NewSession("CA1", "MZ1")
	s.recordFrameIn(160)
	s.recordFrameIn(160)
	s.recordFrameOut(160)
	s.recordDecodeError()
	s.recordFunctionCall()
	s.recordSpeechFrame()

	stats := s.Stats()
	if stats.CallSID != "CA1" || stats.StreamSID != "MZ1" {
		t.Errorf("identity missing from stats: %+v", stats)
	}
	if stats.FramesIn != 2 || stats.BytesIn != 320 {
		t.Errorf("inbound counters wrong: %+v", stats)
	}
	if stats.FramesOut != 1 || stats.BytesOut != 160 {
		t.Errorf("outbound counters wrong: %+v", stats)
	}
	if stats.DecodeErrors != 1 || stats.FunctionCalls != 1 || stats.SpeechFrames != 1 {
		t.Errorf("event counters wrong: %+v", stats)
	}
	if stats.State != "created" {
		t.Errorf("expected created, got %s", stats.State)
	}
}

func TestSessionTouchAdvancesActivity(t *testing.T) {
	s := NewSession("CA1", "MZ1")
	before := s.LastActivity()

	time.Sleep(2 * time.Millisecond)
	s.Touch()

	if !s.LastActivity().After(before) {
		t.Error("Touch did not advance last activity")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateCreated:  "created",
		StateActive:   "active",
		StateStopping: "stopping",
		StateStopped:  "stopped",
		State(99):     "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
