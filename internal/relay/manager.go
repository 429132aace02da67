package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/conversation"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/metrics"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/store"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/vad"
)

// cleanupInterval is how often the manager scans for idle relays.
const cleanupInterval = 30 * time.Second

// ManagerConfig contains configuration for the relay manager.
type ManagerConfig struct {
	// Relay holds the media parameters applied to every call.
	Relay Config
	// SessionTimeout reaps relays with no activity for this long.
	SessionTimeout time.Duration
	// EnableVAD attaches a local energy classifier to inbound audio.
	EnableVAD bool
	// VADThreshold is the RMS threshold when EnableVAD is set.
	VADThreshold float64
}

// Manager owns all live relays, reaps idle ones and persists final call
// stats.
type Manager struct {
	relays map[string]*StreamRelay
	mu     sync.RWMutex

	logger   *slog.Logger
	metrics  *metrics.Metrics
	calls    store.CallStore
	executor conversation.FunctionExecutor
	cfg      ManagerConfig

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a relay manager. The store and executor may be nil
// when call history or tool calls are disabled.
func NewManager(logger *slog.Logger, m *metrics.Metrics, calls store.CallStore, executor conversation.FunctionExecutor, cfg ManagerConfig) (*Manager, error) {
	if err := cfg.Relay.validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}
	if cfg.SessionTimeout <= 0 {
		return nil, fmt.Errorf("invalid session timeout: %v", cfg.SessionTimeout)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		relays:   make(map[string]*StreamRelay),
		logger:   logger,
		metrics:  m,
		calls:    calls,
		executor: executor,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		cleanup:  make(chan struct{}),
	}

	go mgr.startCleanupRoutine()
	return mgr, nil
}

// StartRelay creates and starts a relay for one call. The stream SID must
// be unique among live relays.
func (m *Manager) StartRelay(tel TelephonyEndpoint, conv ConversationalEndpoint, callSID, streamSID string) (*StreamRelay, error) {
	if streamSID == "" {
		return nil, fmt.Errorf("empty stream SID")
	}

	m.mu.Lock()
	if _, exists := m.relays[streamSID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("relay for stream %s already exists", streamSID)
	}

	opts := []Option{
		WithLogger(m.logger),
		WithRecorder(m),
	}
	if m.metrics != nil {
		opts = append(opts, WithMetrics(m.metrics))
	}
	if m.executor != nil {
		opts = append(opts, WithExecutor(m.executor))
	}
	if m.cfg.EnableVAD {
		opts = append(opts, WithVAD(vad.NewEnergyDetector(m.cfg.VADThreshold)))
	}

	rel, err := New(NewSession(callSID, streamSID), tel, conv, m.cfg.Relay, opts...)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.relays[streamSID] = rel
	m.mu.Unlock()

	if err := rel.Start(); err != nil {
		m.mu.Lock()
		delete(m.relays, streamSID)
		m.mu.Unlock()
		return nil, err
	}

	m.logger.Info("Relay registered",
		slog.String("stream_sid", streamSID),
		slog.String("call_sid", callSID),
		slog.Int("active_relays", m.ActiveCount()),
	)
	return rel, nil
}

// Get returns the relay serving a stream, if any.
func (m *Manager) Get(streamSID string) (*StreamRelay, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rel, ok := m.relays[streamSID]
	return rel, ok
}

// ActiveCount returns the number of live relays.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.relays)
}

// Snapshot returns the stats of every live relay.
func (m *Manager) Snapshot() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]Stats, 0, len(m.relays))
	for _, rel := range m.relays {
		stats = append(stats, rel.Session().Stats())
	}
	return stats
}

// Remove stops a relay and drops it from the registry. Returns false if
// no relay serves the stream.
func (m *Manager) Remove(streamSID string) bool {
	m.mu.Lock()
	rel, exists := m.relays[streamSID]
	if exists {
		delete(m.relays, streamSID)
	}
	m.mu.Unlock()

	if !exists {
		return false
	}
	rel.Stop()
	return true
}

// RecordCall persists the final stats of a finished relay. Store failures
// are logged, not propagated; losing one history row must not affect live
// calls.
func (m *Manager) RecordCall(stats Stats) {
	if m.calls == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := &store.CallRecord{
		CallSID:       stats.CallSID,
		StreamSID:     stats.StreamSID,
		StartedAt:     stats.StartTime,
		EndedAt:       stats.StartTime.Add(time.Duration(stats.Duration * float64(time.Second))),
		Duration:      stats.Duration,
		FramesIn:      stats.FramesIn,
		FramesOut:     stats.FramesOut,
		BytesIn:       stats.BytesIn,
		BytesOut:      stats.BytesOut,
		DecodeErrors:  stats.DecodeErrors,
		Errors:        stats.Errors,
		FunctionCalls: stats.FunctionCalls,
		SpeechFrames:  stats.SpeechFrames,
	}
	if err := m.calls.SaveCallRecord(ctx, rec); err != nil {
		m.logger.Warn("Failed to persist call record",
			slog.String("stream_sid", stats.StreamSID),
			slog.String("error", err.Error()),
		)
	}
}

// Stop gracefully stops the manager and every live relay.
func (m *Manager) Stop() {
	m.logger.Info("Stopping relay manager", slog.Int("active_relays", m.ActiveCount()))

	m.mu.Lock()
	relays := make([]*StreamRelay, 0, len(m.relays))
	for sid, rel := range m.relays {
		relays = append(relays, rel)
		delete(m.relays, sid)
	}
	m.mu.Unlock()

	for _, rel := range relays {
		rel.Stop()
	}

	m.cancel()
	<-m.cleanup
	m.logger.Info("Relay manager stopped")
}

func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.reapIdleRelays()
		}
	}
}

// reapIdleRelays stops relays that have seen no media or events within
// the session timeout.
func (m *Manager) reapIdleRelays() {
	now := time.Now()
	var idle []string

	m.mu.RLock()
	for sid, rel := range m.relays {
		if now.Sub(rel.Session().LastActivity()) > m.cfg.SessionTimeout {
			idle = append(idle, sid)
		}
	}
	m.mu.RUnlock()

	for _, sid := range idle {
		m.logger.Info("Reaping idle relay",
			slog.String("stream_sid", sid),
			slog.Duration("timeout", m.cfg.SessionTimeout),
		)
		m.Remove(sid)
	}
}
