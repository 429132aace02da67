package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/audio"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/codec"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/conversation"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/metrics"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/telephony"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/vad"
)

// functionCallTimeout bounds a single tool invocation.
const functionCallTimeout = 30 * time.Second

// TelephonyEndpoint is the media-stream side of a relay.
type TelephonyEndpoint interface {
	Receive() (*telephony.Event, error)
	SendMedia(mulaw []byte) error
	SendMark(name string) error
	SendClear() error
	Close() error
}

// ConversationalEndpoint is the speech-to-speech API side of a relay.
type ConversationalEndpoint interface {
	SendAudio(pcm []byte) error
	SendFunctionResult(callID, output string) error
	Interrupt() error
	Events() <-chan conversation.Event
	Close() error
}

// Recorder receives the final stats of a finished call.
type Recorder interface {
	RecordCall(stats Stats)
}

// Config holds the media parameters of a relay.
type Config struct {
	// TelephonyRate is the sample rate on the caller leg.
	TelephonyRate int
	// ConversationRate is the sample rate expected by the model.
	ConversationRate int
	// FrameDurationMs is the duration of each outbound media frame.
	FrameDurationMs int
	// MaxBufferBytes bounds the outbound PCM buffer.
	MaxBufferBytes int
	// FlushInterval is the fallback pacing tick for outbound audio.
	FlushInterval time.Duration
	// BargeIn enables interrupting model playback when the caller speaks.
	BargeIn bool
}

// DefaultConfig returns the production media parameters: μ-law telephony
// at 8 kHz, PCM16 conversation at 24 kHz, 20 ms frames.
func DefaultConfig() Config {
	return Config{
		TelephonyRate:    8000,
		ConversationRate: 24000,
		FrameDurationMs:  20,
		MaxBufferBytes:   1 << 20,
		FlushInterval:    100 * time.Millisecond,
		BargeIn:          true,
	}
}

func (c Config) validate() error {
	if c.TelephonyRate <= 0 || c.ConversationRate <= 0 {
		return fmt.Errorf("invalid sample rates: %d / %d", c.TelephonyRate, c.ConversationRate)
	}
	if c.FrameDurationMs <= 0 {
		return fmt.Errorf("invalid frame duration: %dms", c.FrameDurationMs)
	}
	if c.MaxBufferBytes <= 0 {
		return fmt.Errorf("invalid buffer bound: %d", c.MaxBufferBytes)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("invalid flush interval: %v", c.FlushInterval)
	}
	return nil
}

// Option customizes a StreamRelay.
type Option func(*StreamRelay)

// WithLogger sets the relay logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *StreamRelay) { r.logger = logger }
}

// WithExecutor sets the tool call executor.
func WithExecutor(exec conversation.FunctionExecutor) Option {
	return func(r *StreamRelay) { r.executor = exec }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *StreamRelay) { r.metrics = m }
}

// WithVAD attaches a local speech classifier for inbound frames.
func WithVAD(d vad.Detector) Option {
	return func(r *StreamRelay) { r.detector = d }
}

// WithRecorder sets the sink for final call stats.
func WithRecorder(rec Recorder) Option {
	return func(r *StreamRelay) { r.recorder = rec }
}

// StreamRelay moves audio between one telephony endpoint and one
// conversational session until either side ends the call.
type StreamRelay struct {
	session *Session
	cfg     Config

	tel  TelephonyEndpoint
	conv ConversationalEndpoint

	logger   *slog.Logger
	executor conversation.FunctionExecutor
	metrics  *metrics.Metrics
	detector vad.Detector
	recorder Recorder

	outBuf  *audio.FrameBuffer
	markSeq uint64
	markMu  sync.Mutex

	wg       sync.WaitGroup
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// New wires a relay between the two endpoints. Call Start to begin
// pumping audio.
func New(session *Session, tel TelephonyEndpoint, conv ConversationalEndpoint, cfg Config, opts ...Option) (*StreamRelay, error) {
	if session == nil {
		return nil, fmt.Errorf("nil session")
	}
	if tel == nil || conv == nil {
		return nil, fmt.Errorf("both endpoints are required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}

	outBuf, err := audio.NewFrameBuffer(cfg.MaxBufferBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbound buffer: %w", err)
	}

	r := &StreamRelay{
		session: session,
		cfg:     cfg,
		tel:     tel,
		conv:    conv,
		logger:  slog.Default(),
		outBuf:  outBuf,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Session returns the relay's session.
func (r *StreamRelay) Session() *Session {
	return r.session
}

// Start launches both pumps. It fails if the relay already started.
func (r *StreamRelay) Start() error {
	if !r.session.transition(StateCreated, StateActive) {
		return fmt.Errorf("relay for stream %s already started (state %s)",
			r.session.StreamSID, r.session.State())
	}

	if r.metrics != nil {
		r.metrics.RecordRelayStarted()
	}
	r.logger.Info("Relay started",
		slog.String("stream_sid", r.session.StreamSID),
		slog.String("call_sid", r.session.CallSID),
	)

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.inboundPump()
	}()
	go func() {
		defer r.wg.Done()
		r.outboundPump()
	}()
	return nil
}

// Wait blocks until the relay has fully stopped.
func (r *StreamRelay) Wait() {
	<-r.stopped
}

// Stop ends the relay: it flushes pending outbound audio, closes both
// endpoints and waits for the pumps to drain. Safe to call from any
// goroutine, any number of times; every caller returns after the relay
// has fully stopped.
func (r *StreamRelay) Stop() {
	r.stopOnce.Do(func() {
		if !r.session.transition(StateActive, StateStopping) {
			r.session.transition(StateCreated, StateStopping)
		}
		close(r.done)

		// Best-effort flush of whatever the model already produced. A
		// sub-frame remainder cannot be sent and is discarded.
		r.flush()
		r.outBuf.Clear()

		r.conv.Close()
		r.tel.Close()
		r.wg.Wait()

		r.session.setState(StateStopped)
		stats := r.session.Stats()

		if r.metrics != nil {
			r.metrics.RecordRelayStopped(stats.Duration)
		}
		if r.recorder != nil {
			go r.recorder.RecordCall(stats)
		}

		r.logger.Info("Relay stopped",
			slog.String("stream_sid", stats.StreamSID),
			slog.String("call_sid", stats.CallSID),
			slog.Float64("duration", stats.Duration),
			slog.Uint64("frames_in", stats.FramesIn),
			slog.Uint64("frames_out", stats.FramesOut),
			slog.Uint64("decode_errors", stats.DecodeErrors),
		)
		close(r.stopped)
	})
	<-r.stopped
}

func (r *StreamRelay) stopping() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// inboundPump reads caller media, transcodes it and streams it to the
// conversational session.
func (r *StreamRelay) inboundPump() {
	for {
		ev, err := r.tel.Receive()
		if err != nil {
			if !r.stopping() {
				r.session.recordError()
				if r.metrics != nil {
					r.metrics.RecordTransportError("telephony")
				}
				r.logger.Warn("Telephony receive failed",
					slog.String("stream_sid", r.session.StreamSID),
					slog.String("error", err.Error()),
				)
				go r.Stop()
			}
			return
		}

		switch ev.Event {
		case telephony.EventMedia:
			if !r.handleInboundMedia(ev) {
				return
			}

		case telephony.EventStop:
			r.logger.Info("Caller ended the stream",
				slog.String("stream_sid", r.session.StreamSID),
			)
			go r.Stop()
			return

		case telephony.EventConnected, telephony.EventStart, telephony.EventMark:
			// Handshake and playback acknowledgements need no action here.

		default:
			r.logger.Debug("Ignoring unknown media-stream event",
				slog.String("stream_sid", r.session.StreamSID),
				slog.String("event", ev.Event),
			)
		}
	}
}

// handleInboundMedia processes one media event. It returns false when the
// pump must exit.
func (r *StreamRelay) handleInboundMedia(ev *telephony.Event) bool {
	mulaw, err := ev.DecodePayload()
	if err != nil {
		// Malformed payloads are dropped; the stream continues.
		r.session.recordDecodeError()
		if r.metrics != nil {
			r.metrics.RecordDecodeError()
		}
		r.logger.Warn("Dropping malformed media payload",
			slog.String("stream_sid", r.session.StreamSID),
			slog.String("error", err.Error()),
		)
		return true
	}
	if len(mulaw) == 0 {
		return true
	}

	pcm := codec.DecodeMuLaw(mulaw)

	if r.detector != nil {
		isSpeech := r.detector.IsSpeech(pcm, r.cfg.TelephonyRate)
		if isSpeech {
			r.session.recordSpeechFrame()
		}
		if r.metrics != nil {
			r.metrics.RecordVADFrame(isSpeech)
		}
	}

	up, err := audio.Resample(pcm, r.cfg.TelephonyRate, r.cfg.ConversationRate, 2)
	if err != nil {
		r.session.recordError()
		r.logger.Error("Inbound resample failed",
			slog.String("stream_sid", r.session.StreamSID),
			slog.String("error", err.Error()),
		)
		return true
	}

	if err := r.conv.SendAudio(up); err != nil {
		if !r.stopping() {
			r.session.recordError()
			if r.metrics != nil {
				r.metrics.RecordTransportError("conversation")
			}
			r.logger.Warn("Conversation send failed",
				slog.String("stream_sid", r.session.StreamSID),
				slog.String("error", err.Error()),
			)
			go r.Stop()
		}
		return false
	}

	r.session.recordFrameIn(len(mulaw))
	if r.metrics != nil {
		r.metrics.RecordFrameIn(len(mulaw))
	}
	return true
}

// outboundPump consumes conversational events and paces model audio back
// to the caller. Frames are flushed as soon as deltas arrive; the ticker
// only drains leftovers when the model goes quiet mid-frame.
func (r *StreamRelay) outboundPump() {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return

		case ev, ok := <-r.conv.Events():
			if !ok {
				if !r.stopping() {
					go r.Stop()
				}
				return
			}
			if !r.handleConversationEvent(ev) {
				return
			}

		case <-ticker.C:
			if err := r.flush(); err != nil && !r.stopping() {
				go r.Stop()
				return
			}
		}
	}
}

// handleConversationEvent processes one session event. It returns false
// when the pump must exit.
func (r *StreamRelay) handleConversationEvent(ev conversation.Event) bool {
	switch ev.Kind {
	case conversation.KindAudioDelta:
		down, err := audio.Resample(ev.Audio, r.cfg.ConversationRate, r.cfg.TelephonyRate, 2)
		if err != nil {
			r.session.recordError()
			r.logger.Error("Outbound resample failed",
				slog.String("stream_sid", r.session.StreamSID),
				slog.String("error", err.Error()),
			)
			return true
		}
		r.outBuf.Append(down)
		if err := r.flush(); err != nil {
			if !r.stopping() {
				r.session.recordError()
				if r.metrics != nil {
					r.metrics.RecordTransportError("telephony")
				}
				go r.Stop()
			}
			return false
		}

	case conversation.KindSpeechStarted:
		if r.cfg.BargeIn {
			r.bargeIn()
		}

	case conversation.KindSpeechStopped:
		r.logger.Debug("Caller stopped speaking",
			slog.String("stream_sid", r.session.StreamSID),
		)

	case conversation.KindFunctionCall:
		r.session.recordFunctionCall()
		go r.executeFunction(ev)

	case conversation.KindError:
		r.session.recordError()
		r.logger.Warn("Conversation error",
			slog.String("stream_sid", r.session.StreamSID),
			slog.String("error", ev.Err.Error()),
		)

	case conversation.KindClosed:
		if ev.Err != nil {
			r.session.recordError()
			if r.metrics != nil {
				r.metrics.RecordTransportError("conversation")
			}
			r.logger.Warn("Conversation closed abnormally",
				slog.String("stream_sid", r.session.StreamSID),
				slog.String("error", ev.Err.Error()),
			)
		}
		if !r.stopping() {
			go r.Stop()
		}
		return false
	}
	return true
}

// bargeIn cancels model playback when the caller talks over it: the
// in-flight response is cancelled, locally buffered audio is dropped and
// the provider is told to clear its own playout buffer.
func (r *StreamRelay) bargeIn() {
	r.logger.Info("Barge-in: caller interrupted playback",
		slog.String("stream_sid", r.session.StreamSID),
	)
	if err := r.conv.Interrupt(); err != nil && !r.stopping() {
		r.logger.Warn("Failed to cancel model response",
			slog.String("stream_sid", r.session.StreamSID),
			slog.String("error", err.Error()),
		)
	}
	r.outBuf.Clear()
	if err := r.tel.SendClear(); err != nil && !r.stopping() {
		r.logger.Warn("Failed to clear provider playback",
			slog.String("stream_sid", r.session.StreamSID),
			slog.String("error", err.Error()),
		)
	}
	if r.metrics != nil {
		r.metrics.RecordBargeIn()
	}
}

// flush drains all complete frames from the outbound buffer to the
// caller. Each frame is μ-law encoded at send time and followed by a
// playback mark.
func (r *StreamRelay) flush() error {
	frames := r.outBuf.Chunk(r.cfg.FrameDurationMs, r.cfg.TelephonyRate, 2)
	for _, frame := range frames {
		mulaw := codec.EncodeMuLaw(frame)
		if err := r.tel.SendMedia(mulaw); err != nil {
			return fmt.Errorf("failed to send media frame: %w", err)
		}
		if err := r.tel.SendMark(r.nextMark()); err != nil {
			return fmt.Errorf("failed to send playback mark: %w", err)
		}
		r.session.recordFrameOut(len(mulaw))
		if r.metrics != nil {
			r.metrics.RecordFrameOut(len(mulaw))
		}
	}
	return nil
}

func (r *StreamRelay) nextMark() string {
	r.markMu.Lock()
	defer r.markMu.Unlock()
	r.markSeq++
	return fmt.Sprintf("frame-%d", r.markSeq)
}

// executeFunction runs one tool call and reports its result back to the
// model. Executor failures are converted into a JSON error payload so the
// model can recover conversationally.
func (r *StreamRelay) executeFunction(ev conversation.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), functionCallTimeout)
	defer cancel()

	r.logger.Info("Executing tool call",
		slog.String("stream_sid", r.session.StreamSID),
		slog.String("call_id", ev.CallID),
		slog.String("name", ev.Name),
	)

	var output string
	var failed bool
	if r.executor == nil {
		failed = true
		output = errorPayload(fmt.Sprintf("no handler registered for %q", ev.Name))
	} else if result, err := r.executor.Execute(ctx, ev.Name, ev.Arguments); err != nil {
		failed = true
		output = errorPayload(err.Error())
		r.logger.Warn("Tool call failed",
			slog.String("stream_sid", r.session.StreamSID),
			slog.String("call_id", ev.CallID),
			slog.String("name", ev.Name),
			slog.String("error", err.Error()),
		)
	} else {
		output = result
	}

	if r.metrics != nil {
		r.metrics.RecordFunctionCall(failed)
	}

	if err := r.conv.SendFunctionResult(ev.CallID, output); err != nil && !r.stopping() {
		r.session.recordError()
		r.logger.Warn("Failed to deliver tool result",
			slog.String("stream_sid", r.session.StreamSID),
			slog.String("call_id", ev.CallID),
			slog.String("error", err.Error()),
		)
	}
}

func errorPayload(msg string) string {
	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error": "internal error"}`
	}
	return string(data)
}
