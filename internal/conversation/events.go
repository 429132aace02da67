package conversation

// EventKind discriminates the events surfaced by a Client.
type EventKind int

const (
	// KindAudioDelta carries a chunk of model speech as PCM16 bytes.
	KindAudioDelta EventKind = iota
	// KindSpeechStarted signals the remote VAD heard the caller start
	// speaking. Used to trigger barge-in.
	KindSpeechStarted
	// KindSpeechStopped signals the remote VAD heard the caller stop.
	KindSpeechStopped
	// KindFunctionCall carries a completed tool invocation request.
	KindFunctionCall
	// KindError carries a server-reported or transport error.
	KindError
	// KindClosed is the final event: the session ended and no further
	// events will follow.
	KindClosed
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case KindAudioDelta:
		return "audio_delta"
	case KindSpeechStarted:
		return "speech_started"
	case KindSpeechStopped:
		return "speech_stopped"
	case KindFunctionCall:
		return "function_call"
	case KindError:
		return "error"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one occurrence on the conversational session. Fields beyond
// Kind are populated per kind: Audio for deltas, CallID/Name/Arguments
// for function calls, Err for errors and abnormal closes.
type Event struct {
	Kind      EventKind
	Audio     []byte
	CallID    string
	Name      string
	Arguments string
	Err       error
}
