package realtime

import "encoding/json"

// EventType identifies a normalized provider event.
type EventType string

const (
	// EventTranscript carries the participant's completed answer transcript.
	EventTranscript EventType = "transcript"
	// EventSpeechStarted and EventSpeechStopped are the provider's VAD
	// transitions.
	EventSpeechStarted EventType = "speech_started"
	EventSpeechStopped EventType = "speech_stopped"
	// EventCommitted acknowledges a committed input buffer.
	EventCommitted EventType = "committed"
	// EventAudioDelta carries one base64 chunk of synthesized speech.
	EventAudioDelta EventType = "audio_delta"
	// EventAudioDone marks the end of a synthesized response.
	EventAudioDone EventType = "audio_done"
	// EventError carries a provider-reported failure.
	EventError EventType = "error"
)

// Event is one normalized message from the realtime provider.
type Event struct {
	Type       EventType
	Transcript string // EventTranscript
	Delta      string // EventAudioDelta, base64
	Message    string // EventError
}

// rawEvent mirrors the provider's wire shape closely enough to normalize it.
type rawEvent struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Delta      string `json:"delta"`
	Response   struct {
		Output []struct {
			Type    string `json:"type"`
			Content []struct {
				Type       string `json:"type"`
				Transcript string `json:"transcript"`
			} `json:"content"`
		} `json:"output"`
	} `json:"response"`
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeEvent normalizes one provider frame. Events the session does not act
// on return ok=false and are dropped.
func decodeEvent(data []byte) (Event, bool) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, false
	}

	switch raw.Type {
	case "conversation.item.input_audio_transcription.completed":
		return Event{Type: EventTranscript, Transcript: raw.Transcript}, true
	case "input_audio_buffer.speech_started":
		return Event{Type: EventSpeechStarted}, true
	case "input_audio_buffer.speech_stopped":
		return Event{Type: EventSpeechStopped}, true
	case "input_audio_buffer.committed":
		return Event{Type: EventCommitted}, true
	case "response.audio.delta":
		return Event{Type: EventAudioDelta, Delta: raw.Delta}, true
	case "response.audio.done":
		return Event{Type: EventAudioDone}, true
	case "response.done":
		// Some provider versions only surface the input transcript inside
		// the finished response payload.
		for _, item := range raw.Response.Output {
			if item.Type != "message" {
				continue
			}
			for _, part := range item.Content {
				if part.Type == "input_audio" && part.Transcript != "" {
					return Event{Type: EventTranscript, Transcript: part.Transcript}, true
				}
			}
		}
		return Event{}, false
	case "error":
		msg := raw.Error.Message
		if msg == "" {
			msg = "provider error"
		}
		return Event{Type: EventError, Message: msg}, true
	default:
		return Event{}, false
	}
}
