// Package protocol defines the WebSocket wire protocol between interview
// clients and the session engine.
//
// Clients send audio and end frames. The server emits question text,
// transcripts, voice-activity notifications, synthesized audio, and the
// completion signal.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Client message types.
const (
	TypeAudio = "audio"
	TypeEnd   = "end"
)

// Server message types.
const (
	TypeQuestion          = "question"
	TypeTranscript        = "transcript"
	TypeSpeechStarted     = "speech_started"
	TypeSpeechStopped     = "speech_stopped"
	TypeAudioComplete     = "audio_complete"
	TypeInterviewComplete = "interview_complete"
	TypeError             = "error"
)

// DecodeError reports a malformed client frame.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// ClientAudio carries one base64 audio payload. In batch mode this is the
// complete recorded answer; in streamed mode it is one PCM chunk.
type ClientAudio struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ClientEnd asks the server to finish the interview immediately.
type ClientEnd struct {
	Type string `json:"type"`
}

// DecodeClientMessage parses one inbound frame into its typed form.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypeAudio:
		var msg ClientAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio frame", "")
		}
		return msg, nil
	case TypeEnd:
		return ClientEnd{Type: TypeEnd}, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// ServerQuestion announces the question about to be spoken.
type ServerQuestion struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServerTranscript delivers the participant's transcribed answer.
type ServerTranscript struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServerSpeech signals voice-activity transitions in streamed mode.
type ServerSpeech struct {
	Type string `json:"type"`
}

// ServerAudioComplete carries one complete synthesized audio payload.
type ServerAudioComplete struct {
	Type   string `json:"type"`
	Data   string `json:"data"`
	Format string `json:"format,omitempty"`
}

// ServerInterviewComplete signals the end of the interview.
type ServerInterviewComplete struct {
	Type string `json:"type"`
}

// ServerError reports a failure to the client.
type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func Question(text string) ServerQuestion {
	return ServerQuestion{Type: TypeQuestion, Text: text}
}

func Transcript(text string) ServerTranscript {
	return ServerTranscript{Type: TypeTranscript, Text: text}
}

func SpeechStarted() ServerSpeech { return ServerSpeech{Type: TypeSpeechStarted} }
func SpeechStopped() ServerSpeech { return ServerSpeech{Type: TypeSpeechStopped} }

func AudioComplete(dataB64, format string) ServerAudioComplete {
	return ServerAudioComplete{Type: TypeAudioComplete, Data: dataB64, Format: format}
}

func InterviewComplete() ServerInterviewComplete {
	return ServerInterviewComplete{Type: TypeInterviewComplete}
}

func Error(message string) ServerError {
	return ServerError{Type: TypeError, Message: message}
}
