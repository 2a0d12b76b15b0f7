package interview

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"strings"

	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/interview/protocol"
	"github.com/chorus-hq/chorus-agents/pkg/interview/realtime"
)

// AudioStrategy is how a session gets questions voiced and answers
// transcribed. Streamed sessions hold a duplex provider connection with
// server-side voice activity detection; batch sessions take one complete
// recording per answer and call transcription and synthesis APIs directly.
//
// All methods except the provider's internal read loop run on the session's
// dispatch goroutine.
type AudioStrategy interface {
	// Start brings up provider resources. Called once before the first
	// question.
	Start(ctx context.Context) error

	// RequiresResearchQuestion reports whether the session must have a
	// resolvable research question to proceed.
	RequiresResearchQuestion() bool

	// SpeakQuestion voices the question text to the client.
	SpeakQuestion(ctx context.Context, e *Engine, text string) error

	// HandleAudio consumes one client audio payload.
	HandleAudio(ctx context.Context, e *Engine, dataB64 string) error

	// Events is the provider event stream; nil when the strategy has none.
	// A nil channel never fires in a select.
	Events() <-chan realtime.Event

	// HandleEvent consumes one provider event.
	HandleEvent(ctx context.Context, e *Engine, ev realtime.Event) error

	// ResumeListening re-arms answer capture after a contained mid-session
	// failure so the participant can speak again.
	ResumeListening(e *Engine)

	// Close releases provider resources. Safe to call more than once.
	Close() error
}

// Transcriber converts one complete audio payload to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Synthesizer converts question text into one complete audio payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*core.SpeechAudio, error)
}

// BatchStrategy runs the recorded-answer flow: synthesize each question as a
// single audio payload, then accept exactly one recording, wrap it as WAV,
// and transcribe it. Audio arriving while the strategy is not listening is
// discarded.
type BatchStrategy struct {
	stt            Transcriber
	tts            Synthesizer
	out            EventSender
	log            *slog.Logger
	minAnswerBytes int
	listening      bool
}

// NewBatchStrategy wires a batch audio strategy. minAnswerBytes below 1
// falls back to the engine default at first use via Config; pass the
// configured value.
func NewBatchStrategy(stt Transcriber, tts Synthesizer, out EventSender, minAnswerBytes int, log *slog.Logger) *BatchStrategy {
	if minAnswerBytes <= 0 {
		minAnswerBytes = 100
	}
	return &BatchStrategy{stt: stt, tts: tts, out: out, log: log, minAnswerBytes: minAnswerBytes}
}

func (s *BatchStrategy) Start(ctx context.Context) error { return nil }

func (s *BatchStrategy) RequiresResearchQuestion() bool { return false }

func (s *BatchStrategy) SpeakQuestion(ctx context.Context, e *Engine, text string) error {
	audio, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		return core.TransientError("interview.SpeakQuestion", "synthesize question audio", err)
	}
	encoded := base64.StdEncoding.EncodeToString(audio.Data)
	if err := s.out.Send(protocol.AudioComplete(encoded, audio.Format)); err != nil {
		return core.TransientError("interview.SpeakQuestion", "send question audio", err)
	}
	s.listening = true
	e.state = StateListening
	return nil
}

func (s *BatchStrategy) HandleAudio(ctx context.Context, e *Engine, dataB64 string) error {
	if !s.listening {
		s.log.Debug("discarding audio outside listening window", "session_id", e.sessionID)
		return nil
	}
	s.listening = false

	// Too little audio to mean anything: record a skipped answer and move on
	// without a transcription call.
	if len(dataB64) < s.minAnswerBytes {
		return e.HandleTranscript(ctx, core.SkippedAnswer)
	}

	pcm, err := base64.StdEncoding.DecodeString(dataB64)
	if err != nil {
		s.listening = true
		return core.TransientError("interview.HandleAudio", "decode audio payload", err)
	}
	wav := WAVFromPCM(pcm, TranscribeSampleRate, TranscribeChannels, TranscribeBitDepth)
	transcript, err := s.stt.Transcribe(ctx, bytes.NewReader(wav), "audio.wav")
	if err != nil {
		// Let the participant retry the same answer.
		s.listening = true
		return core.TransientError("interview.HandleAudio", "transcribe answer", err)
	}
	return e.HandleTranscript(ctx, strings.TrimSpace(transcript))
}

func (s *BatchStrategy) Events() <-chan realtime.Event { return nil }

func (s *BatchStrategy) HandleEvent(ctx context.Context, e *Engine, ev realtime.Event) error {
	return nil
}

func (s *BatchStrategy) ResumeListening(e *Engine) {
	s.listening = true
	e.state = StateListening
}

func (s *BatchStrategy) Close() error { return nil }

// Listening reports whether the next audio payload will be consumed.
func (s *BatchStrategy) Listening() bool { return s.listening }

// VoiceStream is the slice of the realtime provider connection the streamed
// strategy uses. *realtime.Conn satisfies it.
type VoiceStream interface {
	AppendAudio(dataB64 string) error
	CommitInput() error
	CreateResponse(questionText string) error
	Events() <-chan realtime.Event
	Close() error
}

// StreamedStrategy runs the provider-VAD flow: client audio chunks are
// forwarded into the provider's input buffer, the provider detects turn
// boundaries and transcribes, and its spoken responses are buffered and
// released to the client as one payload per question.
type StreamedStrategy struct {
	cfg  realtime.Config
	dial func(ctx context.Context, cfg realtime.Config) (VoiceStream, error)
	conn VoiceStream
	buf  AudioBuffer
	out  EventSender
	log  *slog.Logger
}

// NewStreamedStrategy wires a streamed audio strategy against the realtime
// provider.
func NewStreamedStrategy(cfg realtime.Config, out EventSender, log *slog.Logger) *StreamedStrategy {
	return &StreamedStrategy{
		cfg: cfg,
		dial: func(ctx context.Context, cfg realtime.Config) (VoiceStream, error) {
			return realtime.Dial(ctx, cfg)
		},
		out: out,
		log: log,
	}
}

func (s *StreamedStrategy) Start(ctx context.Context) error {
	conn, err := s.dial(ctx, s.cfg)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *StreamedStrategy) RequiresResearchQuestion() bool { return true }

func (s *StreamedStrategy) SpeakQuestion(ctx context.Context, e *Engine, text string) error {
	s.buf.Reset()
	if err := s.conn.CreateResponse(text); err != nil {
		return core.TransientError("interview.SpeakQuestion", "request spoken question", err)
	}
	e.state = StateListening
	return nil
}

func (s *StreamedStrategy) HandleAudio(ctx context.Context, e *Engine, dataB64 string) error {
	if err := s.conn.AppendAudio(dataB64); err != nil {
		return core.TransientError("interview.HandleAudio", "forward audio to provider", err)
	}
	return nil
}

func (s *StreamedStrategy) Events() <-chan realtime.Event {
	if s.conn == nil {
		return nil
	}
	return s.conn.Events()
}

func (s *StreamedStrategy) HandleEvent(ctx context.Context, e *Engine, ev realtime.Event) error {
	switch ev.Type {
	case realtime.EventSpeechStarted:
		return s.out.Send(protocol.SpeechStarted())
	case realtime.EventSpeechStopped:
		if err := s.out.Send(protocol.SpeechStopped()); err != nil {
			return err
		}
		if err := s.conn.CommitInput(); err != nil {
			return core.TransientError("interview.HandleEvent", "commit input buffer", err)
		}
		return nil
	case realtime.EventCommitted:
		return nil
	case realtime.EventAudioDelta:
		s.buf.Append(ev.Delta)
		return nil
	case realtime.EventAudioDone:
		data := s.buf.Drain()
		if data == "" {
			return nil
		}
		return s.out.Send(protocol.AudioComplete(data, ""))
	case realtime.EventTranscript:
		return e.HandleTranscript(ctx, ev.Transcript)
	case realtime.EventError:
		return s.out.Send(protocol.Error(ev.Message))
	default:
		return nil
	}
}

// ResumeListening only resets state; the provider VAD keeps detecting turns
// on its own.
func (s *StreamedStrategy) ResumeListening(e *Engine) {
	e.state = StateListening
}

func (s *StreamedStrategy) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
