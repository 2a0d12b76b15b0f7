// Package realtime is a client for the OpenAI Realtime API over WebSocket,
// covering the subset a voice interview needs: session configuration with
// server-side voice activity detection, incremental audio input, and spoken
// responses.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultURL is the provider endpoint; the model is appended as a query
	// parameter.
	DefaultURL = "wss://api.openai.com/v1/realtime"

	// DefaultModel is the realtime voice model.
	DefaultModel = "gpt-4o-realtime-preview-2024-12-17"
)

const sessionInstructions = "You are a professional qualitative researcher conducting an interview. You will be given specific questions to ask. Speak them naturally and conversationally. After asking each question, listen carefully to the participant's response."

// Config controls the provider connection.
type Config struct {
	APIKey string
	Model  string // defaults to DefaultModel
	URL    string // defaults to DefaultURL
	Voice  string // defaults to alloy

	// SilenceDurationMS is how long the server VAD waits before treating the
	// participant as done speaking.
	SilenceDurationMS int // defaults to 3000
}

// Conn is one live provider session. Writes are safe from any goroutine;
// events are delivered on a single channel fed by the read loop.
type Conn struct {
	ws      *websocket.Conn
	events  chan Event
	done    chan struct{}
	stop    chan struct{} // closed by Close to release a blocked readLoop
	closed  atomic.Bool
	writeMu sync.Mutex
}

// Dial connects and configures the provider session. The returned Conn is
// ready for AppendAudio and CreateResponse.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = DefaultURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, baseURL+"?model="+model, headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return nil, fmt.Errorf("realtime connect (status %d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("realtime connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime connect: %w", err)
	}

	c := &Conn{
		ws:     ws,
		events: make(chan Event, 100),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	if err := c.configure(cfg); err != nil {
		c.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) configure(cfg Config) error {
	voice := cfg.Voice
	if voice == "" {
		voice = "alloy"
	}
	silence := cfg.SilenceDurationMS
	if silence <= 0 {
		silence = 3000
	}
	return c.send(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":          []string{"text", "audio"},
			"instructions":        sessionInstructions,
			"voice":               voice,
			"input_audio_format":  "pcm16",
			"output_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model": "whisper-1",
			},
			"turn_detection": map[string]any{
				"type":                "server_vad",
				"threshold":           0.5,
				"prefix_padding_ms":   300,
				"silence_duration_ms": silence,
			},
			"temperature": 0.8,
		},
	})
}

func (c *Conn) readLoop() {
	defer func() {
		close(c.events)
		close(c.done)
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		ev, ok := decodeEvent(data)
		if !ok {
			continue
		}
		select {
		case c.events <- ev:
		default:
			// A stalled consumer must not block the read loop; audio deltas
			// are droppable, everything else waits for delivery or Close.
			if ev.Type == EventAudioDelta {
				continue
			}
			select {
			case c.events <- ev:
			case <-c.stop:
				return
			}
		}
	}
}

func (c *Conn) send(v any) error {
	if c.closed.Load() {
		return fmt.Errorf("realtime session closed")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode realtime message: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// AppendAudio forwards one base64 PCM chunk into the input buffer.
func (c *Conn) AppendAudio(dataB64 string) error {
	return c.send(map[string]string{
		"type":  "input_audio_buffer.append",
		"audio": dataB64,
	})
}

// CommitInput finalizes the input buffer after the VAD reports silence.
func (c *Conn) CommitInput() error {
	return c.send(map[string]string{"type": "input_audio_buffer.commit"})
}

// CreateResponse asks the voice model to speak the given question.
func (c *Conn) CreateResponse(questionText string) error {
	return c.send(map[string]any{
		"type": "response.create",
		"response": map[string]any{
			"modalities":   []string{"text", "audio"},
			"instructions": "Please ask this question naturally and conversationally: " + questionText,
		},
	})
}

// Events returns the provider event stream. The channel closes when the
// connection ends.
func (c *Conn) Events() <-chan Event { return c.events }

// Done is closed when the read loop exits.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close shuts the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.stop)
	c.writeMu.Lock()
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.ws.Close()
}
