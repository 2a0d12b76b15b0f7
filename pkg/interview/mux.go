package interview

import (
	"context"
	"log/slog"
	"time"

	"github.com/chorus-hq/chorus-agents/pkg/interview/protocol"
)

// ClientSocket is the slice of the client WebSocket the mux uses.
// *websocket.Conn satisfies it.
type ClientSocket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Sender serializes outbound messages through a single writer goroutine.
// Safe to call from any goroutine; Send never blocks the writer's peer.
type Sender struct {
	ch chan any
}

// NewSender creates a sender with a bounded outbound queue.
func NewSender() *Sender {
	return &Sender{ch: make(chan any, 64)}
}

// Send enqueues one message for the writer goroutine.
func (s *Sender) Send(v any) error {
	s.ch <- v
	return nil
}

// Mux owns a session's transport: a reader goroutine for client frames, the
// provider's event channel, a writer goroutine for outbound messages, and the
// single dispatch loop that calls engine methods. Because only that loop
// touches the engine, a client "end" racing a provider transcript resolves to
// exactly one ordering with exactly one termination.
type Mux struct {
	engine *Engine
	conn   ClientSocket
	sender *Sender
	log    *slog.Logger

	// IdleTimeout bounds how long the client may stay silent between frames.
	// Zero disables the limit.
	IdleTimeout time.Duration
}

// NewMux wires a session multiplexer. The sender must be the same one the
// engine and strategy were constructed with.
func NewMux(engine *Engine, conn ClientSocket, sender *Sender, log *slog.Logger) *Mux {
	return &Mux{engine: engine, conn: conn, sender: sender, log: log}
}

// Run drives the session to completion: starts the engine, dispatches client
// frames and provider events in arrival order, and tears everything down when
// the interview finishes or either peer goes away.
func (m *Mux) Run(ctx context.Context, sessionID string) {
	writerDone := make(chan struct{})
	dispatchDone := make(chan struct{})
	go m.writeLoop(writerDone)
	defer func() {
		m.engine.Abort()
		close(dispatchDone)
		close(m.sender.ch)
		<-writerDone
		m.conn.Close()
	}()

	if err := m.engine.Start(ctx, sessionID); err != nil {
		m.log.Error("session start failed", "session_id", sessionID, "error", err)
		m.sender.Send(protocol.Error(err.Error()))
		return
	}

	frames := make(chan any, 16)
	go m.readLoop(frames, dispatchDone)

	events := m.engine.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				m.log.Info("client disconnected", "session_id", sessionID)
				return
			}
			switch f := frame.(type) {
			case protocol.ClientAudio:
				m.engine.HandleAudio(ctx, f.Data)
			case protocol.ClientEnd:
				m.engine.Finish(ctx)
			case error:
				m.sender.Send(protocol.Error(f.Error()))
			}
		case ev, ok := <-events:
			if !ok {
				// Provider stream ended; a completed engine already said
				// goodbye, otherwise the session cannot continue.
				if !m.engine.Finished() {
					m.log.Warn("provider stream closed mid-session", "session_id", sessionID)
					m.sender.Send(protocol.Error("voice provider connection closed"))
				}
				return
			}
			m.engine.HandleEvent(ctx, ev)
		}
		if m.engine.Finished() {
			return
		}
	}
}

// readLoop pumps decoded client frames into the dispatch loop. Malformed
// frames are forwarded as errors rather than killing the session. Once the
// dispatcher is gone nothing drains frames, so every send also watches done.
func (m *Mux) readLoop(frames chan<- any, done <-chan struct{}) {
	defer close(frames)
	for {
		if m.IdleTimeout > 0 {
			m.conn.SetReadDeadline(time.Now().Add(m.IdleTimeout))
		}
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			select {
			case frames <- err:
			case <-done:
				return
			}
			continue
		}
		select {
		case frames <- msg:
		case <-done:
			return
		}
	}
}

func (m *Mux) writeLoop(done chan<- struct{}) {
	defer close(done)
	for v := range m.sender.ch {
		if err := m.conn.WriteJSON(v); err != nil {
			// Keep draining so Send never wedges the dispatch loop.
			continue
		}
	}
}
