package interview

import "strings"

// AudioBuffer accumulates base64 speech chunks for one spoken question and
// releases them as a single payload. It is only touched from the session's
// dispatch goroutine, so it needs no locking.
type AudioBuffer struct {
	b      strings.Builder
	chunks int
}

// Append adds one chunk.
func (a *AudioBuffer) Append(deltaB64 string) {
	if deltaB64 == "" {
		return
	}
	a.b.WriteString(deltaB64)
	a.chunks++
}

// Drain returns everything buffered so far and resets. A second Drain with no
// intervening Append returns the empty string.
func (a *AudioBuffer) Drain() string {
	out := a.b.String()
	a.Reset()
	return out
}

// Reset discards the buffer ahead of the next question.
func (a *AudioBuffer) Reset() {
	a.b.Reset()
	a.chunks = 0
}

// Chunks reports how many deltas are currently buffered.
func (a *AudioBuffer) Chunks() int { return a.chunks }
