package interview

import (
	"encoding/binary"
	"testing"
)

func TestWAVFromPCM(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wav := WAVFromPCM(pcm, TranscribeSampleRate, TranscribeChannels, TranscribeBitDepth)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Errorf("bad container markers: %q %q", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("riff size = %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("audio format = %d, want PCM", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 24000 {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 48000 {
		t.Errorf("byte rate = %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 2 {
		t.Errorf("block align = %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bit depth = %d", got)
	}
	if string(wav[36:40]) != "data" {
		t.Errorf("data marker = %q", wav[36:40])
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d", got)
	}
	if string(wav[44:]) != string(pcm) {
		t.Errorf("payload = %v", wav[44:])
	}
}

func TestAudioBufferDrainOnce(t *testing.T) {
	var buf AudioBuffer
	buf.Append("QUJD")
	buf.Append("REVG")
	buf.Append("")

	if buf.Chunks() != 2 {
		t.Errorf("chunks = %d, want 2", buf.Chunks())
	}
	if got := buf.Drain(); got != "QUJDREVG" {
		t.Errorf("drain = %q", got)
	}
	if got := buf.Drain(); got != "" {
		t.Errorf("second drain = %q, want empty", got)
	}
	if buf.Chunks() != 0 {
		t.Errorf("chunks after drain = %d", buf.Chunks())
	}
}
