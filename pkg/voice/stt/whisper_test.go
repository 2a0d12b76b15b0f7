package stt

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWhisperTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "answer.wav" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"I mostly drink espresso."}`))
	}))
	defer srv.Close()

	c := NewWhisper("test-key", "", WithBaseURL(srv.URL))
	got, err := c.Transcribe(context.Background(), bytes.NewReader([]byte("RIFFxxxx")), "answer.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "I mostly drink espresso." {
		t.Errorf("transcript = %q", got)
	}
}

func TestWhisperTranscribeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad audio"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewWhisper("test-key", "whisper-1", WithBaseURL(srv.URL))
	_, err := c.Transcribe(context.Background(), bytes.NewReader([]byte("junk")), "")
	if err == nil {
		t.Fatal("want error")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("err = %v, want status in message", err)
	}
}
