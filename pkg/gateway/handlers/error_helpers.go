// Package handlers implements the gateway's HTTP and WebSocket endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chorus-hq/chorus-agents/pkg/gateway/apierror"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/mw"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	body, status := apierror.FromError(err, reqID)
	writeJSON(w, status, apierror.Envelope{Error: body})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	writeJSON(w, http.StatusBadRequest, apierror.Envelope{Error: &apierror.Body{
		Kind:      "bad_request",
		Message:   message,
		RequestID: reqID,
	}})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	reqID, _ := mw.RequestIDFrom(r.Context())
	writeJSON(w, http.StatusMethodNotAllowed, apierror.Envelope{Error: &apierror.Body{
		Kind:      "bad_request",
		Message:   "method not allowed",
		RequestID: reqID,
	}})
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w, r, "invalid json body")
		return false
	}
	return true
}
