// Package apierror translates internal errors into HTTP JSON responses.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

type Envelope struct {
	Error *Body `json:"error"`
}

type Body struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// FromError maps err to a wire body and status. Unknown errors become an
// opaque 500 so internals never leak.
func FromError(err error, requestID string) (*Body, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Body{Kind: "timeout", Message: "request timeout", RequestID: requestID}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &Body{Kind: "cancelled", Message: "request cancelled", RequestID: requestID}, http.StatusRequestTimeout
	}
	if errors.Is(err, store.ErrNotFound) {
		return &Body{Kind: "not_found", Message: "resource not found", RequestID: requestID}, http.StatusNotFound
	}

	var ce *core.Error
	if errors.As(err, &ce) && ce != nil {
		return &Body{Kind: string(ce.Kind), Message: ce.Message, RequestID: requestID}, statusFromKind(ce.Kind)
	}

	return &Body{Kind: "internal", Message: "internal error", RequestID: requestID}, http.StatusInternalServerError
}

func statusFromKind(k core.Kind) int {
	switch k {
	case core.KindSetup:
		// Setup failures are bad references in the request (unknown session,
		// study, or participant).
		return http.StatusNotFound
	case core.KindTransient, core.KindNonEssential:
		// An upstream model or speech provider failed.
		return http.StatusBadGateway
	case core.KindPersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
