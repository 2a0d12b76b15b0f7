package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"nil", nil, http.StatusOK, ""},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"cancelled", context.Canceled, http.StatusRequestTimeout, "cancelled"},
		{"not found", fmt.Errorf("lookup: %w", store.ErrNotFound), http.StatusNotFound, "not_found"},
		{"setup", core.SetupError("op", "unknown study", nil), http.StatusNotFound, "setup_error"},
		{"transient", core.TransientError("op", "model call failed", errors.New("boom")), http.StatusBadGateway, "transient_call_error"},
		{"persistence", core.PersistenceError("op", "insert failed", errors.New("boom")), http.StatusInternalServerError, "persistence_error"},
		{"non-essential", core.NonEssentialError("op", "scoring failed", nil), http.StatusBadGateway, "non_essential_error"},
		{"unknown", errors.New("mystery"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, status := FromError(tt.err, "req_1")
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if tt.err == nil {
				if body != nil {
					t.Errorf("body = %+v, want nil", body)
				}
				return
			}
			if body.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", body.Kind, tt.wantKind)
			}
			if body.RequestID != "req_1" {
				t.Errorf("request id = %q", body.RequestID)
			}
		})
	}
}

func TestUnknownErrorDoesNotLeakDetails(t *testing.T) {
	body, _ := FromError(errors.New("password=hunter2"), "")
	if body.Message != "internal error" {
		t.Errorf("message = %q", body.Message)
	}
}
