package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gradekeep/gradekeep/pkg/errors"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// TestOK verifies the success envelope.
func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]string{"key": "value"})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decode(t, rec)
	if resp.Error != nil {
		t.Errorf("unexpected error: %+v", resp.Error)
	}
	if resp.Data == nil {
		t.Error("expected data to be set")
	}
}

// TestFail verifies the error envelope.
func TestFail(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, "bad input", "field x is required")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	resp := decode(t, rec)
	if resp.Error == nil {
		t.Fatal("expected error to be set")
	}
	if resp.Error.Code != "BAD_REQUEST" {
		t.Errorf("code = %s, want BAD_REQUEST", resp.Error.Code)
	}
}

// TestFromError verifies typed errors map to the right status codes.
func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "validation error is 400",
			err:    errors.NewValidationError("lecture", nil, "required"),
			status: http.StatusBadRequest,
		},
		{
			name:   "column error is 422",
			err:    errors.NewColumnError("export.csv", "id", ""),
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "not found is 404",
			err:    errors.ErrNotFound,
			status: http.StatusNotFound,
		},
		{
			name:   "unknown error is 500",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(rec, tt.err)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}
