package json

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantBody   map[string]any
	}{
		{
			name:       "without details",
			write:      func(w http.ResponseWriter) { WriteBadRequest(w, "State mismatch") },
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"success": false, "error": "State mismatch"},
		},
		{
			name:       "with details",
			write:      func(w http.ResponseWriter) { WriteError(w, 500, "Authentication failed", "timeout") },
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"success": false, "error": "Authentication failed", "details": "timeout"},
		},
		{
			name: "refresh needed",
			write: func(w http.ResponseWriter) {
				WriteErrorResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "Token expired", RefreshNeeded: true})
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   map[string]any{"success": false, "error": "Token expired", "refresh_needed": true},
		},
		{
			name:       "too many requests",
			write:      func(w http.ResponseWriter) { WriteTooManyRequests(w, "slow down") },
			wantStatus: http.StatusTooManyRequests,
			wantBody:   map[string]any{"success": false, "error": "slow down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantBody, decode(t, w))
		})
	}
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteMessage(w, "Logged out successfully")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"success": true, "message": "Logged out successfully"}, decode(t, w))
}
