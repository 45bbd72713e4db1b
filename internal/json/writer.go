package json

import (
	"encoding/json"
	"net/http"

	"github.com/dhruvspathak/Songify/internal/log"
)

// ErrorResponse is the envelope for every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	// RefreshNeeded tells the client to call /refresh and retry.
	RefreshNeeded bool `json:"refresh_needed,omitempty"`
}

// MessageResponse is the envelope for successful requests that only report an outcome
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteResponse writes a JSON response with the given status code
func WriteResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.LogError("Failed to encode JSON response: %v", err)
		return err
	}
	return nil
}

// Write writes a JSON response with 200 OK status
func Write(w http.ResponseWriter, data any) error {
	return WriteResponse(w, http.StatusOK, data)
}

// WriteMessage writes {success:true, message}
func WriteMessage(w http.ResponseWriter, message string) {
	_ = Write(w, MessageResponse{Success: true, Message: message})
}

// WriteErrorResponse writes a prepared error envelope
func WriteErrorResponse(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	resp.Success = false
	if err := WriteResponse(w, statusCode, resp); err != nil {
		// Fallback to plain text error if JSON encoding fails
		http.Error(w, resp.Error, statusCode)
	}
}

// WriteError writes {success:false, error, details?}. details must already be sanitized.
func WriteError(w http.ResponseWriter, statusCode int, message string, details string) {
	WriteErrorResponse(w, statusCode, ErrorResponse{Error: message, Details: details})
}

// Common error responses
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, "")
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, "")
}

func WriteInternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, "")
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, "")
}

func WriteMethodNotAllowed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusMethodNotAllowed, message, "")
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, "")
}
