package ioutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrTooLarge is returned when a body exceeds the caller's limit.
var ErrTooLarge = errors.New("body too large")

// ReadLimited reads up to limit bytes from r and returns the content as a string.
// If reading fails, returns a string describing the read failure instead of silencing
// the error. This is intended for including response bodies in error messages and logs.
func ReadLimited(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return string(body)
}

// DecodeJSONLimited decodes a single JSON value from r into v, failing with
// ErrTooLarge rather than truncating when r holds more than limit bytes.
func DecodeJSONLimited(r io.Reader, limit int64, v any) error {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > limit {
		return ErrTooLarge
	}
	if len(body) == 0 {
		return io.EOF
	}
	return json.Unmarshal(body, v)
}
