// Package audit records security-relevant auth events. Values that could be
// replayed (codes, states, tokens) are masked before they reach the log.
package audit

import (
	"context"
	"strings"

	"github.com/dhruvspathak/Songify/internal/log"
	"github.com/google/uuid"
)

// Event names an auth flow transition.
type Event string

const (
	LoginInitiated    Event = "login_initiated"
	Unauthenticated   Event = "unauthenticated"
	MissingParameters Event = "missing_parameters"
	StateMismatch     Event = "state_mismatch"
	CodeReuse         Event = "code_reuse"
	ExchangeSuccess   Event = "exchange_success"
	ExchangeFailure   Event = "exchange_failure"
	RefreshSuccess    Event = "refresh_success"
	RefreshFailure    Event = "refresh_failure"
	TokenExpired      Event = "token_expired"
	Logout            Event = "logout"
	ConfigError       Event = "config_error"
)

// security events are logged at warn level.
var security = map[Event]bool{
	MissingParameters: true,
	StateMismatch:     true,
	CodeReuse:         true,
	ExchangeFailure:   true,
	RefreshFailure:    true,
	ConfigError:       true,
}

// MaskPrefix is how many leading characters of a secret stay visible.
const MaskPrefix = 4

// Mask renders value as [KIND_MASKED:abcd***]. Values no longer than twice
// MaskPrefix reveal at most half their length.
func Mask(kind, value string) string {
	label := strings.ToUpper(kind) + "_MASKED"
	if value == "" {
		return "[" + label + ":empty]"
	}
	n := MaskPrefix
	if len(value) <= 2*MaskPrefix {
		n = len(value) / 2
	}
	return "[" + label + ":" + value[:n] + "***]"
}

type requestIDKey struct{}

// NewRequestID returns a fresh request id.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID attaches a request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id on ctx, or "" if none.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Record logs event with fields. Callers must pass secrets through Mask.
func Record(ctx context.Context, event Event, fields map[string]any) {
	out := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		out[k] = v
	}
	out["event"] = string(event)
	if id := RequestID(ctx); id != "" {
		out["request_id"] = id
	}

	if security[event] {
		out["security"] = true
		log.LogWarnWithFields("audit", "Auth event", out)
		return
	}
	log.LogInfoWithFields("audit", "Auth event", out)
}
