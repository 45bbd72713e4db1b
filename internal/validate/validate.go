// Package validate is the single gate for OAuth parameters arriving from the
// browser and for fields returned by the token endpoint. Nothing from either
// source reaches a cookie, a log line or a response body without passing here.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
)

const (
	MaxAuthCodeLength     = 512
	MaxStateLength        = 128
	MaxTokenLength        = 2048
	MaxErrorMessageLength = 500

	MinExpiresIn = 1
	MaxExpiresIn = 86400 * 365
)

var (
	// ErrInvalidTokenPayload wraps every TokenPayload rejection.
	ErrInvalidTokenPayload = errors.New("invalid token payload")

	urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	// Strips markup characters, script URLs and inline handlers from messages.
	unsafeMessage = regexp.MustCompile(`(?i)[<>'"&]|javascript:|on\w+=`)
)

// coerce converts a scalar JSON or form value to its string form.
// Objects, arrays and null are rejected.
func coerce(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

// AuthCode returns the authorization code if it is a non-empty URL-safe token
// of at most MaxAuthCodeLength characters.
func AuthCode(raw any) (string, bool) {
	s, ok := coerce(raw)
	if !ok || s == "" || len(s) > MaxAuthCodeLength {
		return "", false
	}
	if !urlSafe.MatchString(s) {
		return "", false
	}
	return s, true
}

// State returns the state parameter if it is non-empty, alphanumeric and at
// most MaxStateLength characters.
func State(raw any) (string, bool) {
	s, ok := coerce(raw)
	if !ok || s == "" || len(s) > MaxStateLength {
		return "", false
	}
	if !govalidator.IsAlphanumeric(s) {
		return "", false
	}
	return s, true
}

// Token returns an access or refresh token if it has the provider's
// base64url shape and is at most MaxTokenLength characters.
func Token(raw any) (string, bool) {
	s, ok := coerce(raw)
	if !ok || s == "" || len(s) > MaxTokenLength {
		return "", false
	}
	if !urlSafe.MatchString(s) {
		return "", false
	}
	return s, true
}

// ExpiresIn returns a lifetime in seconds if raw is an integer within
// [MinExpiresIn, MaxExpiresIn]. Numeric strings are accepted.
func ExpiresIn(raw any) (int, bool) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(v)
		if s == "" || !govalidator.IsFloat(s) {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < MinExpiresIn || f > MaxExpiresIn {
		return 0, false
	}
	return int(f), true
}

// TokenPair is a validated token endpoint response.
type TokenPair struct {
	AccessToken  string
	RefreshToken string // empty when the provider did not issue one
	ExpiresIn    int
}

// TokenPayload is the unvalidated shape of a token endpoint response.
type TokenPayload struct {
	AccessToken  any
	RefreshToken any
	ExpiresIn    any
}

// ValidateTokenPayload checks a token endpoint response. The access token and
// expires_in are required. A refresh token, when present, must be well formed.
func ValidateTokenPayload(p TokenPayload) (TokenPair, error) {
	access, ok := Token(p.AccessToken)
	if !ok {
		return TokenPair{}, fmt.Errorf("%w: access token", ErrInvalidTokenPayload)
	}

	var refresh string
	if s, present := coerce(p.RefreshToken); present && s != "" {
		refresh, ok = Token(s)
		if !ok {
			return TokenPair{}, fmt.Errorf("%w: refresh token", ErrInvalidTokenPayload)
		}
	}

	expiresIn, ok := ExpiresIn(p.ExpiresIn)
	if !ok {
		return TokenPair{}, fmt.Errorf("%w: expires_in", ErrInvalidTokenPayload)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
	}, nil
}

// ErrorMessage makes arbitrary error text safe to place in a response body.
// Unlike the gate functions it never rejects; it strips and truncates.
func ErrorMessage(raw any) string {
	s, ok := coerce(raw)
	if !ok {
		if err, isErr := raw.(error); isErr {
			s, ok = err.Error(), true
		}
	}
	if !ok {
		return "An error occurred"
	}

	s = strings.TrimSpace(unsafeMessage.ReplaceAllString(s, ""))
	if len(s) > MaxErrorMessageLength {
		s = strings.ToValidUTF8(s[:MaxErrorMessageLength], "")
	}
	if s == "" {
		return "An error occurred"
	}
	return s
}
