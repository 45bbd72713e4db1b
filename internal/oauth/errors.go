package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ory/fosite"
	"golang.org/x/oauth2"
)

// ProviderErrorKind tags the outcome of a failed call to the token endpoint.
type ProviderErrorKind int

const (
	// KindOther covers transport failures, timeouts and unrecognized
	// provider errors.
	KindOther ProviderErrorKind = iota
	// KindInvalidGrant means the code or refresh token was rejected.
	KindInvalidGrant
	// KindInvalidClient means the client credentials were rejected.
	KindInvalidClient
)

func (k ProviderErrorKind) String() string {
	switch k {
	case KindInvalidGrant:
		return fosite.ErrInvalidGrant.ErrorField
	case KindInvalidClient:
		return fosite.ErrInvalidClient.ErrorField
	default:
		return "other"
	}
}

// ProviderError is a classified token endpoint failure.
type ProviderError struct {
	Kind ProviderErrorKind
	// Code is the provider's "error" field, empty for transport failures.
	Code string
	// Description is the provider's "error_description", unvalidated.
	Description string
	// StatusCode is the provider's HTTP status, zero for transport failures.
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %s (%d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("provider request failed: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transport reports whether the provider never produced an OAuth error
// response, as with timeouts or refused connections.
func (e *ProviderError) Transport() bool {
	return e.StatusCode == 0
}

// HTTPStatus is the status the service answers with for this failure.
func (e *ProviderError) HTTPStatus() int {
	if e.Kind == KindInvalidGrant {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Classify turns any error from an x/oauth2 token call into a ProviderError.
// It never returns nil for a non-nil err.
func Classify(err error) *ProviderError {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	out := &ProviderError{Kind: KindOther, Err: err}

	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return out
	}

	out.Code = re.ErrorCode
	out.Description = re.ErrorDescription
	if re.Response != nil {
		out.StatusCode = re.Response.StatusCode
	}

	// x/oauth2 only parses the error fields for some content types.
	if out.Code == "" && len(re.Body) > 0 {
		var body struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(re.Body, &body) == nil {
			out.Code = body.Error
			out.Description = body.ErrorDescription
		}
	}
	if out.StatusCode == 0 {
		out.StatusCode = http.StatusBadRequest
	}

	switch out.Code {
	case fosite.ErrInvalidGrant.ErrorField:
		out.Kind = KindInvalidGrant
	case fosite.ErrInvalidClient.ErrorField:
		out.Kind = KindInvalidClient
	}
	return out
}
