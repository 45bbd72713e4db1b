package oauth

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func retrieveError(status int, code, body string) error {
	return &oauth2.RetrieveError{
		Response:  &http.Response{StatusCode: status},
		Body:      []byte(body),
		ErrorCode: code,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		kind       ProviderErrorKind
		code       string
		httpStatus int
		transport  bool
	}{
		{
			name:       "invalid grant",
			err:        retrieveError(400, "invalid_grant", `{"error":"invalid_grant"}`),
			kind:       KindInvalidGrant,
			code:       "invalid_grant",
			httpStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid client",
			err:        retrieveError(401, "invalid_client", `{"error":"invalid_client"}`),
			kind:       KindInvalidClient,
			code:       "invalid_client",
			httpStatus: http.StatusInternalServerError,
		},
		{
			name:       "error only in body",
			err:        retrieveError(400, "", `{"error":"invalid_grant","error_description":"Invalid authorization code"}`),
			kind:       KindInvalidGrant,
			code:       "invalid_grant",
			httpStatus: http.StatusBadRequest,
		},
		{
			name:       "other provider error",
			err:        retrieveError(400, "unsupported_grant_type", ``),
			kind:       KindOther,
			code:       "unsupported_grant_type",
			httpStatus: http.StatusInternalServerError,
		},
		{
			name:       "provider 5xx without body",
			err:        retrieveError(503, "", `upstream unavailable`),
			kind:       KindOther,
			httpStatus: http.StatusInternalServerError,
		},
		{
			name:       "timeout",
			err:        fmt.Errorf("exchange: %w", context.DeadlineExceeded),
			kind:       KindOther,
			httpStatus: http.StatusInternalServerError,
			transport:  true,
		},
		{
			name:       "wrapped retrieve error",
			err:        fmt.Errorf("refresh: %w", retrieveError(400, "invalid_grant", "")),
			kind:       KindInvalidGrant,
			code:       "invalid_grant",
			httpStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := Classify(tt.err)
			require.NotNil(t, pe)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.code, pe.Code)
			assert.Equal(t, tt.httpStatus, pe.HTTPStatus())
			assert.Equal(t, tt.transport, pe.Transport())
			assert.ErrorIs(t, pe, tt.err)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassifyIdempotent(t *testing.T) {
	first := Classify(retrieveError(400, "invalid_client", ""))
	assert.Same(t, first, Classify(fmt.Errorf("wrapped: %w", first)))
}

func TestProviderErrorKindString(t *testing.T) {
	assert.Equal(t, "invalid_grant", KindInvalidGrant.String())
	assert.Equal(t, "invalid_client", KindInvalidClient.String())
	assert.Equal(t, "other", KindOther.String())
}
