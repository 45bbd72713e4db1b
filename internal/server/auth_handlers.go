package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/dhruvspathak/Songify/internal/audit"
	"github.com/dhruvspathak/Songify/internal/cookie"
	"github.com/dhruvspathak/Songify/internal/crypto"
	"github.com/dhruvspathak/Songify/internal/envutil"
	"github.com/dhruvspathak/Songify/internal/idp"
	"github.com/dhruvspathak/Songify/internal/ioutil"
	jsonwriter "github.com/dhruvspathak/Songify/internal/json"
	"github.com/dhruvspathak/Songify/internal/log"
	"github.com/dhruvspathak/Songify/internal/oauth"
	"github.com/dhruvspathak/Songify/internal/storage"
	"github.com/dhruvspathak/Songify/internal/validate"
	"golang.org/x/sync/singleflight"
)

// Response messages shared with the frontend
const (
	msgNotAuthenticated   = "Not authenticated"
	msgTokenExpired       = "Token expired"
	msgStateMismatch      = "State mismatch"
	msgMissingParameters  = "Missing required parameters"
	msgCodeAlreadyUsed    = "Authorization code already used"
	msgNoRefreshToken     = "No refresh token available"
	msgServerConfigError  = "Server configuration error"
	msgAuthFailed         = "Authentication failed"
	msgRefreshFailed      = "Failed to refresh token"
	msgUserFetchFailed    = "Failed to fetch user data"
	msgTokenRetrieval     = "Failed to retrieve access token"
	msgDebugFailed        = "Debug check failed"
	msgInternalError      = "Internal server error"
	msgAuthSuccess        = "Authentication successful"
	msgTokenRefreshed     = "Token refreshed successfully"
	msgLogoutSuccess      = "Logged out successfully"
	msgInvalidGrantDetail = "Authorization code is invalid or expired. Please try logging in again."
	msgInvalidClient      = "Invalid client credentials. Please check your Spotify app configuration."
)

// maxCallbackBody bounds the callback request body.
const maxCallbackBody = 16 << 10

// AuthConfig holds the flow settings that do not come from collaborators.
type AuthConfig struct {
	Environment envutil.Environment
	// ReplayTTL is how long a redeemed code stays blocked.
	ReplayTTL time.Duration
	// MissingConfig names required settings that are unset. When non-empty,
	// login and callback answer with a configuration error.
	MissingConfig []string
}

// AuthHandlers implements the browser-facing authorization code flow. All
// session state lives in cookies; the only server-side state is the used-code
// store.
type AuthHandlers struct {
	provider  idp.Provider
	cookies   *cookie.Manager
	usedCodes storage.UsedCodeStore
	config    AuthConfig

	refreshes singleflight.Group
}

// NewAuthHandlers creates new auth handlers with dependency injection
func NewAuthHandlers(provider idp.Provider, cookies *cookie.Manager, usedCodes storage.UsedCodeStore, cfg AuthConfig) *AuthHandlers {
	if cfg.ReplayTTL <= 0 {
		cfg.ReplayTTL = storage.DefaultUsedCodeTTL
	}
	return &AuthHandlers{
		provider:  provider,
		cookies:   cookies,
		usedCodes: usedCodes,
		config:    cfg,
	}
}

// Configured reports whether the provider credentials are present.
func (h *AuthHandlers) Configured() bool {
	return len(h.config.MissingConfig) == 0
}

// details returns sanitized diagnostic text for error envelopes. Production
// responses never carry it.
func (h *AuthHandlers) details(raw any) string {
	if h.config.Environment.IsProduction() {
		return ""
	}
	return validate.ErrorMessage(raw)
}

// LoginHandler starts the flow: it issues a state cookie and redirects to the
// provider's consent screen.
func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.Configured() {
		audit.Record(ctx, audit.ConfigError, map[string]any{"missing": h.config.MissingConfig})
		jsonwriter.WriteInternalServerError(w, msgServerConfigError)
		return
	}

	state, err := crypto.GenerateState()
	if err != nil {
		log.LogErrorWithFields("login", "Failed to generate state", map[string]any{"error": err.Error()})
		jsonwriter.WriteInternalServerError(w, msgInternalError)
		return
	}

	authURL, err := h.provider.AuthURL(state)
	if err != nil {
		// Never redirect anywhere but the provider.
		audit.Record(ctx, audit.ConfigError, map[string]any{"error": err.Error()})
		jsonwriter.WriteInternalServerError(w, msgServerConfigError)
		return
	}

	if err := h.cookies.SetState(w, state); err != nil {
		log.LogErrorWithFields("login", "Failed to set state cookie", map[string]any{"error": err.Error()})
		jsonwriter.WriteInternalServerError(w, msgInternalError)
		return
	}

	audit.Record(ctx, audit.LoginInitiated, map[string]any{
		"state": audit.Mask("state", state),
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// callbackParams reads code and state from a JSON or form-encoded body.
// Values are returned raw for the validator.
func callbackParams(w http.ResponseWriter, r *http.Request) (code, state any) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBody)
		if err := r.ParseForm(); err != nil {
			return nil, nil
		}
		if r.PostForm.Has("code") {
			code = r.PostForm.Get("code")
		}
		if r.PostForm.Has("state") {
			state = r.PostForm.Get("state")
		}
		return code, state
	}

	var body map[string]any
	if err := ioutil.DecodeJSONLimited(r.Body, maxCallbackBody, &body); err != nil {
		return nil, nil
	}
	return body["code"], body["state"]
}

type callbackResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
}

// CallbackHandler redeems the authorization code the frontend received from
// the provider. State is checked before the replay guard, and the code is
// claimed before any network call.
func (h *AuthHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.Configured() {
		audit.Record(ctx, audit.ConfigError, map[string]any{"missing": h.config.MissingConfig})
		jsonwriter.WriteInternalServerError(w, msgServerConfigError)
		return
	}

	rawCode, rawState := callbackParams(w, r)
	code, codeOK := validate.AuthCode(rawCode)
	state, stateOK := validate.State(rawState)
	if !codeOK || !stateOK {
		audit.Record(ctx, audit.MissingParameters, map[string]any{
			"has_code":  rawCode != nil,
			"has_state": rawState != nil,
		})
		jsonwriter.WriteBadRequest(w, msgMissingParameters)
		return
	}

	stored, err := h.cookies.State(r)
	if err != nil || subtle.ConstantTimeCompare([]byte(state), []byte(stored)) != 1 {
		audit.Record(ctx, audit.StateMismatch, map[string]any{
			"state":        audit.Mask("state", state),
			"cookie_found": err == nil,
		})
		jsonwriter.WriteBadRequest(w, msgStateMismatch)
		return
	}
	h.cookies.ClearState(w)

	claimed, err := h.usedCodes.MarkIfUnused(ctx, code, h.config.ReplayTTL)
	if err != nil {
		log.LogErrorWithFields("callback", "Used-code store unavailable", map[string]any{
			"error": err.Error(),
			"code":  audit.Mask("code", code),
		})
		jsonwriter.WriteInternalServerError(w, msgInternalError)
		return
	}
	if !claimed {
		audit.Record(ctx, audit.CodeReuse, map[string]any{"code": audit.Mask("code", code)})
		jsonwriter.WriteBadRequest(w, msgCodeAlreadyUsed)
		return
	}

	pair, err := h.exchange(ctx, code)
	if err != nil {
		h.release(ctx, code)
		h.writeExchangeError(ctx, w, code, err)
		return
	}

	if err := h.setTokenCookies(w, pair); err != nil {
		h.release(ctx, code)
		log.LogErrorWithFields("callback", "Failed to set token cookies", map[string]any{"error": err.Error()})
		jsonwriter.WriteInternalServerError(w, msgAuthFailed)
		return
	}

	audit.Record(ctx, audit.ExchangeSuccess, map[string]any{
		"code":        audit.Mask("code", code),
		"expires_in":  pair.ExpiresIn,
		"has_refresh": pair.RefreshToken != "",
	})
	_ = jsonwriter.Write(w, callbackResponse{
		Success:   true,
		Message:   msgAuthSuccess,
		ExpiresIn: pair.ExpiresIn,
	})
}

func (h *AuthHandlers) exchange(ctx context.Context, code string) (validate.TokenPair, error) {
	tok, err := h.provider.ExchangeCode(ctx, code)
	if err != nil {
		return validate.TokenPair{}, err
	}
	return validate.ValidateTokenPayload(idp.TokenPayload(tok))
}

// release lets a code whose exchange failed be retried.
func (h *AuthHandlers) release(ctx context.Context, code string) {
	if err := h.usedCodes.Remove(context.WithoutCancel(ctx), code); err != nil {
		log.LogWarnWithFields("callback", "Failed to release code", map[string]any{
			"error": err.Error(),
			"code":  audit.Mask("code", code),
		})
	}
}

func (h *AuthHandlers) writeExchangeError(ctx context.Context, w http.ResponseWriter, code string, err error) {
	fields := map[string]any{"code": audit.Mask("code", code)}

	if errors.Is(err, validate.ErrInvalidTokenPayload) {
		fields["reason"] = "invalid_token_payload"
		fields["error"] = err.Error()
		audit.Record(ctx, audit.ExchangeFailure, fields)
		jsonwriter.WriteError(w, http.StatusInternalServerError, msgAuthFailed, h.details(err))
		return
	}

	pe := oauth.Classify(err)
	fields["reason"] = pe.Kind.String()
	fields["status"] = pe.StatusCode
	fields["transport"] = pe.Transport()
	audit.Record(ctx, audit.ExchangeFailure, fields)

	message := msgAuthFailed
	switch pe.Kind {
	case oauth.KindInvalidGrant:
		message = msgInvalidGrantDetail
	case oauth.KindInvalidClient:
		message = msgInvalidClient
	}

	var details string
	if pe.Description != "" {
		details = h.details(pe.Description)
	} else if pe.Transport() {
		details = h.details("token exchange failed")
	}
	jsonwriter.WriteError(w, pe.HTTPStatus(), message, details)
}

func (h *AuthHandlers) setTokenCookies(w http.ResponseWriter, pair validate.TokenPair) error {
	if err := h.cookies.SetAccessToken(w, pair.AccessToken, pair.ExpiresIn); err != nil {
		return fmt.Errorf("access token cookie: %w", err)
	}
	if pair.RefreshToken != "" {
		if err := h.cookies.SetRefreshToken(w, pair.RefreshToken); err != nil {
			return fmt.Errorf("refresh token cookie: %w", err)
		}
	}
	return nil
}

// accessToken returns the validated access token cookie, writing 401 when it
// is missing or malformed.
func (h *AuthHandlers) accessToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw, err := h.cookies.AccessToken(r)
	if err == nil {
		if token, ok := validate.Token(raw); ok {
			return token, true
		}
	}
	audit.Record(r.Context(), audit.Unauthenticated, map[string]any{"path": r.URL.Path})
	jsonwriter.WriteUnauthorized(w, msgNotAuthenticated)
	return "", false
}

func (h *AuthHandlers) writeTokenExpired(ctx context.Context, w http.ResponseWriter) {
	audit.Record(ctx, audit.TokenExpired, nil)
	jsonwriter.WriteErrorResponse(w, http.StatusUnauthorized, jsonwriter.ErrorResponse{
		Error:         msgTokenExpired,
		RefreshNeeded: true,
	})
}

type meResponse struct {
	Success bool      `json:"success"`
	User    *idp.User `json:"user"`
}

// MeHandler returns the provider profile for the session. A provider 401
// asks the client to refresh.
func (h *AuthHandlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := h.accessToken(w, r)
	if !ok {
		return
	}

	user, err := h.provider.CurrentUser(r.Context(), token)
	if err != nil {
		if errors.Is(err, idp.ErrTokenExpired) {
			h.writeTokenExpired(r.Context(), w)
			return
		}
		log.LogErrorWithFields("me", "Failed to fetch profile", map[string]any{"error": err.Error()})
		jsonwriter.WriteInternalServerError(w, msgUserFetchFailed)
		return
	}

	_ = jsonwriter.Write(w, meResponse{Success: true, User: user})
}

type tokenResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
}

// TokenHandler hands the access token to the frontend for direct provider
// calls. It does not contact the provider.
func (h *AuthHandlers) TokenHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	if err := jsonwriter.Write(w, tokenResponse{Success: true, AccessToken: token}); err != nil {
		log.LogErrorWithFields("token", msgTokenRetrieval, map[string]any{"error": err.Error()})
	}
}

type refreshResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
}

// refreshed is the shared result of one provider refresh.
type refreshed struct {
	pair    validate.TokenPair
	rotated bool
}

// RefreshHandler trades the refresh cookie for a new access token.
// Concurrent refreshes of the same token share one provider call. On failure
// the existing cookies are left untouched.
func (h *AuthHandlers) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := h.cookies.RefreshToken(r)
	refreshToken, valid := validate.Token(raw)
	if err != nil || !valid {
		audit.Record(ctx, audit.Unauthenticated, map[string]any{"path": r.URL.Path, "reason": "no_refresh_token"})
		jsonwriter.WriteUnauthorized(w, msgNoRefreshToken)
		return
	}

	v, err, shared := h.refreshes.Do(refreshToken, func() (any, error) {
		res, err := h.provider.Refresh(context.WithoutCancel(ctx), refreshToken)
		if err != nil {
			return nil, err
		}
		pair, err := validate.ValidateTokenPayload(idp.TokenPayload(res.Token))
		if err != nil {
			return nil, err
		}
		return refreshed{pair: pair, rotated: res.Rotated}, nil
	})
	if err != nil {
		fields := map[string]any{
			"refresh_token": audit.Mask("token", refreshToken),
			"shared":        shared,
		}
		if errors.Is(err, validate.ErrInvalidTokenPayload) {
			fields["reason"] = "invalid_token_payload"
		} else {
			pe := oauth.Classify(err)
			fields["reason"] = pe.Kind.String()
			fields["status"] = pe.StatusCode
		}
		audit.Record(ctx, audit.RefreshFailure, fields)
		jsonwriter.WriteInternalServerError(w, msgRefreshFailed)
		return
	}

	out := v.(refreshed)
	pair := out.pair
	if err := h.setTokenCookies(w, pair); err != nil {
		log.LogErrorWithFields("refresh", "Failed to set token cookies", map[string]any{"error": err.Error()})
		jsonwriter.WriteInternalServerError(w, msgRefreshFailed)
		return
	}

	audit.Record(ctx, audit.RefreshSuccess, map[string]any{
		"expires_in": pair.ExpiresIn,
		"rotated":    out.rotated,
		"shared":     shared,
	})
	_ = jsonwriter.Write(w, refreshResponse{
		Success:   true,
		Message:   msgTokenRefreshed,
		ExpiresIn: pair.ExpiresIn,
	})
}

// LogoutHandler clears the token cookies. It always succeeds.
func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearTokens(w)
	audit.Record(r.Context(), audit.Logout, nil)
	jsonwriter.WriteMessage(w, msgLogoutSuccess)
}

type debugUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Country     string `json:"country,omitempty"`
	Product     string `json:"product,omitempty"`
}

type endpointTest struct {
	Accessible bool   `json:"accessible"`
	Status     int    `json:"status,omitempty"`
	Path       string `json:"path"`
	Error      string `json:"error,omitempty"`
}

type debugResponse struct {
	Success         bool                    `json:"success"`
	User            debugUser               `json:"user"`
	TokenValid      bool                    `json:"tokenValid"`
	TokenInfo       string                  `json:"tokenInfo"`
	RequestedScopes []string                `json:"requestedScopes"`
	EndpointTests   map[string]endpointTest `json:"endpointTests"`
}

// DebugHandler reports which resource endpoints the session token can reach.
func (h *AuthHandlers) DebugHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := h.accessToken(w, r)
	if !ok {
		return
	}

	user, err := h.provider.CurrentUser(ctx, token)
	var probes []idp.EndpointProbe
	if err == nil {
		probes, err = h.provider.ProbeEndpoints(ctx, token)
	}
	if err != nil {
		if errors.Is(err, idp.ErrTokenExpired) {
			h.writeTokenExpired(ctx, w)
			return
		}
		log.LogErrorWithFields("debug", "Debug check failed", map[string]any{"error": err.Error()})
		jsonwriter.WriteError(w, http.StatusInternalServerError, msgDebugFailed, h.details(err))
		return
	}

	tests := make(map[string]endpointTest, len(probes))
	for _, p := range probes {
		tests[p.Endpoint] = endpointTest{
			Accessible: p.Success,
			Status:     p.Status,
			Path:       p.Path,
			Error:      p.Error,
		}
	}

	_ = jsonwriter.Write(w, debugResponse{
		Success: true,
		User: debugUser{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
			Country:     user.Country,
			Product:     user.Product,
		},
		TokenValid:      true,
		TokenInfo:       "Spotify uses opaque tokens; scope access is inferred from endpoint results",
		RequestedScopes: h.provider.Scopes(),
		EndpointTests:   tests,
	})
}
