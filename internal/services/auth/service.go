// Package auth manages the HubSpot OAuth2 authorization-code + PKCE lifecycle.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/salesdiver/hublink/internal/common"
	"github.com/salesdiver/hublink/internal/interfaces"
	"github.com/salesdiver/hublink/internal/models"
)

// expirySkew is the margin subtracted from token expiry so a token that is
// about to lapse is never handed to an in-flight request.
const expirySkew = 60 * time.Second

var (
	// ErrNotConnected indicates no usable token state is stored.
	ErrNotConnected = errors.New("hubspot: not connected")

	// ErrStateMismatch indicates the callback's anti-forgery state was absent
	// or did not match the one issued by the most recent authorization.
	ErrStateMismatch = errors.New("hubspot: oauth state mismatch")

	// ErrMissingVerifier indicates a callback arrived with no authorization
	// attempt in flight.
	ErrMissingVerifier = errors.New("hubspot: missing PKCE code verifier")
)

// HTTPError is a non-2xx response from the token endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("hubspot token endpoint error: %s (status: %d)", e.Body, e.StatusCode)
}

// pkceSession is the ephemeral state of one authorization attempt. It is
// consumed exactly once by the callback handler and never reused.
type pkceSession struct {
	verifier string
	state    string
}

// Service implements interfaces.AuthService.
type Service struct {
	config     common.HubSpotConfig
	tokens     interfaces.TokenStore
	httpClient *http.Client
	logger     *common.Logger

	mu      sync.Mutex // guards session and serializes refreshes
	session *pkceSession
}

// Option configures the service
type Option func(*Service)

// WithHTTPClient sets the HTTP client used for token endpoint calls
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.httpClient = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new auth service
func NewService(config common.HubSpotConfig, tokens interfaces.TokenStore, opts ...Option) *Service {
	s := &Service{
		config:     config,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: config.GetTimeout()},
		logger:     common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginAuthorization starts a new authorization attempt, replacing any
// in-flight PKCE session, and returns the authorize URL to open in an
// external user-agent.
func (s *Service) BeginAuthorization() (*url.URL, error) {
	verifier, err := randomURLSafeString(64)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	state, err := randomURLSafeString(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	s.mu.Lock()
	s.session = &pkceSession{verifier: verifier, state: state}
	s.mu.Unlock()

	authURL, err := url.Parse(s.config.AuthorizeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid authorize URL: %w", err)
	}

	q := url.Values{}
	q.Set("client_id", s.config.ClientID)
	q.Set("redirect_uri", s.config.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(s.config.Scopes, " "))
	q.Set("state", state)
	q.Set("code_challenge", pkceChallenge(verifier))
	q.Set("code_challenge_method", "S256")
	authURL.RawQuery = q.Encode()

	s.logger.Info().Str("url", authURL.String()).Msg("HubSpot authorize URL generated")
	return authURL, nil
}

// HandleCallback consumes the OAuth redirect. The active PKCE session is
// discarded whether or not the exchange succeeds.
func (s *Service) HandleCallback(ctx context.Context, callback *url.URL) error {
	if callback.Scheme != s.config.CallbackScheme || callback.Host != s.config.CallbackHost {
		return fmt.Errorf("unexpected callback target %s://%s", callback.Scheme, callback.Host)
	}

	q := callback.Query()
	code := q.Get("code")
	state := q.Get("state")

	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session == nil {
		return ErrMissingVerifier
	}
	if state == "" || state != session.state {
		return ErrStateMismatch
	}
	if code == "" {
		return fmt.Errorf("callback missing authorization code")
	}

	if err := s.exchangeCode(ctx, code, session.verifier); err != nil {
		return err
	}
	s.logger.Info().Msg("HubSpot connected")
	return nil
}

// exchangeCode swaps the authorization code and verifier for tokens.
func (s *Service) exchangeCode(ctx context.Context, code, verifier string) error {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", s.config.ClientID)
	form.Set("client_secret", s.config.ClientSecret)
	form.Set("redirect_uri", s.config.RedirectURI)
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	return s.tokenRequest(ctx, form)
}

// refreshTokens exchanges the refresh token for a new access token.
func (s *Service) refreshTokens(ctx context.Context, refreshToken string) error {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", s.config.ClientID)
	form.Set("client_secret", s.config.ClientSecret)
	form.Set("refresh_token", refreshToken)
	return s.tokenRequest(ctx, form)
}

// tokenRequest POSTs a form-encoded grant to the token endpoint and persists
// the resulting record.
func (s *Service) tokenRequest(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token models.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}

	record := &models.TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	if err := s.tokens.SaveToken(ctx, record); err != nil {
		return fmt.Errorf("failed to persist token record: %w", err)
	}
	return nil
}

// EnsureAccessToken returns a bearer token, refreshing when the stored one is
// within the expiry skew. Refreshes are single-flight: concurrent callers
// serialize on the mutex and re-check expiry before issuing another refresh.
func (s *Service) EnsureAccessToken(ctx context.Context) (string, error) {
	record, err := s.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read token record: %w", err)
	}
	if record.HasAccessToken() && record.ExpiresAt.After(time.Now().Add(expirySkew)) {
		return record.AccessToken, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check after acquiring the refresh path: another caller may have
	// refreshed while we waited.
	record, err = s.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read token record: %w", err)
	}
	if record.HasAccessToken() && record.ExpiresAt.After(time.Now().Add(expirySkew)) {
		return record.AccessToken, nil
	}
	if !record.HasRefreshToken() {
		return "", ErrNotConnected
	}

	if err := s.refreshTokens(ctx, record.RefreshToken); err != nil {
		return "", err
	}

	record, err = s.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read refreshed token record: %w", err)
	}
	if !record.HasAccessToken() {
		return "", ErrNotConnected
	}
	s.logger.Debug().Time("expires_at", record.ExpiresAt).Msg("Access token refreshed")
	return record.AccessToken, nil
}

// Disconnect clears all persisted token state. Connection status becomes
// false immediately; no network call is made.
func (s *Service) Disconnect(ctx context.Context) error {
	if err := s.tokens.ClearToken(ctx); err != nil {
		return fmt.Errorf("failed to clear token state: %w", err)
	}
	s.logger.Info().Msg("HubSpot disconnected")
	return nil
}

// IsConnected reports whether any access or refresh token is stored. It is
// derived from the store on every call, so it is correct immediately after
// any token mutation.
func (s *Service) IsConnected(ctx context.Context) bool {
	record, err := s.tokens.Token(ctx)
	if err != nil {
		return false
	}
	return record.HasAccessToken() || record.HasRefreshToken()
}

// Ensure Service implements AuthService
var _ interfaces.AuthService = (*Service)(nil)
