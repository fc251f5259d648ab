package music

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPConfig configures the HTTP provider client.
type HTTPConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// TokenURL is the OAuth token endpoint.
	TokenURL string
	// APIBaseURL is the base URL for profile and track endpoints.
	APIBaseURL string

	Logger *slog.Logger
}

// HTTPProvider implements Provider against the streaming provider's REST API.
//
// Track lookups use an app-level client-credentials token, cached until
// shortly before expiry and refreshed on demand. User-token operations
// (profile fetch) pass the caller's token through.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger

	mu          sync.Mutex
	appToken    string
	appTokenExp time.Time
}

// NewHTTPProvider creates a provider client. Outbound requests are traced.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// ExchangeCode trades an OAuth authorization code for user tokens.
func (p *HTTPProvider) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {p.cfg.RedirectURI},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w: %w", ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("code exchange: %w: status %d", ErrProviderUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("code exchange: %w: status %d", ErrInvalidCode, resp.StatusCode)
	}

	var tokens TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("code exchange: %w: empty access token", ErrInvalidCode)
	}
	return &tokens, nil
}

// GetProfile fetches the account profile for a user access token.
func (p *HTTPProvider) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.APIBaseURL+"/me", nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile fetch: %w: %w", ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("profile fetch: %w: status %d", ErrProviderUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("profile fetch: unexpected status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}
	return &profile, nil
}

// GetTrack fetches track metadata using the app-level token.
func (p *HTTPProvider) GetTrack(ctx context.Context, trackID string) (*Track, error) {
	token, err := p.ensureAppToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.APIBaseURL+"/tracks/"+url.PathEscape(trackID), nil)
	if err != nil {
		return nil, fmt.Errorf("build track request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("track lookup: %w: %w", ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("track %s: %w", trackID, ErrTrackNotFound)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("track lookup: %w: status %d", ErrProviderUnavailable, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("track lookup: unexpected status %d: %s", resp.StatusCode, body)
	}

	var track Track
	if err := json.NewDecoder(resp.Body).Decode(&track); err != nil {
		return nil, fmt.Errorf("decode track response: %w", err)
	}
	return &track, nil
}

// ensureAppToken returns a valid client-credentials token, refreshing it when
// absent or within a minute of expiry.
func (p *HTTPProvider) ensureAppToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.appToken != "" && time.Until(p.appTokenExp) > time.Minute {
		return p.appToken, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build app token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("app token: %w: %w", ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("app token: %w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var tokens TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", fmt.Errorf("decode app token response: %w", err)
	}

	p.appToken = tokens.AccessToken
	p.appTokenExp = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	p.logger.DebugContext(ctx, "app token refreshed",
		slog.Int("expires_in", tokens.ExpiresIn))
	return p.appToken, nil
}
