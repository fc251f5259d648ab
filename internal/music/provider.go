// Package music integrates with the external streaming provider: OAuth code
// exchange for sign-in, profile fetch for account bootstrap, and track
// metadata lookup for post creation.
package music

import (
	"context"
	"errors"
)

// Common errors for provider operations.
var (
	// ErrTrackNotFound is returned when a track ID does not resolve at the
	// provider.
	ErrTrackNotFound = errors.New("track not found")

	// ErrInvalidCode is returned when an OAuth authorization code is
	// rejected by the provider.
	ErrInvalidCode = errors.New("invalid authorization code")

	// ErrProviderUnavailable is returned for transport failures and 5xx
	// responses from the provider. Retryable.
	ErrProviderUnavailable = errors.New("music provider unavailable")
)

// TokenSet is the result of an OAuth code exchange.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Profile is the provider's view of the signed-in account.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Track is provider track metadata, denormalized onto posts at creation time.
type Track struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Provider is the external streaming provider client.
type Provider interface {
	// ExchangeCode trades an OAuth authorization code for user tokens.
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)

	// GetProfile fetches the account profile for a user access token.
	GetProfile(ctx context.Context, accessToken string) (*Profile, error)

	// GetTrack fetches track metadata using the app-level token.
	GetTrack(ctx context.Context, trackID string) (*Track, error)
}
