package music

import (
	"context"
	"fmt"
)

// FakeProvider is an in-memory Provider for tests and local development.
// Codes, tokens, and tracks are seeded by the caller.
type FakeProvider struct {
	// Codes maps authorization codes to token sets.
	Codes map[string]*TokenSet
	// Profiles maps access tokens to profiles.
	Profiles map[string]*Profile
	// Tracks maps track IDs to metadata.
	Tracks map[string]*Track

	// Err, when set, is returned by every call.
	Err error
}

// NewFakeProvider creates an empty fake provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Codes:    make(map[string]*TokenSet),
		Profiles: make(map[string]*Profile),
		Tracks:   make(map[string]*Track),
	}
}

// SeedAccount registers a login code resolving to an access token and profile.
func (f *FakeProvider) SeedAccount(code, accessToken string, profile *Profile) {
	f.Codes[code] = &TokenSet{AccessToken: accessToken, RefreshToken: "refresh-" + accessToken, ExpiresIn: 3600}
	f.Profiles[accessToken] = profile
}

// SeedTrack registers track metadata.
func (f *FakeProvider) SeedTrack(track *Track) {
	f.Tracks[track.ID] = track
}

// ExchangeCode implements Provider.
func (f *FakeProvider) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	tokens, ok := f.Codes[code]
	if !ok {
		return nil, fmt.Errorf("code %q: %w", code, ErrInvalidCode)
	}
	return tokens, nil
}

// GetProfile implements Provider.
func (f *FakeProvider) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	profile, ok := f.Profiles[accessToken]
	if !ok {
		return nil, fmt.Errorf("unknown access token: %w", ErrProviderUnavailable)
	}
	return profile, nil
}

// GetTrack implements Provider.
func (f *FakeProvider) GetTrack(ctx context.Context, trackID string) (*Track, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	track, ok := f.Tracks[trackID]
	if !ok {
		return nil, fmt.Errorf("track %s: %w", trackID, ErrTrackNotFound)
	}
	return track, nil
}
