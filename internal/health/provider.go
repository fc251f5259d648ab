package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ProviderChecker implements health checking for the external music provider.
type ProviderChecker struct {
	url    string
	client *http.Client
}

// NewProviderChecker creates a new music provider health checker.
// The url should be the provider's API base URL.
func NewProviderChecker(url string) *ProviderChecker {
	return &ProviderChecker{
		url: url,
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// HealthCheck checks that the provider API is reachable. The provider has no
// dedicated health endpoint, so any response below 500 counts as reachable
// (an unauthenticated request typically returns 401).
func (p *ProviderChecker) HealthCheck(ctx context.Context) error {
	if p.url == "" {
		return fmt.Errorf("provider url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach music provider: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("music provider unhealthy: status code %d", resp.StatusCode)
	}

	return nil
}
