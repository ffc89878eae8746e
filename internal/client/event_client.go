package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// EventClient checks event registration with the event service. The chat
// service consumes this for join eligibility on event rooms; it never owns
// event state.
type EventClient interface {
	// IsRegistered reports whether the user is registered for the event
	IsRegistered(ctx context.Context, tenantID, eventRef, userID string) (bool, error)
}

// HTTPEventClient implements EventClient using HTTP
type HTTPEventClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPEventClient creates a new HTTP event client
func NewHTTPEventClient(baseURL string, timeout time.Duration) *HTTPEventClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPEventClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsRegistered reports whether the user is registered for the event
func (c *HTTPEventClient) IsRegistered(ctx context.Context, tenantID, eventRef, userID string) (bool, error) {
	reqURL := fmt.Sprintf("%s/api/v1/events/%s/registrations/%s?tenant_id=%s",
		c.baseURL, url.PathEscape(eventRef), url.PathEscape(userID), url.QueryEscape(tenantID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query event service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("event service returned status %d", resp.StatusCode)
	}

	var apiResponse struct {
		Success bool `json:"success"`
		Data    struct {
			Registered bool `json:"registered"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return apiResponse.Success && apiResponse.Data.Registered, nil
}

// NoOpEventClient denies all registrations; used when the event service is
// not deployed
type NoOpEventClient struct{}

// NewNoOpEventClient creates a new no-op event client
func NewNoOpEventClient() *NoOpEventClient {
	return &NoOpEventClient{}
}

// IsRegistered always reports false
func (c *NoOpEventClient) IsRegistered(ctx context.Context, tenantID, eventRef, userID string) (bool, error) {
	return false, nil
}
