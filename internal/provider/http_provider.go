package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPChannelProvider implements ChannelProvider over the provider's REST API
type HTTPChannelProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// HTTPProviderConfig holds connection settings for the provider API
type HTTPProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPChannelProvider creates a new HTTP channel provider client
func NewHTTPChannelProvider(cfg *HTTPProviderConfig) *HTTPChannelProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPChannelProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateChannel creates a channel in the provider
func (p *HTTPChannelProvider) CreateChannel(ctx context.Context, req *CreateChannelRequest) (*ChannelInfo, error) {
	info := &ChannelInfo{}
	if err := p.do(ctx, http.MethodPost, "/v1/channels", req, info); err != nil {
		return nil, err
	}
	return info, nil
}

// DeleteChannel deletes a channel in the provider. Deleting an already
// absent channel returns ErrChannelNotFound so callers can decide whether
// the operation was already done.
func (p *HTTPChannelProvider) DeleteChannel(ctx context.Context, channelID string, hard bool) error {
	path := fmt.Sprintf("/v1/channels/%s?hard=%t", url.PathEscape(channelID), hard)
	return p.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetChannelMetadata retrieves channel metadata from the provider
func (p *HTTPChannelProvider) GetChannelMetadata(ctx context.Context, channelID string) (*ChannelInfo, error) {
	info := &ChannelInfo{}
	path := fmt.Sprintf("/v1/channels/%s", url.PathEscape(channelID))
	if err := p.do(ctx, http.MethodGet, path, nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

// SoftDeleteMessagesForUser soft-deletes all messages in a channel for one
// user and returns the number of messages removed from their view
func (p *HTTPChannelProvider) SoftDeleteMessagesForUser(ctx context.Context, channelID, userID string) (int, error) {
	var result struct {
		DeletedCount int `json:"deleted_count"`
	}
	path := fmt.Sprintf("/v1/channels/%s/users/%s/messages",
		url.PathEscape(channelID), url.PathEscape(userID))
	if err := p.do(ctx, http.MethodDelete, path, nil, &result); err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// do performs one provider API call and decodes the enveloped response.
// Transport failures and 5xx answers map to ErrUnavailable, 404 maps to
// ErrChannelNotFound.
func (p *HTTPChannelProvider) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrChannelNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: provider returned status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("provider rejected request (status %d): %s", resp.StatusCode, apiErr.Error)
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	if !envelope.Success {
		return fmt.Errorf("provider error: %s", envelope.Error)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode provider payload: %w", err)
	}
	return nil
}
