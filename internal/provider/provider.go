package provider

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when the provider cannot be reached or
	// answers with a server error; callers may retry
	ErrUnavailable = errors.New("channel provider unavailable")
	// ErrChannelNotFound is returned when the provider has no channel with
	// the given id
	ErrChannelNotFound = errors.New("channel not found in provider")
)

// ChannelProvider defines the interface to the external real-time channel
// provider that hosts and transports messages. It is a thin adapter: no
// business rules, no local state. The lifecycle engine is the only caller.
type ChannelProvider interface {
	// CreateChannel creates a channel in the provider
	CreateChannel(ctx context.Context, req *CreateChannelRequest) (*ChannelInfo, error)
	// DeleteChannel deletes a channel; hard removes it physically,
	// otherwise the provider archives it
	DeleteChannel(ctx context.Context, channelID string, hard bool) error
	// GetChannelMetadata retrieves channel metadata including the
	// provider-recorded owner
	GetChannelMetadata(ctx context.Context, channelID string) (*ChannelInfo, error)
	// SoftDeleteMessagesForUser removes every message in the channel from
	// one user's view only and returns the number of messages affected
	SoftDeleteMessagesForUser(ctx context.Context, channelID, userID string) (int, error)
}

// CreateChannelRequest represents a channel creation request
type CreateChannelRequest struct {
	ChannelID string            `json:"channel_id"`
	Kind      string            `json:"kind"`
	TenantTag string            `json:"tenant_tag"`
	CreatedBy string            `json:"created_by"`
	MemberIDs []string          `json:"member_ids,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ChannelInfo represents channel metadata as recorded by the provider
type ChannelInfo struct {
	ChannelID   string `json:"channel_id"`
	Kind        string `json:"kind"`
	TenantTag   string `json:"tenant_tag"`
	OwnerID     string `json:"owner_id"`
	MemberCount int    `json:"member_count"`
	Frozen      bool   `json:"frozen"`
}
