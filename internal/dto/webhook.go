package dto

// Webhook action kinds the provider asks authorization for
const (
	ActionJoin = "join"
	ActionRead = "read"
	ActionSend = "send"
)

// AuthorizeRequest is the provider's synchronous authorization callback
// payload, sent before it permits join/read/send on a channel
type AuthorizeRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
	Action    string `json:"action" binding:"required,oneof=join read send"`
}

// AuthorizeResponse is the allow/deny answer returned to the provider
type AuthorizeResponse struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

// ProviderEvent is one event from the provider firehose topic
type ProviderEvent struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id,omitempty"`
	SenderID  string `json:"sender_id,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`
	EventRef  string `json:"event_ref,omitempty"`
	EventName string `json:"event_name,omitempty"`
	CreatorID string `json:"creator_id,omitempty"`
}
