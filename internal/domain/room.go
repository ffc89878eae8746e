package domain

import (
	"time"
)

// RoomKind identifies the conversation shape of a room
type RoomKind string

const (
	RoomKindDirect RoomKind = "direct"
	RoomKindGroup  RoomKind = "group"
	RoomKindEvent  RoomKind = "event"
)

// RoomStatus represents the lifecycle status of a room
type RoomStatus string

const (
	RoomStatusActive RoomStatus = "active"
	RoomStatusClosed RoomStatus = "closed"
)

// Role represents a user's role within a tenant
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleTrainer Role = "trainer"
	RoleMember  Role = "member"
)

// CanManageRooms reports whether the role may create or delete group rooms
func (r Role) CanManageRooms() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleTrainer
}

// IsTenantAdmin reports whether the role has tenant-wide administrative rights
func (r Role) IsTenantAdmin() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Room is the authoritative local record for a conversation. The messages
// themselves live in the external channel provider under ExternalChannelID.
type Room struct {
	ID                  string     `json:"id"`
	TenantID            string     `json:"tenant_id"`
	Kind                RoomKind   `json:"kind"`
	ExternalChannelID   string     `json:"external_channel_id"`
	ExternalChannelKind string     `json:"external_channel_kind"`
	DisplayName         string     `json:"display_name,omitempty"` // group/event rooms only
	Status              RoomStatus `json:"status"`
	EventRef            string     `json:"event_ref,omitempty"` // event rooms only
	CreatorID           string     `json:"creator_id"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsActive reports whether the room is open for membership changes
func (r *Room) IsActive() bool {
	return r.Status == RoomStatusActive
}

// Membership is one user's participation record in a room. Rows are never
// deleted on leave; LeftAt is set instead so the history stays auditable.
// HiddenForUser is purely local visibility state and is independent of
// provider-side channel membership.
type Membership struct {
	RoomID        string     `json:"room_id"`
	UserID        string     `json:"user_id"`
	HiddenForUser bool       `json:"hidden_for_user"`
	JoinedAt      time.Time  `json:"joined_at"`
	LeftAt        *time.Time `json:"left_at,omitempty"`
}

// IsActive reports whether the user currently participates in the room
func (m *Membership) IsActive() bool {
	return m.LeftAt == nil
}

// User is the resolver's view of an authenticated actor
type User struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
