package dto

// CreateDirectRoomRequest represents a request to open (or return) the
// direct room between the actor and one other user
type CreateDirectRoomRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CreateGroupRoomRequest represents a request to create a group room
type CreateGroupRoomRequest struct {
	Name      string   `json:"name" binding:"required,min=1,max=255"`
	MemberIDs []string `json:"member_ids" binding:"omitempty,dive,required"`
}

// RoomResponse represents room data in responses
type RoomResponse struct {
	ID                string `json:"id"`
	TenantID          string `json:"tenant_id"`
	Kind              string `json:"kind"`
	ExternalChannelID string `json:"external_channel_id"`
	DisplayName       string `json:"display_name,omitempty"`
	Status            string `json:"status"`
	EventRef          string `json:"event_ref,omitempty"`
	CreatorID         string `json:"creator_id"`
	CreatedAt         string `json:"created_at"`
}

// SetVisibilityRequest hides or shows a direct room for the acting user
type SetVisibilityRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

// VisibilityResponse is the result of hide/show
type VisibilityResponse struct {
	Success  bool   `json:"success"`
	RoomID   string `json:"room_id"`
	IsHidden bool   `json:"is_hidden"`
}

// LeaveRoomRequest represents a request to leave a group room
type LeaveRoomRequest struct {
	// AutoHide defaults to true when absent
	AutoHide *bool `json:"auto_hide"`
}

// LeaveRoomResponse is the result of leaving a group room
type LeaveRoomResponse struct {
	Success          bool   `json:"success"`
	RoomID           string `json:"room_id"`
	RemainingMembers int    `json:"remaining_members"`
	GroupDeleted     bool   `json:"group_deleted"`
	AutoHidden       bool   `json:"auto_hidden"`
}

// DeleteGroupRequest represents a request to delete an empty group room
type DeleteGroupRequest struct {
	HardDelete bool `json:"hard_delete"`
}

// DeleteGroupResponse is the result of deleting a group room
type DeleteGroupResponse struct {
	Success           bool   `json:"success"`
	RoomID            string `json:"room_id"`
	DeletedFromStream bool   `json:"deleted_from_stream"`
}

// DeleteOrphanResponse is the result of removing a stray provider channel
type DeleteOrphanResponse struct {
	Success   bool   `json:"success"`
	ChannelID string `json:"channel_id"`
}

// DeleteConversationResponse is the result of delete-for-me on a direct room
type DeleteConversationResponse struct {
	Success         bool   `json:"success"`
	RoomID          string `json:"room_id"`
	MessagesDeleted int    `json:"messages_deleted"`
}

// AddMemberRequest represents a request to add a user to a group room
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// MemberResponse represents one membership in responses
type MemberResponse struct {
	UserID   string `json:"user_id"`
	JoinedAt string `json:"joined_at"`
	IsHidden bool   `json:"is_hidden"`
}

// ListRoomsQuery represents query parameters for listing visible rooms
type ListRoomsQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// SetDefaults sets default values for query parameters
func (q *ListRoomsQuery) SetDefaults() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
}

// ListRoomsResponse represents a paginated list of visible rooms
type ListRoomsResponse struct {
	Rooms      []RoomResponse `json:"rooms"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
}
