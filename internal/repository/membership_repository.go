package repository

import (
	"context"

	"github.com/fitgrid-app/backend-chat/internal/domain"
)

// LeaveResult reports the outcome of a leave transaction
type LeaveResult struct {
	// Remaining is the number of active memberships after the leave
	Remaining int
	// RoomClosed is true when this leave was the last member out and the
	// room transitioned to CLOSED in the same transaction
	RoomClosed bool
	// AlreadyLeft is true when the caller had no active membership row;
	// a concurrent leave won the race
	AlreadyLeft bool
}

// MembershipRepository defines the interface for membership data access
type MembershipRepository interface {
	// Add inserts a membership or reactivates a previously-left row. It
	// takes the room row lock and fails if the room is not active.
	Add(ctx context.Context, m *domain.Membership) error
	// GetByRoomAndUser retrieves the membership row for a (room, user)
	// pair, whether active or left
	GetByRoomAndUser(ctx context.Context, roomID, userID string) (*domain.Membership, error)
	// SetHidden updates local visibility state for one user
	SetHidden(ctx context.Context, roomID, userID string, hidden bool) error
	// Leave marks the caller's membership as left and re-counts remaining
	// active members under the room row lock; when the count reaches zero
	// the room transitions to CLOSED inside the same transaction
	Leave(ctx context.Context, roomID, userID string, autoHide bool) (*LeaveResult, error)
	// CountActive returns the number of active memberships in a room
	CountActive(ctx context.Context, roomID string) (int, error)
	// ActiveMembers retrieves all active memberships in a room
	ActiveMembers(ctx context.Context, roomID string) ([]*domain.Membership, error)
	// IsActiveMemberOfChannel answers the webhook fast path: does the user
	// actively participate in the room backing this external channel id
	IsActiveMemberOfChannel(ctx context.Context, channelID, userID string) (bool, error)
	// UnhideForChannel resets hidden_for_user for every active member of
	// the channel's room except the message sender, returning the number
	// of rows re-surfaced
	UnhideForChannel(ctx context.Context, channelID, exceptUserID string) (int, error)
}
