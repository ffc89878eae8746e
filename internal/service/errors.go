package service

import (
	"errors"
	"fmt"
)

// Lifecycle engine errors. Local invariant violations are detected before
// any provider call; provider-side failures surface as the retryable
// provider.ErrUnavailable instead.
var (
	ErrRoomNotFound          = errors.New("room not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrNotAMember            = errors.New("user is not a member of this room")
	ErrNotDirectChat         = errors.New("operation only applies to direct rooms")
	ErrNotGroupChat          = errors.New("operation only applies to group rooms")
	ErrEventChannelImmutable = errors.New("event rooms close with their event and cannot be changed directly")
	ErrNoPermission          = errors.New("actor is not allowed to perform this operation")
	ErrOrphanConflict        = errors.New("channel is referenced by a local room; use the room delete path")
	ErrCrossTenantChannel    = errors.New("channel belongs to a different tenant")
	ErrCrossTenantUser       = errors.New("user belongs to a different tenant")
	ErrCannotChatWithSelf    = errors.New("cannot open a direct room with yourself")
	ErrRoomClosed            = errors.New("room is closed")
)

// GroupNotEmptyError is returned when deleting a group that still has
// active members; the caller must empty the group first
type GroupNotEmptyError struct {
	Remaining int
}

func (e *GroupNotEmptyError) Error() string {
	return fmt.Sprintf("group still has %d active members", e.Remaining)
}
