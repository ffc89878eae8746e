package repository

import (
	"context"

	"github.com/fitgrid-app/backend-chat/internal/domain"
)

// CloseResult reports the outcome of a close-if-empty transaction
type CloseResult struct {
	// Closed is true when this call performed the ACTIVE -> CLOSED transition
	Closed bool
	// AlreadyClosed is true when the room was closed before this call
	AlreadyClosed bool
	// Remaining is the number of active memberships observed under the room
	// row lock; non-zero means the close was refused
	Remaining int
}

// RoomRepository defines the interface for room data access
type RoomRepository interface {
	// Create creates a new room
	Create(ctx context.Context, room *domain.Room) error
	// GetByID retrieves a room by ID
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	// GetByChannelID retrieves a room by its external channel id
	GetByChannelID(ctx context.Context, channelID string) (*domain.Room, error)
	// GetByEventRef retrieves the event room for an event within a tenant
	GetByEventRef(ctx context.Context, tenantID, eventRef string) (*domain.Room, error)
	// CloseIfEmpty transitions the room to CLOSED only when no active
	// memberships remain, re-counting under the room row lock
	CloseIfEmpty(ctx context.Context, roomID string) (*CloseResult, error)
	// Close unconditionally transitions the room to CLOSED
	Close(ctx context.Context, roomID string) error
	// HardDelete removes the room row and its membership history
	HardDelete(ctx context.Context, roomID string) error
	// ListVisibleForUser retrieves the rooms a user actively participates
	// in and has not hidden, newest first
	ListVisibleForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Room, int, error)
}
