package repository

import (
	"context"

	"github.com/fitgrid-app/backend-chat/internal/domain"
)

// UserRepository defines the interface for user data access. The chat
// service only reads users; the identity service owns their lifecycle.
type UserRepository interface {
	// GetByID retrieves an active user by ID
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
