package service

import (
	"context"

	"github.com/fitgrid-app/backend-chat/internal/domain"
)

// MembershipCacheStore is the fast-path cache the engine and the webhook
// authorizer share. Implemented by repository.MembershipCache over Redis.
type MembershipCacheStore interface {
	GetMembership(ctx context.Context, channelID, userID string) (member bool, hit bool, err error)
	SetMembership(ctx context.Context, channelID, userID string, member bool) error
	InvalidateMembership(ctx context.Context, channelID, userID string) error
	InvalidateChannel(ctx context.Context, channelID string) error
	GetActor(ctx context.Context, userID string) (*domain.User, bool, error)
	SetActor(ctx context.Context, user *domain.User) error
}
