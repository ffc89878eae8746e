package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/fitgrid-app/backend-chat/internal/domain"
	"github.com/fitgrid-app/backend-chat/internal/repository"
	"github.com/fitgrid-app/backend-chat/pkg/logger"
)

// ActorResolver resolves an authenticated actor to their tenant and role.
// Every other component consumes this; nothing else reads the users table.
type ActorResolver interface {
	// Resolve returns the actor's user record or ErrUserNotFound
	Resolve(ctx context.Context, userID string) (*domain.User, error)
}

// actorResolver implements ActorResolver with a Redis read-through cache so
// the webhook path does not hit Postgres for every provider callback
type actorResolver struct {
	userRepo repository.UserRepository
	cache    MembershipCacheStore
	log      *logger.Logger
}

// NewActorResolver creates a new ActorResolver
func NewActorResolver(userRepo repository.UserRepository, cache MembershipCacheStore, log *logger.Logger) ActorResolver {
	return &actorResolver{userRepo: userRepo, cache: cache, log: log}
}

// Resolve returns the actor's user record or ErrUserNotFound
func (r *actorResolver) Resolve(ctx context.Context, userID string) (*domain.User, error) {
	user, hit, err := r.cache.GetActor(ctx, userID)
	if err != nil {
		// Cache trouble degrades to a direct read
		r.log.Warn("actor cache read failed", zap.String("user_id", userID), zap.Error(err))
	} else if hit {
		return user, nil
	}

	user, err = r.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if err := r.cache.SetActor(ctx, user); err != nil {
		r.log.Warn("actor cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return user, nil
}
