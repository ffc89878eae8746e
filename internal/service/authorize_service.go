package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fitgrid-app/backend-chat/internal/client"
	"github.com/fitgrid-app/backend-chat/internal/domain"
	"github.com/fitgrid-app/backend-chat/internal/dto"
	"github.com/fitgrid-app/backend-chat/internal/repository"
	"github.com/fitgrid-app/backend-chat/pkg/logger"
	"github.com/fitgrid-app/backend-chat/pkg/telemetry"
)

// Denial reasons returned to the provider and logged for security monitoring
const (
	DenyInvalidChannel = "invalid_channel_id"
	DenyUnknownActor   = "unknown_actor"
	DenyCrossTenant    = "cross_tenant"
	DenyNotAMember     = "not_a_member"
	DenyNotRegistered  = "not_registered_for_event"
	DenyRoomClosed     = "room_closed"
	DenyInternalError  = "internal_error"
)

// AuthorizeService answers the provider's synchronous authorization
// callback. It is the primary tenant-isolation control: the tenant tag
// parsed from the channel id is compared against the locally resolved
// actor, independent of whatever the provider's own ACL would allow.
// It runs on the provider's request path, so lookups go through the Redis
// cache first and errors degrade to deny, never to a slow retry.
type AuthorizeService interface {
	// Authorize decides whether the actor may perform the action on the
	// channel
	Authorize(ctx context.Context, req *dto.AuthorizeRequest) *dto.AuthorizeResponse
}

// authorizeService implements AuthorizeService
type authorizeService struct {
	resolver       ActorResolver
	roomRepo       repository.RoomRepository
	membershipRepo repository.MembershipRepository
	cache          MembershipCacheStore
	events         client.EventClient
	log            *logger.Logger
	denials        *telemetry.Counter
}

// NewAuthorizeService creates a new AuthorizeService
func NewAuthorizeService(
	resolver ActorResolver,
	roomRepo repository.RoomRepository,
	membershipRepo repository.MembershipRepository,
	cache MembershipCacheStore,
	events client.EventClient,
	log *logger.Logger,
) AuthorizeService {
	denials, err := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "chat_webhook_denials_total",
		Description: "Authorization webhook denials by reason",
		Unit:        "{denial}",
	})
	if err != nil {
		denials = nil
	}
	return &authorizeService{
		resolver:       resolver,
		roomRepo:       roomRepo,
		membershipRepo: membershipRepo,
		cache:          cache,
		events:         events,
		log:            log,
		denials:        denials,
	}
}

// Authorize decides whether the actor may perform the action on the channel
func (s *authorizeService) Authorize(ctx context.Context, req *dto.AuthorizeRequest) *dto.AuthorizeResponse {
	cid, err := domain.ParseChannelID(req.ChannelID)
	if err != nil {
		return s.deny(ctx, req, DenyInvalidChannel)
	}

	actor, err := s.resolver.Resolve(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return s.deny(ctx, req, DenyUnknownActor)
		}
		s.log.Error("actor resolution failed during authorization",
			zap.String("user_id", req.UserID), zap.Error(err))
		return s.deny(ctx, req, DenyInternalError)
	}

	if !cid.BelongsTo(actor.TenantID) {
		return s.deny(ctx, req, DenyCrossTenant)
	}

	member, err := s.isMember(ctx, req.ChannelID, actor.ID)
	if err != nil {
		s.log.Error("membership lookup failed during authorization",
			zap.String("channel_id", req.ChannelID),
			zap.String("user_id", actor.ID),
			zap.Error(err))
		return s.deny(ctx, req, DenyInternalError)
	}
	if member {
		return &dto.AuthorizeResponse{Allow: true}
	}

	// Non-members may still join event rooms they are registered for
	if req.Action == dto.ActionJoin && cid.Kind == domain.RoomKindEvent {
		registered, err := s.events.IsRegistered(ctx, actor.TenantID, cid.Ref, actor.ID)
		if err != nil {
			s.log.Error("event registration lookup failed during authorization",
				zap.String("event_ref", cid.Ref),
				zap.String("user_id", actor.ID),
				zap.Error(err))
			return s.deny(ctx, req, DenyInternalError)
		}
		if registered {
			return s.grantEventJoin(ctx, req, actor)
		}
		return s.deny(ctx, req, DenyNotRegistered)
	}

	return s.deny(ctx, req, DenyNotAMember)
}

// grantEventJoin admits a registrant into an event room. The join the
// provider is about to perform is recorded as a membership row here, so the
// read/send callbacks that follow resolve as ordinary members.
func (s *authorizeService) grantEventJoin(ctx context.Context, req *dto.AuthorizeRequest, actor *domain.User) *dto.AuthorizeResponse {
	room, err := s.roomRepo.GetByChannelID(ctx, req.ChannelID)
	if err != nil {
		s.log.Error("room lookup failed during event join",
			zap.String("channel_id", req.ChannelID),
			zap.String("user_id", actor.ID),
			zap.Error(err))
		return s.deny(ctx, req, DenyInternalError)
	}
	if room != nil {
		if room.Status != domain.RoomStatusActive {
			return s.deny(ctx, req, DenyRoomClosed)
		}
		m := &domain.Membership{RoomID: room.ID, UserID: actor.ID, JoinedAt: time.Now()}
		if err := s.membershipRepo.Add(ctx, m); err != nil {
			if errors.Is(err, repository.ErrRoomNotActive) {
				return s.deny(ctx, req, DenyRoomClosed)
			}
			s.log.Error("membership write failed during event join",
				zap.String("channel_id", req.ChannelID),
				zap.String("user_id", actor.ID),
				zap.Error(err))
			return s.deny(ctx, req, DenyInternalError)
		}
	}
	if err := s.cache.SetMembership(ctx, req.ChannelID, actor.ID, true); err != nil {
		s.log.Warn("membership cache write failed",
			zap.String("channel_id", req.ChannelID), zap.Error(err))
	}
	return &dto.AuthorizeResponse{Allow: true}
}

// isMember checks active membership through the cache, falling back to the
// indexed store lookup on a miss
func (s *authorizeService) isMember(ctx context.Context, channelID, userID string) (bool, error) {
	member, hit, err := s.cache.GetMembership(ctx, channelID, userID)
	if err == nil && hit {
		return member, nil
	}
	if err != nil {
		s.log.Warn("membership cache read failed",
			zap.String("channel_id", channelID), zap.Error(err))
	}

	member, err = s.membershipRepo.IsActiveMemberOfChannel(ctx, channelID, userID)
	if err != nil {
		return false, err
	}
	if cacheErr := s.cache.SetMembership(ctx, channelID, userID, member); cacheErr != nil {
		s.log.Warn("membership cache write failed",
			zap.String("channel_id", channelID), zap.Error(cacheErr))
	}
	return member, nil
}

// deny logs the denial with actor, channel and reason, counts it, and
// returns the deny answer
func (s *authorizeService) deny(ctx context.Context, req *dto.AuthorizeRequest, reason string) *dto.AuthorizeResponse {
	s.log.Warn("webhook authorization denied",
		zap.String("channel_id", req.ChannelID),
		zap.String("user_id", req.UserID),
		zap.String("action", req.Action),
		zap.String("reason", reason))
	if s.denials != nil {
		s.denials.Inc(ctx,
			attribute.String("reason", reason),
			attribute.String("action", req.Action))
	}
	return &dto.AuthorizeResponse{Allow: false, Reason: reason}
}
