package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fitgrid-app/backend-chat/internal/domain"
	"github.com/fitgrid-app/backend-chat/internal/dto"
	"github.com/fitgrid-app/backend-chat/internal/provider"
	"github.com/fitgrid-app/backend-chat/internal/repository"
	"github.com/fitgrid-app/backend-chat/pkg/logger"
	"github.com/fitgrid-app/backend-chat/pkg/telemetry"
)

// TeardownPolicy controls what happens to the provider channel when the
// last member leaves a group room and it auto-closes
type TeardownPolicy string

const (
	// TeardownSoft keeps the provider channel for audit/recovery
	TeardownSoft TeardownPolicy = "soft"
	// TeardownHard physically removes the provider channel
	TeardownHard TeardownPolicy = "hard"
)

// RoomService is the lifecycle engine: every room and membership mutation
// goes through it, combining Room Store transactions with channel provider
// calls under the tenant-isolation and consistency invariants.
type RoomService interface {
	// CreateDirectRoom opens (or returns) the direct room between the
	// actor and one other user in the same tenant
	CreateDirectRoom(ctx context.Context, actor *domain.User, req *dto.CreateDirectRoomRequest) (*dto.RoomResponse, error)
	// CreateGroupRoom creates a group room; privileged actors only
	CreateGroupRoom(ctx context.Context, actor *domain.User, req *dto.CreateGroupRoomRequest) (*dto.RoomResponse, error)
	// CreateEventRoom creates the room attached to an event; idempotent
	// per (tenant, event)
	CreateEventRoom(ctx context.Context, tenantID, eventRef, eventName, creatorID string) (*dto.RoomResponse, error)
	// CloseEventRoom closes the room attached to an event
	CloseEventRoom(ctx context.Context, tenantID, eventRef string) error
	// ListRooms retrieves the actor's visible rooms
	ListRooms(ctx context.Context, actor *domain.User, query *dto.ListRoomsQuery) (*dto.ListRoomsResponse, error)
	// SetHidden hides or shows a direct room for the acting user only
	SetHidden(ctx context.Context, actor *domain.User, roomID string, hidden bool) (*dto.VisibilityResponse, error)
	// LeaveRoom removes the actor from a group room; the last member out
	// closes the room
	LeaveRoom(ctx context.Context, actor *domain.User, roomID string, autoHide bool) (*dto.LeaveRoomResponse, error)
	// DeleteGroup deletes an empty group room
	DeleteGroup(ctx context.Context, actor *domain.User, roomID string, hardDelete bool) (*dto.DeleteGroupResponse, error)
	// DeleteOrphanChannel removes a provider channel that has no local room
	DeleteOrphanChannel(ctx context.Context, actor *domain.User, channelID string) (*dto.DeleteOrphanResponse, error)
	// DeleteConversation soft-deletes every message in a direct room for
	// the acting user only, then hides the room
	DeleteConversation(ctx context.Context, actor *domain.User, roomID string) (*dto.DeleteConversationResponse, error)
	// AddMember adds a user to a group room
	AddMember(ctx context.Context, actor *domain.User, roomID, userID string) error
	// RemoveMember removes a user from a group room
	RemoveMember(ctx context.Context, actor *domain.User, roomID, userID string) error
	// UnhideOnNewMessage re-surfaces a channel's room for everyone except
	// the sender; invoked from the provider event consumer
	UnhideOnNewMessage(ctx context.Context, channelID, senderID string) (int, error)
}

// RoomServiceConfig holds policy settings for the lifecycle engine
type RoomServiceConfig struct {
	// EmptyGroupTeardown controls provider teardown when the last member
	// leaves; defaults to TeardownSoft
	EmptyGroupTeardown TeardownPolicy
}

// roomService implements RoomService
type roomService struct {
	roomRepo       repository.RoomRepository
	membershipRepo repository.MembershipRepository
	userRepo       repository.UserRepository
	channels       provider.ChannelProvider
	cache          MembershipCacheStore
	log            *logger.Logger
	teardown       TeardownPolicy
	operations     *telemetry.Counter
}

// NewRoomService creates a new RoomService
func NewRoomService(
	roomRepo repository.RoomRepository,
	membershipRepo repository.MembershipRepository,
	userRepo repository.UserRepository,
	channels provider.ChannelProvider,
	cache MembershipCacheStore,
	log *logger.Logger,
	cfg *RoomServiceConfig,
) RoomService {
	teardown := TeardownSoft
	if cfg != nil && cfg.EmptyGroupTeardown == TeardownHard {
		teardown = TeardownHard
	}
	operations, err := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "chat_room_operations_total",
		Description: "Room lifecycle operations by kind",
		Unit:        "{operation}",
	})
	if err != nil {
		operations = nil
	}
	return &roomService{
		roomRepo:       roomRepo,
		membershipRepo: membershipRepo,
		userRepo:       userRepo,
		channels:       channels,
		cache:          cache,
		log:            log,
		teardown:       teardown,
		operations:     operations,
	}
}

// countOp records one lifecycle operation for dashboards
func (s *roomService) countOp(ctx context.Context, op string, kind domain.RoomKind) {
	if s.operations == nil {
		return
	}
	s.operations.Inc(ctx,
		attribute.String("operation", op),
		attribute.String("room.kind", string(kind)))
}

// getTenantRoom loads a room and enforces tenant scope. Rooms in other
// tenants are reported as not found rather than forbidden.
func (s *roomService) getTenantRoom(ctx context.Context, tenantID, roomID string) (*domain.Room, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil || room.TenantID != tenantID {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// CreateDirectRoom opens (or returns) the direct room between two users.
// The channel ref is derived from the sorted user pair so retries and
// concurrent calls converge on the same channel id.
func (s *roomService) CreateDirectRoom(ctx context.Context, actor *domain.User, req *dto.CreateDirectRoomRequest) (*dto.RoomResponse, error) {
	if req.UserID == actor.ID {
		return nil, ErrCannotChatWithSelf
	}
	other, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}
	if other.TenantID != actor.TenantID {
		return nil, ErrCrossTenantUser
	}

	channelID := domain.NewChannelID(actor.TenantID, domain.RoomKindDirect,
		domain.DirectChannelRef(actor.ID, other.ID)).String()

	existing, err := s.roomRepo.GetByChannelID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return toRoomResponse(existing), nil
	}

	// Provider channel first: a failure after this point leaves an orphan
	// channel repairable via DeleteOrphanChannel, never a local room with
	// no channel behind it.
	_, err = s.channels.CreateChannel(ctx, &provider.CreateChannelRequest{
		ChannelID: channelID,
		Kind:      string(domain.RoomKindDirect),
		TenantTag: actor.TenantID,
		CreatedBy: actor.ID,
		MemberIDs: []string{actor.ID, other.ID},
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	room := &domain.Room{
		ID:                  uuid.New().String(),
		TenantID:            actor.TenantID,
		Kind:                domain.RoomKindDirect,
		ExternalChannelID:   channelID,
		ExternalChannelKind: string(domain.RoomKindDirect),
		Status:              domain.RoomStatusActive,
		CreatorID:           actor.ID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateChannel) {
			// A concurrent call for the same pair won the insert; both
			// derive the same channel id, so the winner's room is ours too
			winner, getErr := s.roomRepo.GetByChannelID(ctx, channelID)
			if getErr != nil {
				return nil, getErr
			}
			if winner != nil {
				return toRoomResponse(winner), nil
			}
		}
		return nil, err
	}
	for _, userID := range []string{actor.ID, other.ID} {
		m := &domain.Membership{RoomID: room.ID, UserID: userID, JoinedAt: now}
		if err := s.membershipRepo.Add(ctx, m); err != nil {
			return nil, err
		}
	}
	s.countOp(ctx, "create", room.Kind)
	return toRoomResponse(room), nil
}

// CreateGroupRoom creates a group room with the actor as creator/member
func (s *roomService) CreateGroupRoom(ctx context.Context, actor *domain.User, req *dto.CreateGroupRoomRequest) (*dto.RoomResponse, error) {
	if !actor.Role.CanManageRooms() {
		return nil, ErrNoPermission
	}

	members := []string{actor.ID}
	for _, userID := range req.MemberIDs {
		if userID == actor.ID {
			continue
		}
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		if user.TenantID != actor.TenantID {
			return nil, ErrCrossTenantUser
		}
		members = append(members, userID)
	}

	ref := strings.Split(uuid.New().String(), "-")[0]
	channelID := domain.NewChannelID(actor.TenantID, domain.RoomKindGroup, ref).String()

	_, err := s.channels.CreateChannel(ctx, &provider.CreateChannelRequest{
		ChannelID: channelID,
		Kind:      string(domain.RoomKindGroup),
		TenantTag: actor.TenantID,
		CreatedBy: actor.ID,
		MemberIDs: members,
		Metadata:  map[string]string{"name": req.Name},
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	room := &domain.Room{
		ID:                  uuid.New().String(),
		TenantID:            actor.TenantID,
		Kind:                domain.RoomKindGroup,
		ExternalChannelID:   channelID,
		ExternalChannelKind: string(domain.RoomKindGroup),
		DisplayName:         req.Name,
		Status:              domain.RoomStatusActive,
		CreatorID:           actor.ID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, err
	}
	for _, userID := range members {
		m := &domain.Membership{RoomID: room.ID, UserID: userID, JoinedAt: now}
		if err := s.membershipRepo.Add(ctx, m); err != nil {
			return nil, err
		}
	}
	s.countOp(ctx, "create", room.Kind)
	return toRoomResponse(room), nil
}

// CreateEventRoom creates the room attached to an event. Events publish
// creation through the platform bus, so this must stay idempotent.
func (s *roomService) CreateEventRoom(ctx context.Context, tenantID, eventRef, eventName, creatorID string) (*dto.RoomResponse, error) {
	existing, err := s.roomRepo.GetByEventRef(ctx, tenantID, eventRef)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return toRoomResponse(existing), nil
	}

	channelID := domain.NewChannelID(tenantID, domain.RoomKindEvent, eventRef).String()
	_, err = s.channels.CreateChannel(ctx, &provider.CreateChannelRequest{
		ChannelID: channelID,
		Kind:      string(domain.RoomKindEvent),
		TenantTag: tenantID,
		CreatedBy: creatorID,
		Metadata:  map[string]string{"name": eventName, "event_ref": eventRef},
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	room := &domain.Room{
		ID:                  uuid.New().String(),
		TenantID:            tenantID,
		Kind:                domain.RoomKindEvent,
		ExternalChannelID:   channelID,
		ExternalChannelKind: string(domain.RoomKindEvent),
		DisplayName:         eventName,
		Status:              domain.RoomStatusActive,
		EventRef:            eventRef,
		CreatorID:           creatorID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateChannel) {
			winner, getErr := s.roomRepo.GetByEventRef(ctx, tenantID, eventRef)
			if getErr != nil {
				return nil, getErr
			}
			if winner != nil {
				return toRoomResponse(winner), nil
			}
		}
		return nil, err
	}
	return toRoomResponse(room), nil
}

// CloseEventRoom closes the room attached to an event. The provider channel
// is kept (soft) so the event's message history stays recoverable.
func (s *roomService) CloseEventRoom(ctx context.Context, tenantID, eventRef string) error {
	room, err := s.roomRepo.GetByEventRef(ctx, tenantID, eventRef)
	if err != nil {
		return err
	}
	if room == nil {
		return ErrRoomNotFound
	}
	if room.Status == domain.RoomStatusClosed {
		return nil
	}
	if err := s.roomRepo.Close(ctx, room.ID); err != nil {
		return err
	}
	if err := s.channels.DeleteChannel(ctx, room.ExternalChannelID, false); err != nil {
		if errors.Is(err, provider.ErrChannelNotFound) {
			return nil
		}
		// Room is closed locally; the provider channel survives until a
		// retry or reconciliation removes it.
		s.log.Warn("event room closed locally but provider teardown failed",
			zap.String("room_id", room.ID),
			zap.String("channel_id", room.ExternalChannelID),
			zap.Error(err))
		return err
	}
	return nil
}

// ListRooms retrieves the actor's visible rooms
func (s *roomService) ListRooms(ctx context.Context, actor *domain.User, query *dto.ListRoomsQuery) (*dto.ListRoomsResponse, error) {
	query.SetDefaults()
	offset := (query.Page - 1) * query.Limit
	rooms, total, err := s.roomRepo.ListVisibleForUser(ctx, actor.ID, query.Limit, offset)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		responses = append(responses, *toRoomResponse(room))
	}
	return &dto.ListRoomsResponse{
		Rooms:      responses,
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
	}, nil
}

// SetHidden hides or shows a direct room for the acting user only. Hiding
// an already-hidden room is a success no-op; the other participant is
// never affected and the provider is never called.
func (s *roomService) SetHidden(ctx context.Context, actor *domain.User, roomID string, hidden bool) (*dto.VisibilityResponse, error) {
	room, err := s.getTenantRoom(ctx, actor.TenantID, roomID)
	if err != nil {
		return nil, err
	}
	if room.Kind != domain.RoomKindDirect {
		return nil, ErrNotDirectChat
	}
	m, err := s.membershipRepo.GetByRoomAndUser(ctx, roomID, actor.ID)
	if err != nil {
		return nil, err
	}
	if m == nil || !m.IsActive() {
		return nil, ErrNotAMember
	}
	if m.HiddenForUser != hidden {
		if err := s.membershipRepo.SetHidden(ctx, roomID, actor.ID, hidden); err != nil {
			return nil, err
		}
	}
	return &dto.VisibilityResponse{Success: true, RoomID: roomID, IsHidden: hidden}, nil
}

// LeaveRoom removes the actor from a group room. The last member out closes
// the room and tears down the provider channel per the configured policy.
func (s *roomService) LeaveRoom(ctx context.Context, actor *domain.User, roomID string, autoHide bool) (*dto.LeaveRoomResponse, error) {
	room, err := s.getTenantRoom(ctx, actor.TenantID, roomID)
	if err != nil {
		return nil, err
	}
	switch room.Kind {
	case domain.RoomKindDirect:
		return nil, ErrNotGroupChat
	case domain.RoomKindEvent:
		return nil, ErrEventChannelImmutable
	}

	m, err := s.membershipRepo.GetByRoomAndUser(ctx, roomID, actor.ID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotAMember
	}

	result, err := s.membershipRepo.Leave(ctx, roomID, actor.ID, autoHide)
	if err != nil {
		return nil, err
	}
	s.invalidateMembership(ctx, room.ExternalChannelID, actor.ID)

	resp := &dto.LeaveRoomResponse{
		Success:          true,
		RoomID:           roomID,
		RemainingMembers: result.Remaining,
		GroupDeleted:     result.RoomClosed,
		AutoHidden:       autoHide && !result.AlreadyLeft,
	}
	if result.RoomClosed {
		if err := s.teardownChannel(ctx, room.ExternalChannelID, s.teardown == TeardownHard); err != nil {
			return nil, err
		}
		s.countOp(ctx, "close_empty", room.Kind)
	}
	s.countOp(ctx, "leave", room.Kind)
	return resp, nil
}

// DeleteGroup deletes a group room that has no active members left. The
// membership count is re-validated under the room row lock inside the
// closing transaction, so a join racing this call wins cleanly.
func (s *roomService) DeleteGroup(ctx context.Context, actor *domain.User, roomID string, hardDelete bool) (*dto.DeleteGroupResponse, error) {
	room, err := s.getTenantRoom(ctx, actor.TenantID, roomID)
	if err != nil {
		return nil, err
	}
	switch room.Kind {
	case domain.RoomKindDirect:
		return nil, ErrNotGroupChat
	case domain.RoomKindEvent:
		return nil, ErrEventChannelImmutable
	}
	if !s.canDeleteRoom(actor, room) {
		return nil, ErrNoPermission
	}

	// Cheap precheck so a populated group never reaches the provider
	remaining, err := s.membershipRepo.CountActive(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		return nil, &GroupNotEmptyError{Remaining: remaining}
	}

	closeResult, err := s.roomRepo.CloseIfEmpty(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if closeResult == nil {
		return nil, ErrRoomNotFound
	}
	if closeResult.Remaining > 0 {
		return nil, &GroupNotEmptyError{Remaining: closeResult.Remaining}
	}

	resp := &dto.DeleteGroupResponse{Success: true, RoomID: roomID}
	if hardDelete {
		if err := s.teardownChannel(ctx, room.ExternalChannelID, true); err != nil {
			// Local state stays CLOSED; the caller retries and the
			// teardown is idempotent against an already-gone channel.
			return nil, err
		}
		if err := s.roomRepo.HardDelete(ctx, roomID); err != nil {
			return nil, err
		}
		resp.DeletedFromStream = true
	}
	if err := s.cache.InvalidateChannel(ctx, room.ExternalChannelID); err != nil {
		s.log.Warn("failed to invalidate channel cache",
			zap.String("channel_id", room.ExternalChannelID), zap.Error(err))
	}
	s.countOp(ctx, "delete_group", room.Kind)
	return resp, nil
}

// DeleteOrphanChannel removes a provider channel that no local room
// references. The tenant tag parsed from the channel id is the isolation
// control here; the provider's own ACL answer is never consulted for it.
// This path never creates or updates local rows.
func (s *roomService) DeleteOrphanChannel(ctx context.Context, actor *domain.User, channelID string) (*dto.DeleteOrphanResponse, error) {
	cid, err := domain.ParseChannelID(channelID)
	if err != nil {
		return nil, err
	}
	if !cid.BelongsTo(actor.TenantID) {
		return nil, ErrCrossTenantChannel
	}

	room, err := s.roomRepo.GetByChannelID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if room != nil {
		// A referenced channel must go through DeleteGroup, which carries
		// the emptiness and permission checks this path lacks.
		return nil, ErrOrphanConflict
	}

	meta, err := s.channels.GetChannelMetadata(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if meta.Kind == string(domain.RoomKindEvent) || cid.Kind == domain.RoomKindEvent {
		return nil, ErrEventChannelImmutable
	}
	if meta.OwnerID != actor.ID {
		return nil, ErrNoPermission
	}

	if err := s.channels.DeleteChannel(ctx, channelID, true); err != nil {
		if !errors.Is(err, provider.ErrChannelNotFound) {
			return nil, err
		}
	}
	s.log.Info("orphan channel deleted",
		zap.String("channel_id", channelID),
		zap.String("actor_id", actor.ID),
		zap.String("tenant_id", actor.TenantID))
	s.countOp(ctx, "delete_orphan", cid.Kind)
	return &dto.DeleteOrphanResponse{Success: true, ChannelID: channelID}, nil
}

// DeleteConversation soft-deletes every message in a direct room for the
// acting user only, then hides the room. The counterpart's view is
// untouched. Irreversible.
func (s *roomService) DeleteConversation(ctx context.Context, actor *domain.User, roomID string) (*dto.DeleteConversationResponse, error) {
	room, err := s.getTenantRoom(ctx, actor.TenantID, roomID)
	if err != nil {
		return nil, err
	}
	if room.Kind != domain.RoomKindDirect {
		return nil, ErrNotDirectChat
	}
	m, err := s.membershipRepo.GetByRoomAndUser(ctx, roomID, actor.ID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotAMember
	}

	count, err := s.channels.SoftDeleteMessagesForUser(ctx, room.ExternalChannelID, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := s.membershipRepo.SetHidden(ctx, roomID, actor.ID, true); err != nil {
		return nil, err
	}
	s.countOp(ctx, "delete_conversation", room.Kind)
	return &dto.DeleteConversationResponse{
		Success:         true,
		RoomID:          roomID,
		MessagesDeleted: count,
	}, nil
}

// AddMember adds a user to a group room
func (s *roomService) AddMember(ctx context.Context, actor *domain.User, roomID, userID string) error {
	room, err := s.getTenantRoom(ctx, actor.TenantID, roomID)
	if err != nil {
		return err
	}
	switch room.Kind {
	case domain.RoomKindDirect:
		return ErrNotGroupChat
	case domain.RoomKindEvent:
		return ErrEventChannelImmutable
	}
	if !s.canDeleteRoom(actor, room) {
		return ErrNoPermission
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.TenantID != actor.TenantID {
		return ErrCrossTenantUser
	}

	m := &domain.Membership{RoomID: roomID, UserID: userID, JoinedAt: time.Now()}
	if err := s.membershipRepo.Add(ctx, m); err != nil {
		if errors.Is(err, repository.ErrRoomNotActive) {
			return ErrRoomClosed
		}
		return err
	}
	s.invalidateMembership(ctx, room.ExternalChannelID, userID)
	return nil
}

// RemoveMember removes a user from a group room. Removing the last member
// closes the room the same way a leave does.
func (s *roomService) RemoveMember(ctx context.Context, actor *domain.User, roomID, userID string) error {
	room, err := s.getTenantRoom(ctx, actor.TenantID, roomID)
	if err != nil {
		return err
	}
	switch room.Kind {
	case domain.RoomKindDirect:
		return ErrNotGroupChat
	case domain.RoomKindEvent:
		return ErrEventChannelImmutable
	}
	if !s.canDeleteRoom(actor, room) {
		return ErrNoPermission
	}
	m, err := s.membershipRepo.GetByRoomAndUser(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrNotAMember
	}

	result, err := s.membershipRepo.Leave(ctx, roomID, userID, false)
	if err != nil {
		return err
	}
	s.invalidateMembership(ctx, room.ExternalChannelID, userID)
	if result.RoomClosed {
		return s.teardownChannel(ctx, room.ExternalChannelID, s.teardown == TeardownHard)
	}
	return nil
}

// UnhideOnNewMessage re-surfaces a channel's room for everyone except the
// sender when an inbound message arrives
func (s *roomService) UnhideOnNewMessage(ctx context.Context, channelID, senderID string) (int, error) {
	return s.membershipRepo.UnhideForChannel(ctx, channelID, senderID)
}

// canDeleteRoom checks room management permission: tenant owners/admins
// always, the creator when their role manages rooms
func (s *roomService) canDeleteRoom(actor *domain.User, room *domain.Room) bool {
	if actor.Role.IsTenantAdmin() {
		return true
	}
	return actor.ID == room.CreatorID && actor.Role.CanManageRooms()
}

// teardownChannel removes the provider channel after the local CLOSED
// transition has committed. An already-gone channel counts as success; an
// unreachable provider surfaces as a retryable error with the room left
// CLOSED-but-unconfirmed.
func (s *roomService) teardownChannel(ctx context.Context, channelID string, hard bool) error {
	err := s.channels.DeleteChannel(ctx, channelID, hard)
	if err == nil || errors.Is(err, provider.ErrChannelNotFound) {
		return nil
	}
	s.log.Warn("room closed locally but provider teardown failed",
		zap.String("channel_id", channelID),
		zap.Bool("hard", hard),
		zap.Error(err))
	return err
}

func (s *roomService) invalidateMembership(ctx context.Context, channelID, userID string) {
	if err := s.cache.InvalidateMembership(ctx, channelID, userID); err != nil {
		s.log.Warn("failed to invalidate membership cache",
			zap.String("channel_id", channelID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// toRoomResponse converts domain.Room to dto.RoomResponse
func toRoomResponse(room *domain.Room) *dto.RoomResponse {
	return &dto.RoomResponse{
		ID:                room.ID,
		TenantID:          room.TenantID,
		Kind:              string(room.Kind),
		ExternalChannelID: room.ExternalChannelID,
		DisplayName:       room.DisplayName,
		Status:            string(room.Status),
		EventRef:          room.EventRef,
		CreatorID:         room.CreatorID,
		CreatedAt:         room.CreatedAt.Format(time.RFC3339),
	}
}
