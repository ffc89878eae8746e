package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fitgrid-app/backend-chat/internal/domain"
	"github.com/fitgrid-app/backend-chat/internal/dto"
	"github.com/fitgrid-app/backend-chat/internal/provider"
	"github.com/fitgrid-app/backend-chat/pkg/logger"
)

type engineFixture struct {
	rooms       *MockRoomRepository
	memberships *MockMembershipRepository
	users       *MockUserRepository
	channels    *MockChannelProvider
	cache       *MockMembershipCache
	service     RoomService
}

func newEngineFixture(t *testing.T, cfg *RoomServiceConfig) *engineFixture {
	t.Helper()
	rooms := NewMockRoomRepository()
	memberships := NewMockMembershipRepository(rooms)
	users := NewMockUserRepository()
	channels := NewMockChannelProvider()
	cache := NewMockMembershipCache()
	svc := NewRoomService(rooms, memberships, users, channels, cache, logger.NewNop(), cfg)
	return &engineFixture{
		rooms:       rooms,
		memberships: memberships,
		users:       users,
		channels:    channels,
		cache:       cache,
		service:     svc,
	}
}

func (f *engineFixture) addUser(id, tenantID string, role domain.Role) *domain.User {
	user := &domain.User{
		ID:       id,
		TenantID: tenantID,
		Email:    id + "@example.com",
		Role:     role,
		IsActive: true,
	}
	f.users.Put(user)
	return user
}

// seedRoom creates a room with active memberships directly in the mocks
func (f *engineFixture) seedRoom(t *testing.T, kind domain.RoomKind, tenantID, creatorID string, memberIDs ...string) *domain.Room {
	t.Helper()
	now := time.Now()
	channelID := domain.NewChannelID(tenantID, kind, "seed-"+creatorID+"-"+string(kind)).String()
	room := &domain.Room{
		ID:                  "room-" + string(kind) + "-" + creatorID,
		TenantID:            tenantID,
		Kind:                kind,
		ExternalChannelID:   channelID,
		ExternalChannelKind: string(kind),
		Status:              domain.RoomStatusActive,
		CreatorID:           creatorID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := f.rooms.Create(context.Background(), room); err != nil {
		t.Fatalf("seeding room: %v", err)
	}
	f.channels.PutChannel(&provider.ChannelInfo{
		ChannelID: channelID,
		Kind:      string(kind),
		TenantTag: tenantID,
		OwnerID:   creatorID,
	})
	for _, userID := range memberIDs {
		m := &domain.Membership{RoomID: room.ID, UserID: userID, JoinedAt: now}
		if err := f.memberships.Add(context.Background(), m); err != nil {
			t.Fatalf("seeding membership: %v", err)
		}
	}
	return room
}

func TestSetHidden_Idempotent(t *testing.T) {
	f := newEngineFixture(t, nil)
	actor := f.addUser("user-a", "t7", domain.RoleMember)
	f.addUser("user-b", "t7", domain.RoleMember)
	room := f.seedRoom(t, domain.RoomKindDirect, "t7", "user-a", "user-a", "user-b")

	ctx := context.Background()
	first, err := f.service.SetHidden(ctx, actor, room.ID, true)
	if err != nil {
		t.Fatalf("first hide failed: %v", err)
	}
	if !first.Success || !first.IsHidden {
		t.Errorf("expected hidden=true, got %+v", first)
	}

	second, err := f.service.SetHidden(ctx, actor, room.ID, true)
	if err != nil {
		t.Fatalf("second hide failed: %v", err)
	}
	if !second.Success || !second.IsHidden {
		t.Errorf("expected idempotent hide success, got %+v", second)
	}

	// The other participant is untouched
	m, _ := f.memberships.GetByRoomAndUser(ctx, room.ID, "user-b")
	if m.HiddenForUser {
		t.Error("counterpart membership must not be hidden")
	}
	if len(f.channels.DeleteCalls) != 0 {
		t.Error("hide must never touch the provider")
	}
}

func TestSetHidden_GroupRoomRejected(t *testing.T) {
	f := newEngineFixture(t, nil)
	actor := f.addUser("user-a", "t7", domain.RoleMember)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "user-a", "user-a")

	_, err := f.service.SetHidden(context.Background(), actor, room.ID, true)
	if !errors.Is(err, ErrNotDirectChat) {
		t.Fatalf("expected ErrNotDirectChat, got %v", err)
	}
}

func TestSetHidden_NonMemberRejected(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.addUser("user-a", "t7", domain.RoleMember)
	outsider := f.addUser("user-x", "t7", domain.RoleMember)
	room := f.seedRoom(t, domain.RoomKindDirect, "t7", "user-a", "user-a")

	_, err := f.service.SetHidden(context.Background(), outsider, room.ID, true)
	if !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
}

func TestLeaveRoom_SequentialLeavesCloseOnce(t *testing.T) {
	f := newEngineFixture(t, nil)
	a := f.addUser("user-a", "t7", domain.RoleMember)
	b := f.addUser("user-b", "t7", domain.RoleMember)
	c := f.addUser("user-c", "t7", domain.RoleTrainer)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "user-c", "user-a", "user-b", "user-c")

	ctx := context.Background()
	deleted := 0
	for i, actor := range []*domain.User{a, b, c} {
		resp, err := f.service.LeaveRoom(ctx, actor, room.ID, true)
		if err != nil {
			t.Fatalf("leave %d failed: %v", i, err)
		}
		if resp.RemainingMembers != 2-i {
			t.Errorf("leave %d: expected %d remaining, got %d", i, 2-i, resp.RemainingMembers)
		}
		if resp.GroupDeleted {
			deleted++
		}
	}
	if deleted != 1 {
		t.Errorf("expected exactly one group_deleted=true, got %d", deleted)
	}

	stored, _ := f.rooms.GetByID(ctx, room.ID)
	if stored.Status != domain.RoomStatusClosed {
		t.Errorf("expected room closed, got %s", stored.Status)
	}
	if len(f.channels.DeleteCalls) != 1 {
		t.Fatalf("expected exactly one teardown call, got %d", len(f.channels.DeleteCalls))
	}
	if f.channels.DeleteCalls[0].Hard {
		t.Error("default teardown policy must be soft")
	}
}

func TestLeaveRoom_ConcurrentLastLeaveClosesOnce(t *testing.T) {
	for range 50 {
		f := newEngineFixture(t, nil)
		a := f.addUser("user-a", "t7", domain.RoleMember)
		b := f.addUser("user-b", "t7", domain.RoleMember)
		room := f.seedRoom(t, domain.RoomKindGroup, "t7", "user-a", "user-a", "user-b")

		ctx := context.Background()
		var wg sync.WaitGroup
		results := make([]*dto.LeaveRoomResponse, 2)
		for i, actor := range []*domain.User{a, b} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := f.service.LeaveRoom(ctx, actor, room.ID, true)
				if err != nil {
					t.Errorf("concurrent leave failed: %v", err)
					return
				}
				results[i] = resp
			}()
		}
		wg.Wait()

		deleted := 0
		for _, resp := range results {
			if resp != nil && resp.GroupDeleted {
				deleted++
			}
		}
		if deleted != 1 {
			t.Fatalf("expected exactly one group_deleted=true, got %d", deleted)
		}
		if len(f.channels.DeleteCalls) != 1 {
			t.Fatalf("expected exactly one teardown, got %d", len(f.channels.DeleteCalls))
		}
	}
}

func TestLeaveRoom_DirectAndEventRejected(t *testing.T) {
	f := newEngineFixture(t, nil)
	actor := f.addUser("user-a", "t7", domain.RoleMember)
	direct := f.seedRoom(t, domain.RoomKindDirect, "t7", "user-a", "user-a")
	event := f.seedRoom(t, domain.RoomKindEvent, "t7", "user-a", "user-a")

	ctx := context.Background()
	if _, err := f.service.LeaveRoom(ctx, actor, direct.ID, true); !errors.Is(err, ErrNotGroupChat) {
		t.Errorf("expected ErrNotGroupChat for direct room, got %v", err)
	}
	if _, err := f.service.LeaveRoom(ctx, actor, event.ID, true); !errors.Is(err, ErrEventChannelImmutable) {
		t.Errorf("expected ErrEventChannelImmutable for event room, got %v", err)
	}
}

func TestLeaveRoom_HardTeardownPolicy(t *testing.T) {
	f := newEngineFixture(t, &RoomServiceConfig{EmptyGroupTeardown: TeardownHard})
	actor := f.addUser("user-a", "t7", domain.RoleMember)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "user-a", "user-a")

	resp, err := f.service.LeaveRoom(context.Background(), actor, room.ID, true)
	if err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if !resp.GroupDeleted {
		t.Fatal("expected group_deleted=true")
	}
	if len(f.channels.DeleteCalls) != 1 || !f.channels.DeleteCalls[0].Hard {
		t.Errorf("expected one hard teardown, got %+v", f.channels.DeleteCalls)
	}
}

func TestLeaveRoom_ProviderDownAfterLocalClose(t *testing.T) {
	f := newEngineFixture(t, nil)
	actor := f.addUser("user-a", "t7", domain.RoleMember)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "user-a", "user-a")
	f.channels.ShouldFail = true

	_, err := f.service.LeaveRoom(context.Background(), actor, room.ID, true)
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("expected provider.ErrUnavailable, got %v", err)
	}

	// Local CLOSED survives the provider outage; that direction is the
	// recoverable one
	stored, _ := f.rooms.GetByID(context.Background(), room.ID)
	if stored.Status != domain.RoomStatusClosed {
		t.Errorf("expected room to stay closed locally, got %s", stored.Status)
	}
}

func TestDeleteGroup_NotEmpty(t *testing.T) {
	f := newEngineFixture(t, nil)
	admin := f.addUser("admin-1", "t7", domain.RoleAdmin)
	f.addUser("user-a", "t7", domain.RoleMember)
	f.addUser("user-b", "t7", domain.RoleMember)
	f.addUser("user-c", "t7", domain.RoleMember)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "admin-1", "user-a", "user-b", "user-c")

	_, err := f.service.DeleteGroup(context.Background(), admin, room.ID, true)
	var notEmpty *GroupNotEmptyError
	if !errors.As(err, &notEmpty) {
		t.Fatalf("expected GroupNotEmptyError, got %v", err)
	}
	if notEmpty.Remaining != 3 {
		t.Errorf("expected remaining=3, got %d", notEmpty.Remaining)
	}
	if len(f.channels.DeleteCalls) != 0 {
		t.Error("populated group must never reach the provider")
	}
}

func TestDeleteGroup_PermissionMatrix(t *testing.T) {
	f := newEngineFixture(t, nil)
	member := f.addUser("member-1", "t7", domain.RoleMember)
	trainerCreator := f.addUser("trainer-1", "t7", domain.RoleTrainer)
	otherTrainer := f.addUser("trainer-2", "t7", domain.RoleTrainer)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "trainer-1")

	ctx := context.Background()
	if _, err := f.service.DeleteGroup(ctx, member, room.ID, false); !errors.Is(err, ErrNoPermission) {
		t.Errorf("member: expected ErrNoPermission, got %v", err)
	}
	if _, err := f.service.DeleteGroup(ctx, otherTrainer, room.ID, false); !errors.Is(err, ErrNoPermission) {
		t.Errorf("non-creator trainer: expected ErrNoPermission, got %v", err)
	}
	if _, err := f.service.DeleteGroup(ctx, trainerCreator, room.ID, false); err != nil {
		t.Errorf("creator trainer: expected success, got %v", err)
	}
}

func TestDeleteGroup_SoftKeepsProviderChannel(t *testing.T) {
	f := newEngineFixture(t, nil)
	admin := f.addUser("admin-1", "t7", domain.RoleAdmin)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "admin-1")

	resp, err := f.service.DeleteGroup(context.Background(), admin, room.ID, false)
	if err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}
	if resp.DeletedFromStream {
		t.Error("soft delete must report deleted_from_stream=false")
	}
	if !f.channels.HasChannel(room.ExternalChannelID) {
		t.Error("soft delete must leave the provider channel intact")
	}
	stored, _ := f.rooms.GetByID(context.Background(), room.ID)
	if stored == nil || stored.Status != domain.RoomStatusClosed {
		t.Error("expected local room closed and retained")
	}
}

func TestDeleteGroup_HardRemovesChannelAndRow(t *testing.T) {
	f := newEngineFixture(t, nil)
	admin := f.addUser("admin-1", "t7", domain.RoleAdmin)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "admin-1")

	resp, err := f.service.DeleteGroup(context.Background(), admin, room.ID, true)
	if err != nil {
		t.Fatalf("hard delete failed: %v", err)
	}
	if !resp.DeletedFromStream {
		t.Error("expected deleted_from_stream=true")
	}
	if f.channels.HasChannel(room.ExternalChannelID) {
		t.Error("hard delete must remove the provider channel")
	}
	stored, _ := f.rooms.GetByID(context.Background(), room.ID)
	if stored != nil {
		t.Error("hard delete must remove the local room row")
	}
}

func TestLeaveThenAdminHardDelete(t *testing.T) {
	// The §8 walkthrough: A leaves, B leaves (auto-close), then an admin
	// hard-deletes the closed room.
	f := newEngineFixture(t, nil)
	a := f.addUser("user-a", "t7", domain.RoleMember)
	b := f.addUser("user-b", "t7", domain.RoleMember)
	admin := f.addUser("admin-1", "t7", domain.RoleAdmin)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "admin-1", "user-a", "user-b")

	ctx := context.Background()
	first, err := f.service.LeaveRoom(ctx, a, room.ID, true)
	if err != nil {
		t.Fatalf("first leave failed: %v", err)
	}
	if first.RemainingMembers != 1 || first.GroupDeleted {
		t.Errorf("expected {remaining:1, deleted:false}, got %+v", first)
	}

	second, err := f.service.LeaveRoom(ctx, b, room.ID, true)
	if err != nil {
		t.Fatalf("second leave failed: %v", err)
	}
	if second.RemainingMembers != 0 || !second.GroupDeleted {
		t.Errorf("expected {remaining:0, deleted:true}, got %+v", second)
	}

	resp, err := f.service.DeleteGroup(ctx, admin, room.ID, true)
	if err != nil {
		t.Fatalf("hard delete after auto-close failed: %v", err)
	}
	if !resp.DeletedFromStream {
		t.Error("expected deleted_from_stream=true")
	}
}

func TestDeleteOrphanChannel(t *testing.T) {
	f := newEngineFixture(t, nil)
	owner := f.addUser("user-1", "t7", domain.RoleTrainer)
	stranger := f.addUser("user-9", "t9", domain.RoleOwner)
	f.channels.PutChannel(&provider.ChannelInfo{
		ChannelID: "t7_group_99",
		Kind:      "group",
		TenantTag: "t7",
		OwnerID:   "user-1",
	})

	ctx := context.Background()

	// Cross-tenant actor is rejected from the channel id alone, before any
	// provider call
	if _, err := f.service.DeleteOrphanChannel(ctx, stranger, "t7_group_99"); !errors.Is(err, ErrCrossTenantChannel) {
		t.Fatalf("expected ErrCrossTenantChannel, got %v", err)
	}
	if f.channels.HasChannel("t7_group_99") == false {
		t.Fatal("cross-tenant attempt must not delete the channel")
	}

	resp, err := f.service.DeleteOrphanChannel(ctx, owner, "t7_group_99")
	if err != nil {
		t.Fatalf("orphan delete failed: %v", err)
	}
	if !resp.Success {
		t.Error("expected success")
	}
	if f.channels.HasChannel("t7_group_99") {
		t.Error("expected provider channel removed")
	}
}

func TestDeleteOrphanChannel_ConflictWithLocalRoom(t *testing.T) {
	f := newEngineFixture(t, nil)
	admin := f.addUser("admin-1", "t7", domain.RoleAdmin)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "admin-1", "admin-1")

	_, err := f.service.DeleteOrphanChannel(context.Background(), admin, room.ExternalChannelID)
	if !errors.Is(err, ErrOrphanConflict) {
		t.Fatalf("expected ErrOrphanConflict, got %v", err)
	}
	if !f.channels.HasChannel(room.ExternalChannelID) {
		t.Error("conflicting orphan delete must never touch the provider channel")
	}
}

func TestDeleteOrphanChannel_NonOwnerAndEventKind(t *testing.T) {
	f := newEngineFixture(t, nil)
	notOwner := f.addUser("user-2", "t7", domain.RoleTrainer)
	f.channels.PutChannel(&provider.ChannelInfo{
		ChannelID: "t7_group_55",
		Kind:      "group",
		TenantTag: "t7",
		OwnerID:   "user-1",
	})
	f.channels.PutChannel(&provider.ChannelInfo{
		ChannelID: "t7_event_77",
		Kind:      "event",
		TenantTag: "t7",
		OwnerID:   "user-2",
	})

	ctx := context.Background()
	if _, err := f.service.DeleteOrphanChannel(ctx, notOwner, "t7_group_55"); !errors.Is(err, ErrNoPermission) {
		t.Errorf("expected ErrNoPermission for non-owner, got %v", err)
	}
	if _, err := f.service.DeleteOrphanChannel(ctx, notOwner, "t7_event_77"); !errors.Is(err, ErrEventChannelImmutable) {
		t.Errorf("expected ErrEventChannelImmutable, got %v", err)
	}
	if _, err := f.service.DeleteOrphanChannel(ctx, notOwner, "t7_group_gone"); !errors.Is(err, provider.ErrChannelNotFound) {
		t.Errorf("expected ErrChannelNotFound for missing channel, got %v", err)
	}
}

func TestDeleteConversation(t *testing.T) {
	f := newEngineFixture(t, nil)
	a := f.addUser("user-a", "t7", domain.RoleMember)
	f.addUser("user-b", "t7", domain.RoleMember)
	room := f.seedRoom(t, domain.RoomKindDirect, "t7", "user-a", "user-a", "user-b")
	f.channels.PutMessages(room.ExternalChannelID, "user-a", 42)
	f.channels.PutMessages(room.ExternalChannelID, "user-b", 42)

	ctx := context.Background()
	resp, err := f.service.DeleteConversation(ctx, a, room.ID)
	if err != nil {
		t.Fatalf("delete conversation failed: %v", err)
	}
	if resp.MessagesDeleted != 42 {
		t.Errorf("expected 42 messages deleted, got %d", resp.MessagesDeleted)
	}
	if f.channels.MessageCount(room.ExternalChannelID, "user-a") != 0 {
		t.Error("expected actor's view emptied")
	}
	if f.channels.MessageCount(room.ExternalChannelID, "user-b") != 42 {
		t.Error("counterpart's view must be unaffected")
	}

	m, _ := f.memberships.GetByRoomAndUser(ctx, room.ID, "user-a")
	if !m.HiddenForUser {
		t.Error("expected auto-hide after delete-for-me")
	}
}

func TestDeleteConversation_GroupRejected(t *testing.T) {
	f := newEngineFixture(t, nil)
	actor := f.addUser("user-a", "t7", domain.RoleMember)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "user-a", "user-a")

	_, err := f.service.DeleteConversation(context.Background(), actor, room.ID)
	if !errors.Is(err, ErrNotDirectChat) {
		t.Fatalf("expected ErrNotDirectChat, got %v", err)
	}
}

func TestCreateDirectRoom_GetOrCreate(t *testing.T) {
	f := newEngineFixture(t, nil)
	a := f.addUser("user-a", "t7", domain.RoleMember)
	b := f.addUser("user-b", "t7", domain.RoleMember)

	ctx := context.Background()
	first, err := f.service.CreateDirectRoom(ctx, a, &dto.CreateDirectRoomRequest{UserID: "user-b"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := f.service.CreateDirectRoom(ctx, b, &dto.CreateDirectRoomRequest{UserID: "user-a"})
	if err != nil {
		t.Fatalf("reverse create failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected same room for both directions, got %s and %s", first.ID, second.ID)
	}
	cid, err := domain.ParseChannelID(first.ExternalChannelID)
	if err != nil {
		t.Fatalf("channel id must parse: %v", err)
	}
	if cid.TenantTag != "t7" {
		t.Errorf("channel id must embed the tenant, got %s", cid.TenantTag)
	}
}

func TestCreateDirectRoom_ConcurrentCallsConverge(t *testing.T) {
	// Both callers derive the same channel id; the insert loser must get
	// the winner's room back, not a unique-constraint failure
	for i := 0; i < 50; i++ {
		f := newEngineFixture(t, nil)
		a := f.addUser("user-a", "t7", domain.RoleMember)
		b := f.addUser("user-b", "t7", domain.RoleMember)

		ctx := context.Background()
		var wg sync.WaitGroup
		results := make([]*dto.RoomResponse, 2)
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0], errs[0] = f.service.CreateDirectRoom(ctx, a, &dto.CreateDirectRoomRequest{UserID: "user-b"})
		}()
		go func() {
			defer wg.Done()
			results[1], errs[1] = f.service.CreateDirectRoom(ctx, b, &dto.CreateDirectRoomRequest{UserID: "user-a"})
		}()
		wg.Wait()

		for j := range errs {
			if errs[j] != nil {
				t.Fatalf("iteration %d caller %d failed: %v", i, j, errs[j])
			}
		}
		if results[0].ID != results[1].ID {
			t.Fatalf("iteration %d: callers got different rooms %s and %s",
				i, results[0].ID, results[1].ID)
		}
	}
}

func TestCreateDirectRoom_Validation(t *testing.T) {
	f := newEngineFixture(t, nil)
	a := f.addUser("user-a", "t7", domain.RoleMember)
	f.addUser("user-x", "t9", domain.RoleMember)

	ctx := context.Background()
	if _, err := f.service.CreateDirectRoom(ctx, a, &dto.CreateDirectRoomRequest{UserID: "user-a"}); !errors.Is(err, ErrCannotChatWithSelf) {
		t.Errorf("expected ErrCannotChatWithSelf, got %v", err)
	}
	if _, err := f.service.CreateDirectRoom(ctx, a, &dto.CreateDirectRoomRequest{UserID: "missing"}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := f.service.CreateDirectRoom(ctx, a, &dto.CreateDirectRoomRequest{UserID: "user-x"}); !errors.Is(err, ErrCrossTenantUser) {
		t.Errorf("expected ErrCrossTenantUser, got %v", err)
	}
}

func TestCreateGroupRoom_RequiresPrivilege(t *testing.T) {
	f := newEngineFixture(t, nil)
	member := f.addUser("user-a", "t7", domain.RoleMember)

	_, err := f.service.CreateGroupRoom(context.Background(), member, &dto.CreateGroupRoomRequest{Name: "lifting club"})
	if !errors.Is(err, ErrNoPermission) {
		t.Fatalf("expected ErrNoPermission, got %v", err)
	}
}

func TestCreateEventRoom_Idempotent(t *testing.T) {
	f := newEngineFixture(t, nil)

	ctx := context.Background()
	first, err := f.service.CreateEventRoom(ctx, "t7", "evt-42", "Open Day", "admin-1")
	if err != nil {
		t.Fatalf("create event room failed: %v", err)
	}
	second, err := f.service.CreateEventRoom(ctx, "t7", "evt-42", "Open Day", "admin-1")
	if err != nil {
		t.Fatalf("repeat create failed: %v", err)
	}
	if first.ID != second.ID {
		t.Error("event room creation must be idempotent per (tenant, event)")
	}
	if first.ExternalChannelID != "t7_event_evt-42" {
		t.Errorf("unexpected event channel id %s", first.ExternalChannelID)
	}
}

func TestUnhideOnNewMessage(t *testing.T) {
	f := newEngineFixture(t, nil)
	a := f.addUser("user-a", "t7", domain.RoleMember)
	f.addUser("user-b", "t7", domain.RoleMember)
	room := f.seedRoom(t, domain.RoomKindDirect, "t7", "user-a", "user-a", "user-b")

	ctx := context.Background()
	if _, err := f.service.SetHidden(ctx, a, room.ID, true); err != nil {
		t.Fatalf("hide failed: %v", err)
	}

	// B sends a message; A's hidden room re-surfaces, B is untouched
	count, err := f.service.UnhideOnNewMessage(ctx, room.ExternalChannelID, "user-b")
	if err != nil {
		t.Fatalf("unhide failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 membership re-surfaced, got %d", count)
	}
	m, _ := f.memberships.GetByRoomAndUser(ctx, room.ID, "user-a")
	if m.HiddenForUser {
		t.Error("expected room re-surfaced for recipient")
	}
}

func TestRemoveMember_LastRemovalClosesRoom(t *testing.T) {
	f := newEngineFixture(t, nil)
	admin := f.addUser("admin-1", "t7", domain.RoleAdmin)
	f.addUser("user-a", "t7", domain.RoleMember)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "admin-1", "user-a")

	ctx := context.Background()
	if err := f.service.RemoveMember(ctx, admin, room.ID, "user-a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	stored, _ := f.rooms.GetByID(ctx, room.ID)
	if stored.Status != domain.RoomStatusClosed {
		t.Error("expected room closed after last member removed")
	}
	if len(f.channels.DeleteCalls) != 1 {
		t.Errorf("expected one teardown, got %d", len(f.channels.DeleteCalls))
	}
}

func TestCrossTenantRoomLooksAbsent(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.addUser("user-a", "t7", domain.RoleMember)
	stranger := f.addUser("user-9", "t9", domain.RoleAdmin)
	room := f.seedRoom(t, domain.RoomKindGroup, "t7", "user-a", "user-a")

	_, err := f.service.DeleteGroup(context.Background(), stranger, room.ID, true)
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("cross-tenant room access must read as not found, got %v", err)
	}
}
