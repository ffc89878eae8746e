package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fitgrid-app/backend-chat/internal/domain"
	"github.com/fitgrid-app/backend-chat/internal/provider"
	"github.com/fitgrid-app/backend-chat/internal/repository"
)

// ErrMockFailure is returned when a mock collaborator is configured to fail
var ErrMockFailure = errors.New("mock failure")

// MockRoomRepository is an in-memory implementation of
// repository.RoomRepository. Its mutex stands in for the row locks the
// Postgres implementation takes, which is what makes the concurrency tests
// meaningful.
type MockRoomRepository struct {
	mu    sync.Mutex
	rooms map[string]*domain.Room
	// memberships is shared with MockMembershipRepository so close/leave
	// transactions observe one consistent store
	memberships *MockMembershipRepository
	ShouldFail  bool
}

// NewMockRoomRepository creates a new MockRoomRepository
func NewMockRoomRepository() *MockRoomRepository {
	return &MockRoomRepository{rooms: make(map[string]*domain.Room)}
}

// Create creates a new room, enforcing the unique channel constraint the
// Postgres schema carries
func (r *MockRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if r.ShouldFail {
		return ErrMockFailure
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rooms {
		if existing.ExternalChannelID == room.ExternalChannelID {
			return repository.ErrDuplicateChannel
		}
	}
	copied := *room
	r.rooms[room.ID] = &copied
	return nil
}

// GetByID retrieves a room by ID
func (r *MockRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if r.ShouldFail {
		return nil, ErrMockFailure
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, nil
	}
	copied := *room
	return &copied, nil
}

// GetByChannelID retrieves a room by its external channel id
func (r *MockRoomRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.Room, error) {
	if r.ShouldFail {
		return nil, ErrMockFailure
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if room.ExternalChannelID == channelID {
			copied := *room
			return &copied, nil
		}
	}
	return nil, nil
}

// GetByEventRef retrieves the event room for an event within a tenant
func (r *MockRoomRepository) GetByEventRef(ctx context.Context, tenantID, eventRef string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if room.TenantID == tenantID && room.EventRef == eventRef && room.Kind == domain.RoomKindEvent {
			copied := *room
			return &copied, nil
		}
	}
	return nil, nil
}

// CloseIfEmpty transitions the room to CLOSED only when no active
// memberships remain
func (r *MockRoomRepository) CloseIfEmpty(ctx context.Context, roomID string) (*repository.CloseResult, error) {
	if r.ShouldFail {
		return nil, ErrMockFailure
	}
	// Lock order matches Leave/Add: memberships first, then rooms
	if r.memberships != nil {
		r.memberships.mu.Lock()
		defer r.memberships.mu.Unlock()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, nil
	}
	remaining := 0
	if r.memberships != nil {
		remaining = r.memberships.countActiveLocked(roomID)
	}
	if remaining > 0 {
		return &repository.CloseResult{Remaining: remaining}, nil
	}
	if room.Status == domain.RoomStatusClosed {
		return &repository.CloseResult{AlreadyClosed: true}, nil
	}
	room.Status = domain.RoomStatusClosed
	room.UpdatedAt = time.Now()
	return &repository.CloseResult{Closed: true}, nil
}

// Close unconditionally transitions the room to CLOSED
func (r *MockRoomRepository) Close(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return errors.New("room not found")
	}
	room.Status = domain.RoomStatusClosed
	return nil
}

// HardDelete removes the room row and its membership history
func (r *MockRoomRepository) HardDelete(ctx context.Context, roomID string) error {
	if r.ShouldFail {
		return ErrMockFailure
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		return errors.New("room not found")
	}
	delete(r.rooms, roomID)
	return nil
}

// ListVisibleForUser retrieves the rooms a user actively participates in
// and has not hidden
func (r *MockRoomRepository) ListVisibleForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Room, int, error) {
	if r.memberships != nil {
		r.memberships.mu.Lock()
		defer r.memberships.mu.Unlock()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	visible := make([]*domain.Room, 0)
	for _, room := range r.rooms {
		if r.memberships == nil {
			continue
		}
		m := r.memberships.getLocked(room.ID, userID)
		if m != nil && m.IsActive() && !m.HiddenForUser {
			copied := *room
			visible = append(visible, &copied)
		}
	}
	total := len(visible)
	if offset >= len(visible) {
		return []*domain.Room{}, total, nil
	}
	end := offset + limit
	if end > len(visible) {
		end = len(visible)
	}
	return visible[offset:end], total, nil
}

// MockMembershipRepository is an in-memory implementation of
// repository.MembershipRepository
type MockMembershipRepository struct {
	mu    sync.Mutex
	rows  map[string]map[string]*domain.Membership // roomID -> userID -> row
	rooms *MockRoomRepository
	// ShouldFail makes every call fail
	ShouldFail bool
}

// NewMockMembershipRepository creates a membership mock wired to the room
// mock so leave transactions can flip room status the way the Postgres
// transaction does
func NewMockMembershipRepository(rooms *MockRoomRepository) *MockMembershipRepository {
	m := &MockMembershipRepository{
		rows:  make(map[string]map[string]*domain.Membership),
		rooms: rooms,
	}
	if rooms != nil {
		rooms.memberships = m
	}
	return m
}

func (r *MockMembershipRepository) getLocked(roomID, userID string) *domain.Membership {
	byUser, ok := r.rows[roomID]
	if !ok {
		return nil
	}
	return byUser[userID]
}

func (r *MockMembershipRepository) countActiveLocked(roomID string) int {
	count := 0
	for _, m := range r.rows[roomID] {
		if m.IsActive() {
			count++
		}
	}
	return count
}

// Add inserts a membership or reactivates a previously-left row
func (r *MockMembershipRepository) Add(ctx context.Context, m *domain.Membership) error {
	if r.ShouldFail {
		return ErrMockFailure
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms != nil {
		r.rooms.mu.Lock()
		room, ok := r.rooms.rooms[m.RoomID]
		active := ok && room.Status == domain.RoomStatusActive
		r.rooms.mu.Unlock()
		if !ok {
			return errors.New("room not found")
		}
		if !active {
			return repository.ErrRoomNotActive
		}
	}
	if r.rows[m.RoomID] == nil {
		r.rows[m.RoomID] = make(map[string]*domain.Membership)
	}
	copied := *m
	copied.LeftAt = nil
	copied.HiddenForUser = false
	r.rows[m.RoomID][m.UserID] = &copied
	return nil
}

// GetByRoomAndUser retrieves the membership row for a (room, user) pair
func (r *MockMembershipRepository) GetByRoomAndUser(ctx context.Context, roomID, userID string) (*domain.Membership, error) {
	if r.ShouldFail {
		return nil, ErrMockFailure
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.getLocked(roomID, userID)
	if m == nil {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

// SetHidden updates local visibility state for one user
func (r *MockMembershipRepository) SetHidden(ctx context.Context, roomID, userID string, hidden bool) error {
	if r.ShouldFail {
		return ErrMockFailure
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.getLocked(roomID, userID)
	if m == nil {
		return errors.New("membership not found")
	}
	m.HiddenForUser = hidden
	return nil
}

// Leave marks the membership as left and closes the room when the last
// member leaves, all under one lock like the Postgres transaction
func (r *MockMembershipRepository) Leave(ctx context.Context, roomID, userID string, autoHide bool) (*repository.LeaveResult, error) {
	if r.ShouldFail {
		return nil, ErrMockFailure
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &repository.LeaveResult{}
	m := r.getLocked(roomID, userID)
	if m == nil || !m.IsActive() {
		result.AlreadyLeft = true
	} else {
		now := time.Now()
		m.LeftAt = &now
		if autoHide {
			m.HiddenForUser = true
		}
	}
	result.Remaining = r.countActiveLocked(roomID)

	if result.Remaining == 0 && !result.AlreadyLeft && r.rooms != nil {
		r.rooms.mu.Lock()
		room, ok := r.rooms.rooms[roomID]
		if ok && room.Status == domain.RoomStatusActive {
			room.Status = domain.RoomStatusClosed
			result.RoomClosed = true
		}
		r.rooms.mu.Unlock()
	}
	return result, nil
}

// CountActive returns the number of active memberships in a room
func (r *MockMembershipRepository) CountActive(ctx context.Context, roomID string) (int, error) {
	if r.ShouldFail {
		return 0, ErrMockFailure
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countActiveLocked(roomID), nil
}

// ActiveMembers retrieves all active memberships in a room
func (r *MockMembershipRepository) ActiveMembers(ctx context.Context, roomID string) ([]*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := make([]*domain.Membership, 0)
	for _, m := range r.rows[roomID] {
		if m.IsActive() {
			copied := *m
			members = append(members, &copied)
		}
	}
	return members, nil
}

// IsActiveMemberOfChannel answers the webhook fast path
func (r *MockMembershipRepository) IsActiveMemberOfChannel(ctx context.Context, channelID, userID string) (bool, error) {
	if r.ShouldFail {
		return false, ErrMockFailure
	}
	if r.rooms == nil {
		return false, nil
	}
	room, err := r.rooms.GetByChannelID(ctx, channelID)
	if err != nil || room == nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.getLocked(room.ID, userID)
	return m != nil && m.IsActive(), nil
}

// UnhideForChannel resets hidden_for_user for every active member except
// the sender
func (r *MockMembershipRepository) UnhideForChannel(ctx context.Context, channelID, exceptUserID string) (int, error) {
	if r.ShouldFail {
		return 0, ErrMockFailure
	}
	if r.rooms == nil {
		return 0, nil
	}
	room, err := r.rooms.GetByChannelID(ctx, channelID)
	if err != nil || room == nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for userID, m := range r.rows[room.ID] {
		if userID != exceptUserID && m.IsActive() && m.HiddenForUser {
			m.HiddenForUser = false
			count++
		}
	}
	return count, nil
}

// MockUserRepository is an in-memory implementation of
// repository.UserRepository
type MockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
	// ShouldFail makes every call fail
	ShouldFail bool
}

// NewMockUserRepository creates a new MockUserRepository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

// Put stores a user (for testing)
func (r *MockUserRepository) Put(user *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
}

// GetByID retrieves an active user by ID
func (r *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if r.ShouldFail {
		return nil, ErrMockFailure
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

// MockChannelProvider is an in-memory implementation of
// provider.ChannelProvider that records calls for assertions
type MockChannelProvider struct {
	mu       sync.Mutex
	channels map[string]*provider.ChannelInfo
	messages map[string]map[string]int // channelID -> userID -> visible message count

	// DeleteCalls records (channelID, hard) pairs in order
	DeleteCalls []MockDeleteCall
	// ShouldFail makes every call fail with FailureError (or ErrUnavailable)
	ShouldFail   bool
	FailureError error
}

// MockDeleteCall records one DeleteChannel invocation
type MockDeleteCall struct {
	ChannelID string
	Hard      bool
}

// NewMockChannelProvider creates a new MockChannelProvider
func NewMockChannelProvider() *MockChannelProvider {
	return &MockChannelProvider{
		channels: make(map[string]*provider.ChannelInfo),
		messages: make(map[string]map[string]int),
	}
}

func (p *MockChannelProvider) failure() error {
	if p.FailureError != nil {
		return p.FailureError
	}
	return provider.ErrUnavailable
}

// PutChannel seeds a provider-side channel (for testing)
func (p *MockChannelProvider) PutChannel(info *provider.ChannelInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *info
	p.channels[info.ChannelID] = &copied
}

// PutMessages seeds per-user visible message counts (for testing)
func (p *MockChannelProvider) PutMessages(channelID, userID string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages[channelID] == nil {
		p.messages[channelID] = make(map[string]int)
	}
	p.messages[channelID][userID] = count
}

// MessageCount returns the visible message count for a user (for testing)
func (p *MockChannelProvider) MessageCount(channelID, userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[channelID][userID]
}

// HasChannel reports whether the provider holds the channel (for testing)
func (p *MockChannelProvider) HasChannel(channelID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.channels[channelID]
	return ok
}

// CreateChannel creates a channel in the provider
func (p *MockChannelProvider) CreateChannel(ctx context.Context, req *provider.CreateChannelRequest) (*provider.ChannelInfo, error) {
	if p.ShouldFail {
		return nil, p.failure()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	info := &provider.ChannelInfo{
		ChannelID: req.ChannelID,
		Kind:      req.Kind,
		TenantTag: req.TenantTag,
		OwnerID:   req.CreatedBy,
	}
	p.channels[req.ChannelID] = info
	copied := *info
	return &copied, nil
}

// DeleteChannel deletes a channel in the provider
func (p *MockChannelProvider) DeleteChannel(ctx context.Context, channelID string, hard bool) error {
	if p.ShouldFail {
		return p.failure()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DeleteCalls = append(p.DeleteCalls, MockDeleteCall{ChannelID: channelID, Hard: hard})
	if _, ok := p.channels[channelID]; !ok {
		return provider.ErrChannelNotFound
	}
	if hard {
		delete(p.channels, channelID)
		delete(p.messages, channelID)
	} else {
		p.channels[channelID].Frozen = true
	}
	return nil
}

// GetChannelMetadata retrieves channel metadata from the provider
func (p *MockChannelProvider) GetChannelMetadata(ctx context.Context, channelID string) (*provider.ChannelInfo, error) {
	if p.ShouldFail {
		return nil, p.failure()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.channels[channelID]
	if !ok {
		return nil, provider.ErrChannelNotFound
	}
	copied := *info
	return &copied, nil
}

// SoftDeleteMessagesForUser removes all of one user's visible messages
func (p *MockChannelProvider) SoftDeleteMessagesForUser(ctx context.Context, channelID, userID string) (int, error) {
	if p.ShouldFail {
		return 0, p.failure()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; !ok {
		return 0, provider.ErrChannelNotFound
	}
	count := p.messages[channelID][userID]
	if p.messages[channelID] != nil {
		p.messages[channelID][userID] = 0
	}
	return count, nil
}

// MockMembershipCache is an in-memory implementation of MembershipCacheStore
type MockMembershipCache struct {
	mu          sync.Mutex
	memberships map[string]bool
	actors      map[string]*domain.User
}

// NewMockMembershipCache creates a new MockMembershipCache
func NewMockMembershipCache() *MockMembershipCache {
	return &MockMembershipCache{
		memberships: make(map[string]bool),
		actors:      make(map[string]*domain.User),
	}
}

// GetMembership returns the cached membership answer
func (c *MockMembershipCache) GetMembership(ctx context.Context, channelID, userID string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	member, hit := c.memberships[channelID+":"+userID]
	return member, hit, nil
}

// SetMembership stores a membership answer
func (c *MockMembershipCache) SetMembership(ctx context.Context, channelID, userID string, member bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memberships[channelID+":"+userID] = member
	return nil
}

// InvalidateMembership drops the cached answer for one pair
func (c *MockMembershipCache) InvalidateMembership(ctx context.Context, channelID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.memberships, channelID+":"+userID)
	return nil
}

// InvalidateChannel drops every cached answer for a channel
func (c *MockMembershipCache) InvalidateChannel(ctx context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := channelID + ":"
	for key := range c.memberships {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.memberships, key)
		}
	}
	return nil
}

// GetActor returns the cached resolved actor
func (c *MockMembershipCache) GetActor(ctx context.Context, userID string) (*domain.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	user, hit := c.actors[userID]
	if !hit {
		return nil, false, nil
	}
	copied := *user
	return &copied, true, nil
}

// SetActor stores a resolved actor
func (c *MockMembershipCache) SetActor(ctx context.Context, user *domain.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *user
	c.actors[user.ID] = &copied
	return nil
}

// MockEventClient is an in-memory implementation of client.EventClient
type MockEventClient struct {
	mu          sync.Mutex
	registrants map[string]bool // eventRef:userID
	// ShouldFail makes every call fail
	ShouldFail bool
}

// NewMockEventClient creates a new MockEventClient
func NewMockEventClient() *MockEventClient {
	return &MockEventClient{registrants: make(map[string]bool)}
}

// Register marks a user as registered for an event (for testing)
func (c *MockEventClient) Register(eventRef, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registrants[eventRef+":"+userID] = true
}

// IsRegistered reports whether the user is registered for the event
func (c *MockEventClient) IsRegistered(ctx context.Context, tenantID, eventRef, userID string) (bool, error) {
	if c.ShouldFail {
		return false, ErrMockFailure
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registrants[eventRef+":"+userID], nil
}
