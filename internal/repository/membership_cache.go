package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fitgrid-app/backend-chat/internal/domain"
)

// MembershipCache caches webhook-path lookups in Redis. The authorization
// webhook sits on the provider's request path and must answer within a
// bounded latency, so positive and negative membership answers and resolved
// actors are cached with short TTLs. Cache entries are invalidated on every
// membership write; a stale entry can only outlive a change by the TTL.
type MembershipCache struct {
	rdb           *redis.Client
	membershipTTL time.Duration
	actorTTL      time.Duration
}

// MembershipCacheConfig holds TTL settings for the cache
type MembershipCacheConfig struct {
	MembershipTTL time.Duration
	ActorTTL      time.Duration
}

// NewMembershipCache creates a new MembershipCache
func NewMembershipCache(rdb *redis.Client, cfg *MembershipCacheConfig) *MembershipCache {
	membershipTTL := 30 * time.Second
	actorTTL := 5 * time.Minute
	if cfg != nil {
		if cfg.MembershipTTL > 0 {
			membershipTTL = cfg.MembershipTTL
		}
		if cfg.ActorTTL > 0 {
			actorTTL = cfg.ActorTTL
		}
	}
	return &MembershipCache{
		rdb:           rdb,
		membershipTTL: membershipTTL,
		actorTTL:      actorTTL,
	}
}

func membershipKey(channelID, userID string) string {
	return fmt.Sprintf("chat:member:%s:%s", channelID, userID)
}

func actorKey(userID string) string {
	return fmt.Sprintf("chat:actor:%s", userID)
}

// GetMembership returns the cached membership answer and whether the cache
// held one
func (c *MembershipCache) GetMembership(ctx context.Context, channelID, userID string) (member bool, hit bool, err error) {
	val, err := c.rdb.Get(ctx, membershipKey(channelID, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, err
	}
	return val == "1", true, nil
}

// SetMembership stores a membership answer
func (c *MembershipCache) SetMembership(ctx context.Context, channelID, userID string, member bool) error {
	val := "0"
	if member {
		val = "1"
	}
	return c.rdb.Set(ctx, membershipKey(channelID, userID), val, c.membershipTTL).Err()
}

// InvalidateMembership drops the cached answer for one (channel, user) pair
func (c *MembershipCache) InvalidateMembership(ctx context.Context, channelID, userID string) error {
	return c.rdb.Del(ctx, membershipKey(channelID, userID)).Err()
}

// InvalidateChannel drops every cached membership answer for a channel
func (c *MembershipCache) InvalidateChannel(ctx context.Context, channelID string) error {
	pattern := fmt.Sprintf("chat:member:%s:*", channelID)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// GetActor returns the cached resolved actor and whether the cache held one
func (c *MembershipCache) GetActor(ctx context.Context, userID string) (*domain.User, bool, error) {
	val, err := c.rdb.Get(ctx, actorKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	user := &domain.User{}
	if err := json.Unmarshal(val, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// SetActor stores a resolved actor
func (c *MembershipCache) SetActor(ctx context.Context, user *domain.User) error {
	buf, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, actorKey(user.ID), buf, c.actorTTL).Err()
}
