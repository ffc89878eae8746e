package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrInvalidChannelID is returned when a channel id does not follow the
	// <tenant>_<kind>_<ref> format
	ErrInvalidChannelID = errors.New("invalid channel id format")
)

// tenantTagRegex constrains tenant tags so the underscore separators in a
// channel id stay unambiguous
var tenantTagRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

// ChannelID is the parsed form of an external channel identifier. The tenant
// tag is embedded in the id so tenant membership can be verified from the id
// alone, without trusting the provider's own ACLs and without a store lookup.
type ChannelID struct {
	TenantTag string
	Kind      RoomKind
	Ref       string
}

// String renders the canonical <tenant>_<kind>_<ref> form
func (c ChannelID) String() string {
	return fmt.Sprintf("%s_%s_%s", c.TenantTag, c.Kind, c.Ref)
}

// BelongsTo reports whether the channel is scoped to the given tenant
func (c ChannelID) BelongsTo(tenantTag string) bool {
	return c.TenantTag == tenantTag
}

// ParseChannelID parses and validates an external channel id. It fails on
// unknown kinds and malformed tenant tags rather than guessing.
func ParseChannelID(id string) (ChannelID, error) {
	parts := strings.SplitN(id, "_", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return ChannelID{}, ErrInvalidChannelID
	}
	if !tenantTagRegex.MatchString(parts[0]) {
		return ChannelID{}, ErrInvalidChannelID
	}
	kind := RoomKind(parts[1])
	switch kind {
	case RoomKindDirect, RoomKindGroup, RoomKindEvent:
	default:
		return ChannelID{}, ErrInvalidChannelID
	}
	return ChannelID{TenantTag: parts[0], Kind: kind, Ref: parts[2]}, nil
}

// NewChannelID builds a channel id for a tenant, kind and ref
func NewChannelID(tenantTag string, kind RoomKind, ref string) ChannelID {
	return ChannelID{TenantTag: tenantTag, Kind: kind, Ref: ref}
}

// DirectChannelRef derives a deterministic ref for the direct room between
// two users, so concurrent create calls for the same pair converge on the
// same channel id regardless of argument order.
func DirectChannelRef(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	sum := sha256.Sum256([]byte(pair[0] + ":" + pair[1]))
	return hex.EncodeToString(sum[:8])
}
