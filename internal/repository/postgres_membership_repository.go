package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitgrid-app/backend-chat/internal/domain"
)

// ErrRoomNotActive is returned when adding a member to a closed room
var ErrRoomNotActive = errors.New("room is not active")

// PostgresMembershipRepository implements MembershipRepository using PostgreSQL
type PostgresMembershipRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMembershipRepository creates a new PostgresMembershipRepository
func NewPostgresMembershipRepository(pool *pgxpool.Pool) *PostgresMembershipRepository {
	return &PostgresMembershipRepository{pool: pool}
}

// Add inserts a membership or reactivates a previously-left row. It locks
// the room row first so it serializes against Leave and CloseIfEmpty on the
// same room.
func (r *PostgresMembershipRepository) Add(ctx context.Context, m *domain.Membership) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status domain.RoomStatus
	err = tx.QueryRow(ctx, `SELECT status FROM rooms WHERE id = $1 FOR UPDATE`, m.RoomID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.New("room not found")
		}
		return err
	}
	if status != domain.RoomStatusActive {
		return ErrRoomNotActive
	}

	query := `
		INSERT INTO room_memberships (room_id, user_id, hidden_for_user, joined_at, left_at)
		VALUES ($1, $2, $3, $4, NULL)
		ON CONFLICT (room_id, user_id)
		DO UPDATE SET left_at = NULL, hidden_for_user = FALSE, joined_at = EXCLUDED.joined_at
	`
	if _, err := tx.Exec(ctx, query, m.RoomID, m.UserID, m.HiddenForUser, m.JoinedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByRoomAndUser retrieves the membership row for a (room, user) pair
func (r *PostgresMembershipRepository) GetByRoomAndUser(ctx context.Context, roomID, userID string) (*domain.Membership, error) {
	query := `
		SELECT room_id, user_id, hidden_for_user, joined_at, left_at
		FROM room_memberships
		WHERE room_id = $1 AND user_id = $2
	`
	m := &domain.Membership{}
	err := r.pool.QueryRow(ctx, query, roomID, userID).Scan(
		&m.RoomID,
		&m.UserID,
		&m.HiddenForUser,
		&m.JoinedAt,
		&m.LeftAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// SetHidden updates local visibility state for one user
func (r *PostgresMembershipRepository) SetHidden(ctx context.Context, roomID, userID string, hidden bool) error {
	query := `
		UPDATE room_memberships
		SET hidden_for_user = $3
		WHERE room_id = $1 AND user_id = $2
	`
	result, err := r.pool.Exec(ctx, query, roomID, userID, hidden)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.New("membership not found")
	}
	return nil
}

// Leave marks the caller's membership as left and re-counts the remaining
// active members. The count and the CLOSED transition happen under the same
// room row lock as the left_at write, so two concurrent last-member leaves
// cannot both observe zero: the loser sees AlreadyLeft and the room already
// closed.
func (r *PostgresMembershipRepository) Leave(ctx context.Context, roomID, userID string, autoHide bool) (*LeaveResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status domain.RoomStatus
	err = tx.QueryRow(ctx, `SELECT status FROM rooms WHERE id = $1 FOR UPDATE`, roomID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("room not found")
		}
		return nil, err
	}

	result := &LeaveResult{}

	update := `
		UPDATE room_memberships
		SET left_at = $3, hidden_for_user = (hidden_for_user OR $4)
		WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL
	`
	tag, err := tx.Exec(ctx, update, roomID, userID, time.Now(), autoHide)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		result.AlreadyLeft = true
	}

	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM room_memberships WHERE room_id = $1 AND left_at IS NULL`,
		roomID).Scan(&result.Remaining)
	if err != nil {
		return nil, err
	}

	if result.Remaining == 0 && status == domain.RoomStatusActive && !result.AlreadyLeft {
		_, err = tx.Exec(ctx,
			`UPDATE rooms SET status = 'closed', updated_at = $2 WHERE id = $1`,
			roomID, time.Now())
		if err != nil {
			return nil, err
		}
		result.RoomClosed = true
	}

	return result, tx.Commit(ctx)
}

// CountActive returns the number of active memberships in a room
func (r *PostgresMembershipRepository) CountActive(ctx context.Context, roomID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM room_memberships WHERE room_id = $1 AND left_at IS NULL`,
		roomID).Scan(&count)
	return count, err
}

// ActiveMembers retrieves all active memberships in a room
func (r *PostgresMembershipRepository) ActiveMembers(ctx context.Context, roomID string) ([]*domain.Membership, error) {
	query := `
		SELECT room_id, user_id, hidden_for_user, joined_at, left_at
		FROM room_memberships
		WHERE room_id = $1 AND left_at IS NULL
		ORDER BY joined_at ASC
	`
	rows, err := r.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]*domain.Membership, 0)
	for rows.Next() {
		m := &domain.Membership{}
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.HiddenForUser, &m.JoinedAt, &m.LeftAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// IsActiveMemberOfChannel answers the webhook fast path. Both sides of the
// join are covered by indexes (rooms.external_channel_id unique, the
// partial active-membership index), keeping it a point lookup.
func (r *PostgresMembershipRepository) IsActiveMemberOfChannel(ctx context.Context, channelID, userID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM room_memberships m
			JOIN rooms r ON r.id = m.room_id
			WHERE r.external_channel_id = $1 AND m.user_id = $2 AND m.left_at IS NULL
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, channelID, userID).Scan(&exists)
	return exists, err
}

// UnhideForChannel resets hidden_for_user for every active member of the
// channel's room except the message sender
func (r *PostgresMembershipRepository) UnhideForChannel(ctx context.Context, channelID, exceptUserID string) (int, error) {
	query := `
		UPDATE room_memberships m
		SET hidden_for_user = FALSE
		FROM rooms r
		WHERE r.id = m.room_id
		  AND r.external_channel_id = $1
		  AND m.user_id <> $2
		  AND m.left_at IS NULL
		  AND m.hidden_for_user = TRUE
	`
	result, err := r.pool.Exec(ctx, query, channelID, exceptUserID)
	if err != nil {
		return 0, err
	}
	return int(result.RowsAffected()), nil
}
