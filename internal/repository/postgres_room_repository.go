package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitgrid-app/backend-chat/internal/domain"
)

// ErrDuplicateChannel is returned when creating a room whose external channel
// id (or tenant/event pair) already has a row; concurrent creators converge
// on the existing room
var ErrDuplicateChannel = errors.New("room already exists for this channel")

const roomColumns = `id, tenant_id, kind, external_channel_id, external_channel_kind,
	COALESCE(display_name, '') as display_name, status,
	COALESCE(event_ref, '') as event_ref, creator_id, created_at, updated_at`

// PostgresRoomRepository implements RoomRepository using PostgreSQL
type PostgresRoomRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRoomRepository creates a new PostgresRoomRepository
func NewPostgresRoomRepository(pool *pgxpool.Pool) *PostgresRoomRepository {
	return &PostgresRoomRepository{pool: pool}
}

// scanRoom scans a row into a Room struct
func scanRoom(row pgx.Row) (*domain.Room, error) {
	room := &domain.Room{}
	err := row.Scan(
		&room.ID,
		&room.TenantID,
		&room.Kind,
		&room.ExternalChannelID,
		&room.ExternalChannelKind,
		&room.DisplayName,
		&room.Status,
		&room.EventRef,
		&room.CreatorID,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// Create creates a new room
func (r *PostgresRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (id, tenant_id, kind, external_channel_id, external_channel_kind,
			display_name, status, event_ref, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		room.ID,
		room.TenantID,
		room.Kind,
		room.ExternalChannelID,
		room.ExternalChannelKind,
		nullStringOrValue(room.DisplayName),
		room.Status,
		nullStringOrValue(room.EventRef),
		room.CreatorID,
		room.CreatedAt,
		room.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateChannel
	}
	return err
}

// GetByID retrieves a room by ID
func (r *PostgresRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	return scanRoom(r.pool.QueryRow(ctx, query, id))
}

// GetByChannelID retrieves a room by its external channel id
func (r *PostgresRoomRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE external_channel_id = $1`
	return scanRoom(r.pool.QueryRow(ctx, query, channelID))
}

// GetByEventRef retrieves the event room for an event within a tenant
func (r *PostgresRoomRepository) GetByEventRef(ctx context.Context, tenantID, eventRef string) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE tenant_id = $1 AND event_ref = $2 AND kind = 'event'`
	return scanRoom(r.pool.QueryRow(ctx, query, tenantID, eventRef))
}

// CloseIfEmpty transitions the room to CLOSED only when no active
// memberships remain. The membership count is re-validated under the room
// row lock so a concurrent join cannot race the close.
func (r *PostgresRoomRepository) CloseIfEmpty(ctx context.Context, roomID string) (*CloseResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status domain.RoomStatus
	err = tx.QueryRow(ctx, `SELECT status FROM rooms WHERE id = $1 FOR UPDATE`, roomID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var remaining int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM room_memberships WHERE room_id = $1 AND left_at IS NULL`,
		roomID).Scan(&remaining)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		return &CloseResult{Remaining: remaining}, tx.Commit(ctx)
	}

	result := &CloseResult{}
	if status == domain.RoomStatusClosed {
		result.AlreadyClosed = true
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE rooms SET status = 'closed', updated_at = $2 WHERE id = $1`,
			roomID, time.Now())
		if err != nil {
			return nil, err
		}
		result.Closed = true
	}
	return result, tx.Commit(ctx)
}

// Close unconditionally transitions the room to CLOSED
func (r *PostgresRoomRepository) Close(ctx context.Context, roomID string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE rooms SET status = 'closed', updated_at = $2 WHERE id = $1`,
		roomID, time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.New("room not found")
	}
	return nil
}

// HardDelete removes the room row and its membership history
func (r *PostgresRoomRepository) HardDelete(ctx context.Context, roomID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM room_memberships WHERE room_id = $1`, roomID); err != nil {
		return err
	}
	result, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.New("room not found")
	}
	return tx.Commit(ctx)
}

// ListVisibleForUser retrieves the rooms a user actively participates in
// and has not hidden, newest first
func (r *PostgresRoomRepository) ListVisibleForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Room, int, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM rooms r
		JOIN room_memberships m ON m.room_id = r.id
		WHERE m.user_id = $1 AND m.left_at IS NULL AND m.hidden_for_user = FALSE
	`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + prefixedRoomColumns("r") + `
		FROM rooms r
		JOIN room_memberships m ON m.room_id = r.id
		WHERE m.user_id = $1 AND m.left_at IS NULL AND m.hidden_for_user = FALSE
		ORDER BY r.updated_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	rooms := make([]*domain.Room, 0)
	for rows.Next() {
		room := &domain.Room{}
		err := rows.Scan(
			&room.ID,
			&room.TenantID,
			&room.Kind,
			&room.ExternalChannelID,
			&room.ExternalChannelKind,
			&room.DisplayName,
			&room.Status,
			&room.EventRef,
			&room.CreatorID,
			&room.CreatedAt,
			&room.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		rooms = append(rooms, room)
	}
	return rooms, total, rows.Err()
}

func prefixedRoomColumns(alias string) string {
	return alias + `.id, ` + alias + `.tenant_id, ` + alias + `.kind, ` +
		alias + `.external_channel_id, ` + alias + `.external_channel_kind,
	COALESCE(` + alias + `.display_name, '') as display_name, ` + alias + `.status,
	COALESCE(` + alias + `.event_ref, '') as event_ref, ` + alias + `.creator_id, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}

// nullStringOrValue returns nil for empty strings, otherwise returns the value
func nullStringOrValue(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
