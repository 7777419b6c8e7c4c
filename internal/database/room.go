// internal/database/room.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fortuno-game/fortuno/internal/models"
)

// ErrConcurrentRoomUpdate means a room row changed under us more times than
// the bounded optimistic retry allows.
var ErrConcurrentRoomUpdate = errors.New("room updated concurrently, retries exhausted")

const roomUpdateRetries = 3

// InsertRoom creates a room row. The directory is advisory: live game truth
// stays in memory, rows here serve discovery and restart bookkeeping.
func InsertRoom(ctx context.Context, room *models.Room) error {
	q := `
	INSERT INTO rooms (id, host_user_id, name, started, version)
	VALUES ($1, $2, $3, $4, 1)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, room.ID, room.HostUserID, room.Name, room.Started)
		return err
	})
}

// GetRoom fetches one room row.
func GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	var r models.Room
	q := `SELECT id, host_user_id, name, started, version FROM rooms WHERE id = $1`
	err := DB.QueryRow(ctx, q, roomID).Scan(&r.ID, &r.HostUserID, &r.Name, &r.Started, &r.Version)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetOpenRooms lists rooms whose game has not started.
func GetOpenRooms(ctx context.Context) ([]models.Room, error) {
	q := `SELECT id, host_user_id, name, started, version FROM rooms WHERE started = false ORDER BY name`
	rows, err := DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var r models.Room
		if err := rows.Scan(&r.ID, &r.HostUserID, &r.Name, &r.Started, &r.Version); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// SetRoomStarted flips the started flag with optimistic concurrency: the
// version column guards against two servers racing the same room, and a
// lost race is re-read and retried a bounded number of times.
func SetRoomStarted(ctx context.Context, roomID uuid.UUID, started bool) error {
	for attempt := 0; attempt < roomUpdateRetries; attempt++ {
		room, err := GetRoom(ctx, roomID)
		if err != nil {
			return fmt.Errorf("read room %s: %w", roomID, err)
		}

		q := `UPDATE rooms SET started = $1, version = version + 1 WHERE id = $2 AND version = $3`
		tag, err := DB.Exec(ctx, q, started, roomID, room.Version)
		if err != nil {
			return fmt.Errorf("update room %s: %w", roomID, err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
	}
	return ErrConcurrentRoomUpdate
}

// InsertParticipant records a user joining a room. Seat order at game start
// follows join order, so joined_at carries the ordering.
func InsertParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	q := `
	INSERT INTO room_participants (room_id, user_id, joined_at)
	VALUES ($1, $2, now())
	ON CONFLICT (room_id, user_id) DO NOTHING
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, roomID, userID)
		return err
	})
}

// GetParticipants returns a room's members in join order.
func GetParticipants(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	q := `SELECT user_id FROM room_participants WHERE room_id = $1 ORDER BY joined_at`
	rows, err := DB.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RemoveParticipant drops a user from a room's membership.
func RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	q := `DELETE FROM room_participants WHERE room_id = $1 AND user_id = $2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, roomID, userID)
		return err
	})
}

// DeleteRoom removes a room row and its participants.
func DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM room_participants WHERE room_id = $1`, roomID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
		return err
	})
}
