package roomstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/pomowave/pomowave/go/internal/dbconfig"
	"github.com/pomowave/pomowave/go/internal/models"
	"github.com/pomowave/pomowave/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	code       TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	timer      JSONB,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS rooms_active_timer_idx ON rooms (expires_at) WHERE timer IS NOT NULL;
`

type roomRow struct {
	Code      string                `db:"code"`
	Data      []byte                `db:"data"`
	Timer     pqtype.NullRawMessage `db:"timer"`
	ExpiresAt time.Time             `db:"expires_at"`
}

// Postgres keeps one row per room. The timer is mirrored into its own column
// so restart recovery can find running waves with an index scan.
type Postgres struct {
	db    *sqlx.DB
	clock clockwork.Clock
	ttl   time.Duration
}

// NewPostgres opens the database, pings it and ensures the schema exists.
func NewPostgres(ctx context.Context, cfg dbconfig.Config, clock clockwork.Clock, ttl time.Duration) (*Postgres, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewPostgresWithDB(db, clock, ttl)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("postgres room store ready")
	return store, nil
}

// NewPostgresWithDB wraps an open connection pool.
func NewPostgresWithDB(db *sqlx.DB, clock clockwork.Clock, ttl time.Duration) *Postgres {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Postgres{db: db, clock: clock, ttl: ttl}
}

// Migrate creates the rooms table if needed.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate rooms schema: %w", err)
	}
	return nil
}

func (s *Postgres) toRow(room *models.Room) (roomRow, error) {
	data, err := encodeRoom(room)
	if err != nil {
		return roomRow{}, err
	}
	timer, err := sqlutil.ToNullRawMessage(room.Timer)
	if err != nil {
		return roomRow{}, fmt.Errorf("encode timer: %w", err)
	}
	return roomRow{
		Code:      room.ID,
		Data:      data,
		Timer:     timer,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}, nil
}

// fromRow decodes a row. The timer column is the one restart recovery
// indexes, so it wins over the copy inside data.
func fromRow(row roomRow) (*models.Room, error) {
	room, err := decodeRoom(row.Data)
	if err != nil {
		return nil, err
	}
	timer, err := sqlutil.FromNullRawMessage[models.Timer](row.Timer)
	if err != nil {
		return nil, fmt.Errorf("decode timer of room %s: %w", row.Code, err)
	}
	room.Timer = timer
	return room, nil
}

func (s *Postgres) Create(ctx context.Context, room *models.Room) error {
	row, err := s.toRow(room)
	if err != nil {
		return err
	}

	// An expired row with the same code may be overwritten.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (code, data, timer, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE
		SET data = EXCLUDED.data, timer = EXCLUDED.timer, expires_at = EXCLUDED.expires_at
		WHERE rooms.expires_at <= $5`,
		row.Code, row.Data, row.Timer, row.ExpiresAt, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to create room %s: %w", room.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create room %s: %w", room.ID, err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id string) (*models.Room, error) {
	var row roomRow
	err := s.db.GetContext(ctx, &row,
		`SELECT code, data, timer, expires_at FROM rooms WHERE code = $1 AND expires_at > $2`,
		id, s.clock.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", id, err)
	}
	return fromRow(row)
}

// Update locks the row for the duration of fn.
func (s *Postgres) Update(ctx context.Context, id string, fn func(*models.Room) error) (*models.Room, error) {
	var updated *models.Room

	err := sqlutil.Run(ctx, s.db, func(tx *sqlx.Tx) error {
		var row roomRow
		err := tx.GetContext(ctx, &row,
			`SELECT code, data, timer, expires_at FROM rooms WHERE code = $1 AND expires_at > $2 FOR UPDATE`,
			id, s.clock.Now())
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock room %s: %w", id, err)
		}

		room, err := fromRow(row)
		if err != nil {
			return err
		}
		if err := fn(room); err != nil {
			return err
		}

		next, err := s.toRow(room)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx,
			`UPDATE rooms SET data = :data, timer = :timer, expires_at = :expires_at WHERE code = :code`,
			next); err != nil {
			return fmt.Errorf("failed to update room %s: %w", id, err)
		}
		updated = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Postgres) ListActive(ctx context.Context) ([]*models.Room, error) {
	var rows []roomRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT code, data, timer, expires_at FROM rooms WHERE timer IS NOT NULL AND expires_at > $1`,
		s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}

	active := make([]*models.Room, 0, len(rows))
	for _, row := range rows {
		room, err := fromRow(row)
		if err != nil {
			log.Warn().Err(err).Str("room_id", row.Code).Msg("skipping undecodable room")
			continue
		}
		active = append(active, room)
	}
	return active, nil
}

func (s *Postgres) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
