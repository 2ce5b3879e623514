package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type progressRow struct {
	UserID          string     `db:"user_id"`
	Stamps          int        `db:"stamps"`
	RewardAvailable bool       `db:"reward_available"`
	LastScanAt      *time.Time `db:"last_scan_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (p *progressRow) toModel() *model.Progress {
	return &model.Progress{
		UserID:          p.UserID,
		Stamps:          p.Stamps,
		RewardAvailable: p.RewardAvailable,
		LastScanAt:      p.LastScanAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// GetOrCreateProgress returns the progress row for userID, registering the
// user with a zeroed row on first reference. Idempotent: repeat calls for an
// existing user read without writing.
func (r *Repository) GetOrCreateProgress(ctx context.Context, userID string) (*model.Progress, error) {
	var row progressRow

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.ensureUserTx(ctx, tx, userID); err != nil {
			return err
		}

		query, args, err := squirrel.
			Select("user_id", "stamps", "reward_available", "last_scan_at", "updated_at").
			From("progress").
			Where(squirrel.Eq{"user_id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		err = tx.GetContext(ctx, &row, query, args...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return row.toModel(), nil
}

// MutateProgress runs mutate against the user's progress row under a row
// lock, creating the row first if absent. The row is written back only when
// mutate reports a write, so rejected scans commit nothing. This serializes
// read-modify-write per user id.
func (r *Repository) MutateProgress(ctx context.Context, userID string, mutate func(p *model.Progress) (bool, error)) (*model.Progress, error) {
	var out *model.Progress

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.ensureUserTx(ctx, tx, userID); err != nil {
			return err
		}

		query, args, err := squirrel.
			Select("user_id", "stamps", "reward_available", "last_scan_at", "updated_at").
			From("progress").
			Where(squirrel.Eq{"user_id": userID}).
			Suffix("FOR UPDATE").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		var row progressRow
		err = tx.GetContext(ctx, &row, query, args...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		p := row.toModel()
		write, err := mutate(p)
		if err != nil {
			return err
		}
		out = p
		if !write {
			return nil
		}

		updateQuery, updateArgs, err := squirrel.
			Update("progress").
			SetMap(map[string]interface{}{
				"stamps":           p.Stamps,
				"reward_available": p.RewardAvailable,
				"last_scan_at":     p.LastScanAt,
				"updated_at":       p.UpdatedAt,
			}).
			Where(squirrel.Eq{"user_id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, updateQuery, updateArgs...)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotFound
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

type userRow struct {
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// GetUser is a plain lookup: unknown ids come back as ErrNotFound instead of
// being registered.
func (r *Repository) GetUser(ctx context.Context, userID string) (*model.User, error) {
	query, args, err := squirrel.
		Select("user_id", "created_at").
		From("users").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row userRow
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &model.User{
		ID:        row.UserID,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (r *Repository) ensureUserTx(ctx context.Context, tx *sqlx.Tx, userID string) error {
	now := time.Now().UTC()

	userQuery, userArgs, err := squirrel.
		Insert("users").
		SetMap(map[string]interface{}{
			"user_id":    userID,
			"created_at": now,
		}).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user insert query: %w", err)
	}

	_, err = tx.ExecContext(ctx, userQuery, userArgs...)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	progressQuery, progressArgs, err := squirrel.
		Insert("progress").
		SetMap(map[string]interface{}{
			"user_id":          userID,
			"stamps":           0,
			"reward_available": false,
			"last_scan_at":     nil,
			"updated_at":       now,
		}).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build progress insert query: %w", err)
	}

	_, err = tx.ExecContext(ctx, progressQuery, progressArgs...)
	if err != nil {
		return fmt.Errorf("failed to insert progress: %w", err)
	}

	return nil
}
