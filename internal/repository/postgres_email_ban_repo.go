package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/vault/internal/model"
)

// PostgresEmailBanRepo はPostgreSQLを使用した再登録禁止リポジトリ。
type PostgresEmailBanRepo struct {
	db *sqlx.DB
}

// NewPostgresEmailBanRepo はPostgresEmailBanRepoを生成する。
func NewPostgresEmailBanRepo(db *sqlx.DB) *PostgresEmailBanRepo {
	return &PostgresEmailBanRepo{db: db}
}

// Upsert はBAN期限を登録する。既存の場合は期限を上書きする。
func (r *PostgresEmailBanRepo) Upsert(ctx context.Context, email string, until time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_bans (email, banned_until)
		 VALUES ($1, $2)
		 ON CONFLICT (email) DO UPDATE SET banned_until = EXCLUDED.banned_until`,
		email, until,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert email ban: %w", err)
	}
	return nil
}

// FindActive はnow時点で有効なBANを取得する。
func (r *PostgresEmailBanRepo) FindActive(ctx context.Context, email string, now time.Time) (*model.EmailBan, error) {
	ban := &model.EmailBan{}
	err := r.db.GetContext(ctx, ban,
		`SELECT email, banned_until, created_at FROM email_bans
		 WHERE email = $1 AND banned_until > $2`,
		email, now,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find email ban: %w", err)
	}
	return ban, nil
}

// DeleteExpired は期限切れのBANを削除する。
func (r *PostgresEmailBanRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM email_bans WHERE banned_until <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired email bans: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ EmailBanRepository = (*PostgresEmailBanRepo)(nil)
