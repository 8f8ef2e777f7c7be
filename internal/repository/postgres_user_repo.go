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

const userColumns = `id, external_id, email, name, avatar, created_at, banned_until`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sqlx.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByExternalID はOAuthのsubjectでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateWithDefaultGroups はユーザーと初期グループを同一トランザクションで作成する。
// external_idまたはemailが重複する場合はErrDuplicateを返す。
func (r *PostgresUserRepo) CreateWithDefaultGroups(ctx context.Context, user *model.User, groups []*model.Group) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, external_id, email, name, avatar, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.ExternalID, user.Email, user.Name, user.Avatar, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", translateError(err))
	}

	if len(groups) > 0 {
		insert := psql.Insert("groups").Columns("id", "user_id", "name", `"order"`, "created_at")
		for _, g := range groups {
			insert = insert.Values(g.ID, g.UserID, g.Name, g.Order, g.CreatedAt)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build default groups insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert default groups: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetBannedUntil はユーザーのBAN期限を設定する。
func (r *PostgresUserRepo) SetBannedUntil(ctx context.Context, id string, until time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET banned_until = $1 WHERE id = $2`, until, id)
	if err != nil {
		return fmt.Errorf("failed to set banned_until: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
// sessions、groups、linksはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
