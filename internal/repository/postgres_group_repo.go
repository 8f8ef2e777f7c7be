package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/vault/internal/model"
)

const groupColumns = `id, user_id, name, "order", created_at`

// PostgresGroupRepo はPostgreSQLを使用したグループリポジトリ。
type PostgresGroupRepo struct {
	db *sqlx.DB
}

// NewPostgresGroupRepo はPostgresGroupRepoを生成する。
func NewPostgresGroupRepo(db *sqlx.DB) *PostgresGroupRepo {
	return &PostgresGroupRepo{db: db}
}

// ListByUser は所有ユーザーのグループをorder順に返す。
func (r *PostgresGroupRepo) ListByUser(ctx context.Context, ownerID string) ([]*model.Group, error) {
	groups := []*model.Group{}
	err := r.db.SelectContext(ctx, &groups,
		`SELECT `+groupColumns+` FROM groups WHERE user_id = $1 ORDER BY "order", created_at`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// FindByID は所有ユーザーのグループを取得する。見つからない場合はnilを返す。
func (r *PostgresGroupRepo) FindByID(ctx context.Context, ownerID, id string) (*model.Group, error) {
	group := &model.Group{}
	err := r.db.GetContext(ctx, group,
		`SELECT `+groupColumns+` FROM groups WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	return group, nil
}

// Create はグループを作成する。
func (r *PostgresGroupRepo) Create(ctx context.Context, group *model.Group) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO groups (id, user_id, name, "order", created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		group.ID, group.UserID, group.Name, group.Order, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", translateError(err))
	}
	return nil
}

// Delete は所有ユーザーのグループを削除する。
func (r *PostgresGroupRepo) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM groups WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete group: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ GroupRepository = (*PostgresGroupRepo)(nil)
