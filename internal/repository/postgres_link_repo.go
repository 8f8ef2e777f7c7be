package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/vault/internal/model"
)

var linkColumns = []string{"id", "user_id", "group_id", "url", "title", "note", "is_pinned", "click_count", "created_at"}

// PostgresLinkRepo はPostgreSQLを使用したリンクリポジトリ。
type PostgresLinkRepo struct {
	db *sqlx.DB
}

// NewPostgresLinkRepo はPostgresLinkRepoを生成する。
func NewPostgresLinkRepo(db *sqlx.DB) *PostgresLinkRepo {
	return &PostgresLinkRepo{db: db}
}

// ListByUser は所有ユーザーのリンクを作成日時の昇順で返す。
// Queryはタイトル・URL・メモに対する大文字小文字を区別しない部分一致。
func (r *PostgresLinkRepo) ListByUser(ctx context.Context, ownerID string, filter LinkFilter) ([]*model.Link, error) {
	q := psql.Select(linkColumns...).From("links").Where(squirrel.Eq{"user_id": ownerID})
	if filter.GroupID != "" {
		q = q.Where(squirrel.Eq{"group_id": filter.GroupID})
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"title": pattern},
			squirrel.ILike{"url": pattern},
			squirrel.ILike{"COALESCE(note, '')": pattern},
		})
	}
	query, args, err := q.OrderBy("created_at ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build links query: %w", err)
	}

	links := []*model.Link{}
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

// escapeLike はLIKEパターンのワイルドカードをエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// FindByID は所有ユーザーのリンクを取得する。見つからない場合はnilを返す。
func (r *PostgresLinkRepo) FindByID(ctx context.Context, ownerID, id string) (*model.Link, error) {
	link := &model.Link{}
	err := r.db.GetContext(ctx, link,
		`SELECT `+strings.Join(linkColumns, ", ")+` FROM links WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return link, nil
}

// CountByUser は所有ユーザーのリンク数を返す。
func (r *PostgresLinkRepo) CountByUser(ctx context.Context, ownerID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM links WHERE user_id = $1`, ownerID); err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// Create はリンクを作成する。
// 参照先グループの所有者一致はlinks_group_owner_fkeyで保証される。
func (r *PostgresLinkRepo) Create(ctx context.Context, link *model.Link) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO links (id, user_id, group_id, url, title, note, is_pinned, click_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		link.ID, link.UserID, link.GroupID, link.URL, link.Title, link.Note,
		link.IsPinned, link.ClickCount, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create link: %w", translateError(err))
	}
	return nil
}

// BulkCreate は複数のリンクを1トランザクションで作成する。
func (r *PostgresLinkRepo) BulkCreate(ctx context.Context, links []*model.Link) error {
	if len(links) == 0 {
		return nil
	}

	insert := psql.Insert("links").Columns(linkColumns...)
	for _, l := range links {
		insert = insert.Values(l.ID, l.UserID, l.GroupID, l.URL, l.Title, l.Note, l.IsPinned, l.ClickCount, l.CreatedAt)
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build links insert: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert links: %w", translateError(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete は所有ユーザーのリンクを削除する。
func (r *PostgresLinkRepo) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete link: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// SetPinned はピン状態を更新し、更新後のリンクを返す。
func (r *PostgresLinkRepo) SetPinned(ctx context.Context, ownerID, id string, pinned bool) (*model.Link, error) {
	link := &model.Link{}
	err := r.db.GetContext(ctx, link,
		`UPDATE links SET is_pinned = $1 WHERE id = $2 AND user_id = $3
		 RETURNING `+strings.Join(linkColumns, ", "),
		pinned, id, ownerID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update pin: %w", err)
	}
	return link, nil
}

// IncrementClick はクリック数を行単位でアトミックに1増やす。
func (r *PostgresLinkRepo) IncrementClick(ctx context.Context, ownerID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE links SET click_count = click_count + 1 WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to increment click count: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteAllByUser は所有ユーザーの全リンクを削除する。
func (r *PostgresLinkRepo) DeleteAllByUser(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE user_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete all links: %w", err)
	}
	return result.RowsAffected()
}

// DeleteMany は指定IDのうち所有ユーザーのリンクだけを削除する。
func (r *PostgresLinkRepo) DeleteMany(ctx context.Context, ownerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := psql.Delete("links").
		Where(squirrel.Eq{"user_id": ownerID}).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build bulk delete: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete links: %w", err)
	}
	return result.RowsAffected()
}

// MoveMany は移動先グループの所有確認と更新を1トランザクションで行う。
// 確認に失敗した場合は何も更新しない。
func (r *PostgresLinkRepo) MoveMany(ctx context.Context, ownerID string, ids []string, groupID string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 移動中にグループが削除されないよう共有ロックを取る
	var found string
	err = tx.GetContext(ctx, &found,
		`SELECT id FROM groups WHERE id = $1 AND user_id = $2 FOR SHARE`,
		groupID, ownerID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrForeignKey
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock target group: %w", err)
	}

	if len(ids) == 0 {
		return 0, tx.Commit()
	}

	query, args, err := psql.Update("links").
		Set("group_id", groupID).
		Where(squirrel.Eq{"user_id": ownerID}).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build bulk move: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to move links: %w", translateError(err))
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return moved, nil
}

// compile-time interface check
var _ LinkRepository = (*PostgresLinkRepo)(nil)
