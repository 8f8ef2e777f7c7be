// Package repository はデータ永続化のインターフェースを定義する。
// グループとリンクの操作はすべて所有ユーザーIDを必須引数に取り、
// 他ユーザーのリソースは存在しないものとして扱う。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/vault/internal/model"
)

var (
	// ErrForeignKey は外部キー制約違反（SQLSTATE 23503）を表す。
	// リンクの参照先グループが呼び出しユーザーの所有でない場合に返る。
	ErrForeignKey = errors.New("repository: foreign key violation")

	// ErrDuplicate は一意制約違反（SQLSTATE 23505）を表す。
	ErrDuplicate = errors.New("repository: duplicate key")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByExternalID はOAuthのsubjectでユーザーを検索する。見つからない場合はnilを返す。
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithDefaultGroups はユーザーと初期グループを同一トランザクションで作成する。
	CreateWithDefaultGroups(ctx context.Context, user *model.User, groups []*model.Group) error

	// SetBannedUntil はユーザーのBAN期限を設定する。
	SetBannedUntil(ctx context.Context, id string, until time.Time) error

	// DeleteByID は指定IDのユーザーを削除する。
	// sessions、groups、linksはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	// 期限切れのセッションも返すため、呼び出し側で期限を判定する。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error

	// DeleteExpired はnow時点で期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// EmailBanRepository はアカウント削除後の再登録禁止の永続化インターフェース。
type EmailBanRepository interface {
	// Upsert はメールアドレスのBAN期限を登録または更新する。
	Upsert(ctx context.Context, email string, until time.Time) error

	// FindActive はnow時点で有効なBANを取得する。有効なBANがない場合はnilを返す。
	FindActive(ctx context.Context, email string, now time.Time) (*model.EmailBan, error)

	// DeleteExpired はnow時点で期限切れのBANを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// GroupRepository はグループデータの永続化インターフェース。
type GroupRepository interface {
	// ListByUser は所有ユーザーのグループをorder順に返す。
	ListByUser(ctx context.Context, ownerID string) ([]*model.Group, error)

	// FindByID は所有ユーザーのグループを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, ownerID, id string) (*model.Group, error)

	// Create はグループを作成する。所有者はgroup.UserIDで指定する。
	Create(ctx context.Context, group *model.Group) error

	// Delete は所有ユーザーのグループを削除し、削除したかどうかを返す。
	// グループ内のリンクはCASCADE削除される。
	Delete(ctx context.Context, ownerID, id string) (bool, error)
}

// LinkFilter はリンク一覧の絞り込み条件。ゼロ値は絞り込みなし。
type LinkFilter struct {
	GroupID string
	Query   string
}

// LinkRepository はリンクデータの永続化インターフェース。
type LinkRepository interface {
	// ListByUser は所有ユーザーのリンクを作成日時の昇順で返す。
	ListByUser(ctx context.Context, ownerID string, filter LinkFilter) ([]*model.Link, error)

	// FindByID は所有ユーザーのリンクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, ownerID, id string) (*model.Link, error)

	// CountByUser は所有ユーザーのリンク数を返す。
	CountByUser(ctx context.Context, ownerID string) (int, error)

	// Create はリンクを作成する。所有者はlink.UserIDで指定する。
	// 参照先グループが同じユーザーの所有でない場合はErrForeignKeyを返す。
	Create(ctx context.Context, link *model.Link) error

	// Delete は所有ユーザーのリンクを削除し、削除したかどうかを返す。
	Delete(ctx context.Context, ownerID, id string) (bool, error)

	// SetPinned はピン状態を更新し、更新後のリンクを返す。見つからない場合はnilを返す。
	SetPinned(ctx context.Context, ownerID, id string, pinned bool) (*model.Link, error)

	// IncrementClick はクリック数を1増やし、更新したかどうかを返す。
	IncrementClick(ctx context.Context, ownerID, id string) (bool, error)

	// DeleteAllByUser は所有ユーザーの全リンクを削除し、削除件数を返す。
	DeleteAllByUser(ctx context.Context, ownerID string) (int64, error)

	// DeleteMany は指定IDのうち所有ユーザーのリンクを削除し、削除件数を返す。
	DeleteMany(ctx context.Context, ownerID string, ids []string) (int64, error)

	// MoveMany は指定IDのうち所有ユーザーのリンクをgroupIDへ移動し、移動件数を返す。
	// 移動先グループが所有ユーザーのものでない場合は何も移動せずErrForeignKeyを返す。
	MoveMany(ctx context.Context, ownerID string, ids []string, groupID string) (int64, error)

	// BulkCreate は同一グループへ複数のリンクを1トランザクションで作成する。
	BulkCreate(ctx context.Context, links []*model.Link) error
}
