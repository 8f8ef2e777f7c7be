// Package account はアカウント画面の統計と、リンク全削除・退会のドメインロジックを提供する。
package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/vault/internal/model"
	"github.com/hitoshi/vault/internal/repository"
)

// 確認フレーズ。入力と完全一致した場合のみ破壊的操作を実行する。
const (
	ConfirmDeleteAllLinks = "DELETE ALL MY LINKS"
	ConfirmDeleteAccount  = "DELETE MY ACCOUNT"
)

// LinkStore はアカウント操作が必要とするリンクの集計・一括削除インターフェース。
type LinkStore interface {
	CountByUser(ctx context.Context, ownerID string) (int, error)
	DeleteAllByUser(ctx context.Context, ownerID string) (int64, error)
}

// SessionRevoker はユーザーの全セッション破棄インターフェース。
type SessionRevoker interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// EmailBanner は再登録禁止の登録インターフェース。
type EmailBanner interface {
	Upsert(ctx context.Context, email string, until time.Time) error
}

// Config はアカウントサービスの設定。
type Config struct {
	BanDuration time.Duration
}

// Service はアカウント管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	links    LinkStore
	sessions SessionRevoker
	bans     EmailBanner
	config   Config
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	links LinkStore,
	sessions SessionRevoker,
	bans EmailBanner,
	config Config,
) *Service {
	return &Service{
		userRepo: userRepo,
		links:    links,
		sessions: sessions,
		bans:     bans,
		config:   config,
		now:      time.Now,
	}
}

// Stats はリンク数と登録日時を返す。
func (s *Service) Stats(ctx context.Context, userID string) (*model.AccountStats, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	count, err := s.links.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count links: %w", err)
	}

	return &model.AccountStats{LinkCount: count, JoinedAt: user.CreatedAt}, nil
}

// DeleteAllLinks はユーザーの全リンクを削除する。グループは残す。
func (s *Service) DeleteAllLinks(ctx context.Context, userID, confirmation string) (int64, error) {
	if confirmation != ConfirmDeleteAllLinks {
		return 0, model.NewInvalidConfirmationError(ConfirmDeleteAllLinks)
	}

	deleted, err := s.links.DeleteAllByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete links: %w", err)
	}

	slog.Info("all links deleted",
		slog.String("user_id", userID),
		slog.Int64("deleted", deleted),
	)
	return deleted, nil
}

// DeleteAccount は退会処理を実行する。
// 削除順序: email_bans登録 → banned_until設定 → sessions → user（+ CASCADE: groups, links）
// 確認フレーズが一致しない場合は何も変更しない。
func (s *Service) DeleteAccount(ctx context.Context, userID, confirmation string) error {
	if confirmation != ConfirmDeleteAccount {
		return model.NewInvalidConfirmationError(ConfirmDeleteAccount)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	until := s.now().Add(s.config.BanDuration)

	slog.Info("account deletion started",
		slog.String("user_id", userID),
		slog.Time("banned_until", until),
	)

	// 1. usersレコード削除後も残るようにメールアドレス単位で記録
	if err := s.bans.Upsert(ctx, user.Email, until); err != nil {
		return fmt.Errorf("failed to record email ban: %w", err)
	}

	// 2. 削除完了までの間の再ログインも拒否する
	if err := s.userRepo.SetBannedUntil(ctx, userID, until); err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}

	// 3. セッションを削除
	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	// 4. ユーザーを削除（groups, linksはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("account deleted", slog.String("user_id", userID))
	return nil
}
