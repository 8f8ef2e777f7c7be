// Package auth はOAuth認証フロー、セッション管理、再登録禁止の判定を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/vault/internal/model"
	"github.com/hitoshi/vault/internal/repository"
)

// ErrUpstreamAuth はIdPとの通信（トークン交換・プロフィール取得）の失敗を表す。
var ErrUpstreamAuth = errors.New("upstream auth error")

// ExternalIdentity はIdPで検証済みの外部アイデンティティ。
type ExternalIdentity struct {
	ExternalID string
	Email      string
	Name       string
	AvatarURL  string
}

// IdentityProvider は認可コードを外部アイデンティティに変換するIdPの抽象。
type IdentityProvider interface {
	// LoginURL は認可リクエストのURLを生成する。
	LoginURL(state, redirectURI string) string
	// ExchangeCode は認可コードを外部アイデンティティに交換する。
	// redirectURIは認可リクエストで使用したものと完全一致する必要がある。
	ExchangeCode(ctx context.Context, code, redirectURI string) (*ExternalIdentity, error)
}

// BannedError はアカウント削除後の再登録禁止期間中であることを表す。
type BannedError struct {
	Until time.Time
}

func (e *BannedError) Error() string {
	return fmt.Sprintf("email is banned until %s", e.Until.Format(time.RFC3339))
}

// RemainingDays は残りの禁止日数を切り上げで返す。最小値は1。
func (e *BannedError) RemainingDays(now time.Time) int {
	days := int(math.Ceil(e.Until.Sub(now).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// SessionState はリクエストのセッション解決結果。
type SessionState int

const (
	// SessionAnonymous はCookieなし。
	SessionAnonymous SessionState = iota
	// SessionAuthenticated は有効なセッションとBAN中でないユーザーに解決できた状態。
	SessionAuthenticated
	// SessionRejected はCookieがあるが、無効・期限切れ・BAN中のいずれか。Cookieを消去する。
	SessionRejected
)

func (s SessionState) String() string {
	switch s {
	case SessionAuthenticated:
		return "authenticated"
	case SessionRejected:
		return "rejected"
	default:
		return "anonymous"
	}
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL time.Duration
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider    IdentityProvider
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	banRepo     repository.EmailBanRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	provider IdentityProvider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	banRepo repository.EmailBanRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		provider:    provider,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		banRepo:     banRepo,
		config:      config,
		now:         time.Now,
	}
}

// LoginURL はOAuth認証URLを生成する。
func (s *Service) LoginURL(state, redirectURI string) string {
	return s.provider.LoginURL(state, redirectURI)
}

// HandleCallback は認可コードを交換し、ログインしてセッションを発行する。
func (s *Service) HandleCallback(ctx context.Context, code, redirectURI string) (*model.Session, error) {
	identity, err := s.provider.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	return s.Login(ctx, identity)
}

// Login は外部アイデンティティでログインし、新しいセッションを発行する。
// 未登録の場合は再登録禁止を確認したうえで、ユーザーと初期グループを作成する。
func (s *Service) Login(ctx context.Context, identity *ExternalIdentity) (*model.Session, error) {
	now := s.now()

	user, err := s.userRepo.FindByExternalID(ctx, identity.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user != nil {
		if user.IsBanned(now) {
			return nil, &BannedError{Until: *user.BannedUntil}
		}
		slog.Info("existing user logged in", slog.String("user_id", user.ID))
	} else {
		user, err = s.signUp(ctx, identity, now)
		if err != nil {
			return nil, err
		}
	}

	session, err := s.createSession(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// signUp はBANを確認したうえで新規ユーザーを初期グループ付きで作成する。
func (s *Service) signUp(ctx context.Context, identity *ExternalIdentity, now time.Time) (*model.User, error) {
	ban, err := s.banRepo.FindActive(ctx, identity.Email, now)
	if err != nil {
		return nil, fmt.Errorf("failed to check email ban: %w", err)
	}
	if ban != nil {
		slog.Info("banned email attempted sign up", slog.Time("banned_until", ban.BannedUntil))
		return nil, &BannedError{Until: ban.BannedUntil}
	}

	user := &model.User{
		ID:         uuid.New().String(),
		ExternalID: identity.ExternalID,
		Email:      identity.Email,
		Name:       identity.Name,
		CreatedAt:  now,
	}
	if identity.AvatarURL != "" {
		avatar := identity.AvatarURL
		user.Avatar = &avatar
	}

	groups := make([]*model.Group, 0, len(model.DefaultGroups))
	for _, dg := range model.DefaultGroups {
		groups = append(groups, &model.Group{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			Name:      dg.Name,
			Order:     dg.Order,
			CreatedAt: now,
		})
	}

	err = s.userRepo.CreateWithDefaultGroups(ctx, user, groups)
	if errors.Is(err, repository.ErrDuplicate) {
		// 同時ログインで先に作成された場合はそのユーザーを使う
		existing, findErr := s.userRepo.FindByExternalID(ctx, identity.ExternalID)
		if findErr != nil {
			return nil, fmt.Errorf("failed to find user after conflict: %w", findErr)
		}
		if existing == nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.Int("default_groups", len(groups)),
	)
	return user, nil
}

// ResolveSession はセッショントークンをユーザーに解決する。
// 期限切れのセッションはここで削除する。
func (s *Service) ResolveSession(ctx context.Context, token string) (*model.User, SessionState, error) {
	if token == "" {
		return nil, SessionAnonymous, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, token)
	if err != nil {
		return nil, SessionAnonymous, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, SessionRejected, nil
	}

	now := s.now()
	if session.IsExpired(now) {
		if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
			slog.Warn("failed to delete expired session",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
		}
		return nil, SessionRejected, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, SessionAnonymous, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.IsBanned(now) {
		if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
			slog.Warn("failed to delete rejected session", slog.String("error", err.Error()))
		}
		return nil, SessionRejected, nil
	}

	return user, SessionAuthenticated, nil
}

// Logout はセッションを破棄する。トークンがない場合や存在しない場合も成功する。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessionRepo.DeleteByID(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("user logged out")
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string, now time.Time) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(s.config.SessionTTL),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
