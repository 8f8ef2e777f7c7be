// Package group はリンクを分類するグループ（UI上のSection）のドメインロジックを提供する。
package group

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/vault/internal/model"
	"github.com/hitoshi/vault/internal/repository"
)

// MaxNameLength はグループ名の最大文字数。
const MaxNameLength = 100

// Service はグループ管理のサービス層。
type Service struct {
	groups repository.GroupRepository
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(groups repository.GroupRepository) *Service {
	return &Service{groups: groups, now: time.Now}
}

// List はユーザーのグループをorder順に返す。
func (s *Service) List(ctx context.Context, ownerID string) ([]*model.Group, error) {
	groups, err := s.groups.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// Create はグループを作成する。orderがnilの場合は既存グループの末尾に追加する。
func (s *Service) Create(ctx context.Context, ownerID, name string, order *int) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewValidationError("Section name is required.")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, model.NewValidationError(fmt.Sprintf("Section name must be at most %d characters.", MaxNameLength))
	}

	var pos int
	if order != nil {
		pos = *order
	} else {
		existing, err := s.groups.ListByUser(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to list groups: %w", err)
		}
		pos = nextOrder(existing)
	}

	g := &model.Group{
		ID:        uuid.New().String(),
		UserID:    ownerID,
		Name:      name,
		Order:     pos,
		CreatedAt: s.now(),
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	slog.Info("group created",
		slog.String("user_id", ownerID),
		slog.String("group_id", g.ID),
	)
	return g, nil
}

// nextOrder は既存グループの最大order+1を返す。
func nextOrder(groups []*model.Group) int {
	max := 0
	for _, g := range groups {
		if g.Order > max {
			max = g.Order
		}
	}
	return max + 1
}

// Get はユーザーのグループを取得する。他ユーザーのグループは未検出として扱う。
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Group, error) {
	if !model.IsValidID(id) {
		return nil, model.NewGroupNotFoundError(id)
	}
	g, err := s.groups.FindByID(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	if g == nil {
		return nil, model.NewGroupNotFoundError(id)
	}
	return g, nil
}

// Delete はユーザーのグループを削除する。グループ内のリンクも削除される。
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if !model.IsValidID(id) {
		return model.NewGroupNotFoundError(id)
	}
	deleted, err := s.groups.Delete(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if !deleted {
		return model.NewGroupNotFoundError(id)
	}

	slog.Info("group deleted",
		slog.String("user_id", ownerID),
		slog.String("group_id", id),
	)
	return nil
}
