// Package link は保存リンクのドメインロジックを提供する。
// すべての操作は呼び出しユーザーIDでスコープされる。
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/vault/internal/metrics"
	"github.com/hitoshi/vault/internal/model"
	"github.com/hitoshi/vault/internal/repository"
)

const (
	// MaxTitleLength はタイトルの最大文字数。
	MaxTitleLength = 500
	// MaxNoteLength はメモの最大文字数。
	MaxNoteLength = 2000
	// MaxBulkIDs は一括操作で受け付けるIDの最大件数。
	MaxBulkIDs = 500
)

// AllGroups は絞り込みなしを表すグループID。
const AllGroups = "all"

// CreateInput はリンク作成の入力。
type CreateInput struct {
	URL     string
	Title   string
	GroupID string
	Note    *string
}

// Service はリンク管理のサービス層。
type Service struct {
	links   repository.LinkRepository
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(links repository.LinkRepository, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{links: links, metrics: collector, now: time.Now}
}

// List はユーザーのリンクを作成日時の昇順で返す。
// GroupIDが空または"all"の場合はグループで絞り込まない。
func (s *Service) List(ctx context.Context, ownerID string, filter repository.LinkFilter) ([]*model.Link, error) {
	if filter.GroupID == AllGroups {
		filter.GroupID = ""
	}
	if filter.GroupID != "" && !model.IsValidID(filter.GroupID) {
		return []*model.Link{}, nil
	}

	links, err := s.links.ListByUser(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

// Create はリンクを作成する。参照先グループの所有確認はDBの外部キー制約に委ねる。
// タイトルとメモは前後の空白のみ除去し、入力どおりに保存する。
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Link, error) {
	normalized, err := NormalizeURL(in.URL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, model.NewValidationError("Title is required.")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, model.NewValidationError(fmt.Sprintf("Title must be at most %d characters.", MaxTitleLength))
	}

	var note *string
	if in.Note != nil {
		n := strings.TrimSpace(*in.Note)
		if utf8.RuneCountInString(n) > MaxNoteLength {
			return nil, model.NewValidationError(fmt.Sprintf("Note must be at most %d characters.", MaxNoteLength))
		}
		if n != "" {
			note = &n
		}
	}

	if !model.IsValidID(in.GroupID) {
		return nil, model.NewGroupNotFoundError(in.GroupID)
	}

	l := &model.Link{
		ID:        uuid.New().String(),
		UserID:    ownerID,
		GroupID:   in.GroupID,
		URL:       normalized,
		Title:     title,
		Note:      note,
		CreatedAt: s.now(),
	}
	if err := s.links.Create(ctx, l); err != nil {
		if errors.Is(err, repository.ErrForeignKey) {
			return nil, model.NewGroupNotFoundError(in.GroupID)
		}
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	s.metrics.RecordLinksCreated(1)
	slog.Info("link created",
		slog.String("user_id", ownerID),
		slog.String("link_id", l.ID),
		slog.String("group_id", l.GroupID),
	)
	return l, nil
}

// Delete はユーザーのリンクを削除する。
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if !model.IsValidID(id) {
		return model.NewLinkNotFoundError(id)
	}
	deleted, err := s.links.Delete(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if !deleted {
		return model.NewLinkNotFoundError(id)
	}
	return nil
}

// SetPinned はリンクのピン状態を設定し、更新後のリンクを返す。
func (s *Service) SetPinned(ctx context.Context, ownerID, id string, pinned bool) (*model.Link, error) {
	if !model.IsValidID(id) {
		return nil, model.NewLinkNotFoundError(id)
	}
	l, err := s.links.SetPinned(ctx, ownerID, id, pinned)
	if err != nil {
		return nil, fmt.Errorf("failed to update pin: %w", err)
	}
	if l == nil {
		return nil, model.NewLinkNotFoundError(id)
	}
	return l, nil
}

// TrackClick はリンクのクリック数を1増やす。
func (s *Service) TrackClick(ctx context.Context, ownerID, id string) error {
	if !model.IsValidID(id) {
		return model.NewLinkNotFoundError(id)
	}
	updated, err := s.links.IncrementClick(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to track click: %w", err)
	}
	if !updated {
		return model.NewLinkNotFoundError(id)
	}
	s.metrics.RecordLinkClick()
	return nil
}

// DeleteMany は指定IDのうちユーザーが所有するリンクを削除し、削除件数を返す。
// 所有しないIDや存在しないIDは無視する。
func (s *Service) DeleteMany(ctx context.Context, ownerID string, ids []string) (int64, error) {
	valid, err := validIDs(ids)
	if err != nil {
		return 0, err
	}
	if len(valid) == 0 {
		return 0, nil
	}

	n, err := s.links.DeleteMany(ctx, ownerID, valid)
	if err != nil {
		return 0, fmt.Errorf("failed to delete links: %w", err)
	}

	slog.Info("links bulk deleted",
		slog.String("user_id", ownerID),
		slog.Int("requested", len(ids)),
		slog.Int64("deleted", n),
	)
	return n, nil
}

// MoveMany は指定IDのうちユーザーが所有するリンクをgroupIDへ移動し、移動件数を返す。
// 移動先グループを所有していない場合は1件も移動せずGROUP_NOT_FOUNDを返す。
func (s *Service) MoveMany(ctx context.Context, ownerID string, ids []string, groupID string) (int64, error) {
	valid, err := validIDs(ids)
	if err != nil {
		return 0, err
	}
	if !model.IsValidID(groupID) {
		return 0, model.NewGroupNotFoundError(groupID)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	n, err := s.links.MoveMany(ctx, ownerID, valid, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrForeignKey) {
			return 0, model.NewGroupNotFoundError(groupID)
		}
		return 0, fmt.Errorf("failed to move links: %w", err)
	}

	slog.Info("links bulk moved",
		slog.String("user_id", ownerID),
		slog.String("group_id", groupID),
		slog.Int("requested", len(ids)),
		slog.Int64("moved", n),
	)
	return n, nil
}

// validIDs は件数上限を確認し、UUID形式のIDだけを重複なく返す。
func validIDs(ids []string) ([]string, error) {
	if len(ids) > MaxBulkIDs {
		return nil, model.NewValidationError(fmt.Sprintf("At most %d links can be changed at once.", MaxBulkIDs))
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !model.IsValidID(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
