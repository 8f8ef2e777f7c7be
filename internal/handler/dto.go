package handler

import (
	"strings"
	"time"

	"github.com/hitoshi/vault/internal/group"
	"github.com/hitoshi/vault/internal/model"
)

// userResponse はユーザー情報のJSONレスポンス。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    *string   `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}

// groupResponse はグループのJSONレスポンス。
// Iconはサイドバー表示用に名前から導出する。
type groupResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"createdAt"`
}

func toGroupResponse(g *model.Group) groupResponse {
	return groupResponse{
		ID:        g.ID,
		UserID:    g.UserID,
		Name:      g.Name,
		Order:     g.Order,
		Icon:      group.IconFor(g.Name),
		CreatedAt: g.CreatedAt,
	}
}

func toGroupResponses(groups []*model.Group) []groupResponse {
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroupResponse(g))
	}
	return out
}

// linkResponse はリンクのJSONレスポンス。
type linkResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	GroupID    string    `json:"groupId"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Note       *string   `json:"note"`
	IsPinned   bool      `json:"isPinned"`
	ClickCount int       `json:"clickCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toLinkResponse(l *model.Link) linkResponse {
	return linkResponse{
		ID:         l.ID,
		UserID:     l.UserID,
		GroupID:    l.GroupID,
		URL:        l.URL,
		Title:      l.Title,
		Note:       l.Note,
		IsPinned:   l.IsPinned,
		ClickCount: l.ClickCount,
		CreatedAt:  l.CreatedAt,
	}
}

func toLinkResponses(links []*model.Link) []linkResponse {
	out := make([]linkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, toLinkResponse(l))
	}
	return out
}

// --- リクエスト ---

type createGroupRequest struct {
	Name  string `json:"name"`
	Order *int   `json:"order"`
}

type createLinkRequest struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	GroupID string  `json:"groupId"`
	Note    *string `json:"note"`
}

type pinRequest struct {
	IsPinned *bool `json:"isPinned"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type bulkMoveRequest struct {
	IDs     []string `json:"ids"`
	GroupID string   `json:"groupId"`
}

type confirmationRequest struct {
	Confirmation string `json:"confirmation"`
}

type importRequest struct {
	FeedURL string `json:"feedUrl"`
}

// --- 入力検証 ---
// 必須フィールドの有無だけを確認し、値の妥当性はサービス層で検証する。

func validateCreateGroup(req *createGroupRequest) *model.APIError {
	if strings.TrimSpace(req.Name) == "" {
		return model.NewValidationError("Section name is required.")
	}
	return nil
}

func validateCreateLink(req *createLinkRequest) *model.APIError {
	switch {
	case strings.TrimSpace(req.URL) == "":
		return model.NewValidationError("URL is required.")
	case strings.TrimSpace(req.Title) == "":
		return model.NewValidationError("Title is required.")
	case strings.TrimSpace(req.GroupID) == "":
		return model.NewValidationError("Section is required.")
	}
	return nil
}

func validatePin(req *pinRequest) *model.APIError {
	if req.IsPinned == nil {
		return model.NewValidationError("isPinned is required.")
	}
	return nil
}

func validateBulkDelete(req *bulkDeleteRequest) *model.APIError {
	if len(req.IDs) == 0 {
		return model.NewValidationError("Select at least one link.")
	}
	return nil
}

func validateBulkMove(req *bulkMoveRequest) *model.APIError {
	if len(req.IDs) == 0 {
		return model.NewValidationError("Select at least one link.")
	}
	if strings.TrimSpace(req.GroupID) == "" {
		return model.NewValidationError("Target section is required.")
	}
	return nil
}

func validateImport(req *importRequest) *model.APIError {
	if strings.TrimSpace(req.FeedURL) == "" {
		return model.NewValidationError("Feed URL is required.")
	}
	return nil
}
