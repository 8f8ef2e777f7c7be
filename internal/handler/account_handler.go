package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/vault/internal/middleware"
	"github.com/hitoshi/vault/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Stats(ctx context.Context, userID string) (*model.AccountStats, error)
	DeleteAllLinks(ctx context.Context, userID, confirmation string) (int64, error)
	DeleteAccount(ctx context.Context, userID, confirmation string) error
}

// AccountHandler はアカウント関連のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
	cookies middleware.CookieConfig
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, cookies middleware.CookieConfig) *AccountHandler {
	return &AccountHandler{service: service, cookies: cookies}
}

// Stats はリンク数と登録日時を返す。
// GET /api/account/stats
func (h *AccountHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"linkCount": stats.LinkCount,
		"joinedAt":  stats.JoinedAt,
	})
}

// DeleteAllLinks は確認フレーズが一致した場合に全リンクを削除する。
// POST /api/account/delete-all-links
func (h *AccountHandler) DeleteAllLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req confirmationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	deleted, err := h.service.DeleteAllLinks(r.Context(), userID, req.Confirmation)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"deleted": deleted,
	})
}

// Delete はアカウントを削除し、セッションCookieを削除する。
// POST /api/account/delete
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req confirmationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID, req.Confirmation); err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.ClearSessionCookie(w, h.cookies)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
