package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/vault/internal/link"
	"github.com/hitoshi/vault/internal/middleware"
	"github.com/hitoshi/vault/internal/model"
	"github.com/hitoshi/vault/internal/repository"
)

// LinkServiceInterface はリンクハンドラーが必要とするサービスインターフェース。
type LinkServiceInterface interface {
	List(ctx context.Context, ownerID string, filter repository.LinkFilter) ([]*model.Link, error)
	Create(ctx context.Context, ownerID string, in link.CreateInput) (*model.Link, error)
	Delete(ctx context.Context, ownerID, id string) error
	SetPinned(ctx context.Context, ownerID, id string, pinned bool) (*model.Link, error)
	TrackClick(ctx context.Context, ownerID, id string) error
	DeleteMany(ctx context.Context, ownerID string, ids []string) (int64, error)
	MoveMany(ctx context.Context, ownerID string, ids []string, groupID string) (int64, error)
}

// LinkHandler はリンク関連のHTTPハンドラー。
type LinkHandler struct {
	service LinkServiceInterface
}

// NewLinkHandler はLinkHandlerを生成する。
func NewLinkHandler(service LinkServiceInterface) *LinkHandler {
	return &LinkHandler{service: service}
}

// List はリンク一覧を返す。
// GET /api/links?groupId=xxx&q=yyy
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	filter := repository.LinkFilter{
		GroupID: r.URL.Query().Get("groupId"),
		Query:   r.URL.Query().Get("q"),
	}
	links, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toLinkResponses(links))
}

// Create はリンクを作成する。
// POST /api/links
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateCreateLink(&req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	created, err := h.service.Create(r.Context(), userID, link.CreateInput{
		URL:     req.URL,
		Title:   req.Title,
		GroupID: req.GroupID,
		Note:    req.Note,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLinkResponse(created))
}

// Delete はリンクを削除する。
// DELETE /api/links/{id}
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Pin はピン状態を更新し、更新後のリンクを返す。
// PATCH /api/links/{id}/pin
func (h *LinkHandler) Pin(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req pinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validatePin(&req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	updated, err := h.service.SetPinned(r.Context(), userID, chi.URLParam(r, "id"), *req.IsPinned)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toLinkResponse(updated))
}

// Click はクリック数を記録する。
// クライアントは結果を待たないため、未検出のリンクも204を返す。
// POST /api/links/{id}/click
func (h *LinkHandler) Click(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	linkID := chi.URLParam(r, "id")
	if err := h.service.TrackClick(r.Context(), userID, linkID); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeLinkNotFound {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		slog.Warn("failed to track click",
			slog.String("link_id", linkID),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete は選択されたリンクを一括削除する。
// POST /api/links/bulk-delete
func (h *LinkHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req bulkDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateBulkDelete(&req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	deleted, err := h.service.DeleteMany(r.Context(), userID, req.IDs)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// BulkMove は選択されたリンクを別のグループへ一括移動する。
// POST /api/links/bulk-move
func (h *LinkHandler) BulkMove(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req bulkMoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateBulkMove(&req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	moved, err := h.service.MoveMany(r.Context(), userID, req.IDs, req.GroupID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"moved": moved})
}
