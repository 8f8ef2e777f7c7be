package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/vault/internal/middleware"
	"github.com/hitoshi/vault/internal/model"
)

// GroupServiceInterface はグループハンドラーが必要とするサービスインターフェース。
type GroupServiceInterface interface {
	List(ctx context.Context, ownerID string) ([]*model.Group, error)
	Create(ctx context.Context, ownerID, name string, order *int) (*model.Group, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// FeedImporter はフィードからリンクを取り込むサービスインターフェース。
type FeedImporter interface {
	Import(ctx context.Context, ownerID, groupID, rawURL string) (int, error)
}

// GroupHandler はグループ関連のHTTPハンドラー。
type GroupHandler struct {
	service  GroupServiceInterface
	importer FeedImporter
}

// NewGroupHandler はGroupHandlerを生成する。
func NewGroupHandler(service GroupServiceInterface, importer FeedImporter) *GroupHandler {
	return &GroupHandler{service: service, importer: importer}
}

// List はユーザーのグループをorder順で返す。
// GET /api/groups
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groups, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toGroupResponses(groups))
}

// Create はグループを作成する。orderを省略した場合は末尾に追加する。
// POST /api/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateCreateGroup(&req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	created, err := h.service.Create(r.Context(), userID, req.Name, req.Order)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGroupResponse(created))
}

// Delete はグループと所属リンクを削除する。
// DELETE /api/groups/{id}
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Import はRSS/Atomフィードの記事をグループにリンクとして取り込む。
// POST /api/groups/{id}/import
func (h *GroupHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := validateImport(&req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	imported, err := h.importer.Import(r.Context(), userID, chi.URLParam(r, "id"), req.FeedURL)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"imported": imported})
}
