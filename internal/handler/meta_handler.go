package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/vault/internal/link"
	"github.com/hitoshi/vault/internal/linkmeta"
)

// faviconCacheMaxAge はファビコンレスポンスのブラウザキャッシュ期間（秒）。
const faviconCacheMaxAge = 86400

// LinkMetaServiceInterface はページのメタ情報を取得するサービスインターフェース。
type LinkMetaServiceInterface interface {
	Preview(ctx context.Context, pageURL string) *linkmeta.Preview
	Favicon(ctx context.Context, siteURL string) *linkmeta.Icon
}

// MetaHandler はリンク追加ダイアログのプレビューとファビコン配信を行うHTTPハンドラー。
type MetaHandler struct {
	service LinkMetaServiceInterface
}

// NewMetaHandler はMetaHandlerを生成する。
func NewMetaHandler(service LinkMetaServiceInterface) *MetaHandler {
	return &MetaHandler{service: service}
}

// Preview はページのタイトルとファビコンURLを返す。
// 取得に失敗してもタイトル空で200を返す。
// GET /api/links/preview?url=xxx
func (h *MetaHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUserID(w, r); !ok {
		return
	}

	pageURL, err := link.NormalizeURL(r.URL.Query().Get("url"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.service.Preview(r.Context(), pageURL))
}

// Favicon はサイトのファビコン画像を返す。
// 取得できない場合はフォールバックのファビコンサービスへリダイレクトする。
// GET /api/favicon?url=xxx
func (h *MetaHandler) Favicon(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUserID(w, r); !ok {
		return
	}

	siteURL, err := link.NormalizeURL(r.URL.Query().Get("url"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	icon := h.service.Favicon(r.Context(), siteURL)
	if icon == nil {
		http.Redirect(w, r, linkmeta.FallbackFaviconURL(siteURL), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", icon.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(icon.Data)))
	w.Header().Set("Cache-Control", "private, max-age="+strconv.Itoa(faviconCacheMaxAge))
	w.WriteHeader(http.StatusOK)
	w.Write(icon.Data)
}
