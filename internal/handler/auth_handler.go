// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/vault/internal/auth"
	"github.com/hitoshi/vault/internal/metrics"
	"github.com/hitoshi/vault/internal/middleware"
	"github.com/hitoshi/vault/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	LoginURL(state, redirectURI string) string
	HandleCallback(ctx context.Context, code, redirectURI string) (*model.Session, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// BaseURL はログイン後のリダイレクト先となるフロントエンドのURL。
	BaseURL string
	// RedirectURL はIdPに登録したコールバックURL。認可リクエストとトークン交換で共用する。
	RedirectURL string
	Cookies     middleware.CookieConfig
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: collector,
		now:     time.Now,
	}
}

// Login はGoogle OAuthフローを開始する。
// stateをCookieに保存し、認可URLをJSONで返す。
// GET /api/auth/google
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.config.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"url": h.service.LoginURL(state, h.config.RedirectURL),
	})
}

// Callback はOAuthコールバックを処理する。
// 成功時はセッションCookieを設定してトップへ、失敗時は?error=付きでトップへリダイレクトする。
// GET /api/auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. stateの検証
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		h.metrics.RecordLogin(metrics.LoginError)
		h.redirectWithError(w, r, "Sign-in session expired. Please try again.")
		return
	}
	h.clearStateCookie(w)

	// 2. IdP側でのキャンセル等
	if idpErr := query.Get("error"); idpErr != "" {
		slog.Info("oauth authorization denied", slog.String("reason", idpErr))
		h.metrics.RecordLogin(metrics.LoginUpstream)
		h.redirectWithError(w, r, model.NewUpstreamAuthError().Message)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.metrics.RecordLogin(metrics.LoginError)
		h.redirectWithError(w, r, "Missing authorization code.")
		return
	}

	// 3. 認証処理
	session, err := h.service.HandleCallback(r.Context(), code, h.config.RedirectURL)
	if err != nil {
		var banned *auth.BannedError
		switch {
		case errors.As(err, &banned):
			h.metrics.RecordLogin(metrics.LoginBanned)
			h.redirectWithError(w, r, model.NewBannedError(banned.RemainingDays(h.now())).Message)
		case errors.Is(err, auth.ErrUpstreamAuth):
			slog.Warn("oauth upstream failure", slog.String("error", err.Error()))
			h.metrics.RecordLogin(metrics.LoginUpstream)
			h.redirectWithError(w, r, model.NewUpstreamAuthError().Message)
		default:
			slog.Error("oauth callback failed", slog.String("error", err.Error()))
			h.metrics.RecordLogin(metrics.LoginError)
			h.redirectWithError(w, r, model.NewInternalError().Message)
		}
		return
	}

	// 4. セッションCookieを設定してトップへ
	middleware.SetSessionCookie(w, h.config.Cookies, session.ID)
	h.metrics.RecordLogin(metrics.LoginSuccess)
	http.Redirect(w, r, h.config.BaseURL+"/", http.StatusFound)
}

// Logout はセッションを破棄し、Cookieを削除する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionTokenFromRequest(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			// 失敗してもCookieは削除する
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	middleware.ClearSessionCookie(w, h.config.Cookies)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me は現在のログインユーザーを返す。未ログインの場合はuser: nullを返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]*userResponse{
		"user": toUserResponse(user),
	})
}

func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, h.config.BaseURL+"/?error="+url.QueryEscape(message), http.StatusFound)
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
