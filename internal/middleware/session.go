// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/vault/internal/auth"
	"github.com/hitoshi/vault/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// sessionErrorContextKey はセッション解決がストレージ障害で失敗したことを示すキー。
var sessionErrorContextKey = contextKey("session_error")

// SessionResolver はセッショントークンからユーザーとセッション状態を解決する。
// auth.Serviceが実装する。
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*model.User, auth.SessionState, error)
}

// NewSessionMiddleware はCookieのセッションを解決し、認証済みユーザーをコンテキストに注入する。
// リクエストは拒否せず、未認証のまま次へ渡す。保護されたルートではRequireAuthを併用する。
// 期限切れ・無効なセッションやBAN中ユーザーのセッションの場合はCookieを削除する。
func NewSessionMiddleware(resolver SessionResolver, cookies CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionTokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, state, err := resolver.ResolveSession(r.Context(), token)
			if err != nil {
				// DB障害等ではCookieを残し、未認証として扱う。RequireAuthは500を返す
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionErrorContextKey, true)))
				return
			}

			switch state {
			case auth.SessionAuthenticated:
				next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
			case auth.SessionRejected:
				ClearSessionCookie(w, cookies)
				next.ServeHTTP(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireAuth は認証済みユーザーがいないリクエストに401を返すミドルウェア。
// セッション解決がストレージ障害で失敗していた場合は500を返す。
// NewSessionMiddlewareの内側に配置する。
func RequireAuth() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessionResolutionFailed(r.Context()) {
				WriteInternalServerError(w)
				return
			}
			if _, ok := UserFromContext(r.Context()); !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionResolutionFailed(ctx context.Context) bool {
	failed, _ := ctx.Value(sessionErrorContextKey).(bool)
	return failed
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアで認証されたリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, ok := UserFromContext(ctx)
	if !ok || user.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
