package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/vault/internal/auth"
	"github.com/hitoshi/vault/internal/model"
)

// --- モック定義 ---

type mockSessionResolver struct {
	resolveFn func(ctx context.Context, token string) (*model.User, auth.SessionState, error)
	calls     int
}

func (m *mockSessionResolver) ResolveSession(ctx context.Context, token string) (*model.User, auth.SessionState, error) {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, token)
	}
	return nil, auth.SessionRejected, nil
}

var testCookies = CookieConfig{Secure: true, MaxAge: 3600}

func resolverFor(tokens map[string]*model.User) *mockSessionResolver {
	return &mockSessionResolver{
		resolveFn: func(ctx context.Context, token string) (*model.User, auth.SessionState, error) {
			if u, ok := tokens[token]; ok {
				return u, auth.SessionAuthenticated, nil
			}
			return nil, auth.SessionRejected, nil
		},
	}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsUser(t *testing.T) {
	resolver := resolverFor(map[string]*model.User{"good": {ID: "user-123"}})

	var capturedUserID string
	handler := NewSessionMiddleware(resolver, testCookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
	if c := findCookie(w.Result(), SessionCookieName); c != nil {
		t.Errorf("valid session should not touch the cookie, got %+v", c)
	}
}

func TestSessionMiddleware_NoCookie_IsAnonymousWithoutLookup(t *testing.T) {
	resolver := &mockSessionResolver{}

	handlerCalled := false
	handler := NewSessionMiddleware(resolver, testCookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if _, ok := UserFromContext(r.Context()); ok {
			t.Error("anonymous request should have no user")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	if !handlerCalled {
		t.Error("handler should be called for anonymous requests")
	}
	if resolver.calls != 0 {
		t.Errorf("resolver calls = %d, want 0", resolver.calls)
	}
}

func TestSessionMiddleware_Rejected_ClearsCookie(t *testing.T) {
	resolver := resolverFor(nil)

	handler := NewSessionMiddleware(resolver, testCookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); ok {
			t.Error("rejected session should not attach a user")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "expired"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	c := findCookie(w.Result(), SessionCookieName)
	if c == nil {
		t.Fatal("expected session cookie to be cleared")
	}
	if c.MaxAge >= 0 || c.Value != "" {
		t.Errorf("cleared cookie = %+v", c)
	}
}

func TestSessionMiddleware_ResolverError_KeepsCookie(t *testing.T) {
	resolver := &mockSessionResolver{
		resolveFn: func(ctx context.Context, token string) (*model.User, auth.SessionState, error) {
			return nil, auth.SessionAnonymous, errors.New("db unavailable")
		},
	}

	handler := NewSessionMiddleware(resolver, testCookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if c := findCookie(w.Result(), SessionCookieName); c != nil {
		t.Errorf("transient errors should not clear the cookie, got %+v", c)
	}
}

func TestRequireAuth_ResolverError_Returns500(t *testing.T) {
	resolver := &mockSessionResolver{
		resolveFn: func(ctx context.Context, token string) (*model.User, auth.SessionState, error) {
			return nil, auth.SessionAnonymous, errors.New("db unavailable")
		},
	}

	reached := false
	handler := NewSessionMiddleware(resolver, testCookies)(RequireAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if reached {
		t.Error("protected handler should not run when the session lookup failed")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

func TestRequireAuth_WithoutUser_Returns401JSON(t *testing.T) {
	handler := RequireAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/groups", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Unauthorized" || body.Code != model.ErrCodeUnauthorized {
		t.Errorf("body = %+v", body)
	}
}

func TestRequireAuth_WithUser_PassesThrough(t *testing.T) {
	called := false
	handler := RequireAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req = req.WithContext(ContextWithUser(req.Context(), &model.User{ID: "u1"}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("handler should be called")
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
	if _, err := UserIDFromContext(ContextWithUser(context.Background(), nil)); err == nil {
		t.Error("expected error for nil user")
	}
}

// セッション解決 → 認証必須ルートの組み合わせがchi.Routerで動作することを検証する。
func TestRouterIntegration_PublicAndProtectedRoutes(t *testing.T) {
	resolver := resolverFor(map[string]*model.User{"router-session": {ID: "user-router"}})

	r := chi.NewRouter()
	r.Use(NewSessionMiddleware(resolver, testCookies))
	r.Get("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		json.NewEncoder(w).Encode(map[string]any{"user": user})
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth())
		r.Post("/api/links", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
		})
	})

	t.Run("public route without session", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("protected route with session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/links", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "router-session"})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var body map[string]string
		json.NewDecoder(w.Body).Decode(&body)
		if body["user_id"] != "user-router" {
			t.Errorf("user_id = %q", body["user_id"])
		}
	})

	t.Run("protected route with stale session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/links", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale"})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
		if findCookie(w.Result(), SessionCookieName) == nil {
			t.Error("stale cookie should be cleared on 401")
		}
	})
}
