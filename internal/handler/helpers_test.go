package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/vault/internal/link"
	"github.com/hitoshi/vault/internal/linkmeta"
	"github.com/hitoshi/vault/internal/middleware"
	"github.com/hitoshi/vault/internal/model"
	"github.com/hitoshi/vault/internal/repository"
)

const testUserID = "11111111-1111-1111-1111-111111111111"

// --- ヘルパー ---

// withUser はリクエストコンテキストに認証済みユーザーを設定する。
func withUser(r *http.Request, userID string) *http.Request {
	user := &model.User{ID: userID, Email: "user@example.com", Name: "Test User"}
	return r.WithContext(middleware.ContextWithUser(r.Context(), user))
}

// withChiURLParam はchiのURLパラメータをリクエストコンテキストに設定する。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	decodeBody(t, w, &body)
	return body
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

// --- モック定義 ---

type mockAuthService struct {
	loginURLFn       func(state, redirectURI string) string
	handleCallbackFn func(ctx context.Context, code, redirectURI string) (*model.Session, error)
	logoutFn         func(ctx context.Context, token string) error
}

func (m *mockAuthService) LoginURL(state, redirectURI string) string {
	if m.loginURLFn != nil {
		return m.loginURLFn(state, redirectURI)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code, redirectURI string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code, redirectURI)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

type mockAccountService struct {
	statsFn          func(ctx context.Context, userID string) (*model.AccountStats, error)
	deleteAllLinksFn func(ctx context.Context, userID, confirmation string) (int64, error)
	deleteAccountFn  func(ctx context.Context, userID, confirmation string) error
}

func (m *mockAccountService) Stats(ctx context.Context, userID string) (*model.AccountStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, userID)
	}
	return &model.AccountStats{}, nil
}

func (m *mockAccountService) DeleteAllLinks(ctx context.Context, userID, confirmation string) (int64, error) {
	if m.deleteAllLinksFn != nil {
		return m.deleteAllLinksFn(ctx, userID, confirmation)
	}
	return 0, nil
}

func (m *mockAccountService) DeleteAccount(ctx context.Context, userID, confirmation string) error {
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(ctx, userID, confirmation)
	}
	return nil
}

type mockGroupService struct {
	listFn   func(ctx context.Context, ownerID string) ([]*model.Group, error)
	createFn func(ctx context.Context, ownerID, name string, order *int) (*model.Group, error)
	deleteFn func(ctx context.Context, ownerID, id string) error
}

func (m *mockGroupService) List(ctx context.Context, ownerID string) ([]*model.Group, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockGroupService) Create(ctx context.Context, ownerID, name string, order *int) (*model.Group, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, name, order)
	}
	return &model.Group{ID: "g1", UserID: ownerID, Name: name}, nil
}

func (m *mockGroupService) Delete(ctx context.Context, ownerID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, id)
	}
	return nil
}

type mockImporter struct {
	importFn func(ctx context.Context, ownerID, groupID, rawURL string) (int, error)
}

func (m *mockImporter) Import(ctx context.Context, ownerID, groupID, rawURL string) (int, error) {
	if m.importFn != nil {
		return m.importFn(ctx, ownerID, groupID, rawURL)
	}
	return 0, nil
}

type mockLinkService struct {
	listFn       func(ctx context.Context, ownerID string, filter repository.LinkFilter) ([]*model.Link, error)
	createFn     func(ctx context.Context, ownerID string, in link.CreateInput) (*model.Link, error)
	deleteFn     func(ctx context.Context, ownerID, id string) error
	setPinnedFn  func(ctx context.Context, ownerID, id string, pinned bool) (*model.Link, error)
	trackClickFn func(ctx context.Context, ownerID, id string) error
	deleteManyFn func(ctx context.Context, ownerID string, ids []string) (int64, error)
	moveManyFn   func(ctx context.Context, ownerID string, ids []string, groupID string) (int64, error)
}

func (m *mockLinkService) List(ctx context.Context, ownerID string, filter repository.LinkFilter) ([]*model.Link, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, filter)
	}
	return nil, nil
}

func (m *mockLinkService) Create(ctx context.Context, ownerID string, in link.CreateInput) (*model.Link, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, in)
	}
	return &model.Link{ID: "l1", UserID: ownerID, GroupID: in.GroupID, URL: in.URL, Title: in.Title}, nil
}

func (m *mockLinkService) Delete(ctx context.Context, ownerID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, id)
	}
	return nil
}

func (m *mockLinkService) SetPinned(ctx context.Context, ownerID, id string, pinned bool) (*model.Link, error) {
	if m.setPinnedFn != nil {
		return m.setPinnedFn(ctx, ownerID, id, pinned)
	}
	return &model.Link{ID: id, UserID: ownerID, IsPinned: pinned}, nil
}

func (m *mockLinkService) TrackClick(ctx context.Context, ownerID, id string) error {
	if m.trackClickFn != nil {
		return m.trackClickFn(ctx, ownerID, id)
	}
	return nil
}

func (m *mockLinkService) DeleteMany(ctx context.Context, ownerID string, ids []string) (int64, error) {
	if m.deleteManyFn != nil {
		return m.deleteManyFn(ctx, ownerID, ids)
	}
	return 0, nil
}

func (m *mockLinkService) MoveMany(ctx context.Context, ownerID string, ids []string, groupID string) (int64, error) {
	if m.moveManyFn != nil {
		return m.moveManyFn(ctx, ownerID, ids, groupID)
	}
	return 0, nil
}

type mockLinkMetaService struct {
	previewFn func(ctx context.Context, pageURL string) *linkmeta.Preview
	faviconFn func(ctx context.Context, siteURL string) *linkmeta.Icon
}

func (m *mockLinkMetaService) Preview(ctx context.Context, pageURL string) *linkmeta.Preview {
	if m.previewFn != nil {
		return m.previewFn(ctx, pageURL)
	}
	return &linkmeta.Preview{URL: pageURL}
}

func (m *mockLinkMetaService) Favicon(ctx context.Context, siteURL string) *linkmeta.Icon {
	if m.faviconFn != nil {
		return m.faviconFn(ctx, siteURL)
	}
	return nil
}

// loginRecorder はログイン結果のメトリクスを記録する。
type loginRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *loginRecorder) RecordLogin(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}
func (r *loginRecorder) RecordLinksCreated(int)                               {}
func (r *loginRecorder) RecordLinkClick()                                     {}
func (r *loginRecorder) RecordHTTPRequest(string, string, int, time.Duration) {}
func (r *loginRecorder) RecordOutboundFetch(string, bool, time.Duration)      {}

func (r *loginRecorder) Results() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.results...)
}
