package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/vault/internal/linkmeta"
	"github.com/hitoshi/vault/internal/model"
)

func TestMetaHandler_Preview_NormalizesURL(t *testing.T) {
	var got string
	svc := &mockLinkMetaService{
		previewFn: func(_ context.Context, pageURL string) *linkmeta.Preview {
			got = pageURL
			return &linkmeta.Preview{URL: pageURL, Title: "Go", FaviconURL: "https://go.dev/favicon.ico"}
		},
	}
	h := NewMetaHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/links/preview?url=go.dev", nil)
	w := httptest.NewRecorder()
	h.Preview(w, withUser(req, testUserID))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://go.dev", got)
	assert.JSONEq(t, `{"url":"https://go.dev","title":"Go","faviconUrl":"https://go.dev/favicon.ico"}`, w.Body.String())
}

func TestMetaHandler_Preview_InvalidURL(t *testing.T) {
	h := NewMetaHandler(&mockLinkMetaService{})

	req := httptest.NewRequest(http.MethodGet, "/api/links/preview?url=", nil)
	w := httptest.NewRecorder()
	h.Preview(w, withUser(req, testUserID))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, model.ErrCodeInvalidURL, decodeError(t, w).Code)
}

func TestMetaHandler_Favicon_ServesImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	svc := &mockLinkMetaService{
		faviconFn: func(context.Context, string) *linkmeta.Icon {
			return &linkmeta.Icon{Data: png, ContentType: "image/png"}
		},
	}
	h := NewMetaHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/favicon?url=https://example.com/page", nil)
	w := httptest.NewRecorder()
	h.Favicon(w, withUser(req, testUserID))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "private, max-age=86400", w.Header().Get("Cache-Control"))
	assert.Equal(t, png, w.Body.Bytes())
}

func TestMetaHandler_Favicon_FallsBackToRedirect(t *testing.T) {
	h := NewMetaHandler(&mockLinkMetaService{})

	req := httptest.NewRequest(http.MethodGet, "/api/favicon?url=https://example.com/page", nil)
	w := httptest.NewRecorder()
	h.Favicon(w, withUser(req, testUserID))

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://www.google.com/s2/favicons?domain=example.com&sz=64", w.Header().Get("Location"))
}

func TestMetaHandler_RequiresUser(t *testing.T) {
	h := NewMetaHandler(&mockLinkMetaService{})

	w := httptest.NewRecorder()
	h.Favicon(w, httptest.NewRequest(http.MethodGet, "/api/favicon?url=example.com", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(stubPinger{})(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	NewHealthHandler(stubPinger{err: errors.New("refused")})(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeValidation, http.StatusBadRequest},
		{model.ErrCodeInvalidURL, http.StatusBadRequest},
		{model.ErrCodeInvalidConfirmation, http.StatusBadRequest},
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{model.ErrCodeBanned, http.StatusForbidden},
		{model.ErrCodeGroupNotFound, http.StatusNotFound},
		{model.ErrCodeLinkNotFound, http.StatusNotFound},
		{model.ErrCodeUserNotFound, http.StatusNotFound},
		{model.ErrCodeFeedImport, http.StatusUnprocessableEntity},
		{model.ErrCodeUpstreamAuth, http.StatusBadGateway},
		{model.ErrCodeInternal, http.StatusInternalServerError},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, mapAPIErrorToHTTPStatus(tt.code))
		})
	}
}
