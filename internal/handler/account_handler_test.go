package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/vault/internal/middleware"
	"github.com/hitoshi/vault/internal/model"
)

func TestAccountHandler_Stats(t *testing.T) {
	joined := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &mockAccountService{
		statsFn: func(_ context.Context, userID string) (*model.AccountStats, error) {
			assert.Equal(t, testUserID, userID)
			return &model.AccountStats{LinkCount: 42, JoinedAt: joined}, nil
		},
	}
	h := NewAccountHandler(svc, middleware.CookieConfig{})

	w := httptest.NewRecorder()
	h.Stats(w, withUser(httptest.NewRequest(http.MethodGet, "/api/account/stats", nil), testUserID))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"linkCount":42,"joinedAt":"2025-01-02T03:04:05Z"}`, w.Body.String())
}

func TestAccountHandler_Stats_Unauthenticated(t *testing.T) {
	h := NewAccountHandler(&mockAccountService{}, middleware.CookieConfig{})

	w := httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest(http.MethodGet, "/api/account/stats", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccountHandler_DeleteAllLinks(t *testing.T) {
	svc := &mockAccountService{
		deleteAllLinksFn: func(_ context.Context, userID, confirmation string) (int64, error) {
			assert.Equal(t, "DELETE ALL MY LINKS", confirmation)
			return 7, nil
		},
	}
	h := NewAccountHandler(svc, middleware.CookieConfig{})

	req := jsonRequest(t, http.MethodPost, "/api/account/delete-all-links",
		map[string]string{"confirmation": "DELETE ALL MY LINKS"})
	w := httptest.NewRecorder()
	h.DeleteAllLinks(w, withUser(req, testUserID))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"deleted":7}`, w.Body.String())
}

func TestAccountHandler_DeleteAllLinks_WrongConfirmation(t *testing.T) {
	svc := &mockAccountService{
		deleteAllLinksFn: func(context.Context, string, string) (int64, error) {
			return 0, model.NewInvalidConfirmationError("DELETE ALL MY LINKS")
		},
	}
	h := NewAccountHandler(svc, middleware.CookieConfig{})

	req := jsonRequest(t, http.MethodPost, "/api/account/delete-all-links",
		map[string]string{"confirmation": "delete all my links"})
	w := httptest.NewRecorder()
	h.DeleteAllLinks(w, withUser(req, testUserID))

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, model.ErrCodeInvalidConfirmation, body.Code)
	assert.Contains(t, body.Error, "DELETE ALL MY LINKS")
}

func TestAccountHandler_DeleteAllLinks_MalformedBody(t *testing.T) {
	h := NewAccountHandler(&mockAccountService{}, middleware.CookieConfig{})

	req := jsonRequest(t, http.MethodPost, "/api/account/delete-all-links", "{not json")
	w := httptest.NewRecorder()
	h.DeleteAllLinks(w, withUser(req, testUserID))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, model.ErrCodeValidation, decodeError(t, w).Code)
}

func TestAccountHandler_Delete_ClearsSessionCookie(t *testing.T) {
	called := false
	svc := &mockAccountService{
		deleteAccountFn: func(_ context.Context, userID, confirmation string) error {
			called = true
			assert.Equal(t, testUserID, userID)
			assert.Equal(t, "DELETE MY ACCOUNT", confirmation)
			return nil
		},
	}
	h := NewAccountHandler(svc, middleware.CookieConfig{Secure: true})

	req := jsonRequest(t, http.MethodPost, "/api/account/delete",
		map[string]string{"confirmation": "DELETE MY ACCOUNT"})
	w := httptest.NewRecorder()
	h.Delete(w, withUser(req, testUserID))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	cleared := findCookie(w.Result(), middleware.SessionCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.True(t, cleared.Secure)
}

func TestAccountHandler_Delete_FailureKeepsCookie(t *testing.T) {
	svc := &mockAccountService{
		deleteAccountFn: func(context.Context, string, string) error {
			return model.NewInvalidConfirmationError("DELETE MY ACCOUNT")
		},
	}
	h := NewAccountHandler(svc, middleware.CookieConfig{})

	req := jsonRequest(t, http.MethodPost, "/api/account/delete", map[string]string{"confirmation": "nope"})
	w := httptest.NewRecorder()
	h.Delete(w, withUser(req, testUserID))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, findCookie(w.Result(), middleware.SessionCookieName))
}
