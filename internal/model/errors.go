// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, link, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeInvalidURL          = "INVALID_URL"
	ErrCodeInvalidConfirmation = "INVALID_CONFIRMATION"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeBanned              = "BANNED"
	ErrCodeGroupNotFound       = "GROUP_NOT_FOUND"
	ErrCodeLinkNotFound        = "LINK_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeUpstreamAuth        = "UPSTREAM_AUTH_ERROR"
	ErrCodeFeedImport          = "FEED_IMPORT_FAILED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewValidationError はリクエストボディの検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Check the highlighted fields and try again.",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("Invalid URL: %s", reason),
		Category: "validation",
		Action:   "Enter a full URL starting with http:// or https://.",
	}
}

// NewInvalidConfirmationError は確認フレーズ不一致エラーを生成する。
func NewInvalidConfirmationError(expected string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidConfirmation,
		Message:  fmt.Sprintf("Confirmation text must be exactly %q.", expected),
		Category: "validation",
		Action:   "Type the confirmation phrase exactly as shown.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "Sign in with Google to continue.",
	}
}

// NewBannedError は再登録禁止期間中のログインエラーを生成する。
func NewBannedError(remainingDays int) *APIError {
	unit := "days"
	if remainingDays == 1 {
		unit = "day"
	}
	return &APIError{
		Code:     ErrCodeBanned,
		Message:  fmt.Sprintf("This account was recently deleted. You can sign up again in %d %s.", remainingDays, unit),
		Category: "auth",
		Action:   "Wait until the restriction ends before signing up again.",
	}
}

// NewGroupNotFoundError はグループ未検出エラーを生成する。
// 他ユーザーのグループも同じエラーになる。
func NewGroupNotFoundError(groupID string) *APIError {
	return &APIError{
		Code:     ErrCodeGroupNotFound,
		Message:  fmt.Sprintf("Group not found: %s", groupID),
		Category: "link",
		Action:   "Reload the page and pick an existing section.",
	}
}

// NewLinkNotFoundError はリンク未検出エラーを生成する。
func NewLinkNotFoundError(linkID string) *APIError {
	return &APIError{
		Code:     ErrCodeLinkNotFound,
		Message:  fmt.Sprintf("Link not found: %s", linkID),
		Category: "link",
		Action:   "Reload the page to refresh your links.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewUpstreamAuthError はIdP呼び出し失敗エラーを生成する。
// IdPのレスポンス本文は含めない。
func NewUpstreamAuthError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamAuth,
		Message:  "Google sign-in failed.",
		Category: "auth",
		Action:   "Try signing in again.",
	}
}

// NewFeedImportError はフィード取り込み失敗エラーを生成する。
func NewFeedImportError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedImport,
		Message:  fmt.Sprintf("Could not import feed: %s", reason),
		Category: "link",
		Action:   "Check that the URL points to an RSS or Atom feed.",
	}
}

// NewInternalError は内部エラーの汎用レスポンスを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Something went wrong.",
		Category: "system",
		Action:   "Please try again later.",
	}
}
