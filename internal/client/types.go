// Package client はVault REST APIのクライアントと、画面状態（表示中グループ・検索・選択）を提供する。
// サーバーが唯一の正であり、クライアントはキャッシュとミューテーション後の無効化のみを行う。
package client

import (
	"fmt"
	"time"
)

// User はログイン中のユーザー。
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    *string   `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

// Group はリンクのフォルダ。
type Group struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"createdAt"`
}

// Link は保存されたURL。
type Link struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	GroupID    string    `json:"groupId"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Note       *string   `json:"note"`
	IsPinned   bool      `json:"isPinned"`
	ClickCount int       `json:"clickCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AccountStats はアカウント画面の統計。
type AccountStats struct {
	LinkCount int       `json:"linkCount"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Preview はリンク追加ダイアログのプレビュー。
type Preview struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	FaviconURL string `json:"faviconUrl"`
}

// NewLink はリンク作成リクエスト。
type NewLink struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	GroupID string  `json:"groupId"`
	Note    *string `json:"note,omitempty"`
}

// Error はAPIのエラーレスポンス。
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"error"`
	Action     string `json:"action"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("vault api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("vault api: status %d: [%s] %s", e.StatusCode, e.Code, e.Message)
}
