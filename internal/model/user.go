// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// ExternalIDはGoogle OAuthのsubject。
type User struct {
	ID          string     `db:"id"`
	ExternalID  string     `db:"external_id"`
	Email       string     `db:"email"`
	Name        string     `db:"name"`
	Avatar      *string    `db:"avatar"`
	CreatedAt   time.Time  `db:"created_at"`
	BannedUntil *time.Time `db:"banned_until"`
}

// IsBanned は指定時刻においてユーザーがBAN中かどうかを返す。
func (u *User) IsBanned(now time.Time) bool {
	return u.BannedUntil != nil && u.BannedUntil.After(now)
}

// Session はユーザーのログインセッションを表す。
// IDはCookieに格納される不透明なトークン。
type Session struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// IsExpired は指定時刻においてセッションが期限切れかどうかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// EmailBan はアカウント削除後の再登録禁止期間を表す。
// usersレコードの削除後も残る。
type EmailBan struct {
	Email       string    `db:"email"`
	BannedUntil time.Time `db:"banned_until"`
	CreatedAt   time.Time `db:"created_at"`
}
