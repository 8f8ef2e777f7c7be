package model

import "time"

// Group はユーザーが作成するリンクのフォルダ（UI上は「Section」）を表す。
type Group struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	Order     int       `db:"order"`
	CreatedAt time.Time `db:"created_at"`
}

// Link は保存されたURLを表す。
type Link struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	GroupID    string    `db:"group_id"`
	URL        string    `db:"url"`
	Title      string    `db:"title"`
	Note       *string   `db:"note"`
	IsPinned   bool      `db:"is_pinned"`
	ClickCount int       `db:"click_count"`
	CreatedAt  time.Time `db:"created_at"`
}

// DefaultGroup はサインアップ時に作成されるグループの定義。
type DefaultGroup struct {
	Name  string
	Order int
}

// DefaultGroups は新規ユーザーに作成されるグループの一覧（order順）。
var DefaultGroups = []DefaultGroup{
	{Name: "Design Inspiration", Order: 1},
	{Name: "Development", Order: 2},
	{Name: "To Read", Order: 3},
	{Name: "Tools", Order: 4},
}

// AccountStats はアカウント画面に表示する統計情報。
type AccountStats struct {
	LinkCount int
	JoinedAt  time.Time
}
