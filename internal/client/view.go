package client

import (
	"sort"
	"strings"
)

// AllGroups は全グループ表示を表すActiveGroupの値。
const AllGroups = "all"

// Dialog は画面上のダイアログ種別。
type Dialog string

const (
	DialogAddLink       Dialog = "add-link"
	DialogAddGroup      Dialog = "add-group"
	DialogBulkMove      Dialog = "bulk-move"
	DialogBulkDelete    Dialog = "bulk-delete"
	DialogDeleteGroup   Dialog = "delete-group"
	DialogDeleteAll     Dialog = "delete-all-links"
	DialogDeleteAccount Dialog = "delete-account"
)

// View はメイン画面の一時的な状態を保持する。
// サーバーのデータは持たず、表示中グループ・検索語・選択・開いているダイアログのみを扱う。
type View struct {
	ActiveGroup string
	Query       string

	selected map[string]struct{}
	dialogs  map[Dialog]bool
}

// NewView は全グループ表示の初期状態を返す。
func NewView() *View {
	return &View{
		ActiveGroup: AllGroups,
		selected:    make(map[string]struct{}),
		dialogs:     make(map[Dialog]bool),
	}
}

// SetActiveGroup は表示グループを切り替える。選択は解除される。
func (v *View) SetActiveGroup(groupID string) {
	if groupID == "" {
		groupID = AllGroups
	}
	if groupID != v.ActiveGroup {
		v.ClearSelection()
	}
	v.ActiveGroup = groupID
}

// OnGroupDeleted は表示中のグループが削除された場合に全グループ表示へ戻す。
func (v *View) OnGroupDeleted(groupID string) {
	if v.ActiveGroup == groupID {
		v.SetActiveGroup(AllGroups)
	}
}

// Open はダイアログを開く。
func (v *View) Open(d Dialog) { v.dialogs[d] = true }

// Close はダイアログを閉じる。
func (v *View) Close(d Dialog) { delete(v.dialogs, d) }

// IsOpen はダイアログが開いているかを返す。
func (v *View) IsOpen(d Dialog) bool { return v.dialogs[d] }

// Toggle はリンクの選択状態を反転する。
func (v *View) Toggle(id string) {
	if _, ok := v.selected[id]; ok {
		delete(v.selected, id)
		return
	}
	v.selected[id] = struct{}{}
}

// Select はリンクを選択状態にする。
func (v *View) Select(ids ...string) {
	for _, id := range ids {
		v.selected[id] = struct{}{}
	}
}

// ClearSelection は選択を解除する。
func (v *View) ClearSelection() {
	v.selected = make(map[string]struct{})
}

// IsSelected はリンクが選択されているかを返す。
func (v *View) IsSelected(id string) bool {
	_, ok := v.selected[id]
	return ok
}

// Selected は選択中のリンクIDをソートして返す。
func (v *View) Selected() []string {
	ids := make([]string, 0, len(v.selected))
	for id := range v.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SelectAllVisible は現在表示されているリンクをすべて選択する。
func (v *View) SelectAllVisible(links []Link) {
	for _, l := range v.Visible(links) {
		v.selected[l.ID] = struct{}{}
	}
}

// PruneSelection は存在しなくなったリンクを選択から外す。
func (v *View) PruneSelection(links []Link) {
	exists := make(map[string]struct{}, len(links))
	for _, l := range links {
		exists[l.ID] = struct{}{}
	}
	for id := range v.selected {
		if _, ok := exists[id]; !ok {
			delete(v.selected, id)
		}
	}
}

// Visible は表示グループと検索語で絞り込んだリンクを返す。
// ピン留めを先頭に、それ以外は作成日時の新しい順に並べる。
func (v *View) Visible(links []Link) []Link {
	query := strings.ToLower(strings.TrimSpace(v.Query))

	out := make([]Link, 0, len(links))
	for _, l := range links {
		if v.ActiveGroup != AllGroups && l.GroupID != v.ActiveGroup {
			continue
		}
		if query != "" && !matches(l, query) {
			continue
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func matches(l Link, query string) bool {
	if strings.Contains(strings.ToLower(l.Title), query) ||
		strings.Contains(strings.ToLower(l.URL), query) {
		return true
	}
	return l.Note != nil && strings.Contains(strings.ToLower(*l.Note), query)
}
