package group

import "strings"

// DefaultIcon はどのキーワードにも一致しないグループのアイコン。
const DefaultIcon = "folder"

// iconKeywords はグループ名に含まれるキーワードとアイコン名の対応。先に一致したものを使う。
var iconKeywords = []struct {
	keywords []string
	icon     string
}{
	{[]string{"design", "inspiration"}, "palette"},
	{[]string{"dev", "code", "programming", "engineering"}, "code"},
	{[]string{"read", "article", "book", "blog"}, "book"},
	{[]string{"tool", "util", "resource"}, "wrench"},
	{[]string{"video", "watch", "youtube"}, "video"},
	{[]string{"music", "audio", "podcast"}, "music"},
	{[]string{"news"}, "newspaper"},
	{[]string{"shop", "buy", "wishlist"}, "cart"},
	{[]string{"work", "job", "career"}, "briefcase"},
}

// IconFor はグループ名からサイドバー表示用のアイコン名を決める。
// 大文字小文字を区別しない部分一致。
func IconFor(name string) string {
	lower := strings.ToLower(name)
	for _, entry := range iconKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.icon
			}
		}
	}
	return DefaultIcon
}
