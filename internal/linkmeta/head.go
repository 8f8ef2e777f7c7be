// Package linkmeta は保存するURLのページタイトルとfaviconを取得する。
package linkmeta

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// FeedType はフィードの種類（RSS/Atom）を表す。
type FeedType string

const (
	// FeedTypeRSS はRSSフィード。
	FeedTypeRSS FeedType = "rss"
	// FeedTypeAtom はAtomフィード。
	FeedTypeAtom FeedType = "atom"
)

// FeedLink はHTMLのheadで宣言されたフィードへのリンク。
type FeedLink struct {
	URL   string
	Type  FeedType
	Title string
}

// HeadInfo はHTMLのheadから読み取った情報。
type HeadInfo struct {
	Title string
	// Icons は宣言順のアイコンURL（絶対URL）。
	Icons []string
	Feeds []FeedLink
}

// ParseHead はHTMLのheadからtitle、アイコン、フィードリンクを読み取る。
// 相対URLはbaseを基準に絶対URLへ解決する。bodyに到達した時点で解析を終える。
func ParseHead(body []byte, base *url.URL) HeadInfo {
	var info HeadInfo

	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false
	var title strings.Builder

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			info.Title = strings.Join(strings.Fields(title.String()), " ")
			return info

		case html.TextToken:
			if inTitle {
				title.Write(tokenizer.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			switch string(tn) {
			case "body":
				info.Title = strings.Join(strings.Fields(title.String()), " ")
				return info
			case "title":
				// 最初のtitleだけを使う
				inTitle = title.Len() == 0 && tt == html.StartTagToken
			case "link":
				if hasAttr {
					collectLink(tokenizer, base, &info)
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "title":
				inTitle = false
			case "head":
				info.Title = strings.Join(strings.Fields(title.String()), " ")
				return info
			}
		}
	}
}

// collectLink はlink要素の属性を読み、アイコンまたはフィードとして記録する。
func collectLink(tokenizer *html.Tokenizer, base *url.URL, info *HeadInfo) {
	var rel, linkType, href, title string
	for {
		key, val, more := tokenizer.TagAttr()
		v := string(val)
		switch strings.ToLower(string(key)) {
		case "rel":
			rel = strings.ToLower(v)
		case "type":
			linkType = strings.ToLower(v)
		case "href":
			href = strings.TrimSpace(v)
		case "title":
			title = v
		}
		if !more {
			break
		}
	}
	if href == "" {
		return
	}

	rels := strings.Fields(rel)
	switch {
	case hasToken(rels, "icon"), hasToken(rels, "apple-touch-icon"):
		if resolved := resolveURL(base, href); resolved != "" {
			info.Icons = append(info.Icons, resolved)
		}
	case hasToken(rels, "alternate"):
		var ft FeedType
		switch linkType {
		case "application/rss+xml":
			ft = FeedTypeRSS
		case "application/atom+xml":
			ft = FeedTypeAtom
		default:
			return
		}
		if resolved := resolveURL(base, href); resolved != "" {
			info.Feeds = append(info.Feeds, FeedLink{URL: resolved, Type: ft, Title: title})
		}
	}
}

func hasToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
// http/https以外（data:など）は空文字を返す。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	var resolved *url.URL
	if base != nil {
		resolved = base.ResolveReference(ref)
	} else {
		resolved = ref
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
