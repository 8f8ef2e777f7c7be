package linkmeta

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/vault/internal/metrics"
	"github.com/hitoshi/vault/internal/security"
)

const (
	// fetchKindPreview はプレビュー取得のメトリクス種別。
	fetchKindPreview = "preview"
	// fetchKindFavicon はfavicon取得のメトリクス種別。
	fetchKindFavicon = "favicon"

	// maxTitleLength はプレビューで返すタイトルの最大文字数。
	maxTitleLength = 500
	// maxFaviconSize はfaviconとして返す画像の最大サイズ。
	maxFaviconSize = 512 * 1024
)

// Fetcher は外部URLを取得する。security.SSRFGuardが実装する。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*security.FetchResult, error)
}

// Sanitizer は表示用文字列からHTMLを取り除く。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Preview はリンク追加ダイアログに表示するページ情報。
type Preview struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	FaviconURL string `json:"faviconUrl"`
}

// Icon は取得したfavicon画像。
type Icon struct {
	Data        []byte
	ContentType string
}

// Service はページのプレビューとfaviconを取得する。
type Service struct {
	fetcher   Fetcher
	sanitizer Sanitizer
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(fetcher Fetcher, sanitizer Sanitizer, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{fetcher: fetcher, sanitizer: sanitizer, metrics: collector}
}

// Preview はページを取得してタイトルとアイコンURLを返す。
// 取得に失敗してもエラーにせず、タイトルを空、アイコンをフォールバックURLにして返す。
func (s *Service) Preview(ctx context.Context, pageURL string) *Preview {
	p := &Preview{URL: pageURL, FaviconURL: FallbackFaviconURL(pageURL)}

	res, ok := s.fetch(ctx, fetchKindPreview, pageURL)
	if !ok || !isHTML(res.ContentType) {
		return p
	}

	head := ParseHead(res.Body, res.FinalURL)
	p.Title = truncateRunes(s.sanitizer.Sanitize(head.Title), maxTitleLength)
	if len(head.Icons) > 0 {
		p.FaviconURL = head.Icons[0]
	}
	return p
}

// Favicon はサイトのfavicon画像を取得する。
// headで宣言されたアイコン、/favicon.ico の順に試し、どちらも得られなければnilを返す。
func (s *Service) Favicon(ctx context.Context, siteURL string) *Icon {
	var candidates []string
	if res, ok := s.fetch(ctx, fetchKindFavicon, siteURL); ok && isHTML(res.ContentType) {
		candidates = append(candidates, ParseHead(res.Body, res.FinalURL).Icons...)
	}
	if guessed := guessDefaultFaviconURL(siteURL); guessed != "" {
		candidates = append(candidates, guessed)
	}

	for _, c := range candidates {
		res, ok := s.fetch(ctx, fetchKindFavicon, c)
		if !ok {
			continue
		}
		mimeType := extractMimeType(res.ContentType)
		if !isImageMime(mimeType) || len(res.Body) == 0 || len(res.Body) > maxFaviconSize {
			slog.Debug("favicon candidate rejected",
				slog.String("url", c),
				slog.String("content_type", res.ContentType),
				slog.Int("size", len(res.Body)),
			)
			continue
		}
		return &Icon{Data: res.Body, ContentType: mimeType}
	}
	return nil
}

// fetch は取得結果とメトリクスを記録する。失敗はWarnログのみでokをfalseにする。
func (s *Service) fetch(ctx context.Context, kind, rawURL string) (*security.FetchResult, bool) {
	start := time.Now()
	res, err := s.fetcher.Fetch(ctx, rawURL)
	s.metrics.RecordOutboundFetch(kind, err == nil, time.Since(start))
	if err != nil {
		slog.Warn("outbound fetch failed",
			slog.String("kind", kind),
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return res, true
}

// FallbackFaviconURL はfaviconを取得できないときにクライアントが使う画像URLを返す。
func FallbackFaviconURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return "https://www.google.com/s2/favicons?domain=" + url.QueryEscape(u.Hostname()) + "&sz=64"
}

// guessDefaultFaviconURL はサイトURLからデフォルトのfavicon URLを推測する。
func guessDefaultFaviconURL(siteURL string) string {
	if siteURL == "" {
		return ""
	}
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Path = "/favicon.ico"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが配信してよい画像かどうかを判定する。
// スクリプトを含み得るSVGは除外する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") && mimeType != "image/svg+xml"
}

func isHTML(contentType string) bool {
	mt := extractMimeType(contentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
