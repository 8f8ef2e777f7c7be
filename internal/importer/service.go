// Package importer はRSS/Atomフィードの記事をリンクとしてグループへ取り込む。
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/vault/internal/link"
	"github.com/hitoshi/vault/internal/linkmeta"
	"github.com/hitoshi/vault/internal/metrics"
	"github.com/hitoshi/vault/internal/model"
	"github.com/hitoshi/vault/internal/repository"
	"github.com/hitoshi/vault/internal/security"
)

// fetchKindImport は取り込み時の外部取得のメトリクス種別。
const fetchKindImport = "import"

// Fetcher は外部URLを取得する。security.SSRFGuardが実装する。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*security.FetchResult, error)
}

// GroupFinder は取り込み先グループの所有確認に使う。
type GroupFinder interface {
	FindByID(ctx context.Context, ownerID, id string) (*model.Group, error)
}

// LinkWriter は取り込んだリンクを保存する。
type LinkWriter interface {
	BulkCreate(ctx context.Context, links []*model.Link) error
}

// Sanitizer は表示用文字列からHTMLを取り除く。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service はフィード取り込みのサービス層。
type Service struct {
	fetcher   Fetcher
	groups    GroupFinder
	links     LinkWriter
	sanitizer Sanitizer
	metrics   metrics.MetricsCollector
	maxLinks  int
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。maxLinksは1回の取り込み件数の上限。
func NewService(
	fetcher Fetcher,
	groups GroupFinder,
	links LinkWriter,
	sanitizer Sanitizer,
	collector metrics.MetricsCollector,
	maxLinks int,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		fetcher:   fetcher,
		groups:    groups,
		links:     links,
		sanitizer: sanitizer,
		metrics:   collector,
		maxLinks:  maxLinks,
		now:       time.Now,
	}
}

// Import はフィードURL（またはフィードを宣言したページのURL）から記事を取得し、
// ユーザーのグループへリンクとして保存する。保存した件数を返す。
func (s *Service) Import(ctx context.Context, ownerID, groupID, rawURL string) (int, error) {
	if !model.IsValidID(groupID) {
		return 0, model.NewGroupNotFoundError(groupID)
	}
	group, err := s.groups.FindByID(ctx, ownerID, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to find group: %w", err)
	}
	if group == nil {
		return 0, model.NewGroupNotFoundError(groupID)
	}

	feedURL, err := link.NormalizeURL(rawURL)
	if err != nil {
		return 0, err
	}

	feed, err := s.loadFeed(ctx, feedURL)
	if err != nil {
		return 0, err
	}

	links := s.convertItems(ownerID, groupID, feed.Items)
	if len(links) == 0 {
		slog.Info("feed had no importable items",
			slog.String("user_id", ownerID),
			slog.String("feed_url", feedURL),
		)
		return 0, nil
	}

	if err := s.links.BulkCreate(ctx, links); err != nil {
		if errors.Is(err, repository.ErrForeignKey) {
			return 0, model.NewGroupNotFoundError(groupID)
		}
		return 0, fmt.Errorf("failed to save imported links: %w", err)
	}

	s.metrics.RecordLinksCreated(len(links))
	slog.Info("feed imported",
		slog.String("user_id", ownerID),
		slog.String("group_id", groupID),
		slog.String("feed_url", feedURL),
		slog.Int("imported", len(links)),
	)
	return len(links), nil
}

// loadFeed はURLを取得し、フィードであればそのまま、HTMLであれば宣言されたフィードを取得して解析する。
func (s *Service) loadFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	res, err := s.fetch(ctx, feedURL)
	if err != nil {
		return nil, model.NewFeedImportError("the URL could not be fetched")
	}

	if !IsDirectFeed(res.ContentType, res.Body) {
		if !isHTML(res.ContentType) {
			return nil, model.NewFeedImportError("no RSS or Atom feed was found")
		}
		head := linkmeta.ParseHead(res.Body, res.FinalURL)
		best := SelectBestFeed(head.Feeds, feedURL)
		if best == nil {
			return nil, model.NewFeedImportError("no RSS or Atom feed was found")
		}
		res, err = s.fetch(ctx, best.URL)
		if err != nil {
			return nil, model.NewFeedImportError("the discovered feed could not be fetched")
		}
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(res.Body))
	if err != nil {
		slog.Warn("feed parse failed",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFeedImportError("the feed could not be parsed")
	}
	return feed, nil
}

func (s *Service) fetch(ctx context.Context, rawURL string) (*security.FetchResult, error) {
	start := time.Now()
	res, err := s.fetcher.Fetch(ctx, rawURL)
	s.metrics.RecordOutboundFetch(fetchKindImport, err == nil, time.Since(start))
	if err != nil {
		slog.Warn("outbound fetch failed",
			slog.String("kind", fetchKindImport),
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return res, nil
}

// convertItems はフィードの記事をリンクに変換する。
// URLが不正な記事とフィード内で重複するURLは除き、上限件数で打ち切る。
// 作成日時はフィードの並び（新しい順）を保つよう1ミリ秒ずつずらす。
func (s *Service) convertItems(ownerID, groupID string, items []*gofeed.Item) []*model.Link {
	now := s.now()
	seen := make(map[string]struct{})
	links := make([]*model.Link, 0, min(len(items), s.maxLinks))

	for _, item := range items {
		if len(links) >= s.maxLinks {
			break
		}
		if item == nil {
			continue
		}

		raw := item.Link
		if raw == "" && (strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			raw = item.GUID
		}
		u, err := link.NormalizeURL(raw)
		if err != nil {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}

		title := truncateRunes(s.sanitizer.Sanitize(item.Title), link.MaxTitleLength)
		if title == "" {
			title = truncateRunes(u, link.MaxTitleLength)
		}

		var note *string
		if desc := truncateRunes(s.sanitizer.Sanitize(item.Description), link.MaxNoteLength); desc != "" {
			note = &desc
		}

		links = append(links, &model.Link{
			ID:        uuid.New().String(),
			UserID:    ownerID,
			GroupID:   groupID,
			URL:       u,
			Title:     title,
			Note:      note,
			CreatedAt: now.Add(-time.Duration(len(links)) * time.Millisecond),
		})
	}
	return links
}

// feedContentTypes はフィードとして認識するContent-Type。
var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/feed+json",
}

// xmlContentTypes はボディの確認が必要な汎用XMLのContent-Type。
var xmlContentTypes = []string{
	"text/xml",
	"application/xml",
}

// IsDirectFeed はContent-Typeとボディからレスポンスがフィードかどうかを判定する。
func IsDirectFeed(contentType string, body []byte) bool {
	mediaType := mediaTypeOf(contentType)
	for _, ct := range feedContentTypes {
		if mediaType == ct {
			return true
		}
	}

	isXML := false
	for _, ct := range xmlContentTypes {
		if mediaType == ct {
			isXML = true
			break
		}
	}
	if !isXML || len(body) == 0 {
		return false
	}
	return isRSSOrAtomXML(body)
}

// isRSSOrAtomXML はXMLの先頭4KBからRSS/Atomのルート要素を探す。
func isRSSOrAtomXML(body []byte) bool {
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// SelectBestFeed は候補から取り込むフィードを選ぶ。
// 優先順位: 同一ホスト > Atom > 宣言順
func SelectBestFeed(candidates []linkmeta.FeedLink, pageURL string) *linkmeta.FeedLink {
	if len(candidates) == 0 {
		return nil
	}

	pageHost := extractHost(pageURL)
	bestIdx := 0
	bestScore := -1
	for i, c := range candidates {
		score := 0
		if extractHost(c.URL) == pageHost {
			score += 100
		}
		if c.Type == linkmeta.FeedTypeAtom {
			score += 10
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return &candidates[bestIdx]
}

func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func mediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

func isHTML(contentType string) bool {
	mt := mediaTypeOf(contentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
