package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// sessionCookieName はサーバーが発行するセッションCookie名。
const sessionCookieName = "session"

// maxResponseSize はAPIレスポンスボディの読み取り上限。
const maxResponseSize = 4 << 20

// Client はVault REST APIのクライアント。
// セッションはCookieJarで保持し、一覧系のレスポンスはCacheに保存する。
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	cache      *Cache
	logger     *slog.Logger
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithHTTPClient はリクエストに使うhttp.Clientを差し替える。
// Jarが未設定の場合はコピーにJarを設定し、渡されたClient自体は変更しない。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger はロガーを差し替える。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New はbaseURLのAPIに接続するClientを生成する。
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		cache:      NewCache(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		// 渡されたhttp.Client（http.DefaultClientなど）は変更しない
		hc := *c.httpClient
		hc.Jar = jar
		c.httpClient = &hc
	}
	return c, nil
}

// Cache はクライアントのキャッシュを返す。
func (c *Client) Cache() *Cache {
	return c.cache
}

// SetSessionToken はブラウザ外で取得したセッショントークンをCookieJarに設定する。
func (c *Client) SetSessionToken(token string) {
	c.httpClient.Jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:  sessionCookieName,
		Value: token,
		Path:  "/",
	}})
	c.cache.Invalidate(AllTags...)
}

// --- 認証 ---

// LoginURL はGoogleの認可URLを返す。
func (c *Client) LoginURL(ctx context.Context) (string, error) {
	var res struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/google", nil, &res); err != nil {
		return "", err
	}
	return res.URL, nil
}

// Me はログイン中のユーザーを返す。未ログインの場合はnil。
func (c *Client) Me(ctx context.Context) (*User, error) {
	var res struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &res); err != nil {
		return nil, err
	}
	return res.User, nil
}

// Logout はセッションを破棄し、キャッシュをすべて無効化する。
func (c *Client) Logout(ctx context.Context) error {
	defer c.cache.Invalidate(AllTags...)
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// --- アカウント ---

// AccountStats はリンク数と登録日時を返す。
func (c *Client) AccountStats(ctx context.Context) (*AccountStats, error) {
	return cached(c.cache, TagAccount, "", func() (*AccountStats, error) {
		var stats AccountStats
		if err := c.do(ctx, http.MethodGet, "/api/account/stats", nil, &stats); err != nil {
			return nil, err
		}
		return &stats, nil
	})
}

// DeleteAllLinks は確認フレーズ付きで全リンクを削除し、削除件数を返す。
func (c *Client) DeleteAllLinks(ctx context.Context, confirmation string) (int64, error) {
	var res struct {
		Deleted int64 `json:"deleted"`
	}
	err := c.do(ctx, http.MethodPost, "/api/account/delete-all-links",
		map[string]string{"confirmation": confirmation}, &res)
	if err != nil {
		return 0, err
	}
	c.cache.Invalidate(TagLinks, TagAccount)
	return res.Deleted, nil
}

// DeleteAccount は確認フレーズ付きでアカウントを削除する。
func (c *Client) DeleteAccount(ctx context.Context, confirmation string) error {
	err := c.do(ctx, http.MethodPost, "/api/account/delete",
		map[string]string{"confirmation": confirmation}, nil)
	if err != nil {
		return err
	}
	c.cache.Invalidate(AllTags...)
	return nil
}

// --- グループ ---

// Groups はグループをorder順で返す。
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	return cached(c.cache, TagGroups, "", func() ([]Group, error) {
		var groups []Group
		if err := c.do(ctx, http.MethodGet, "/api/groups", nil, &groups); err != nil {
			return nil, err
		}
		return groups, nil
	})
}

// CreateGroup はグループを作成する。orderがnilなら末尾に追加される。
func (c *Client) CreateGroup(ctx context.Context, name string, order *int) (*Group, error) {
	body := map[string]interface{}{"name": name}
	if order != nil {
		body["order"] = *order
	}
	var g Group
	if err := c.do(ctx, http.MethodPost, "/api/groups", body, &g); err != nil {
		return nil, err
	}
	c.cache.Invalidate(TagGroups)
	return &g, nil
}

// DeleteGroup はグループと所属リンクを削除する。
func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/groups/"+url.PathEscape(id), nil, nil); err != nil {
		return err
	}
	c.cache.Invalidate(TagGroups, TagLinks, TagAccount)
	return nil
}

// ImportFeed はフィードの記事をグループに取り込み、取り込んだ件数を返す。
func (c *Client) ImportFeed(ctx context.Context, groupID, feedURL string) (int, error) {
	var res struct {
		Imported int `json:"imported"`
	}
	err := c.do(ctx, http.MethodPost, "/api/groups/"+url.PathEscape(groupID)+"/import",
		map[string]string{"feedUrl": feedURL}, &res)
	if err != nil {
		return 0, err
	}
	c.cache.Invalidate(TagLinks, TagAccount)
	return res.Imported, nil
}

// --- リンク ---

// Links は全リンクを返す。絞り込みと並べ替えはViewで行う。
func (c *Client) Links(ctx context.Context) ([]Link, error) {
	return cached(c.cache, TagLinks, "", func() ([]Link, error) {
		var links []Link
		if err := c.do(ctx, http.MethodGet, "/api/links", nil, &links); err != nil {
			return nil, err
		}
		return links, nil
	})
}

// SearchLinks はサーバー側で絞り込んだリンクを返す。キャッシュしない。
func (c *Client) SearchLinks(ctx context.Context, groupID, query string) ([]Link, error) {
	q := url.Values{}
	if groupID != "" {
		q.Set("groupId", groupID)
	}
	if query != "" {
		q.Set("q", query)
	}
	path := "/api/links"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var links []Link
	if err := c.do(ctx, http.MethodGet, path, nil, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// CreateLink はリンクを作成する。
func (c *Client) CreateLink(ctx context.Context, in NewLink) (*Link, error) {
	var l Link
	if err := c.do(ctx, http.MethodPost, "/api/links", in, &l); err != nil {
		return nil, err
	}
	c.cache.Invalidate(TagLinks, TagAccount)
	return &l, nil
}

// DeleteLink はリンクを削除する。
func (c *Client) DeleteLink(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/links/"+url.PathEscape(id), nil, nil); err != nil {
		return err
	}
	c.cache.Invalidate(TagLinks, TagAccount)
	return nil
}

// SetPinned はピン状態を更新する。
func (c *Client) SetPinned(ctx context.Context, id string, pinned bool) (*Link, error) {
	var l Link
	err := c.do(ctx, http.MethodPatch, "/api/links/"+url.PathEscape(id)+"/pin",
		map[string]bool{"isPinned": pinned}, &l)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(TagLinks)
	return &l, nil
}

// TrackClick はクリックを記録する。
// ナビゲーションを妨げないよう、失敗はログに残すだけでエラーを返さない。
func (c *Client) TrackClick(ctx context.Context, id string) {
	if err := c.do(ctx, http.MethodPost, "/api/links/"+url.PathEscape(id)+"/click", nil, nil); err != nil {
		c.logger.Debug("click tracking failed",
			slog.String("link_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	c.cache.Invalidate(TagLinks)
}

// BulkDelete は選択されたリンクを削除し、削除件数を返す。
func (c *Client) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	var res struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/links/bulk-delete", map[string][]string{"ids": ids}, &res); err != nil {
		return 0, err
	}
	c.cache.Invalidate(TagLinks, TagAccount)
	return res.Deleted, nil
}

// BulkMove は選択されたリンクをgroupIDへ移動し、移動件数を返す。
func (c *Client) BulkMove(ctx context.Context, ids []string, groupID string) (int64, error) {
	var res struct {
		Moved int64 `json:"moved"`
	}
	body := map[string]interface{}{"ids": ids, "groupId": groupID}
	if err := c.do(ctx, http.MethodPost, "/api/links/bulk-move", body, &res); err != nil {
		return 0, err
	}
	c.cache.Invalidate(TagLinks)
	return res.Moved, nil
}

// Preview はページのタイトルとファビコンURLを返す。
func (c *Client) Preview(ctx context.Context, pageURL string) (*Preview, error) {
	var p Preview
	if err := c.do(ctx, http.MethodGet, "/api/links/preview?url="+url.QueryEscape(pageURL), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FaviconURL はサーバー経由のファビコン画像URLを返す。
func (c *Client) FaviconURL(siteURL string) string {
	return c.baseURL.String() + "/api/favicon?url=" + url.QueryEscape(siteURL)
}

// do はAPIリクエストを送信し、成功時はレスポンスをoutにデコードする。
// 2xx以外は*Errorを返す。
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
