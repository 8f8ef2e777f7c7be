// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// userAgent は外部サイト取得時のUser-Agent。
const userAgent = "VaultLinkBot/1.0 (+link preview)"

// ErrResponseTooLarge はレスポンスが上限サイズを超えたことを表す。
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// StatusError は取得先が2xx以外を返したことを表す。
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// FetchResult は外部URLの取得結果。
type FetchResult struct {
	// FinalURL はリダイレクト追従後のURL。相対URLの解決に使う。
	FinalURL    *url.URL
	ContentType string
	Body        []byte
}

// allowedSchemes はSSRF防止で許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はSSRF防止でブロックされるネットワーク範囲。
// safeurlはnet.DialerレベルでDNS解決後のIPアドレスも検証するため、
// ここでの照合はDNS解決前の静的チェックに限られる。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック
		"127.0.0.0/8",
		// リンクローカル（クラウドメタデータIPを含む）
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック・リンクローカル・ユニークローカル
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// SSRFGuard はユーザー入力URLへの外部リクエストを安全に行う。
// リンクのプレビュー、favicon取得、フィード取り込みで共有する。
type SSRFGuard struct {
	client  *http.Client
	maxSize int64
}

// NewSSRFGuard はsafeurlのクライアントを持つSSRFGuardを生成する。
// プライベートIP、ループバック、リンクローカル、メタデータIPへの接続と
// 80/443以外のポートはDialerレベルで拒否される。
func NewSSRFGuard(timeout time.Duration, maxResponseSize int64) *SSRFGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &SSRFGuard{
		client:  safeurl.Client(config).Client,
		maxSize: maxResponseSize,
	}
}

// Client は内部のSSRF防止付きHTTPクライアントを返す。
func (g *SSRFGuard) Client() *http.Client {
	return g.client
}

// Fetch はURLを事前検証したうえで取得し、上限サイズまでの本文を返す。
func (g *SSRFGuard) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if err := g.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	return g.fetch(ctx, rawURL)
}

func (g *SSRFGuard) fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > g.maxSize {
		return nil, ErrResponseTooLarge
	}

	return &FetchResult{
		FinalURL:    resp.Request.URL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// ValidateURL はURLの安全性をDNS解決なしで事前に検証する。
// DNS再バインディング攻撃はsafeurlクライアント側のDialer検証で防止される。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// isBlockedHostname はlocalhostと、その配下のサブドメインを拒否する。
func isBlockedHostname(host string) bool {
	lower := strings.TrimSuffix(strings.ToLower(host), ".")
	return lower == "localhost" || strings.HasSuffix(lower, ".localhost")
}
