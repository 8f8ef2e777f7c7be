package link

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/hitoshi/vault/internal/model"
)

var (
	schemePattern = regexp.MustCompile(`(?i)^https?://`)
	// hostPattern はドット区切りで英字2文字以上のTLDを持つホスト名。
	hostPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}$`)
)

// NormalizeURL は入力URLを保存用に正規化する。
// スキームが省略されていればhttps://を補い、http/httpsの絶対URLのみ受け付ける。
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", model.NewInvalidURLError("URL is required")
	}
	if !schemePattern.MatchString(s) {
		if strings.Contains(s, "://") {
			return "", model.NewInvalidURLError("only http and https are supported")
		}
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", model.NewInvalidURLError("could not parse URL")
	}
	if !hostPattern.MatchString(u.Hostname()) {
		return "", model.NewInvalidURLError("host must be a domain name such as example.com")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u.String(), nil
}
