package client

import (
	"strings"
	"sync"
)

// Tag はキャッシュのコレクション種別。ミューテーション後にタグ単位で無効化する。
type Tag string

const (
	TagGroups  Tag = "groups"
	TagLinks   Tag = "links"
	TagAccount Tag = "account"
)

// AllTags は全コレクションのタグ。ログアウトやアカウント削除時に使う。
var AllTags = []Tag{TagGroups, TagLinks, TagAccount}

// Cache はAPIレスポンスをコレクション単位で保持する。
// 値はInvalidateされるまで再取得せずに返す。
type Cache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

// NewCache は空のCacheを生成する。
func NewCache() *Cache {
	return &Cache{entries: make(map[string]interface{})}
}

func cacheKey(tag Tag, sub string) string {
	if sub == "" {
		return string(tag)
	}
	return string(tag) + "/" + sub
}

// Get はタグとサブキーに対応するキャッシュ値を返す。
func (c *Cache) Get(tag Tag, sub string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[cacheKey(tag, sub)]
	return v, ok
}

// Set はタグとサブキーに値を保存する。
func (c *Cache) Set(tag Tag, sub string, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(tag, sub)] = v
}

// Invalidate は指定タグに属するすべてのエントリを削除する。
func (c *Cache) Invalidate(tags ...Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range tags {
		prefix := string(tag) + "/"
		for key := range c.entries {
			if key == string(tag) || strings.HasPrefix(key, prefix) {
				delete(c.entries, key)
			}
		}
	}
}

// Len はキャッシュされているエントリ数を返す。
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cached はキャッシュにあればそれを返し、なければloadの結果を保存して返す。
func cached[T any](c *Cache, tag Tag, sub string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(tag, sub); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(tag, sub, v)
	return v, nil
}
