package stream

import (
	"sort"
	"sync"

	"github.com/willu/notify/pkg/event"
)

// DefaultCacheLimit はユーザーあたりのイベントキャッシュ上限のデフォルト値。
const DefaultCacheLimit = 64

// CacheEntry はキャッシュされた1件の配信済みイベント。
type CacheEntry struct {
	// EventID はワイヤー上のイベントID。
	EventID string
	// Data は配信した通知ペイロード。
	Data event.Notification
}

// EventCache は配信済みイベントのユーザー別キャッシュ。
//
// 再接続したクライアントがLast-Event-IDを提示した際、それより新しい
// イベントを再送するために使用する。ユーザーごとに追記専用のログとして
// 保持し、挿入順はイベントIDの辞書順と一致する（IDが単調増加のため）。
// 上限を超えると最古のエントリから破棄する。
type EventCache struct {
	// mu はentriesへの並行アクセスを保護するミューテックス。
	mu sync.RWMutex
	// limit はユーザーあたりの保持件数上限。
	limit int
	// entries はユーザーIDからイベントIDの昇順エントリ列への対応。
	entries map[string][]CacheEntry
}

// NewEventCache は指定された上限のイベントキャッシュを生成する。
// limitが0以下の場合はDefaultCacheLimitを使用する。
func NewEventCache(limit int) *EventCache {
	if limit <= 0 {
		limit = DefaultCacheLimit
	}
	return &EventCache{
		limit:   limit,
		entries: make(map[string][]CacheEntry),
	}
}

// Limit はユーザーあたりの保持件数上限を返す。
func (c *EventCache) Limit() int { return c.limit }

// Record はイベントをユーザーのキャッシュ末尾に追記する。
// イベントIDは時刻由来でユーザー内一意のため、上書きは発生しない。
// 上限超過時は最古のエントリを破棄する。
func (c *EventCache) Record(userID, eventID string, data event.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.entries[userID]
	if len(list) >= c.limit {
		list = list[1:]
	}
	c.entries[userID] = append(list, CacheEntry{EventID: eventID, Data: data})
}

// After はlastEventIDより辞書順で大きいイベントを昇順で返す。
// lastEventIDがキャッシュに存在しない（破棄済み等）場合も、純粋に
// 辞書順比較だけで判定する。該当がなければ空スライスを返す。
// 空のlastEventIDの扱い（バックログ再送なし）は呼び出し側の責務。
func (c *EventCache) After(userID, lastEventID string) []CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := c.entries[userID]
	i := sort.Search(len(list), func(i int) bool {
		return list[i].EventID > lastEventID
	})

	out := make([]CacheEntry, len(list)-i)
	copy(out, list[i:])
	return out
}

// RemoveAllByUser は指定ユーザーのキャッシュを一括削除する。
func (c *EventCache) RemoveAllByUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// Len は指定ユーザーのキャッシュ件数を返す。
func (c *EventCache) Len(userID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries[userID])
}
