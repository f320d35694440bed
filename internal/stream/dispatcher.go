package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/willu/notify/pkg/event"
)

// ErrNotFound は対象のユーザー・投稿・通知が存在しない場合に返される。
// コラボレータ実装はこのセンチネルをラップして返すこと。
var ErrNotFound = errors.New("対象が見つかりません")

const (
	// DefaultIdleTimeout はイベントが流れない接続を切断するまでのデフォルト時間。
	DefaultIdleTimeout = time.Hour
	// DefaultPushTimeout は1件のPushを諦めるまでのデフォルト時間。
	DefaultPushTimeout = 3 * time.Second
)

// User は購読ユーザーの解決結果。
type User struct {
	// ID はユーザーの一意識別子。
	ID string
	// Nickname はユーザーの表示名。
	Nickname string
}

// NotificationStore は通知の永続化を担う外部コラボレータ。
type NotificationStore interface {
	// Save は通知を永続化し、耐久的なIDが設定された通知を返す。
	Save(ctx context.Context, n event.Notification) (event.Notification, error)
}

// UserDirectory はユーザーの存在解決を担う外部コラボレータ。
type UserDirectory interface {
	// FindUser はユーザーを解決する。存在しない場合はErrNotFoundをラップして返す。
	FindUser(ctx context.Context, userID string) (User, error)
}

// Dispatcher は購読と送信の両フローを編成する配信コア。
//
// プロセス起動時に一度だけ生成し、レジストリとキャッシュを参照で注入する。
// 購読フローはリクエストごとに長命で、送信フローは短命にファンアウトして
// 戻る。両者はレジストリとキャッシュを並行に読み書きする。
type Dispatcher struct {
	// registry は生きている接続のレジストリ。
	registry *Registry
	// cache は再送用のイベントキャッシュ。
	cache *EventCache
	// store は通知の永続化先。
	store NotificationStore
	// users は購読ユーザーの解決先。
	users UserDirectory
	// idleTimeout は新規Emitterに設定するアイドルタイムアウト。
	idleTimeout time.Duration
	// pushTimeout は新規Emitterに設定するPushタイムアウト。
	pushTimeout time.Duration
}

// NewDispatcher は新しいDispatcherを生成する。
// idleTimeout・pushTimeoutが0以下の場合はデフォルト値を使用する。
func NewDispatcher(registry *Registry, cache *EventCache, store NotificationStore, users UserDirectory, idleTimeout, pushTimeout time.Duration) *Dispatcher {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if pushTimeout <= 0 {
		pushTimeout = DefaultPushTimeout
	}
	return &Dispatcher{
		registry:    registry,
		cache:       cache,
		store:       store,
		users:       users,
		idleTimeout: idleTimeout,
		pushTimeout: pushTimeout,
	}
}

// Subscribe は購読を開始し、登録済みのEmitterを返す。
//
// ユーザーを解決できない場合はストリームを一切作らずにエラーを返す。
// 登録後すぐにハンドシェイクイベント（MAKE_CONNECTION）を積む。これは
// 最初のイベントまで無通信だと接続を切るプロキシ対策と、クライアントに
// 再開用のイベントIDを与えるため。lastEventIDが空でなければ、それより
// 新しいキャッシュ済みイベントを昇順で同じハンドルに積む。
func (d *Dispatcher) Subscribe(ctx context.Context, userID, lastEventID string) (*Emitter, error) {
	user, err := d.users.FindUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("購読ユーザーの解決に失敗: %w", err)
	}

	connID := NewStreamID(user.ID)
	// バッファはハンドシェイク1件とバックログ全件を書き込みループ開始前に
	// 積めるサイズにする。
	em := NewEmitter(connID, d.cache.Limit()+1, d.idleTimeout, d.pushTimeout)
	d.registry.Register(user.ID, connID, em)

	cleanup := func() { d.registry.Remove(user.ID, connID) }
	em.OnCompletion(cleanup)
	em.OnTimeout(cleanup)

	handshake := event.Notification{
		ReceiverID: user.ID,
		Category:   event.CategoryMakeConnection,
		Title:      "connect",
		Content:    fmt.Sprintf("EventStream Created. [userId=%s]", user.ID),
		CreatedAt:  time.Now().UTC(),
	}
	if err := em.Push(NewStreamID(user.ID), handshake); err != nil {
		em.Complete()
		return nil, fmt.Errorf("ハンドシェイクイベントの送信に失敗: %w", err)
	}

	if lastEventID != "" {
		backlog := d.cache.After(user.ID, lastEventID)
		log.Printf("未受信イベントを再送します: userID=%s lastEventID=%s 件数=%d", user.ID, lastEventID, len(backlog))
		for _, entry := range backlog {
			if err := em.Push(entry.EventID, entry.Data); err != nil {
				em.Complete()
				return nil, fmt.Errorf("未受信イベントの再送に失敗: %w", err)
			}
		}
	}

	return em, nil
}

// Send は通知を永続化し、受信ユーザーの全接続へファンアウトする。
//
// 永続化に失敗した場合は何も配信せずエラーを返す。接続ごとに新しい
// イベントIDを採番し、キャッシュに記録してからPushする。個々のPush失敗は
// その接続をレジストリから除去して続行し、呼び出し側には伝播しない。
func (d *Dispatcher) Send(ctx context.Context, publisherID, receiverID string, category event.Category, title, content string) error {
	n := event.Notification{
		ReceiverID:  receiverID,
		PublisherID: publisherID,
		Category:    category,
		Title:       title,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}

	saved, err := d.store.Save(ctx, n)
	if err != nil {
		return fmt.Errorf("通知の永続化に失敗: %w", err)
	}

	for connID, em := range d.registry.FindAllByUser(receiverID) {
		eventID := NewStreamID(receiverID)
		d.cache.Record(receiverID, eventID, saved)
		if err := em.Push(eventID, saved); err != nil {
			// 壊れた接続は除去して残りの接続への配信を続ける
			d.registry.Remove(receiverID, connID)
			em.Complete()
			log.Printf("接続への配信に失敗したため除去します: connID=%s: %v", connID, err)
		}
	}

	return nil
}

// Connections は生きている接続の総数を返す。
func (d *Dispatcher) Connections() int {
	return d.registry.Len()
}
