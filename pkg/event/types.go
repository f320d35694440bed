package event

import (
	"fmt"
	"time"
)

// Category は通知の種類を表す。
type Category string

const (
	// CategoryJoinRequest は投稿への参加リクエストが届いたことを表す。
	CategoryJoinRequest Category = "JOIN_REQUEST"
	// CategoryAcceptance は参加リクエストが承認されたことを表す。
	CategoryAcceptance Category = "ACCEPTANCE"
	// CategoryRejection は参加リクエストが拒否されたことを表す。
	CategoryRejection Category = "REJECTION"
	// CategoryMakeConnection はイベントストリームの接続確立を表す。
	// 接続直後のハンドシェイクイベント専用で、APIからは送信できない。
	CategoryMakeConnection Category = "MAKE_CONNECTION"
)

// ParseCategory は文字列を通知カテゴリに変換する。
// APIから送信可能なカテゴリのみ受け付ける（MAKE_CONNECTIONはシステム予約）。
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryJoinRequest, CategoryAcceptance, CategoryRejection:
		return Category(s), nil
	default:
		return "", fmt.Errorf("不正な通知カテゴリ: %q", s)
	}
}

// Notification はクライアントに配信される通知ペイロードを表す。
// 永続化された後はIDに耐久的な識別子（UUID）が設定される。
// 既読状態の変更は通知ストアのみが行い、配信側は関与しない。
type Notification struct {
	// ID は通知の一意識別子（UUID）。永続化前は空。
	ID string `json:"id,omitempty"`
	// ReceiverID は通知先のユーザーID。
	ReceiverID string `json:"receiver_id"`
	// PublisherID は通知元のユーザーID。システム通知の場合は空。
	PublisherID string `json:"publisher_id,omitempty"`
	// Category は通知の種類。
	Category Category `json:"category"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Content は通知の本文。
	Content string `json:"content"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time `json:"created_at"`
}
