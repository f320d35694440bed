package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	notifydb "github.com/willu/notify/internal/notify/db"
	"github.com/willu/notify/internal/stream"
	"github.com/willu/notify/pkg/event"
)

// notificationStore は通知ストアのSQLite実装。
// stream.NotificationStoreを満たし、Dispatcherに注入される。
type notificationStore struct {
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *notifydb.Queries
}

// Save は通知を永続化し、耐久的なID（UUID）を設定して返す。
func (s *notificationStore) Save(ctx context.Context, n event.Notification) (event.Notification, error) {
	n.ID = uuid.New().String()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if err := s.queries.CreateNotification(ctx, notifydb.CreateNotificationParams{
		ID:          n.ID,
		ReceiverID:  n.ReceiverID,
		PublisherID: n.PublisherID,
		Category:    string(n.Category),
		Title:       n.Title,
		Content:     n.Content,
	}); err != nil {
		return event.Notification{}, fmt.Errorf("通知の保存に失敗: %w", err)
	}
	return n, nil
}

// userDirectory はユーザーディレクトリのSQLite実装。
// stream.UserDirectoryを満たし、Dispatcherに注入される。
type userDirectory struct {
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *notifydb.Queries
}

// FindUser はユーザーを解決する。存在しない場合はstream.ErrNotFoundをラップして返す。
func (d *userDirectory) FindUser(ctx context.Context, userID string) (stream.User, error) {
	u, err := d.queries.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return stream.User{}, fmt.Errorf("ユーザーID %s: %w", userID, stream.ErrNotFound)
	}
	if err != nil {
		return stream.User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return stream.User{ID: u.ID, Nickname: u.Nickname}, nil
}
