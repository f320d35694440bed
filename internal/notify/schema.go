package notify

import (
	"database/sql"
	"embed"

	"github.com/willu/notify/pkg/migration"
)

// スキーマはマイグレーションファイルで管理する。
// db/notify/schema.sql（sqlc用）と同期すること。

//go:embed migrations
var migrationsFS embed.FS

// initSchema はマイグレーションを実行してスキーマを適用する。
func initSchema(db *sql.DB) error {
	return migration.Run(db, migrationsFS, "migrations")
}
