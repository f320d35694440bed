// Package migration はembedされたSQLファイルによるスキーマ管理を提供する。
// 適用済みバージョンをschema_migrationsテーブルで追跡し、起動時に
// 未適用分だけを順に適用する。
package migration

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strconv"
	"strings"
)

// step は1つのマイグレーションファイルを表す。
type step struct {
	// version はファイル名先頭の連番（例: 000001）。
	version int64
	// label はファイル名のバージョンと拡張子を除いた説明部分。
	label string
	// path はfsys内のファイルパス。
	path string
}

// Run はdir配下の*.up.sqlファイルをバージョン順に適用する。
// 各ステップはトランザクション内で実行され、成功時にバージョンが記録される。
// 全ステップ適用済みの場合は何もしない。
func Run(db *sql.DB, fsys fs.FS, dir string) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("schema_migrationsテーブルの作成に失敗: %w", err)
	}

	steps, err := loadSteps(fsys, dir)
	if err != nil {
		return fmt.Errorf("マイグレーションファイルの読み込みに失敗: %w", err)
	}

	for _, st := range steps {
		done, err := isApplied(db, st.version)
		if err != nil {
			return fmt.Errorf("適用状態の確認に失敗 (version=%d): %w", st.version, err)
		}
		if done {
			continue
		}
		if err := apply(db, fsys, st); err != nil {
			return fmt.Errorf("マイグレーション %06d_%s の適用に失敗: %w", st.version, st.label, err)
		}
		log.Printf("[migration] %06d_%s を適用しました", st.version, st.label)
	}
	return nil
}

// loadSteps はdir内の*.up.sqlファイルをバージョン昇順で返す。
// 命名規約（000001_description.up.sql）に合わないファイルは無視する。
func loadSteps(fsys fs.FS, dir string) ([]step, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	steps := make([]step, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(e.Name(), ".up.sql")
		if !ok {
			continue
		}
		prefix, label, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			continue
		}
		steps = append(steps, step{
			version: version,
			label:   label,
			path:    dir + "/" + e.Name(),
		})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// isApplied は指定バージョンが適用済みかを返す。
func isApplied(db *sql.DB, version int64) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// apply は1ステップをトランザクション内で実行し、バージョンを記録する。
func apply(db *sql.DB, fsys fs.FS, st step) error {
	script, err := fs.ReadFile(fsys, st.path)
	if err != nil {
		return fmt.Errorf("ファイル読み込みに失敗: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(string(script)); err != nil {
		return fmt.Errorf("SQL実行に失敗: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", st.version); err != nil {
		return fmt.Errorf("バージョン記録に失敗: %w", err)
	}
	return tx.Commit()
}
