// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証トークンの検証、パニックリカバリ、CORS設定など、
// APIとSSE購読エンドポイントで共通して使用するミドルウェアを含む。
package middleware
