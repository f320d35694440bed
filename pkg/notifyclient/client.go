package notifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/willu/notify/pkg/event"
)

// Client は通知サービスの内部送信APIを呼び出すHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は通知サービスのベースURL（例: "http://notify:8086"）。
	baseURL string
	// token は認証に使うJWTトークン。
	token string
}

// New は新しい通知サービスクライアントを生成する。
func New(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		token:   token,
	}
}

// SendRequest は通知送信のパラメータ。
type SendRequest struct {
	// PublisherID は通知元のユーザーID。システム通知の場合は空。
	PublisherID string `json:"publisher_id,omitempty"`
	// ReceiverID は通知先のユーザーID。
	ReceiverID string `json:"receiver_id"`
	// Category は通知カテゴリ。
	Category event.Category `json:"category"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Content は通知の本文。
	Content string `json:"content"`
}

// Send は通知を送信する。通知は永続化され、受信ユーザーの
// 全アクティブ接続へSSEで配信される。
func (c *Client) Send(ctx context.Context, req SendRequest) error {
	return c.postJSON(ctx, "/api/v1/internal/send", req, nil)
}

// Health は通知サービスのヘルスチェック結果。
type Health struct {
	// Status はサービスの状態（"ok"）。
	Status string `json:"status"`
	// Connections はアクティブなSSE接続数。
	Connections int `json:"connections"`
}

// CheckHealth は通知サービスの稼働状態を取得する。
func (c *Client) CheckHealth(ctx context.Context) (Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/health", &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// postJSON は指定パスにJSONボディでPOSTリクエストを送信する。
func (c *Client) postJSON(ctx context.Context, path string, body, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// getJSON は指定パスにGETリクエストを送信し、レスポンスをresultにデシリアライズする。
func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTPエラー: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}
