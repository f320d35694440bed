package notifyclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/willu/notify/pkg/event"
)

// TestSend はSendメソッドを検証する。
func TestSend(t *testing.T) {
	t.Parallel()

	t.Run("送信APIに正しいリクエストが送られること", func(t *testing.T) {
		t.Parallel()

		var gotPath, gotAuth string
		var gotBody []byte
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		client := New(server.URL, "test-token")
		err := client.Send(context.Background(), SendRequest{
			PublisherID: "pub-1",
			ReceiverID:  "recv-1",
			Category:    event.CategoryAcceptance,
			Title:       "承認通知",
			Content:     "リクエストが承認されました",
		})
		if err != nil {
			t.Fatalf("Send()でエラーが発生: %v", err)
		}

		if gotPath != "/api/v1/internal/send" {
			t.Errorf("パス = %q, want %q", gotPath, "/api/v1/internal/send")
		}
		if gotAuth != "Bearer test-token" {
			t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-token")
		}

		var sent SendRequest
		if err := json.Unmarshal(gotBody, &sent); err != nil {
			t.Fatalf("リクエストボディのパースに失敗: %v", err)
		}
		if sent.ReceiverID != "recv-1" {
			t.Errorf("ReceiverID = %q, want %q", sent.ReceiverID, "recv-1")
		}
		if sent.Category != event.CategoryAcceptance {
			t.Errorf("Category = %q, want %q", sent.Category, event.CategoryAcceptance)
		}
	})

	t.Run("エラーレスポンスをエラーとして返すこと", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"不正な通知カテゴリ"}`))
		}))
		defer server.Close()

		client := New(server.URL, "test-token")
		err := client.Send(context.Background(), SendRequest{ReceiverID: "recv-1"})
		if err == nil {
			t.Fatal("Send()がエラーを返さなかった")
		}
	})
}

// TestCheckHealth はCheckHealthメソッドを検証する。
func TestCheckHealth(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","service":"notify","connections":3}`))
	}))
	defer server.Close()

	client := New(server.URL, "")
	h, err := client.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth()でエラーが発生: %v", err)
	}
	if h.Status != "ok" {
		t.Errorf("Status = %q, want %q", h.Status, "ok")
	}
	if h.Connections != 3 {
		t.Errorf("Connections = %d, want 3", h.Connections)
	}
}
