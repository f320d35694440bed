// 通知サービスのエントリポイント。
// SSEによる長命のイベントストリームで接続中のユーザーへ通知を配信し、
// 切断中に取りこぼしたイベントをベストエフォートで再送する。
package main

import (
	"log"
	"os"

	"github.com/willu/notify/internal/notify"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8086"
	}

	server, err := notify.NewServer(port)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}

	log.Printf("通知サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}
