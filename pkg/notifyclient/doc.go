// Package notifyclient は通知サービスのAPIを呼び出すクライアントを提供する。
//
// 他のサービスがドメインアクション（参加リクエストの承認・拒否など）の
// 結果を通知として送信する際に使用する。
package notifyclient
