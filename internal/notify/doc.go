// Package notify は通知サービスの内部実装を提供する。
//
// SSEによる長命のイベントストリームで接続中のユーザーへ通知をほぼ
// リアルタイムに配信する。切断中に取りこぼしたイベントはLast-Event-IDを
// 使ったベストエフォートの再送で回復する。通知の永続化・既読管理・
// 一覧取得も行う。
package notify
