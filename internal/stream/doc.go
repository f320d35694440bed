// Package stream はSSEによる通知配信のコアを提供する。
//
// 接続レジストリ、イベントキャッシュ、ストリームハンドル（Emitter）、
// およびそれらを編成するDispatcherで構成される。レジストリとキャッシュは
// プロセスローカルな共有状態であり、購読フローと送信フローから並行に
// アクセスされる。プロセス再起動をまたぐ配信保証は持たない。
package stream
