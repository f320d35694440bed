package stream

import (
	"fmt"
	"sync/atomic"
	"time"
)

// lastNano は直近に採番したナノ秒タイムスタンプ。
// 同一ナノ秒内の連続採番でもIDが衝突しないよう単調増加を保証する。
var lastNano atomic.Int64

// NewStreamID は "{userID}_{ナノ秒タイムスタンプ}" 形式のIDを採番する。
// 接続IDとイベントIDの両方に使用する。タイムスタンプ部はプロセス内で
// 厳密に単調増加するため、同一ユーザーのID同士は辞書順比較が
// 時系列順と一致する。
func NewStreamID(userID string) string {
	for {
		now := time.Now().UnixNano()
		last := lastNano.Load()
		if now <= last {
			now = last + 1
		}
		if lastNano.CompareAndSwap(last, now) {
			return fmt.Sprintf("%s_%d", userID, now)
		}
	}
}
