package stream

import "sync"

// Registry は生きているSSE接続のプロセスローカルなレジストリ。
//
// ユーザーID→接続ID→Emitterの2段マップで管理する。接続IDの前置一致で
// 走査する方式だとユーザー "1" が "10_..." に誤一致するため、外側を
// ユーザーIDで明示的に区切る。購読フローとファンアウトフローから
// 並行にアクセスされる。
type Registry struct {
	// mu はconnsへの並行アクセスを保護するミューテックス。
	mu sync.RWMutex
	// conns はユーザーIDから接続ID→Emitterのマップへの対応。
	conns map[string]map[string]*Emitter
}

// NewRegistry は空のレジストリを生成する。
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]map[string]*Emitter),
	}
}

// Register はEmitterを登録し、そのEmitterを返す。
// 同一接続IDへの再登録は後勝ちだが、接続IDは単調増加タイムスタンプを
// 含むため通常運用では発生しない。
func (r *Registry) Register(userID, connID string, em *Emitter) *Emitter {
	r.mu.Lock()
	defer r.mu.Unlock()

	inner, ok := r.conns[userID]
	if !ok {
		inner = make(map[string]*Emitter)
		r.conns[userID] = inner
	}
	inner[connID] = em
	return em
}

// FindAllByUser は指定ユーザーの全接続のスナップショットを返す。
// 返り値のマップは呼び出し側が自由に走査してよいコピー。
func (r *Registry) FindAllByUser(userID string) map[string]*Emitter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inner := r.conns[userID]
	out := make(map[string]*Emitter, len(inner))
	for connID, em := range inner {
		out[connID] = em
	}
	return out
}

// Remove は接続を削除する。存在しない接続IDの削除は何もしない。
func (r *Registry) Remove(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inner, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(inner, connID)
	if len(inner) == 0 {
		delete(r.conns, userID)
	}
}

// RemoveAllByUser は指定ユーザーの全接続を一括削除する。
func (r *Registry) RemoveAllByUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, userID)
}

// Len は登録されている接続の総数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, inner := range r.conns {
		n += len(inner)
	}
	return n
}
