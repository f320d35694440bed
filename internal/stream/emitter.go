package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/willu/notify/pkg/event"
)

var (
	// ErrEmitterClosed はクローズ済みのEmitterへのPushで返される。
	ErrEmitterClosed = errors.New("emitterはクローズ済み")
	// ErrPushTimeout はバッファ満杯のままPushがタイムアウトした場合に返される。
	ErrPushTimeout = errors.New("pushがタイムアウトした")
)

// Envelope はストリームに書き込む1件のイベントを表す。
type Envelope struct {
	// ID はワイヤー上のイベントID。クライアントが再接続時にLast-Event-IDとして返す。
	ID string
	// Data は配信する通知ペイロード。
	Data event.Notification
}

// Emitter は1本のSSE接続に対するストリームハンドル。
//
// Pushされたイベントはバッファ付きチャネルに積まれ、トランスポート層の
// 書き込みループが取り出して送信する。完了・タイムアウト・書き込み失敗の
// いずれかで終端状態に遷移し、以後のPushは失敗する。終端遷移は一度だけ
// 発生し、どの経路から何度呼ばれても安全。
type Emitter struct {
	// id はこのEmitterの接続ID。
	id string
	// events はPushされたイベントを書き込みループへ渡すチャネル。
	events chan Envelope
	// done は終端遷移時にクローズされるチャネル。
	done chan struct{}
	// idleTimeout はイベントが1件も流れない場合に接続を切るまでの時間。
	idleTimeout time.Duration
	// pushTimeout はバッファ満杯時にPushを諦めるまでの時間。
	pushTimeout time.Duration
	// terminal は終端遷移を一度だけ実行するためのガード。
	terminal sync.Once
	// mu はコールバックへの並行アクセスを保護するミューテックス。
	mu sync.Mutex
	// completionFn は完了時（正常クローズ・書き込み失敗）のコールバック。
	completionFn func()
	// timeoutFn はアイドルタイムアウト時のコールバック。
	timeoutFn func()
}

// NewEmitter は新しいストリームハンドルを生成する。
// bufferにはハンドシェイクとバックログ再送を書き込みループ開始前に
// 積めるだけの容量を指定する。
func NewEmitter(id string, buffer int, idleTimeout, pushTimeout time.Duration) *Emitter {
	if buffer < 1 {
		buffer = 1
	}
	return &Emitter{
		id:          id,
		events:      make(chan Envelope, buffer),
		done:        make(chan struct{}),
		idleTimeout: idleTimeout,
		pushTimeout: pushTimeout,
	}
}

// ID は接続IDを返す。
func (e *Emitter) ID() string { return e.id }

// Events は書き込みループが読み取るイベントチャネルを返す。
func (e *Emitter) Events() <-chan Envelope { return e.events }

// Done は終端遷移時にクローズされるチャネルを返す。
func (e *Emitter) Done() <-chan struct{} { return e.done }

// IdleTimeout はアイドルタイムアウト時間を返す。
func (e *Emitter) IdleTimeout() time.Duration { return e.idleTimeout }

// OnCompletion は完了時のコールバックを登録する。
func (e *Emitter) OnCompletion(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completionFn = fn
}

// OnTimeout はアイドルタイムアウト時のコールバックを登録する。
func (e *Emitter) OnTimeout(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeoutFn = fn
}

// Push はイベントをストリームに書き込む。
// クローズ済みならErrEmitterClosed、pushTimeout以内にバッファへ積めなければ
// ErrPushTimeoutを返す。受信側が詰まっていてもファンアウト全体は停止しない。
func (e *Emitter) Push(eventID string, data event.Notification) error {
	select {
	case <-e.done:
		return ErrEmitterClosed
	default:
	}

	timer := time.NewTimer(e.pushTimeout)
	defer timer.Stop()

	select {
	case e.events <- Envelope{ID: eventID, Data: data}:
		return nil
	case <-e.done:
		return ErrEmitterClosed
	case <-timer.C:
		return ErrPushTimeout
	}
}

// Complete は正常クローズまたは書き込み失敗による終端遷移を実行する。
// 初回の呼び出しのみ完了コールバックを起動する。何度呼んでも安全。
func (e *Emitter) Complete() {
	e.terminal.Do(func() {
		close(e.done)
		e.mu.Lock()
		fn := e.completionFn
		e.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

// Expire はアイドルタイムアウトによる終端遷移を実行する。
// 初回の呼び出しのみタイムアウトコールバックを起動する。何度呼んでも安全。
func (e *Emitter) Expire() {
	e.terminal.Do(func() {
		close(e.done)
		e.mu.Lock()
		fn := e.timeoutFn
		e.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}
