package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Pool は固定サイズのワーカープール
// 受け入れた接続を有限のキュー経由でワーカーに渡し、同時実行数を制限する
type Pool struct {
	size    int
	tasks   chan net.Conn
	handler func(net.Conn)
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewPool は新しいPoolを作成する
func NewPool(size, queueSize int, handler func(net.Conn), logger zerolog.Logger) *Pool {
	return &Pool{
		size:    size,
		tasks:   make(chan net.Conn, queueSize),
		handler: handler,
		logger:  logger,
	}
}

// Start はワーカーを起動する
func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// TrySubmit は接続をキューに投入する
// キューが満杯の場合はブロックせずに false を返す
func (p *Pool) TrySubmit(conn net.Conn) bool {
	select {
	case p.tasks <- conn:
		return true
	default:
		return false
	}
}

// Shutdown はキューを閉じ、ワーカーが処理中の接続を終えるまで待つ
// コンテキストの期限を過ぎた場合はエラーを返す
func (p *Pool) Shutdown(ctx context.Context) error {
	close(p.tasks)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ワーカープールのドレインがタイムアウトしました: %w", ctx.Err())
	}
}

// worker はキューから接続を取り出して処理する
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for conn := range p.tasks {
		p.run(id, conn)
	}
}

// run は1接続分の処理を実行する
// ハンドラーのパニックはこの接続だけに隔離し、ワーカーは生き続ける
func (p *Pool) run(id int, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Int("worker", id).
				Interface("panic", r).
				Msg("ハンドラーがパニックしました")
			conn.Close()
		}
	}()

	p.handler(conn)
}
