// Package stats は、パスごとのリクエスト数の集計を提供します。
package stats

import "sync"

// Counter は正規化済みURLパスごとのリクエスト数を数える
// すべてのワーカーから共有され、ミューテックスで保護される
type Counter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// New は新しいCounterを作成する
func New() *Counter {
	return &Counter{
		counts: make(map[string]int64),
	}
}

// Increment はパスのカウントを1増やし、更新後の値を返す
func (c *Counter) Increment(path string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[path]++
	return c.counts[path]
}

// Get はパスの現在のカウントを返す
// 未アクセスのパスは0を返す
func (c *Counter) Get(path string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counts[path]
}

// Snapshot は全カウントのその時点のコピーを返す
// 返されたマップを変更しても内部状態には影響しない
func (c *Counter) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make(map[string]int64, len(c.counts))
	for path, count := range c.counts {
		snapshot[path] = count
	}
	return snapshot
}
