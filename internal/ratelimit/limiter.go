// Package ratelimit は、クライアントIP単位のスライディングウィンドウ方式の
// 流入制御を提供します。
package ratelimit

import (
	"sync"
	"time"
)

// Limiter はIPごとのリクエストタイムスタンプを記録し、
// 直近のウィンドウ内のリクエスト数で許可を判定する
//
// 固定バケット方式と違い、ウィンドウ境界での瞬間的なバーストの
// 二重許可は起きない。記録は接続をまたいで共有されるため、
// すべての読み書きは単一のミューテックスで直列化する。
type Limiter struct {
	maxRequests int
	window      time.Duration

	mu       sync.Mutex
	requests map[string][]time.Time // IP -> ウィンドウ内のタイムスタンプ列
}

// New は新しいLimiterを作成する
func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// IsAllowed は指定IPからのリクエストを許可するかを判定する
//
// ウィンドウ外の古いタイムスタンプを破棄した上で、残数が上限未満なら
// 現在時刻を記録して許可する。判定と記録はロック内で一体で行い、
// 同一IPの並行リクエストが同じ空きを同時に観測することはない。
func (l *Limiter) IsAllowed(clientIP string) bool {
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	times := l.requests[clientIP]

	// ウィンドウ外のタイムスタンプを先頭から破棄する
	idx := 0
	for idx < len(times) && times[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		times = append(times[:0:0], times[idx:]...)
	}

	if len(times) < l.maxRequests {
		l.requests[clientIP] = append(times, now)
		return true
	}

	l.requests[clientIP] = times
	return false
}

// RequestCount は指定IPのウィンドウ内リクエスト数を返す
// 診断用の読み取り専用操作で、記録は変更しない
func (l *Limiter) RequestCount(clientIP string) int {
	cutoff := time.Now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, t := range l.requests[clientIP] {
		if !t.Before(cutoff) {
			count++
		}
	}
	return count
}
