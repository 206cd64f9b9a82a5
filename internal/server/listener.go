package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// acceptPollInterval は accept のポーリング間隔
// この間隔ごとに呼び出し側がシャットダウン要求を確認できる
const acceptPollInterval = time.Second

// ErrAcceptTimeout は accept がポーリング間隔内に接続を得られなかったことを示す
// 呼び出し側は再試行すればよい
var ErrAcceptTimeout = errors.New("accept がタイムアウトしました")

// Listener はリスニングソケットを所有し、タイムアウト付きで接続を受け入れる
type Listener struct {
	addr          string
	clientTimeout time.Duration

	mu sync.Mutex
	ln *net.TCPListener
}

// NewListener は新しいListenerを作成する
func NewListener(addr string, clientTimeout time.Duration) *Listener {
	return &Listener{
		addr:          addr,
		clientTimeout: clientTimeout,
	}
}

// Start はアドレスをバインドしてリッスンを開始する
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("リスナーの起動に失敗: %w", err)
	}

	l.mu.Lock()
	l.ln = ln.(*net.TCPListener)
	l.mu.Unlock()
	return nil
}

// Addr はリッスン中のアドレスを返す
// 起動前は nil を返す
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Accept はポーリング間隔を上限に接続を待ち受ける
//
// 間隔内に接続がなければ ErrAcceptTimeout を返す。受け入れた接続には
// 返す前にクライアント用の読み書きデッドラインを設定する。
func (l *Listener) Accept() (net.Conn, error) {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return nil, fmt.Errorf("リスナーが起動していません")
	}

	if err := ln.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
		return nil, fmt.Errorf("accept デッドラインの設定に失敗: %w", err)
	}

	conn, err := ln.Accept()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrAcceptTimeout
		}
		return nil, err
	}

	if err := conn.SetDeadline(time.Now().Add(l.clientTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("接続デッドラインの設定に失敗: %w", err)
	}
	return conn, nil
}

// Close はリスニングソケットを解放する
// 複数回呼んでも安全
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	err := l.ln.Close()
	l.ln = nil
	return err
}
