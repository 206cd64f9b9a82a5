package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"kura/internal/config"
	"kura/internal/protocol"
	"kura/internal/ratelimit"
	"kura/internal/static"
	"kura/internal/stats"
	"kura/internal/view"
)

// ServerName はレスポンスの Server ヘッダーに使う識別子
const ServerName = "Kura/1.0"

// Server は構成要素を束ね、受け入れループとライフサイクルを管理する
type Server struct {
	config    *config.Config
	listener  *Listener
	pool      *Pool
	handler   *Handler
	responses *protocol.Builder
	counter   *stats.Counter
	logger    zerolog.Logger
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	files, err := static.NewService(cfg.Static.BaseDir, cfg.Static.EnableListing, cfg.Static.IndexFiles)
	if err != nil {
		return nil, fmt.Errorf("静的ファイルサービスの作成に失敗: %w", err)
	}

	renderer, err := view.New()
	if err != nil {
		return nil, fmt.Errorf("テンプレートの初期化に失敗: %w", err)
	}

	responses := protocol.NewBuilder(ServerName, renderer)
	counter := stats.New()
	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	handler := NewHandler(
		protocol.NewReceiver(cfg.Server.MaxHeaderBytes),
		protocol.NewParser(),
		files,
		responses,
		limiter,
		counter,
		logger,
	)

	return &Server{
		config:    cfg,
		listener:  NewListener(cfg.ServerAddress(), cfg.Server.ClientTimeout),
		pool:      NewPool(cfg.Server.Workers, cfg.Server.QueueSize, handler.Handle, logger),
		handler:   handler,
		responses: responses,
		counter:   counter,
		logger:    logger,
	}, nil
}

// Addr はリッスン中のアドレスを返す
// ポート0で起動した場合の実ポート確認に使う
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start はサーバーを起動し、コンテキストのキャンセルかシグナルを受けるまで
// リクエストを処理し続ける
func (s *Server) Start(ctx context.Context) error {
	if err := s.listener.Start(); err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}

	s.pool.Start()

	s.logger.Info().
		Str("addr", s.listener.Addr().String()).
		Str("base_dir", s.config.Static.BaseDir).
		Bool("dir_listing", s.config.Static.EnableListing).
		Int("workers", s.config.Server.Workers).
		Msg("サーバーを起動しました")

	// 受け入れループを別ゴルーチンで回す
	acceptCtx, cancelAccept := context.WithCancel(ctx)
	defer cancelAccept()

	fatalCh := make(chan error, 1)
	var acceptWg sync.WaitGroup
	acceptWg.Add(1)
	go func() {
		defer acceptWg.Done()
		s.acceptLoop(acceptCtx, fatalCh)
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var fatalErr error
	select {
	case <-ctx.Done():
		s.logger.Info().Msg("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info().Str("signal", sig.String()).Msg("シグナルを受信しました")
	case fatalErr = <-fatalCh:
		s.logger.Error().Err(fatalErr).Msg("致命的なエラーが発生しました")
	}

	// 新しい接続の受け入れを止めてからドレインする
	cancelAccept()
	acceptWg.Wait()

	if err := s.shutdown(); err != nil {
		if fatalErr != nil {
			return fatalErr
		}
		return err
	}
	return fatalErr
}

// acceptLoop は接続を受け入れてワーカープールへ振り分ける
func (s *Server) acceptLoop(ctx context.Context, fatalCh chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			// ポーリングのタイムアウトは再試行するだけ
			if errors.Is(err, ErrAcceptTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			fatalCh <- fmt.Errorf("接続の受け入れに失敗: %w", err)
			return
		}

		if !s.pool.TrySubmit(conn) {
			// キューが満杯なら受け入れをブロックせず、混雑応答で断る
			s.logger.Warn().
				Str("client", conn.RemoteAddr().String()).
				Int("status", 503).
				Msg("ワーカーキューが満杯のため接続を拒否します")
			conn.Write(s.responses.Error(503, "Server is too busy", ""))
			conn.Close()
		}
	}
}

// shutdown は処理中の接続のドレインを待ってからソケットを解放する
func (s *Server) shutdown() error {
	s.logger.Info().Msg("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	drainErr := s.pool.Shutdown(ctx)

	// リスニングソケットはプールのドレイン後に閉じる
	closeErr := s.listener.Close()

	// 集計のスナップショットを最後に報告する
	snapshot := s.counter.Snapshot()
	var total int64
	for _, count := range snapshot {
		total += count
	}
	s.logger.Info().
		Int64("total_requests", total).
		Int("unique_paths", len(snapshot)).
		Msg("サーバーが正常にシャットダウンされました")

	if drainErr != nil {
		return drainErr
	}
	return closeErr
}
