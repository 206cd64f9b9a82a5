// Package main はKuraサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"kura/internal/config"
	"kura/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		dir        = flag.String("dir", "", "配信するディレクトリ (デフォルト: public)")
		dirListing = flag.Bool("enable-dir-listing", false, "ディレクトリ一覧表示を有効化")
		workers    = flag.Int("workers", 0, "ワーカープールのサイズ (デフォルト: 10)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Kura")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// ベースディレクトリの指定は検証込みで読み込ませるため、
	// 環境変数に反映してから設定を読み込む
	if *dir != "" {
		os.Setenv("BASE_DIR", *dir)
	}
	if *dirListing {
		os.Setenv("ENABLE_DIR_LISTING", "true")
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("設定の読み込みに失敗しました")
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *workers != 0 {
		cfg.Server.Workers = *workers
	}

	logger := newLogger(cfg.Log.Level)

	// サーバーを作成
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("サーバーの作成に失敗しました")
	}

	// サーバーを起動
	logger.Info().Str("addr", cfg.ServerAddress()).Msg("Kura サーバーを起動します")
	if err := srv.Start(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("サーバーの起動に失敗しました")
	}
}

// newLogger はログレベルに応じたロガーを作成する
func newLogger(level string) zerolog.Logger {
	logLevel := zerolog.InfoLevel
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warning":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	case "none":
		logLevel = zerolog.Disabled
	}

	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	return zerolog.New(writer).Level(logLevel).With().Timestamp().Logger()
}
