// Package config はサーバー全体の設定の読み込みと検証を担当します。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Static    StaticConfig    `yaml:"static"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig はソケットリスナーとワーカープールの設定
type ServerConfig struct {
	Host string `yaml:"host"`                            // リッスンするホスト
	Port int    `yaml:"port" validate:"min=0,max=65535"` // リッスンするポート番号（0は自動割り当て）

	Workers   int `yaml:"workers" validate:"min=1"`    // ワーカープールのサイズ
	QueueSize int `yaml:"queue_size" validate:"min=1"` // 接続待ちキューの長さ

	// タイムアウト設定
	ClientTimeout   time.Duration `yaml:"client_timeout"`   // クライアント接続の読み書きタイムアウト
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // シャットダウン時のドレイン待ち時間

	MaxHeaderBytes int `yaml:"max_header_bytes" validate:"min=1"` // リクエストヘッダーの上限バイト数
}

// StaticConfig は静的ファイル配信の設定
type StaticConfig struct {
	BaseDir       string   `yaml:"base_dir" validate:"required"`               // 配信対象のベースディレクトリ
	EnableListing bool     `yaml:"enable_listing"`                             // ディレクトリ一覧表示の有効化
	IndexFiles    []string `yaml:"index_files" validate:"min=1,dive,required"` // インデックスファイル名の候補
}

// RateLimitConfig はクライアントIP単位のレートリミット設定
type RateLimitConfig struct {
	MaxRequests int           `yaml:"max_requests" validate:"min=1"` // ウィンドウ内で許可するリクエスト数
	Window      time.Duration `yaml:"window"`                        // スライディングウィンドウの長さ
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warning error none"` // ログレベル
}

// Load は設定を読み込む
// デフォルト値を起点に、KURA_CONFIG で指定されたYAMLファイル、
// 環境変数の順に上書きする
func Load() (*Config, error) {
	// デフォルト設定を作成
	cfg := &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Workers:         10,
			QueueSize:       64,
			ClientTimeout:   5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxHeaderBytes:  64 * 1024,
		},
		Static: StaticConfig{
			BaseDir:       "public",
			EnableListing: true,
			IndexFiles:    []string{"index.html", "index.htm"},
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 5,
			Window:      time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	// YAMLファイルがあれば読み込む
	if path := os.Getenv("KURA_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}

	// 環境変数で上書き
	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// loadFile はYAMLファイルから設定を読み込む
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// applyEnv は環境変数による上書きを適用する
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Server.Workers = getEnvAsIntOrDefault("MAX_WORKERS", c.Server.Workers)
	c.Server.MaxHeaderBytes = getEnvAsIntOrDefault("MAX_HEADER_BYTES", c.Server.MaxHeaderBytes)
	c.Static.BaseDir = getEnvOrDefault("BASE_DIR", c.Static.BaseDir)
	c.Static.EnableListing = getEnvAsBoolOrDefault("ENABLE_DIR_LISTING", c.Static.EnableListing)
	c.RateLimit.MaxRequests = getEnvAsIntOrDefault("RATE_LIMIT_REQUESTS", c.RateLimit.MaxRequests)
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)

	// タイムアウトは秒単位の数値で受け取る
	if v := os.Getenv("CLIENT_TIMEOUT"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			c.Server.ClientTimeout = time.Duration(sec) * time.Second
		}
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		if sec, err := strconv.ParseFloat(v, 64); err == nil && sec > 0 {
			c.RateLimit.Window = time.Duration(sec * float64(time.Second))
		}
	}
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// 構造的な検証
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// タイムアウト設定の検証
	if c.Server.ClientTimeout <= 0 {
		return fmt.Errorf("クライアントタイムアウトが不正です: %v", c.Server.ClientTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("シャットダウンタイムアウトが不正です: %v", c.Server.ShutdownTimeout)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("レートリミットのウィンドウが不正です: %v", c.RateLimit.Window)
	}

	// ベースディレクトリの検証（存在・ディレクトリ・読み取り可能）
	info, err := os.Stat(c.Static.BaseDir)
	if err != nil {
		return fmt.Errorf("ベースディレクトリが存在しません: %s", c.Static.BaseDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("ベースディレクトリがディレクトリではありません: %s", c.Static.BaseDir)
	}
	if _, err := os.ReadDir(c.Static.BaseDir); err != nil {
		return fmt.Errorf("ベースディレクトリを読み取れません: %w", err)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault は環境変数を真偽値として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "enabled":
			return true
		case "false", "0", "no", "disabled":
			return false
		}
	}
	return defaultValue
}
