// Package static は、URLパスからサンドボックス化された
// ファイルシステムビューへの解決とディレクトリ一覧の生成を担当します。
package static

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TargetKind はパス解決の結果の種別
type TargetKind int

const (
	// TargetNotFound は対象が存在しないか、ベースディレクトリ外を指している
	TargetNotFound TargetKind = iota
	// TargetFile は通常のファイル
	TargetFile
	// TargetDirectory はディレクトリ
	TargetDirectory
)

// Target はパス解決の結果
// Path はベースディレクトリ内にあることが保証された正規化済みの絶対パス
type Target struct {
	Kind TargetKind
	Path string
}

// Service は安全なファイルパスの解決とコンテンツタイプの判定を行う
type Service struct {
	baseDir      string
	allowListing bool
	indexFiles   []string
}

// NewService は新しいServiceを作成する
// baseDir はこの時点で正規化され、以後の包含チェックの基準になる
func NewService(baseDir string, allowListing bool, indexFiles []string) (*Service, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("ベースディレクトリの正規化に失敗: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("ベースディレクトリの解決に失敗: %w", err)
	}
	info, err := os.Stat(canonical)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("ベースディレクトリが不正です: %s", baseDir)
	}
	return &Service{
		baseDir:      canonical,
		allowListing: allowListing,
		indexFiles:   indexFiles,
	}, nil
}

// BaseDir は正規化済みのベースディレクトリを返す
func (s *Service) BaseDir() string {
	return s.baseDir
}

// AllowListing はディレクトリ一覧表示が有効かどうかを返す
func (s *Service) AllowListing() bool {
	return s.allowListing
}

// Resolve はURLパスをファイルシステム上の対象に解決する
//
// 正規化した結果がベースディレクトリの外を指す場合（.. やシンボリック
// リンクによる脱出を含む）は、エラーではなく黙って NotFound を返す。
func (s *Service) Resolve(urlPath string) Target {
	relative := strings.TrimLeft(urlPath, "/")
	joined := filepath.Join(s.baseDir, relative)

	// シンボリックリンクを解決した上で包含を検証する
	canonical, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return Target{Kind: TargetNotFound}
	}
	if !s.contains(canonical) {
		return Target{Kind: TargetNotFound}
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return Target{Kind: TargetNotFound}
	}
	if info.Mode().IsRegular() {
		return Target{Kind: TargetFile, Path: canonical}
	}
	if info.IsDir() {
		return Target{Kind: TargetDirectory, Path: canonical}
	}

	// ソケットやデバイスファイルなどは配信対象にしない
	return Target{Kind: TargetNotFound}
}

// contains はパスがベースディレクトリ自身またはその子孫かどうかを返す
func (s *Service) contains(path string) bool {
	if path == s.baseDir {
		return true
	}
	return strings.HasPrefix(path, s.baseDir+string(os.PathSeparator))
}

// FindIndex はディレクトリ内のインデックスファイルを探す
func (s *Service) FindIndex(dir string) (string, bool) {
	for _, name := range s.indexFiles {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

// ReadFile はファイルの内容を読み込む
func (s *Service) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// contentTypes は拡張子からMIMEタイプへの静的な対応表
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".htm":   "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "application/javascript",
	".json":  "application/json",
	".xml":   "application/xml",
	".txt":   "text/plain; charset=utf-8",
	".md":    "text/markdown; charset=utf-8",
	".pdf":   "application/pdf",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".webp":  "image/webp",
	".mp3":   "audio/mpeg",
	".wav":   "audio/wav",
	".mp4":   "video/mp4",
	".avi":   "video/x-msvideo",
	".zip":   "application/zip",
	".tar":   "application/x-tar",
	".gz":    "application/gzip",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".wasm":  "application/wasm",
}

// ContentType は拡張子からMIMEタイプを判定する
// 未知の拡張子は application/octet-stream になる
func (s *Service) ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
