package static

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// エントリ種別
const (
	KindFile      = "file"
	KindDirectory = "directory"
)

// Entry はディレクトリ一覧の1項目
// 一覧リクエストのたびに計算し直され、キャッシュされない
type Entry struct {
	Name          string // 表示名
	Kind          string // KindFile または KindDirectory
	Size          int64  // バイト数（ディレクトリは0）
	SizeFormatted string // 人間向けのサイズ表記（ディレクトリは "-"）
	Modified      string // 最終更新時刻の表記
	Path          string // リンク先のURLパス
	RequestCount  int64  // このパスへのリクエスト数
}

// modifiedFormat は更新時刻の表示フォーマット
const modifiedFormat = "2006-01-02 15:04:05"

// ListDirectory はディレクトリの内容を一覧用に列挙する
//
// ディレクトリを先に、その後は名前の大文字小文字を無視した順に並べる。
// ドットファイルは除外し、ベースディレクトリ以外では親への .. 項目を
// 先頭に合成する。読み取れない項目は黙ってスキップする。
func (s *Service) ListDirectory(dir string) []Entry {
	entries := make([]Entry, 0, 16)

	// 親ディレクトリへのナビゲーション項目
	if rel, err := filepath.Rel(s.baseDir, dir); err == nil && rel != "." {
		parent := "/" + filepath.ToSlash(filepath.Dir(rel))
		if parent == "/." {
			parent = "/"
		}
		entries = append(entries, Entry{
			Name:          "..",
			Kind:          KindDirectory,
			SizeFormatted: "-",
			Modified:      "-",
			Path:          parent,
		})
	}

	items, err := os.ReadDir(dir)
	if err != nil {
		// 権限エラーなどは空の一覧として扱う
		return entries
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].IsDir() != items[j].IsDir() {
			return items[i].IsDir()
		}
		return strings.ToLower(items[i].Name()) < strings.ToLower(items[j].Name())
	})

	for _, item := range items {
		if strings.HasPrefix(item.Name(), ".") {
			continue
		}

		rel, err := filepath.Rel(s.baseDir, filepath.Join(dir, item.Name()))
		if err != nil {
			continue
		}
		urlPath := "/" + filepath.ToSlash(rel)
		if item.IsDir() {
			urlPath += "/"
		}

		info, err := item.Info()
		if err != nil {
			continue
		}

		entry := Entry{
			Name:     item.Name(),
			Modified: info.ModTime().Format(modifiedFormat),
			Path:     urlPath,
		}
		if item.IsDir() {
			entry.Kind = KindDirectory
			entry.SizeFormatted = "-"
		} else {
			entry.Kind = KindFile
			entry.Size = info.Size()
			entry.SizeFormatted = FormatFileSize(info.Size())
		}
		entries = append(entries, entry)
	}

	return entries
}

// FormatFileSize はバイト数を人間向けの表記に変換する
// 1024 を基数に小数1桁で丸める
func FormatFileSize(size int64) string {
	value := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if value < 1024.0 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024.0
	}
	return fmt.Sprintf("%.1f PB", value)
}
