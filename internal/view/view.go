// Package view は、エラーページとディレクトリ一覧ページのHTML描画を担当します。
package view

import (
	"embed"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"kura/internal/static"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer は埋め込みテンプレートからHTMLページを描画する
type Renderer struct {
	errorTmpl     *template.Template
	directoryTmpl *template.Template
}

// New は新しいRendererを作成する
func New() (*Renderer, error) {
	errorTmpl, err := template.ParseFS(templateFS, "templates/error.html")
	if err != nil {
		return nil, fmt.Errorf("エラーテンプレートの読み込みに失敗: %w", err)
	}
	directoryTmpl, err := template.ParseFS(templateFS, "templates/directory.html")
	if err != nil {
		return nil, fmt.Errorf("一覧テンプレートの読み込みに失敗: %w", err)
	}
	return &Renderer{
		errorTmpl:     errorTmpl,
		directoryTmpl: directoryTmpl,
	}, nil
}

// errorData はエラーページのテンプレートデータ
type errorData struct {
	StatusCode int
	StatusText string
	Message    string
	ServerName string
}

// RenderError はエラーページを描画する
func (r *Renderer) RenderError(statusCode int, statusText, message, serverName string) (string, error) {
	var sb strings.Builder
	err := r.errorTmpl.Execute(&sb, errorData{
		StatusCode: statusCode,
		StatusText: statusText,
		Message:    message,
		ServerName: serverName,
	})
	if err != nil {
		return "", fmt.Errorf("エラーページの描画に失敗: %w", err)
	}
	return sb.String(), nil
}

// crumb はパンくずリストの1要素
type crumb struct {
	Name string
	Path string
}

// entryView は一覧テーブルの1行分の表示データ
type entryView struct {
	static.Entry
	Icon string
}

// directoryData はディレクトリ一覧ページのテンプレートデータ
type directoryData struct {
	Path        string
	Breadcrumbs []crumb
	Entries     []entryView
	Count       int
	ServerName  string
}

// RenderDirectory はディレクトリ一覧ページを描画する
func (r *Renderer) RenderDirectory(path string, entries []static.Entry, serverName string) (string, error) {
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{Entry: e, Icon: iconFor(e)})
	}

	var sb strings.Builder
	err := r.directoryTmpl.Execute(&sb, directoryData{
		Path:        path,
		Breadcrumbs: breadcrumbs(path),
		Entries:     views,
		Count:       len(entries),
		ServerName:  serverName,
	})
	if err != nil {
		return "", fmt.Errorf("ディレクトリ一覧の描画に失敗: %w", err)
	}
	return sb.String(), nil
}

// breadcrumbs はURLパスからパンくずリストを生成する
func breadcrumbs(path string) []crumb {
	crumbs := []crumb{{Name: "Home", Path: "/"}}
	current := ""
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		crumbs = append(crumbs, crumb{Name: part, Path: current})
	}
	return crumbs
}

// fileIcons は拡張子ごとの表示アイコン
var fileIcons = map[string]string{
	".html": "📄",
	".htm":  "📄",
	".css":  "🎨",
	".js":   "📜",
	".json": "📋",
	".xml":  "📋",
	".txt":  "📝",
	".md":   "📝",
	".pdf":  "📕",
	".png":  "🖼️",
	".jpg":  "🖼️",
	".jpeg": "🖼️",
	".gif":  "🖼️",
	".svg":  "🖼️",
	".mp3":  "🎵",
	".wav":  "🎵",
	".mp4":  "🎬",
	".avi":  "🎬",
	".zip":  "📦",
	".tar":  "📦",
	".gz":   "📦",
	".go":   "📘",
	".py":   "🐍",
}

// iconFor はエントリの表示アイコンを返す
func iconFor(e static.Entry) string {
	if e.Kind == static.KindDirectory {
		return "📁"
	}
	if icon, ok := fileIcons[strings.ToLower(filepath.Ext(e.Name))]; ok {
		return icon
	}
	return "📄"
}
