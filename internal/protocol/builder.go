package protocol

import (
	"bytes"
	"fmt"
	"strconv"

	"kura/internal/static"
)

// Renderer はHTMLページの描画を担うコラボレーターのインターフェース
// Builderは描画の中身には関与せず、この契約だけに依存する
type Renderer interface {
	RenderError(statusCode int, statusText, message, serverName string) (string, error)
	RenderDirectory(path string, entries []static.Entry, serverName string) (string, error)
}

// Builder はHTTPレスポンスのワイヤーバイト列を組み立てる
type Builder struct {
	serverName string
	renderer   Renderer
}

// NewBuilder は新しいBuilderを作成する
func NewBuilder(serverName string, renderer Renderer) *Builder {
	return &Builder{
		serverName: serverName,
		renderer:   renderer,
	}
}

// Build はステータスライン、ヘッダー、ボディをシリアライズする
// Content-Length、Connection、Server は呼び出し側が設定していない場合のみ
// デフォルト値で補完する
func (b *Builder) Build(status int, header *Header, body []byte) []byte {
	merged := &Header{}
	if header != nil {
		merged = header.clone()
	}
	merged.SetDefault("Content-Length", strconv.Itoa(len(body)))
	merged.SetDefault("Connection", "close")
	merged.SetDefault("Server", b.serverName)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", status, StatusText(status))
	for _, f := range merged.fields {
		fmt.Fprintf(&buf, "%s: %s\r\n", f.name, f.value)
	}
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}

// Error は標準のHTMLエラーページ付きのレスポンスを組み立てる
// message が空の場合は理由句を本文に使う
// allowHeader が指定された場合は Allow ヘッダーを付与する（405用）
func (b *Builder) Error(status int, message, allowHeader string) []byte {
	reason := errorText(status)
	if message == "" {
		message = reason
	}

	html, err := b.renderer.RenderError(status, reason, message, b.serverName)
	if err != nil {
		// 描画に失敗してもエラーレスポンス自体は必ず返す
		html = fmt.Sprintf(
			"<html><head><title>%d %s</title></head><body><h1>%d %s</h1></body></html>",
			status, reason, status, reason)
	}

	header := &Header{}
	header.Set("Content-Type", "text/html; charset=utf-8")
	if allowHeader != "" {
		header.Set("Allow", allowHeader)
	}
	return b.Build(status, header, []byte(html))
}

// RenderDirectoryPage はディレクトリ一覧ページのHTMLを描画する
func (b *Builder) RenderDirectoryPage(path string, entries []static.Entry) (string, error) {
	return b.renderer.RenderDirectory(path, entries, b.serverName)
}
