package protocol

import (
	"fmt"
	"strings"
)

// versionPrefix はサポートするプロトコルのバージョントークンの接頭辞
const versionPrefix = "HTTP/"

// validMethods はリクエストラインとして受理するHTTPメソッド
// 実際に処理できるメソッドの判定はハンドラー側で行う
var validMethods = map[string]struct{}{
	"GET":     {},
	"POST":    {},
	"PUT":     {},
	"DELETE":  {},
	"HEAD":    {},
	"OPTIONS": {},
	"PATCH":   {},
}

// Parser はリクエストテキストをRequestに解析する
type Parser struct{}

// NewParser は新しいParserを作成する
func NewParser() *Parser {
	return &Parser{}
}

// Parse はReceiverが受信したテキストからリクエストラインを解析する
// 入出力はなく、同じ入力は常に同じ結果を返す
func (p *Parser) Parse(text string) (Request, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Request{}, fmt.Errorf("空のリクエストです")
	}

	// 最初の行だけがリクエストライン
	requestLine := trimmed
	if idx := strings.IndexAny(trimmed, "\r\n"); idx != -1 {
		requestLine = strings.TrimSpace(trimmed[:idx])
	}

	parts := strings.Fields(requestLine)
	if len(parts) != 3 {
		return Request{}, fmt.Errorf("リクエストラインの形式が不正です: %q", requestLine)
	}

	method, rawPath, version := parts[0], parts[1], parts[2]

	if _, ok := validMethods[strings.ToUpper(method)]; !ok {
		return Request{}, fmt.Errorf("サポートされないHTTPメソッドです: %s", method)
	}

	if !strings.HasPrefix(version, versionPrefix) {
		return Request{}, fmt.Errorf("HTTPバージョンが不正です: %s", version)
	}

	return Request{
		Method:  strings.ToUpper(method),
		Path:    normalizePath(rawPath),
		Version: version,
	}, nil
}

// normalizePath はリクエストパスを正規化する
// クエリ文字列を取り除き、先頭に / を強制する
func normalizePath(rawPath string) string {
	path := rawPath
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
