package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kura/internal/config"
)

// newBaseDir はE2Eテスト用のファイルツリーを作成する
//
// 構成:
//
//	base/
//	  hello.txt
//	  sub/
//	    a.txt
//	  withindex/
//	    index.html
func newBaseDir(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	files := map[string]string{
		"hello.txt":            "hello world",
		"sub/a.txt":            "alpha",
		"withindex/index.html": "<html>welcome</html>",
	}
	for name, content := range files {
		path := filepath.Join(base, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("ディレクトリの作成に失敗しました: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("ファイルの作成に失敗しました: %v", err)
		}
	}
	return base
}

// newTestConfig はポート0で待ち受けるテスト用の設定を返す
func newTestConfig(baseDir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			Workers:         4,
			QueueSize:       16,
			ClientTimeout:   2 * time.Second,
			ShutdownTimeout: 2 * time.Second,
			MaxHeaderBytes:  64 * 1024,
		},
		Static: config.StaticConfig{
			BaseDir:       baseDir,
			EnableListing: true,
			IndexFiles:    []string{"index.html", "index.htm"},
		},
		RateLimit: config.RateLimitConfig{
			MaxRequests: 1000,
			Window:      time.Second,
		},
		Log: config.LogConfig{Level: "none"},
	}
}

// startServer はサーバーを起動し、待ち受けアドレスを返す
// テスト終了時に自動で停止する
func startServer(t *testing.T, cfg *config.Config) string {
	t.Helper()

	srv, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("サーバーの作成に失敗しました: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("サーバーの停止に失敗しました: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("サーバーが時間内に停止しませんでした")
		}
	})

	// リスナーが起動するまで待つ
	deadline := time.Now().Add(3 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("サーバーが時間内に起動しませんでした")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return srv.Addr().String()
}

// response は生のHTTPレスポンスを分解したもの
type response struct {
	Status  int
	Headers map[string]string
	Body    string
}

// doRaw は生のバイト列を送信してレスポンス全体を読み取る
func doRaw(t *testing.T, addr, raw string) response {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("接続に失敗しました: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("リクエストの送信に失敗しました: %v", err)
	}

	// サーバーは応答後に必ず接続を閉じる
	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("レスポンスの読み取りに失敗しました: %v", err)
	}

	head, body, found := strings.Cut(string(data), "\r\n\r\n")
	if !found {
		t.Fatalf("レスポンスの形式が不正です: %q", string(data))
	}

	lines := strings.Split(head, "\r\n")
	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 2 {
		t.Fatalf("ステータス行の形式が不正です: %q", lines[0])
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		t.Fatalf("ステータスコードの解析に失敗しました: %v", err)
	}

	headers := make(map[string]string)
	for _, line := range lines[1:] {
		if name, value, ok := strings.Cut(line, ": "); ok {
			headers[strings.ToLower(name)] = value
		}
	}
	return response{Status: status, Headers: headers, Body: body}
}

// doGet はGETリクエストを送信する
func doGet(t *testing.T, addr, path string) response {
	t.Helper()
	return doRaw(t, addr, fmt.Sprintf("GET %s HTTP/1.1\r\nHost: test\r\n\r\n", path))
}

// TestServerServeFile は静的ファイルの配信をテストする
func TestServerServeFile(t *testing.T) {
	addr := startServer(t, newTestConfig(newBaseDir(t)))

	resp := doGet(t, addr, "/hello.txt")
	if resp.Status != 200 {
		t.Fatalf("ステータスコードが一致しません: got %d, want 200", resp.Status)
	}
	if resp.Body != "hello world" {
		t.Errorf("ボディが一致しません: got %q", resp.Body)
	}
	if got := resp.Headers["content-type"]; got != "text/plain; charset=utf-8" {
		t.Errorf("Content-Typeが一致しません: got %q", got)
	}
	if got := resp.Headers["content-length"]; got != "11" {
		t.Errorf("Content-Lengthが一致しません: got %q", got)
	}
	if got := resp.Headers["connection"]; got != "close" {
		t.Errorf("Connectionヘッダーが一致しません: got %q", got)
	}
	if got := resp.Headers["server"]; got != ServerName {
		t.Errorf("Serverヘッダーが一致しません: got %q", got)
	}
}

// TestServerHead はHEADリクエストでボディが省略されることをテストする
func TestServerHead(t *testing.T) {
	addr := startServer(t, newTestConfig(newBaseDir(t)))

	resp := doRaw(t, addr, "HEAD /hello.txt HTTP/1.1\r\nHost: test\r\n\r\n")
	if resp.Status != 200 {
		t.Fatalf("ステータスコードが一致しません: got %d, want 200", resp.Status)
	}
	if resp.Body != "" {
		t.Errorf("HEADレスポンスにボディが含まれています: %q", resp.Body)
	}
	// Content-Lengthは本来のサイズを示す
	if got := resp.Headers["content-length"]; got != "11" {
		t.Errorf("Content-Lengthが一致しません: got %q", got)
	}
}

// TestServerNotFound は存在しないパスへの404応答をテストする
func TestServerNotFound(t *testing.T) {
	addr := startServer(t, newTestConfig(newBaseDir(t)))

	resp := doGet(t, addr, "/missing.xyz")
	if resp.Status != 404 {
		t.Fatalf("ステータスコードが一致しません: got %d, want 404", resp.Status)
	}
	if !strings.Contains(resp.Body, "404") {
		t.Error("エラーページにステータスコードが含まれていません")
	}
}

// TestServerTraversalDenied はパストラバーサルが404として拒否されることをテストする
func TestServerTraversalDenied(t *testing.T) {
	addr := startServer(t, newTestConfig(newBaseDir(t)))

	resp := doGet(t, addr, "/../../etc/passwd")
	if resp.Status != 404 {
		t.Errorf("ステータスコードが一致しません: got %d, want 404", resp.Status)
	}
}

// TestServerMethodNotAllowed はGET/HEAD以外のメソッドへの405応答をテストする
func TestServerMethodNotAllowed(t *testing.T) {
	addr := startServer(t, newTestConfig(newBaseDir(t)))

	resp := doRaw(t, addr, "POST /hello.txt HTTP/1.1\r\nHost: test\r\n\r\n")
	if resp.Status != 405 {
		t.Fatalf("ステータスコードが一致しません: got %d, want 405", resp.Status)
	}
	if got := resp.Headers["allow"]; got != "GET, HEAD" {
		t.Errorf("Allowヘッダーが一致しません: got %q", got)
	}
}

// TestServerBadRequest は不正なリクエストへの400応答をテストする
func TestServerBadRequest(t *testing.T) {
	addr := startServer(t, newTestConfig(newBaseDir(t)))

	resp := doRaw(t, addr, "NOT A VALID REQUEST LINE EXTRA\r\n\r\n")
	if resp.Status != 400 {
		t.Errorf("ステータスコードが一致しません: got %d, want 400", resp.Status)
	}
}

// TestServerDirectoryRedirect は末尾スラッシュなしのディレクトリへの308応答をテストする
func TestServerDirectoryRedirect(t *testing.T) {
	addr := startServer(t, newTestConfig(newBaseDir(t)))

	resp := doGet(t, addr, "/sub")
	if resp.Status != 308 {
		t.Fatalf("ステータスコードが一致しません: got %d, want 308", resp.Status)
	}
	if got := resp.Headers["location"]; got != "/sub/" {
		t.Errorf("Locationヘッダーが一致しません: got %q", got)
	}
	if got := resp.Headers["content-length"]; got != "0" {
		t.Errorf("Content-Lengthが一致しません: got %q", got)
	}
}

// TestServerDirectoryIndex はインデックスファイルの自動配信をテストする
func TestServerDirectoryIndex(t *testing.T) {
	addr := startServer(t, newTestConfig(newBaseDir(t)))

	resp := doGet(t, addr, "/withindex/")
	if resp.Status != 200 {
		t.Fatalf("ステータスコードが一致しません: got %d, want 200", resp.Status)
	}
	if resp.Body != "<html>welcome</html>" {
		t.Errorf("ボディが一致しません: got %q", resp.Body)
	}
	if got := resp.Headers["content-type"]; got != "text/html; charset=utf-8" {
		t.Errorf("Content-Typeが一致しません: got %q", got)
	}
}

// TestServerDirectoryListing はディレクトリ一覧の生成とリクエスト数の表示をテストする
func TestServerDirectoryListing(t *testing.T) {
	addr := startServer(t, newTestConfig(newBaseDir(t)))

	// 一覧に表示されるリクエスト数を積み上げる
	doGet(t, addr, "/sub/a.txt")
	doGet(t, addr, "/sub/a.txt")

	resp := doGet(t, addr, "/sub/")
	if resp.Status != 200 {
		t.Fatalf("ステータスコードが一致しません: got %d, want 200", resp.Status)
	}
	if !strings.Contains(resp.Body, "Index of /sub/") {
		t.Error("一覧ページに見出しが含まれていません")
	}
	if !strings.Contains(resp.Body, "a.txt") {
		t.Error("一覧ページにファイル名が含まれていません")
	}
	if !strings.Contains(resp.Body, `class="requests">2</td>`) {
		t.Error("一覧ページにリクエスト数が反映されていません")
	}
}

// TestServerEmptyRootListing は空のベースディレクトリの一覧表示をテストする
func TestServerEmptyRootListing(t *testing.T) {
	addr := startServer(t, newTestConfig(t.TempDir()))

	resp := doGet(t, addr, "/")
	if resp.Status != 200 {
		t.Fatalf("ステータスコードが一致しません: got %d, want 200", resp.Status)
	}
	if !strings.Contains(resp.Body, "0 items") {
		t.Error("一覧ページにアイテム数が含まれていません")
	}
	if !strings.Contains(resp.Body, "Empty directory") {
		t.Error("一覧ページに空ディレクトリの表記が含まれていません")
	}
}

// TestServerListingDisabled は一覧表示が無効な場合の403応答をテストする
func TestServerListingDisabled(t *testing.T) {
	cfg := newTestConfig(newBaseDir(t))
	cfg.Static.EnableListing = false
	addr := startServer(t, cfg)

	resp := doGet(t, addr, "/sub/")
	if resp.Status != 403 {
		t.Fatalf("ステータスコードが一致しません: got %d, want 403", resp.Status)
	}

	// インデックスファイルがあるディレクトリは引き続き配信される
	resp = doGet(t, addr, "/withindex/")
	if resp.Status != 200 {
		t.Errorf("インデックス配信のステータスコードが一致しません: got %d, want 200", resp.Status)
	}
}

// TestServerRateLimit は上限超過時の429応答をテストする
func TestServerRateLimit(t *testing.T) {
	cfg := newTestConfig(newBaseDir(t))
	cfg.RateLimit.MaxRequests = 2
	cfg.RateLimit.Window = time.Minute
	addr := startServer(t, cfg)

	for i := 0; i < 2; i++ {
		resp := doGet(t, addr, "/hello.txt")
		if resp.Status != 200 {
			t.Fatalf("%d回目のステータスコードが一致しません: got %d, want 200", i+1, resp.Status)
		}
	}

	resp := doGet(t, addr, "/hello.txt")
	if resp.Status != 429 {
		t.Fatalf("ステータスコードが一致しません: got %d, want 429", resp.Status)
	}
	if !strings.Contains(resp.Body, "429") {
		t.Error("エラーページにステータスコードが含まれていません")
	}
}

// TestServerLifecycle はコンテキストのキャンセルによる正常停止をテストする
func TestServerLifecycle(t *testing.T) {
	srv, err := New(newTestConfig(newBaseDir(t)), zerolog.Nop())
	if err != nil {
		t.Fatalf("サーバーの作成に失敗しました: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("サーバーが時間内に起動しませんでした")
		}
		time.Sleep(10 * time.Millisecond)
	}
	addr := srv.Addr().String()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("停止時にエラーが返されました: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("サーバーが時間内に停止しませんでした")
	}

	// 停止後は接続できない
	if conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		conn.Close()
		t.Error("停止後も接続を受け付けています")
	}
}
