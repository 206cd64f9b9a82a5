// Package main は、サーバーの動作確認用の素朴なHTTP GETクライアントです。
// 生のTCP接続の上でリクエストを1回送り、ボディをファイルに保存します。
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const defaultTimeout = 10 * time.Second

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	host, port, urlPath, dir, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n\n", err)
		printUsage()
		os.Exit(1)
	}

	if err := fetch(host, port, urlPath, dir); err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("使用方法:")
	fmt.Println("  fetch <url> [保存先ディレクトリ]")
	fmt.Println("  fetch <host> <port> <path> [保存先ディレクトリ]")
	fmt.Println()
	fmt.Println("例:")
	fmt.Println("  fetch http://localhost:8080/index.html")
	fmt.Println("  fetch localhost 8080 / downloads")
}

// parseArgs はURL形式とホスト/ポート/パス形式の両方を受け付ける
func parseArgs(args []string) (host string, port int, urlPath, dir string, err error) {
	dir = "downloads"

	// URL形式
	if len(args) <= 2 && strings.Contains(args[0], "/") {
		raw := args[0]
		if !strings.HasPrefix(raw, "http://") {
			raw = "http://" + raw
		}
		u, parseErr := url.Parse(raw)
		if parseErr != nil || u.Hostname() == "" {
			return "", 0, "", "", fmt.Errorf("URLが不正です: %s", args[0])
		}
		host = u.Hostname()
		port = 80
		if u.Port() != "" {
			port, _ = strconv.Atoi(u.Port())
		}
		urlPath = u.Path
		if urlPath == "" {
			urlPath = "/"
		}
		if len(args) == 2 {
			dir = args[1]
		}
		return host, port, urlPath, dir, nil
	}

	// ホスト/ポート/パス形式
	if len(args) == 3 || len(args) == 4 {
		host = args[0]
		port, err = strconv.Atoi(args[1])
		if err != nil || port < 1 || port > 65535 {
			return "", 0, "", "", fmt.Errorf("ポート番号が不正です: %s", args[1])
		}
		urlPath = args[2]
		if !strings.HasPrefix(urlPath, "/") {
			urlPath = "/" + urlPath
		}
		if len(args) == 4 {
			dir = args[3]
		}
		return host, port, urlPath, dir, nil
	}

	return "", 0, "", "", fmt.Errorf("引数の数が不正です")
}

// fetch はGETリクエストを送り、成功したらボディを保存する
func fetch(host string, port int, urlPath, dir string) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, defaultTimeout)
	if err != nil {
		return fmt.Errorf("接続に失敗: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(defaultTimeout))

	fmt.Printf("GET %s へリクエストを送信します (%s)\n", urlPath, addr)
	request := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", urlPath, host)
	if _, err := conn.Write([]byte(request)); err != nil {
		return fmt.Errorf("リクエストの送信に失敗: %w", err)
	}

	reader := bufio.NewReader(conn)

	// ステータスライン
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("ステータスラインの読み取りに失敗: %w", err)
	}
	statusLine = strings.TrimSpace(statusLine)
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return fmt.Errorf("ステータスラインが不正です: %s", statusLine)
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("ステータスコードが不正です: %s", parts[1])
	}

	// ヘッダーは空行まで読み飛ばす
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("ヘッダーの読み取りに失敗: %w", err)
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}

	// Connection: close 前提なのでボディはEOFまで読む
	body, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("ボディの読み取りに失敗: %w", err)
	}
	elapsed := time.Since(start)

	if status != 200 {
		fmt.Printf("サーバーがエラーを返しました: %s\n", statusLine)
		return fmt.Errorf("ステータスコード %d", status)
	}

	// 保存先のファイル名を決める
	name := path.Base(urlPath)
	if name == "/" || name == "." || name == "" {
		name = "index.html"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("保存先ディレクトリの作成に失敗: %w", err)
	}
	dest := filepath.Join(dir, name)
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return fmt.Errorf("ファイルの保存に失敗: %w", err)
	}

	fmt.Printf("%s に保存しました (%s, %s)\n",
		dest, humanize.IBytes(uint64(len(body))), elapsed.Round(time.Millisecond))
	return nil
}
