package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// headerEnd はHTTPヘッダーブロックの終端を示す4バイト列
var headerEnd = []byte("\r\n\r\n")

// 受信段階で分類されるプロトコルエラー
var (
	// ErrHeadersTooLarge はヘッダーが上限バイト数を超えた場合のエラー
	ErrHeadersTooLarge = errors.New("リクエストヘッダーが大きすぎます")
	// ErrReceiveTimeout は接続の読み取りタイムアウトが発生した場合のエラー
	ErrReceiveTimeout = errors.New("リクエストの受信がタイムアウトしました")
)

// Receiver は接続からヘッダー終端までのリクエストバイトを受信する
type Receiver struct {
	maxHeaderBytes int
	chunkSize      int
}

// NewReceiver は新しいReceiverを作成する
func NewReceiver(maxHeaderBytes int) *Receiver {
	return &Receiver{
		maxHeaderBytes: maxHeaderBytes,
		chunkSize:      4096,
	}
}

// Receive はヘッダー終端が現れるか接続が閉じられるまで読み取り、
// 受信したバイト列をテキストとして返す
//
// 不正なバイト列はこの段階では置換するだけで、エラーにはしない。
// 内容の不備は後段のParserが検出する。
func (r *Receiver) Receive(conn net.Conn) (string, error) {
	data := make([]byte, 0, r.chunkSize)
	chunk := make([]byte, r.chunkSize)

	for !bytes.Contains(data, headerEnd) {
		n, err := conn.Read(chunk)
		if n > 0 {
			data = append(data, chunk[:n]...)
			if len(data) > r.maxHeaderBytes {
				return "", ErrHeadersTooLarge
			}
		}
		if err != nil {
			// 接続が閉じられたら、それまでに受信した分で打ち切る
			if errors.Is(err, io.EOF) {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return "", ErrReceiveTimeout
			}
			return "", fmt.Errorf("リクエストの受信に失敗: %w", err)
		}
	}

	return strings.ToValidUTF8(string(data), "�"), nil
}
