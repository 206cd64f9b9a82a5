package server

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kura/internal/protocol"
	"kura/internal/ratelimit"
	"kura/internal/static"
	"kura/internal/stats"
)

// allowedMethods はこのサーバーが処理できるメソッドの Allow ヘッダー表記
const allowedMethods = "GET, HEAD"

// Handler は1つのクライアント接続の処理を統括する
//
// レートリミット確認 → 受信 → 解析 → ルーティング → 応答の順で進み、
// 最初の失敗で打ち切る。障害の種類からステータスコードへの対応付けは
// すべてここで行い、どの経路でも接続は必ずクローズする。
type Handler struct {
	receiver  *protocol.Receiver
	parser    *protocol.Parser
	files     *static.Service
	responses *protocol.Builder
	limiter   *ratelimit.Limiter
	counter   *stats.Counter
	logger    zerolog.Logger
}

// NewHandler は新しいHandlerを作成する
func NewHandler(
	receiver *protocol.Receiver,
	parser *protocol.Parser,
	files *static.Service,
	responses *protocol.Builder,
	limiter *ratelimit.Limiter,
	counter *stats.Counter,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		receiver:  receiver,
		parser:    parser,
		files:     files,
		responses: responses,
		limiter:   limiter,
		counter:   counter,
		logger:    logger,
	}
}

// Handle は接続を受け取り、1リクエストを処理して接続を閉じる
func (h *Handler) Handle(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log := h.logger.With().
		Str("conn", uuid.NewString()).
		Str("client", remote).
		Logger()

	clientIP := remote
	if host, _, err := net.SplitHostPort(remote); err == nil {
		clientIP = host
	}

	// 他のどの処理よりも先にレートリミットを確認する
	if !h.limiter.IsAllowed(clientIP) {
		log.Warn().
			Int("status", 429).
			Int("window_count", h.limiter.RequestCount(clientIP)).
			Msg("レートリミットを超過しました")
		h.send(conn, log, h.responses.Error(429, "", ""))
		return
	}

	text, err := h.receiver.Receive(conn)
	if err != nil {
		// プロトコル起因の失敗だけが400になる
		// 接続レベルの失敗は応答を試みずに打ち切る
		if errors.Is(err, protocol.ErrHeadersTooLarge) || errors.Is(err, protocol.ErrReceiveTimeout) {
			log.Error().Err(err).Int("status", 400).Msg("リクエストの受信に失敗しました")
			h.send(conn, log, h.responses.Error(400, "", ""))
			return
		}
		log.Warn().Err(err).Msg("接続レベルの障害が発生しました")
		return
	}

	req, err := h.parser.Parse(text)
	if err != nil {
		log.Error().Err(err).
			Int("status", 400).
			Str("raw", firstLine(text)).
			Msg("リクエストの解析に失敗しました")
		h.send(conn, log, h.responses.Error(400, "", ""))
		return
	}

	log = log.With().
		Str("method", req.Method).
		Str("path", req.Path).
		Str("version", req.Version).
		Logger()

	// ルーティングの前に、解析に成功したパスを数える
	count := h.counter.Increment(req.Path)
	log.Debug().Int64("count", count).Msg("リクエストを受理しました")

	if req.Method != "GET" && req.Method != "HEAD" {
		log.Warn().Int("status", 405).Msg("処理できないメソッドです")
		h.send(conn, log, h.responses.Error(405, "", allowedMethods))
		return
	}

	target := h.files.Resolve(req.Path)
	switch target.Kind {
	case static.TargetFile:
		h.serveFile(conn, log, req, target.Path, "")

	case static.TargetDirectory:
		h.serveDirectory(conn, log, req, target.Path)

	case static.TargetNotFound:
		log.Warn().Int("status", 404).Msg("ファイルが見つかりません")
		h.send(conn, log, h.responses.Error(404, "", ""))

	default:
		log.Warn().Int("status", 404).Msg("配信できない対象です")
		h.send(conn, log, h.responses.Error(404, "", ""))
	}
}

// serveDirectory はディレクトリ対象のリクエストを処理する
func (h *Handler) serveDirectory(conn net.Conn, log zerolog.Logger, req protocol.Request, dir string) {
	// 末尾スラッシュのないディレクトリURLは、インデックスの有無を
	// 確認する前に正規形へリダイレクトする
	if !strings.HasSuffix(req.Path, "/") && req.Path != "/" {
		redirect := req.Path + "/"
		header := &protocol.Header{}
		header.Set("Location", redirect)
		header.Set("Content-Length", "0")
		log.Info().Int("status", 308).Str("location", redirect).Msg("ディレクトリの正規URLへリダイレクトします")
		h.send(conn, log, h.responses.Build(308, header, nil))
		return
	}

	// インデックスファイルがあればそれを配信する
	if index, ok := h.files.FindIndex(dir); ok {
		h.serveFile(conn, log, req, index, "index")
		return
	}

	if !h.files.AllowListing() {
		log.Warn().Int("status", 403).Msg("ディレクトリ一覧表示は無効です")
		h.send(conn, log, h.responses.Error(403, "Directory listing is disabled", ""))
		return
	}

	entries := h.files.ListDirectory(dir)
	for i := range entries {
		entries[i].RequestCount = h.counter.Get(entries[i].Path)
	}

	html, err := h.responses.RenderDirectoryPage(req.Path, entries)
	if err != nil {
		log.Error().Err(err).Int("status", 500).Msg("ディレクトリ一覧の生成に失敗しました")
		h.send(conn, log, h.responses.Error(500, "", ""))
		return
	}

	header := &protocol.Header{}
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("Content-Length", strconv.Itoa(len(html)))
	body := []byte(html)
	if req.Method == "HEAD" {
		body = nil
	}
	log.Info().Int("status", 200).Int("entries", len(entries)).Msg("ディレクトリ一覧を配信します")
	h.send(conn, log, h.responses.Build(200, header, body))
}

// serveFile はファイルの内容を配信する
// HEAD の場合はヘッダーだけを送り、Content-Length は実サイズを保つ
func (h *Handler) serveFile(conn net.Conn, log zerolog.Logger, req protocol.Request, path, via string) {
	data, err := h.files.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Int("status", 500).Str("file", path).Msg("ファイルの読み込みに失敗しました")
		h.send(conn, log, h.responses.Error(500, "", ""))
		return
	}

	header := &protocol.Header{}
	header.Set("Content-Type", h.files.ContentType(path))
	header.Set("Content-Length", strconv.Itoa(len(data)))

	body := data
	if req.Method == "HEAD" {
		body = nil
	}

	event := log.Info().Int("status", 200).Int("bytes", len(data))
	if via != "" {
		event = event.Str("via", via)
	}
	event.Msg("ファイルを配信します")
	h.send(conn, log, h.responses.Build(200, header, body))
}

// send はレスポンスバイト列を接続へ書き込む
// 送信に失敗しても接続はHandleの最後で必ず閉じられる
func (h *Handler) send(conn net.Conn, log zerolog.Logger, response []byte) {
	if _, err := conn.Write(response); err != nil {
		log.Warn().Err(err).Msg("レスポンスの送信に失敗しました")
	}
}

// firstLine はログ用に受信テキストの先頭行だけを取り出す
func firstLine(text string) string {
	trimmed := strings.TrimSpace(text)
	if idx := strings.IndexAny(trimmed, "\r\n"); idx != -1 {
		trimmed = trimmed[:idx]
	}
	const maxLen = 128
	if len(trimmed) > maxLen {
		trimmed = trimmed[:maxLen]
	}
	return trimmed
}
