package protocol

// Request は解析済みのHTTPリクエスト
// Parserが生成し、以後は変更されない
type Request struct {
	Method  string // 大文字化されたHTTPメソッド
	Path    string // 先頭が / のクエリ文字列なしのパス
	Version string // リクエストラインのバージョントークン
}
