// Package protocol は、HTTP/1.1のワイヤーレベルの処理を担当します。
//
// このパッケージは、生のバイト列とHTTPリクエスト/レスポンスの間の
// 変換だけを扱い、ルーティングやファイルシステムには関与しません。
//
// 責務:
//   - 接続からのリクエストバイトの受信（Receiver）
//   - リクエストラインの厳密な解析（Parser）
//   - レスポンスバイト列の組み立て（Builder）
//   - ステータスコードと理由句の対応表
//
// 仕様:
//   - ヘッダー終端は \r\n\r\n の4バイト
//   - レスポンスは常に Connection: close
//   - 解析は純粋関数的で、同じ入力は常に同じ結果を返す
package protocol
