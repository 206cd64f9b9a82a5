// Package server は、接続の受け入れからレスポンス送信までの
// 同時実行の中核を管理します。
//
// このパッケージは、TCPリスナー、固定サイズのワーカープール、
// 1接続分の処理を統括するハンドラーで構成されます。
//
// 責務:
//   - リスニングソケットの所有と接続の受け入れ
//   - 受け入れた接続のワーカープールへの振り分け
//   - レートリミット → 受信 → 解析 → ルーティング → 応答の統括
//   - 障害の種類からステータスコードへの一元的な対応付け
//   - グレースフルシャットダウン（受け入れ停止後にドレイン）
//
// 仕様:
//   - 接続は1ワーカーが専有し、接続をまたぐ共有状態は
//     レートリミッターとカウンターのみ
//   - accept は短いタイムアウト付きでポーリングし、
//     コンテキストのキャンセルに応答する
//   - どの分岐を通っても接続は必ずクローズされる
package server
