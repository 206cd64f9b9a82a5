package protocol

// statusText はこのサーバーが送出するステータスコードの理由句
var statusText = map[int]string{
	200: "OK",
	308: "Permanent Redirect",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	429: "Too Many Requests",
	500: "Internal Server Error",
	503: "Service Unavailable",
}

// StatusText はステータスコードの理由句を返す
// 未知のコードは "OK" にフォールバックする
func StatusText(code int) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "OK"
}

// errorText はエラーページ用の理由句を返す
// 未知のコードは "Error" にフォールバックする
func errorText(code int) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Error"
}
