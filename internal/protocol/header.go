package protocol

import "strings"

// headerField はヘッダーの1行分
type headerField struct {
	name  string
	value string
}

// Header は挿入順を保持するHTTPヘッダーの集合
// map と違い、シリアライズ結果が呼び出しごとに変わらない
type Header struct {
	fields []headerField
}

// Set はヘッダーを設定する
// 同名のヘッダーが既にあれば値を置き換える（名前は大文字小文字を区別しない）
func (h *Header) Set(name, value string) {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].name, name) {
			h.fields[i].value = value
			return
		}
	}
	h.fields = append(h.fields, headerField{name: name, value: value})
}

// SetDefault は同名のヘッダーがない場合のみ設定する
func (h *Header) SetDefault(name, value string) {
	if _, ok := h.Get(name); !ok {
		h.fields = append(h.fields, headerField{name: name, value: value})
	}
}

// Get はヘッダーの値を返す
func (h *Header) Get(name string) (string, bool) {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].name, name) {
			return h.fields[i].value, true
		}
	}
	return "", false
}

// Len はヘッダーの数を返す
func (h *Header) Len() int {
	return len(h.fields)
}

// clone はヘッダーの複製を返す
// Builderが呼び出し側のヘッダーを変更しないために使う
func (h *Header) clone() *Header {
	c := &Header{fields: make([]headerField, len(h.fields))}
	copy(c.fields, h.fields)
	return c
}
