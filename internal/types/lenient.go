package types

import (
	"bytes"
	"encoding/json"
	"strings"
)

// rawString 宽松读取字符串字段：字符串原样返回，数字转为文本，其余类型视为空
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// rawObject 将 JSON 对象解码为字段表，非对象返回 nil
func rawObject(raw json.RawMessage) map[string]json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

// rawArray 将 JSON 数组解码为元素列表，非数组返回 nil
func rawArray(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil
	}
	return arr
}

// splitCSV 按逗号拆分并去掉空项
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// StringList 字符串列表，既接受 JSON 数组也接受逗号分隔的字符串
type StringList []string

// UnmarshalJSON 宽松解码，格式不符时得到空列表
func (l *StringList) UnmarshalJSON(data []byte) error {
	*l = parseStringList(data)
	return nil
}

func parseStringList(data []byte) StringList {
	if arr := rawArray(data); arr != nil {
		out := make(StringList, 0, len(arr))
		for _, item := range arr {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return splitCSV(s)
	}
	return nil
}
