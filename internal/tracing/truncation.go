package tracing

import "strings"

// span 属性长度上限
const (
	DefaultMaxLength = 200
	MaxSQLLength     = 500
	MaxRedisLength   = 100
)

// 属性名包含这些词时值按个人信息处理
var piiAttributeHints = []string{
	"name", "email", "phone", "contact", "address", "姓名", "电话", "邮箱",
}

// SafeAttributeValue 个人信息类属性打码，其余属性按 maxLength 截断
func SafeAttributeValue(name, value string, maxLength int) string {
	lower := strings.ToLower(name)
	for _, hint := range piiAttributeHints {
		if strings.Contains(lower, hint) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 只保留首尾字符：两字保留首字，五字及以上保留首尾各两个
func MaskPII(value string) string {
	r := []rune(value)
	switch n := len(r); {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(r[0]) + "*"
	case n <= 4:
		return string(r[0]) + strings.Repeat("*", n-2) + string(r[n-1])
	default:
		return string(r[:2]) + strings.Repeat("*", n-4) + string(r[n-2:])
	}
}

// TruncateString 超长时保留首尾、中间以 "..." 相连；maxLength 不大于 3 时直接截断
func TruncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	keep := (maxLength - 3) / 2
	return string(r[:keep]) + "..." + string(r[len(r)-keep:])
}

// SafeSQL 截断 SQL
func SafeSQL(sql string) string { return TruncateString(sql, MaxSQLLength) }

// SafeRedisKey 截断 Redis 键
func SafeRedisKey(key string) string { return TruncateString(key, MaxRedisLength) }
