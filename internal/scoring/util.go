package scoring

import (
	"math"
	"strings"
	"unicode"
)

// Round2 保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// words 按非字母数字切分
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func wordSet(s string) map[string]struct{} {
	ws := words(s)
	out := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		out[w] = struct{}{}
	}
	return out
}

// containsWordOrPhrase 关键词按整词匹配，多词短语按子串匹配
func containsWordOrPhrase(text string, set map[string]struct{}, keyword string) bool {
	if strings.ContainsAny(keyword, " -") {
		return strings.Contains(strings.ToLower(text), keyword)
	}
	_, ok := set[keyword]
	return ok
}

// anyKeyword 文本中是否出现任一关键词（整词）
func anyKeyword(text string, keywords []string) bool {
	set := wordSet(text)
	for _, kw := range keywords {
		if containsWordOrPhrase(text, set, kw) {
			return true
		}
	}
	return false
}

// roleKeywords 岗位名称中长度大于 3 的关键词
func roleKeywords(role string) (all []string, significant []string) {
	all = strings.Fields(strings.ToLower(role))
	for _, kw := range all {
		if len([]rune(kw)) > 3 {
			significant = append(significant, kw)
		}
	}
	return all, significant
}

// compact 去掉非字母数字后的小写形式，"Full-Stack Developer" -> "fullstackdeveloper"
func compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nonEmpty 去掉空白项
func nonEmpty(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
