package skills

import (
	"strings"
	"unicode"
)

// Normalize 将原始技能字符串转换为规范键
// 先以去空格小写形式查别名表，再去除非字母数字字符后二次查表，否则返回去符号后的形式
func (t *Taxonomy) Normalize(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return ""
	}
	if target, ok := t.aliases[lowered]; ok {
		return target
	}
	stripped := stripNonAlnum(lowered)
	if target, ok := t.aliases[stripped]; ok {
		return target
	}
	return stripped
}

// NormalizeAll 批量归一化，去掉空键并按首次出现去重
func (t *Taxonomy) NormalizeAll(raws []string) []string {
	out := make([]string, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		key := t.Normalize(raw)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// Variations 返回与规范键同组的所有变体（含自身），无变体组时只返回自身
func (t *Taxonomy) Variations(key string) []string {
	idx, ok := t.variations[key]
	if !ok {
		return []string{key}
	}
	out := make([]string, len(t.groups[idx]))
	copy(out, t.groups[idx])
	return out
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
