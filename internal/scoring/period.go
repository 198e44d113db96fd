package scoring

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// 数字前不能紧跟数字或小数点，避免从 "1.5" 的小数部分开始匹配
	monthsPattern = regexp.MustCompile(`(?:^|[^\d.,])(\d+(?:[.,]\d+)?)\s*(?:mois|months?)`)
	yearsPattern  = regexp.MustCompile(`(?:^|[^\d.,])(\d+(?:[.,]\d+)?)\s*(?:years?|ans?)\b`)
	yearPattern   = regexp.MustCompile(`\b(20\d{2})\b`)
)

// 英法月份名，按月份顺序
var monthNames = []struct {
	name  string
	month int
}{
	{"january", 1}, {"february", 2}, {"march", 3}, {"april", 4},
	{"may", 5}, {"june", 6}, {"july", 7}, {"august", 8},
	{"september", 9}, {"october", 10}, {"november", 11}, {"december", 12},
	{"janvier", 1}, {"fevrier", 2}, {"février", 2}, {"mars", 3}, {"avril", 4},
	{"mai", 5}, {"juin", 6}, {"juillet", 7}, {"aout", 8}, {"août", 8},
	{"septembre", 9}, {"octobre", 10}, {"novembre", 11}, {"decembre", 12}, {"décembre", 12},
}

var currentMarkers = []string{"present", "en cours", "in progress", "current", "aujourd'hui"}

// minimumMonths 无法识别时长时的保底月数
const minimumMonths = 2.0

// isCurrentPeriod 经历是否仍在进行
func isCurrentPeriod(period string) bool {
	lower := strings.ToLower(period)
	for _, m := range currentMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// ParseDurationMonths 从显式时长或起止时间中解析月数
// 进行中的经历按 2 个月计，防止漏填结束时间而夸大经历
func ParseDurationMonths(period, duration string) float64 {
	if d := strings.ToLower(duration); d != "" {
		total, found := 0.0, false
		if m := yearsPattern.FindStringSubmatch(d); m != nil {
			total += parseAmount(m[1]) * 12
			found = true
		}
		if m := monthsPattern.FindStringSubmatch(d); m != nil {
			total += parseAmount(m[1])
			found = true
		}
		if found {
			return total
		}
	}

	if strings.TrimSpace(period) == "" {
		return 0
	}
	if isCurrentPeriod(period) {
		return minimumMonths
	}

	months := findMonths(strings.ToLower(period))
	if years := yearPattern.FindAllString(period, -1); len(years) >= 2 {
		start, _ := strconv.Atoi(years[0])
		end, _ := strconv.Atoi(years[1])
		total := (end - start) * 12
		// "June 2024 - September 2024" 这类写法需要叠加月份差
		if len(months) >= 2 {
			total += months[1] - months[0]
		}
		if total < 0 {
			total = 0
		}
		return float64(total)
	}

	if len(months) >= 2 {
		diff := months[1] - months[0]
		if diff < 0 {
			diff = -diff
		}
		return float64(diff)
	}
	return minimumMonths
}

// parseAmount 解析 "1.5"、"2,5" 这类数量，逗号按小数点处理
func parseAmount(raw string) float64 {
	n, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return n
}

// findMonths 按出现顺序返回文本中的月份
func findMonths(lower string) []int {
	var out []int
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		for _, mn := range monthNames {
			if word == mn.name {
				out = append(out, mn.month)
				break
			}
		}
	}
	return out
}

// RecencyBonus 按经历结束时间距参考年份的远近给出加减分
func (p *Params) RecencyBonus(period string) float64 {
	if strings.TrimSpace(period) == "" {
		return 0
	}
	if isCurrentPeriod(period) {
		return p.RecencyCurrent
	}
	years := yearPattern.FindAllString(period, -1)
	if len(years) == 0 {
		return 0
	}
	end, _ := strconv.Atoi(years[len(years)-1])
	ago := p.ReferenceYear - end
	switch {
	case ago <= 1:
		return p.RecencyWithinOneYear
	case ago <= 2:
		return p.RecencyWithinTwoYears
	case ago >= p.StaleYears:
		return p.RecencyStale
	}
	return 0
}
