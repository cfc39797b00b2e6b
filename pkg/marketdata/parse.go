package marketdata

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	tagPattern          = regexp.MustCompile(`<[^>]+>`)
	numericTokenPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

	isoDatePattern      = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	japaneseDatePattern = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
	shortDatePattern    = regexp.MustCompile(`(\d{2})/(\d{1,2})/(\d{1,2})`)
)

// 欠損を表すプレースホルダ（サイト側表記）
var missingTokens = map[string]struct{}{
	"-": {}, "--": {}, "---": {}, "―": {}, "－": {},
}

// StripTags HTMLタグを除去しエンティティを復元する
func StripTags(value string) string {
	stripped := tagPattern.ReplaceAllString(value, " ")
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// ParseNumber サイト表記の数値を解釈する
// カンマ・単位（円/株）・全角空白を除去し、兆/億/万の和表記にも対応する。
func ParseNumber(value string) (float64, error) {
	normalized := strings.NewReplacer(
		",", "", " ", "", "　", "", "円", "", "株", "",
	).Replace(value)

	if normalized == "" {
		return 0, fmt.Errorf("数値がありません: %q", value)
	}
	if _, ok := missingTokens[normalized]; ok {
		return 0, fmt.Errorf("数値がありません: %q", value)
	}

	if strings.ContainsAny(normalized, "兆億万") {
		return parseJapaneseLargeNumber(normalized)
	}

	token := numericTokenPattern.FindString(normalized)
	if token == "" {
		return 0, fmt.Errorf("数値トークンがありません: %q", value)
	}
	return strconv.ParseFloat(token, 64)
}

// parseJapaneseLargeNumber 兆/億/万の和表記を解釈する
func parseJapaneseLargeNumber(value string) (float64, error) {
	trillion := extractJapaneseUnit(value, "兆")
	hundredMillion := extractJapaneseUnit(value, "億")
	tenThousand := extractJapaneseUnit(value, "万")
	if trillion == 0 && hundredMillion == 0 && tenThousand == 0 {
		return 0, fmt.Errorf("和表記の単位がありません: %q", value)
	}
	return trillion*1_000_000_000_000 + hundredMillion*100_000_000 + tenThousand*10_000, nil
}

func extractJapaneseUnit(value, unit string) float64 {
	pattern := regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*` + unit)
	match := pattern.FindStringSubmatch(value)
	if match == nil {
		return 0
	}
	parsed, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return parsed
}

// ParseDateText サイト表記の日付をISO形式へ変換する
// 「2025/5/8」「2025年5月8日」「25/5/8」のいずれにも対応する。
func ParseDateText(value string) (string, error) {
	normalized := strings.TrimSpace(value)

	for _, pattern := range []*regexp.Regexp{isoDatePattern, japaneseDatePattern} {
		if match := pattern.FindStringSubmatch(normalized); match != nil {
			return buildISODate(match[1], match[2], match[3])
		}
	}

	if match := shortDatePattern.FindStringSubmatch(normalized); match != nil {
		year, _ := strconv.Atoi(match[1])
		return buildISODate(strconv.Itoa(2000+year), match[2], match[3])
	}

	return "", fmt.Errorf("未対応の日付形式です: %q", value)
}

func buildISODate(yearText, monthText, dayText string) (string, error) {
	year, _ := strconv.Atoi(yearText)
	month, _ := strconv.Atoi(monthText)
	day, _ := strconv.Atoi(dayText)

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return "", fmt.Errorf("存在しない日付です: %04d-%02d-%02d", year, month, day)
	}
	return date.Format("2006-01-02"), nil
}

// findFirst パターン群を順に試し、最初にマッチしたグループを返す
func findFirst(text string, patterns []*regexp.Regexp) (string, bool) {
	for _, pattern := range patterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			return match[1], true
		}
	}
	return "", false
}
