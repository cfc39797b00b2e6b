package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ティッカーは「4桁コード:市場」形式に固定する（例: 7203:TSE）
var tickerPattern = regexp.MustCompile(`^\d{4}:[A-Z]+$`)

// NormalizeTicker ティッカーを正規化する
func NormalizeTicker(ticker string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(normalized) {
		return "", fmt.Errorf("ティッカー形式が不正です: %s", ticker)
	}
	return normalized, nil
}

// NormalizeTradeDate 取引日をISO形式(YYYY-MM-DD)に正規化する
func NormalizeTradeDate(tradeDate string) (string, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(tradeDate))
	if err != nil {
		return "", fmt.Errorf("日付形式が不正です: %s", tradeDate)
	}
	return parsed.Format("2006-01-02"), nil
}
