package notification

import (
	"fmt"
	"sort"
	"strings"

	"KabuRadar/pkg/model"
)

// ComposeSignalMessage シグナル通知メッセージを組み立てる
func ComposeSignalMessage(
	companyName string,
	state *model.SignalState,
	medians *model.MetricMedians,
) (*model.NotificationMessage, error) {
	if !state.HasSignal() || state.Combo == "" {
		return nil, fmt.Errorf("シグナル通知には区分とコンボが必要です: ticker=%s", state.Ticker)
	}

	body := strings.Join([]string{
		fmt.Sprintf("【%s】", state.Category),
		fmt.Sprintf("%s (%s)", companyName, state.Ticker),
		fmt.Sprintf("%s: %s", state.MetricType, formatValue(state.MetricValue)),
		fmt.Sprintf("中央値(1W/3M/1Y): %s / %s / %s",
			formatValue(medians.Median1W), formatValue(medians.Median3M), formatValue(medians.Median1Y)),
		fmt.Sprintf("判定: %s", state.Combo),
		fmt.Sprintf("連続: %d日", state.StreakDays),
	}, "\n")

	return &model.NotificationMessage{
		Ticker:       state.Ticker,
		Category:     state.Category,
		ConditionKey: state.ConditionKey(),
		Body:         body,
		IsStrong:     state.IsStrong,
	}, nil
}

// ComposeEarningsMessage 決算予定の通知メッセージを組み立てる
func ComposeEarningsMessage(
	ticker string,
	companyName string,
	earningsDate string,
	earningsTime string,
	category string,
) (*model.NotificationMessage, error) {
	if category != model.CategoryEarningsWeekly && category != model.CategoryEarningsTomorrow {
		return nil, fmt.Errorf("未対応の決算通知区分です: %s", category)
	}
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	timeLabel := earningsTime
	if timeLabel == "" {
		timeLabel = "未定"
	}
	body := strings.Join([]string{
		fmt.Sprintf("【%s】", category),
		fmt.Sprintf("%s (%s)", companyName, normalizedTicker),
		fmt.Sprintf("決算予定: %s %s", earningsDate, timeLabel),
	}, "\n")

	return &model.NotificationMessage{
		Ticker:       normalizedTicker,
		Category:     category,
		ConditionKey: fmt.Sprintf("EARNINGS:%s", earningsDate),
		Body:         body,
	}, nil
}

// ComposeDataUnknownMessage データ不明通知のメッセージを組み立てる
// 欠損項目は重複を除いてソートし、条件キーを安定させる。
func ComposeDataUnknownMessage(
	ticker string,
	companyName string,
	missingFields []string,
	context string,
) (*model.NotificationMessage, error) {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var fields []string
	for _, field := range missingFields {
		trimmed := strings.TrimSpace(field)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		fields = append(fields, trimmed)
	}
	sort.Strings(fields)
	if len(fields) == 0 {
		fields = []string{"unknown"}
	}

	body := strings.Join([]string{
		fmt.Sprintf("【%s】", model.CategoryDataUnknown),
		fmt.Sprintf("%s (%s)", companyName, normalizedTicker),
		fmt.Sprintf("欠損項目: %s", strings.Join(fields, ", ")),
		fmt.Sprintf("処理: %s", context),
	}, "\n")

	return &model.NotificationMessage{
		Ticker:       normalizedTicker,
		Category:     model.CategoryDataUnknown,
		ConditionKey: fmt.Sprintf("UNKNOWN:%s", strings.Join(fields, ",")),
		Body:         body,
	}, nil
}

func formatValue(value *float64) string {
	if value == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *value)
}
