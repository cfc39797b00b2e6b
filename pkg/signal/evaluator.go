package signal

import (
	"KabuRadar/pkg/model"
)

// comboRule 判定ルール（先勝ちで評価する順序付きテーブル）
type comboRule struct {
	matches  func(under1W, under3M, under1Y bool) bool
	combo    string
	isStrong bool
}

// 判定順序は固定。入れ替えると優先順位が変わるため順序に意味がある。
var comboRules = []comboRule{
	{
		matches:  func(u1w, u3m, u1y bool) bool { return u1y && u3m && u1w },
		combo:    model.ComboAll,
		isStrong: true,
	},
	{
		matches: func(u1w, u3m, u1y bool) bool { return u1y && u3m },
		combo:   model.Combo1Y3M,
	},
	{
		matches: func(u1w, u3m, u1y bool) bool { return u3m && u1w },
		combo:   model.Combo3M1W,
	},
	{
		matches: func(u1w, u3m, u1y bool) bool { return u1y && u1w },
		combo:   model.Combo1Y1W,
	},
}

// Evaluate 指標値を3ウィンドウの中央値と比較して分類する
// 中央値がnullのウィンドウは「下回っていない」扱い。指標値がnullならシグナルなし。
func Evaluate(
	ticker string,
	tradeDate string,
	metricType model.MetricType,
	metricValue *float64,
	medians *model.MetricMedians,
) (*model.SignalEvaluation, error) {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	normalizedDate, err := model.NormalizeTradeDate(tradeDate)
	if err != nil {
		return nil, err
	}

	evaluation := &model.SignalEvaluation{
		Ticker:      normalizedTicker,
		TradeDate:   normalizedDate,
		MetricType:  metricType,
		MetricValue: metricValue,
	}
	if metricValue == nil {
		return evaluation, nil
	}

	evaluation.Under1W = medians.Median1W != nil && *metricValue < *medians.Median1W
	evaluation.Under3M = medians.Median3M != nil && *metricValue < *medians.Median3M
	evaluation.Under1Y = medians.Median1Y != nil && *metricValue < *medians.Median1Y

	for _, rule := range comboRules {
		if !rule.matches(evaluation.Under1W, evaluation.Under3M, evaluation.Under1Y) {
			continue
		}
		evaluation.Combo = rule.combo
		evaluation.IsStrong = rule.isStrong
		evaluation.Category = categoryFor(metricType, rule.isStrong)
		break
	}

	return evaluation, nil
}

// categoryFor 指標種別と強シグナルか否かから区分ラベルを返す
func categoryFor(metricType model.MetricType, isStrong bool) string {
	switch metricType {
	case model.MetricTypePER:
		if isStrong {
			return model.CategoryPERStrong
		}
		return model.CategoryPER
	case model.MetricTypePSR:
		if isStrong {
			return model.CategoryPSRStrong
		}
		return model.CategoryPSR
	}
	return ""
}
