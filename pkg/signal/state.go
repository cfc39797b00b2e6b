package signal

import (
	"time"

	"KabuRadar/pkg/model"
)

// BuildState 判定結果と前回状態から新しいシグナル状態を構築する
//
// 連続日数の規則:
//   - シグナルなし → 0
//   - シグナルあり → 1。ただし前回状態が同一シグナル（区分・コンボ・強フラグが一致）で、
//     かつ前回の取引日が今回のちょうど前営業日（土日スキップ）なら前回+1。
//
// 祝日カレンダーは持たないため、平日の祝日をまたぐと連続は途切れる（既知の制限）。
func BuildState(evaluation *model.SignalEvaluation, previous *model.SignalState, updatedAt time.Time) *model.SignalState {
	streakDays := 0
	if evaluation.HasSignal() {
		streakDays = 1
		if previous != nil &&
			isSameSignal(previous, evaluation) &&
			isPreviousBusinessDay(previous.TradeDate, evaluation.TradeDate) {
			streakDays = previous.StreakDays + 1
		}
	}

	return &model.SignalState{
		Ticker:      evaluation.Ticker,
		TradeDate:   evaluation.TradeDate,
		MetricType:  evaluation.MetricType,
		MetricValue: evaluation.MetricValue,
		Under1W:     evaluation.Under1W,
		Under3M:     evaluation.Under3M,
		Under1Y:     evaluation.Under1Y,
		Combo:       evaluation.Combo,
		IsStrong:    evaluation.IsStrong,
		Category:    evaluation.Category,
		StreakDays:  streakDays,
		UpdatedAt:   updatedAt,
	}
}

// isSameSignal 区分・コンボ・強フラグがすべて一致するか
func isSameSignal(previous *model.SignalState, current *model.SignalEvaluation) bool {
	if previous.Category != current.Category {
		return false
	}
	if previous.Combo != current.Combo {
		return false
	}
	if previous.IsStrong != current.IsStrong {
		return false
	}
	return true
}

// isPreviousBusinessDay previousDateがcurrentDateのちょうど前営業日（月〜金）か
func isPreviousBusinessDay(previousDate, currentDate string) bool {
	previous, err := time.Parse("2006-01-02", previousDate)
	if err != nil {
		return false
	}
	current, err := time.Parse("2006-01-02", currentDate)
	if err != nil {
		return false
	}

	expected := current.AddDate(0, 0, -1)
	for expected.Weekday() == time.Saturday || expected.Weekday() == time.Sunday {
		expected = expected.AddDate(0, 0, -1)
	}
	return previous.Equal(expected)
}
