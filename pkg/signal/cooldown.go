package signal

import (
	"fmt"
	"strings"
	"time"

	"KabuRadar/pkg/model"
)

// CooldownDecision クールダウン判定の結果
type CooldownDecision struct {
	ShouldSend bool
	Reason     string
}

// EvaluateCooldown 通知履歴から送信可否を判定する
//
// 同一の(銘柄, 区分, 条件キー)の通知がクールダウン時間内にあれば抑止する。
// ただし候補が強シグナルで、同一銘柄・同一指標の「通常」通知だけが時間内にある場合は
// 通常→強の遷移とみなして即時送信を許可する。
// この関数は純粋で、入力エントリの順序に依存しない（抑止は一致1件で確定する）。
func EvaluateCooldown(
	now time.Time,
	cooldownHours int,
	candidateTicker string,
	candidateCategory string,
	candidateConditionKey string,
	candidateIsStrong bool,
	recentEntries []*model.NotificationLogEntry,
) (CooldownDecision, error) {
	if cooldownHours <= 0 {
		return CooldownDecision{}, fmt.Errorf("クールダウン時間は正の値が必要です: %d", cooldownHours)
	}

	normalizedTicker, err := model.NormalizeTicker(candidateTicker)
	if err != nil {
		return CooldownDecision{}, err
	}
	threshold := now.Add(-time.Duration(cooldownHours) * time.Hour)

	for _, entry := range recentEntries {
		if entry.Ticker != normalizedTicker {
			continue
		}
		if entry.Category != candidateCategory {
			continue
		}
		if entry.ConditionKey != candidateConditionKey {
			continue
		}
		if !entry.SentAt.Before(threshold) {
			return CooldownDecision{
				ShouldSend: false,
				Reason:     fmt.Sprintf("%d時間クールダウン中", cooldownHours),
			}, nil
		}
	}

	if candidateIsStrong {
		metricPrefix := conditionKeyPrefix(candidateConditionKey)
		for _, entry := range recentEntries {
			if entry.Ticker != normalizedTicker {
				continue
			}
			if entry.IsStrong {
				continue
			}
			if conditionKeyPrefix(entry.ConditionKey) != metricPrefix {
				continue
			}
			if !entry.SentAt.Before(threshold) {
				return CooldownDecision{ShouldSend: true, Reason: "通常→強遷移のため即時通知"}, nil
			}
		}
	}

	return CooldownDecision{ShouldSend: true, Reason: "送信可"}, nil
}

// conditionKeyPrefix 条件キーの指標部分（最初のコロンより前）を返す
func conditionKeyPrefix(conditionKey string) string {
	if idx := strings.Index(conditionKey, ":"); idx >= 0 {
		return conditionKey[:idx]
	}
	return conditionKey
}
