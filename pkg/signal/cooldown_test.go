package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KabuRadar/pkg/model"
)

var cooldownNow = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func logEntry(conditionKey string, sentAt time.Time, isStrong bool) *model.NotificationLogEntry {
	return &model.NotificationLogEntry{
		EntryID:      model.NotificationEntryID("7203:TSE", "PER割安", conditionKey, "DISCORD", sentAt),
		Ticker:       "7203:TSE",
		Category:     "PER割安",
		ConditionKey: conditionKey,
		SentAt:       sentAt,
		Channel:      "DISCORD",
		IsStrong:     isStrong,
	}
}

func TestEvaluateCooldownSuppressesExactRepeat(t *testing.T) {
	entries := []*model.NotificationLogEntry{
		logEntry("PER:1Y+3M", cooldownNow.Add(-time.Hour), false),
	}

	decision, err := EvaluateCooldown(cooldownNow, 2, "7203:TSE", "PER割安", "PER:1Y+3M", false, entries)
	require.NoError(t, err)

	assert.False(t, decision.ShouldSend)
	assert.Equal(t, "2時間クールダウン中", decision.Reason)
}

func TestEvaluateCooldownAllowsAfterWindow(t *testing.T) {
	entries := []*model.NotificationLogEntry{
		logEntry("PER:1Y+3M", cooldownNow.Add(-3*time.Hour), false),
	}

	decision, err := EvaluateCooldown(cooldownNow, 2, "7203:TSE", "PER割安", "PER:1Y+3M", false, entries)
	require.NoError(t, err)

	assert.True(t, decision.ShouldSend)
	assert.Equal(t, "送信可", decision.Reason)
}

func TestEvaluateCooldownIgnoresOtherTickerAndKey(t *testing.T) {
	other := logEntry("PER:1Y+3M", cooldownNow.Add(-time.Hour), false)
	other.Ticker = "9984:TSE"
	entries := []*model.NotificationLogEntry{
		other,
		logEntry("PER:3M+1W", cooldownNow.Add(-time.Hour), false),
	}

	decision, err := EvaluateCooldown(cooldownNow, 2, "7203:TSE", "PER割安", "PER:1Y+3M", false, entries)
	require.NoError(t, err)

	assert.True(t, decision.ShouldSend)
}

func TestEvaluateCooldownStrongEscalationOverrides(t *testing.T) {
	// 通常通知の直後でも、同一指標の強シグナルは即時許可
	entries := []*model.NotificationLogEntry{
		logEntry("PER:1Y+3M", cooldownNow.Add(-30*time.Minute), false),
	}

	decision, err := EvaluateCooldown(cooldownNow, 2, "7203:TSE", "超PER割安", "PER:1Y+3M+1W", true, entries)
	require.NoError(t, err)

	assert.True(t, decision.ShouldSend)
	assert.Equal(t, "通常→強遷移のため即時通知", decision.Reason)
}

func TestEvaluateCooldownStrongRepeatStillSuppressed(t *testing.T) {
	// 強→強の同一条件はエスカレーションではなく通常のクールダウン対象
	strong := logEntry("PER:1Y+3M+1W", cooldownNow.Add(-30*time.Minute), true)
	strong.Category = "超PER割安"
	entries := []*model.NotificationLogEntry{strong}

	decision, err := EvaluateCooldown(cooldownNow, 2, "7203:TSE", "超PER割安", "PER:1Y+3M+1W", true, entries)
	require.NoError(t, err)

	assert.False(t, decision.ShouldSend)
}

func TestEvaluateCooldownStrongEscalationIgnoresOtherMetric(t *testing.T) {
	// PSRの通常通知はPERの強シグナルのエスカレーション根拠にならない
	psr := logEntry("PSR:1Y+3M", cooldownNow.Add(-30*time.Minute), false)
	psr.Category = "PSR割安"
	entries := []*model.NotificationLogEntry{psr}

	decision, err := EvaluateCooldown(cooldownNow, 2, "7203:TSE", "超PER割安", "PER:1Y+3M+1W", true, entries)
	require.NoError(t, err)

	assert.True(t, decision.ShouldSend)
	assert.Equal(t, "送信可", decision.Reason)
}

func TestEvaluateCooldownRejectsNonPositiveHours(t *testing.T) {
	_, err := EvaluateCooldown(cooldownNow, 0, "7203:TSE", "PER割安", "PER:1Y+3M", false, nil)
	require.Error(t, err)
}
