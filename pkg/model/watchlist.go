package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MetricType 監視指標の種別
type MetricType string

const (
	MetricTypePER MetricType = "PER"
	MetricTypePSR MetricType = "PSR"
)

// ParseMetricType 文字列から指標種別へ変換する
func ParseMetricType(value string) (MetricType, error) {
	switch MetricType(strings.ToUpper(strings.TrimSpace(value))) {
	case MetricTypePER:
		return MetricTypePER, nil
	case MetricTypePSR:
		return MetricTypePSR, nil
	}
	return "", fmt.Errorf("指標種別が不正です: %s", value)
}

// NotifyChannel 通知チャネル
type NotifyChannel string

const (
	NotifyChannelDiscord NotifyChannel = "DISCORD"
	NotifyChannelLine    NotifyChannel = "LINE"
	NotifyChannelBoth    NotifyChannel = "BOTH"
	NotifyChannelOff     NotifyChannel = "OFF"
)

// ParseNotifyChannel 文字列から通知チャネルへ変換する
func ParseNotifyChannel(value string) (NotifyChannel, error) {
	switch NotifyChannel(strings.ToUpper(strings.TrimSpace(value))) {
	case NotifyChannelDiscord:
		return NotifyChannelDiscord, nil
	case NotifyChannelLine:
		return NotifyChannelLine, nil
	case NotifyChannelBoth:
		return NotifyChannelBoth, nil
	case NotifyChannelOff:
		return NotifyChannelOff, nil
	}
	return "", fmt.Errorf("通知チャネルが不正です: %s", value)
}

// NotifyTiming 通知タイミング
type NotifyTiming string

const (
	NotifyTimingImmediate NotifyTiming = "IMMEDIATE"
	NotifyTimingAt21      NotifyTiming = "AT_21"
	NotifyTimingOff       NotifyTiming = "OFF"
)

// ParseNotifyTiming 文字列から通知タイミングへ変換する
func ParseNotifyTiming(value string) (NotifyTiming, error) {
	switch NotifyTiming(strings.ToUpper(strings.TrimSpace(value))) {
	case NotifyTimingImmediate:
		return NotifyTimingImmediate, nil
	case NotifyTimingAt21:
		return NotifyTimingAt21, nil
	case NotifyTimingOff:
		return NotifyTimingOff, nil
	}
	return "", fmt.Errorf("通知タイミングが不正です: %s", value)
}

// WatchlistItem 監視銘柄
type WatchlistItem struct {
	Ticker        string        `gorm:"type:varchar(20);primaryKey" json:"ticker"`
	Name          string        `gorm:"type:varchar(100);not null" json:"name"`
	MetricType    MetricType    `gorm:"type:varchar(10);not null" json:"metric_type"`
	NotifyChannel NotifyChannel `gorm:"type:varchar(10);not null" json:"notify_channel"`
	NotifyTiming  NotifyTiming  `gorm:"type:varchar(10);not null" json:"notify_timing"`
	AIEnabled     bool          `gorm:"default:false" json:"ai_enabled"`
	IsActive      bool          `gorm:"default:true;index" json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName テーブル名
func (WatchlistItem) TableName() string {
	return "watchlist"
}

// Validate 永続化前の整合性チェック
func (w *WatchlistItem) Validate() error {
	if _, err := NormalizeTicker(w.Ticker); err != nil {
		return err
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("銘柄名が空です: ticker=%s", w.Ticker)
	}
	if _, err := ParseMetricType(string(w.MetricType)); err != nil {
		return err
	}
	if _, err := ParseNotifyChannel(string(w.NotifyChannel)); err != nil {
		return err
	}
	if _, err := ParseNotifyTiming(string(w.NotifyTiming)); err != nil {
		return err
	}
	return nil
}

// WatchlistHistoryAction 監視銘柄変更履歴の操作種別
type WatchlistHistoryAction string

const (
	WatchlistHistoryActionAdd    WatchlistHistoryAction = "ADD"
	WatchlistHistoryActionUpdate WatchlistHistoryAction = "UPDATE"
	WatchlistHistoryActionRemove WatchlistHistoryAction = "REMOVE"
)

// WatchlistHistoryRecord 監視銘柄の変更履歴1件（追記専用）
type WatchlistHistoryRecord struct {
	RecordID string                 `gorm:"type:varchar(40);primaryKey" json:"record_id"`
	Ticker   string                 `gorm:"type:varchar(20);not null;index" json:"ticker"`
	Action   WatchlistHistoryAction `gorm:"type:varchar(10);not null" json:"action"`
	Reason   string                 `gorm:"type:varchar(200)" json:"reason,omitempty"`
	ActedAt  time.Time              `gorm:"not null;index" json:"acted_at"`
}

// TableName テーブル名
func (WatchlistHistoryRecord) TableName() string {
	return "watchlist_history"
}

// NewWatchlistHistoryRecord 変更履歴レコードを生成する
func NewWatchlistHistoryRecord(ticker string, action WatchlistHistoryAction, reason string, actedAt time.Time) *WatchlistHistoryRecord {
	return &WatchlistHistoryRecord{
		RecordID: uuid.NewString(),
		Ticker:   ticker,
		Action:   action,
		Reason:   reason,
		ActedAt:  actedAt,
	}
}
