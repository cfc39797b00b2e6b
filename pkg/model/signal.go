package model

import (
	"fmt"
	"time"
)

// シグナル区分（メッセージにそのまま使う日本語ラベル）
const (
	CategoryPERStrong = "超PER割安"
	CategoryPSRStrong = "超PSR割安"
	CategoryPER       = "PER割安"
	CategoryPSR       = "PSR割安"
)

// コンボ（中央値を下回ったウィンドウの組み合わせ）
const (
	ComboAll  = "1Y+3M+1W"
	Combo1Y3M = "1Y+3M"
	Combo3M1W = "3M+1W"
	Combo1Y1W = "1Y+1W"
)

// SignalEvaluation 1回の判定結果（永続化しない一時値）
type SignalEvaluation struct {
	Ticker      string     `json:"ticker"`
	TradeDate   string     `json:"trade_date"`
	MetricType  MetricType `json:"metric_type"`
	MetricValue *float64   `json:"metric_value"`
	Under1W     bool       `json:"under_1w"`
	Under3M     bool       `json:"under_3m"`
	Under1Y     bool       `json:"under_1y"`
	Combo       string     `json:"combo,omitempty"`
	IsStrong    bool       `json:"is_strong"`
	Category    string     `json:"category,omitempty"`
}

// HasSignal シグナルが成立しているか
func (e *SignalEvaluation) HasSignal() bool {
	return e.Category != ""
}

// ConditionKey 重複抑止に使う条件キー（"{指標}:{コンボ}"）
func (e *SignalEvaluation) ConditionKey() string {
	if e.Combo == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", e.MetricType, e.Combo)
}

// SignalState 銘柄ごとの最新シグナル状態（連続日数つき、後勝ちで上書き）
type SignalState struct {
	Ticker      string     `gorm:"type:varchar(20);primaryKey;index:idx_signal_state_latest,priority:1" json:"ticker"`
	TradeDate   string     `gorm:"type:date;primaryKey;index:idx_signal_state_latest,priority:2,sort:desc" json:"trade_date"`
	MetricType  MetricType `gorm:"type:varchar(10);not null" json:"metric_type"`
	MetricValue *float64   `gorm:"type:decimal(12,4)" json:"metric_value"`
	Under1W     bool       `gorm:"default:false" json:"under_1w"`
	Under3M     bool       `gorm:"default:false" json:"under_3m"`
	Under1Y     bool       `gorm:"default:false" json:"under_1y"`
	Combo       string     `gorm:"type:varchar(20)" json:"combo,omitempty"`
	IsStrong    bool       `gorm:"default:false" json:"is_strong"`
	Category    string     `gorm:"type:varchar(30)" json:"category,omitempty"`
	StreakDays  int        `gorm:"default:0" json:"streak_days"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName テーブル名
func (SignalState) TableName() string {
	return "signal_state"
}

// HasSignal シグナルが成立しているか
func (s *SignalState) HasSignal() bool {
	return s.Category != ""
}

// ConditionKey 重複抑止に使う条件キー
func (s *SignalState) ConditionKey() string {
	if s.Combo == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.MetricType, s.Combo)
}
