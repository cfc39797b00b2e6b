package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"KabuRadar/pkg/model"
)

// MetricsDB 日次指標とローリング中央値の永続化
type MetricsDB struct {
	db *gorm.DB
}

// UpsertDailyMetric 日次指標を保存する（同一銘柄・同一日は後勝ちで上書き）
func (m *MetricsDB) UpsertDailyMetric(metric *model.DailyMetric) error {
	err := m.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}, {Name: "trade_date"}},
		UpdateAll: true,
	}).Create(metric).Error
	if err != nil {
		return fmt.Errorf("日次指標の保存に失敗: %w", err)
	}
	return nil
}

// GetDailyMetric 日次指標を1件取得する（存在しない場合はnil）
func (m *MetricsDB) GetDailyMetric(ticker, tradeDate string) (*model.DailyMetric, error) {
	var metric model.DailyMetric
	err := m.db.First(&metric, "ticker = ? AND trade_date = ?", ticker, tradeDate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("日次指標の取得に失敗: %w", err)
	}
	return &metric, nil
}

// ListRecentDailyMetrics 取引日の降順で直近の日次指標を返す
func (m *MetricsDB) ListRecentDailyMetrics(ticker string, limit int) ([]*model.DailyMetric, error) {
	var metrics []*model.DailyMetric
	err := m.db.Where("ticker = ?", ticker).
		Order("trade_date DESC").
		Limit(limit).
		Find(&metrics).Error
	if err != nil {
		return nil, fmt.Errorf("日次指標一覧の取得に失敗: %w", err)
	}
	return metrics, nil
}

// UpsertMedians ローリング中央値を保存する（同一銘柄・同一日は後勝ちで上書き）
func (m *MetricsDB) UpsertMedians(medians *model.MetricMedians) error {
	err := m.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}, {Name: "trade_date"}},
		UpdateAll: true,
	}).Create(medians).Error
	if err != nil {
		return fmt.Errorf("中央値の保存に失敗: %w", err)
	}
	return nil
}

// GetMedians ローリング中央値を1件取得する（存在しない場合はnil）
func (m *MetricsDB) GetMedians(ticker, tradeDate string) (*model.MetricMedians, error) {
	var medians model.MetricMedians
	err := m.db.First(&medians, "ticker = ? AND trade_date = ?", ticker, tradeDate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("中央値の取得に失敗: %w", err)
	}
	return &medians, nil
}
