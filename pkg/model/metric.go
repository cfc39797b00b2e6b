package model

import (
	"time"
)

// DailyMetric 日次指標レコード（ticker+trade_dateで一意、後勝ちで上書き）
type DailyMetric struct {
	Ticker        string    `gorm:"type:varchar(20);primaryKey" json:"ticker"`
	TradeDate     string    `gorm:"type:date;primaryKey" json:"trade_date"`
	ClosePrice    *float64  `gorm:"type:decimal(12,4)" json:"close_price"`
	EPSForecast   *float64  `gorm:"type:decimal(12,4)" json:"eps_forecast"`
	SalesForecast *float64  `gorm:"type:decimal(16,4)" json:"sales_forecast"`
	PERValue      *float64  `gorm:"type:decimal(12,4)" json:"per_value"`
	PSRValue      *float64  `gorm:"type:decimal(12,4)" json:"psr_value"`
	DataSource    string    `gorm:"type:varchar(50)" json:"data_source"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// TableName テーブル名
func (DailyMetric) TableName() string {
	return "daily_metrics"
}

// MetricValue 指標種別に対応する値を返す
func (m *DailyMetric) MetricValue(metricType MetricType) *float64 {
	if metricType == MetricTypePER {
		return m.PERValue
	}
	return m.PSRValue
}

// MissingFields 指標計算に必要な欠損項目の一覧
// 終値は常に必須。PERはEPS予想が正であること、PSRは売上予想が正であることを要求する。
func (m *DailyMetric) MissingFields(metricType MetricType) []string {
	var missing []string
	if m.ClosePrice == nil {
		missing = append(missing, "close_price")
	}
	if metricType == MetricTypePER && (m.EPSForecast == nil || *m.EPSForecast <= 0) {
		missing = append(missing, "eps_forecast")
	}
	if metricType == MetricTypePSR && (m.SalesForecast == nil || *m.SalesForecast <= 0) {
		missing = append(missing, "sales_forecast")
	}
	return missing
}

// MetricMedians 指標のローリング中央値（履歴不足のウィンドウはnull）
type MetricMedians struct {
	Ticker           string     `gorm:"type:varchar(20);primaryKey" json:"ticker"`
	TradeDate        string     `gorm:"type:date;primaryKey" json:"trade_date"`
	Median1W         *float64   `gorm:"type:decimal(12,4)" json:"median_1w"`
	Median3M         *float64   `gorm:"type:decimal(12,4)" json:"median_3m"`
	Median1Y         *float64   `gorm:"type:decimal(12,4)" json:"median_1y"`
	SourceMetricType MetricType `gorm:"type:varchar(10);not null" json:"source_metric_type"`
	CalculatedAt     time.Time  `json:"calculated_at"`
}

// TableName テーブル名
func (MetricMedians) TableName() string {
	return "metric_medians"
}

// InsufficientWindows 履歴不足で中央値を計算できなかったウィンドウの一覧
func (m *MetricMedians) InsufficientWindows() []string {
	var insufficient []string
	if m.Median1W == nil {
		insufficient = append(insufficient, "1W")
	}
	if m.Median3M == nil {
		insufficient = append(insufficient, "3M")
	}
	if m.Median1Y == nil {
		insufficient = append(insufficient, "1Y")
	}
	return insufficient
}
