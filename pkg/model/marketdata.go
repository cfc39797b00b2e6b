package model

import (
	"time"
)

// MarketDataSnapshot 市場データの取得結果（取得ごとに生成される不変値）
type MarketDataSnapshot struct {
	Ticker        string    `json:"ticker"`
	ClosePrice    *float64  `json:"close_price"`
	EPSForecast   *float64  `json:"eps_forecast"`
	SalesForecast *float64  `json:"sales_forecast"`
	MarketCap     *float64  `json:"market_cap,omitempty"`
	EarningsDate  string    `json:"earnings_date,omitempty"`
	Source        string    `json:"source"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// MissingFields 欠損している項目名の一覧
func (s *MarketDataSnapshot) MissingFields() []string {
	var fields []string
	if s.ClosePrice == nil {
		fields = append(fields, "close_price")
	}
	if s.EPSForecast == nil {
		fields = append(fields, "eps_forecast")
	}
	if s.SalesForecast == nil {
		fields = append(fields, "sales_forecast")
	}
	if s.EarningsDate == "" {
		fields = append(fields, "earnings_date")
	}
	return fields
}

// Float64Ptr float64のポインタを返すヘルパー
func Float64Ptr(v float64) *float64 {
	return &v
}
