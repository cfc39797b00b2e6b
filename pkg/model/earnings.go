package model

import (
	"time"
)

// EarningsCalendarEntry 決算カレンダーの1行（ticker+earnings_date+quarterで一意）
type EarningsCalendarEntry struct {
	Ticker       string    `gorm:"type:varchar(20);primaryKey" json:"ticker"`
	EarningsDate string    `gorm:"type:date;primaryKey" json:"earnings_date"`
	Quarter      string    `gorm:"type:varchar(10);primaryKey;default:'NA'" json:"quarter"`
	EarningsTime string    `gorm:"type:varchar(20)" json:"earnings_time,omitempty"`
	Source       string    `gorm:"type:varchar(50)" json:"source,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// TableName テーブル名
func (EarningsCalendarEntry) TableName() string {
	return "earnings_calendar"
}
