package database

import (
	"fmt"

	"gorm.io/gorm"

	"KabuRadar/pkg/model"
)

// EarningsCalendarDB 決算カレンダーの永続化
type EarningsCalendarDB struct {
	db *gorm.DB
}

// ReplaceByTicker 1銘柄分の決算カレンダーを置き換える
func (e *EarningsCalendarDB) ReplaceByTicker(ticker string, entries []*model.EarningsCalendarEntry) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.EarningsCalendarEntry{}, "ticker = ?", ticker).Error; err != nil {
			return fmt.Errorf("決算カレンダーの削除に失敗: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		if err := tx.Create(entries).Error; err != nil {
			return fmt.Errorf("決算カレンダーの登録に失敗: %w", err)
		}
		return nil
	})
}

// ListAll 全件を発表日・ティッカーの昇順で返す
func (e *EarningsCalendarDB) ListAll() ([]*model.EarningsCalendarEntry, error) {
	var entries []*model.EarningsCalendarEntry
	err := e.db.Order("earnings_date ASC, ticker ASC").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("決算カレンダー一覧の取得に失敗: %w", err)
	}
	return entries, nil
}

// ListByTicker 1銘柄分を発表日の昇順で返す
func (e *EarningsCalendarDB) ListByTicker(ticker string) ([]*model.EarningsCalendarEntry, error) {
	var entries []*model.EarningsCalendarEntry
	err := e.db.Where("ticker = ?", ticker).
		Order("earnings_date ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("決算カレンダーの取得に失敗: %w", err)
	}
	return entries, nil
}
