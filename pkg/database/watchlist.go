package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"KabuRadar/pkg/model"
)

// WatchlistDB 監視銘柄の永続化
type WatchlistDB struct {
	db *gorm.DB
}

// Count 登録件数を返す
func (w *WatchlistDB) Count() (int64, error) {
	var count int64
	if err := w.db.Model(&model.WatchlistItem{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("監視銘柄数の取得に失敗: %w", err)
	}
	return count, nil
}

// Get ティッカーで1件取得する（存在しない場合はnil）
func (w *WatchlistDB) Get(ticker string) (*model.WatchlistItem, error) {
	var item model.WatchlistItem
	err := w.db.First(&item, "ticker = ?", ticker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("監視銘柄の取得に失敗: %w", err)
	}
	return &item, nil
}

// ListAll 全件をティッカー昇順で返す
func (w *WatchlistDB) ListAll() ([]*model.WatchlistItem, error) {
	var items []*model.WatchlistItem
	if err := w.db.Order("ticker ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("監視銘柄一覧の取得に失敗: %w", err)
	}
	return items, nil
}

// Create 1件登録する
func (w *WatchlistDB) Create(item *model.WatchlistItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if err := w.db.Create(item).Error; err != nil {
		return fmt.Errorf("監視銘柄の登録に失敗: %w", err)
	}
	return nil
}

// Update 1件更新する
func (w *WatchlistDB) Update(item *model.WatchlistItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if err := w.db.Save(item).Error; err != nil {
		return fmt.Errorf("監視銘柄の更新に失敗: %w", err)
	}
	return nil
}

// Delete 1件削除し、削除が発生したかを返す
func (w *WatchlistDB) Delete(ticker string) (bool, error) {
	result := w.db.Delete(&model.WatchlistItem{}, "ticker = ?", ticker)
	if result.Error != nil {
		return false, fmt.Errorf("監視銘柄の削除に失敗: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// WatchlistHistoryQuery 監視銘柄変更履歴の絞り込み条件
type WatchlistHistoryQuery struct {
	Ticker string
	Limit  int
	Offset int
}

// WatchlistHistoryDB 監視銘柄変更履歴の永続化（追記専用）
type WatchlistHistoryDB struct {
	db *gorm.DB
}

// Append 変更履歴を追記する
func (h *WatchlistHistoryDB) Append(record *model.WatchlistHistoryRecord) error {
	if err := h.db.Create(record).Error; err != nil {
		return fmt.Errorf("変更履歴の追記に失敗: %w", err)
	}
	return nil
}

// ListTimeline 条件に合う変更履歴を操作時刻の降順で返す
func (h *WatchlistHistoryDB) ListTimeline(query WatchlistHistoryQuery) ([]*model.WatchlistHistoryRecord, error) {
	var records []*model.WatchlistHistoryRecord
	err := h.historyScope(query).
		Order("acted_at DESC").
		Limit(query.Limit).
		Offset(query.Offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("変更履歴の取得に失敗: %w", err)
	}
	return records, nil
}

// CountTimeline 条件に合う変更履歴の件数を返す
func (h *WatchlistHistoryDB) CountTimeline(query WatchlistHistoryQuery) (int64, error) {
	var count int64
	if err := h.historyScope(query).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("変更履歴件数の取得に失敗: %w", err)
	}
	return count, nil
}

func (h *WatchlistHistoryDB) historyScope(query WatchlistHistoryQuery) *gorm.DB {
	scope := h.db.Model(&model.WatchlistHistoryRecord{})
	if query.Ticker != "" {
		scope = scope.Where("ticker = ?", query.Ticker)
	}
	return scope
}
