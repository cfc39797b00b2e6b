package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"KabuRadar/pkg/model"
)

// TimelineQuery 通知ログの絞り込み条件
type TimelineQuery struct {
	Ticker     string
	Limit      int
	Offset     int
	SentAtFrom *time.Time
	SentAtTo   *time.Time
}

// NotificationLogDB 通知ログの永続化（追記専用）
type NotificationLogDB struct {
	db *gorm.DB
}

// Append 通知ログを追記する
// 同一IDの再送は決定的IDにより重複登録されない。
func (n *NotificationLogDB) Append(entry *model.NotificationLogEntry) error {
	err := n.db.Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("通知ログの追記に失敗: %w", err)
	}
	return nil
}

// ListRecent 銘柄の直近の通知ログを送信時刻の降順で返す
func (n *NotificationLogDB) ListRecent(ticker string, limit int) ([]*model.NotificationLogEntry, error) {
	return n.ListTimeline(TimelineQuery{Ticker: ticker, Limit: limit})
}

// ListTimeline 条件に合う通知ログを送信時刻の降順で返す
func (n *NotificationLogDB) ListTimeline(query TimelineQuery) ([]*model.NotificationLogEntry, error) {
	var entries []*model.NotificationLogEntry
	err := n.timelineScope(query).
		Order("sent_at DESC").
		Limit(query.Limit).
		Offset(query.Offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("通知ログの取得に失敗: %w", err)
	}
	return entries, nil
}

// CountTimeline 条件に合う通知ログの件数を返す
func (n *NotificationLogDB) CountTimeline(query TimelineQuery) (int64, error) {
	var count int64
	if err := n.timelineScope(query).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("通知ログ件数の取得に失敗: %w", err)
	}
	return count, nil
}

func (n *NotificationLogDB) timelineScope(query TimelineQuery) *gorm.DB {
	scope := n.db.Model(&model.NotificationLogEntry{})
	if query.Ticker != "" {
		scope = scope.Where("ticker = ?", query.Ticker)
	}
	if query.SentAtFrom != nil {
		scope = scope.Where("sent_at >= ?", *query.SentAtFrom)
	}
	if query.SentAtTo != nil {
		scope = scope.Where("sent_at < ?", *query.SentAtTo)
	}
	return scope
}
