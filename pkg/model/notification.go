package model

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// シグナル以外の通知区分
const (
	CategoryDataUnknown      = "データ不明"
	CategoryEarningsWeekly   = "今週決算"
	CategoryEarningsTomorrow = "明日決算"
)

// NotificationLogEntry 通知ログ（追記専用、更新・削除しない）
type NotificationLogEntry struct {
	EntryID      string    `gorm:"type:varchar(40);primaryKey" json:"id"`
	Ticker       string    `gorm:"type:varchar(20);not null;index" json:"ticker"`
	Category     string    `gorm:"type:varchar(30);not null" json:"category"`
	ConditionKey string    `gorm:"type:varchar(60);not null" json:"condition_key"`
	SentAt       time.Time `gorm:"not null;index" json:"sent_at"`
	Channel      string    `gorm:"type:varchar(10);not null" json:"channel"`
	PayloadHash  string    `gorm:"type:varchar(40)" json:"payload_hash"`
	IsStrong     bool      `gorm:"default:false" json:"is_strong"`
}

// TableName テーブル名
func (NotificationLogEntry) TableName() string {
	return "notification_log"
}

// NotificationEntryID 通知ログIDを決定的に生成する
func NotificationEntryID(ticker, category, conditionKey, channel string, sentAt time.Time) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s", ticker, category, conditionKey, channel, sentAt.UTC().Format(time.RFC3339))
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NotificationMessage 送信前の通知メッセージ（永続化しない一時値）
type NotificationMessage struct {
	Ticker       string `json:"ticker"`
	Category     string `json:"category"`
	ConditionKey string `json:"condition_key"`
	Body         string `json:"body"`
	IsStrong     bool   `json:"is_strong"`
}

// PayloadHash 本文のSHA1ハッシュ
func (m *NotificationMessage) PayloadHash() string {
	sum := sha1.Sum([]byte(m.Body))
	return hex.EncodeToString(sum[:])
}
