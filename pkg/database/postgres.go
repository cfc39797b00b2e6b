package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"KabuRadar/pkg/config"
	"KabuRadar/pkg/model"
)

// Database PostgreSQLへの接続
type Database struct {
	db *gorm.DB
}

// NewPostgres PostgreSQL接続を生成し、スキーマを最新化する
func NewPostgres(cfg *config.Config) (*Database, error) {
	dbCfg := cfg.Database
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.DBName, dbCfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("コネクションプール取得に失敗: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("データベース疎通確認に失敗: %w", err)
	}

	if err := db.AutoMigrate(
		&model.WatchlistItem{},
		&model.WatchlistHistoryRecord{},
		&model.DailyMetric{},
		&model.MetricMedians{},
		&model.SignalState{},
		&model.NotificationLogEntry{},
		&model.EarningsCalendarEntry{},
	); err != nil {
		return nil, fmt.Errorf("スキーマ移行に失敗: %w", err)
	}

	return &Database{db: db}, nil
}

// Close 接続を閉じる
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Watchlist 監視銘柄リポジトリ
func (d *Database) Watchlist() *WatchlistDB {
	return &WatchlistDB{db: d.db}
}

// WatchlistHistory 監視銘柄変更履歴リポジトリ
func (d *Database) WatchlistHistory() *WatchlistHistoryDB {
	return &WatchlistHistoryDB{db: d.db}
}

// Metrics 日次指標・中央値リポジトリ
func (d *Database) Metrics() *MetricsDB {
	return &MetricsDB{db: d.db}
}

// SignalState シグナル状態リポジトリ
func (d *Database) SignalState() *SignalStateDB {
	return &SignalStateDB{db: d.db}
}

// NotificationLog 通知ログリポジトリ
func (d *Database) NotificationLog() *NotificationLogDB {
	return &NotificationLogDB{db: d.db}
}

// EarningsCalendar 決算カレンダーリポジトリ
func (d *Database) EarningsCalendar() *EarningsCalendarDB {
	return &EarningsCalendarDB{db: d.db}
}
