package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"KabuRadar/pkg/model"
)

// SignalStateDB シグナル状態の永続化
type SignalStateDB struct {
	db *gorm.DB
}

// Upsert シグナル状態を保存する（同一銘柄・同一日は後勝ちで上書き）
func (s *SignalStateDB) Upsert(state *model.SignalState) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}, {Name: "trade_date"}},
		UpdateAll: true,
	}).Create(state).Error
	if err != nil {
		return fmt.Errorf("シグナル状態の保存に失敗: %w", err)
	}
	return nil
}

// Get シグナル状態を1件取得する（存在しない場合はnil）
func (s *SignalStateDB) Get(ticker, tradeDate string) (*model.SignalState, error) {
	var state model.SignalState
	err := s.db.First(&state, "ticker = ? AND trade_date = ?", ticker, tradeDate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("シグナル状態の取得に失敗: %w", err)
	}
	return &state, nil
}

// GetLatest 銘柄の最新シグナル状態を取得する（存在しない場合はnil）
// 複合インデックスidx_signal_state_latestで取引日の降順に1件だけ引く。
func (s *SignalStateDB) GetLatest(ticker string) (*model.SignalState, error) {
	var state model.SignalState
	err := s.db.Where("ticker = ?", ticker).
		Order("trade_date DESC").
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最新シグナル状態の取得に失敗: %w", err)
	}
	return &state, nil
}

// ListLatest 全銘柄の最新シグナル状態を返す
func (s *SignalStateDB) ListLatest() ([]*model.SignalState, error) {
	var states []*model.SignalState
	subQuery := s.db.Model(&model.SignalState{}).
		Select("ticker, MAX(trade_date) AS trade_date").
		Group("ticker")
	err := s.db.Model(&model.SignalState{}).
		Joins("JOIN (?) latest ON signal_state.ticker = latest.ticker AND signal_state.trade_date = latest.trade_date", subQuery).
		Order("signal_state.ticker ASC").
		Find(&states).Error
	if err != nil {
		return nil, fmt.Errorf("最新シグナル状態一覧の取得に失敗: %w", err)
	}
	return states, nil
}
