package watchlist

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"KabuRadar/pkg/model"
)

// 監視銘柄操作の失敗種別
var (
	ErrNotFound      = errors.New("監視銘柄が見つかりません")
	ErrAlreadyExists = errors.New("監視銘柄が既に存在します")
	ErrLimitExceeded = errors.New("監視銘柄数が上限を超えています")
)

// Repository 監視銘柄の保存先
type Repository interface {
	Count() (int64, error)
	Get(ticker string) (*model.WatchlistItem, error)
	ListAll() ([]*model.WatchlistItem, error)
	Create(item *model.WatchlistItem) error
	Update(item *model.WatchlistItem) error
	Delete(ticker string) (bool, error)
}

// HistoryRepository 監視銘柄変更履歴の保存先（追記専用）
type HistoryRepository interface {
	Append(record *model.WatchlistHistoryRecord) error
}

// ItemUpdate 監視銘柄の部分更新（nilの項目は据え置き）
type ItemUpdate struct {
	Name          *string
	MetricType    *string
	NotifyChannel *string
	NotifyTiming  *string
	AIEnabled     *bool
	IsActive      *bool
}

// Service 監視銘柄の登録・更新・削除を担う
type Service struct {
	repository Repository
	history    HistoryRepository
	maxItems   int
	now        func() time.Time
}

// NewService 監視銘柄サービスを生成する
func NewService(repository Repository, maxItems int) (*Service, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("監視銘柄の上限は1以上が必要です: %d", maxItems)
	}
	return &Service{repository: repository, maxItems: maxItems, now: time.Now}, nil
}

// WithHistory 変更履歴の書き込み先を設定する
func (s *Service) WithHistory(history HistoryRepository) *Service {
	s.history = history
	return s
}

// WithClock テスト用に現在時刻の取得方法を差し替える
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AddItem 監視銘柄を登録し、変更履歴にADDを残す
// 既存ティッカーはErrAlreadyExists、上限到達時はErrLimitExceededを返す。
// 履歴の書き込みに失敗した場合は登録を取り消す。
func (s *Service) AddItem(ticker, name, metricType, notifyChannel, notifyTiming string, aiEnabled, isActive bool, reason string) (*model.WatchlistItem, error) {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	existing, err := s.repository.Get(normalizedTicker)
	if err != nil {
		return nil, fmt.Errorf("監視銘柄の取得に失敗: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, normalizedTicker)
	}

	count, err := s.repository.Count()
	if err != nil {
		return nil, fmt.Errorf("監視銘柄数の取得に失敗: %w", err)
	}
	if count >= int64(s.maxItems) {
		return nil, fmt.Errorf("%w: max=%d", ErrLimitExceeded, s.maxItems)
	}

	parsedMetric, err := model.ParseMetricType(metricType)
	if err != nil {
		return nil, err
	}
	parsedChannel, err := model.ParseNotifyChannel(notifyChannel)
	if err != nil {
		return nil, err
	}
	parsedTiming, err := model.ParseNotifyTiming(notifyTiming)
	if err != nil {
		return nil, err
	}

	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return nil, fmt.Errorf("銘柄名が空です: ticker=%s", normalizedTicker)
	}

	now := s.now().UTC()
	item := &model.WatchlistItem{
		Ticker:        normalizedTicker,
		Name:          trimmedName,
		MetricType:    parsedMetric,
		NotifyChannel: parsedChannel,
		NotifyTiming:  parsedTiming,
		AIEnabled:     aiEnabled,
		IsActive:      isActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repository.Create(item); err != nil {
		return nil, fmt.Errorf("監視銘柄の登録に失敗: %w", err)
	}
	if err := s.appendHistory(normalizedTicker, model.WatchlistHistoryActionAdd, reason, now); err != nil {
		// 履歴と本体がずれないよう登録を取り消す
		s.repository.Delete(normalizedTicker)
		return nil, err
	}
	return item, nil
}

// ListItems 監視銘柄一覧を返す
func (s *Service) ListItems() ([]*model.WatchlistItem, error) {
	return s.repository.ListAll()
}

// GetItem 監視銘柄を1件取得する
func (s *Service) GetItem(ticker string) (*model.WatchlistItem, error) {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	existing, err := s.repository.Get(normalizedTicker)
	if err != nil {
		return nil, fmt.Errorf("監視銘柄の取得に失敗: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, normalizedTicker)
	}
	return existing, nil
}

// UpdateItem 監視銘柄を部分更新し、変更履歴にUPDATEを残す
// 履歴の書き込みに失敗した場合は更新前の内容へ戻す。
func (s *Service) UpdateItem(ticker string, update ItemUpdate, reason string) (*model.WatchlistItem, error) {
	existing, err := s.GetItem(ticker)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if update.Name != nil {
		trimmedName := strings.TrimSpace(*update.Name)
		if trimmedName == "" {
			return nil, fmt.Errorf("銘柄名が空です: ticker=%s", existing.Ticker)
		}
		updated.Name = trimmedName
	}
	if update.MetricType != nil {
		parsed, err := model.ParseMetricType(*update.MetricType)
		if err != nil {
			return nil, err
		}
		updated.MetricType = parsed
	}
	if update.NotifyChannel != nil {
		parsed, err := model.ParseNotifyChannel(*update.NotifyChannel)
		if err != nil {
			return nil, err
		}
		updated.NotifyChannel = parsed
	}
	if update.NotifyTiming != nil {
		parsed, err := model.ParseNotifyTiming(*update.NotifyTiming)
		if err != nil {
			return nil, err
		}
		updated.NotifyTiming = parsed
	}
	if update.AIEnabled != nil {
		updated.AIEnabled = *update.AIEnabled
	}
	if update.IsActive != nil {
		updated.IsActive = *update.IsActive
	}
	updated.UpdatedAt = s.now().UTC()

	if err := s.repository.Update(&updated); err != nil {
		return nil, fmt.Errorf("監視銘柄の更新に失敗: %w", err)
	}
	if err := s.appendHistory(existing.Ticker, model.WatchlistHistoryActionUpdate, reason, updated.UpdatedAt); err != nil {
		s.repository.Update(existing)
		return nil, err
	}
	return &updated, nil
}

// DeleteItem 監視銘柄を削除し、変更履歴にREMOVEを残す
// 履歴の書き込みに失敗した場合は削除を取り消す。
func (s *Service) DeleteItem(ticker, reason string) error {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return err
	}
	existing, err := s.repository.Get(normalizedTicker)
	if err != nil {
		return fmt.Errorf("監視銘柄の取得に失敗: %w", err)
	}
	deleted, err := s.repository.Delete(normalizedTicker)
	if err != nil {
		return fmt.Errorf("監視銘柄の削除に失敗: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, normalizedTicker)
	}
	if err := s.appendHistory(normalizedTicker, model.WatchlistHistoryActionRemove, reason, s.now().UTC()); err != nil {
		if existing != nil {
			s.repository.Create(existing)
		}
		return err
	}
	return nil
}

func (s *Service) appendHistory(ticker string, action model.WatchlistHistoryAction, reason string, actedAt time.Time) error {
	if s.history == nil {
		return nil
	}
	record := model.NewWatchlistHistoryRecord(ticker, action, strings.TrimSpace(reason), actedAt)
	if err := s.history.Append(record); err != nil {
		return fmt.Errorf("変更履歴の追記に失敗: %w", err)
	}
	return nil
}
