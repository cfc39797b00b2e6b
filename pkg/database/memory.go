package database

import (
	"sort"
	"sync"

	"KabuRadar/pkg/model"
)

// MemoryStore メモリ上のストア
// 開発・テスト用で、PostgreSQL版と同じメソッドを提供する。
type MemoryStore struct {
	mutex            sync.RWMutex
	watchlist        map[string]*model.WatchlistItem
	watchlistHistory []*model.WatchlistHistoryRecord
	dailyMetrics     map[string]*model.DailyMetric
	medians          map[string]*model.MetricMedians
	signalStates     map[string]*model.SignalState
	notificationLog  map[string]*model.NotificationLogEntry
	earningsCalendar map[string][]*model.EarningsCalendarEntry
}

// NewMemoryStore メモリストアを生成する
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		watchlist:        make(map[string]*model.WatchlistItem),
		dailyMetrics:     make(map[string]*model.DailyMetric),
		medians:          make(map[string]*model.MetricMedians),
		signalStates:     make(map[string]*model.SignalState),
		notificationLog:  make(map[string]*model.NotificationLogEntry),
		earningsCalendar: make(map[string][]*model.EarningsCalendarEntry),
	}
}

// Watchlist 監視銘柄リポジトリ
func (s *MemoryStore) Watchlist() *MemoryWatchlist {
	return &MemoryWatchlist{store: s}
}

// WatchlistHistory 監視銘柄変更履歴リポジトリ
func (s *MemoryStore) WatchlistHistory() *MemoryWatchlistHistory {
	return &MemoryWatchlistHistory{store: s}
}

// Metrics 日次指標・中央値リポジトリ
func (s *MemoryStore) Metrics() *MemoryMetrics {
	return &MemoryMetrics{store: s}
}

// SignalState シグナル状態リポジトリ
func (s *MemoryStore) SignalState() *MemorySignalState {
	return &MemorySignalState{store: s}
}

// NotificationLog 通知ログリポジトリ
func (s *MemoryStore) NotificationLog() *MemoryNotificationLog {
	return &MemoryNotificationLog{store: s}
}

// EarningsCalendar 決算カレンダーリポジトリ
func (s *MemoryStore) EarningsCalendar() *MemoryEarningsCalendar {
	return &MemoryEarningsCalendar{store: s}
}

func compositeKey(ticker, tradeDate string) string {
	return ticker + "|" + tradeDate
}

// MemoryWatchlist 監視銘柄のメモリ実装
type MemoryWatchlist struct {
	store *MemoryStore
}

// Count 登録件数を返す
func (w *MemoryWatchlist) Count() (int64, error) {
	w.store.mutex.RLock()
	defer w.store.mutex.RUnlock()
	return int64(len(w.store.watchlist)), nil
}

// Get ティッカーで1件取得する（存在しない場合はnil）
func (w *MemoryWatchlist) Get(ticker string) (*model.WatchlistItem, error) {
	w.store.mutex.RLock()
	defer w.store.mutex.RUnlock()
	item, ok := w.store.watchlist[ticker]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

// ListAll 全件をティッカー昇順で返す
func (w *MemoryWatchlist) ListAll() ([]*model.WatchlistItem, error) {
	w.store.mutex.RLock()
	defer w.store.mutex.RUnlock()
	items := make([]*model.WatchlistItem, 0, len(w.store.watchlist))
	for _, item := range w.store.watchlist {
		copied := *item
		items = append(items, &copied)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Ticker < items[j].Ticker })
	return items, nil
}

// Create 1件登録する
func (w *MemoryWatchlist) Create(item *model.WatchlistItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	w.store.mutex.Lock()
	defer w.store.mutex.Unlock()
	copied := *item
	w.store.watchlist[item.Ticker] = &copied
	return nil
}

// Update 1件更新する
func (w *MemoryWatchlist) Update(item *model.WatchlistItem) error {
	return w.Create(item)
}

// Delete 1件削除し、削除が発生したかを返す
func (w *MemoryWatchlist) Delete(ticker string) (bool, error) {
	w.store.mutex.Lock()
	defer w.store.mutex.Unlock()
	if _, ok := w.store.watchlist[ticker]; !ok {
		return false, nil
	}
	delete(w.store.watchlist, ticker)
	return true, nil
}

// MemoryWatchlistHistory 監視銘柄変更履歴のメモリ実装
type MemoryWatchlistHistory struct {
	store *MemoryStore
}

// Append 変更履歴を追記する
func (h *MemoryWatchlistHistory) Append(record *model.WatchlistHistoryRecord) error {
	h.store.mutex.Lock()
	defer h.store.mutex.Unlock()
	copied := *record
	h.store.watchlistHistory = append(h.store.watchlistHistory, &copied)
	return nil
}

// ListTimeline 条件に合う変更履歴を操作時刻の降順で返す
func (h *MemoryWatchlistHistory) ListTimeline(query WatchlistHistoryQuery) ([]*model.WatchlistHistoryRecord, error) {
	h.store.mutex.RLock()
	defer h.store.mutex.RUnlock()
	records := h.filteredRecords(query)
	sort.Slice(records, func(i, j int) bool { return records[i].ActedAt.After(records[j].ActedAt) })
	if query.Offset > 0 {
		if query.Offset >= len(records) {
			return nil, nil
		}
		records = records[query.Offset:]
	}
	if query.Limit > 0 && len(records) > query.Limit {
		records = records[:query.Limit]
	}
	return records, nil
}

// CountTimeline 条件に合う変更履歴の件数を返す
func (h *MemoryWatchlistHistory) CountTimeline(query WatchlistHistoryQuery) (int64, error) {
	h.store.mutex.RLock()
	defer h.store.mutex.RUnlock()
	return int64(len(h.filteredRecords(query))), nil
}

func (h *MemoryWatchlistHistory) filteredRecords(query WatchlistHistoryQuery) []*model.WatchlistHistoryRecord {
	var records []*model.WatchlistHistoryRecord
	for _, record := range h.store.watchlistHistory {
		if query.Ticker != "" && record.Ticker != query.Ticker {
			continue
		}
		copied := *record
		records = append(records, &copied)
	}
	return records
}

// MemoryMetrics 日次指標・中央値のメモリ実装
type MemoryMetrics struct {
	store *MemoryStore
}

// UpsertDailyMetric 日次指標を保存する（後勝ちで上書き）
func (m *MemoryMetrics) UpsertDailyMetric(metric *model.DailyMetric) error {
	m.store.mutex.Lock()
	defer m.store.mutex.Unlock()
	copied := *metric
	m.store.dailyMetrics[compositeKey(metric.Ticker, metric.TradeDate)] = &copied
	return nil
}

// GetDailyMetric 日次指標を1件取得する（存在しない場合はnil）
func (m *MemoryMetrics) GetDailyMetric(ticker, tradeDate string) (*model.DailyMetric, error) {
	m.store.mutex.RLock()
	defer m.store.mutex.RUnlock()
	metric, ok := m.store.dailyMetrics[compositeKey(ticker, tradeDate)]
	if !ok {
		return nil, nil
	}
	copied := *metric
	return &copied, nil
}

// ListRecentDailyMetrics 取引日の降順で直近の日次指標を返す
func (m *MemoryMetrics) ListRecentDailyMetrics(ticker string, limit int) ([]*model.DailyMetric, error) {
	m.store.mutex.RLock()
	defer m.store.mutex.RUnlock()
	var metrics []*model.DailyMetric
	for _, metric := range m.store.dailyMetrics {
		if metric.Ticker != ticker {
			continue
		}
		copied := *metric
		metrics = append(metrics, &copied)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].TradeDate > metrics[j].TradeDate })
	if limit > 0 && len(metrics) > limit {
		metrics = metrics[:limit]
	}
	return metrics, nil
}

// UpsertMedians ローリング中央値を保存する（後勝ちで上書き）
func (m *MemoryMetrics) UpsertMedians(medians *model.MetricMedians) error {
	m.store.mutex.Lock()
	defer m.store.mutex.Unlock()
	copied := *medians
	m.store.medians[compositeKey(medians.Ticker, medians.TradeDate)] = &copied
	return nil
}

// GetMedians ローリング中央値を1件取得する（存在しない場合はnil）
func (m *MemoryMetrics) GetMedians(ticker, tradeDate string) (*model.MetricMedians, error) {
	m.store.mutex.RLock()
	defer m.store.mutex.RUnlock()
	medians, ok := m.store.medians[compositeKey(ticker, tradeDate)]
	if !ok {
		return nil, nil
	}
	copied := *medians
	return &copied, nil
}

// MemorySignalState シグナル状態のメモリ実装
type MemorySignalState struct {
	store *MemoryStore
}

// Upsert シグナル状態を保存する（後勝ちで上書き）
func (s *MemorySignalState) Upsert(state *model.SignalState) error {
	s.store.mutex.Lock()
	defer s.store.mutex.Unlock()
	copied := *state
	s.store.signalStates[compositeKey(state.Ticker, state.TradeDate)] = &copied
	return nil
}

// Get シグナル状態を1件取得する（存在しない場合はnil）
func (s *MemorySignalState) Get(ticker, tradeDate string) (*model.SignalState, error) {
	s.store.mutex.RLock()
	defer s.store.mutex.RUnlock()
	state, ok := s.store.signalStates[compositeKey(ticker, tradeDate)]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

// GetLatest 銘柄の最新シグナル状態を取得する（存在しない場合はnil）
func (s *MemorySignalState) GetLatest(ticker string) (*model.SignalState, error) {
	s.store.mutex.RLock()
	defer s.store.mutex.RUnlock()
	var latest *model.SignalState
	for _, state := range s.store.signalStates {
		if state.Ticker != ticker {
			continue
		}
		if latest == nil || state.TradeDate > latest.TradeDate {
			latest = state
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

// ListLatest 全銘柄の最新シグナル状態を返す
func (s *MemorySignalState) ListLatest() ([]*model.SignalState, error) {
	s.store.mutex.RLock()
	defer s.store.mutex.RUnlock()
	latestByTicker := make(map[string]*model.SignalState)
	for _, state := range s.store.signalStates {
		latest, ok := latestByTicker[state.Ticker]
		if !ok || state.TradeDate > latest.TradeDate {
			latestByTicker[state.Ticker] = state
		}
	}
	states := make([]*model.SignalState, 0, len(latestByTicker))
	for _, state := range latestByTicker {
		copied := *state
		states = append(states, &copied)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Ticker < states[j].Ticker })
	return states, nil
}

// MemoryNotificationLog 通知ログのメモリ実装
type MemoryNotificationLog struct {
	store *MemoryStore
}

// Append 通知ログを追記する（同一IDは上書きしない）
func (n *MemoryNotificationLog) Append(entry *model.NotificationLogEntry) error {
	n.store.mutex.Lock()
	defer n.store.mutex.Unlock()
	if _, ok := n.store.notificationLog[entry.EntryID]; ok {
		return nil
	}
	copied := *entry
	n.store.notificationLog[entry.EntryID] = &copied
	return nil
}

// ListRecent 銘柄の直近の通知ログを送信時刻の降順で返す
func (n *MemoryNotificationLog) ListRecent(ticker string, limit int) ([]*model.NotificationLogEntry, error) {
	return n.ListTimeline(TimelineQuery{Ticker: ticker, Limit: limit})
}

// ListTimeline 条件に合う通知ログを送信時刻の降順で返す
func (n *MemoryNotificationLog) ListTimeline(query TimelineQuery) ([]*model.NotificationLogEntry, error) {
	n.store.mutex.RLock()
	defer n.store.mutex.RUnlock()
	entries := n.filteredEntries(query)
	sort.Slice(entries, func(i, j int) bool { return entries[i].SentAt.After(entries[j].SentAt) })
	if query.Offset > 0 {
		if query.Offset >= len(entries) {
			return nil, nil
		}
		entries = entries[query.Offset:]
	}
	if query.Limit > 0 && len(entries) > query.Limit {
		entries = entries[:query.Limit]
	}
	return entries, nil
}

// CountTimeline 条件に合う通知ログの件数を返す
func (n *MemoryNotificationLog) CountTimeline(query TimelineQuery) (int64, error) {
	n.store.mutex.RLock()
	defer n.store.mutex.RUnlock()
	return int64(len(n.filteredEntries(query))), nil
}

func (n *MemoryNotificationLog) filteredEntries(query TimelineQuery) []*model.NotificationLogEntry {
	var entries []*model.NotificationLogEntry
	for _, entry := range n.store.notificationLog {
		if query.Ticker != "" && entry.Ticker != query.Ticker {
			continue
		}
		if query.SentAtFrom != nil && entry.SentAt.Before(*query.SentAtFrom) {
			continue
		}
		if query.SentAtTo != nil && !entry.SentAt.Before(*query.SentAtTo) {
			continue
		}
		copied := *entry
		entries = append(entries, &copied)
	}
	return entries
}

// MemoryEarningsCalendar 決算カレンダーのメモリ実装
type MemoryEarningsCalendar struct {
	store *MemoryStore
}

// ReplaceByTicker 1銘柄分の決算カレンダーを置き換える
func (e *MemoryEarningsCalendar) ReplaceByTicker(ticker string, entries []*model.EarningsCalendarEntry) error {
	e.store.mutex.Lock()
	defer e.store.mutex.Unlock()
	copies := make([]*model.EarningsCalendarEntry, 0, len(entries))
	for _, entry := range entries {
		copied := *entry
		copies = append(copies, &copied)
	}
	e.store.earningsCalendar[ticker] = copies
	return nil
}

// ListAll 全件を発表日・ティッカーの昇順で返す
func (e *MemoryEarningsCalendar) ListAll() ([]*model.EarningsCalendarEntry, error) {
	e.store.mutex.RLock()
	defer e.store.mutex.RUnlock()
	var entries []*model.EarningsCalendarEntry
	for _, rows := range e.store.earningsCalendar {
		for _, entry := range rows {
			copied := *entry
			entries = append(entries, &copied)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EarningsDate != entries[j].EarningsDate {
			return entries[i].EarningsDate < entries[j].EarningsDate
		}
		return entries[i].Ticker < entries[j].Ticker
	})
	return entries, nil
}

// ListByTicker 1銘柄分を発表日の昇順で返す
func (e *MemoryEarningsCalendar) ListByTicker(ticker string) ([]*model.EarningsCalendarEntry, error) {
	e.store.mutex.RLock()
	defer e.store.mutex.RUnlock()
	rows := e.store.earningsCalendar[ticker]
	entries := make([]*model.EarningsCalendarEntry, 0, len(rows))
	for _, entry := range rows {
		copied := *entry
		entries = append(entries, &copied)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].EarningsDate < entries[j].EarningsDate })
	return entries, nil
}
