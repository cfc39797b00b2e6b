package earnings

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"KabuRadar/pkg/model"
)

// CalendarSource 決算カレンダーの取得元
type CalendarSource interface {
	SourceName() string
	FetchEarningsCalendar(ticker string) ([]*model.EarningsCalendarEntry, error)
}

// CalendarRepository 決算カレンダーの保存先
type CalendarRepository interface {
	ReplaceByTicker(ticker string, entries []*model.EarningsCalendarEntry) error
}

// SyncError 決算カレンダー同期の失敗
type SyncError struct {
	Ticker string
	Source string
	Err    error
}

// Error errorの実装
func (e *SyncError) Error() string {
	return fmt.Sprintf("決算カレンダー同期に失敗しました: ticker=%s source=%s: %v", e.Ticker, e.Source, e.Err)
}

// Unwrap errors.Is/As対応
func (e *SyncError) Unwrap() error {
	return e.Err
}

// SyncForTicker 1銘柄分の決算カレンダーを取得し、既存行を置き換えて保存する
// 取得・正規化・保存のいずれかが失敗した場合はSyncErrorを返す。
func SyncForTicker(ticker string, source CalendarSource, repository CalendarRepository, fetchedAt time.Time, log zerolog.Logger) ([]*model.EarningsCalendarEntry, error) {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	sourceName := source.SourceName()

	rawEntries, err := source.FetchEarningsCalendar(normalizedTicker)
	if err != nil {
		log.Error().Err(err).
			Str("ticker", normalizedTicker).
			Str("source", sourceName).
			Msg("決算カレンダー取得失敗")
		return nil, &SyncError{Ticker: normalizedTicker, Source: sourceName, Err: err}
	}

	normalizedEntries := make([]*model.EarningsCalendarEntry, 0, len(rawEntries))
	for index, rawEntry := range rawEntries {
		entry, err := normalizeEntry(rawEntry, normalizedTicker, sourceName, fetchedAt)
		if err != nil {
			log.Error().Err(err).
				Str("ticker", normalizedTicker).
				Str("source", sourceName).
				Int("index", index).
				Msg("決算カレンダー変換失敗")
			return nil, &SyncError{Ticker: normalizedTicker, Source: sourceName, Err: err}
		}
		normalizedEntries = append(normalizedEntries, entry)
	}

	if err := repository.ReplaceByTicker(normalizedTicker, normalizedEntries); err != nil {
		log.Error().Err(err).
			Str("ticker", normalizedTicker).
			Str("source", sourceName).
			Int("rows", len(normalizedEntries)).
			Msg("決算カレンダー保存失敗")
		return nil, &SyncError{Ticker: normalizedTicker, Source: sourceName, Err: err}
	}

	if len(normalizedEntries) == 0 {
		log.Warn().
			Str("ticker", normalizedTicker).
			Str("source", sourceName).
			Msg("決算カレンダー0件")
	}
	return normalizedEntries, nil
}

// SelectNextWeekEntries 翌週（翌週月曜〜日曜）の決算行を選ぶ
// 発表日の昇順、同日内はティッカー昇順で返す。
func SelectNextWeekEntries(entries []*model.EarningsCalendarEntry, today string) ([]*model.EarningsCalendarEntry, error) {
	todayDate, err := time.Parse("2006-01-02", today)
	if err != nil {
		return nil, fmt.Errorf("基準日の形式が不正です: %w", err)
	}

	// time.WeekdayはSunday=0なので月曜=0基準へ読み替える
	weekday := (int(todayDate.Weekday()) + 6) % 7
	currentMonday := todayDate.AddDate(0, 0, -weekday)
	nextMonday := currentMonday.AddDate(0, 0, 7)
	nextSunday := nextMonday.AddDate(0, 0, 6)

	var selected []*model.EarningsCalendarEntry
	for _, entry := range entries {
		entryDate, err := time.Parse("2006-01-02", entry.EarningsDate)
		if err != nil {
			continue
		}
		if !entryDate.Before(nextMonday) && !entryDate.After(nextSunday) {
			selected = append(selected, entry)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].EarningsDate != selected[j].EarningsDate {
			return selected[i].EarningsDate < selected[j].EarningsDate
		}
		return selected[i].Ticker < selected[j].Ticker
	})
	return selected, nil
}

// SelectTomorrowEntries 翌日の決算行をティッカー昇順で選ぶ
func SelectTomorrowEntries(entries []*model.EarningsCalendarEntry, today string) ([]*model.EarningsCalendarEntry, error) {
	todayDate, err := time.Parse("2006-01-02", today)
	if err != nil {
		return nil, fmt.Errorf("基準日の形式が不正です: %w", err)
	}
	tomorrow := todayDate.AddDate(0, 0, 1).Format("2006-01-02")

	var selected []*model.EarningsCalendarEntry
	for _, entry := range entries {
		if entry.EarningsDate == tomorrow {
			selected = append(selected, entry)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Ticker < selected[j].Ticker
	})
	return selected, nil
}

// normalizeEntry 取得行を保存形式へ正規化する
func normalizeEntry(rawEntry *model.EarningsCalendarEntry, ticker, sourceName string, defaultFetchedAt time.Time) (*model.EarningsCalendarEntry, error) {
	if rawEntry == nil {
		return nil, fmt.Errorf("決算カレンダー行が空です")
	}

	entryTicker := ticker
	if rawEntry.Ticker != "" {
		normalized, err := model.NormalizeTicker(rawEntry.Ticker)
		if err != nil {
			return nil, err
		}
		entryTicker = normalized
	}
	if entryTicker != ticker {
		return nil, fmt.Errorf("ティッカー不一致: %s != %s", entryTicker, ticker)
	}

	earningsDate, err := model.NormalizeTradeDate(rawEntry.EarningsDate)
	if err != nil {
		return nil, err
	}

	source := rawEntry.Source
	if source == "" {
		source = sourceName
	}
	fetchedAt := rawEntry.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = defaultFetchedAt
	}
	quarter := rawEntry.Quarter
	if quarter == "" {
		quarter = "NA"
	}

	return &model.EarningsCalendarEntry{
		Ticker:       ticker,
		EarningsDate: earningsDate,
		Quarter:      quarter,
		EarningsTime: rawEntry.EarningsTime,
		Source:       source,
		FetchedAt:    fetchedAt,
	}, nil
}
