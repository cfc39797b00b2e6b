package earnings

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KabuRadar/pkg/model"
)

type stubCalendarSource struct {
	name    string
	entries []*model.EarningsCalendarEntry
	err     error
}

func (s *stubCalendarSource) SourceName() string { return s.name }

func (s *stubCalendarSource) FetchEarningsCalendar(string) ([]*model.EarningsCalendarEntry, error) {
	return s.entries, s.err
}

type recordingCalendarRepository struct {
	ticker  string
	entries []*model.EarningsCalendarEntry
	err     error
}

func (r *recordingCalendarRepository) ReplaceByTicker(ticker string, entries []*model.EarningsCalendarEntry) error {
	r.ticker = ticker
	r.entries = entries
	return r.err
}

func calendarEntry(ticker, date string) *model.EarningsCalendarEntry {
	return &model.EarningsCalendarEntry{Ticker: ticker, EarningsDate: date}
}

func TestSyncForTickerNormalizesAndStores(t *testing.T) {
	source := &stubCalendarSource{
		name: "株探",
		entries: []*model.EarningsCalendarEntry{
			{EarningsDate: "2026-02-06", EarningsTime: "15:00", Quarter: "Q3"},
		},
	}
	repo := &recordingCalendarRepository{}
	fetchedAt := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	entries, err := SyncForTicker("7203:tse", source, repo, fetchedAt, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "7203:TSE", repo.ticker)
	entry := entries[0]
	assert.Equal(t, "7203:TSE", entry.Ticker)
	assert.Equal(t, "2026-02-06", entry.EarningsDate)
	assert.Equal(t, "Q3", entry.Quarter)
	assert.Equal(t, "株探", entry.Source)
	assert.Equal(t, fetchedAt, entry.FetchedAt)
}

func TestSyncForTickerDefaultsQuarter(t *testing.T) {
	source := &stubCalendarSource{
		name:    "株探",
		entries: []*model.EarningsCalendarEntry{{EarningsDate: "2026-02-06"}},
	}
	repo := &recordingCalendarRepository{}

	entries, err := SyncForTicker("7203:TSE", source, repo, time.Now().UTC(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "NA", entries[0].Quarter)
}

func TestSyncForTickerWrapsFetchFailure(t *testing.T) {
	source := &stubCalendarSource{name: "株探", err: errors.New("timeout")}
	repo := &recordingCalendarRepository{}

	_, err := SyncForTicker("7203:TSE", source, repo, time.Now().UTC(), zerolog.Nop())
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, "7203:TSE", syncErr.Ticker)
	assert.Equal(t, "株探", syncErr.Source)
}

func TestSyncForTickerRejectsTickerMismatch(t *testing.T) {
	source := &stubCalendarSource{
		name:    "株探",
		entries: []*model.EarningsCalendarEntry{{Ticker: "9984:TSE", EarningsDate: "2026-02-06"}},
	}
	repo := &recordingCalendarRepository{}

	_, err := SyncForTicker("7203:TSE", source, repo, time.Now().UTC(), zerolog.Nop())
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Empty(t, repo.ticker)
}

func TestSyncForTickerWrapsStoreFailure(t *testing.T) {
	source := &stubCalendarSource{
		name:    "株探",
		entries: []*model.EarningsCalendarEntry{{EarningsDate: "2026-02-06"}},
	}
	repo := &recordingCalendarRepository{err: errors.New("db down")}

	_, err := SyncForTicker("7203:TSE", source, repo, time.Now().UTC(), zerolog.Nop())
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
}

func TestSelectNextWeekEntries(t *testing.T) {
	entries := []*model.EarningsCalendarEntry{
		calendarEntry("9984:TSE", "2026-02-12"),
		calendarEntry("7203:TSE", "2026-02-09"),  // 翌週月曜
		calendarEntry("6758:TSE", "2026-02-15"),  // 翌週日曜
		calendarEntry("8306:TSE", "2026-02-06"),  // 今週(対象外)
		calendarEntry("4063:TSE", "2026-02-16"),  // 翌々週(対象外)
		calendarEntry("6861:TSE", "2026-02-12"),
	}

	// 2026-02-04は水曜。翌週は2026-02-09(月)〜2026-02-15(日)。
	selected, err := SelectNextWeekEntries(entries, "2026-02-04")
	require.NoError(t, err)

	var got [][2]string
	for _, entry := range selected {
		got = append(got, [2]string{entry.EarningsDate, entry.Ticker})
	}
	assert.Equal(t, [][2]string{
		{"2026-02-09", "7203:TSE"},
		{"2026-02-12", "6861:TSE"},
		{"2026-02-12", "9984:TSE"},
		{"2026-02-15", "6758:TSE"},
	}, got)
}

func TestSelectNextWeekEntriesFromSunday(t *testing.T) {
	entries := []*model.EarningsCalendarEntry{
		calendarEntry("7203:TSE", "2026-02-09"),
	}

	// 2026-02-08は日曜。週の起点は2026-02-02(月)なので翌週月曜は2026-02-09。
	selected, err := SelectNextWeekEntries(entries, "2026-02-08")
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "2026-02-09", selected[0].EarningsDate)
}

func TestSelectTomorrowEntries(t *testing.T) {
	entries := []*model.EarningsCalendarEntry{
		calendarEntry("9984:TSE", "2026-02-05"),
		calendarEntry("7203:TSE", "2026-02-05"),
		calendarEntry("6758:TSE", "2026-02-06"),
	}

	selected, err := SelectTomorrowEntries(entries, "2026-02-04")
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "7203:TSE", selected[0].Ticker)
	assert.Equal(t, "9984:TSE", selected[1].Ticker)
}

func TestSelectEntriesRejectInvalidToday(t *testing.T) {
	_, err := SelectNextWeekEntries(nil, "2026/02/04")
	assert.Error(t, err)
	_, err = SelectTomorrowEntries(nil, "")
	assert.Error(t, err)
}
