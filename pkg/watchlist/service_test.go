package watchlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KabuRadar/pkg/model"
)

type fakeRepository struct {
	items map[string]*model.WatchlistItem
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{items: map[string]*model.WatchlistItem{}}
}

func (r *fakeRepository) Count() (int64, error) {
	return int64(len(r.items)), nil
}

func (r *fakeRepository) Get(ticker string) (*model.WatchlistItem, error) {
	item, ok := r.items[ticker]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (r *fakeRepository) ListAll() ([]*model.WatchlistItem, error) {
	var items []*model.WatchlistItem
	for _, item := range r.items {
		copied := *item
		items = append(items, &copied)
	}
	return items, nil
}

func (r *fakeRepository) Create(item *model.WatchlistItem) error {
	copied := *item
	r.items[item.Ticker] = &copied
	return nil
}

func (r *fakeRepository) Update(item *model.WatchlistItem) error {
	copied := *item
	r.items[item.Ticker] = &copied
	return nil
}

func (r *fakeRepository) Delete(ticker string) (bool, error) {
	if _, ok := r.items[ticker]; !ok {
		return false, nil
	}
	delete(r.items, ticker)
	return true, nil
}

func newTestService(t *testing.T, maxItems int) (*Service, *fakeRepository) {
	t.Helper()
	repo := newFakeRepository()
	service, err := NewService(repo, maxItems)
	require.NoError(t, err)
	service.WithClock(func() time.Time {
		return time.Date(2026, 2, 4, 9, 0, 0, 0, time.UTC)
	})
	return service, repo
}

func TestAddItemNormalizesInput(t *testing.T) {
	service, repo := newTestService(t, 10)

	item, err := service.AddItem("7203:tse", "  トヨタ自動車  ", "per", "discord", "immediate", false, true, "")
	require.NoError(t, err)

	assert.Equal(t, "7203:TSE", item.Ticker)
	assert.Equal(t, "トヨタ自動車", item.Name)
	assert.Equal(t, model.MetricTypePER, item.MetricType)
	assert.Equal(t, model.NotifyChannelDiscord, item.NotifyChannel)
	assert.Equal(t, model.NotifyTimingImmediate, item.NotifyTiming)
	assert.Equal(t, item.CreatedAt, item.UpdatedAt)
	assert.Contains(t, repo.items, "7203:TSE")
}

func TestAddItemRejectsDuplicate(t *testing.T) {
	service, _ := newTestService(t, 10)

	_, err := service.AddItem("7203:TSE", "トヨタ自動車", "PER", "DISCORD", "IMMEDIATE", false, true, "")
	require.NoError(t, err)

	_, err = service.AddItem("7203:tse", "トヨタ自動車", "PER", "DISCORD", "IMMEDIATE", false, true, "")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestAddItemRejectsOverLimit(t *testing.T) {
	service, _ := newTestService(t, 1)

	_, err := service.AddItem("7203:TSE", "トヨタ自動車", "PER", "DISCORD", "IMMEDIATE", false, true, "")
	require.NoError(t, err)

	_, err = service.AddItem("9984:TSE", "ソフトバンクグループ", "PSR", "LINE", "AT_21", false, true, "")
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestAddItemRejectsInvalidInput(t *testing.T) {
	service, _ := newTestService(t, 10)

	_, err := service.AddItem("7203", "トヨタ自動車", "PER", "DISCORD", "IMMEDIATE", false, true, "")
	assert.Error(t, err)

	_, err = service.AddItem("7203:TSE", "   ", "PER", "DISCORD", "IMMEDIATE", false, true, "")
	assert.Error(t, err)

	_, err = service.AddItem("7203:TSE", "トヨタ自動車", "EPS", "DISCORD", "IMMEDIATE", false, true, "")
	assert.Error(t, err)
}

func TestGetItemNotFound(t *testing.T) {
	service, _ := newTestService(t, 10)

	_, err := service.GetItem("7203:TSE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateItemAppliesPartialChanges(t *testing.T) {
	service, _ := newTestService(t, 10)

	created, err := service.AddItem("7203:TSE", "トヨタ自動車", "PER", "DISCORD", "IMMEDIATE", false, true, "")
	require.NoError(t, err)

	service.WithClock(func() time.Time {
		return time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)
	})

	newChannel := "both"
	inactive := false
	updated, err := service.UpdateItem("7203:tse", ItemUpdate{
		NotifyChannel: &newChannel,
		IsActive:      &inactive,
	}, "")
	require.NoError(t, err)

	assert.Equal(t, model.NotifyChannelBoth, updated.NotifyChannel)
	assert.False(t, updated.IsActive)
	assert.Equal(t, created.Name, updated.Name)
	assert.Equal(t, created.MetricType, updated.MetricType)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestUpdateItemRejectsInvalidValue(t *testing.T) {
	service, _ := newTestService(t, 10)

	_, err := service.AddItem("7203:TSE", "トヨタ自動車", "PER", "DISCORD", "IMMEDIATE", false, true, "")
	require.NoError(t, err)

	badTiming := "AT_22"
	_, err = service.UpdateItem("7203:TSE", ItemUpdate{NotifyTiming: &badTiming}, "")
	assert.Error(t, err)
}

func TestDeleteItem(t *testing.T) {
	service, repo := newTestService(t, 10)

	_, err := service.AddItem("7203:TSE", "トヨタ自動車", "PER", "DISCORD", "IMMEDIATE", false, true, "")
	require.NoError(t, err)

	require.NoError(t, service.DeleteItem("7203:tse", ""))
	assert.NotContains(t, repo.items, "7203:TSE")

	err = service.DeleteItem("7203:TSE", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeHistoryRepository struct {
	records []*model.WatchlistHistoryRecord
	err     error
}

func (r *fakeHistoryRepository) Append(record *model.WatchlistHistoryRecord) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, record)
	return nil
}

func TestServiceWritesHistory(t *testing.T) {
	service, _ := newTestService(t, 10)
	history := &fakeHistoryRepository{}
	service.WithHistory(history)

	_, err := service.AddItem("3901:TSE", "富士フイルム", "PER", "DISCORD", "IMMEDIATE", false, true, "初回登録")
	require.NoError(t, err)

	newName := "富士フイルムHD"
	_, err = service.UpdateItem("3901:TSE", ItemUpdate{Name: &newName}, "社名変更")
	require.NoError(t, err)

	require.NoError(t, service.DeleteItem("3901:TSE", "監視終了"))

	require.Len(t, history.records, 3)
	assert.Equal(t, model.WatchlistHistoryActionAdd, history.records[0].Action)
	assert.Equal(t, "初回登録", history.records[0].Reason)
	assert.Equal(t, model.WatchlistHistoryActionUpdate, history.records[1].Action)
	assert.Equal(t, model.WatchlistHistoryActionRemove, history.records[2].Action)
	assert.Equal(t, "監視終了", history.records[2].Reason)
	for _, record := range history.records {
		assert.Equal(t, "3901:TSE", record.Ticker)
		assert.NotEmpty(t, record.RecordID)
	}
}

func TestAddItemRollsBackWhenHistoryFails(t *testing.T) {
	service, repo := newTestService(t, 10)
	service.WithHistory(&fakeHistoryRepository{err: assert.AnError})

	_, err := service.AddItem("3901:TSE", "富士フイルム", "PER", "DISCORD", "IMMEDIATE", false, true, "")
	require.Error(t, err)
	assert.NotContains(t, repo.items, "3901:TSE")
}

func TestDeleteItemRollsBackWhenHistoryFails(t *testing.T) {
	service, repo := newTestService(t, 10)

	_, err := service.AddItem("3901:TSE", "富士フイルム", "PER", "DISCORD", "IMMEDIATE", false, true, "")
	require.NoError(t, err)

	service.WithHistory(&fakeHistoryRepository{err: assert.AnError})
	err = service.DeleteItem("3901:TSE", "")
	require.Error(t, err)
	assert.Contains(t, repo.items, "3901:TSE")
}

func TestUpdateItemRollsBackWhenHistoryFails(t *testing.T) {
	service, repo := newTestService(t, 10)

	_, err := service.AddItem("3901:TSE", "富士フイルム", "PER", "DISCORD", "IMMEDIATE", false, true, "")
	require.NoError(t, err)

	service.WithHistory(&fakeHistoryRepository{err: assert.AnError})
	newName := "富士フイルムHD"
	_, err = service.UpdateItem("3901:TSE", ItemUpdate{Name: &newName}, "")
	require.Error(t, err)
	assert.Equal(t, "富士フイルム", repo.items["3901:TSE"].Name)
}
