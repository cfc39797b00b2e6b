package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KabuRadar/pkg/config"
	"KabuRadar/pkg/database"
	"KabuRadar/pkg/model"
	"KabuRadar/pkg/monitor"
	"KabuRadar/pkg/watchlist"
)

func newTestServer(t *testing.T) (*Server, *database.MemoryStore, *monitor.SourceHealth) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := database.NewMemoryStore()
	service, err := watchlist.NewService(store.Watchlist(), 3)
	require.NoError(t, err)
	service.WithHistory(store.WatchlistHistory())

	health := monitor.NewSourceHealth(zerolog.Nop())
	handlers := NewHandlers(service, store.WatchlistHistory(), store.NotificationLog(), store.SignalState(), health, zerolog.Nop())

	cfg := &config.Config{}
	cfg.API.Port = "8080"
	return NewServer(cfg, handlers, zerolog.Nop()), store, health
}

func doRequest(server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Engine().ServeHTTP(recorder, req)
	return recorder
}

func TestWatchlistCRUD(t *testing.T) {
	server, _, _ := newTestServer(t)

	create := map[string]interface{}{
		"ticker":         "7203:JP",
		"name":           "トヨタ自動車",
		"metric_type":    "PER",
		"notify_channel": "DISCORD",
		"notify_timing":  "IMMEDIATE",
	}
	recorder := doRequest(server, http.MethodPost, "/api/v1/watchlist", create)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var created model.WatchlistItem
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))
	assert.Equal(t, "7203:JP", created.Ticker)
	assert.True(t, created.IsActive)

	// 重複登録は409
	recorder = doRequest(server, http.MethodPost, "/api/v1/watchlist", create)
	assert.Equal(t, http.StatusConflict, recorder.Code)

	recorder = doRequest(server, http.MethodGet, "/api/v1/watchlist/7203:JP", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	update := map[string]interface{}{"metric_type": "PSR", "is_active": false}
	recorder = doRequest(server, http.MethodPatch, "/api/v1/watchlist/7203:JP", update)
	require.Equal(t, http.StatusOK, recorder.Code)

	var updated model.WatchlistItem
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &updated))
	assert.Equal(t, model.MetricTypePSR, updated.MetricType)
	assert.False(t, updated.IsActive)

	recorder = doRequest(server, http.MethodDelete, "/api/v1/watchlist/7203:JP", nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = doRequest(server, http.MethodGet, "/api/v1/watchlist/7203:JP", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doRequest(server, http.MethodDelete, "/api/v1/watchlist/7203:JP", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestWatchlistLimitExceeded(t *testing.T) {
	server, _, _ := newTestServer(t)

	tickers := []string{"7203:JP", "6758:JP", "9984:JP", "8306:JP"}
	for i, ticker := range tickers {
		body := map[string]interface{}{
			"ticker":         ticker,
			"name":           "銘柄" + ticker,
			"metric_type":    "PER",
			"notify_channel": "BOTH",
			"notify_timing":  "IMMEDIATE",
		}
		recorder := doRequest(server, http.MethodPost, "/api/v1/watchlist", body)
		if i < 3 {
			require.Equal(t, http.StatusCreated, recorder.Code, ticker)
		} else {
			assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
		}
	}
}

func TestWatchlistValidation(t *testing.T) {
	server, _, _ := newTestServer(t)

	body := map[string]interface{}{
		"ticker":         "bad-ticker",
		"name":           "テスト",
		"metric_type":    "PER",
		"notify_channel": "DISCORD",
		"notify_timing":  "IMMEDIATE",
	}
	recorder := doRequest(server, http.MethodPost, "/api/v1/watchlist", body)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// 必須フィールド欠落
	recorder = doRequest(server, http.MethodPost, "/api/v1/watchlist", map[string]interface{}{"ticker": "7203:JP"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestWatchlistHistoryTimeline(t *testing.T) {
	server, _, _ := newTestServer(t)

	create := map[string]interface{}{
		"ticker":         "7203:JP",
		"name":           "トヨタ自動車",
		"metric_type":    "PER",
		"notify_channel": "DISCORD",
		"notify_timing":  "IMMEDIATE",
		"reason":         "初回登録",
	}
	require.Equal(t, http.StatusCreated, doRequest(server, http.MethodPost, "/api/v1/watchlist", create).Code)

	update := map[string]interface{}{"metric_type": "PSR", "reason": "指標見直し"}
	require.Equal(t, http.StatusOK, doRequest(server, http.MethodPatch, "/api/v1/watchlist/7203:JP", update).Code)

	recorder := doRequest(server, http.MethodDelete, "/api/v1/watchlist/7203:JP?reason=監視終了", nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = doRequest(server, http.MethodGet, "/api/v1/watchlist/history?ticker=7203:JP", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Records []*model.WatchlistHistoryRecord `json:"records"`
		Total   int64                           `json:"total"`
		Limit   int                             `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Len(t, response.Records, 3)
	assert.EqualValues(t, 3, response.Total)
	assert.Equal(t, 20, response.Limit)
	// 変更時刻の降順
	assert.Equal(t, model.WatchlistHistoryActionRemove, response.Records[0].Action)
	assert.Equal(t, "監視終了", response.Records[0].Reason)
	assert.Equal(t, model.WatchlistHistoryActionUpdate, response.Records[1].Action)
	assert.Equal(t, model.WatchlistHistoryActionAdd, response.Records[2].Action)
	assert.Equal(t, "初回登録", response.Records[2].Reason)

	recorder = doRequest(server, http.MethodGet, "/api/v1/watchlist/history?limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Len(t, response.Records, 1)
	assert.Equal(t, model.WatchlistHistoryActionUpdate, response.Records[0].Action)
	assert.EqualValues(t, 3, response.Total)

	recorder = doRequest(server, http.MethodGet, "/api/v1/watchlist/history?ticker=bad-ticker", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestNotificationTimeline(t *testing.T) {
	server, store, _ := newTestServer(t)

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	entries := []*model.NotificationLogEntry{
		{EntryID: "a1", Ticker: "7203:JP", Category: "PER割安", ConditionKey: "PER:1Y+3M", Channel: "DISCORD", SentAt: base},
		{EntryID: "a2", Ticker: "7203:JP", Category: "超PER割安", ConditionKey: "PER:1Y+3M+1W", Channel: "DISCORD", SentAt: base.Add(3 * time.Hour)},
		{EntryID: "a3", Ticker: "6758:JP", Category: "PSR割安", ConditionKey: "PSR:3M+1W", Channel: "LINE", SentAt: base.Add(time.Hour)},
	}
	for _, entry := range entries {
		require.NoError(t, store.NotificationLog().Append(entry))
	}

	recorder := doRequest(server, http.MethodGet, "/api/v1/notifications?ticker=7203:JP", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Entries []*model.NotificationLogEntry `json:"entries"`
		Total   int64                         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Len(t, response.Entries, 2)
	assert.EqualValues(t, 2, response.Total)
	// 送信時刻の降順
	assert.Equal(t, "a2", response.Entries[0].EntryID)

	from := base.Add(30 * time.Minute).Format(time.RFC3339)
	recorder = doRequest(server, http.MethodGet, "/api/v1/notifications?from="+from, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Len(t, response.Entries, 2)

	recorder = doRequest(server, http.MethodGet, "/api/v1/notifications?from=not-a-time", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestLatestSignals(t *testing.T) {
	server, store, _ := newTestServer(t)

	states := []*model.SignalState{
		{Ticker: "7203:JP", TradeDate: "2026-02-09", Category: "PER割安", Combo: "1Y+3M", StreakDays: 1},
		{Ticker: "7203:JP", TradeDate: "2026-02-10", Category: "超PER割安", Combo: "1Y+3M+1W", IsStrong: true, StreakDays: 2},
		{Ticker: "6758:JP", TradeDate: "2026-02-10", StreakDays: 0},
	}
	for _, state := range states {
		require.NoError(t, store.SignalState().Upsert(state))
	}

	recorder := doRequest(server, http.MethodGet, "/api/v1/signals", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var listResponse struct {
		Signals []*model.SignalState `json:"signals"`
		Count   int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &listResponse))
	assert.Equal(t, 2, listResponse.Count)

	recorder = doRequest(server, http.MethodGet, "/api/v1/signals/7203:JP", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var state model.SignalState
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &state))
	assert.Equal(t, "2026-02-10", state.TradeDate)
	assert.True(t, state.IsStrong)

	recorder = doRequest(server, http.MethodGet, "/api/v1/signals/9999:JP", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHealthEndpoint(t *testing.T) {
	server, _, health := newTestServer(t)

	health.Register("Shikiho")
	health.ReportSuccess("Shikiho")

	recorder := doRequest(server, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	health.ReportFailure("Shikiho", "timeout")
	recorder = doRequest(server, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}
