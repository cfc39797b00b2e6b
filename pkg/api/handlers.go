package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"KabuRadar/pkg/database"
	"KabuRadar/pkg/model"
	"KabuRadar/pkg/monitor"
	"KabuRadar/pkg/watchlist"
)

const (
	defaultTimelineLimit = 50
	defaultHistoryLimit  = 20
	maxHistoryLimit      = 100
)

// NotificationTimeline 通知タイムラインの参照先
type NotificationTimeline interface {
	ListTimeline(query database.TimelineQuery) ([]*model.NotificationLogEntry, error)
	CountTimeline(query database.TimelineQuery) (int64, error)
}

// WatchlistHistoryTimeline 監視銘柄変更履歴の参照先
type WatchlistHistoryTimeline interface {
	ListTimeline(query database.WatchlistHistoryQuery) ([]*model.WatchlistHistoryRecord, error)
	CountTimeline(query database.WatchlistHistoryQuery) (int64, error)
}

// SignalStateReader 最新シグナル状態の参照先
type SignalStateReader interface {
	GetLatest(ticker string) (*model.SignalState, error)
	ListLatest() ([]*model.SignalState, error)
}

// Handlers APIのリクエストハンドラ群
type Handlers struct {
	watchlist    *watchlist.Service
	history      WatchlistHistoryTimeline
	timeline     NotificationTimeline
	signalStates SignalStateReader
	health       *monitor.SourceHealth
	log          zerolog.Logger
}

// NewHandlers ハンドラ群を生成する
func NewHandlers(
	watchlistService *watchlist.Service,
	history WatchlistHistoryTimeline,
	timeline NotificationTimeline,
	signalStates SignalStateReader,
	health *monitor.SourceHealth,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		watchlist:    watchlistService,
		history:      history,
		timeline:     timeline,
		signalStates: signalStates,
		health:       health,
		log:          log,
	}
}

type createWatchlistRequest struct {
	Ticker        string `json:"ticker" binding:"required"`
	Name          string `json:"name" binding:"required"`
	MetricType    string `json:"metric_type" binding:"required"`
	NotifyChannel string `json:"notify_channel" binding:"required"`
	NotifyTiming  string `json:"notify_timing" binding:"required"`
	AIEnabled     bool   `json:"ai_enabled"`
	IsActive      *bool  `json:"is_active"`
	Reason        string `json:"reason"`
}

type updateWatchlistRequest struct {
	Name          *string `json:"name"`
	MetricType    *string `json:"metric_type"`
	NotifyChannel *string `json:"notify_channel"`
	NotifyTiming  *string `json:"notify_timing"`
	AIEnabled     *bool   `json:"ai_enabled"`
	IsActive      *bool   `json:"is_active"`
	Reason        string  `json:"reason"`
}

// ListWatchlist GET /api/v1/watchlist
func (h *Handlers) ListWatchlist(c *gin.Context) {
	items, err := h.watchlist.ListItems()
	if err != nil {
		h.serverError(c, err, "監視銘柄一覧取得失敗")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// CreateWatchlistItem POST /api/v1/watchlist
func (h *Handlers) CreateWatchlistItem(c *gin.Context) {
	var req createWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	item, err := h.watchlist.AddItem(req.Ticker, req.Name, req.MetricType, req.NotifyChannel, req.NotifyTiming, req.AIEnabled, isActive, req.Reason)
	if err != nil {
		h.watchlistError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetWatchlistItem GET /api/v1/watchlist/:ticker
func (h *Handlers) GetWatchlistItem(c *gin.Context) {
	item, err := h.watchlist.GetItem(c.Param("ticker"))
	if err != nil {
		h.watchlistError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateWatchlistItem PATCH /api/v1/watchlist/:ticker
func (h *Handlers) UpdateWatchlistItem(c *gin.Context) {
	var req updateWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.watchlist.UpdateItem(c.Param("ticker"), watchlist.ItemUpdate{
		Name:          req.Name,
		MetricType:    req.MetricType,
		NotifyChannel: req.NotifyChannel,
		NotifyTiming:  req.NotifyTiming,
		AIEnabled:     req.AIEnabled,
		IsActive:      req.IsActive,
	}, req.Reason)
	if err != nil {
		h.watchlistError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteWatchlistItem DELETE /api/v1/watchlist/:ticker
func (h *Handlers) DeleteWatchlistItem(c *gin.Context) {
	if err := h.watchlist.DeleteItem(c.Param("ticker"), c.Query("reason")); err != nil {
		h.watchlistError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListWatchlistHistory GET /api/v1/watchlist/history
// クエリ: ticker, limit (1〜100、既定20), offset
func (h *Handlers) ListWatchlistHistory(c *gin.Context) {
	query := database.WatchlistHistoryQuery{
		Limit:  queryInt(c, "limit", defaultHistoryLimit),
		Offset: queryInt(c, "offset", 0),
	}
	if query.Limit < 1 {
		query.Limit = defaultHistoryLimit
	}
	if query.Limit > maxHistoryLimit {
		query.Limit = maxHistoryLimit
	}

	if ticker := c.Query("ticker"); ticker != "" {
		normalized, err := model.NormalizeTicker(ticker)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		query.Ticker = normalized
	}

	records, err := h.history.ListTimeline(query)
	if err != nil {
		h.serverError(c, err, "変更履歴取得失敗")
		return
	}
	total, err := h.history.CountTimeline(query)
	if err != nil {
		h.serverError(c, err, "変更履歴件数取得失敗")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"limit":   query.Limit,
		"offset":  query.Offset,
	})
}

// ListNotifications GET /api/v1/notifications
// クエリ: ticker, limit, offset, from, to (RFC3339)
func (h *Handlers) ListNotifications(c *gin.Context) {
	query := database.TimelineQuery{
		Ticker: c.Query("ticker"),
		Limit:  queryInt(c, "limit", defaultTimelineLimit),
		Offset: queryInt(c, "offset", 0),
	}

	if from := c.Query("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fromはRFC3339形式が必要です"})
			return
		}
		query.SentAtFrom = &parsed
	}
	if to := c.Query("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "toはRFC3339形式が必要です"})
			return
		}
		query.SentAtTo = &parsed
	}

	entries, err := h.timeline.ListTimeline(query)
	if err != nil {
		h.serverError(c, err, "通知タイムライン取得失敗")
		return
	}
	total, err := h.timeline.CountTimeline(query)
	if err != nil {
		h.serverError(c, err, "通知件数取得失敗")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"limit":   query.Limit,
		"offset":  query.Offset,
	})
}

// ListLatestSignals GET /api/v1/signals
func (h *Handlers) ListLatestSignals(c *gin.Context) {
	states, err := h.signalStates.ListLatest()
	if err != nil {
		h.serverError(c, err, "最新シグナル一覧取得失敗")
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": states, "count": len(states)})
}

// GetLatestSignal GET /api/v1/signals/:ticker
func (h *Handlers) GetLatestSignal(c *gin.Context) {
	ticker, err := model.NormalizeTicker(c.Param("ticker"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.signalStates.GetLatest(ticker)
	if err != nil {
		h.serverError(c, err, "最新シグナル取得失敗")
		return
	}
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "シグナル状態がありません: " + ticker})
		return
	}
	c.JSON(http.StatusOK, state)
}

// Health GET /healthz
func (h *Handlers) Health(c *gin.Context) {
	status := http.StatusOK
	overall := "ok"
	var sources []*monitor.SourceStatus

	if h.health != nil {
		sources = h.health.AllStatuses()
		if !h.health.Healthy() {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"sources": sources,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) watchlistError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, watchlist.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, watchlist.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, watchlist.ErrLimitExceeded):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func (h *Handlers) serverError(c *gin.Context, err error, message string) {
	h.log.Error().Err(err).Msg(message)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
