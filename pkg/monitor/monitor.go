package monitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// 健康状態
const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// SourceStatus 市場データソース1つの健康状態
type SourceStatus struct {
	Source              string    `json:"source"`
	Status              string    `json:"status"`
	LastChecked         time.Time `json:"last_checked"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

// SourceHealth 市場データソースの健康状態レジストリ
// marketdata.HealthReporterとしてフォールバック取得系から成否を受け取る。
type SourceHealth struct {
	sources   map[string]*SourceStatus
	mutex     sync.RWMutex
	now       func() time.Time
	log       zerolog.Logger
	alertFunc func(source, reason string)
}

// NewSourceHealth レジストリを生成する
func NewSourceHealth(log zerolog.Logger) *SourceHealth {
	return &SourceHealth{
		sources: make(map[string]*SourceStatus),
		now:     time.Now,
		log:     log,
	}
}

// WithAlertFunc 不健康への遷移時に呼ぶ通知先を設定する
func (h *SourceHealth) WithAlertFunc(alertFunc func(source, reason string)) *SourceHealth {
	h.alertFunc = alertFunc
	return h
}

// Register ソースを事前登録する（状態はunknown）
func (h *SourceHealth) Register(sources ...string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, source := range sources {
		if _, ok := h.sources[source]; !ok {
			h.sources[source] = &SourceStatus{Source: source, Status: StatusUnknown, LastChecked: h.now()}
		}
	}
}

// ReportSuccess 取得成功を記録する
func (h *SourceHealth) ReportSuccess(source string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	status := h.ensure(source)
	status.Status = StatusHealthy
	status.LastChecked = h.now()
	status.ConsecutiveFailures = 0
	status.LastError = ""
}

// ReportFailure 取得失敗を記録し、不健康へ遷移した場合のみ通知する
func (h *SourceHealth) ReportFailure(source, reason string) {
	h.mutex.Lock()
	status := h.ensure(source)
	previous := status.Status
	status.Status = StatusUnhealthy
	status.LastChecked = h.now()
	status.ConsecutiveFailures++
	status.LastError = reason
	alertFunc := h.alertFunc
	h.mutex.Unlock()

	h.log.Warn().Str("source", source).Str("reason", reason).Msg("データソース失敗記録")
	if previous != StatusUnhealthy && alertFunc != nil {
		alertFunc(source, reason)
	}
}

// Status 1ソースの状態を返す（未登録はnil）
func (h *SourceHealth) Status(source string) *SourceStatus {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	status, ok := h.sources[source]
	if !ok {
		return nil
	}
	copied := *status
	return &copied
}

// AllStatuses 全ソースの状態を返す
func (h *SourceHealth) AllStatuses() []*SourceStatus {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	statuses := make([]*SourceStatus, 0, len(h.sources))
	for _, status := range h.sources {
		copied := *status
		statuses = append(statuses, &copied)
	}
	return statuses
}

// Healthy 全ソースが不健康ではないか
func (h *SourceHealth) Healthy() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for _, status := range h.sources {
		if status.Status != StatusUnhealthy {
			return true
		}
	}
	return len(h.sources) == 0
}

func (h *SourceHealth) ensure(source string) *SourceStatus {
	status, ok := h.sources[source]
	if !ok {
		status = &SourceStatus{Source: source, Status: StatusUnknown}
		h.sources[source] = status
	}
	return status
}
