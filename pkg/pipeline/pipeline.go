package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"KabuRadar/pkg/earnings"
	"KabuRadar/pkg/marketdata"
	"KabuRadar/pkg/metrics"
	"KabuRadar/pkg/model"
	"KabuRadar/pkg/notification"
	"KabuRadar/pkg/signal"
)

// ExecutionMode パイプライン実行時の通知タイミング選別
type ExecutionMode string

const (
	ExecutionModeAll   ExecutionMode = "ALL"
	ExecutionModeDaily ExecutionMode = "DAILY"
	ExecutionModeAt21  ExecutionMode = "AT_21"
)

// ParseExecutionMode 文字列から実行モードへ変換する
func ParseExecutionMode(value string) (ExecutionMode, error) {
	switch ExecutionMode(strings.ToUpper(strings.TrimSpace(value))) {
	case ExecutionModeAll:
		return ExecutionModeAll, nil
	case ExecutionModeDaily:
		return ExecutionModeDaily, nil
	case ExecutionModeAt21:
		return ExecutionModeAt21, nil
	}
	return "", fmt.Errorf("実行モードが不正です: %s", value)
}

// DailyMetricsRepository 日次指標の読み書き
type DailyMetricsRepository interface {
	UpsertDailyMetric(metric *model.DailyMetric) error
	ListRecentDailyMetrics(ticker string, limit int) ([]*model.DailyMetric, error)
}

// MediansRepository ローリング中央値の保存
type MediansRepository interface {
	UpsertMedians(medians *model.MetricMedians) error
}

// SignalStateRepository シグナル状態の読み書き
type SignalStateRepository interface {
	Upsert(state *model.SignalState) error
	GetLatest(ticker string) (*model.SignalState, error)
}

// NotificationLogRepository 通知ログの読み書き
type NotificationLogRepository interface {
	Append(entry *model.NotificationLogEntry) error
	ListRecent(ticker string, limit int) ([]*model.NotificationLogEntry, error)
}

// クールダウン判定時に参照する直近通知ログの件数
const recentLogLimit = 100

// Result パイプライン実行の集計
type Result struct {
	ProcessedTickers     int `json:"processed_tickers"`
	SentNotifications    int `json:"sent_notifications"`
	SkippedNotifications int `json:"skipped_notifications"`
	Errors               int `json:"errors"`
}

// Merge 2つの集計を足し合わせる
func (r Result) Merge(other Result) Result {
	return Result{
		ProcessedTickers:     r.ProcessedTickers + other.ProcessedTickers,
		SentNotifications:    r.SentNotifications + other.SentNotifications,
		SkippedNotifications: r.SkippedNotifications + other.SkippedNotifications,
		Errors:               r.Errors + other.Errors,
	}
}

// DailyConfig 日次パイプラインの実行パラメータ
type DailyConfig struct {
	TradeDate     string
	Window1WDays  int
	Window3MDays  int
	Window1YDays  int
	CooldownHours int
	Now           time.Time
	Channel       string
	ExecutionMode ExecutionMode
}

// Pipeline 監視銘柄の評価と通知を担う
type Pipeline struct {
	marketData      marketdata.Source
	dailyMetrics    DailyMetricsRepository
	medians         MediansRepository
	signalStates    SignalStateRepository
	notificationLog NotificationLogRepository
	sender          notification.MessageSender
	log             zerolog.Logger
}

// New パイプラインを生成する
func New(
	marketData marketdata.Source,
	dailyMetrics DailyMetricsRepository,
	medians MediansRepository,
	signalStates SignalStateRepository,
	notificationLog NotificationLogRepository,
	sender notification.MessageSender,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		marketData:      marketData,
		dailyMetrics:    dailyMetrics,
		medians:         medians,
		signalStates:    signalStates,
		notificationLog: notificationLog,
		sender:          sender,
		log:             log,
	}
}

// RunDaily 日次パイプラインを実行する
// 銘柄ごとに隔離して処理し、1銘柄の失敗が他の銘柄に波及しないようにする。
func (p *Pipeline) RunDaily(watchlistItems []*model.WatchlistItem, cfg DailyConfig) Result {
	runID := uuid.NewString()
	runLog := p.log.With().Str("run_id", runID).Str("trade_date", cfg.TradeDate).Logger()
	runLog.Info().Int("watchlist", len(watchlistItems)).Msg("日次パイプライン開始")

	var result Result
	for _, item := range watchlistItems {
		if !item.IsActive {
			continue
		}
		if !channelEnabled(item, cfg.Channel) {
			continue
		}
		if !shouldDispatchForTiming(item.NotifyTiming, cfg.ExecutionMode) {
			continue
		}

		tickerResult, err := p.processTickerIsolated(item, cfg, runLog)
		if err != nil {
			runLog.Error().Err(err).Str("ticker", item.Ticker).Msg("銘柄処理失敗")
			tickerResult = Result{ProcessedTickers: 1, Errors: 1}
		}
		result = result.Merge(tickerResult)
	}

	runLog.Info().
		Int("processed", result.ProcessedTickers).
		Int("sent", result.SentNotifications).
		Int("skipped", result.SkippedNotifications).
		Int("errors", result.Errors).
		Msg("日次パイプライン完了")
	return result
}

// RunWeeklyEarnings 翌週決算の通知パイプラインを実行する
func (p *Pipeline) RunWeeklyEarnings(
	today string,
	watchlistItems []*model.WatchlistItem,
	entries []*model.EarningsCalendarEntry,
	cooldownHours int,
	now time.Time,
	channel string,
	executionMode ExecutionMode,
) (Result, error) {
	targetEntries, err := earnings.SelectNextWeekEntries(entries, today)
	if err != nil {
		return Result{}, err
	}
	return p.runEarnings(watchlistItems, targetEntries, model.CategoryEarningsWeekly, cooldownHours, now, channel, executionMode), nil
}

// RunTomorrowEarnings 翌日決算の通知パイプラインを実行する
func (p *Pipeline) RunTomorrowEarnings(
	today string,
	watchlistItems []*model.WatchlistItem,
	entries []*model.EarningsCalendarEntry,
	cooldownHours int,
	now time.Time,
	channel string,
	executionMode ExecutionMode,
) (Result, error) {
	targetEntries, err := earnings.SelectTomorrowEntries(entries, today)
	if err != nil {
		return Result{}, err
	}
	return p.runEarnings(watchlistItems, targetEntries, model.CategoryEarningsTomorrow, cooldownHours, now, channel, executionMode), nil
}

// processTickerIsolated 1銘柄の処理をpanicも含めて隔離する
func (p *Pipeline) processTickerIsolated(item *model.WatchlistItem, cfg DailyConfig, runLog zerolog.Logger) (result Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("銘柄処理中のpanic: %v", recovered)
		}
	}()
	return p.processTicker(item, cfg, runLog)
}

func (p *Pipeline) processTicker(item *model.WatchlistItem, cfg DailyConfig, runLog zerolog.Logger) (Result, error) {
	tradeDate, err := model.NormalizeTradeDate(cfg.TradeDate)
	if err != nil {
		return Result{}, err
	}

	snapshot, err := p.marketData.FetchSnapshot(item.Ticker)
	if err != nil {
		runLog.Error().Err(err).Str("ticker", item.Ticker).Msg("市場データ取得失敗")
		message, composeErr := notification.ComposeDataUnknownMessage(
			item.Ticker, item.Name, []string{"market_data_source"}, err.Error())
		if composeErr != nil {
			return Result{}, composeErr
		}
		sent, skipped, dispatchErr := p.dispatchWithCooldown(message, false, cfg.CooldownHours, cfg.Now, cfg.Channel, runLog)
		if dispatchErr != nil {
			return Result{}, dispatchErr
		}
		return Result{ProcessedTickers: 1, SentNotifications: sent, SkippedNotifications: skipped, Errors: 1}, nil
	}

	metricRow, err := metrics.BuildDailyMetric(item.Ticker, tradeDate, item.MetricType, snapshot)
	if err != nil {
		return Result{}, err
	}
	if err := p.dailyMetrics.UpsertDailyMetric(metricRow); err != nil {
		return Result{}, err
	}

	missingFields := metricRow.MissingFields(item.MetricType)
	if snapshot.EarningsDate == "" {
		missingFields = append(missingFields, "earnings_date")
	}
	if len(missingFields) > 0 {
		message, composeErr := notification.ComposeDataUnknownMessage(
			item.Ticker, item.Name, missingFields, "日次指標計算")
		if composeErr != nil {
			return Result{}, composeErr
		}
		sent, skipped, dispatchErr := p.dispatchWithCooldown(message, false, cfg.CooldownHours, cfg.Now, cfg.Channel, runLog)
		if dispatchErr != nil {
			return Result{}, dispatchErr
		}
		return Result{ProcessedTickers: 1, SentNotifications: sent, SkippedNotifications: skipped}, nil
	}

	recentMetrics, err := p.dailyMetrics.ListRecentDailyMetrics(metricRow.Ticker, cfg.Window1YDays)
	if err != nil {
		return Result{}, err
	}
	medians, err := metrics.CalculateMedians(
		metricRow.Ticker, tradeDate, item.MetricType, recentMetrics,
		cfg.Window1WDays, cfg.Window3MDays, cfg.Window1YDays, cfg.Now)
	if err != nil {
		return Result{}, err
	}
	if err := p.medians.UpsertMedians(medians); err != nil {
		return Result{}, err
	}

	evaluation, err := signal.Evaluate(metricRow.Ticker, tradeDate, item.MetricType, metricRow.MetricValue(item.MetricType), medians)
	if err != nil {
		return Result{}, err
	}
	previousState, err := p.signalStates.GetLatest(metricRow.Ticker)
	if err != nil {
		return Result{}, err
	}
	state := signal.BuildState(evaluation, previousState, cfg.Now)
	if err := p.signalStates.Upsert(state); err != nil {
		return Result{}, err
	}

	var sent, skipped int
	if state.HasSignal() && state.Combo != "" {
		message, composeErr := notification.ComposeSignalMessage(item.Name, state, medians)
		if composeErr != nil {
			return Result{}, composeErr
		}
		sent, skipped, err = p.dispatchWithCooldown(message, state.IsStrong, cfg.CooldownHours, cfg.Now, cfg.Channel, runLog)
		if err != nil {
			return Result{}, err
		}
	}

	return Result{ProcessedTickers: 1, SentNotifications: sent, SkippedNotifications: skipped}, nil
}

func (p *Pipeline) runEarnings(
	watchlistItems []*model.WatchlistItem,
	entries []*model.EarningsCalendarEntry,
	category string,
	cooldownHours int,
	now time.Time,
	channel string,
	executionMode ExecutionMode,
) Result {
	runID := uuid.NewString()
	runLog := p.log.With().Str("run_id", runID).Str("category", category).Logger()

	watchMap := make(map[string]*model.WatchlistItem, len(watchlistItems))
	for _, item := range watchlistItems {
		if item.IsActive {
			watchMap[item.Ticker] = item
		}
	}

	var result Result
	for _, entry := range entries {
		watchItem, ok := watchMap[entry.Ticker]
		if !ok {
			continue
		}
		if !channelEnabled(watchItem, channel) {
			continue
		}
		if !shouldDispatchForTiming(watchItem.NotifyTiming, executionMode) {
			continue
		}

		message, err := notification.ComposeEarningsMessage(
			entry.Ticker, watchItem.Name, entry.EarningsDate, entry.EarningsTime, category)
		if err != nil {
			runLog.Error().Err(err).Str("ticker", entry.Ticker).Msg("決算通知処理失敗")
			result = result.Merge(Result{ProcessedTickers: 1, Errors: 1})
			continue
		}
		sent, skipped, err := p.dispatchWithCooldown(message, false, cooldownHours, now, channel, runLog)
		if err != nil {
			runLog.Error().Err(err).Str("ticker", entry.Ticker).Msg("決算通知処理失敗")
			result = result.Merge(Result{ProcessedTickers: 1, Errors: 1})
			continue
		}
		result = result.Merge(Result{ProcessedTickers: 1, SentNotifications: sent, SkippedNotifications: skipped})
	}

	runLog.Info().
		Int("processed", result.ProcessedTickers).
		Int("sent", result.SentNotifications).
		Int("skipped", result.SkippedNotifications).
		Int("errors", result.Errors).
		Msg("決算パイプライン完了")
	return result
}

// dispatchWithCooldown クールダウン判定を通った通知だけを送信し、ログへ追記する
func (p *Pipeline) dispatchWithCooldown(
	message *model.NotificationMessage,
	isStrong bool,
	cooldownHours int,
	now time.Time,
	channel string,
	runLog zerolog.Logger,
) (sent, skipped int, err error) {
	recent, err := p.notificationLog.ListRecent(message.Ticker, recentLogLimit)
	if err != nil {
		return 0, 0, err
	}

	decision, err := signal.EvaluateCooldown(
		now, cooldownHours,
		message.Ticker, message.Category, message.ConditionKey, isStrong,
		recent)
	if err != nil {
		return 0, 0, err
	}
	if !decision.ShouldSend {
		runLog.Info().
			Str("ticker", message.Ticker).
			Str("category", message.Category).
			Str("reason", decision.Reason).
			Msg("通知スキップ")
		return 0, 1, nil
	}

	if err := p.sender.Send(message.Body); err != nil {
		return 0, 0, fmt.Errorf("通知送信に失敗: %w", err)
	}

	logEntry := &model.NotificationLogEntry{
		EntryID:      model.NotificationEntryID(message.Ticker, message.Category, message.ConditionKey, channel, now),
		Ticker:       message.Ticker,
		Category:     message.Category,
		ConditionKey: message.ConditionKey,
		SentAt:       now,
		Channel:      channel,
		PayloadHash:  message.PayloadHash(),
		IsStrong:     isStrong,
	}
	if err := p.notificationLog.Append(logEntry); err != nil {
		return 0, 0, err
	}
	return 1, 0, nil
}

// channelEnabled 監視銘柄の通知チャネル設定が実行チャネルを許可しているか
func channelEnabled(item *model.WatchlistItem, channel string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(channel))
	if item.NotifyChannel == model.NotifyChannelOff {
		return false
	}
	switch normalized {
	case string(model.NotifyChannelDiscord):
		return item.NotifyChannel == model.NotifyChannelDiscord || item.NotifyChannel == model.NotifyChannelBoth
	case string(model.NotifyChannelLine):
		return item.NotifyChannel == model.NotifyChannelLine || item.NotifyChannel == model.NotifyChannelBoth
	}
	return true
}

// shouldDispatchForTiming 通知タイミング設定が実行モードに合致しているか
func shouldDispatchForTiming(notifyTiming model.NotifyTiming, mode ExecutionMode) bool {
	if notifyTiming == model.NotifyTimingOff {
		return false
	}
	switch mode {
	case ExecutionModeAll:
		return true
	case ExecutionModeDaily:
		return notifyTiming == model.NotifyTimingImmediate
	default:
		return notifyTiming == model.NotifyTimingAt21
	}
}
