package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"KabuRadar/pkg/config"
	"KabuRadar/pkg/database"
	"KabuRadar/pkg/earnings"
	"KabuRadar/pkg/marketdata"
	"KabuRadar/pkg/messaging"
	"KabuRadar/pkg/model"
	"KabuRadar/pkg/monitor"
	"KabuRadar/pkg/notification"
	"KabuRadar/pkg/pipeline"
	"KabuRadar/pkg/watchlist"
)

// MetricsStore 日次指標と中央値の保存先
type MetricsStore interface {
	pipeline.DailyMetricsRepository
	pipeline.MediansRepository
}

// SignalStateStore シグナル状態の保存先（ダッシュボード参照を含む）
type SignalStateStore interface {
	pipeline.SignalStateRepository
	ListLatest() ([]*model.SignalState, error)
}

// NotificationLogStore 通知ログの保存先（タイムライン参照を含む）
type NotificationLogStore interface {
	pipeline.NotificationLogRepository
	ListTimeline(query database.TimelineQuery) ([]*model.NotificationLogEntry, error)
	CountTimeline(query database.TimelineQuery) (int64, error)
}

// EarningsStore 決算カレンダーの保存先
type EarningsStore interface {
	earnings.CalendarRepository
	ListAll() ([]*model.EarningsCalendarEntry, error)
}

// WatchlistHistoryStore 監視銘柄変更履歴の保存先（タイムライン参照を含む）
type WatchlistHistoryStore interface {
	watchlist.HistoryRepository
	ListTimeline(query database.WatchlistHistoryQuery) ([]*model.WatchlistHistoryRecord, error)
	CountTimeline(query database.WatchlistHistoryQuery) (int64, error)
}

// Stores 永続化層一式（driver設定でPostgreSQLとメモリを切り替える）
type Stores struct {
	Watchlist        watchlist.Repository
	WatchlistHistory WatchlistHistoryStore
	Metrics          MetricsStore
	SignalStates     SignalStateStore
	NotificationLog  NotificationLogStore
	Earnings         EarningsStore

	closeFunc func() error
}

// Close 永続化層を閉じる
func (s *Stores) Close() error {
	if s.closeFunc == nil {
		return nil
	}
	return s.closeFunc()
}

// NewStores driver設定に応じた永続化層を組み立てる
func NewStores(cfg *config.Config) (*Stores, error) {
	switch cfg.Database.Driver {
	case "memory":
		store := database.NewMemoryStore()
		return &Stores{
			Watchlist:        store.Watchlist(),
			WatchlistHistory: store.WatchlistHistory(),
			Metrics:          store.Metrics(),
			SignalStates:     store.SignalState(),
			NotificationLog:  store.NotificationLog(),
			Earnings:         store.EarningsCalendar(),
		}, nil
	case "postgres":
		db, err := database.NewPostgres(cfg)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Watchlist:        db.Watchlist(),
			WatchlistHistory: db.WatchlistHistory(),
			Metrics:          db.Metrics(),
			SignalStates:     db.SignalState(),
			NotificationLog:  db.NotificationLog(),
			Earnings:         db.EarningsCalendar(),
			closeFunc:        db.Close,
		}, nil
	}
	return nil, fmt.Errorf("未対応のデータベースドライバです: %s", cfg.Database.Driver)
}

// App アプリケーション全体の組み立て
type App struct {
	Config     *config.Config
	Log        zerolog.Logger
	Stores     *Stores
	MarketData marketdata.Source
	Health     *monitor.SourceHealth

	location   *time.Location
	publisher  messaging.EventPublisher
	natsClient *messaging.NATSClient
}

// New 設定からアプリケーションを組み立てる
// NATSのURLが未設定の場合はイベント発行なしで動作する。
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	location, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーン読み込み失敗: %w", err)
	}

	stores, err := NewStores(cfg)
	if err != nil {
		return nil, err
	}

	health := monitor.NewSourceHealth(log)
	marketData := marketdata.NewDefaultSource(cfg.MarketData.TimeoutSec, log).WithHealthReporter(health)

	app := &App{
		Config:     cfg,
		Log:        log,
		Stores:     stores,
		MarketData: marketData,
		Health:     health,
		location:   location,
	}

	if cfg.NATS.URL != "" {
		natsClient, err := messaging.NewNATSClient(cfg.NATS.URL, cfg.NATS.ClientID, log)
		if err != nil {
			stores.Close()
			return nil, err
		}
		app.natsClient = natsClient
		app.publisher = natsClient
	}

	return app, nil
}

// Close 保持している接続を閉じる
func (a *App) Close() {
	if a.natsClient != nil {
		a.natsClient.Close()
	}
	if err := a.Stores.Close(); err != nil {
		a.Log.Warn().Err(err).Msg("データベース切断失敗")
	}
}

// Today アプリのタイムゾーンにおける今日の日付を返す
func (a *App) Today() string {
	return time.Now().In(a.location).Format("2006-01-02")
}

// RunDaily 日次評価パイプラインを有効チャネルごとに実行する
func (a *App) RunDaily(tradeDate string, mode pipeline.ExecutionMode) (pipeline.Result, error) {
	if tradeDate == "" {
		tradeDate = a.Today()
	}
	normalizedDate, err := model.NormalizeTradeDate(tradeDate)
	if err != nil {
		return pipeline.Result{}, err
	}

	items, err := a.Stores.Watchlist.ListAll()
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("監視銘柄一覧の取得に失敗: %w", err)
	}

	var result pipeline.Result
	for _, channel := range a.enabledChannels() {
		p := pipeline.New(
			a.MarketData,
			a.Stores.Metrics,
			a.Stores.Metrics,
			a.Stores.SignalStates,
			a.Stores.NotificationLog,
			a.senderFor(channel),
			a.Log,
		)
		result = result.Merge(p.RunDaily(items, pipeline.DailyConfig{
			TradeDate:     normalizedDate,
			Window1WDays:  a.Config.Signal.Window1WDays,
			Window3MDays:  a.Config.Signal.Window3MDays,
			Window1YDays:  a.Config.Signal.Window1YDays,
			CooldownHours: a.Config.Signal.CooldownHours,
			Now:           time.Now().UTC(),
			Channel:       channel,
			ExecutionMode: mode,
		}))
	}

	messaging.PublishPipelineResult(a.publisher, "daily", normalizedDate, result, a.Log)
	return result, nil
}

// SyncEarningsCalendar 有効な監視銘柄の決算カレンダーを同期する
func (a *App) SyncEarningsCalendar() error {
	items, err := a.Stores.Watchlist.ListAll()
	if err != nil {
		return fmt.Errorf("監視銘柄一覧の取得に失敗: %w", err)
	}

	source := earnings.NewSnapshotCalendarSource(a.MarketData)
	now := time.Now().UTC()
	var failures int
	for _, item := range items {
		if !item.IsActive {
			continue
		}
		if _, err := earnings.SyncForTicker(item.Ticker, source, a.Stores.Earnings, now, a.Log); err != nil {
			a.Log.Warn().Err(err).Str("ticker", item.Ticker).Msg("決算カレンダー同期失敗")
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("決算カレンダー同期で%d銘柄が失敗しました", failures)
	}
	return nil
}

// RunWeeklyEarnings 来週決算の通知を有効チャネルごとに実行する
func (a *App) RunWeeklyEarnings(today string) (pipeline.Result, error) {
	return a.runEarnings(today, model.CategoryEarningsWeekly)
}

// RunTomorrowEarnings 明日決算の通知を有効チャネルごとに実行する
func (a *App) RunTomorrowEarnings(today string) (pipeline.Result, error) {
	return a.runEarnings(today, model.CategoryEarningsTomorrow)
}

func (a *App) runEarnings(today, category string) (pipeline.Result, error) {
	if today == "" {
		today = a.Today()
	}

	items, err := a.Stores.Watchlist.ListAll()
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("監視銘柄一覧の取得に失敗: %w", err)
	}
	entries, err := a.Stores.Earnings.ListAll()
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("決算カレンダーの取得に失敗: %w", err)
	}

	var result pipeline.Result
	for _, channel := range a.enabledChannels() {
		p := pipeline.New(
			a.MarketData,
			a.Stores.Metrics,
			a.Stores.Metrics,
			a.Stores.SignalStates,
			a.Stores.NotificationLog,
			a.senderFor(channel),
			a.Log,
		)

		var channelResult pipeline.Result
		if category == model.CategoryEarningsWeekly {
			channelResult, err = p.RunWeeklyEarnings(today, items, entries, a.Config.Signal.CooldownHours, time.Now().UTC(), channel, pipeline.ExecutionModeAll)
		} else {
			channelResult, err = p.RunTomorrowEarnings(today, items, entries, a.Config.Signal.CooldownHours, time.Now().UTC(), channel, pipeline.ExecutionModeAll)
		}
		if err != nil {
			return result, err
		}
		result = result.Merge(channelResult)
	}

	messaging.PublishPipelineResult(a.publisher, category, today, result, a.Log)
	return result, nil
}

// enabledChannels webhookが設定済みのチャネルを返す
func (a *App) enabledChannels() []string {
	var channels []string
	if a.Config.Notify.DiscordWebhookURL != "" {
		channels = append(channels, string(model.NotifyChannelDiscord))
	}
	if a.Config.Notify.LineWebhookURL != "" {
		channels = append(channels, string(model.NotifyChannelLine))
	}
	return channels
}

func (a *App) senderFor(channel string) notification.MessageSender {
	var sender notification.MessageSender
	switch channel {
	case string(model.NotifyChannelLine):
		sender = notification.NewLineSender(a.Config.Notify.LineWebhookURL, a.Config.Notify.TimeoutSec, a.Log)
	default:
		sender = notification.NewDiscordSender(a.Config.Notify.DiscordWebhookURL, a.Config.Notify.TimeoutSec, a.Config.Notify.RetryCount, a.Log)
	}
	if a.publisher != nil {
		return messaging.NewEventSender(sender, a.publisher, channel, a.Log)
	}
	return sender
}
