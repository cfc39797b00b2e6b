package app

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KabuRadar/pkg/config"
	"KabuRadar/pkg/messaging"
	"KabuRadar/pkg/model"
	"KabuRadar/pkg/notification"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Timezone = "Asia/Tokyo"
	cfg.Database.Driver = "memory"
	cfg.Signal.Window1WDays = 5
	cfg.Signal.Window3MDays = 63
	cfg.Signal.Window1YDays = 252
	cfg.Signal.CooldownHours = 2
	cfg.MarketData.TimeoutSec = 5
	cfg.Notify.TimeoutSec = 5
	return cfg
}

func TestNewStoresMemory(t *testing.T) {
	stores, err := NewStores(memoryConfig())
	require.NoError(t, err)
	require.NoError(t, stores.Close())

	require.NoError(t, stores.Watchlist.Create(&model.WatchlistItem{
		Ticker:        "7203:JP",
		Name:          "トヨタ自動車",
		MetricType:    model.MetricTypePER,
		NotifyChannel: model.NotifyChannelDiscord,
		NotifyTiming:  model.NotifyTimingImmediate,
		IsActive:      true,
	}))
	items, err := stores.Watchlist.ListAll()
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NotNil(t, stores.WatchlistHistory)
}

func TestNewStoresUnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "sqlite"
	_, err := NewStores(cfg)
	assert.Error(t, err)
}

func TestEnabledChannels(t *testing.T) {
	cfg := memoryConfig()
	application, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer application.Close()

	assert.Empty(t, application.enabledChannels())

	cfg.Notify.DiscordWebhookURL = "https://discord.example/webhook"
	assert.Equal(t, []string{"DISCORD"}, application.enabledChannels())

	cfg.Notify.LineWebhookURL = "https://line.example/webhook"
	assert.Equal(t, []string{"DISCORD", "LINE"}, application.enabledChannels())
}

func TestSenderForChannel(t *testing.T) {
	cfg := memoryConfig()
	cfg.Notify.DiscordWebhookURL = "https://discord.example/webhook"
	cfg.Notify.LineWebhookURL = "https://line.example/webhook"

	application, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer application.Close()

	_, isDiscord := application.senderFor("DISCORD").(*notification.DiscordSender)
	assert.True(t, isDiscord)
	_, isLine := application.senderFor("LINE").(*notification.LineSender)
	assert.True(t, isLine)

	// NATS接続時はイベント発行つきセンダーで包む
	application.publisher = stubPublisher{}
	_, isEventSender := application.senderFor("DISCORD").(*messaging.EventSender)
	assert.True(t, isEventSender)
}

type stubPublisher struct{}

func (stubPublisher) Publish(subject string, data interface{}) error { return nil }

func TestRunDailyRejectsBadDate(t *testing.T) {
	application, err := New(memoryConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer application.Close()

	_, err = application.RunDaily("2026/02/10", "ALL")
	assert.Error(t, err)
}
