package main

import (
	"log"
	"os"

	"KabuRadar/pkg/api"
	"KabuRadar/pkg/app"
	"KabuRadar/pkg/config"
	"KabuRadar/pkg/logger"
	"KabuRadar/pkg/watchlist"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("設定読み込み失敗: %v", err)
	}

	logg := logger.New(cfg.Log.Level, cfg.Log.Format)

	application, err := app.New(cfg, logg)
	if err != nil {
		logg.Fatal().Err(err).Msg("アプリケーション初期化失敗")
	}
	defer application.Close()

	service, err := watchlist.NewService(application.Stores.Watchlist, cfg.Watchlist.MaxItems)
	if err != nil {
		logg.Fatal().Err(err).Msg("監視銘柄サービス初期化失敗")
	}
	service.WithHistory(application.Stores.WatchlistHistory)

	handlers := api.NewHandlers(
		service,
		application.Stores.WatchlistHistory,
		application.Stores.NotificationLog,
		application.Stores.SignalStates,
		application.Health,
		logg,
	)

	server := api.NewServer(cfg, handlers, logg)
	if err := server.Run(); err != nil {
		logg.Fatal().Err(err).Msg("APIサーバ異常終了")
	}
}
