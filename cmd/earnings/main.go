package main

import (
	"flag"
	"log"
	"os"

	"KabuRadar/pkg/app"
	"KabuRadar/pkg/config"
	"KabuRadar/pkg/logger"
	"KabuRadar/pkg/pipeline"
)

func main() {
	runType := flag.String("run", "weekly", "実行種別 (weekly / tomorrow / sync)")
	today := flag.String("date", "", "基準日 (YYYY-MM-DD、省略時は今日)")
	flag.Parse()

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

	var result pipeline.Result
	switch *runType {
	case "sync":
		err = application.SyncEarningsCalendar()
	case "weekly":
		result, err = application.RunWeeklyEarnings(*today)
	case "tomorrow":
		result, err = application.RunTomorrowEarnings(*today)
	default:
		application.Close()
		logg.Fatal().Str("run", *runType).Msg("実行種別が不正です")
	}
	if err != nil {
		application.Close()
		logg.Fatal().Err(err).Str("run", *runType).Msg("決算通知パイプライン失敗")
	}

	logg.Info().
		Str("run", *runType).
		Int("processed", result.ProcessedTickers).
		Int("sent", result.SentNotifications).
		Int("skipped", result.SkippedNotifications).
		Int("errors", result.Errors).
		Msg("決算通知パイプライン終了")

	application.Close()
	if result.Errors > 0 {
		os.Exit(1)
	}
}
