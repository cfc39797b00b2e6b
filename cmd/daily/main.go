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
	tradeDate := flag.String("date", "", "評価対象の取引日 (YYYY-MM-DD、省略時は今日)")
	mode := flag.String("mode", string(pipeline.ExecutionModeAll), "実行モード (ALL / DAILY / AT_21)")
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

	executionMode, err := pipeline.ParseExecutionMode(*mode)
	if err != nil {
		logg.Fatal().Err(err).Msg("実行モード解析失敗")
	}

	application, err := app.New(cfg, logg)
	if err != nil {
		logg.Fatal().Err(err).Msg("アプリケーション初期化失敗")
	}

	result, err := application.RunDaily(*tradeDate, executionMode)
	if err != nil {
		application.Close()
		logg.Fatal().Err(err).Msg("日次パイプライン失敗")
	}

	logg.Info().
		Int("processed", result.ProcessedTickers).
		Int("sent", result.SentNotifications).
		Int("skipped", result.SkippedNotifications).
		Int("errors", result.Errors).
		Msg("日次パイプライン終了")

	application.Close()
	if result.Errors > 0 {
		os.Exit(1)
	}
}
