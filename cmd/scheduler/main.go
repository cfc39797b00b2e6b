package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"KabuRadar/pkg/app"
	"KabuRadar/pkg/config"
	"KabuRadar/pkg/logger"
	"KabuRadar/pkg/pipeline"
	"KabuRadar/pkg/scheduler"
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

	sched, err := scheduler.New(cfg.App.Timezone, logg)
	if err != nil {
		logg.Fatal().Err(err).Msg("スケジューラ初期化失敗")
	}

	jobs := []scheduler.Job{
		{
			Name: "daily-evaluation",
			Spec: cfg.Scheduler.DailySpec,
			Run: func() error {
				_, err := application.RunDaily("", pipeline.ExecutionModeDaily)
				return err
			},
		},
		{
			Name: "night21-evaluation",
			Spec: cfg.Scheduler.Night21Spec,
			Run: func() error {
				_, err := application.RunDaily("", pipeline.ExecutionModeAt21)
				return err
			},
		},
		{
			Name: "weekly-earnings",
			Spec: cfg.Scheduler.WeeklyEarningsSpec,
			Run: func() error {
				if err := application.SyncEarningsCalendar(); err != nil {
					logg.Warn().Err(err).Msg("決算カレンダー同期は不完全なまま通知します")
				}
				_, err := application.RunWeeklyEarnings("")
				return err
			},
		},
		{
			Name: "tomorrow-earnings",
			Spec: cfg.Scheduler.TomorrowEarningsSpec,
			Run: func() error {
				_, err := application.RunTomorrowEarnings("")
				return err
			},
		},
	}
	for _, job := range jobs {
		if err := sched.AddJob(job); err != nil {
			logg.Fatal().Err(err).Msg("ジョブ登録失敗")
		}
	}

	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logg.Info().Str("signal", sig.String()).Msg("スケジューラ停止開始")
	sched.Stop()
}
