package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job 定期実行するジョブ
type Job struct {
	Name string
	Spec string
	Run  func() error
}

// Scheduler cronベースのジョブスケジューラ
// 指定タイムゾーン（通常はAsia/Tokyo）でcron書式を解釈する。
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New スケジューラを生成する
func New(timezone string, log zerolog.Logger) (*Scheduler, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーン読み込み失敗: %w", err)
	}

	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithLocation(location)),
		log:  log,
	}, nil
}

// AddJob ジョブを登録する
func (s *Scheduler) AddJob(job Job) error {
	_, err := s.cron.AddFunc(job.Spec, func() {
		started := time.Now()
		s.log.Info().Str("job", job.Name).Msg("ジョブ開始")

		if err := job.Run(); err != nil {
			s.log.Error().Err(err).Str("job", job.Name).Msg("ジョブ失敗")
			return
		}

		s.log.Info().
			Str("job", job.Name).
			Dur("elapsed", time.Since(started)).
			Msg("ジョブ完了")
	})
	if err != nil {
		return fmt.Errorf("ジョブ登録失敗 (%s): %w", job.Name, err)
	}

	s.log.Info().Str("job", job.Name).Str("spec", job.Spec).Msg("ジョブ登録")
	return nil
}

// Start スケジューラを起動する
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("スケジューラ起動")
}

// Stop スケジューラを停止し、実行中ジョブの完了を待つ
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("スケジューラ停止")
}
