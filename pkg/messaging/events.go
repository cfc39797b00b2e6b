package messaging

import (
	"time"

	"github.com/rs/zerolog"

	"KabuRadar/pkg/notification"
	"KabuRadar/pkg/pipeline"
)

// NotificationSentEvent 通知送信イベント
type NotificationSentEvent struct {
	Channel string    `json:"channel"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// PipelineResultEvent パイプライン実行の集計イベント
type PipelineResultEvent struct {
	RunType    string          `json:"run_type"`
	TradeDate  string          `json:"trade_date,omitempty"`
	Result     pipeline.Result `json:"result"`
	FinishedAt time.Time       `json:"finished_at"`
}

// EventPublisher 通知イベントの発行先
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

// PublishPipelineResult パイプライン実行結果イベントを発行する
// 発行失敗は通知処理を止めず、ログに残すだけにする。
func PublishPipelineResult(publisher EventPublisher, runType, tradeDate string, result pipeline.Result, log zerolog.Logger) {
	if publisher == nil {
		return
	}
	event := PipelineResultEvent{
		RunType:    runType,
		TradeDate:  tradeDate,
		Result:     result,
		FinishedAt: time.Now().UTC(),
	}
	if err := publisher.Publish(SubjectPipelineResult, event); err != nil {
		log.Warn().Err(err).Str("run_type", runType).Msg("実行結果イベント発行失敗")
	}
}

// EventSender 送信成功時にイベントを発行するセンダーのデコレータ
type EventSender struct {
	inner     notification.MessageSender
	publisher EventPublisher
	channel   string
	log       zerolog.Logger
}

// NewEventSender イベント発行つきセンダーを生成する
func NewEventSender(inner notification.MessageSender, publisher EventPublisher, channel string, log zerolog.Logger) *EventSender {
	return &EventSender{inner: inner, publisher: publisher, channel: channel, log: log}
}

// Send メッセージを送信し、成功したらイベントを発行する
func (s *EventSender) Send(message string) error {
	if err := s.inner.Send(message); err != nil {
		return err
	}
	if s.publisher != nil {
		event := NotificationSentEvent{Channel: s.channel, Body: message, SentAt: time.Now().UTC()}
		if err := s.publisher.Publish(SubjectNotificationSent, event); err != nil {
			s.log.Warn().Err(err).Str("channel", s.channel).Msg("送信イベント発行失敗")
		}
	}
	return nil
}
