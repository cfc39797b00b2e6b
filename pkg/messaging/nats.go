package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// 通知イベントのサブジェクト
const (
	SubjectNotificationSent = "notifications.sent"
	SubjectPipelineResult   = "notifications.pipeline_result"
)

// NATSClient NATS JetStreamクライアント
// 通知イベントの発行に使う。接続先が未設定の構成では生成しないこと。
type NATSClient struct {
	conn      *nats.Conn
	jetStream jetstream.JetStream
	ctx       context.Context
	cancel    context.CancelFunc
	log       zerolog.Logger
}

// NewNATSClient NATSクライアントを生成する
func NewNATSClient(natsURL, clientName string, log zerolog.Logger) (*NATSClient, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(clientName),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS切断")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS再接続")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("NATS接続に失敗: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("JetStream初期化に失敗: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &NATSClient{
		conn:      nc,
		jetStream: js,
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
	}

	if err := client.setupStream(); err != nil {
		log.Warn().Err(err).Msg("通知ストリームの設定失敗")
	}
	return client, nil
}

// setupStream 通知イベント用のStreamを用意する
func (c *NATSClient) setupStream() error {
	_, err := c.jetStream.CreateOrUpdateStream(c.ctx, jetstream.StreamConfig{
		Name:        "NOTIFICATIONS_STREAM",
		Subjects:    []string{"notifications.*"},
		Description: "通知イベントストリーム",
		Retention:   jetstream.LimitsPolicy,
		MaxMsgs:     50000,
		MaxBytes:    50 * 1024 * 1024,
		MaxAge:      7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("Stream作成に失敗: %w", err)
	}
	return nil
}

// Publish サブジェクトへイベントを発行する
func (c *NATSClient) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("イベントの直列化に失敗: %w", err)
	}
	if _, err := c.jetStream.Publish(c.ctx, subject, payload); err != nil {
		return fmt.Errorf("%sへの発行に失敗: %w", subject, err)
	}
	c.log.Debug().Str("subject", subject).Int("bytes", len(payload)).Msg("イベント発行")
	return nil
}

// IsConnected 接続状態を返す
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close 接続を閉じる
func (c *NATSClient) Close() {
	c.cancel()
	if c.conn != nil {
		c.conn.Close()
	}
}
