package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// LineSender LINE互換Webhookへの送信
// DiscordのWebhookと同じく本文をJSONでPOSTする。
type LineSender struct {
	webhookURL string
	client     *http.Client
	log        zerolog.Logger
}

// NewLineSender LINE送信者を生成する
func NewLineSender(webhookURL string, timeoutSec int, log zerolog.Logger) *LineSender {
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &LineSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		log:        log,
	}
}

// Send メッセージを送信する
func (s *LineSender) Send(message string) error {
	payload, err := json.Marshal(map[string]any{
		"messages": []map[string]string{{"type": "text", "text": message}},
	})
	if err != nil {
		return fmt.Errorf("LINE通知ペイロード生成失敗: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		s.log.Error().Err(err).Msg("LINE通知失敗")
		return fmt.Errorf("LINE通知に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("LINE通知に失敗しました: HTTPステータス %d", resp.StatusCode)
	}
	return nil
}
