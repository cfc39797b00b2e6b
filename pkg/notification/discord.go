package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DiscordSender Discord Webhookへの送信
type DiscordSender struct {
	webhookURL string
	retryCount int
	client     *http.Client
	log        zerolog.Logger
}

// NewDiscordSender Discord送信者を生成する
func NewDiscordSender(webhookURL string, timeoutSec, retryCount int, log zerolog.Logger) *DiscordSender {
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &DiscordSender{
		webhookURL: webhookURL,
		retryCount: retryCount,
		client:     &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		log:        log,
	}
}

// Send メッセージを送信する（失敗時はretryCount回まで再試行）
func (s *DiscordSender) Send(message string) error {
	payload, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		return fmt.Errorf("Discord通知ペイロード生成失敗: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.retryCount; attempt++ {
		lastErr = s.post(payload)
		if lastErr == nil {
			return nil
		}
		s.log.Error().Err(lastErr).Int("attempt", attempt+1).Msg("Discord通知失敗")
	}
	return fmt.Errorf("Discord通知に失敗しました: %w", lastErr)
}

func (s *DiscordSender) post(payload []byte) error {
	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTPステータス %d", resp.StatusCode)
	}
	return nil
}
