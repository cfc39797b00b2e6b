package marketdata

import (
	"fmt"
	"strings"

	"KabuRadar/pkg/model"
)

// Source 市場データの取得元
type Source interface {
	SourceName() string
	FetchSnapshot(ticker string) (*model.MarketDataSnapshot, error)
}

// FetchError 単一ソースの取得失敗
type FetchError struct {
	Source string
	Ticker string
	Reason string
}

// Error errorの実装
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s failed for %s: %s", e.Source, e.Ticker, e.Reason)
}

// NewFetchError 取得失敗エラーを生成する
func NewFetchError(source, ticker, reason string) *FetchError {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		trimmed = "unknown error"
	}
	return &FetchError{Source: source, Ticker: ticker, Reason: trimmed}
}

// UnavailableError 全ソースの取得失敗（各ソースの失敗理由を集約する）
type UnavailableError struct {
	Ticker  string
	Reasons []string
}

// Error errorの実装
func (e *UnavailableError) Error() string {
	message := "no sources configured"
	if len(e.Reasons) > 0 {
		message = strings.Join(e.Reasons, "; ")
	}
	return fmt.Sprintf("all market data sources failed for %s: %s", e.Ticker, message)
}
