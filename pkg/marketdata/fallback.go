package marketdata

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"KabuRadar/pkg/model"
)

// HealthReporter ソースの成否を受け取る通知先（監視用、省略可）
type HealthReporter interface {
	ReportSuccess(source string)
	ReportFailure(source, reason string)
}

// FallbackSource ソースを順番に試し、最初に成功した結果を返す
// 全ソースが失敗した場合は各ソースの失敗理由を集約したUnavailableErrorを返す。
type FallbackSource struct {
	sources []Source
	health  HealthReporter
	log     zerolog.Logger
}

// NewFallbackSource フォールバック付きソースを生成する
func NewFallbackSource(sources []Source, log zerolog.Logger) *FallbackSource {
	return &FallbackSource{sources: sources, log: log}
}

// WithHealthReporter ソース成否の通知先を設定する
func (f *FallbackSource) WithHealthReporter(health HealthReporter) *FallbackSource {
	f.health = health
	return f
}

// SourceName ログ用のソース名
func (f *FallbackSource) SourceName() string {
	return "fallback"
}

// FetchSnapshot 市場データを取得する
func (f *FallbackSource) FetchSnapshot(ticker string) (*model.MarketDataSnapshot, error) {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	if len(f.sources) == 0 {
		return nil, &UnavailableError{Ticker: normalizedTicker, Reasons: []string{"source list is empty"}}
	}

	var reasons []string
	for _, source := range f.sources {
		snapshot, err := source.FetchSnapshot(normalizedTicker)
		if err == nil {
			f.reportSuccess(source.SourceName())
			return snapshot, nil
		}

		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			f.log.Warn().
				Str("source", source.SourceName()).
				Str("ticker", normalizedTicker).
				Str("reason", fetchErr.Reason).
				Msg("市場データ取得失敗")
			reasons = append(reasons, fetchErr.Error())
			f.reportFailure(source.SourceName(), fetchErr.Reason)
			continue
		}

		// 想定外のエラーも1ソースの失敗として隔離する
		f.log.Error().
			Err(err).
			Str("source", source.SourceName()).
			Str("ticker", normalizedTicker).
			Msg("市場データ取得中の予期せぬ失敗")
		reasons = append(reasons, fmt.Sprintf("%s failed for %s: %v", source.SourceName(), normalizedTicker, err))
		f.reportFailure(source.SourceName(), err.Error())
	}

	return nil, &UnavailableError{Ticker: normalizedTicker, Reasons: reasons}
}

func (f *FallbackSource) reportSuccess(source string) {
	if f.health != nil {
		f.health.ReportSuccess(source)
	}
}

func (f *FallbackSource) reportFailure(source, reason string) {
	if f.health != nil {
		f.health.ReportFailure(source, reason)
	}
}
