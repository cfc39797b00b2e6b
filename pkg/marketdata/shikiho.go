package marketdata

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"KabuRadar/pkg/model"
)

var (
	shikihoPricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`終値[^\d-]{0,40}(-?\d[\d,]*(?:\.\d+)?)`),
	}
	shikihoEPSPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:予想\s*EPS|EPS\s*予想|EPS)[^\d-]{0,40}(-?\d[\d,]*(?:\.\d+)?)`),
		regexp.MustCompile(`修正\s*1株益[^\d-]{0,40}(-?\d[\d,]*(?:\.\d+)?)`),
	}
	shikihoSalesPatterns = []*regexp.Regexp{
		regexp.MustCompile(`売上高(?:予想)?[^\d-]{0,40}(-?\d[\d,]*(?:\.\d+)?)`),
		regexp.MustCompile(`営業収益[^\d-]{0,40}(-?\d[\d,]*(?:\.\d+)?)`),
	}
	shikihoEarningsDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:決算発表日|発表日|決算日)[^\d]{0,40}(\d{4}[/-]\d{1,2}[/-]\d{1,2}|\d{2}/\d{1,2}/\d{1,2}|\d{4}年\d{1,2}月\d{1,2}日)`),
	}
)

// ShikihoSource 四季報onlineのスクレイパ
type ShikihoSource struct {
	httpSource
}

// NewShikihoSource 四季報onlineソースを生成する
func NewShikihoSource(timeoutSec int, log zerolog.Logger) *ShikihoSource {
	return &ShikihoSource{httpSource: newHTTPSource("四季報online", timeoutSec, log)}
}

// SourceName ソース名
func (s *ShikihoSource) SourceName() string {
	return s.name
}

// FetchSnapshot 市場データを取得する
func (s *ShikihoSource) FetchSnapshot(ticker string) (*model.MarketDataSnapshot, error) {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("https://shikiho.toyokeizai.net/stocks/%s", tickerCode(normalizedTicker))
	page, err := s.requestText(url, normalizedTicker)
	if err != nil {
		return nil, err
	}

	if strings.Contains(page, "このブラウザではご利用いただけません") || strings.Contains(page, "Cookieをオンにしてください") {
		return nil, NewFetchError(s.name, normalizedTicker,
			"サイト側でブラウザ要件によりデータ取得不可（JavaScript/Cookie制限）")
	}

	snapshot := &model.MarketDataSnapshot{
		Ticker:        normalizedTicker,
		ClosePrice:    s.tryParseNumber(page, shikihoPricePatterns, "close_price"),
		EPSForecast:   s.tryParseNumber(page, shikihoEPSPatterns, "eps_forecast"),
		SalesForecast: s.tryParseNumber(page, shikihoSalesPatterns, "sales_forecast"),
		EarningsDate:  s.tryParseDate(page, shikihoEarningsDatePatterns, "earnings_date"),
		Source:        s.name,
		FetchedAt:     time.Now().UTC(),
	}

	if errs := requiredFieldErrors(snapshot); len(errs) > 0 {
		return nil, NewFetchError(s.name, normalizedTicker, strings.Join(errs, "; "))
	}
	return snapshot, nil
}
