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
	yahooPricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)"mainStocksPriceBoard"\s*:\s*\{.*?"price"\s*:\s*"([0-9,.-]+)"`),
		regexp.MustCompile(`(?s)"board"\s*:\s*\{.*?"price"\s*:\s*\{\s*"value"\s*:\s*"([0-9,.-]+)"`),
	}
	yahooEPSPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)"referenceIndex"\s*:\s*\{.*?"eps"\s*:\s*"([0-9,.-]+)"`),
		regexp.MustCompile(`(?s)"eps"\s*:\s*"([0-9,.-]+)"\s*,\s*"epsDate"`),
	}
	yahooSalesPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)"forecast"\s*:\s*\{[^{}]*?"netSales"\s*:\s*([0-9.]+)`),
	}
	yahooEarningsDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)"mainStocksPressReleaseSummary"\s*:\s*\{[^{}]*?"disclosedTime"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`"pressReleaseScheduleMessage"\s*:\s*"[^"]*?(\d{4}年\d{1,2}月\d{1,2}日)[^"]*"`),
	}
	yahooFinancialsDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`"dateTime"\s*:\s*"(\d{4}-\d{2}-\d{2})T`),
		regexp.MustCompile(`"dateModified"\s*:\s*"(\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`dateTime="(\d{4}-\d{2}-\d{2})T`),
	}
)

// YahooFinanceSource Yahoo!ファイナンスのスクレイパ
// ページ内に埋め込まれたJSONから各指標を正規表現で抜き出す。
type YahooFinanceSource struct {
	httpSource
}

// NewYahooFinanceSource Yahoo!ファイナンスソースを生成する
func NewYahooFinanceSource(timeoutSec int, log zerolog.Logger) *YahooFinanceSource {
	return &YahooFinanceSource{httpSource: newHTTPSource("Yahoo!ファイナンス", timeoutSec, log)}
}

// SourceName ソース名
func (s *YahooFinanceSource) SourceName() string {
	return s.name
}

// FetchSnapshot 市場データを取得する
func (s *YahooFinanceSource) FetchSnapshot(ticker string) (*model.MarketDataSnapshot, error) {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	code := tickerCode(normalizedTicker)

	quotePage, err := s.requestText(fmt.Sprintf("https://finance.yahoo.co.jp/quote/%s.T", code), normalizedTicker)
	if err != nil {
		return nil, err
	}
	quotePage = decodeEmbeddedJSON(quotePage)

	performancePage, err := s.requestText(fmt.Sprintf("https://finance.yahoo.co.jp/quote/%s.T/performance", code), normalizedTicker)
	if err != nil {
		return nil, err
	}
	performancePage = decodeEmbeddedJSON(performancePage)

	snapshot := &model.MarketDataSnapshot{
		Ticker:        normalizedTicker,
		ClosePrice:    s.tryParseNumber(quotePage, yahooPricePatterns, "close_price"),
		EPSForecast:   s.tryParseNumber(quotePage, yahooEPSPatterns, "eps_forecast"),
		SalesForecast: s.tryParseNumber(performancePage, yahooSalesPatterns, "sales_forecast"),
		EarningsDate:  s.tryParseDate(quotePage, yahooEarningsDatePatterns, "earnings_date"),
		Source:        s.name,
		FetchedAt:     time.Now().UTC(),
	}

	// 決算発表日がクオートページに無い場合のみ財務ページへフォールバックする
	if snapshot.EarningsDate == "" {
		financialsPage, err := s.requestText(fmt.Sprintf("https://finance.yahoo.co.jp/quote/%s.T/financials", code), normalizedTicker)
		if err != nil {
			return nil, err
		}
		financialsPage = decodeEmbeddedJSON(financialsPage)
		snapshot.EarningsDate = s.tryParseDate(financialsPage, yahooFinancialsDatePatterns, "earnings_date")
	}

	if errs := requiredFieldErrors(snapshot); len(errs) > 0 {
		return nil, NewFetchError(s.name, normalizedTicker, strings.Join(errs, "; "))
	}
	return snapshot, nil
}

// decodeEmbeddedJSON 埋め込みJSONのエスケープを素のテキストへ戻す
func decodeEmbeddedJSON(page string) string {
	page = strings.ReplaceAll(page, `\"`, `"`)
	return strings.ReplaceAll(page, `\u0026`, "&")
}
