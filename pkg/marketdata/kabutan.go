package marketdata

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"KabuRadar/pkg/model"
)

var kabutanPricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<th[^>]*>\s*終値\s*</th>\s*<td[^>]*>\s*([^<]+)`),
}

// KabutanSource 株探のスクレイパ
// 株価ページから終値を、決算ページの業績予想行からEPS・売上・発表日を拾う。
type KabutanSource struct {
	httpSource
}

// NewKabutanSource 株探ソースを生成する
func NewKabutanSource(timeoutSec int, log zerolog.Logger) *KabutanSource {
	return &KabutanSource{httpSource: newHTTPSource("株探", timeoutSec, log)}
}

// SourceName ソース名
func (s *KabutanSource) SourceName() string {
	return s.name
}

// FetchSnapshot 市場データを取得する
func (s *KabutanSource) FetchSnapshot(ticker string) (*model.MarketDataSnapshot, error) {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	code := tickerCode(normalizedTicker)

	stockPage, err := s.requestText(fmt.Sprintf("https://kabutan.jp/stock/?code=%s", code), normalizedTicker)
	if err != nil {
		return nil, err
	}
	financePage, err := s.requestText(fmt.Sprintf("https://kabutan.jp/stock/finance?code=%s", code), normalizedTicker)
	if err != nil {
		return nil, err
	}

	snapshot := &model.MarketDataSnapshot{
		Ticker:     normalizedTicker,
		ClosePrice: s.tryParseNumber(stockPage, kabutanPricePatterns, "close_price"),
		Source:     s.name,
		FetchedAt:  time.Now().UTC(),
	}
	s.parseForecastRow(financePage, snapshot)

	if errs := requiredFieldErrors(snapshot); len(errs) > 0 {
		return nil, NewFetchError(s.name, normalizedTicker, strings.Join(errs, "; "))
	}
	return snapshot, nil
}

// parseForecastRow 業績予想行（見出しに「予」を含む行）から各項目を抽出する
// セル並びは 売上高, 営業益, 経常益, 最終益, 修正1株益, ..., 発表日。
func (s *KabutanSource) parseForecastRow(financePage string, snapshot *model.MarketDataSnapshot) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(financePage))
	if err != nil {
		s.log.Warn().Err(err).Msg("株探決算ページ解析失敗")
		return
	}

	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		header := strings.TrimSpace(row.Find("th").First().Text())
		if !strings.Contains(header, "予") {
			return true
		}

		cells := row.Find("td").Map(func(_ int, cell *goquery.Selection) string {
			return strings.TrimSpace(cell.Text())
		})
		if len(cells) >= 5 {
			if sales, err := ParseNumber(cells[0]); err == nil {
				snapshot.SalesForecast = model.Float64Ptr(sales)
			}
			if eps, err := ParseNumber(cells[4]); err == nil {
				snapshot.EPSForecast = model.Float64Ptr(eps)
			}
		}
		if len(cells) > 0 {
			if date, err := ParseDateText(cells[len(cells)-1]); err == nil {
				snapshot.EarningsDate = date
			}
		}
		return false
	})
}
