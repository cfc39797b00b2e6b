package marketdata

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KabuRadar/pkg/model"
)

type staticSource struct {
	name       string
	closePrice float64
}

func (s *staticSource) SourceName() string { return s.name }

func (s *staticSource) FetchSnapshot(ticker string) (*model.MarketDataSnapshot, error) {
	return &model.MarketDataSnapshot{
		Ticker:        ticker,
		ClosePrice:    model.Float64Ptr(s.closePrice),
		EPSForecast:   model.Float64Ptr(10),
		SalesForecast: model.Float64Ptr(100),
		EarningsDate:  "2026-05-10",
		Source:        s.name,
		FetchedAt:     time.Now().UTC(),
	}, nil
}

type failingSource struct {
	name   string
	reason string
}

func (s *failingSource) SourceName() string { return s.name }

func (s *failingSource) FetchSnapshot(ticker string) (*model.MarketDataSnapshot, error) {
	return nil, NewFetchError(s.name, ticker, s.reason)
}

type crashingSource struct{}

func (s *crashingSource) SourceName() string { return "crash" }

func (s *crashingSource) FetchSnapshot(string) (*model.MarketDataSnapshot, error) {
	return nil, errors.New("unexpected")
}

type recordingReporter struct {
	successes []string
	failures  []string
}

func (r *recordingReporter) ReportSuccess(source string) { r.successes = append(r.successes, source) }

func (r *recordingReporter) ReportFailure(source, reason string) {
	r.failures = append(r.failures, source)
}

func TestFallbackUsesNextSource(t *testing.T) {
	provider := NewFallbackSource([]Source{
		&failingSource{name: "四季報online", reason: "timeout"},
		&staticSource{name: "株探", closePrice: 100},
	}, zerolog.Nop())

	snapshot, err := provider.FetchSnapshot("3901:tse")
	require.NoError(t, err)
	assert.Equal(t, "株探", snapshot.Source)
	assert.Equal(t, "3901:TSE", snapshot.Ticker)
	assert.Equal(t, 100.0, *snapshot.ClosePrice)
}

func TestFallbackAggregatesAllFailures(t *testing.T) {
	provider := NewFallbackSource([]Source{
		&failingSource{name: "四季報online", reason: "401"},
		&failingSource{name: "株探", reason: "404"},
		&failingSource{name: "Yahoo!ファイナンス", reason: "500"},
	}, zerolog.Nop())

	_, err := provider.FetchSnapshot("3901:TSE")
	require.Error(t, err)

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Len(t, unavailable.Reasons, 3)
	assert.Contains(t, err.Error(), "四季報online")
	assert.Contains(t, err.Error(), "Yahoo!ファイナンス")
}

func TestFallbackWrapsUnexpectedError(t *testing.T) {
	provider := NewFallbackSource([]Source{&crashingSource{}}, zerolog.Nop())

	_, err := provider.FetchSnapshot("3901:TSE")
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, err.Error(), "crash failed")
}

func TestFallbackReportsSourceHealth(t *testing.T) {
	reporter := &recordingReporter{}
	provider := NewFallbackSource([]Source{
		&failingSource{name: "四季報online", reason: "timeout"},
		&staticSource{name: "株探", closePrice: 100},
	}, zerolog.Nop()).WithHealthReporter(reporter)

	_, err := provider.FetchSnapshot("3901:TSE")
	require.NoError(t, err)
	assert.Equal(t, []string{"四季報online"}, reporter.failures)
	assert.Equal(t, []string{"株探"}, reporter.successes)
}

func TestDefaultSourceOrder(t *testing.T) {
	provider := NewDefaultSource(15, zerolog.Nop())

	var names []string
	for _, source := range provider.sources {
		names = append(names, source.SourceName())
	}
	assert.Equal(t, []string{"四季報online", "株探", "Yahoo!ファイナンス"}, names)
}

func TestKabutanParsesForecastRow(t *testing.T) {
	financeHTML := `
	<table>
	  <tr>
	    <th scope="row"><span class="kubun1">I 予 </span>2026.03</th>
	    <td>50,000,000</td>
	    <td>3,800,000</td>
	    <td>5,020,000</td>
	    <td>3,570,000</td>
	    <td>273.9</td>
	    <td>95</td>
	    <td class="fb_pdf1">26/02/06</td>
	  </tr>
	</table>
	`
	source := NewKabutanSource(15, zerolog.Nop())
	snapshot := &model.MarketDataSnapshot{Ticker: "7203:TSE"}
	source.parseForecastRow(financeHTML, snapshot)

	require.NotNil(t, snapshot.SalesForecast)
	require.NotNil(t, snapshot.EPSForecast)
	assert.Equal(t, 50000000.0, *snapshot.SalesForecast)
	assert.Equal(t, 273.9, *snapshot.EPSForecast)
	assert.Equal(t, "2026-02-06", snapshot.EarningsDate)
}

func TestKabutanSkipsUnparsableCells(t *testing.T) {
	financeHTML := `
	<table>
	  <tr>
	    <th scope="row">I 予 2026.03</th>
	    <td>50,000,000</td><td>3,800,000</td><td>5,020,000</td><td>3,570,000</td><td>-</td><td>95</td><td>26/02/06</td>
	  </tr>
	</table>
	`
	source := NewKabutanSource(15, zerolog.Nop())
	snapshot := &model.MarketDataSnapshot{Ticker: "7203:TSE"}
	source.parseForecastRow(financeHTML, snapshot)

	assert.Nil(t, snapshot.EPSForecast)
	assert.NotNil(t, snapshot.SalesForecast)
	assert.Equal(t, "2026-02-06", snapshot.EarningsDate)
}

func TestKabutanClosePricePattern(t *testing.T) {
	stockHTML := `<table><tr><th scope="row">終値</th><td>3,705</td></tr></table>`
	source := NewKabutanSource(15, zerolog.Nop())
	price := source.tryParseNumber(stockHTML, kabutanPricePatterns, "close_price")
	require.NotNil(t, price)
	assert.Equal(t, 3705.0, *price)
}

func TestYahooEmbeddedJSONExtraction(t *testing.T) {
	quotePage := decodeEmbeddedJSON(`
	window.__PRELOADED_STATE__ = {
	  "mainStocksPriceBoard": {"priceBoard": {"price": "3,705"}},
	  "mainStocksDetail": {"referenceIndex": {"eps": "273.92"}},
	  "mainStocksPressReleaseSummary": {"disclosedTime": "2026-02-06T14:00:00+09:00"}
	};
	`)
	performancePage := decodeEmbeddedJSON(`self.__next_f.push([1,"{\"forecast\":{\"yearEndDate\":\"2026-03-31\",\"netSales\":49000000000000}}"])`)

	source := NewYahooFinanceSource(15, zerolog.Nop())

	price := source.tryParseNumber(quotePage, yahooPricePatterns, "close_price")
	require.NotNil(t, price)
	assert.Equal(t, 3705.0, *price)

	eps := source.tryParseNumber(quotePage, yahooEPSPatterns, "eps_forecast")
	require.NotNil(t, eps)
	assert.Equal(t, 273.92, *eps)

	sales := source.tryParseNumber(performancePage, yahooSalesPatterns, "sales_forecast")
	require.NotNil(t, sales)
	assert.Equal(t, 49000000000000.0, *sales)

	assert.Equal(t, "2026-02-06", source.tryParseDate(quotePage, yahooEarningsDatePatterns, "earnings_date"))
}

func TestDecodeEmbeddedJSONUnescapesAmpersand(t *testing.T) {
	page := decodeEmbeddedJSON(`self.__next_f.push([1,"{\"note\":\"A\u0026B\"}"])`)
	assert.Contains(t, page, `"A&B"`)
	assert.NotContains(t, page, `\u0026`)
}

func TestYahooFinancialsDateFallbackPatterns(t *testing.T) {
	financialsPage := decodeEmbeddedJSON(`<time dateTime=\"2026-02-06T14:00:00+09:00\">2026年2月6日</time>`)
	source := NewYahooFinanceSource(15, zerolog.Nop())
	assert.Equal(t, "2026-02-06", source.tryParseDate(financialsPage, yahooFinancialsDatePatterns, "earnings_date"))
}

func TestRequiredFieldErrors(t *testing.T) {
	snapshot := &model.MarketDataSnapshot{
		Ticker:     "7203:TSE",
		ClosePrice: model.Float64Ptr(3705),
	}
	errs := requiredFieldErrors(snapshot)
	require.Len(t, errs, 3)
	assert.Equal(t, "eps_forecast missing or unparsable", errs[0])
}
