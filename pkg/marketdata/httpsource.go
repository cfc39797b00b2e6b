package marketdata

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"KabuRadar/pkg/model"
)

// スクレイピング先に共通で送るヘッダ
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (compatible; kabu-radar/1.0)",
	"Accept-Language": "ja-JP,ja;q=0.9,en-US;q=0.8,en;q=0.7",
}

// httpSource HTTP経由のソースに共通する取得処理
type httpSource struct {
	name   string
	client *http.Client
	log    zerolog.Logger
}

func newHTTPSource(name string, timeoutSec int, log zerolog.Logger) httpSource {
	if timeoutSec <= 0 {
		timeoutSec = 15
	}
	return httpSource{
		name: name,
		client: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
		log: log,
	}
}

// requestText ページ本文を取得する
func (s *httpSource) requestText(url, ticker string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", NewFetchError(s.name, ticker, fmt.Sprintf("HTTP request error (%s): %v", url, err))
	}
	for key, value := range defaultHeaders {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", NewFetchError(s.name, ticker, fmt.Sprintf("HTTP request error (%s): %v", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", NewFetchError(s.name, ticker, fmt.Sprintf("HTTP status %d (%s)", resp.StatusCode, url))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewFetchError(s.name, ticker, fmt.Sprintf("HTTP read error (%s): %v", url, err))
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", NewFetchError(s.name, ticker, fmt.Sprintf("empty response body (%s)", url))
	}
	return string(body), nil
}

// tryParseNumber パターン群でページから数値を抽出する（失敗はnull扱い）
func (s *httpSource) tryParseNumber(text string, patterns []*regexp.Regexp, label string) *float64 {
	token, ok := findFirst(text, patterns)
	if !ok {
		return nil
	}
	parsed, err := ParseNumber(StripTags(token))
	if err != nil {
		s.log.Warn().Str("label", label).Str("raw", StripTags(token)).Msg("市場データ数値解析失敗")
		return nil
	}
	return model.Float64Ptr(parsed)
}

// tryParseDate パターン群でページから日付を抽出する（失敗は空文字扱い）
func (s *httpSource) tryParseDate(text string, patterns []*regexp.Regexp, label string) string {
	token, ok := findFirst(text, patterns)
	if !ok {
		return ""
	}
	parsed, err := ParseDateText(StripTags(token))
	if err != nil {
		s.log.Warn().Str("label", label).Str("raw", StripTags(token)).Msg("市場データ日付解析失敗")
		return ""
	}
	return parsed
}

// tickerCode ティッカーから銘柄コード部分（コロンより前）を取り出す
func tickerCode(ticker string) string {
	if idx := strings.Index(ticker, ":"); idx >= 0 {
		return ticker[:idx]
	}
	return ticker
}

// requiredFieldErrors 必須項目の欠損を失敗理由へ変換する
func requiredFieldErrors(snapshot *model.MarketDataSnapshot) []string {
	var errs []string
	for _, field := range snapshot.MissingFields() {
		errs = append(errs, fmt.Sprintf("%s missing or unparsable", field))
	}
	return errs
}
