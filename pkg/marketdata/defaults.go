package marketdata

import "github.com/rs/zerolog"

// NewDefaultSource 既定のフォールバック構成（四季報→株探→Yahoo!）を生成する
func NewDefaultSource(timeoutSec int, log zerolog.Logger) *FallbackSource {
	return NewFallbackSource([]Source{
		NewShikihoSource(timeoutSec, log),
		NewKabutanSource(timeoutSec, log),
		NewYahooFinanceSource(timeoutSec, log),
	}, log)
}
