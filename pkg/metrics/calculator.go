package metrics

import (
	"fmt"
	"sort"
	"time"

	"KabuRadar/pkg/model"
)

// BuildDailyMetric 市場データのスナップショットから日次指標レコードを構築する
// 必要項目が欠損している場合、指標値はnullのままでありエラーにはしない。
func BuildDailyMetric(
	ticker string,
	tradeDate string,
	metricType model.MetricType,
	snapshot *model.MarketDataSnapshot,
) (*model.DailyMetric, error) {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	normalizedDate, err := model.NormalizeTradeDate(tradeDate)
	if err != nil {
		return nil, err
	}
	if metricType != model.MetricTypePER && metricType != model.MetricTypePSR {
		// 上流で検証済みだが、黙って壊れないようここでも弾く
		return nil, fmt.Errorf("未対応の指標種別です: %s", metricType)
	}

	var perValue, psrValue *float64
	if snapshot.ClosePrice != nil {
		if snapshot.EPSForecast != nil && *snapshot.EPSForecast > 0 {
			perValue = model.Float64Ptr(*snapshot.ClosePrice / *snapshot.EPSForecast)
		}
		if snapshot.SalesForecast != nil && *snapshot.SalesForecast > 0 {
			if snapshot.MarketCap != nil && *snapshot.MarketCap > 0 {
				psrValue = model.Float64Ptr(*snapshot.MarketCap / *snapshot.SalesForecast)
			} else {
				psrValue = model.Float64Ptr(*snapshot.ClosePrice / *snapshot.SalesForecast)
			}
		}
	}

	return &model.DailyMetric{
		Ticker:        normalizedTicker,
		TradeDate:     normalizedDate,
		ClosePrice:    snapshot.ClosePrice,
		EPSForecast:   snapshot.EPSForecast,
		SalesForecast: snapshot.SalesForecast,
		PERValue:      perValue,
		PSRValue:      psrValue,
		DataSource:    snapshot.Source,
		FetchedAt:     snapshot.FetchedAt,
	}, nil
}

// CalculateMedians 新しい順に並んだ指標履歴からローリング中央値を計算する
// ウィンドウ幅は 1W <= 3M <= 1Y を満たすこと（満たさない場合は設定エラー）。
func CalculateMedians(
	ticker string,
	tradeDate string,
	metricType model.MetricType,
	latestFirst []*model.DailyMetric,
	window1WDays, window3MDays, window1YDays int,
	calculatedAt time.Time,
) (*model.MetricMedians, error) {
	normalizedTicker, err := model.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	normalizedDate, err := model.NormalizeTradeDate(tradeDate)
	if err != nil {
		return nil, err
	}
	if !(window1WDays <= window3MDays && window3MDays <= window1YDays) {
		return nil, fmt.Errorf(
			"ウィンドウ幅は 1W <= 3M <= 1Y を満たす必要があります: %d/%d/%d",
			window1WDays, window3MDays, window1YDays,
		)
	}
	if window1WDays <= 0 {
		return nil, fmt.Errorf("ウィンドウ幅は正の値が必要です: %d", window1WDays)
	}

	values := make([]float64, 0, len(latestFirst))
	for _, metric := range latestFirst {
		if value := metric.MetricValue(metricType); value != nil {
			values = append(values, *value)
		}
	}

	return &model.MetricMedians{
		Ticker:           normalizedTicker,
		TradeDate:        normalizedDate,
		Median1W:         WindowMedian(values, window1WDays),
		Median3M:         WindowMedian(values, window3MDays),
		Median1Y:         WindowMedian(values, window1YDays),
		SourceMetricType: metricType,
		CalculatedAt:     calculatedAt,
	}, nil
}

// WindowMedian 先頭（=直近）からwindowSize件の中央値を返す
// 履歴がwindowSize件に満たない場合はnil。windowSizeが0以下の場合もnilを返す。
// ウィンドウ幅の妥当性検証はCalculateMediansが行う。
func WindowMedian(latestFirst []float64, windowSize int) *float64 {
	if windowSize <= 0 || len(latestFirst) < windowSize {
		return nil
	}

	window := make([]float64, windowSize)
	copy(window, latestFirst[:windowSize])
	sort.Float64s(window)

	mid := windowSize / 2
	if windowSize%2 == 1 {
		return model.Float64Ptr(window[mid])
	}
	return model.Float64Ptr((window[mid-1] + window[mid]) / 2)
}
