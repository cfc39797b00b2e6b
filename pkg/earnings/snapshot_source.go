package earnings

import (
	"KabuRadar/pkg/marketdata"
	"KabuRadar/pkg/model"
)

// SnapshotCalendarSource 市場データスナップショットから決算カレンダーを組み立てる取得元
// スナップショットには直近の発表予定日が1件だけ載るため、1銘柄につき最大1行を返す。
type SnapshotCalendarSource struct {
	source marketdata.Source
}

// NewSnapshotCalendarSource スナップショット由来の決算カレンダー取得元を生成する
func NewSnapshotCalendarSource(source marketdata.Source) *SnapshotCalendarSource {
	return &SnapshotCalendarSource{source: source}
}

// SourceName 取得元名
func (s *SnapshotCalendarSource) SourceName() string {
	return s.source.SourceName()
}

// FetchEarningsCalendar 銘柄の決算カレンダーを取得する
// 発表予定日が取れない場合は空を返し、既存の行は同期側で消える。
func (s *SnapshotCalendarSource) FetchEarningsCalendar(ticker string) ([]*model.EarningsCalendarEntry, error) {
	snapshot, err := s.source.FetchSnapshot(ticker)
	if err != nil {
		return nil, err
	}
	if snapshot == nil || snapshot.EarningsDate == "" {
		return nil, nil
	}

	entry := &model.EarningsCalendarEntry{
		Ticker:       ticker,
		EarningsDate: snapshot.EarningsDate,
	}
	return []*model.EarningsCalendarEntry{entry}, nil
}
