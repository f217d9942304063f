package candle

import (
	"context"
	"testing"
	"time"

	"github.com/quantfold/marketcurator/internal/model"
	"github.com/quantfold/marketcurator/internal/upstream"
)

type fakeFetcher struct {
	resp  *upstream.CandlesticksResponse
	err   error
	calls int
	opts  upstream.GetCandlesticksOptions
}

func (f *fakeFetcher) GetCandlesticks(ctx context.Context, seriesTicker, ticker string, opts upstream.GetCandlesticksOptions) (*upstream.CandlesticksResponse, error) {
	f.calls++
	f.opts = opts
	return f.resp, f.err
}

type fakeStorage struct {
	maxTs    int64
	stored   []model.Candlestick
	inserted []model.Candlestick
}

func (s *fakeStorage) MaxEndPeriodTs(ctx context.Context, ticker string, periodInterval int) (int64, error) {
	return s.maxTs, nil
}

func (s *fakeStorage) InsertCandlesticks(ctx context.Context, rows []model.Candlestick) (int, error) {
	conflicts := 0
	existing := make(map[int64]bool, len(s.stored))
	for _, c := range s.stored {
		existing[c.EndPeriodTs] = true
	}
	for _, r := range rows {
		if existing[r.EndPeriodTs] {
			conflicts++
			continue
		}
		s.stored = append(s.stored, r)
		s.inserted = append(s.inserted, r)
	}
	return conflicts, nil
}

func (s *fakeStorage) CandlesticksInWindow(ctx context.Context, ticker string, periodInterval int, startTs, endTs int64) ([]model.Candlestick, error) {
	var out []model.Candlestick
	for _, c := range s.stored {
		if c.EndPeriodTs >= startTs && c.EndPeriodTs <= endTs {
			out = append(out, c)
		}
	}
	return out, nil
}

func apiCandle(ts int64, close int) upstream.APICandlestick {
	return upstream.APICandlestick{
		EndPeriodTs: ts,
		YesBid:      upstream.APIOHLC{Open: close, High: close, Low: close, Close: close},
		YesAsk:      upstream.APIOHLC{Open: close + 2, High: close + 2, Low: close + 2, Close: close + 2},
		Volume:      100,
	}
}

func storedCandle(ts int64, close int) model.Candlestick {
	return model.Candlestick{
		Ticker:         "MKT-A",
		PeriodInterval: DailyInterval,
		EndPeriodTs:    ts,
		YesBid:         model.OHLC{Open: close, High: close, Low: close, Close: close},
	}
}

func TestSyncDifferentialFetch(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	fetcher := &fakeFetcher{resp: &upstream.CandlesticksResponse{
		Candlesticks: []upstream.APICandlestick{apiCandle(1000, 45), apiCandle(1440, 48)},
	}}
	storage := &fakeStorage{maxTs: 1000, stored: []model.Candlestick{storedCandle(1000, 45)}}

	s := NewService(fetcher, storage, nil)
	s.now = func() time.Time { return now }

	inserted, conflicts, err := s.Sync(context.Background(), "SER-A", "MKT-A")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	// The duplicate at ts=1000 falls below startTs and never reaches the store.
	if inserted != 1 || conflicts != 0 {
		t.Errorf("inserted=%d conflicts=%d, want 1, 0", inserted, conflicts)
	}
	if fetcher.opts.StartTs != 1001 {
		t.Errorf("start_ts = %d, want maxEndPeriodTs+1 = 1001", fetcher.opts.StartTs)
	}
	if fetcher.opts.PeriodInterval != DailyInterval {
		t.Errorf("period_interval = %d, want %d", fetcher.opts.PeriodInterval, DailyInterval)
	}
	if len(storage.inserted) != 1 || storage.inserted[0].EndPeriodTs != 1440 {
		t.Errorf("stored rows = %+v, want single row at ts 1440", storage.inserted)
	}
}

func TestSyncBackfillWhenEmpty(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	fetcher := &fakeFetcher{resp: &upstream.CandlesticksResponse{}}
	storage := &fakeStorage{}

	s := NewService(fetcher, storage, nil)
	s.now = func() time.Time { return now }

	if _, _, err := s.Sync(context.Background(), "SER-A", "MKT-A"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	wantStart := now.Add(-BackfillWindow).Unix()
	if fetcher.opts.StartTs != wantStart {
		t.Errorf("start_ts = %d, want 30-day backfill %d", fetcher.opts.StartTs, wantStart)
	}
	if fetcher.opts.EndTs != now.Unix() {
		t.Errorf("end_ts = %d, want %d", fetcher.opts.EndTs, now.Unix())
	}
}

func TestSyncSkipsWhenFresh(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	fetcher := &fakeFetcher{}
	storage := &fakeStorage{maxTs: now.Add(-time.Hour).Unix()}

	s := NewService(fetcher, storage, nil)
	s.now = func() time.Time { return now }

	inserted, conflicts, err := s.Sync(context.Background(), "SER-A", "MKT-A")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if inserted != 0 || conflicts != 0 {
		t.Errorf("inserted=%d conflicts=%d, want 0, 0", inserted, conflicts)
	}
	if fetcher.calls != 0 {
		t.Errorf("upstream called %d times, want 0 for fresh history", fetcher.calls)
	}
}

func TestSyncDedupesWithinResponse(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	fetcher := &fakeFetcher{resp: &upstream.CandlesticksResponse{
		Candlesticks: []upstream.APICandlestick{apiCandle(2000, 45), apiCandle(2000, 45), apiCandle(3000, 50)},
	}}
	storage := &fakeStorage{}

	s := NewService(fetcher, storage, nil)
	s.now = func() time.Time { return now }

	inserted, _, err := s.Sync(context.Background(), "SER-A", "MKT-A")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2 after intra-response dedupe", inserted)
	}
}

func TestSyncSkipsInconsistentOHLC(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	bad := apiCandle(2000, 45)
	bad.YesBid = upstream.APIOHLC{Open: 45, High: 40, Low: 50, Close: 45}

	fetcher := &fakeFetcher{resp: &upstream.CandlesticksResponse{
		Candlesticks: []upstream.APICandlestick{bad, apiCandle(3000, 50)},
	}}
	storage := &fakeStorage{}

	s := NewService(fetcher, storage, nil)
	s.now = func() time.Time { return now }

	inserted, _, err := s.Sync(context.Background(), "SER-A", "MKT-A")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1 after dropping the inconsistent row", inserted)
	}
	if len(storage.inserted) != 1 || storage.inserted[0].EndPeriodTs != 3000 {
		t.Errorf("stored rows = %+v, want only the row at ts 3000", storage.inserted)
	}
}

func TestValidateCandle(t *testing.T) {
	good := model.Candlestick{
		YesBid: model.OHLC{Open: 45, High: 48, Low: 44, Close: 47},
		YesAsk: model.OHLC{Open: 47, High: 50, Low: 46, Close: 49},
		Price:  &model.OHLC{Open: 46, High: 49, Low: 45, Close: 48},
	}
	if err := validateCandle(good); err != nil {
		t.Errorf("consistent candle rejected: %v", err)
	}

	lowAboveClose := good
	lowAboveClose.YesAsk = model.OHLC{Open: 47, High: 50, Low: 48, Close: 47}
	if err := validateCandle(lowAboveClose); err == nil {
		t.Error("low above close accepted")
	}

	highBelowOpen := good
	highBelowOpen.Price = &model.OHLC{Open: 46, High: 44, Low: 40, Close: 43}
	if err := validateCandle(highBelowOpen); err == nil {
		t.Error("high below open accepted")
	}

	noTrades := good
	noTrades.Price = nil
	if err := validateCandle(noTrades); err != nil {
		t.Errorf("candle without trades rejected: %v", err)
	}
}

func TestCloseForChart(t *testing.T) {
	traded := model.Candlestick{
		YesBid: model.OHLC{Close: 45},
		Price:  &model.OHLC{Close: 47},
	}
	if got := CloseForChart(traded); got != 47 {
		t.Errorf("traded close = %d, want trade close 47", got)
	}

	quiet := model.Candlestick{YesBid: model.OHLC{Close: 45}}
	if got := CloseForChart(quiet); got != 45 {
		t.Errorf("quiet close = %d, want yes-bid close 45", got)
	}
}

func TestChartProjection(t *testing.T) {
	storage := &fakeStorage{stored: []model.Candlestick{
		storedCandle(1000, 45),
		func() model.Candlestick {
			c := storedCandle(1440, 40)
			c.Price = &model.OHLC{Close: 48}
			return c
		}(),
	}}

	s := NewService(&fakeFetcher{}, storage, nil)

	points, err := s.Chart(context.Background(), "MKT-A", 0, 5000)
	if err != nil {
		t.Fatalf("chart failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].EndPeriodTs != 1000 || points[0].Close != 45 {
		t.Errorf("point 0 = %+v, want (1000, 45)", points[0])
	}
	if points[1].EndPeriodTs != 1440 || points[1].Close != 48 {
		t.Errorf("point 1 = %+v, want (1440, 48)", points[1])
	}
}
