package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/candle"
	"github.com/quantfold/marketcurator/internal/dispatch"
	"github.com/quantfold/marketcurator/internal/upstream"
	"github.com/quantfold/marketcurator/internal/version"
)

func (s *Server) handleSnapshotSync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	job := bus.SnapshotSyncJob{Status: q.Get("status")}

	var err error
	if job.MinCreatedTs, err = parseInt64(q.Get("minCreatedTs")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid minCreatedTs")
		return
	}
	if job.MaxCreatedTs, err = parseInt64(q.Get("maxCreatedTs")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid maxCreatedTs")
		return
	}

	if err := s.dispatcher.StartSnapshotSync(r.Context(), job); err != nil {
		s.writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"started": true,
		"status":  job.Status,
	})
}

func (s *Server) handleSnapshotStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.dispatcher.SnapshotStatus(r.Context())
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	message := "idle"
	if status.IsRunning {
		message = "running"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"is_running":   status.IsRunning,
		"pending_jobs": status.PendingJobs,
		"message":      message,
	})
}

func (s *Server) handleCategorySync(w http.ResponseWriter, r *http.Request) {
	s.simpleEnqueue(w, r, func() error {
		return s.dispatcher.EnqueueCategorySync(r.Context())
	})
}

func (s *Server) handleSeriesSync(w http.ResponseWriter, r *http.Request) {
	s.simpleEnqueue(w, r, func() error {
		return s.dispatcher.EnqueueSeriesSync(r.Context(), bus.SeriesSyncJob{})
	})
}

func (s *Server) handleEventsSync(w http.ResponseWriter, r *http.Request) {
	job := bus.EventsSyncJob{Status: r.URL.Query().Get("status")}
	s.simpleEnqueue(w, r, func() error {
		return s.dispatcher.EnqueueEventsSync(r.Context(), job)
	})
}

func (s *Server) handleEventDetailSync(w http.ResponseWriter, r *http.Request) {
	eventTicker := r.PathValue("eventTicker")
	if eventTicker == "" {
		writeError(w, http.StatusBadRequest, "missing event ticker")
		return
	}
	s.simpleEnqueue(w, r, func() error {
		return s.dispatcher.EnqueueEventDetail(r.Context(), eventTicker)
	})
}

func (s *Server) handleOrderbookSync(w http.ResponseWriter, r *http.Request) {
	s.watchlistFanOut(w, r, func(ticker string) error {
		return s.dispatcher.EnqueueOrderbookSync(r.Context(), ticker)
	}, func(e watchlistFlags) bool { return e.fetchOrderbook })
}

func (s *Server) handleCandlestickSync(w http.ResponseWriter, r *http.Request) {
	s.watchlistFanOut(w, r, func(ticker string) error {
		return s.dispatcher.EnqueueCandlestickSync(r.Context(), ticker)
	}, func(e watchlistFlags) bool { return e.fetchCandlesticks })
}

func (s *Server) handleAnalyticsSync(w http.ResponseWriter, r *http.Request) {
	s.watchlistFanOut(w, r, func(ticker string) error {
		return s.dispatcher.EnqueueAnalytics(r.Context(), ticker)
	}, func(e watchlistFlags) bool { return e.anyLevel })
}

type watchlistFlags struct {
	fetchOrderbook    bool
	fetchCandlesticks bool
	anyLevel          bool
}

// watchlistFanOut enqueues one job per eligible watchlist ticker.
func (s *Server) watchlistFanOut(w http.ResponseWriter, r *http.Request,
	enqueue func(ticker string) error, eligible func(watchlistFlags) bool) {

	entries, err := s.watchlist.ListWatchlist(r.Context())
	if err != nil {
		s.logger.Error("watchlist read failed", "err", err)
		writeError(w, http.StatusInternalServerError, "watchlist read failed")
		return
	}

	queued := 0
	for _, e := range entries {
		flags := watchlistFlags{
			fetchOrderbook:    e.FetchOrderbook,
			fetchCandlesticks: e.FetchCandlesticks,
			anyLevel:          e.EnableL1 || e.EnableL2 || e.EnableL3,
		}
		if !eligible(flags) {
			continue
		}
		if err := enqueue(e.Ticker); err != nil {
			s.writeDispatchError(w, err)
			return
		}
		queued++
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"tickers_queued": queued})
}

func (s *Server) handleCleanupSweep(w http.ResponseWriter, r *http.Request) {
	queued, err := s.cleanup.Sweep(r.Context())
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"markets_queued": queued})
}

func (s *Server) handleCleanupTicker(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "missing ticker")
		return
	}

	counts, err := s.cleanup.Purge(r.Context(), ticker)
	if err != nil {
		s.logger.Error("cleanup failed", "ticker", ticker, "err", err)
		writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticker":       ticker,
		"rows_deleted": counts.Total(),
	})
}

// handleChart serves the daily chart projection for one market. Responses
// are cached in redis for the configured TTL so dashboard polling does not
// hit the store on every request.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	q := r.URL.Query()

	startTs, err := parseInt64(q.Get("startTs"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid startTs")
		return
	}
	endTs, err := parseInt64(q.Get("endTs"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endTs")
		return
	}
	if endTs == 0 {
		endTs = time.Now().Unix()
	}

	key := fmt.Sprintf("chart:%s:%d:%d", ticker, startTs, endTs)
	if s.cache != nil {
		if cached, ok, err := s.cache.CacheGet(r.Context(), key); err == nil && ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(cached))
			return
		}
	}

	points, err := s.charts.Chart(r.Context(), ticker, startTs, endTs)
	if err != nil {
		s.logger.Error("chart read failed", "ticker", ticker, "err", err)
		writeError(w, http.StatusInternalServerError, "chart read failed")
		return
	}
	if points == nil {
		points = []candle.ChartPoint{}
	}

	body, err := json.Marshal(map[string]any{
		"ticker": ticker,
		"points": points,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.cache != nil {
		if err := s.cache.CacheSet(r.Context(), key, string(body), s.cacheTTL); err != nil {
			s.logger.Warn("chart cache write failed", "err", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleQueuePurge(w http.ResponseWriter, r *http.Request) {
	var purged, skipped, errs []string

	for _, queue := range bus.AllQueues {
		stats := s.queues.Stats(r.Context(), queue)
		if !stats.Exists {
			skipped = append(skipped, queue)
			continue
		}
		if err := s.queues.Purge(r.Context(), queue); err != nil {
			errs = append(errs, queue+": "+err.Error())
			continue
		}
		purged = append(purged, queue)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"purged_queues":  emptyIfNil(purged),
		"skipped_queues": emptyIfNil(skipped),
		"errors":         emptyIfNil(errs),
	})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	var (
		stats        []bus.QueueStats
		totalPending int64
		active       int
	)
	for _, queue := range bus.AllQueues {
		st := s.queues.Stats(r.Context(), queue)
		stats = append(stats, st)
		totalPending += st.Messages
		if st.Exists {
			active++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_pending_messages": totalPending,
		"active_queues":          active,
		"queues":                 stats,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) simpleEnqueue(w http.ResponseWriter, r *http.Request, enqueue func() error) {
	if err := enqueue(); err != nil {
		s.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"started": true})
}

// writeDispatchError maps internal errors onto the operator status codes:
// 409 for the single-flight guard, 503 for a down broker, 502 for upstream
// API failures, 500 otherwise.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrAlreadyInProgress):
		writeError(w, http.StatusConflict, "already in progress")
	case errors.Is(err, bus.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "bus unavailable")
	default:
		var ue *upstream.Error
		if errors.As(err, &ue) {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":       "upstream error",
				"status_code": ue.StatusCode,
				"body":        string(ue.Body),
			})
			return
		}
		s.logger.Error("control request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseInt64(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
