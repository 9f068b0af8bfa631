package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/curation-backend/internal/domain"
	"github.com/yungbote/curation-backend/internal/platform/envutil"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

// Metrics holds the process counters. Every method is safe on a nil
// receiver so callers never check whether metrics are enabled.
type Metrics struct {
	apiRequests    *CounterVec
	apiLatency     *HistogramVec
	llmRequests    *CounterVec
	llmLatency     *HistogramVec
	rungOutcomes   *CounterVec
	batchOutcomes  *CounterVec
	componentsDone *CounterVec
	rowsInserted   *CounterVec
	verifications  *CounterVec
	verdicts       *CounterVec
	jobRuns        *CounterVec
	jobDuration    *HistogramVec
	queueDepth     *GaugeVec
	redisUp        *GaugeVec

	all []collector
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry when METRICS_ENABLED is set.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// NewMetrics returns a standalone registry.
func NewMetrics() *Metrics {
	latency := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}
	m := &Metrics{
		apiRequests:    NewCounterVec("curation_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:     NewHistogramVec("curation_api_request_duration_seconds", "API request latency in seconds.", []string{"method", "route"}, latency),
		llmRequests:    NewCounterVec("curation_llm_requests_total", "Model calls by model/status.", []string{"model", "status"}),
		llmLatency:     NewHistogramVec("curation_llm_request_duration_seconds", "Model call latency in seconds.", []string{"model"}, latency),
		rungOutcomes:   NewCounterVec("curation_rung_outcomes_total", "Attempt ladder rungs by index/model/outcome.", []string{"rung", "model", "outcome"}),
		batchOutcomes:  NewCounterVec("curation_batches_total", "Batches by round/result.", []string{"round", "result"}),
		componentsDone: NewCounterVec("curation_components_total", "Components by round/result (covered|failed).", []string{"round", "result"}),
		rowsInserted:   NewCounterVec("curation_rows_inserted_total", "Curation rows inserted by origin note.", []string{"origin"}),
		verifications:  NewCounterVec("curation_grounding_verifications_total", "Grounding URLs checked by the content gate.", []string{"valid"}),
		verdicts:       NewCounterVec("curation_validation_verdicts_total", "Validation agent verdicts.", []string{"verdict"}),
		jobRuns:        NewCounterVec("curation_job_runs_total", "Job runs by type/status.", []string{"job_type", "status"}),
		jobDuration:    NewHistogramVec("curation_job_duration_seconds", "Job run duration in seconds.", []string{"job_type", "status"}, []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600}),
		queueDepth:     NewGaugeVec("curation_job_queue_depth", "Job runs by status.", []string{"status"}),
		redisUp:        NewGaugeVec("curation_redis_up", "Redis reachability (1 up, 0 down).", []string{"addr"}),
	}
	m.all = []collector{
		m.apiRequests, m.apiLatency, m.llmRequests, m.llmLatency,
		m.rungOutcomes, m.batchOutcomes, m.componentsDone, m.rowsInserted,
		m.verifications, m.verdicts, m.jobRuns, m.jobDuration,
		m.queueDepth, m.redisUp,
	}
	return m
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.all {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ObserveLLMRequest(model, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(model, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model)
	}
}

func (m *Metrics) ObserveRung(rung int, model, outcome string) {
	if m == nil {
		return
	}
	m.rungOutcomes.Inc(strconv.Itoa(rung), model, outcome)
}

// ObserveBatch records one processed batch. A batch counts as "ok" when it
// covered at least one component.
func (m *Metrics) ObserveBatch(round string, covered, failed int) {
	if m == nil {
		return
	}
	result := "ok"
	if covered == 0 {
		result = "failed"
	}
	m.batchOutcomes.Inc(round, result)
	m.componentsDone.Add(float64(covered), round, "covered")
	m.componentsDone.Add(float64(failed), round, "failed")
}

func (m *Metrics) AddRowsInserted(origin string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsInserted.Add(float64(n), origin)
}

func (m *Metrics) ObserveVerification(valid bool) {
	if m == nil {
		return
	}
	if valid {
		m.verifications.Inc("true")
		return
	}
	m.verifications.Inc("false")
}

func (m *Metrics) ObserveVerdict(verdict string) {
	if m == nil {
		return
	}
	m.verdicts.Inc(verdict)
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(jobType, status)
	m.jobDuration.Observe(dur.Seconds(), jobType, status)
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	statuses := []string{"queued", "running", "succeeded", "failed", "canceled"}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range statuses {
					m.queueDepth.Set(0, s)
				}
				var rows []struct {
					Status string
					Count  int64
				}
				if err := db.WithContext(ctx).
					Model(&types.JobRun{}).
					Select("status, count(*) as count").
					Group("status").
					Scan(&rows).Error; err != nil {
					if log != nil {
						log.Warn("metrics: job queue depth query failed", "error", err)
					}
					continue
				}
				for _, row := range rows {
					m.queueDepth.Set(float64(row.Count), row.Status)
				}
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	addr := rdb.Options().Addr
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				err := rdb.Ping(pingCtx).Err()
				cancel()
				if err != nil {
					m.redisUp.Set(0, addr)
					if log != nil {
						log.Debug("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1, addr)
			}
		}
	}()
}
