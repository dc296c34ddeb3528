package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the metrics summary endpoint.
type Summary struct {
	HTTP      httpSummary   `json:"http"`
	Auth      authInfo      `json:"auth"`
	Activity  activityInfo  `json:"activity"`
	RateLimit rateLimitInfo `json:"rateLimit"`
	DB        dbInfo        `json:"db"`
	Server    serverInfo    `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type authInfo struct {
	LoginFailures  float64 `json:"loginFailures"`
	TokenFailures  float64 `json:"tokenFailures"`
	ExpiredTokens  float64 `json:"expiredTokens"`
	LoginSuccesses float64 `json:"loginSuccesses"`
}

type activityInfo struct {
	Registrations        float64 `json:"registrations"`
	OrganisationsCreated float64 `json:"organisationsCreated"`
	MembershipsAdded     float64 `json:"membershipsAdded"`
}

type rateLimitInfo struct {
	Rejections float64 `json:"rejections"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Handler returns an http.HandlerFunc that serves a JSON digest of the
// registry.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := m.Summarize()
		if err != nil {
			http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store")
		_ = json.NewEncoder(w).Encode(summary)
	}
}

// Summarize gathers the registry into a Summary.
func (m *Metrics) Summarize() (*Summary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	requests := fam["orgbook_http_requests_total"]
	latency := fam["orgbook_http_request_duration_seconds"]
	failures := fam["orgbook_auth_failures_total"]
	start := gaugeValue(fam["orgbook_server_start_time_seconds"])

	return &Summary{
		HTTP: httpSummary{
			TotalRequests: sumCounter(requests, nil),
			ErrorRate:     errorRate(requests),
			P50Latency:    histogramPercentile(latency, 0.50),
			P95Latency:    histogramPercentile(latency, 0.95),
			P99Latency:    histogramPercentile(latency, 0.99),
		},
		Auth: authInfo{
			LoginFailures:  sumCounter(failures, labelIs("auth_type", "login")),
			TokenFailures:  sumCounter(failures, labelIs("auth_type", "bearer")),
			ExpiredTokens:  sumCounter(failures, labelIs("reason", "expired")),
			LoginSuccesses: sumCounter(fam["orgbook_auth_successes_total"], labelIs("auth_type", "login")),
		},
		Activity: activityInfo{
			Registrations:        sumCounter(fam["orgbook_registrations_total"], nil),
			OrganisationsCreated: sumCounter(fam["orgbook_organisations_created_total"], nil),
			MembershipsAdded:     sumCounter(fam["orgbook_memberships_added_total"], labelIs("outcome", "added")),
		},
		RateLimit: rateLimitInfo{
			Rejections: sumCounter(fam["orgbook_ratelimit_rejections_total"], nil),
		},
		DB: dbInfo{
			TotalConns:    gaugeValue(fam["orgbook_db_pool_total_conns"]),
			IdleConns:     gaugeValue(fam["orgbook_db_pool_idle_conns"]),
			AcquiredConns: gaugeValue(fam["orgbook_db_pool_acquired_conns"]),
		},
		Server: serverInfo{
			StartTime:     start,
			UptimeSeconds: float64(time.Now().Unix()) - start,
		},
	}, nil
}

// --- Prometheus metric helpers ---

type metricFilter func(*dto.Metric) bool

func labelIs(name, value string) metricFilter {
	return func(m *dto.Metric) bool {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				return true
			}
		}
		return false
	}
}

func sumCounter(f *dto.MetricFamily, keep metricFilter) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil || (keep != nil && !keep(m)) {
			continue
		}
		total += m.GetCounter().GetValue()
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil || len(f.GetMetric()) == 0 {
		return 0
	}
	return f.GetMetric()[0].GetGauge().GetValue()
}

// errorRate is the share of requests answered with a 5xx status.
func errorRate(f *dto.MetricFamily) float64 {
	total := sumCounter(f, nil)
	if total == 0 {
		return 0
	}
	serverErrors := sumCounter(f, func(m *dto.Metric) bool {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" && len(lp.GetValue()) > 0 && lp.GetValue()[0] == '5' {
				return true
			}
		}
		return false
	})
	return serverErrors / total
}

// histogramPercentile computes a percentile from aggregated histogram buckets
// using linear interpolation.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	if f == nil {
		return 0
	}

	var totalCount uint64
	cumulative := make(map[float64]uint64)
	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			cumulative[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if totalCount == 0 {
		return 0
	}

	bounds := make([]float64, 0, len(cumulative))
	for ub := range cumulative {
		if !math.IsInf(ub, 1) {
			bounds = append(bounds, ub)
		}
	}
	sort.Float64s(bounds)

	rank := q * float64(totalCount)
	var prevBound float64
	var prevCount uint64
	for _, ub := range bounds {
		count := cumulative[ub]
		if float64(count) >= rank {
			inBucket := count - prevCount
			if inBucket == 0 {
				return ub
			}
			fraction := (rank - float64(prevCount)) / float64(inBucket)
			return prevBound + fraction*(ub-prevBound)
		}
		prevBound, prevCount = ub, count
	}

	if len(bounds) > 0 {
		return bounds[len(bounds)-1]
	}
	return 0
}
