package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/mchmarny/leadpulse/pkg/metrics"
	"github.com/mchmarny/leadpulse/pkg/score"
)

const (
	arraySelector = "|"

	industryParam   = "industry"
	minScoreParam   = "min"
	maxScoreParam   = "max"
	seedParam       = "seed"
	regenerateParam = "regenerate"
)

// dashboard serves the loaded snapshot over HTTP.
type dashboard struct {
	cfg     *appConfig
	metrics *metrics.Metrics
	mu      sync.Mutex // serializes reloads
}

func newDashboard(cfg *appConfig, m *metrics.Metrics) *dashboard {
	return &dashboard{cfg: cfg, metrics: m}
}

func (d *dashboard) reload(regenerate bool) (*data.SnapshotInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ds, src, err := loadSnapshot(d.cfg, regenerate)
	if err != nil {
		return nil, err
	}
	d.metrics.DatasetLoaded(string(src), len(ds.Leads), len(ds.Customers))
	slog.Info("snapshot loaded", "source", src, "leads", len(ds.Leads), "customers", len(ds.Customers))

	return data.GetSnapshotInfo(d.cfg.DB)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeResult maps err to a status code, or writes v when err is nil.
func writeResult(w http.ResponseWriter, v any, err error, what string) {
	if err == nil {
		writeJSON(w, http.StatusOK, v)
		return
	}
	if errors.Is(err, data.ErrInvalidInput) || errors.Is(err, score.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Error("request failed", "what", what, "error", err)
	writeError(w, http.StatusInternalServerError, "failed to get "+what)
}

// parseFilter reads industry, min and max query params over def.
// Industries may repeat or be joined with "|".
func parseFilter(r *http.Request, def data.Filter) (data.Filter, error) {
	q := r.URL.Query()
	f := def

	if vals, ok := q[industryParam]; ok {
		f.Industries = make([]string, 0, len(vals))
		for _, v := range vals {
			for _, i := range strings.Split(v, arraySelector) {
				if i = strings.TrimSpace(i); i != "" {
					f.Industries = append(f.Industries, i)
				}
			}
		}
	}

	var err error
	if f.MinScore, err = queryParamInt(r, minScoreParam, f.MinScore); err != nil {
		return f, err
	}
	if f.MaxScore, err = queryParamInt(r, maxScoreParam, f.MaxScore); err != nil {
		return f, err
	}
	return f, f.Validate()
}

func queryParamInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, data.ErrInvalidInput)
	}
	return i, nil
}

func queryParamFloat(r *http.Request, key string, def float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, score.ErrInvalidInput)
	}
	return f, nil
}

func healthHandler(d *dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.cfg.DB.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (d *dashboard) snapshotAPIHandler(w http.ResponseWriter, _ *http.Request) {
	info, err := data.GetSnapshotInfo(d.cfg.DB)
	if err == nil && info == nil {
		writeError(w, http.StatusNotFound, "no snapshot loaded")
		return
	}
	writeResult(w, info, err, "snapshot")
}

func (d *dashboard) reloadAPIHandler(w http.ResponseWriter, r *http.Request) {
	regenerate, _ := strconv.ParseBool(r.URL.Query().Get(regenerateParam))
	info, err := d.reload(regenerate)
	writeResult(w, info, err, "snapshot")
}

type filterOptions struct {
	Industries []string        `json:"industries"`
	Filter     data.Filter     `json:"filter"`
	Thresholds data.Thresholds `json:"thresholds"`
}

func (d *dashboard) filtersAPIHandler(w http.ResponseWriter, _ *http.Request) {
	list, err := data.GetIndustries(d.cfg.DB)
	writeResult(w, &filterOptions{
		Industries: list,
		Filter:     d.cfg.Config.Filter,
		Thresholds: d.cfg.Config.Thresholds,
	}, err, "filters")
}

// filtered parses the request filter and writes the result of fn.
func (d *dashboard) filtered(w http.ResponseWriter, r *http.Request, what string, fn func(data.Filter) (any, error)) {
	f, err := parseFilter(r, d.cfg.Config.Filter)
	if err != nil {
		writeResult(w, nil, err, what)
		return
	}
	v, err := fn(f)
	writeResult(w, v, err, what)
}

func (d *dashboard) summaryAPIHandler(w http.ResponseWriter, r *http.Request) {
	d.filtered(w, r, "summary", func(f data.Filter) (any, error) {
		return data.GetSummary(d.cfg.DB, f, d.cfg.Config.Thresholds)
	})
}

func (d *dashboard) alertsAPIHandler(w http.ResponseWriter, r *http.Request) {
	d.filtered(w, r, "alerts", func(f data.Filter) (any, error) {
		return data.GetAlerts(d.cfg.DB, f, d.cfg.Config.Thresholds)
	})
}

func (d *dashboard) scoreDistributionAPIHandler(w http.ResponseWriter, r *http.Request) {
	d.filtered(w, r, "score distribution", func(f data.Filter) (any, error) {
		return data.GetLeadScoreDistribution(d.cfg.DB, f)
	})
}

func (d *dashboard) leadSourcesAPIHandler(w http.ResponseWriter, r *http.Request) {
	d.filtered(w, r, "lead sources", func(f data.Filter) (any, error) {
		return data.GetLeadSourceCounts(d.cfg.DB, f)
	})
}

func (d *dashboard) hotLeadsAPIHandler(w http.ResponseWriter, r *http.Request) {
	d.filtered(w, r, "hot leads", func(f data.Filter) (any, error) {
		return data.GetHotLeads(d.cfg.DB, f, d.cfg.Config.Thresholds)
	})
}

func (d *dashboard) clvBySegmentAPIHandler(w http.ResponseWriter, r *http.Request) {
	d.filtered(w, r, "CLV by segment", func(f data.Filter) (any, error) {
		return data.GetCLVBySegment(d.cfg.DB, f)
	})
}

func (d *dashboard) churnDistributionAPIHandler(w http.ResponseWriter, r *http.Request) {
	d.filtered(w, r, "churn distribution", func(f data.Filter) (any, error) {
		return data.GetChurnDistribution(d.cfg.DB, f)
	})
}

func (d *dashboard) highValueCustomersAPIHandler(w http.ResponseWriter, r *http.Request) {
	d.filtered(w, r, "high value customers", func(f data.Filter) (any, error) {
		return data.GetHighValueCustomers(d.cfg.DB, f)
	})
}

func performanceAPIHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, data.GetPerformance())
}

func (d *dashboard) leadScoreAPIHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	seed := d.cfg.Config.Dataset.Seed
	if v := q.Get(seedParam); v != "" {
		s, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid seed %q", v))
			return
		}
		seed = s
	}

	days, err := queryParamInt(r, daysFlagName, 0)
	if err == nil && days < 0 {
		err = fmt.Errorf("days must not be negative: %w", data.ErrInvalidInput)
	}
	if err != nil {
		writeResult(w, nil, err, "lead score")
		return
	}

	attrs := score.LeadAttributes{
		Industry:          q.Get(industryParam),
		LeadSource:        q.Get(sourceFlagName),
		ContactTitle:      q.Get(titleFlagName),
		EngagementLevel:   q.Get(engagementFlagName),
		DaysSinceActivity: days,
	}
	writeJSON(w, http.StatusOK, &leadScoreResult{
		Attributes: attrs,
		LeadScore:  score.NewEngine(seed).PredictLeadScore(attrs),
	})
}

func (d *dashboard) clvAPIHandler(w http.ResponseWriter, r *http.Request) {
	p := d.cfg.Config.Scoring.CLV
	err := parseFloats(r, map[string]*float64{
		aovFlagName:       &p.AvgOrderValue,
		frequencyFlagName: &p.PurchaseFrequency,
		lifespanFlagName:  &p.LifespanYears,
		marginFlagName:    &p.ProfitMargin,
	})
	if err == nil {
		err = p.Validate()
	}
	if err != nil {
		writeResult(w, nil, err, "CLV")
		return
	}
	writeJSON(w, http.StatusOK, &clvResult{Params: p, CLV: score.CalculateCLV(p)})
}

func (d *dashboard) churnAPIHandler(w http.ResponseWriter, r *http.Request) {
	p := d.cfg.Config.Scoring.Churn
	err := parseFloats(r, map[string]*float64{
		daysFlagName:      &p.DaysSinceLastPurchase,
		frequencyFlagName: &p.PurchaseFrequency,
	})
	if err == nil {
		err = p.Validate()
	}
	if err != nil {
		writeResult(w, nil, err, "churn probability")
		return
	}
	writeJSON(w, http.StatusOK, &churnResult{Params: p, ChurnProbability: score.PredictChurnProbability(p)})
}

func parseFloats(r *http.Request, params map[string]*float64) error {
	for k, v := range params {
		f, err := queryParamFloat(r, k, *v)
		if err != nil {
			return err
		}
		*v = f
	}
	return nil
}
