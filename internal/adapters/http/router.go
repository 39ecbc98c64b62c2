package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/core/ports"
	"github.com/signatlas/signrag/internal/observability/metrics"
)

type RouterConfig struct {
	Service         string
	DefaultTopK     int
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxInFlight     int
	InFlightWaitMax time.Duration
}

type Router struct {
	queries ports.QueryService
	metrics *metrics.HTTPServerMetrics
	cfg     RouterConfig
}

func NewRouter(queries ports.QueryService, m *metrics.HTTPServerMetrics, cfg RouterConfig) *Router {
	if cfg.Service == "" {
		cfg.Service = "api"
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &Router{
		queries: queries,
		metrics: m,
		cfg:     cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.handleQuery)
	mux.HandleFunc("/v1/stats", rt.handleStats)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.InFlightWaitMax)
	}
	if rt.cfg.RateLimitRPS > 0 {
		limiter := rate.NewLimiter(rate.Limit(rt.cfg.RateLimitRPS), max(rt.cfg.RateLimitBurst, 1))
		handler = rateLimitMiddleware(handler, limiter)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Text     string   `json:"text"`
	Modality string   `json:"modality"`
	TopK     int      `json:"top_k"`
	ClassIDs []string `json:"class_ids"`
}

type queryResponse struct {
	Answer                string            `json:"answer"`
	Citations             []domain.Citation `json:"citations"`
	UnsupportedClaimCount int               `json:"unsupported_claim_count"`
}

func (rt *Router) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	preference, ok := parsePreference(req.Modality)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "modality must be any, image or text"})
		return
	}

	query := domain.Query{
		Text:       req.Text,
		Preference: preference,
		TopK:       req.TopK,
	}
	if query.TopK <= 0 {
		query.TopK = rt.cfg.DefaultTopK
	}
	if len(req.ClassIDs) > 0 {
		query.Filter = domain.SearchFilter{ClassIDs: req.ClassIDs}
	}

	start := time.Now()
	answer, err := rt.queries.Handle(r.Context(), query)
	if err != nil {
		rt.recordQuery(string(preference), "error", 0, time.Since(start))
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.recordQuery(string(preference), "success", len(answer.Citations), time.Since(start))
	if rt.metrics != nil {
		rt.metrics.RecordGroundingAudit(rt.cfg.Service, answer.UnsupportedClaimCount)
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Answer:                answer.Text,
		Citations:             answer.Citations,
		UnsupportedClaimCount: answer.UnsupportedClaimCount,
	})
}

func (rt *Router) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := rt.queries.Stats(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) recordQuery(preference, status string, citations int, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordQuery(rt.cfg.Service, preference, status, citations, duration)
}

func parsePreference(raw string) (domain.ModalityPreference, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "any":
		return domain.PreferAny, true
	case "image":
		return domain.PreferImage, true
	case "text":
		return domain.PreferText, true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
