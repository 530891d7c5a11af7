package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vanderheijden86/pulseboard/internal/datasource"
	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/export"
	"github.com/vanderheijden86/pulseboard/pkg/filter"
	"github.com/vanderheijden86/pulseboard/pkg/metrics"
	"github.com/vanderheijden86/pulseboard/pkg/trend"
	"github.com/vanderheijden86/pulseboard/pkg/version"
)

// viewRequest holds the aggregation inputs parsed from a request.
type viewRequest struct {
	criteria  filter.Criteria
	timeframe trend.Timeframe
	opts      dashboard.Options
}

// parseView reads status, priority, team, q, timeframe, sprint and seed.
// List parameters accept both repeated keys and comma separated values.
func (s *Server) parseView(c *gin.Context) (viewRequest, *requestError) {
	req := viewRequest{
		criteria: filter.Criteria{
			Statuses:   filter.ParseList(c.QueryArray("status")...),
			Priorities: filter.ParseList(c.QueryArray("priority")...),
			Teams:      filter.ParseList(c.QueryArray("team")...),
			SearchText: c.Query("q"),
		},
		timeframe: s.cfg.Timeframe(),
		opts:      s.cfg.Options(s.now()),
	}
	if tf := c.Query("timeframe"); tf != "" {
		if !trend.IsTimeframe(tf) {
			return req, badRequest("invalid_timeframe", fmt.Sprintf("unknown timeframe %q (want week, month or quarter)", tf))
		}
		req.timeframe = trend.ParseTimeframe(tf)
	}
	if sprint := strings.TrimSpace(c.Query("sprint")); sprint != "" {
		req.opts.SprintTitle = sprint
	}
	if raw := c.Query("seed"); raw != "" {
		seed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return req, badRequest("invalid_seed", fmt.Sprintf("seed must be a non-negative integer, got %q", raw))
		}
		req.opts.Seed = seed
	}
	return req, nil
}

// view computes the view-model for the request, writing an error response
// and returning false on failure.
func (s *Server) view(c *gin.Context) (dashboard.ViewModel, bool) {
	req, rerr := s.parseView(c)
	if rerr != nil {
		respondRequestError(c, rerr)
		return dashboard.ViewModel{}, false
	}
	vm := dashboard.ComputeViewModel(s.store.Snapshot(), req.criteria, req.timeframe, req.opts)
	if !vm.Finite() {
		respondError(c, http.StatusInternalServerError, "non_finite", errors.New("view-model contains non-finite values"))
		return dashboard.ViewModel{}, false
	}
	return vm, true
}

func (s *Server) handleRoot(c *gin.Context) {
	respondOK(c, gin.H{"message": "pulseboard API", "status": "running", "version": version.Version})
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.store.Snapshot()
	s.mu.RLock()
	src, loadedAt := s.source, s.loadedAt
	s.mu.RUnlock()

	respondOK(c, gin.H{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"version":   version.Version,
		"snapshot": gin.H{
			"version":   s.store.Version(),
			"source":    src.Path,
			"type":      src.Type,
			"loaded_at": loadedAt.UTC().Format(time.RFC3339),
			"epics":     len(snap.Epics),
			"teams":     len(snap.Teams),
			"backlog":   len(snap.Backlog),
			"sprints":   len(snap.Sprints),
		},
	})
}

func (s *Server) handleDashboard(c *gin.Context) {
	if vm, ok := s.view(c); ok {
		respondOK(c, vm)
	}
}

func (s *Server) handleSummary(c *gin.Context) {
	if vm, ok := s.view(c); ok {
		respondOK(c, vm.Summary)
	}
}

func (s *Server) handleDORA(c *gin.Context) {
	if vm, ok := s.view(c); ok {
		respondOK(c, vm.DORA)
	}
}

func (s *Server) handleBurndown(c *gin.Context) {
	if vm, ok := s.view(c); ok {
		respondOK(c, vm.Burndown)
	}
}

func (s *Server) handleRisks(c *gin.Context) {
	if vm, ok := s.view(c); ok {
		respondOK(c, gin.H{"risks": vm.Risks, "summary": vm.RiskSummary})
	}
}

func (s *Server) handleTrend(c *gin.Context) {
	if vm, ok := s.view(c); ok {
		respondOK(c, vm.Trend)
	}
}

// insightsRequest is the POST /api/insights body.
type insightsRequest struct {
	Query       string `json:"query"`
	CurrentView string `json:"current_view,omitempty"`
}

func (s *Server) handleInsights(c *gin.Context) {
	var body insightsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		respondError(c, http.StatusBadRequest, "missing_query", errors.New("query is required"))
		return
	}
	vm, ok := s.view(c)
	if !ok {
		return
	}
	ins := vm.Insights(body.Query)
	respondOK(c, gin.H{
		"response":        export.GenerateInsightsBrief(ins),
		"query":           ins.Query,
		"topics":          ins.Topics,
		"insights":        ins.Insights,
		"recommendations": ins.Recommendations,
		"data_summary":    vm.Summary,
		"current_view":    body.CurrentView,
		"timestamp":       vm.GeneratedAt.UTC().Format(time.RFC3339),
	})
}

// handleModels reports the insight backends. Only the built-in templates
// are available; no language model provider is ever configured.
func (s *Server) handleModels(c *gin.Context) {
	respondOK(c, gin.H{
		"ollama_available": false,
		"openai_available": false,
		"template_system":  true,
		"models": gin.H{
			"ollama":   "not_configured",
			"openai":   "not_configured",
			"template": "data_analysis_templates",
		},
	})
}

func (s *Server) handleReload(c *gin.Context) {
	res, err := s.Reload(c.Request.Context())
	switch {
	case err == nil:
		respondOK(c, res)
	case errors.Is(err, ErrNoLoader):
		respondError(c, http.StatusNotImplemented, "reload_unavailable", err)
	case errors.Is(err, datasource.ErrNoSource):
		respondError(c, http.StatusNotFound, "no_source", err)
	default:
		respondError(c, http.StatusInternalServerError, "reload_failed", err)
	}
}

func (s *Server) handleMetrics(c *gin.Context) {
	respondOK(c, metrics.Collect())
}
