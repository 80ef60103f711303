package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/auth"
	"smc-signal-engine/internal/signals"
	"smc-signal-engine/internal/strategy"
)

const maxListLimit = 500

// handleHealth probes every registered dependency
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	s.mu.RLock()
	checks := make(map[string]HealthCheck, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
	}
	s.mu.RUnlock()

	status := "healthy"
	deps := make(map[string]string, len(checks))
	for name, check := range checks {
		if err := check(ctx); err != nil {
			deps[name] = "unhealthy: " + err.Error()
			status = "unhealthy"
			continue
		}
		deps[name] = "healthy"
	}

	body := gin.H{
		"status":       status,
		"dependencies": deps,
		"uptime":       time.Since(s.startedAt).Round(time.Second).String(),
	}
	if last := s.scanner.LastReport(); last != nil {
		body["last_scan"] = last.EndTime
	}
	if s.hub != nil {
		body["ws_clients"] = s.hub.GetClientCount()
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}

// handleAnalyze evaluates one symbol without storing a signal
func (s *Server) handleAnalyze(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	ev, err := s.scanner.AnalyzeSymbol(c.Request.Context(), symbol)
	if err != nil {
		var verr *analysis.ValidationError
		switch {
		case errors.As(err, &verr), errors.Is(err, strategy.ErrNoData):
			errorResponse(c, http.StatusUnprocessableEntity, err.Error())
		default:
			errorResponse(c, http.StatusBadGateway, err.Error())
		}
		return
	}
	successResponse(c, ev)
}

type scanRequest struct {
	Symbols []string `json:"symbols"`
}

// handleScan runs a scan now. An empty body scans the configured symbols.
func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	var symbols []string
	for _, sym := range req.Symbols {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			symbols = append(symbols, sym)
		}
	}

	successResponse(c, s.scanner.ScanSymbols(c.Request.Context(), symbols))
}

// handleLastScan returns the most recent scan report
func (s *Server) handleLastScan(c *gin.Context) {
	report := s.scanner.LastReport()
	if report == nil {
		errorResponse(c, http.StatusNotFound, "no scan has completed yet")
		return
	}
	successResponse(c, report)
}

// handleListSignals lists stored signals, newest first
func (s *Server) handleListSignals(c *gin.Context) {
	f := signals.Filter{
		Symbol: strings.ToUpper(c.Query("symbol")),
		Limit:  100,
	}

	if d := strings.ToUpper(c.Query("direction")); d != "" {
		dir := analysis.Direction(d)
		if dir != analysis.DirectionLong && dir != analysis.DirectionShort {
			errorResponse(c, http.StatusBadRequest, "direction must be LONG or SHORT")
			return
		}
		f.Direction = dir
	}
	if st := c.Query("status"); st != "" {
		status, err := signals.ParseStatus(strings.ToUpper(st))
		if err != nil {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = status
	}
	if l := c.Query("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit <= 0 {
			errorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		f.Limit = limit
	}

	list, err := s.store.List(c.Request.Context(), f)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*signals.Signal{}
	}
	successResponse(c, list)
}

// handleGetSignal returns one signal by ID
func (s *Server) handleGetSignal(c *gin.Context) {
	sig, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	successResponse(c, sig)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// handleUpdateSignalStatus applies a manual lifecycle transition
func (s *Server) handleUpdateSignalStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	to, err := signals.ParseStatus(strings.ToUpper(req.Status))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	before, err := s.store.Get(ctx, id)
	if err != nil {
		storeError(c, err)
		return
	}

	updated, err := s.store.UpdateStatus(ctx, id, to, time.Now().UTC())
	if err != nil {
		storeError(c, err)
		return
	}

	cause := "manual"
	if claims := auth.GetClaims(c); claims != nil {
		cause = "manual:" + claims.Subject
	}
	if s.eventBus != nil {
		s.eventBus.PublishSignalStatusChanged(updated, before.Status, cause)
	}
	successResponse(c, updated)
}

func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, signals.ErrSignalNotFound):
		errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, signals.ErrInvalidTransition):
		errorResponse(c, http.StatusConflict, err.Error())
	default:
		errorResponse(c, http.StatusInternalServerError, err.Error())
	}
}
