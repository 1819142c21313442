package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"strategy-lab/internal/engine"
	"strategy-lab/internal/live"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/record"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultAccount  = "default"
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

type traderRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Account  string `json:"account"`
	Interval string `json:"interval"`
}

type traderQuery struct {
	Symbol  string `form:"symbol"`
	Account string `form:"account"`
	Limit   int    `form:"limit"`
}

func (q *traderQuery) normalize() {
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	q.Account = strings.TrimSpace(q.Account)
	if q.Account == "" {
		q.Account = defaultAccount
	}
	if q.Limit <= 0 {
		q.Limit = defaultLogLimit
	}
	if q.Limit > maxLogLimit {
		q.Limit = maxLogLimit
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// respondServiceError maps engine errors onto HTTP statuses.
func (s *Server) respondServiceError(c *gin.Context, err error) {
	var formatErr *record.RecordFormatError
	switch {
	case errors.Is(err, engine.ErrInvalidRequest), errors.Is(err, live.ErrInvalidRequest):
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, engine.ErrInsufficientData):
		respondError(c, http.StatusBadRequest, "INSUFFICIENT_DATA", err.Error())
	case errors.Is(err, record.ErrNotFound):
		respondError(c, http.StatusNotFound, "RECORD_NOT_FOUND", err.Error())
	case errors.Is(err, live.ErrNotRunning):
		respondError(c, http.StatusNotFound, "TRADER_NOT_RUNNING", err.Error())
	case errors.Is(err, optimizer.ErrOptimizationFailed):
		respondError(c, http.StatusUnprocessableEntity, "OPTIMIZATION_FAILED", err.Error())
	case errors.As(err, &formatErr):
		respondError(c, http.StatusUnprocessableEntity, "RECORD_FORMAT", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, "TIMEOUT", "request took too long to process")
	default:
		s.Logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err),
		)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func (s *Server) backtest(c *gin.Context) {
	var req engine.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	resp, err := s.Engine.Backtest(c.Request.Context(), req)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) optimize(c *gin.Context) {
	var req engine.OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	resp, err := s.Engine.Optimize(c.Request.Context(), req)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) retrain(c *gin.Context) {
	var req engine.RetrainRequest
	// Body is optional.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
			return
		}
	}
	if force, err := strconv.ParseBool(c.Query("force")); err == nil {
		req.Force = req.Force || force
	}
	req.Symbol = c.Param("symbol")

	resp, err := s.Engine.Retrain(c.Request.Context(), req)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) saveRecord(c *gin.Context) {
	var req engine.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	rec, err := s.Engine.SaveRecord(c.Request.Context(), req)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) listRecords(c *gin.Context) {
	records, err := s.Engine.ListRecords(c.Request.Context())
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	if records == nil {
		records = []engine.RecordSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"strategies": records, "count": len(records)})
}

// getRecord returns the record with its run history, or the bare flat
// record as YAML when format=yaml.
func (s *Server) getRecord(c *gin.Context) {
	detail, err := s.Engine.GetRecord(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	if strings.EqualFold(c.Query("format"), "yaml") {
		out, err := record.EncodeYAML(detail.Record)
		if err != nil {
			s.respondServiceError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/yaml", out)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) deleteRecord(c *gin.Context) {
	symbol := c.Param("symbol")
	if err := s.Engine.DeleteRecord(c.Request.Context(), symbol); err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": strings.ToUpper(symbol)})
}

func (s *Server) startTrader(c *gin.Context) {
	var req traderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "symbol is required")
		return
	}
	if req.Account == "" {
		req.Account = defaultAccount
	}
	st, err := s.Engine.StartTrader(c.Request.Context(), engine.TraderRequest{
		Symbol:   req.Symbol,
		Account:  req.Account,
		Interval: req.Interval,
	})
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) stopTrader(c *gin.Context) {
	var req traderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "symbol is required")
		return
	}
	if req.Account == "" {
		req.Account = defaultAccount
	}
	if err := s.Engine.StopTrader(c.Request.Context(), req.Symbol, req.Account); err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": live.Key(req.Symbol, req.Account)})
}

// traderStatus returns one trader when symbol is given, otherwise all of them.
func (s *Server) traderStatus(c *gin.Context) {
	var q traderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return
	}
	q.normalize()
	if q.Symbol == "" {
		traders := s.Engine.ListTraders(c.Request.Context())
		if traders == nil {
			traders = []live.Status{}
		}
		c.JSON(http.StatusOK, gin.H{"traders": traders, "count": len(traders)})
		return
	}
	st, err := s.Engine.TraderStatus(c.Request.Context(), q.Symbol, q.Account)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) traderLogs(c *gin.Context) {
	q, ok := s.bindTraderQuery(c)
	if !ok {
		return
	}
	logs, err := s.Engine.TraderLogs(c.Request.Context(), q.Symbol, q.Account, q.Limit)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

func (s *Server) traderChart(c *gin.Context) {
	q, ok := s.bindTraderQuery(c)
	if !ok {
		return
	}
	chart, err := s.Engine.TraderChart(c.Request.Context(), q.Symbol, q.Account)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, chart)
}

// traderSignals returns the signals persisted for a trader, newest first.
func (s *Server) traderSignals(c *gin.Context) {
	q, ok := s.bindTraderQuery(c)
	if !ok {
		return
	}
	signals, err := s.Engine.TraderSignals(c.Request.Context(), q.Symbol, q.Account, q.Limit)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

func (s *Server) bindTraderQuery(c *gin.Context) (traderQuery, bool) {
	var q traderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return q, false
	}
	q.normalize()
	if q.Symbol == "" {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "symbol is required")
		return q, false
	}
	return q, true
}

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.GetSystemStatus(c.Request.Context()))
}
