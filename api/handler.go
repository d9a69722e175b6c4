package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/viktsys/tradejournal/contracts"
	"github.com/viktsys/tradejournal/database"
	"github.com/viktsys/tradejournal/ingest"
	"github.com/viktsys/tradejournal/metrics"
	"github.com/viktsys/tradejournal/models"
	"github.com/viktsys/tradejournal/notes"
	"github.com/viktsys/tradejournal/trades"
)

const dateLayout = "2006-01-02"

// StatsStore answers per-contract statistics over stored days.
type StatsStore interface {
	ContractStats(ctx context.Context, contract string, from time.Time) (*models.ContractStats, error)
}

type Handler struct {
	processor *ingest.Processor
	registry  *contracts.Registry
	journal   *notes.Journal
	stats     StatsStore
}

// NewHandler wires the HTTP surface. stats may be nil when no database is configured.
func NewHandler(processor *ingest.Processor, registry *contracts.Registry, journal *notes.Journal, stats StatsStore) *Handler {
	return &Handler{
		processor: processor,
		registry:  registry,
		journal:   journal,
		stats:     stats,
	}
}

type QueryParams struct {
	Contract string `form:"contract" binding:"required"`
	From     string `form:"from"`
}

type tradeView struct {
	ID string `json:"id"`
	models.Trade
	Note  string `json:"note,omitempty"`
	Color string `json:"color"`
}

type dayResponse struct {
	Date         string            `json:"date"`
	Source       string            `json:"source,omitempty"`
	Dialect      string            `json:"dialect,omitempty"`
	Trades       []tradeView       `json:"trades"`
	Summary      models.DaySummary `json:"summary"`
	Note         string            `json:"note"`
	Dropped      int               `json:"dropped_lines"`
	MissingSpecs []string          `json:"missing_specs,omitempty"`
	Error        string            `json:"error,omitempty"`
}

func (h *Handler) GetDay(c *gin.Context) {
	date := c.Param("date")
	if _, err := time.Parse(dateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD"})
		return
	}

	result, err := h.processor.ProcessDay(c.Request.Context(), date)
	resp := dayResponse{
		Date:         date,
		Source:       result.Source,
		Dialect:      result.Dialect,
		Trades:       make([]tradeView, 0, len(result.Trades)),
		Summary:      result.Summary,
		Dropped:      len(result.Diagnostics),
		MissingSpecs: result.MissingSpecs,
	}
	// A failed day is served as an empty table
	if err != nil {
		resp.Error = err.Error()
	}

	tradeNotes, err := h.journal.TradeNotes(date)
	if err != nil {
		log.Warn().Err(err).Str("date", date).Msg("Failed to load trade notes")
	}
	colors, err := h.journal.TradeColors(date)
	if err != nil {
		log.Warn().Err(err).Str("date", date).Msg("Failed to load trade colors")
	}
	for _, t := range result.Trades {
		id := trades.ID(date, t)
		color := colors[id]
		if color == "" {
			color = notes.DefaultColor
		}
		resp.Trades = append(resp.Trades, tradeView{ID: id, Trade: t, Note: tradeNotes[id], Color: color})
	}

	if resp.Note, err = h.journal.DayNote(date); err != nil {
		log.Warn().Err(err).Str("date", date).Msg("Failed to load day note")
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetMonth(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid year"})
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid month. Use 1-12"})
		return
	}

	result, err := h.processor.ProcessMonth(c.Request.Context(), year, time.Month(month))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListContracts(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.All())
}

type contractBody struct {
	TickValue decimal.Decimal `json:"tick_value"`
	TickSize  decimal.Decimal `json:"tick_size"`
}

func (h *Handler) PutContract(c *gin.Context) {
	var body contractBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	spec, err := h.registry.Save(strings.ToUpper(c.Param("symbol")), body.TickValue, body.TickSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("symbol", spec.Symbol).Str("tick_value", spec.TickValue.String()).
		Str("tick_size", spec.TickSize.String()).Msg("Contract spec saved")
	c.JSON(http.StatusOK, spec)
}

type textBody struct {
	Note  string `json:"note"`
	Color string `json:"color"`
}

func (h *Handler) ListNotedDays(c *gin.Context) {
	days, err := h.journal.NotedDays()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

func (h *Handler) GetDayNote(c *gin.Context) {
	date := c.Param("date")
	note, err := h.journal.DayNote(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "note": note})
}

func (h *Handler) PutDayNote(c *gin.Context) {
	date := c.Param("date")
	if _, err := time.Parse(dateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD"})
		return
	}
	var body textBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.journal.SetDayNote(date, body.Note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "note": body.Note})
}

func (h *Handler) GetTradeNote(c *gin.Context) {
	id := c.Param("id")
	note, err := h.journal.TradeNote(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "note": note})
}

func (h *Handler) PutTradeNote(c *gin.Context) {
	id := c.Param("id")
	var body textBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.journal.SetTradeNote(id, body.Note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "note": body.Note})
}

func (h *Handler) DeleteTradeNote(c *gin.Context) {
	if err := h.journal.DeleteTradeNote(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetTradeColor(c *gin.Context) {
	id := c.Param("id")
	color, err := h.journal.TradeColor(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "color": color})
}

func (h *Handler) PutTradeColor(c *gin.Context) {
	id := c.Param("id")
	var body textBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Color) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "color is required"})
		return
	}
	if err := h.journal.SetTradeColor(id, body.Color); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "color": body.Color})
}

func (h *Handler) GetTradeStats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}

	var params QueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var startDate time.Time
	var err error

	if params.From != "" {
		startDate, err = time.Parse(dateLayout, params.From)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD"})
			return
		}
	} else {
		// Default to the last 30 days
		startDate = time.Now().AddDate(0, 0, -30)
	}

	stats, err := h.stats.ContractStats(c.Request.Context(), strings.ToUpper(params.Contract), startDate)
	if errors.Is(err, database.ErrNoStats) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().Str("method", c.Request.Method).Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).Dur("took", time.Since(start)).Msg("HTTP request")
	}
}

func (h *Handler) SetupRoutes() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(), requestMetrics(), gin.Recovery())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/days/:date", h.GetDay)
	api.GET("/months/:year/:month", h.GetMonth)

	api.GET("/contracts", h.ListContracts)
	api.PUT("/contracts/:symbol", h.PutContract)

	api.GET("/notes", h.ListNotedDays)
	api.GET("/notes/:date", h.GetDayNote)
	api.PUT("/notes/:date", h.PutDayNote)

	api.GET("/trades/:id/note", h.GetTradeNote)
	api.PUT("/trades/:id/note", h.PutTradeNote)
	api.DELETE("/trades/:id/note", h.DeleteTradeNote)
	api.GET("/trades/:id/color", h.GetTradeColor)
	api.PUT("/trades/:id/color", h.PutTradeColor)

	api.GET("/stats", h.GetTradeStats)

	return r
}
