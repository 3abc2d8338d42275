package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/propintel/backend/internal/engine"
	"github.com/propintel/backend/internal/models"
	"github.com/propintel/backend/internal/service"
)

// Store is the read side of the database layer plus run bookkeeping.
type Store interface {
	Ping(ctx context.Context) error
	ListClients(ctx context.Context, status string) ([]models.Client, error)
	ListProperties(ctx context.Context, area, category, status string, limit, offset int) ([]models.Property, error)
	ListInsights(ctx context.Context, area, category string, now time.Time) ([]models.MarketInsight, error)
	ListRecommendations(ctx context.Context, clientID string, unreadOnly bool, limit, offset int) ([]models.BrokerRecommendation, error)
	MarkRecommendationRead(ctx context.Context, id string) error
	CreateRun(ctx context.Context, kind, status string) (string, error)
	FinishRun(ctx context.Context, runID string, status string, summary []byte) error
	GetLatestRun(ctx context.Context, kind string) (models.Run, error)
}

type Handler struct {
	Store     Store
	Service   *service.AnalysisService
	Engine    *engine.Engine
	Validator *validator.Validate
	Logger    zerolog.Logger
}

type AnalyzeRequest struct {
	Client          models.Client         `json:"client"`
	Properties      []models.Property     `json:"properties" validate:"required,min=1"`
	SentProperties  []models.SentProperty `json:"sent_properties"`
	SentPropertyIDs []string              `json:"sent_property_ids"`
}

type MatchRequest struct {
	Client         models.Client         `json:"client"`
	Properties     []models.Property     `json:"properties" validate:"required,min=1"`
	SentProperties []models.SentProperty `json:"sent_properties"`
}

type IntentRequest struct {
	Client models.Client `json:"client"`
}

type InsightsRequest struct {
	Properties []models.Property `json:"properties" validate:"required,min=1"`
}

type RecommendationsRequest struct {
	Clients      []models.Client   `json:"clients" validate:"required,min=1"`
	Properties   []models.Property `json:"properties"`
	FollowUpDays *int              `json:"follow_up_days" validate:"omitempty,min=1"`
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Analyze a client
// @Description Scores matches and intent, builds recommendations, insights and next best actions for one client
// @Tags engine
// @Accept json
// @Produce json
// @Param request body AnalyzeRequest true "Client, properties and sent history"
// @Success 200 {object} models.AIAnalysisResult
// @Router /api/analyze [post]
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if !h.bind(c, &req) {
		return
	}
	sent := req.SentProperties
	for _, id := range req.SentPropertyIDs {
		sent = append(sent, models.SentProperty{ClientID: req.Client.ID, PropertyID: id})
	}
	result, err := h.Engine.Analyze(req.Client, req.Properties, sent)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Match properties
// @Tags engine
// @Accept json
// @Produce json
// @Param request body MatchRequest true "Client and candidate properties"
// @Success 200 {object} map[string]any
// @Router /api/match [post]
func (h *Handler) Match(c *gin.Context) {
	var req MatchRequest
	if !h.bind(c, &req) {
		return
	}
	matches, skipped, err := h.Engine.FindMatches(req.Client, req.Properties, req.SentProperties)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": matches, "skipped": skipped})
}

// @Summary Score purchase intent
// @Tags engine
// @Accept json
// @Produce json
// @Param request body IntentRequest true "Client"
// @Success 200 {object} models.ClientIntentScore
// @Router /api/intent [post]
func (h *Handler) Intent(c *gin.Context) {
	var req IntentRequest
	if !h.bind(c, &req) {
		return
	}
	score, err := h.Engine.ScoreIntent(req.Client)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

// @Summary Analyze market
// @Tags engine
// @Accept json
// @Produce json
// @Param request body InsightsRequest true "Properties"
// @Success 200 {object} map[string]any
// @Router /api/insights/analyze [post]
func (h *Handler) AnalyzeInsights(c *gin.Context) {
	var req InsightsRequest
	if !h.bind(c, &req) {
		return
	}
	insights, skipped := h.Engine.InsightsAll(req.Properties)
	c.JSON(http.StatusOK, gin.H{"items": insights, "skipped": skipped})
}

// @Summary Generate recommendations
// @Tags engine
// @Accept json
// @Produce json
// @Param request body RecommendationsRequest true "Clients and properties"
// @Success 200 {object} map[string]any
// @Router /api/recommendations/generate [post]
func (h *Handler) GenerateRecommendations(c *gin.Context) {
	var req RecommendationsRequest
	if !h.bind(c, &req) {
		return
	}
	days := h.Engine.Config().Thresholds.FollowUpDays
	if req.FollowUpDays != nil {
		days = *req.FollowUpDays
	}
	recs, skipped := h.Engine.GenerateRecommendations(req.Clients, req.Properties, days)
	c.JSON(http.StatusOK, gin.H{"items": recs, "skipped": skipped})
}

func (h *Handler) ClientsList(c *gin.Context) {
	items, err := h.Store.ListClients(c.Request.Context(), strings.ToLower(strings.TrimSpace(c.Query("status"))))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list clients", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) PropertiesList(c *gin.Context) {
	area := strings.TrimSpace(c.Query("area"))
	category := strings.ToLower(strings.TrimSpace(c.Query("category")))
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	items, err := h.Store.ListProperties(c.Request.Context(), area, category, status, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list properties", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *Handler) InsightsList(c *gin.Context) {
	area := strings.TrimSpace(c.Query("area"))
	category := strings.ToLower(strings.TrimSpace(c.Query("category")))
	items, err := h.Store.ListInsights(c.Request.Context(), area, category, time.Now().UTC())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list insights", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) RecommendationsList(c *gin.Context) {
	clientID := strings.TrimSpace(c.Query("client_id"))
	unread := c.Query("unread") == "1" || strings.EqualFold(c.Query("unread"), "true")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.Store.ListRecommendations(c.Request.Context(), clientID, unread, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list recommendations", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Latest run
// @Tags runs
// @Produce json
// @Param kind query string false "recommendations, insights or analyze_all"
// @Success 200 {object} models.Run
// @Router /api/runs/latest [get]
func (h *Handler) RunsLatest(c *gin.Context) {
	run, err := h.Store.GetLatestRun(c.Request.Context(), c.Query("kind"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "No runs found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load run", err.Error())
		return
	}
	c.JSON(http.StatusOK, run)
}

// @Summary Analyze a stored client
// @Tags process
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} models.AIAnalysisResult
// @Router /api/clients/{id}/analyze [post]
func (h *Handler) AnalyzeClient(c *gin.Context) {
	result, err := h.Service.AnalyzeClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Client not found", nil)
			return
		}
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Run recommendations for all clients
// @Tags process
// @Produce json
// @Success 200 {object} service.RunSummary
// @Router /api/process/recommendations [post]
func (h *Handler) ProcessRecommendations(c *gin.Context) {
	h.runProcess(c, service.RunRecommendations, h.Service.RunRecommendations)
}

// @Summary Recompute market insights
// @Tags process
// @Produce json
// @Success 200 {object} service.RunSummary
// @Router /api/process/insights [post]
func (h *Handler) ProcessInsights(c *gin.Context) {
	h.runProcess(c, service.RunInsights, h.Service.RunInsights)
}

// @Summary Analyze all active clients
// @Tags process
// @Produce json
// @Success 200 {object} service.RunSummary
// @Router /api/process/analyze-all [post]
func (h *Handler) ProcessAnalyzeAll(c *gin.Context) {
	h.runProcess(c, service.RunAnalyzeAll, h.Service.AnalyzeAll)
}

func (h *Handler) runProcess(c *gin.Context, kind string, run func(context.Context) (service.RunSummary, error)) {
	ctx := c.Request.Context()
	runID, err := h.Store.CreateRun(ctx, kind, service.StatusRunning)
	if err != nil {
		h.Logger.Error().Err(err).Str("kind", kind).Msg("failed to create run")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create run", err.Error())
		return
	}

	summary, err := run(ctx)
	status := service.StatusSuccess
	if err != nil {
		status = service.StatusFailed
	}
	b, _ := json.Marshal(summary)
	if finishErr := h.Store.FinishRun(ctx, runID, status, b); finishErr != nil {
		h.Logger.Error().Err(finishErr).Str("run_id", runID).Msg("failed to finish run")
	}

	if err != nil {
		h.Logger.Error().Err(err).Str("kind", kind).Msg("processing failed")
		writeError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Processing failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "summary": summary})
}

// @Summary Mark recommendation read
// @Tags recommendations
// @Produce json
// @Param id path string true "Recommendation ID"
// @Success 200 {object} map[string]any
// @Router /api/recommendations/{id}/read [post]
func (h *Handler) MarkRecommendationRead(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Recommendation not found", nil)
		return
	}
	if err := h.Store.MarkRecommendationRead(c.Request.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Recommendation not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update recommendation", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) writeEngineError(c *gin.Context, err error) {
	if engine.IsInvalidInput(err) {
		writeError(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid input", err.Error())
		return
	}
	h.Logger.Error().Err(err).Msg("analysis failed")
	writeError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Analysis failed", err.Error())
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
