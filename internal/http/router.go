package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/propintel/backend/internal/config"
	"github.com/propintel/backend/internal/engine"
	"github.com/propintel/backend/internal/http/handlers"
	"github.com/propintel/backend/internal/http/middleware"
	"github.com/propintel/backend/internal/service"

	_ "github.com/propintel/backend/docs"
)

func Router(cfg config.Config, store handlers.Store, svc *service.AnalysisService, eng *engine.Engine, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.AdminKeyHeader, middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Service:   svc,
		Engine:    eng,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/analyze", h.Analyze)
		api.POST("/match", h.Match)
		api.POST("/intent", h.Intent)
		api.POST("/insights/analyze", h.AnalyzeInsights)
		api.POST("/recommendations/generate", h.GenerateRecommendations)

		api.GET("/clients", h.ClientsList)
		api.GET("/properties", h.PropertiesList)
		api.GET("/insights", h.InsightsList)
		api.GET("/recommendations", h.RecommendationsList)
		api.GET("/runs/latest", h.RunsLatest)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey, logger))
	{
		admin.POST("/clients/:id/analyze", h.AnalyzeClient)
		admin.POST("/process/recommendations", h.ProcessRecommendations)
		admin.POST("/process/insights", h.ProcessInsights)
		admin.POST("/process/analyze-all", h.ProcessAnalyzeAll)
		admin.POST("/recommendations/:id/read", h.MarkRecommendationRead)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
