package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/edumetric/edumetric/internal/analysis"
	"github.com/edumetric/edumetric/internal/analytics"
	"github.com/edumetric/edumetric/internal/cache"
	"github.com/edumetric/edumetric/internal/database"
	"github.com/edumetric/edumetric/internal/email"
	"github.com/edumetric/edumetric/internal/errors"
	"github.com/edumetric/edumetric/internal/model"
	"github.com/edumetric/edumetric/internal/monitoring"
	"github.com/edumetric/edumetric/internal/ratelimit"
	"github.com/edumetric/edumetric/internal/security"
	"github.com/edumetric/edumetric/internal/types"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	port := getEnvOrDefault("PORT", "8080")
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := getEnvIntOrDefault("REDIS_DB", 0)
	sendgridKey := os.Getenv("SENDGRID_API_KEY")
	alertFrom := getEnvOrDefault("ALERT_FROM_EMAIL", "alerts@edumetric.local")
	sampleCap := getEnvIntOrDefault("SAMPLE_CAP", analysis.DefaultSampleCap)
	cacheTTL := getEnvDurationOrDefault("CACHE_TTL", 15*time.Minute)
	corsOrigins := getEnvOrDefault("CORS_ORIGINS", "*")
	writeBack := getEnvOrDefault("SCORE_WRITEBACK", "true") == "true"

	db, err := database.NewDB(dataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := database.NewRepository(db)

	// Model artifacts are optional: without them the predictor degrades to
	// "unknown" labels while numeric scoring keeps working.
	artifacts := model.NewStore(dataDir).Load()
	predictor := analysis.NewPredictor(artifacts)
	scorer := analysis.NewScorer(predictor)
	aggregator := analysis.NewAggregator(sampleCap)

	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()
	appCache := cache.NewCache(cacheTTL)

	var alertService email.Service
	if sendgridKey != "" {
		alertService = email.NewSendgridService(sendgridKey, alertFrom, logger)
	} else {
		slog.Warn("SENDGRID_API_KEY not set, alerts go to the log")
		alertService = email.NewConsoleService(logger)
	}

	svc := analytics.NewService(repo, scorer, predictor, aggregator,
		appCache, appMetrics, appLogger, writeBack)

	redisClient, err := ratelimit.NewRedisClient(redisAddr, redisPassword, redisDB)
	if err != nil {
		slog.Warn("Redis unavailable, rate limiting falls back to in-memory", "error", err)
	}
	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), appMetrics)

	r := gin.New()

	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	corsConfig := cors.DefaultConfig()
	if corsOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(corsOrigins, ",")
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	securityMiddleware := security.NewMiddleware(security.DefaultConfig())
	r.Use(securityMiddleware.SecurityHeaders)
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(securityMiddleware.ValidateContentType)
	r.Use(securityMiddleware.LimitBodySize)

	r.Use(limiter.Middleware(appMetrics))
	r.Use(appCache.Middleware(appMetrics, appLogger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"timestamp":     time.Now().Format(time.RFC3339),
			"models_loaded": predictor.Available(),
			"metrics":       appMetrics.GetStats(),
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")

	api.GET("/stats", func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	student := api.Group("/student")

	student.POST("/search", func(c *gin.Context) {
		var req types.SearchRequest
		if err := c.BindJSON(&req); err != nil {
			abortWithError(c, err)
			return
		}
		results, err := svc.Search(c.Request.Context(), req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": results, "count": len(results)})
	})

	student.POST("/predict", limiter.HeavyMiddleware(appMetrics), func(c *gin.Context) {
		var rec types.StudentRecord
		if err := c.BindJSON(&rec); err != nil {
			abortWithError(c, err)
			return
		}
		resp, err := svc.Predict(c.Request.Context(), rec)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	student.POST("/create", func(c *gin.Context) {
		var rec types.StudentRecord
		if err := c.BindJSON(&rec); err != nil {
			abortWithError(c, err)
			return
		}
		sr, err := svc.Create(c.Request.Context(), rec)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sr)
	})

	student.GET("/read/:rno", func(c *gin.Context) {
		sr, err := svc.Read(c.Request.Context(), c.Param("rno"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, sr)
	})

	student.PUT("/update", func(c *gin.Context) {
		var rec types.StudentRecord
		if err := c.BindJSON(&rec); err != nil {
			abortWithError(c, err)
			return
		}
		sr, err := svc.Update(c.Request.Context(), rec)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, sr)
	})

	student.DELETE("/delete/:rno", func(c *gin.Context) {
		rno := c.Param("rno")
		if err := svc.Delete(c.Request.Context(), rno); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "student deleted", "rno": rno})
	})

	api.POST("/department/analyze", limiter.HeavyMiddleware(appMetrics), func(c *gin.Context) {
		var req types.CohortRequest
		if err := c.BindJSON(&req); err != nil {
			abortWithError(c, err)
			return
		}
		summary, err := svc.AnalyzeCohort(c.Request.Context(), analysis.CohortFilter{
			Scope:      analysis.ScopeDept,
			ScopeValue: req.Dept,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	api.POST("/year/analyze", limiter.HeavyMiddleware(appMetrics), func(c *gin.Context) {
		var req types.CohortRequest
		if err := c.BindJSON(&req); err != nil {
			abortWithError(c, err)
			return
		}
		summary, err := svc.AnalyzeCohort(c.Request.Context(), analysis.CohortFilter{
			Scope:      analysis.ScopeYear,
			ScopeValue: req.Year,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	api.GET("/college/analyze", limiter.HeavyMiddleware(appMetrics), func(c *gin.Context) {
		summary, err := svc.AnalyzeCohort(c.Request.Context(), analysis.CohortFilter{
			Scope: analysis.ScopeCollege,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	api.POST("/analytics/drilldown", limiter.HeavyMiddleware(appMetrics), func(c *gin.Context) {
		var req types.DrilldownRequest
		if err := c.BindJSON(&req); err != nil {
			abortWithError(c, err)
			return
		}
		summary, err := svc.Drilldown(c.Request.Context(), req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	api.POST("/analytics/aggregated", limiter.HeavyMiddleware(appMetrics), func(c *gin.Context) {
		comparisons, err := svc.AggregatedComparisons(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, comparisons)
	})

	api.POST("/send-alert", func(c *gin.Context) {
		var req types.AlertRequest
		if err := c.BindJSON(&req); err != nil {
			abortWithError(c, err)
			return
		}

		alert, err := buildAlert(c.Request.Context(), svc, req)
		if err != nil {
			abortWithError(c, err)
			return
		}

		if err := alertService.SendAlert(c.Request.Context(), alert); err != nil {
			appLogger.AlertLogger(alert.RNO, alert.Recipient, false, err)
			abortWithError(c, err)
			return
		}
		appLogger.AlertLogger(alert.RNO, alert.Recipient, true, nil)

		if err := svc.RecordAlert(c.Request.Context(), alert.RNO, alert.Recipient, alert.Prediction); err != nil {
			// Delivery succeeded; a failed audit write must not fail the call.
			slog.Error("Failed to record alert", "error", err, "rno", alert.RNO)
		}

		c.JSON(http.StatusOK, gin.H{"message": "alert sent", "recipient": alert.Recipient})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", port, "data_dir", dataDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if redisClient != nil {
		redisClient.Close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

func abortWithError(c *gin.Context, err error) {
	appErr := errors.ToAppError(err)
	errors.LogError(c, appErr)
	c.JSON(appErr.HTTPStatus, appErr)
}

// buildAlert assembles the alert email payload. Predictions and features from
// the request are used when present; otherwise the student record is scored
// fresh so a bare {email, student} payload still produces a complete alert.
func buildAlert(ctx context.Context, svc *analytics.Service, req types.AlertRequest) (email.Alert, error) {
	if strings.TrimSpace(req.Email) == "" {
		return email.Alert{}, errors.NewValidationError("email is required")
	}
	if len(req.Student) == 0 {
		return email.Alert{}, errors.NewValidationError("student is required")
	}

	student := req.Student.Canonical()
	alert := email.Alert{
		Recipient: strings.TrimSpace(req.Email),
		RNO:       student.String(types.FieldRNO),
		Name:      student.String(types.FieldName),
		Dept:      student.String(types.FieldDept),
		Year:      student.Int(types.FieldYear),
		CurrSem:   student.Int(types.FieldCurrSem),
	}
	if alert.RNO == "" && alert.Name == "" {
		return email.Alert{}, errors.NewValidationError("student RNO or NAME is required")
	}

	if len(req.Predictions) > 0 && len(req.Features) > 0 {
		pred := types.StudentRecord(req.Predictions).Canonical()
		feats := types.StudentRecord(req.Features).Canonical()
		alert.Prediction = analysis.Prediction{
			PerformanceLabel: pred.String(types.FieldPerformanceLabel),
			RiskLabel:        pred.String(types.FieldRiskLabel),
			DropoutLabel:     pred.String(types.FieldDropoutLabel),
		}
		alert.Features = analysis.Features{
			PastAvg:            feats.Float(types.FieldPastAvg),
			PastCount:          feats.Int(types.FieldPastCount),
			InternalPct:        feats.Float(types.FieldInternalPct),
			AttendancePct:      feats.Float(types.FieldAttendancePct),
			BehaviorPct:        feats.Float(types.FieldBehaviorPct),
			PerformanceTrend:   feats.Float(types.FieldPerformanceTrend),
			PerformanceOverall: feats.Float(types.FieldPerformanceOverall),
			RiskScore:          feats.Float(types.FieldRiskScore),
			DropoutScore:       feats.Float(types.FieldDropoutScore),
		}
		return alert, nil
	}

	resp, err := svc.Predict(ctx, student)
	if err != nil {
		return email.Alert{}, err
	}
	alert.Prediction = resp.Prediction
	alert.Features = resp.Features
	return alert, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
