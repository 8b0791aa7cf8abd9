package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumetric/edumetric/internal/analysis"
	"github.com/edumetric/edumetric/internal/analytics"
	"github.com/edumetric/edumetric/internal/cache"
	"github.com/edumetric/edumetric/internal/database"
	"github.com/edumetric/edumetric/internal/email"
	"github.com/edumetric/edumetric/internal/monitoring"
	"github.com/edumetric/edumetric/internal/types"
)

// setupTestRouter wires a minimal router against a throwaway sqlite store.
// No classifier artifacts are loaded, so predictions degrade to "unknown".
func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := database.NewRepository(db)
	predictor := analysis.NewPredictor(nil)
	svc := analytics.NewService(
		repo,
		analysis.NewScorer(predictor),
		predictor,
		analysis.NewAggregator(0),
		cache.NewCache(time.Minute),
		monitoring.NewMetrics(),
		monitoring.NewLogger(),
		false,
	)
	alertService := email.NewConsoleService(monitoring.NewLogger().Logger)

	r := gin.New()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "models_loaded": predictor.Available()})
	})

	api := r.Group("/api")

	api.GET("/stats", func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	api.POST("/student/predict", func(c *gin.Context) {
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

	api.POST("/student/create", func(c *gin.Context) {
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

	api.GET("/student/read/:rno", func(c *gin.Context) {
		sr, err := svc.Read(c.Request.Context(), c.Param("rno"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, sr)
	})

	api.POST("/department/analyze", func(c *gin.Context) {
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

	api.POST("/analytics/drilldown", func(c *gin.Context) {
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
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "alert sent", "recipient": alert.Recipient})
	})

	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func getPath(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	r.ServeHTTP(w, req)
	return w
}

func testStudent(rno string) map[string]any {
	return map[string]any{
		"RNO":                  rno,
		"NAME":                 "Asha",
		"DEPT":                 "CSE",
		"YEAR":                 1,
		"CURR_SEM":             3,
		"SEM1":                 70,
		"SEM2":                 80,
		"INTERNAL_MARKS":       24,
		"BEHAVIOR_SCORE_10":    8,
		"TOTAL_DAYS_CURR":      100,
		"ATTENDED_DAYS_CURR":   90,
		"PREV_ATTENDANCE_PERC": 85,
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := setupTestRouter(t)

	w := getPath(t, r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["models_loaded"])
}

func TestPredictEndpoint(t *testing.T) {
	r := setupTestRouter(t)

	w := postJSON(t, r, "/api/student/predict", testStudent("21CS001"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Features struct {
			PerformanceOverall float64 `json:"performance_overall"`
			PastAvg            float64 `json:"past_avg"`
		} `json:"features"`
		Predictions struct {
			PerformanceLabel string `json:"performance_label"`
		} `json:"predictions"`
		NeedAlert bool `json:"need_alert"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 78.7, resp.Features.PerformanceOverall)
	assert.Equal(t, 75.0, resp.Features.PastAvg)
	assert.Equal(t, "unknown", resp.Predictions.PerformanceLabel)
	assert.False(t, resp.NeedAlert)
}

func TestStudentCreateAndRead(t *testing.T) {
	r := setupTestRouter(t)

	w := postJSON(t, r, "/api/student/create", testStudent("21CS001"))
	assert.Equal(t, http.StatusCreated, w.Code)

	// Duplicate register number conflicts.
	w = postJSON(t, r, "/api/student/create", testStudent("21CS001"))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = getPath(t, r, "/api/student/read/21CS001")
	require.Equal(t, http.StatusOK, w.Code)

	var sr struct {
		RNO                string  `json:"RNO"`
		PerformanceOverall float64 `json:"performance_overall"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sr))
	assert.Equal(t, "21CS001", sr.RNO)
	assert.Equal(t, 78.7, sr.PerformanceOverall)

	w = getPath(t, r, "/api/student/read/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentCreateValidation(t *testing.T) {
	r := setupTestRouter(t)

	w := postJSON(t, r, "/api/student/create", map[string]any{"NAME": "NoRNO"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDepartmentAnalyzeEndpoint(t *testing.T) {
	r := setupTestRouter(t)

	require.Equal(t, http.StatusCreated, postJSON(t, r, "/api/student/create", testStudent("21CS001")).Code)
	require.Equal(t, http.StatusCreated, postJSON(t, r, "/api/student/create", testStudent("21CS002")).Code)

	w := postJSON(t, r, "/api/department/analyze", map[string]any{"dept": "CSE"})
	require.Equal(t, http.StatusOK, w.Code)

	var summary analysis.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Stats.TotalStudents)
	assert.Equal(t, 2, summary.Population)

	// Missing dept is a validation error.
	w = postJSON(t, r, "/api/department/analyze", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDrilldownEndpointValidation(t *testing.T) {
	r := setupTestRouter(t)

	w := postJSON(t, r, "/api/analytics/drilldown", map[string]any{
		"scope":       "campus",
		"scope_value": "north",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendAlertEndpoint(t *testing.T) {
	r := setupTestRouter(t)

	w := postJSON(t, r, "/api/send-alert", map[string]any{
		"email":   "mentor@example.com",
		"student": testStudent("21CS001"),
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "mentor@example.com", body["recipient"])

	// Missing recipient.
	w = postJSON(t, r, "/api/send-alert", map[string]any{
		"student": testStudent("21CS001"),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
