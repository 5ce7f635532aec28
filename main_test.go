package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agrodetect/config"
	"agrodetect/devices"
	"agrodetect/handlers"
	"agrodetect/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorsConfig(t *testing.T) {
	all := corsConfig([]string{"*"})
	assert.True(t, all.AllowAllOrigins)
	assert.False(t, all.AllowCredentials)
	assert.Empty(t, all.AllowOrigins)

	listed := corsConfig([]string{"http://localhost:3000", "https://agro.example.com"})
	assert.False(t, listed.AllowAllOrigins)
	assert.True(t, listed.AllowCredentials)
	assert.Equal(t, []string{"http://localhost:3000", "https://agro.example.com"}, listed.AllowOrigins)
}

func TestSetupRouterServesMetricsAndUploads(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Load()
	cfg.UploadRoot = t.TempDir()

	h := handlers.NewHandlers(handlers.Deps{Registry: devices.NewRegistry()})
	router := setupRouter(cfg, h, middleware.NewRateLimiter(10, time.Minute))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analysis/esp-devices", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/plant_images/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
