package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		redis          Pinger
		expectedStatus int
		expectedHealth string
		expectedRedis  string
	}{
		{
			name:           "redis disabled",
			redis:          nil,
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedRedis:  "disabled",
		},
		{
			name:           "redis healthy",
			redis:          fakePinger{},
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedRedis:  "healthy",
		},
		{
			name:           "redis unhealthy",
			redis:          fakePinger{err: errRedisDown},
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedRedis:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.redis, testLogger())

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var response HealthResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
			assert.Equal(t, tt.expectedHealth, response.Status)
			assert.Equal(t, "vignette", response.Service)
			assert.Equal(t, tt.expectedRedis, response.Components["redis"])
			assert.Equal(t, "healthy", response.Components["game"])
			assert.WithinDuration(t, time.Now(), response.Timestamp, time.Second)
		})
	}
}
