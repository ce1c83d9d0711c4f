package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/captcha"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/config"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/errors"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/service"
)

func newTestEngine(t *testing.T, sandbox config.SandboxConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	svc := service.NewSandboxService(sandbox, logger)
	t.Cleanup(svc.Close)

	h := NewHandlers(svc, logger)

	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	engine.Use(RecoveryMiddleware(logger))
	engine.Use(ContentTypeMiddleware())
	engine.POST("/create_task", h.CreateTask)
	engine.GET("/get_result/:task_id", h.GetResult)
	return engine
}

func defaultSandbox() config.SandboxConfig {
	return config.SandboxConfig{SolveAfter: 2, TaskTTL: time.Minute, PriceBasic: 0.001, PriceEnterprise: 0.0025}
}

func postJSON(engine http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/create_task", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func getResult(engine http.Handler, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/get_result/"+id, nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCreateTaskAndPoll(t *testing.T) {
	engine := newTestEngine(t, defaultSandbox())

	w := postJSON(engine, `{"key":"k","type":"hcaptcha_enterprise","data":{"sitekey":"s","siteurl":"https://x","proxy":"p"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var handle captcha.TaskHandle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &handle))
	assert.Equal(t, captcha.StatusSolving, handle.Status)
	assert.InDelta(t, 0.0025, float64(handle.Price), 1e-12)

	id := fmt.Sprint(handle.TaskID)

	w = getResult(engine, id)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"solving"}`, w.Body.String())

	w = getResult(engine, id)
	require.Equal(t, http.StatusOK, w.Code)
	var status captcha.TaskStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.IsSolved())
	assert.NotEmpty(t, status.ResponseKey)
}

func TestCreateTaskErrors(t *testing.T) {
	sandbox := defaultSandbox()
	sandbox.APIKeys = []string{"good"}
	engine := newTestEngine(t, sandbox)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{
			name:     "malformed body",
			body:     `{"key":`,
			wantCode: http.StatusBadRequest,
			wantErr:  errors.ErrCodeValidation,
		},
		{
			name:     "unknown type",
			body:     `{"key":"good","type":"recaptcha","data":{"sitekey":"s","siteurl":"u"}}`,
			wantCode: http.StatusBadRequest,
			wantErr:  errors.ErrCodeValidation,
		},
		{
			name:     "missing sitekey",
			body:     `{"key":"good","type":"hcaptcha_basic","data":{"siteurl":"u"}}`,
			wantCode: http.StatusBadRequest,
			wantErr:  errors.ErrCodeValidation,
		},
		{
			name:     "bad key",
			body:     `{"key":"bad","type":"hcaptcha_basic","data":{"sitekey":"s","siteurl":"u"}}`,
			wantCode: http.StatusUnauthorized,
			wantErr:  errors.ErrCodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(engine, tt.body)
			assert.Equal(t, tt.wantCode, w.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.wantErr, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestUnsupportedContentType(t *testing.T) {
	engine := newTestEngine(t, defaultSandbox())

	req := httptest.NewRequest(http.MethodPost, "/create_task", strings.NewReader("key=k"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestGetResultErrors(t *testing.T) {
	engine := newTestEngine(t, defaultSandbox())

	w := getResult(engine, "abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = getResult(engine, "99999")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, errors.ErrCodeNotFound, resp.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RateLimitMiddleware(1, 1))
	engine.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	first := httptest.NewRecorder()
	engine.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	engine.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), errors.ErrCodeRateLimit)
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	engine.Use(RecoveryMiddleware(logger))
	engine.GET("/boom", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, HTTPStatus(errors.ErrCodeValidation))
	assert.Equal(t, 401, HTTPStatus(errors.ErrCodeUnauthorized))
	assert.Equal(t, 404, HTTPStatus(errors.ErrCodeNotFound))
	assert.Equal(t, 429, HTTPStatus(errors.ErrCodeRateLimit))
	assert.Equal(t, 500, HTTPStatus("SOMETHING_ELSE"))
}
