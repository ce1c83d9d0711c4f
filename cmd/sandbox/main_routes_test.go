package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/api"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/captcha"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/config"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/errors"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/service"
)

// startSandbox 启动完整的沙箱路由，返回指向它的客户端
func startSandbox(t *testing.T, mutate func(*config.Config)) *captcha.Client {
	t.Helper()

	cfg := &config.Config{
		Logging: config.LoggingConfig{
			Level:  "error",
			Format: "json",
		},
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         10999,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Sandbox: config.SandboxConfig{
			SolveAfter:      2,
			TaskTTL:         time.Minute,
			PriceBasic:      0.001,
			PriceEnterprise: 0.0025,
			APIKeys:         []string{"test-key"},
		},
		Security: config.SecurityConfig{
			RateLimit: config.RateLimitConfig{
				Enabled: false,
			},
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	sandbox := service.NewSandboxService(cfg.Sandbox, logger)
	t.Cleanup(sandbox.Close)

	server := setupServer(cfg, api.NewHandlers(sandbox, logger), logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return captcha.NewClient(captcha.ClientConfig{APIKey: "test-key", BaseURL: ts.URL}, ts.Client(), logger)
}

var sandboxParams = captcha.TaskParameters{
	SiteKey: "a9b5fb07-92ff-493f-86fe-352a2803b3df",
	SiteURL: "https://discord.com",
	Proxy:   "http://127.0.0.1:8080",
}

func TestSandboxSolveRoundTrip(t *testing.T) {
	client := startSandbox(t, nil)

	solution, err := client.Solve(context.Background(), sandboxParams, captcha.TaskKindBasic, captcha.WaitOptions{
		MaxWait:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, solution.Token)
	assert.Equal(t, captcha.StatusSolving, solution.Handle.Status)
	assert.InDelta(t, 0.001, float64(solution.Handle.Price), 1e-12)
	assert.True(t, solution.Status.IsSolved())
}

func TestSandboxSolveFailure(t *testing.T) {
	client := startSandbox(t, nil)

	params := sandboxParams
	params.SiteKey = "fail-sitekey"
	_, err := client.Solve(context.Background(), params, captcha.TaskKindEnterprise, captcha.WaitOptions{
		MaxWait:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
	})
	assert.True(t, errors.IsSolve(err), "got %v", err)
}

func TestSandboxRejectsWrongKey(t *testing.T) {
	client := startSandbox(t, func(c *config.Config) { c.Sandbox.APIKeys = []string{"other"} })

	_, err := client.CreateTask(context.Background(), sandboxParams, captcha.TaskKindBasic)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnauthorized, appErr.Context["status_code"])
}

func TestSandboxUnknownTaskIsTransportError(t *testing.T) {
	client := startSandbox(t, nil)

	_, err := client.GetStatus(context.Background(), 123456)
	assert.True(t, errors.IsTransport(err), "got %v", err)
}

func TestSandboxRateLimit(t *testing.T) {
	client := startSandbox(t, func(c *config.Config) {
		c.Security.RateLimit = config.RateLimitConfig{Enabled: true, Rate: 1, Burst: 1}
	})

	_, err := client.CreateTask(context.Background(), sandboxParams, captcha.TaskKindBasic)
	require.NoError(t, err)

	_, err = client.CreateTask(context.Background(), sandboxParams, captcha.TaskKindBasic)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Contains(t, err.Error(), "429")
}

func TestSandboxUnknownRoute(t *testing.T) {
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "error"}}
	logger := logrus.New()
	sandbox := service.NewSandboxService(config.SandboxConfig{SolveAfter: 1}, logger)
	defer sandbox.Close()

	server := setupServer(cfg, api.NewHandlers(sandbox, logger), logger)

	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
