package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/api"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/config"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/logging"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	printBuildInfo()

	if err := config.LoadEnvFiles(".env"); err != nil {
		fmt.Printf("Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger, err := logging.SetupLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		fmt.Printf("Failed to setup logger: %v\n", err)
		os.Exit(1)
	}

	log := logging.AddGlobalFields(logger, "razorcap-sandbox", buildVersion())

	sandbox := service.NewSandboxService(cfg.Sandbox, logger)
	handlers := api.NewHandlers(sandbox, logger)

	// 创建服务器
	server := setupServer(cfg, handlers, logger)

	// 启动服务器
	go func() {
		log.Infof("Starting sandbox on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 优雅关闭
	gracefulShutdown(server, sandbox, log)
}

// setupServer 设置服务器和路由
func setupServer(cfg *config.Config, handlers *api.Handlers, logger *logrus.Logger) *http.Server {
	// 设置Gin模式
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 添加中间件
	engine.Use(api.RequestIDMiddleware())
	engine.Use(api.RecoveryMiddleware(logger))
	engine.Use(api.LoggerMiddleware(logger))
	engine.Use(api.ContentTypeMiddleware())

	// 添加限流中间件（如果启用）
	if cfg.Security.RateLimit.Enabled {
		engine.Use(api.RateLimitMiddleware(cfg.Security.RateLimit.Rate, cfg.Security.RateLimit.Burst))
	}

	engine.POST("/create_task", handlers.CreateTask)
	engine.GET("/get_result/:task_id", handlers.GetResult)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, api.ErrorResponse("NOT_FOUND", "route not found"))
	})

	// 创建HTTP服务器
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// gracefulShutdown 优雅关闭服务器
func gracefulShutdown(server *http.Server, sandbox *service.SandboxService, logger *logrus.Entry) {
	// 监听中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down sandbox...")

	// 设置关闭超时
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	sandbox.Close()

	logger.Info("Sandbox exited")
}

// buildVersion 读取模块版本，本地构建时为 (devel)
func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "unknown"
}

func printBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		fmt.Println("Failed to read build info")
		return
	}

	fmt.Println("\n=== Build Info ===")
	fmt.Printf("Go Version: %s\n", info.GoVersion)
	fmt.Printf("Main Module: %s\n", info.Main.Path)
	fmt.Printf("Main Version: %s\n", info.Main.Version)

	// 查找 VCS 信息
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			fmt.Printf("Git Commit: %s\n", setting.Value)
		case "vcs.time":
			fmt.Printf("Build Time: %s\n", setting.Value)
		case "vcs.modified":
			if setting.Value == "true" {
				fmt.Println("Git Status: dirty (modified)")
			} else {
				fmt.Println("Git Status: clean")
			}
		}
	}
}
