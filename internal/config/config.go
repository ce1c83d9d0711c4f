package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/captcha"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/httpclient"
)

// Config 主配置结构
type Config struct {
	Client   ClientConfig   `yaml:"client"`
	Polling  PollingConfig  `yaml:"polling"`
	HTTP     HTTPConfig     `yaml:"http"`
	Server   ServerConfig   `yaml:"server"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ClientConfig 远端打码服务配置
type ClientConfig struct {
	APIKey   string `yaml:"api_key"`   // 可以从环境变量覆盖
	BaseURL  string `yaml:"base_url"`  // 指向 sandbox 时用于本地联调
	TaskKind string `yaml:"task_kind"` // basic 或 enterprise
}

// PollingConfig 轮询配置
type PollingConfig struct {
	MaxWait      time.Duration `yaml:"max_wait"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"` // 0 表示不限制
}

// HTTPConfig 出站HTTP客户端配置
type HTTPConfig struct {
	Timeout             time.Duration `yaml:"timeout"`
	DialTimeout         time.Duration `yaml:"dial_timeout"`
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	UserAgent           string        `yaml:"user_agent"`
}

// ServerConfig sandbox HTTP服务器配置
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// SandboxConfig sandbox 行为配置
type SandboxConfig struct {
	SolveAfter      int           `yaml:"solve_after"` // 第几次查询时给出结果
	TaskTTL         time.Duration `yaml:"task_ttl"`
	PriceBasic      float64       `yaml:"price_basic"`
	PriceEnterprise float64       `yaml:"price_enterprise"`
	APIKeys         []string      `yaml:"api_keys"` // 为空时接受任意 key
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	Rate    int  `yaml:"rate"`  // 每秒请求数
	Burst   int  `yaml:"burst"` // 突发请求数
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// LoadEnvFiles 加载 .env 文件到进程环境，文件不存在时跳过
func LoadEnvFiles(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}
	return nil
}

// LoadConfig 从文件和环境变量加载配置
func LoadConfig(configPath string) (*Config, error) {
	// 设置默认配置
	config := defaultConfig()

	// 如果提供了配置文件路径，从文件加载
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 从环境变量覆盖配置
	if err := overrideFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	// 验证配置
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// defaultConfig 返回默认配置
func defaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			BaseURL:  captcha.DefaultBaseURL,
			TaskKind: "basic",
		},
		Polling: PollingConfig{
			MaxWait:      captcha.DefaultMaxWait,
			PollInterval: captcha.DefaultPollInterval,
		},
		HTTP: HTTPConfig{
			Timeout:             30 * time.Second,
			DialTimeout:         20 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			UserAgent:           httpclient.DefaultUserAgent,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         10999,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Sandbox: SandboxConfig{
			SolveAfter:      2,
			TaskTTL:         10 * time.Minute,
			PriceBasic:      0.001,
			PriceEnterprise: 0.0025,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				Rate:    10,
				Burst:   20,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// loadFromFile 从YAML文件加载配置
func loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// overrideFromEnv 从环境变量覆盖配置
func overrideFromEnv(config *Config) error {
	// Client配置
	if apiKey := os.Getenv("RAZORCAP_API_KEY"); apiKey != "" {
		config.Client.APIKey = apiKey
	}
	if baseURL := os.Getenv("RAZORCAP_BASE_URL"); baseURL != "" {
		config.Client.BaseURL = baseURL
	}
	if kind := os.Getenv("RAZORCAP_TASK_KIND"); kind != "" {
		config.Client.TaskKind = kind
	}

	// Polling配置
	if err := envDuration("RAZORCAP_MAX_WAIT", &config.Polling.MaxWait); err != nil {
		return err
	}
	if err := envDuration("RAZORCAP_POLL_INTERVAL", &config.Polling.PollInterval); err != nil {
		return err
	}
	if err := envInt("RAZORCAP_MAX_ATTEMPTS", &config.Polling.MaxAttempts); err != nil {
		return err
	}
	if err := envDuration("HTTP_TIMEOUT", &config.HTTP.Timeout); err != nil {
		return err
	}

	// Server配置
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if err := envInt("SERVER_PORT", &config.Server.Port); err != nil {
		return err
	}
	if err := envInt("SANDBOX_SOLVE_AFTER", &config.Sandbox.SolveAfter); err != nil {
		return err
	}
	if keys := os.Getenv("SANDBOX_API_KEYS"); keys != "" {
		config.Sandbox.APIKeys = splitList(keys)
	}

	// Logging配置
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}
	return nil
}

// splitList 解析逗号分隔的列表，忽略空项
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envDuration(key string, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = d
	return nil
}

func envInt(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	// 验证Client配置
	if _, err := captcha.ParseTaskKind(c.Client.TaskKind); err != nil {
		return fmt.Errorf("invalid client task_kind: %w", err)
	}
	if c.Client.BaseURL != "" {
		u, err := url.Parse(c.Client.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid client base_url: %q", c.Client.BaseURL)
		}
	}

	// 验证Polling配置
	if c.Polling.MaxWait <= 0 {
		return fmt.Errorf("invalid polling max_wait: %v (must be positive)", c.Polling.MaxWait)
	}
	if c.Polling.PollInterval <= 0 {
		return fmt.Errorf("invalid polling poll_interval: %v (must be positive)", c.Polling.PollInterval)
	}
	if c.Polling.MaxAttempts < 0 {
		return fmt.Errorf("invalid polling max_attempts: %d (must be non-negative)", c.Polling.MaxAttempts)
	}

	// 验证HTTP配置
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("invalid http timeout: %v (must be positive)", c.HTTP.Timeout)
	}

	// 验证Server配置
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid server read_timeout: %v (must be positive)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid server write_timeout: %v (must be positive)", c.Server.WriteTimeout)
	}

	// 验证Sandbox配置
	if c.Sandbox.SolveAfter <= 0 {
		return fmt.Errorf("invalid sandbox solve_after: %d (must be positive)", c.Sandbox.SolveAfter)
	}
	if c.Sandbox.TaskTTL <= 0 {
		return fmt.Errorf("invalid sandbox task_ttl: %v (must be positive)", c.Sandbox.TaskTTL)
	}

	// 验证Logging配置
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be one of: debug, info, warn, error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be 'json' or 'text')", c.Logging.Format)
	}

	// 验证Security配置
	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.Rate <= 0 {
			return fmt.Errorf("invalid rate_limit rate: %d (must be positive when enabled)", c.Security.RateLimit.Rate)
		}
		if c.Security.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid rate_limit burst: %d (must be positive when enabled)", c.Security.RateLimit.Burst)
		}
	}

	return nil
}

// TaskKind 返回已校验的任务类型
func (c *Config) TaskKind() (captcha.TaskKind, error) {
	return captcha.ParseTaskKind(c.Client.TaskKind)
}

// WaitOptions 转换为客户端轮询参数
func (c *Config) WaitOptions() captcha.WaitOptions {
	return captcha.WaitOptions{
		MaxWait:      c.Polling.MaxWait,
		PollInterval: c.Polling.PollInterval,
		MaxAttempts:  c.Polling.MaxAttempts,
	}
}

// HTTPClientConfig 转换为HTTP客户端工厂配置
func (c *Config) HTTPClientConfig() httpclient.ClientConfig {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = c.HTTP.Timeout
	if c.HTTP.DialTimeout > 0 {
		cfg.DialTimeout = c.HTTP.DialTimeout
	}
	if c.HTTP.MaxIdleConns > 0 {
		cfg.MaxIdleConns = c.HTTP.MaxIdleConns
	}
	if c.HTTP.MaxIdleConnsPerHost > 0 {
		cfg.MaxIdleConnsPerHost = c.HTTP.MaxIdleConnsPerHost
	}
	if c.HTTP.UserAgent != "" {
		cfg.UserAgent = c.HTTP.UserAgent
	}
	return cfg
}
