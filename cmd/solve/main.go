package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/captcha"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/config"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/errors"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/httpclient"
	"github.com/Nuu-maan/RazorCap-API-wrapper/internal/logging"
)

// 退出码
const (
	exitOK        = 0
	exitUsage     = 1
	exitTransport = 2
	exitSolve     = 3
	exitTimeout   = 4
	exitOther     = 5
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options 命令行参数，未设置的字段沿用配置文件和环境变量
type options struct {
	configPath   string
	siteKey      string
	siteURL      string
	proxy        string
	rqData       string
	kind         string
	baseURL      string
	maxWait      time.Duration
	pollInterval time.Duration
}

func parseFlags(args []string, stderr io.Writer) (*options, map[string]bool, error) {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "path to YAML config file")
	fs.StringVar(&opts.siteKey, "sitekey", "", "hCaptcha sitekey (required)")
	fs.StringVar(&opts.siteURL, "siteurl", "", "page URL hosting the captcha (required)")
	fs.StringVar(&opts.proxy, "proxy", "", "proxy the solver should use")
	fs.StringVar(&opts.rqData, "rqdata", "", "enterprise rqdata")
	fs.StringVar(&opts.kind, "kind", "", "basic or enterprise")
	fs.StringVar(&opts.baseURL, "base-url", "", "service base URL")
	fs.DurationVar(&opts.maxWait, "max-wait", 0, "give up after this long")
	fs.DurationVar(&opts.pollInterval, "poll-interval", 0, "delay between status polls")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return opts, set, nil
}

// applyFlags 命令行参数覆盖配置，随后重新校验
func applyFlags(cfg *config.Config, opts *options, set map[string]bool) error {
	if set["base-url"] {
		cfg.Client.BaseURL = opts.baseURL
	}
	if set["kind"] {
		cfg.Client.TaskKind = opts.kind
	}
	if set["max-wait"] {
		cfg.Polling.MaxWait = opts.maxWait
	}
	if set["poll-interval"] {
		cfg.Polling.PollInterval = opts.pollInterval
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Client.APIKey == "" {
		return errors.NewValidationError("api_key", "set RAZORCAP_API_KEY or client.api_key")
	}
	if opts.siteKey == "" {
		return errors.NewValidationError("sitekey", "is required")
	}
	if opts.siteURL == "" {
		return errors.NewValidationError("siteurl", "is required")
	}
	return nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, set, err := parseFlags(args, stderr)
	if err == flag.ErrHelp {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Invalid arguments: %v\n", err)
		return exitUsage
	}

	if err := config.LoadEnvFiles(".env"); err != nil {
		fmt.Fprintf(stderr, "Failed to load .env: %v\n", err)
		return exitUsage
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return exitUsage
	}

	if err := applyFlags(cfg, opts, set); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return exitUsage
	}

	kind, err := cfg.TaskKind()
	if err != nil {
		fmt.Fprintf(stderr, "Invalid task kind: %v\n", err)
		return exitUsage
	}

	// 日志只写 stderr，stdout 只输出 token
	logger, err := logging.SetupLogger(cfg.Logging.Level, cfg.Logging.Format, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to setup logger: %v\n", err)
		return exitUsage
	}
	log := logging.AddGlobalFields(logger, "razorcap-solve", buildVersion())

	httpClient := httpclient.NewClientFactory(cfg.HTTPClientConfig()).NewClient()
	client := captcha.NewClient(captcha.ClientConfig{
		APIKey:  cfg.Client.APIKey,
		BaseURL: cfg.Client.BaseURL,
	}, httpClient, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params := captcha.TaskParameters{
		SiteKey: opts.siteKey,
		SiteURL: opts.siteURL,
		Proxy:   opts.proxy,
		RqData:  opts.rqData,
	}

	solution, err := client.Solve(ctx, params, kind, cfg.WaitOptions())
	if err != nil {
		failureEntry(log, err).Error("solve failed")
		return exitCode(err)
	}

	fmt.Fprintln(stdout, solution.Token)
	return exitOK
}

// failureEntry 附加错误码；传输错误带上远端原始响应体
func failureEntry(log *logrus.Entry, err error) *logrus.Entry {
	entry := log.WithFields(logrus.Fields{
		"code":  errors.CodeOf(err),
		"error": err.Error(),
	})

	var appErr *errors.AppError
	if errors.IsTransport(err) && stderrors.As(err, &appErr) {
		if status, ok := appErr.Context["status_code"]; ok {
			entry = entry.WithField("status_code", status)
		}
		if body := appErr.ContextString("body"); body != "" {
			entry = entry.WithField("body", logging.SanitizeForLog(body))
		}
	}
	return entry
}

// buildVersion 读取模块版本，本地构建时为 (devel)
func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "unknown"
}

// exitCode 按错误类别映射退出码
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.IsTransport(err):
		return exitTransport
	case errors.IsSolve(err):
		return exitSolve
	case errors.IsTimeout(err):
		return exitTimeout
	case errors.HasCode(err, errors.ErrCodeValidation):
		return exitUsage
	default:
		return exitOther
	}
}
