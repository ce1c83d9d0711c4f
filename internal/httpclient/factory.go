package httpclient

import (
	"net"
	"net/http"
	"time"
)

// DefaultUserAgent 请求默认携带的 User-Agent
const DefaultUserAgent = "razorcap-go/1.0"

// ClientConfig HTTP客户端配置
type ClientConfig struct {
	Timeout               time.Duration // 总超时时间，同时是单次轮询请求的上限
	DialTimeout           time.Duration // 连接超时时间
	KeepAlive             time.Duration // Keep-Alive 时间
	MaxIdleConns          int           // 最大空闲连接数
	MaxIdleConnsPerHost   int           // 每个主机最大空闲连接数
	IdleConnTimeout       time.Duration // 空闲连接超时时间
	TLSHandshakeTimeout   time.Duration // TLS握手超时时间
	ExpectContinueTimeout time.Duration // Expect: 100-continue 超时时间
	UserAgent             string        // 为空时不覆盖
}

// DefaultConfig 返回默认配置
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Timeout:               30 * time.Second,
		DialTimeout:           20 * time.Second,
		KeepAlive:             30 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       20 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 3 * time.Second,
		UserAgent:             DefaultUserAgent,
	}
}

// ClientFactory HTTP客户端工厂
type ClientFactory struct {
	config ClientConfig
}

// NewClientFactory 创建客户端工厂
func NewClientFactory(config ClientConfig) *ClientFactory {
	return &ClientFactory{
		config: config,
	}
}

// NewClient 创建新的HTTP客户端
func (f *ClientFactory) NewClient() *http.Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   f.config.DialTimeout,
			KeepAlive: f.config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          f.config.MaxIdleConns,
		MaxIdleConnsPerHost:   f.config.MaxIdleConnsPerHost,
		IdleConnTimeout:       f.config.IdleConnTimeout,
		TLSHandshakeTimeout:   f.config.TLSHandshakeTimeout,
		ExpectContinueTimeout: f.config.ExpectContinueTimeout,
	}
	if f.config.UserAgent != "" {
		transport = &userAgentTransport{next: transport, userAgent: f.config.UserAgent}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   f.config.Timeout,
	}
}

// NewDefaultClient 使用默认配置创建HTTP客户端
func NewDefaultClient() *http.Client {
	factory := NewClientFactory(DefaultConfig())
	return factory.NewClient()
}

// userAgentTransport 为未设置 User-Agent 的请求补上默认值
type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	// RoundTripper 不能修改原请求
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(clone)
}
