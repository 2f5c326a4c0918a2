package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

// maxErrorBody 读取错误响应体的上限
const maxErrorBody = 64 << 10

// Client 单个服务商的 HTTP/SSE 客户端
// 负责鉴权头、超时、重试与限流，不理解请求体语义
type Client struct {
	provider    string
	baseURL     string
	headers     map[string]string
	timeout     time.Duration
	maxAttempts int
	httpClient  *http.Client
	limiter     *rate.Limiter
	backoff     BackoffFunc
	logger      *logger.Logger
}

// RequestOptions 单次请求参数
type RequestOptions struct {
	Method  string            // 默认 POST
	Headers map[string]string // 覆盖默认头
	Body    any               // JSON 编码，nil 表示无请求体
	Timeout time.Duration     // 覆盖客户端超时
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackoff 替换退避策略
func WithBackoff(fn BackoffFunc) Option {
	return func(c *Client) { c.backoff = fn }
}

// WithLogger 设置日志
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHeader 追加默认请求头
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// New 创建客户端，authHeaders 为服务商鉴权头（如 Authorization、x-api-key）
func New(provider string, cfg types.Config, authHeaders map[string]string, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, types.NewConfigError(provider, "invalid provider config", err)
	}

	c := &Client{
		provider:    provider,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		headers:     map[string]string{"Content-Type": "application/json"},
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		httpClient:  &http.Client{},
		backoff:     DefaultBackoff,
		logger:      logger.L(),
	}
	for k, v := range authHeaders {
		c.headers[k] = v
	}
	for k, v := range cfg.Headers {
		c.headers[k] = v
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("provider", provider))
	return c, nil
}

// Provider 返回服务商 ID
func (c *Client) Provider() string {
	return c.provider
}

// BaseURL 返回基础地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request 发送请求并把 2xx JSON 响应解码到 out
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions, out any) error {
	body, err := c.encodeBody(opts.Body)
	if err != nil {
		return err
	}

	return c.retry(ctx, func(ctx context.Context) error {
		resp, cancel, err := c.do(ctx, endpoint, opts, body)
		if err != nil {
			return err
		}
		defer cancel()
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return c.classify(ctx, err, "read response body")
		}
		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return types.NewParseError(c.provider, "decode response body", err)
		}
		return nil
	})
}

// StreamRequest 建立 SSE 连接，重试只覆盖连接建立阶段
func (c *Client) StreamRequest(ctx context.Context, endpoint string, opts RequestOptions) (*EventStream, error) {
	body, err := c.encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	var stream *EventStream
	err = c.retry(ctx, func(ctx context.Context) error {
		// 流式请求的超时只约束建立连接，读取阶段由调用方 ctx 控制
		streamCtx, cancel := context.WithCancel(ctx)
		timer := time.AfterFunc(c.callTimeout(opts), cancel)

		resp, err := c.send(streamCtx, endpoint, opts, body, "text/event-stream")
		if !timer.Stop() && err == nil {
			resp.Body.Close()
			cancel()
			return &types.ProviderError{Type: types.ErrorTypeTimeout, Provider: c.provider, Message: "stream connect timeout"}
		}
		if err != nil {
			cancel()
			if ctx.Err() == nil && streamCtx.Err() != nil {
				return &types.ProviderError{Type: types.ErrorTypeTimeout, Provider: c.provider, Message: "stream connect timeout", Err: err}
			}
			return c.classify(ctx, err, "open stream")
		}
		if err := c.checkResponse(resp); err != nil {
			resp.Body.Close()
			cancel()
			return err
		}
		stream = newEventStream(streamCtx, resp.Body, cancel, c.provider, c.logger)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (c *Client) encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewConfigError(c.provider, "encode request body", err)
	}
	return data, nil
}

func (c *Client) callTimeout(opts RequestOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return c.timeout
}

// do 发送一次带超时的请求，返回的 cancel 必须在读取完毕后调用
func (c *Client) do(ctx context.Context, endpoint string, opts RequestOptions, body []byte) (*http.Response, context.CancelFunc, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout(opts))

	resp, err := c.send(callCtx, endpoint, opts, body, "application/json")
	if err != nil {
		cancel()
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, nil, &types.ProviderError{
				Type:     types.ErrorTypeTimeout,
				Provider: c.provider,
				Message:  fmt.Sprintf("request timed out after %s", c.callTimeout(opts)),
				Err:      err,
			}
		}
		return nil, nil, c.classify(ctx, err, "send request")
	}
	if err := c.checkResponse(resp); err != nil {
		resp.Body.Close()
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

func (c *Client) send(ctx context.Context, endpoint string, opts RequestOptions, body []byte, accept string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodPost
		if body == nil {
			method = http.MethodGet
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", accept)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

func (c *Client) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// checkResponse 拦截非 2xx 与 HTML 网关页
func (c *Client) checkResponse(resp *http.Response) error {
	if isHTML(resp.Header.Get("Content-Type")) {
		return &types.ProviderError{
			Type:       types.ErrorTypeTransport,
			Provider:   c.provider,
			StatusCode: statusIfError(resp.StatusCode),
			Message:    "received HTML response instead of JSON (gateway or CDN error page)",
			RequestID:  requestID(resp.Header),
		}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	code, message := extractError(data)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	pe := types.NewHTTPError(c.provider, resp.StatusCode, code, message)
	pe.RequestID = requestID(resp.Header)
	return pe
}

// classify 区分调用方取消与网络错误
func (c *Client) classify(ctx context.Context, err error, op string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return types.NewCanceledError(c.provider, ctxErr)
	}
	var pe *types.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return types.NewTransportError(c.provider, op, err)
}

// Close 释放空闲连接
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "text/html")
	}
	return mediaType == "text/html"
}

// statusIfError HTML 页面仅在非 2xx 时保留状态码，避免 200 被当作 4xx 判断
func statusIfError(status int) int {
	if status >= 200 && status < 300 {
		return 0
	}
	return status
}

func requestID(h http.Header) string {
	for _, key := range []string{"X-Request-Id", "Request-Id", "Anthropic-Request-Id", "X-Goog-Request-Id"} {
		if v := h.Get(key); v != "" {
			return v
		}
	}
	return ""
}
