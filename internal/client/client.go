// Package client fleetcomply API 的类型化 REST 客户端
//
// 凭证保存在显式的 Session 中。收到 401 后会话失效，此后所有调用
// 不发起 I/O 直接返回 ErrUnauthorized，直到调用方设置新会话
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout 每个请求的超时
const DefaultTimeout = 60 * time.Second

// ErrUnauthorized 会话缺失、被吊销或已过期
var ErrUnauthorized = errors.New("unauthorized")

// APIError 401 以外的非 2xx 响应
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Session 调用方的 bearer 令牌和租户
type Session struct {
	mu           sync.RWMutex
	token        string
	tenantID     int64
	onInvalidate []func()
}

// NewSession 创建有效会话
func NewSession(token string, tenantID int64) *Session {
	return &Session{token: token, tenantID: tenantID}
}

// Valid 判断会话是否仍持有凭证
func (s *Session) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// TenantID 返回会话的租户
func (s *Session) TenantID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenantID
}

// OnInvalidate 注册会话失效时执行一次的 fn，例如跳回登录页
func (s *Session) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalidate = append(s.onInvalidate, fn)
}

// Invalidate 丢弃凭证，回调只在第一次调用时执行
func (s *Session) Invalidate() {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return
	}
	s.token = ""
	callbacks := s.onInvalidate
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func (s *Session) credentials() (string, int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.tenantID, s.token != ""
}

// Client 访问一个 fleetcomply 服务端
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
}

// Option Client 的配置项
type Option func(*Client)

// WithHTTPClient 替换默认的 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New 为 baseURL 创建客户端，例如 "http://localhost:20261/api/v1"
func New(baseURL string, session *Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		session:    session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session 返回客户端的会话
func (c *Client) Session() *Session {
	return c.session
}

// do 发送请求，out 非 nil 时解析 JSON 响应
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	token, tenantID, ok := c.session.credentials()
	if !ok {
		return ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Tenant-ID", strconv.FormatInt(tenantID, 10))
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.session.Invalidate()
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out)
}

// Logout 在服务端吊销会话并使本地会话失效
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodDelete, "/session", nil, "", nil)
	c.session.Invalidate()
	if errors.Is(err, ErrUnauthorized) {
		return nil
	}
	return err
}
