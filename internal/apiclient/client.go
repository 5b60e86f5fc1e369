// Package apiclient 是分词器管理接口的 HTTP 客户端，解析统一的 success/message 响应包
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tokenizermanager/internal/model"

	"github.com/tidwall/gjson"
)

// APIError 服务端返回 success:false 时的应用层错误
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout 设置单次请求超时，0 表示不限制
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (gjson.Result, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read response: %w", err)
	}
	return parseEnvelope(resp.StatusCode, raw)
}

func parseEnvelope(status int, raw []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("server returned %d: %s", status, truncate(string(raw)))
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return gjson.Result{}, fmt.Errorf("server returned %d: unexpected body %s", status, truncate(res.Raw))
	}

	success := res.Get("success")
	if !success.Exists() {
		if e := res.Get("error"); e.Exists() {
			return gjson.Result{}, &APIError{StatusCode: status, Message: e.String()}
		}
		return gjson.Result{}, fmt.Errorf("server returned %d: missing success field", status)
	}
	if !success.Bool() {
		msg := res.Get("message").String()
		if msg == "" {
			msg = "HTTP " + strconv.Itoa(status)
		}
		return gjson.Result{}, &APIError{StatusCode: status, Message: msg}
	}
	return res, nil
}

func truncate(s string) string {
	const limit = 200
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// decodeArray 把缺失或为 null 的数组字段视为空数组
func decodeArray[T any](field gjson.Result) ([]T, error) {
	out := make([]T, 0)
	if !field.IsArray() {
		return out, nil
	}
	if err := json.Unmarshal([]byte(field.Raw), &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (c *Client) ListTokenizers(ctx context.Context) ([]model.TokenizerInfo, error) {
	res, err := c.do(ctx, http.MethodGet, "/api/tokenizer/", nil)
	if err != nil {
		return nil, err
	}
	return decodeArray[model.TokenizerInfo](res.Get("data"))
}

func (c *Client) VerifyTokenizers(ctx context.Context, channelID int) ([]model.UpdateResult, error) {
	q := url.Values{}
	q.Set("channel_id", strconv.Itoa(channelID))
	res, err := c.do(ctx, http.MethodGet, "/api/tokenizer/verify?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return decodeArray[model.UpdateResult](res.Get("data"))
}

func (c *Client) UpdateTokenizers(ctx context.Context, req *model.TokenizerUpdateRequest) (*model.TokenizerUpdateResponse, error) {
	res, err := c.do(ctx, http.MethodPost, "/api/tokenizer/update", req)
	if err != nil {
		return nil, err
	}

	results, err := decodeArray[model.UpdateResult](res.Get("results"))
	if err != nil {
		return nil, err
	}
	out := &model.TokenizerUpdateResponse{
		Success: true,
		Message: res.Get("message").String(),
		Results: results,
	}
	if ts := res.Get("updated_at"); ts.Exists() {
		if t, err := time.Parse(time.RFC3339Nano, ts.String()); err == nil {
			out.UpdatedAt = t
		}
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*model.AuthResponse, error) {
	res, err := c.do(ctx, http.MethodPost, "/api/manage/auth/login", model.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var auth model.AuthResponse
	if err := json.Unmarshal([]byte(res.Get("data").Raw), &auth); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if auth.Token == "" {
		return nil, fmt.Errorf("login response carries no token")
	}
	return &auth, nil
}
