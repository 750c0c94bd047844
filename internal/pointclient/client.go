// Package pointclient предоставляет HTTP-клиент сервиса начисления баллов
// для вышестоящих сервисов и нагрузочного стенда.
package pointclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/mmeshcher/point-service/internal/model"
)

const (
	defaultTimeout = 5 * time.Second
	retryWaitMin   = 100 * time.Millisecond
	retryWaitMax   = 2 * time.Second
)

// APIError описывает ответ сервиса со статусом, отличным от 2xx.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Detail     string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("point service: status %d: %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("point service: status %d: %s", e.StatusCode, e.Message)
}

// IsStatus сообщает, является ли err ошибкой API с указанным статусом.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client инкапсулирует HTTP-взаимодействие с сервисом начисления баллов.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// Option настраивает Client.
type Option func(*Client)

// WithRetries задаёт число повторов при 5xx и сетевых ошибках. 0 отключает повторы.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = n
	}
}

// WithTimeout задаёт таймаут одной попытки запроса.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = d
	}
}

// WithLogger включает логирование повторов.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.httpClient.Logger = leveledLogger{s: logger.Sugar()}
	}
}

// NewClient создаёт клиент сервиса по указанному адресу.
func NewClient(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.Logger = nil
	rc.HTTPClient.Timeout = defaultTimeout
	// После исчерпания повторов отдаём последний ответ как есть.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL:    base,
		httpClient: rc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health проверяет доступность сервиса.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// List возвращает все записи журнала.
func (c *Client) List(ctx context.Context) ([]model.PointEntry, error) {
	var entries []model.PointEntry
	if err := c.do(ctx, http.MethodGet, "/api/v1/points", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetLatest возвращает последнюю запись пользователя.
func (c *Client) GetLatest(ctx context.Context, userID int64) (*model.PointEntry, error) {
	var entry model.PointEntry
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/points/user/%d", userID), nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetTotal возвращает сумму баллов пользователя.
func (c *Client) GetTotal(ctx context.Context, userID int64) (*model.PointTotal, error) {
	var total model.PointTotal
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/points/user/%d/total", userID), nil, &total); err != nil {
		return nil, err
	}
	return &total, nil
}

type addRequest struct {
	UserID      int64  `json:"userId"`
	Points      int64  `json:"points"`
	Description string `json:"description,omitempty"`
}

// Add создаёт запись в журнале. Запрос не идемпотентен: повторы включать не стоит.
func (c *Client) Add(ctx context.Context, userID, points int64, description string) (*model.PointEntry, error) {
	body, err := json.Marshal(addRequest{UserID: userID, Points: points, Description: description})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var entry model.PointEntry
	if err := c.do(ctx, http.MethodPost, "/api/v1/points", body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Status выполняет GET по произвольному пути и возвращает только код ответа.
func (c *Client) Status(ctx context.Context, path string) (int, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reqBody any
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}
