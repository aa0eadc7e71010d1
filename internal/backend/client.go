// Package backend is the HTTP client for the prediction service that owns
// accounts, the sleep model, statistics and the chatbot.
package backend

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

	"sleep-better/internal/domain"
	"sleep-better/internal/observability"
)

var (
	ErrUnauthorized    = errors.New("backend rejected credentials")
	ErrUnavailable     = errors.New("backend unavailable")
	ErrInvalidResponse = errors.New("invalid response from backend")
)

const (
	maxAttempts     = 3
	maxErrorBodyLen = 4 << 10
)

// Client handles requests to the prediction backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
}

// NewClient creates a new backend client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryDelay: time.Second,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type chatRequest struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// apiError carries the backend's own error text for display.
type apiError struct {
	status int
	msg    string
	kind   error
}

func (e *apiError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("%v (status %d)", e.kind, e.status)
	}
	return fmt.Sprintf("%v (status %d): %s", e.kind, e.status, e.msg)
}

func (e *apiError) Unwrap() error { return e.kind }

// Message returns the backend's error text from err, if any.
func Message(err error) string {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.msg
	}
	return ""
}

// Login exchanges username and password for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.Credentials, error) {
	var resp credentialsResponse
	err := c.post(ctx, "login", "/login", "", loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) || Status(err) == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCredentials, err)
		}
		return nil, err
	}
	return &domain.Credentials{Token: resp.Token, Username: resp.Username}, nil
}

// Register creates an account and returns its session token.
func (c *Client) Register(ctx context.Context, username, email, password string) (*domain.Credentials, error) {
	var resp credentialsResponse
	err := c.post(ctx, "register", "/register", "", registerRequest{Username: username, Email: email, Password: password}, &resp)
	if err != nil {
		if Status(err) == http.StatusConflict {
			return nil, fmt.Errorf("%w: %w", domain.ErrUsernameExists, err)
		}
		return nil, err
	}
	return &domain.Credentials{Token: resp.Token, Username: resp.Username}, nil
}

// Predict submits questionnaire answers. A 400 from the backend maps to
// domain.ErrInvalidSurvey.
func (c *Client) Predict(ctx context.Context, token string, answers domain.SurveyAnswers) (*domain.Prediction, error) {
	var p domain.Prediction
	if err := c.post(ctx, "predict", "/predict", token, answers, &p); err != nil {
		if Status(err) == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSurvey, err)
		}
		return nil, err
	}
	if p.SleepQuality == "" {
		return nil, ErrInvalidResponse
	}
	return &p, nil
}

// UserStats fetches the signed-in user's prediction history summary.
func (c *Client) UserStats(ctx context.Context, token string) (*domain.SleepStats, error) {
	var stats domain.SleepStats
	if err := c.get(ctx, "stats", "/get-user-stats", token, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Chat relays one message to the chatbot.
func (c *Client) Chat(ctx context.Context, token, username, message string) (string, error) {
	var resp chatResponse
	if err := c.post(ctx, "chat", "/chat", token, chatRequest{Message: message, Username: username}, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Ping reports whether the backend answers at all. Any HTTP response,
// including 404 or 405, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return &apiError{status: resp.StatusCode, kind: ErrUnavailable}
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint, path, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	start := time.Now()
	resp, err := c.do(ctx, http.MethodPost, path, token, payload)
	if err != nil {
		observeBackend(endpoint, start, err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	err = decodeResponse(resp, out)
	observeBackend(endpoint, start, err)
	return err
}

// get retries transport errors and 5xx responses with a linear backoff.
func (c *Client) get(ctx context.Context, endpoint, path, token string, out any) error {
	start := time.Now()

	var resp *http.Response
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, lastErr = c.do(ctx, http.MethodGet, path, token, nil)
		if lastErr == nil && resp.StatusCode < http.StatusInternalServerError {
			break
		}
		if attempt == maxAttempts {
			break
		}
		if resp != nil {
			resp.Body.Close()
			resp = nil
		}
		select {
		case <-ctx.Done():
			observeBackend(endpoint, start, ctx.Err())
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(time.Duration(attempt) * c.retryDelay):
		}
	}

	if lastErr != nil {
		observeBackend(endpoint, start, lastErr)
		return fmt.Errorf("%w: failed after %d attempts: %v", ErrUnavailable, maxAttempts, lastErr)
	}
	defer resp.Body.Close()

	err := decodeResponse(resp, out)
	observeBackend(endpoint, start, err)
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.httpClient.Do(req)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	ae := &apiError{status: resp.StatusCode, kind: ErrUnavailable}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		ae.kind = ErrUnauthorized
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		ae.kind = ErrInvalidResponse
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil {
		ae.msg = er.Error
		if ae.msg == "" {
			ae.msg = er.Message
		}
	}
	return ae
}

// Status returns the HTTP status carried by err, or 0.
func Status(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status
	}
	return 0
}

func observeBackend(endpoint string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrUnauthorized):
		outcome = "unauthorized"
	case errors.Is(err, ErrInvalidResponse):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	observability.BackendRequestDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
}
