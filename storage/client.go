package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"prism-board/domain"
)

var (
	ErrNoToken      = errors.New("no bearer token available")
	ErrUnauthorized = errors.New("task api rejected credentials")
)

const errorBodyLimit = 512

// StatusError is returned when the task API answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client talks to the task REST API.
type Client struct {
	BaseURL string
	Creds   Credentials
	HTTP    *http.Client
}

// New creates a Client. A zero timeout leaves the http.Client default.
func New(baseURL string, creds Credentials, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Creds:   creds,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// taskUpdateBody is the PUT /tasks/{id} payload.
type taskUpdateBody struct {
	Status *domain.Lane `json:"status,omitempty"`
	Order  *int         `json:"order,omitempty"`
}

// FetchTasks returns every task of the authenticated user.
func (c *Client) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	resp, err := c.do(ctx, http.MethodGet, "/tasks", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	tasks := []domain.Task{}
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask persists the lane and order of one task. The status field is
// only sent when the lane changed.
func (c *Client) UpdateTask(ctx context.Context, u domain.Update, idempotencyKey string) error {
	order := u.Order
	body := taskUpdateBody{Order: &order}
	if u.LaneChanged {
		lane := u.Lane
		body.Status = &lane
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPut, "/tasks/"+strconv.FormatInt(u.TaskID, 10), payload, idempotencyKey)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, idempotencyKey string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if c.Creds != nil {
		token, err := c.Creds.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}
