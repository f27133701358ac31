// API client for a running `serve` instance
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
)

const defaultAPIBaseURL = "http://127.0.0.1:3000"

// APIService talks to the task API of another audiograb process.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API client. An empty baseURL means the default serve address.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

// Delete performs a DELETE request and returns the raw response.
func (a *APIService) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodDelete, path, nil)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	fullURL := a.baseURL + path

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	var jsonData any
	if err := json.Unmarshal(respBody, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// decode checks the status code and unmarshals the body into v when v is non-nil.
func decode(resp *APIResponse, v any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e models.ErrorResponse
		if err := json.Unmarshal(resp.Body, &e); err == nil && e.Error != "" {
			return fmt.Errorf("%w: %d %s", shared.ErrAPIRequest, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListTasks returns snapshots of every task known to the server.
func (a *APIService) ListTasks(ctx context.Context) ([]*models.Task, error) {
	resp, err := a.Get(ctx, "/api/tasks")
	if err != nil {
		return nil, err
	}
	var tasks []*models.Task
	if err := decode(resp, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask returns the snapshot of one task.
func (a *APIService) GetTask(ctx context.Context, taskURL string) (*models.Task, error) {
	resp, err := a.Get(ctx, "/api/tasks/item?url="+url.QueryEscape(taskURL))
	if err != nil {
		return nil, err
	}
	var task models.Task
	if err := decode(resp, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Submit queues a URL on the server.
func (a *APIService) Submit(ctx context.Context, req models.SubmitRequest) (*models.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	resp, err := a.Post(ctx, "/api/tasks", data)
	if err != nil {
		return nil, err
	}
	var task models.Task
	if err := decode(resp, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Cancel stops a task.
func (a *APIService) Cancel(ctx context.Context, taskURL string) error {
	resp, err := a.Post(ctx, "/api/tasks/cancel?url="+url.QueryEscape(taskURL), nil)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// Retry requeues a task, scoped to its missing playlist items when missing is set.
func (a *APIService) Retry(ctx context.Context, taskURL string, missing bool) error {
	path := "/api/tasks/retry?url=" + url.QueryEscape(taskURL)
	if missing {
		path += "&missing=1"
	}
	resp, err := a.Post(ctx, path, nil)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// Remove drops a task, cancelling it first when it is running.
func (a *APIService) Remove(ctx context.Context, taskURL string) error {
	resp, err := a.Delete(ctx, "/api/tasks?url="+url.QueryEscape(taskURL))
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// Clear drops every finished task and returns how many were removed.
func (a *APIService) Clear(ctx context.Context) (int, error) {
	resp, err := a.Post(ctx, "/api/tasks/clear", nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Removed int `json:"removed"`
	}
	if err := decode(resp, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// History returns the persisted records.
func (a *APIService) History(ctx context.Context) ([]*models.HistoryRecord, error) {
	resp, err := a.Get(ctx, "/api/history")
	if err != nil {
		return nil, err
	}
	var records []*models.HistoryRecord
	if err := decode(resp, &records); err != nil {
		return nil, err
	}
	return records, nil
}
