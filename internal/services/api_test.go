package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
	tu "github.com/desertthunder/audiograb/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.baseURL != defaultAPIBaseURL {
				t.Errorf("expected default baseURL %s, got %s", defaultAPIBaseURL, srv.baseURL)
			}
			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/health")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if !resp.IsJSON || resp.JSONData == nil {
				t.Error("expected JSON response")
			}
		})

		t.Run("Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "plain text")
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON {
				t.Error("expected non-JSON response")
			}
			if string(resp.Body) != "plain text" {
				t.Errorf("expected body 'plain text', got %s", resp.Body)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed")),
			}
			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/")
			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected request failed error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     make(http.Header),
				}, nil),
			}
			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/")
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected read error, got %v", err)
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			_, err := NewAPIService("http://example.com", nil).Get(context.Background(), "/\x7f")
			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected request creation error, got %v", err)
			}
		})
	})

	t.Run("Tasks", func(t *testing.T) {
		var got struct {
			method string
			path   string
			query  string
			body   models.SubmitRequest
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.method, got.path, got.query = r.Method, r.URL.Path, r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")

			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/api/tasks":
				json.NewEncoder(w).Encode([]*models.Task{{URL: "https://a.example/1", State: models.StateDownloading}})
			case r.Method == http.MethodPost && r.URL.Path == "/api/tasks":
				json.NewDecoder(r.Body).Decode(&got.body)
				w.WriteHeader(http.StatusAccepted)
				json.NewEncoder(w).Encode(models.Task{URL: got.body.URL, State: models.StateQueued})
			case r.URL.Path == "/api/tasks/item":
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(models.ErrorResponse{Error: "task not found"})
			case r.URL.Path == "/api/tasks/clear":
				json.NewEncoder(w).Encode(map[string]int{"removed": 2})
			default:
				json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
			}
		}))
		defer server.Close()

		api := NewAPIService(server.URL, nil)
		ctx := context.Background()

		t.Run("ListTasks", func(t *testing.T) {
			tasks, err := api.ListTasks(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tasks) != 1 || tasks[0].State != models.StateDownloading {
				t.Errorf("unexpected tasks: %+v", tasks)
			}
		})

		t.Run("Submit", func(t *testing.T) {
			task, err := api.Submit(ctx, models.SubmitRequest{URL: "https://a.example/2", Format: "flac"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if task.State != models.StateQueued {
				t.Errorf("expected queued, got %s", task.State)
			}
			if got.body.Format != "flac" {
				t.Errorf("expected format flac in request, got %q", got.body.Format)
			}
		})

		t.Run("GetTask Not Found", func(t *testing.T) {
			_, err := api.GetTask(ctx, "https://a.example/missing")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), "task not found") {
				t.Errorf("expected server message in error, got %v", err)
			}
		})

		t.Run("Retry Missing", func(t *testing.T) {
			if err := api.Retry(ctx, "https://a.example/list?x=1", true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.path != "/api/tasks/retry" {
				t.Errorf("expected retry path, got %s", got.path)
			}
			if !strings.Contains(got.query, "missing=1") || !strings.Contains(got.query, "url=https%3A%2F%2Fa.example%2Flist%3Fx%3D1") {
				t.Errorf("unexpected query %s", got.query)
			}
		})

		t.Run("Remove", func(t *testing.T) {
			if err := api.Remove(ctx, "https://a.example/1"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.method != http.MethodDelete {
				t.Errorf("expected DELETE, got %s", got.method)
			}
		})

		t.Run("Clear", func(t *testing.T) {
			n, err := api.Clear(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if n != 2 {
				t.Errorf("expected 2 removed, got %d", n)
			}
		})
	})
}
