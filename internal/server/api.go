package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/desertthunder/audiograb/internal/tasks"
)

// maxBodySize bounds a submit request body.
const maxBodySize = 1 << 20

// Engine is the part of [*tasks.Scheduler] the API drives.
type Engine interface {
	Submit(url string, opts tasks.SubmitOptions) (*models.Task, error)
	Cancel(url string) error
	Retry(url string) error
	RetryMissing(url string) error
	Remove(url string) error
	Clear() int
	Snapshot(url string) (*models.Task, error)
	List() []*models.Task
}

// HistoryLister reads persisted records. [*repositories.HistoryRepository] implements it.
type HistoryLister interface {
	List(criteria map[string]any) ([]*models.HistoryRecord, error)
}

// API serves the task endpoints.
type API struct {
	engine  Engine
	history HistoryLister
	logger  *log.Logger
}

// NewAPI creates the task API. history may be nil, in which case /api/history is empty.
func NewAPI(engine Engine, history HistoryLister, logger *log.Logger) *API {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &API{engine: engine, history: history, logger: logger}
}

// Register mounts every endpoint on r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.health))
	r.Handle(http.MethodGet, "/api/tasks", http.HandlerFunc(a.list))
	r.Handle(http.MethodPost, "/api/tasks", http.HandlerFunc(a.submit))
	r.Handle(http.MethodDelete, "/api/tasks", http.HandlerFunc(a.remove))
	r.Handle(http.MethodGet, "/api/tasks/item", http.HandlerFunc(a.item))
	r.Handle(http.MethodPost, "/api/tasks/cancel", http.HandlerFunc(a.cancel))
	r.Handle(http.MethodPost, "/api/tasks/retry", http.HandlerFunc(a.retry))
	r.Handle(http.MethodPost, "/api/tasks/clear", http.HandlerFunc(a.clear))
	r.Handle(http.MethodGet, "/api/history", http.HandlerFunc(a.historyList))
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "tasks": len(a.engine.List())})
}

func (a *API) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.List())
}

func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := a.engine.Submit(req.URL, tasks.SubmitOptions{Format: req.Format, Quality: req.Quality, Force: req.Force})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

func (a *API) item(w http.ResponseWriter, r *http.Request) {
	url, ok := requireURL(w, r)
	if !ok {
		return
	}
	task, err := a.engine.Snapshot(url)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) cancel(w http.ResponseWriter, r *http.Request) {
	a.act(w, r, a.engine.Cancel)
}

func (a *API) remove(w http.ResponseWriter, r *http.Request) {
	a.act(w, r, a.engine.Remove)
}

func (a *API) retry(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("missing") != "" {
		a.act(w, r, a.engine.RetryMissing)
		return
	}
	a.act(w, r, a.engine.Retry)
}

func (a *API) act(w http.ResponseWriter, r *http.Request, fn func(string) error) {
	url, ok := requireURL(w, r)
	if !ok {
		return
	}
	if err := fn(url); err != nil {
		a.fail(w, err)
		return
	}
	task, err := a.engine.Snapshot(url)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) clear(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"removed": a.engine.Clear()})
}

func (a *API) historyList(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeJSON(w, http.StatusOK, []*models.HistoryRecord{})
		return
	}

	criteria := map[string]any{}
	if status := r.URL.Query().Get("status"); status != "" {
		criteria["status"] = status
	}
	if platform := r.URL.Query().Get("platform"); platform != "" {
		criteria["platform"] = platform
	}

	records, err := a.history.List(criteria)
	if err != nil {
		a.fail(w, err)
		return
	}
	if records == nil {
		records = []*models.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "err", err)
	}
	writeError(w, status, err.Error())
}

// statusFor maps scheduler errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrDuplicateTask),
		errors.Is(err, shared.ErrAlreadyRecorded),
		errors.Is(err, shared.ErrTaskActive),
		errors.Is(err, shared.ErrIllegalTransition),
		errors.Is(err, shared.ErrNothingMissing),
		errors.Is(err, shared.ErrNotPlaylist):
		return http.StatusConflict
	case errors.Is(err, shared.ErrSchedulerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func requireURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "missing url query parameter")
		return "", false
	}
	return url, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
