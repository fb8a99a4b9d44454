package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// PlanResponse — план из API вместе с валидацией и одобрением.
type PlanResponse struct {
	Plan       PlanBody         `json:"plan"`
	Validation ValidationResult `json:"validation"`
	Approved   bool             `json:"approved"`
}

// PlanBody — сам план.
type PlanBody struct {
	ID                   string         `json:"id"`
	UserID               string         `json:"user_id,omitempty"`
	OriginQuery          string         `json:"origin_query"`
	Tasks                []TaskResponse `json:"tasks"`
	EstimatedTimeSeconds float64        `json:"estimated_time_seconds"`
	EstimatedCost        float64        `json:"estimated_cost"`
	RiskLevel            string         `json:"risk_level"`
	RequiresApproval     bool           `json:"requires_approval"`
	CreatedAt            string         `json:"created_at"`
}

// TaskResponse — задача плана из API.
type TaskResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Description  string         `json:"description,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Optional     bool           `json:"optional,omitempty"`
	Inputs       map[string]any `json:"inputs,omitempty"`
	Outputs      map[string]any `json:"outputs,omitempty"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
}

// ValidationResult — результат валидации плана.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// JobResponse — job из API.
type JobResponse struct {
	ID           string         `json:"id"`
	Queue        string         `json:"queue"`
	PlanID       string         `json:"plan_id,omitempty"`
	Status       string         `json:"status"`
	Progress     int            `json:"progress"`
	LastSequence int64          `json:"last_sequence"`
	Attempts     int            `json:"attempts"`
	Result       map[string]any `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	CompletedAt  string         `json:"completed_at,omitempty"`
}

// CreateJobResponse — результат постановки плана в очередь.
type CreateJobResponse struct {
	JobID        string `json:"job_id"`
	Deduplicated bool   `json:"deduplicated"`
}

// EventResponse — событие из history job.
type EventResponse struct {
	ID        string         `json:"id"`
	JobID     string         `json:"job_id"`
	Sequence  int64          `json:"sequence"`
	Type      string         `json:"type"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// DeadLetterResponse — запись dead-letter.
type DeadLetterResponse struct {
	LastError string `json:"last_error"`
	Attempts  int    `json:"attempts"`
	FailedAt  string `json:"failed_at"`
}

// RecoverResponse — результат восстановления dead-letters.
type RecoverResponse struct {
	Recovered int `json:"recovered"`
	Remaining int `json:"remaining"`
}

// --- Request types ---

// CreatePlanRequest — компиляция intent'а в план.
type CreatePlanRequest struct {
	Intent IntentRequest `json:"intent"`
	UserID string        `json:"user_id,omitempty"`
}

// IntentRequest — пользовательский intent.
type IntentRequest struct {
	Query         string         `json:"query"`
	Type          string         `json:"type"`
	Complexity    string         `json:"complexity,omitempty"`
	Counterpoints bool           `json:"counterpoints,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
}

// CreateJobRequest — постановка плана в очередь.
type CreateJobRequest struct {
	PlanID   string `json:"plan_id"`
	Priority int    `json:"priority,omitempty"`
	DelayMs  int64  `json:"delay_ms,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	JobID    string `json:"job_id,omitempty"`
}

// ListEventsOpts — параметры выборки событий.
type ListEventsOpts struct {
	AfterSequence int64
	Limit         int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для redix-core API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Plans ---

// CreatePlan компилирует intent в план.
func (c *Client) CreatePlan(req CreatePlanRequest) (*PlanResponse, error) {
	var plan PlanResponse
	err := c.post("/api/v1/plans", req, &plan)
	return &plan, err
}

// GetPlan возвращает план по ID.
func (c *Client) GetPlan(id string) (*PlanResponse, error) {
	var plan PlanResponse
	err := c.get("/api/v1/plans/"+id, &plan)
	return &plan, err
}

// ApprovePlan одобряет план, требующий подтверждения.
func (c *Client) ApprovePlan(id string) (*PlanResponse, error) {
	var plan PlanResponse
	err := c.post("/api/v1/plans/"+id+"/approve", nil, &plan)
	return &plan, err
}

// --- Jobs ---

// CreateJob ставит одобренный план в очередь на выполнение.
func (c *Client) CreateJob(req CreateJobRequest) (*CreateJobResponse, error) {
	var job CreateJobResponse
	err := c.post("/api/v1/jobs", req, &job)
	return &job, err
}

// GetJob возвращает job по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// CancelJob запрашивает кооперативную отмену job.
func (c *Client) CancelJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.patch("/api/v1/jobs/"+id+"/cancel", nil, &job)
	return &job, err
}

// PauseJob приостанавливает ожидающий job.
func (c *Client) PauseJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs/"+id+"/pause", nil, &job)
	return &job, err
}

// ResumeJob возвращает приостановленный job в очередь.
func (c *Client) ResumeJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs/"+id+"/resume", nil, &job)
	return &job, err
}

// ListEvents возвращает history событий job.
func (c *Client) ListEvents(jobID string, opts ListEventsOpts) ([]EventResponse, error) {
	params := url.Values{}
	if opts.AfterSequence > 0 {
		params.Set("after_sequence", fmt.Sprintf("%d", opts.AfterSequence))
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var events []EventResponse
	err := c.list("/api/v1/jobs/"+jobID+"/events", params, &events)
	return events, err
}

// --- Dead letters ---

// ListDeadLetters возвращает записи dead-letter очереди.
func (c *Client) ListDeadLetters() ([]DeadLetterResponse, error) {
	var entries []DeadLetterResponse
	err := c.list("/api/v1/dlq", nil, &entries)
	return entries, err
}

// RecoverDeadLetters повторно ставит dead-letters в очередь.
func (c *Client) RecoverDeadLetters() (*RecoverResponse, error) {
	var result RecoverResponse
	err := c.post("/api/v1/dlq/recover", nil, &result)
	return &result, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) patch(path string, body any, result any) error {
	return c.doData(http.MethodPatch, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
