package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/executor"
	"github.com/omnibrowser/redix-core/internal/failsafe"
)

const (
	// Значения по умолчанию.
	defaultFetchTimeout = 30 * time.Second
	maxResponseBody     = 10 * 1024 * 1024 // 10 MB
)

// Ключи inputs/outputs fetch-шага.
const (
	inputURL          = "url"
	outputStatusCode  = "status_code"
	outputContentType = "content_type"
	outputBody        = "body"
)

// FetchHandler — handler шага "fetch".
//
// Выполняет HTTP GET и возвращает результат.
//
// Inputs:
//
//	{
//	    "url": "https://example.com/article"
//	}
//
// URL может также прийти из outputs зависимости (поле "url"),
// например от предшествующего search-шага.
//
// Outputs:
//
//	{
//	    "status_code": 200,
//	    "content_type": "text/html",
//	    "body": "..."  // parsed JSON или строка
//	}
type FetchHandler struct {
	client *http.Client
}

// NewFetchHandler создаёт новый FetchHandler.
func NewFetchHandler() *FetchHandler {
	return &FetchHandler{
		client: &http.Client{
			Timeout: defaultFetchTimeout,
		},
	}
}

// Execute выполняет HTTP GET.
func (h *FetchHandler) Execute(ctx context.Context, task *domain.Task, ec executor.ExecContext) (map[string]any, error) {
	url, err := resolveURL(task, ec)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, failsafe.NonRetryable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", "redix-core/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	// Клиентские ошибки не ретраятся, серверные — ретраятся
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, failsafe.NonRetryable(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")

	var body any = string(raw)
	if strings.Contains(contentType, "application/json") {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			body = parsed
		}
	}

	return map[string]any{
		outputStatusCode:  resp.StatusCode,
		outputContentType: contentType,
		outputBody:        body,
	}, nil
}

// resolveURL достаёт URL из inputs task'а либо из outputs зависимости.
func resolveURL(task *domain.Task, ec executor.ExecContext) (string, error) {
	if url, ok := task.Inputs[inputURL].(string); ok && url != "" {
		return url, nil
	}

	for _, dep := range task.Dependencies {
		if out, ok := ec.Outputs[dep]; ok {
			if url, ok := out[inputURL].(string); ok && url != "" {
				return url, nil
			}
		}
	}

	return "", failsafe.NonRetryable(ErrNoURL)
}
