package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/executor"
	"github.com/omnibrowser/redix-core/internal/failsafe"
)

func TestFetch_JSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title":"article"}`))
	}))
	defer server.Close()

	h := NewFetchHandler()
	task := &domain.Task{
		ID:     "fetch-1",
		Type:   domain.TaskTypeFetch,
		Inputs: map[string]any{"url": server.URL},
	}

	out, err := h.Execute(context.Background(), task, executor.ExecContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out[outputStatusCode] != 200 {
		t.Errorf("expected status 200, got %v", out[outputStatusCode])
	}

	// JSON распарсен в структуру, не оставлен строкой
	body, ok := out[outputBody].(map[string]any)
	if !ok {
		t.Fatalf("expected parsed JSON body, got %T", out[outputBody])
	}
	if body["title"] != "article" {
		t.Errorf("expected title 'article', got %v", body["title"])
	}
}

func TestFetch_TextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>page</html>"))
	}))
	defer server.Close()

	h := NewFetchHandler()
	task := &domain.Task{ID: "fetch-1", Inputs: map[string]any{"url": server.URL}}

	out, err := h.Execute(context.Background(), task, executor.ExecContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out[outputBody] != "<html>page</html>" {
		t.Errorf("expected raw body string, got %v", out[outputBody])
	}
}

func TestFetch_URLFromDependency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	h := NewFetchHandler()
	task := &domain.Task{
		ID:           "fetch-1",
		Dependencies: []string{"search-1"},
	}
	ec := executor.ExecContext{
		Outputs: map[string]map[string]any{
			"search-1": {"url": server.URL},
		},
	}

	if _, err := h.Execute(context.Background(), task, ec); err != nil {
		t.Fatalf("url should come from dependency output: %v", err)
	}
}

func TestFetch_NoURL(t *testing.T) {
	h := NewFetchHandler()
	task := &domain.Task{ID: "fetch-1"}

	_, err := h.Execute(context.Background(), task, executor.ExecContext{})
	if !errors.Is(err, ErrNoURL) {
		t.Errorf("expected ErrNoURL, got %v", err)
	}
	// Отсутствие URL — доменная ошибка, retry бессмыслен
	if failsafe.IsRetryable(err) {
		t.Error("missing url should be non-retryable")
	}
}

func TestFetch_ClientErrorNonRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	h := NewFetchHandler()
	task := &domain.Task{ID: "fetch-1", Inputs: map[string]any{"url": server.URL}}

	_, err := h.Execute(context.Background(), task, executor.ExecContext{})
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if failsafe.IsRetryable(err) {
		t.Error("4xx should be non-retryable")
	}
}

func TestFetch_ServerErrorRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	h := NewFetchHandler()
	task := &domain.Task{ID: "fetch-1", Inputs: map[string]any{"url": server.URL}}

	_, err := h.Execute(context.Background(), task, executor.ExecContext{})
	if err == nil {
		t.Fatal("expected error for 500")
	}
	if !failsafe.IsRetryable(err) {
		t.Error("5xx should be retryable")
	}
}

func TestFormat_RendersTemplate(t *testing.T) {
	h := NewFormatHandler()
	task := &domain.Task{
		ID:           "format-1",
		Dependencies: []string{"synthesize-1"},
		Inputs: map[string]any{
			"template": `# Answer{{ "\n" }}{{ index .Outputs "synthesize-1" "text" }}`,
		},
	}
	ec := executor.ExecContext{
		Outputs: map[string]map[string]any{
			"synthesize-1": {"text": "final synthesis"},
		},
	}

	out, err := h.Execute(context.Background(), task, ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := out[outputText].(string)
	if !strings.Contains(text, "final synthesis") {
		t.Errorf("expected rendered synthesis, got %q", text)
	}
}

func TestFormat_DefaultTemplate(t *testing.T) {
	h := NewFormatHandler()
	task := &domain.Task{ID: "format-1", Dependencies: []string{"a"}}
	ec := executor.ExecContext{
		Outputs: map[string]map[string]any{"a": {"k": "v"}},
	}

	out, err := h.Execute(context.Background(), task, ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Шаблон по умолчанию сериализует outputs в JSON
	if !strings.Contains(out[outputText].(string), `"k":"v"`) {
		t.Errorf("expected JSON outputs, got %q", out[outputText])
	}
}

func TestFormat_InvalidTemplateNonRetryable(t *testing.T) {
	h := NewFormatHandler()
	task := &domain.Task{
		ID:     "format-1",
		Inputs: map[string]any{"template": "{{ .Broken"},
	}

	_, err := h.Execute(context.Background(), task, executor.ExecContext{})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if failsafe.IsRetryable(err) {
		t.Error("template parse error should be non-retryable")
	}
}

func TestRegisterDefaults(t *testing.T) {
	e := executor.New(executor.Config{})
	RegisterDefaults(e)

	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "format-1", Type: domain.TaskTypeFormat, Status: domain.TaskStatusPending},
	}}

	result, err := e.Run(context.Background(), "job-1", plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Errorf("format handler should be registered, errors: %v", result.Errors)
	}
}
