package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/executor"
	"github.com/omnibrowser/redix-core/internal/failsafe"
)

// Ключи inputs/outputs format-шага.
const (
	inputTemplate = "template"
	outputText    = "text"
)

// defaultTemplate применяется, когда шаблон не задан.
const defaultTemplate = "{{ json .Outputs }}"

// FormatContext — контекст рендеринга шаблона format-шага.
//
// Используется в Go templates:
//   - {{ .Inputs.param_name }}
//   - {{ index .Outputs "synthesize-1" "text" }}
type FormatContext struct {
	// Inputs — inputs самого format-шага.
	Inputs map[string]any `json:"inputs"`

	// Outputs — outputs зависимостей по ID task'а.
	Outputs map[string]map[string]any `json:"outputs"`
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// join — объединяет слайс строк
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},

	// trim — убирает пробелы по краям
	"trim": strings.TrimSpace,

	// upper / lower
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// FormatHandler — handler шага "format".
//
// Рендерит итоговый текст из outputs зависимостей через Go template.
//
// Inputs:
//
//	{
//	    "template": "# Result\n\n{{ index .Outputs \"synthesize-1\" \"text\" }}"
//	}
//
// Outputs:
//
//	{
//	    "text": "..."  // отрендеренный текст
//	}
type FormatHandler struct{}

// NewFormatHandler создаёт новый FormatHandler.
func NewFormatHandler() *FormatHandler {
	return &FormatHandler{}
}

// Execute рендерит шаблон.
func (h *FormatHandler) Execute(_ context.Context, task *domain.Task, ec executor.ExecContext) (map[string]any, error) {
	tmplText := defaultTemplate
	if t, ok := task.Inputs[inputTemplate].(string); ok && t != "" {
		tmplText = t
	}

	tmpl, err := template.New("format").Funcs(templateFuncs).Parse(tmplText)
	if err != nil {
		return nil, failsafe.NonRetryable(fmt.Errorf("parse template: %w", err))
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, FormatContext{
		Inputs:  task.Inputs,
		Outputs: ec.Outputs,
	})
	if err != nil {
		return nil, failsafe.NonRetryable(fmt.Errorf("render template: %w", err))
	}

	return map[string]any{
		outputText: buf.String(),
	}, nil
}
