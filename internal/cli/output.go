package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output рендерит результаты команд: человекочитаемая таблица
// по умолчанию, JSON при --json. Данные идут в stdout, статусные
// сообщения в stderr, чтобы вывод можно было пайпить.
type Output struct {
	json   bool
	data   io.Writer
	status io.Writer
}

// NewOutput создаёт Output.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		json:   jsonMode,
		data:   os.Stdout,
		status: os.Stderr,
	}
}

// Print выводит результат в активном формате. В табличном режиме
// rows рендерятся под headers; в JSON-режиме кодируется v целиком.
func (o *Output) Print(headers []string, rows [][]string, v any) {
	if o.json {
		o.encode(v)
		return
	}
	o.table(headers, rows)
}

// Success выводит статусное сообщение в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.status, msg)
}

func (o *Output) table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.data, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	sep := make([]string, len(headers))
	for i, h := range headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

func (o *Output) encode(v any) {
	enc := json.NewEncoder(o.data)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
