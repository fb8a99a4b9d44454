package gateway

import "github.com/omnibrowser/redix-core/internal/domain"

// FrameType — тип кадра протокола.
type FrameType string

// Кадры клиента.
const (
	// FrameSubscribe — подписка на события job.
	// from_sequence > 0 — дозапрос: реплеятся только события после него.
	FrameSubscribe FrameType = "subscribe"

	// FrameUnsubscribe — отписка от событий job.
	FrameUnsubscribe FrameType = "unsubscribe"

	// FramePublish — публикация события в поток job.
	// Принимается только при включённом Config.AllowPublish.
	FramePublish FrameType = "publish"
)

// Кадры сервера.
const (
	// FrameSubscribed — подтверждение подписки.
	FrameSubscribed FrameType = "subscribed"

	// FrameEvents — батч событий (replay или live, после коалесинга).
	FrameEvents FrameType = "events"

	// FrameError — ошибка протокола.
	FrameError FrameType = "error"
)

// ClientFrame — входящий кадр от клиента.
type ClientFrame struct {
	Type  FrameType `json:"type"`
	JobID string    `json:"job_id,omitempty"`

	// FromSequence — последний применённый клиентом sequence.
	// События с sequence <= FromSequence не реплеятся.
	FromSequence int64 `json:"from_sequence,omitempty"`

	// Data — payload события (в кадре publish).
	Data map[string]any `json:"data,omitempty"`
}

// ServerFrame — исходящий кадр сервера.
type ServerFrame struct {
	Type  FrameType `json:"type"`
	JobID string    `json:"job_id,omitempty"`

	// LastSequence — sequence последнего известного события job
	// на момент подписки (в кадре subscribed).
	LastSequence int64 `json:"last_sequence,omitempty"`

	// Events — события батча (в кадре events).
	Events []domain.Event `json:"events,omitempty"`

	// Error — текст ошибки (в кадре error).
	Error string `json:"error,omitempty"`
}
