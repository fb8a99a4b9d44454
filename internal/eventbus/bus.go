package eventbus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/telemetry"
)

// Default configuration values.
const (
	defaultHistorySize      = 200
	defaultSubscriberBuffer = 64
)

// RelayFunc — best-effort ретрансляция события во внешний канал (MQ).
// Вызывается асинхронно и никогда не блокирует публикацию;
// ошибки relay считаются метрикой, а не пробрасываются.
type RelayFunc func(event domain.Event) error

// Config — конфигурация Bus.
type Config struct {
	// HistorySize — ёмкость per-job history ring.
	// Старейшие события вытесняются за пределами окна.
	HistorySize int

	// SubscriberBuffer — размер буфера канала подписчика.
	// Переполненный буфер означает drop события для этого подписчика.
	SubscriberBuffer int

	// Relay — опциональная ретрансляция событий (fire-and-forget).
	Relay RelayFunc

	// Logger
	Logger *slog.Logger
}

// jobStream — состояние журнала одного job.
// Все поля защищены mu; блокировка per-job, чтобы публикация
// в разные jobs не сериализовалась на общем lock'е.
type jobStream struct {
	mu      sync.Mutex
	nextSeq int64
	history []domain.Event
	subs    map[int]*subscriber
}

// subscriber — канал подписчика с общим для отписки и Purge
// close-guard'ом: канал закрывается ровно один раз, кто бы
// ни пришёл первым.
type subscriber struct {
	ch   chan domain.Event
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Bus — append-only per-job журнал событий с pub/sub fan-out.
//
// Публикация атомарно назначает следующий sequence number, пишет
// в bounded history ring и рассылает событие живым подписчикам.
// Доставка подписчику best-effort: медленный подписчик теряет
// событие (считается в метрике), durability обеспечивает ring —
// реконнектящийся клиент добирает пропуск через History.
type Bus struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	jobs      map[string]*jobStream
	nextSubID int
}

// New создаёт новый Bus.
func New(cfg Config) *Bus {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubscriberBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Bus{
		cfg:    cfg,
		logger: cfg.Logger,
		jobs:   make(map[string]*jobStream),
	}
}

// stream возвращает (создавая при необходимости) журнал job.
func (b *Bus) stream(jobID string) *jobStream {
	b.mu.RLock()
	js, ok := b.jobs[jobID]
	b.mu.RUnlock()
	if ok {
		return js
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if js, ok = b.jobs[jobID]; ok {
		return js
	}
	js = &jobStream{
		nextSeq: 1,
		history: make([]domain.Event, 0, b.cfg.HistorySize),
		subs:    make(map[int]*subscriber),
	}
	b.jobs[jobID] = js
	return js
}

// Publish публикует событие для job и возвращает назначенный sequence.
//
// Sequence назначается под per-job блокировкой, поэтому в рамках
// одного job номера строго монотонны и без пропусков.
func (b *Bus) Publish(jobID string, eventType domain.EventType, data map[string]any) int64 {
	js := b.stream(jobID)

	js.mu.Lock()
	event := domain.Event{
		ID:        uuid.New(),
		JobID:     jobID,
		Sequence:  js.nextSeq,
		Type:      eventType.Category(),
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	js.nextSeq++
	js.appendLocked(event, b.cfg.HistorySize)
	js.fanOutLocked(event)
	js.mu.Unlock()

	telemetry.EventsPublished.WithLabelValues(string(eventType)).Inc()

	if b.cfg.Relay != nil {
		go b.relay(event)
	}

	return event.Sequence
}

// Append вносит уже просеквенированное событие (например, полученное
// из MQ от процесса-издателя). Sequence события сохраняется как есть;
// локальный счётчик продвигается, чтобы History оставалась монотонной.
func (b *Bus) Append(event domain.Event) {
	js := b.stream(event.JobID)

	js.mu.Lock()
	if event.Sequence >= js.nextSeq {
		js.nextSeq = event.Sequence + 1
	}
	js.appendLocked(event, b.cfg.HistorySize)
	js.fanOutLocked(event)
	js.mu.Unlock()
}

// relay выполняет best-effort ретрансляцию события.
func (b *Bus) relay(event domain.Event) {
	if err := b.cfg.Relay(event); err != nil {
		telemetry.EventRelayFailures.Inc()
		b.logger.Warn("event relay failed",
			"job_id", event.JobID,
			"sequence", event.Sequence,
			"error", err,
		)
	}
}

// appendLocked пишет событие в ring, вытесняя старейшее. Под js.mu.
func (js *jobStream) appendLocked(event domain.Event, cap int) {
	if len(js.history) >= cap {
		copy(js.history, js.history[1:])
		js.history[len(js.history)-1] = event
		return
	}
	js.history = append(js.history, event)
}

// fanOutLocked рассылает событие подписчикам без блокировки.
// Переполненный буфер подписчика — drop, не ожидание. Под js.mu.
func (js *jobStream) fanOutLocked(event domain.Event) {
	for _, sub := range js.subs {
		select {
		case sub.ch <- event:
		default:
			telemetry.EventsDropped.Inc()
		}
	}
}

// Subscribe подписывает на живые события job.
//
// Возвращает канал событий и функцию отписки. Канал закрывается
// при отписке; события, опубликованные до подписки, доступны
// только через History.
func (b *Bus) Subscribe(jobID string) (<-chan domain.Event, func()) {
	js := b.stream(jobID)

	sub := &subscriber{ch: make(chan domain.Event, b.cfg.SubscriberBuffer)}

	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	b.mu.Unlock()

	js.mu.Lock()
	js.subs[id] = sub
	js.mu.Unlock()

	cancel := func() {
		js.mu.Lock()
		delete(js.subs, id)
		js.mu.Unlock()
		sub.close()
	}

	return sub.ch, cancel
}

// History возвращает последние limit событий job в порядке sequence.
// limit <= 0 — всё удержанное окно.
func (b *Bus) History(jobID string, limit int) []domain.Event {
	b.mu.RLock()
	js, ok := b.jobs[jobID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	n := len(js.history)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]domain.Event, limit)
	copy(out, js.history[n-limit:])
	return out
}

// LastSequence возвращает последний назначенный sequence для job
// (0, если событий ещё не было).
func (b *Bus) LastSequence(jobID string) int64 {
	b.mu.RLock()
	js, ok := b.jobs[jobID]
	b.mu.RUnlock()
	if !ok {
		return 0
	}

	js.mu.Lock()
	defer js.mu.Unlock()
	return js.nextSeq - 1
}

// Purge удаляет журнал job целиком. Используется при retention-очистке
// терминальных jobs; живые подписчики закрываются.
func (b *Bus) Purge(jobID string) {
	b.mu.Lock()
	js, ok := b.jobs[jobID]
	if ok {
		delete(b.jobs, jobID)
	}
	b.mu.Unlock()

	if !ok {
		return
	}

	js.mu.Lock()
	subs := make([]*subscriber, 0, len(js.subs))
	for id, sub := range js.subs {
		delete(js.subs, id)
		subs = append(subs, sub)
	}
	js.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
