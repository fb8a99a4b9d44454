package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/eventbus"
	"github.com/omnibrowser/redix-core/internal/mq"
	"github.com/omnibrowser/redix-core/internal/planner"
	"github.com/omnibrowser/redix-core/internal/queue"
	"github.com/omnibrowser/redix-core/internal/repo"
)

// PlanStore — хранилище планов, нужное API.
// Реализация — *repo.PlanRepo; в тестах — in-memory fake.
type PlanStore interface {
	Create(ctx context.Context, plan *domain.Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*repo.PlanRecord, error)
	Approve(ctx context.Context, id uuid.UUID) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	planner   *planner.Planner
	plans     PlanStore
	queue     *queue.Queue
	bus       *eventbus.Bus
	gateway   http.Handler
	publisher *mq.Publisher
	queueName string
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Planner *planner.Planner
	Plans   PlanStore
	Queue   *queue.Queue
	Bus     *eventbus.Bus

	// Gateway — WebSocket endpoint (/ws). nil — без стриминга.
	Gateway http.Handler

	// Publisher — нотификации jobs.enqueued. nil — воркеры
	// подхватывают jobs через polling.
	Publisher *mq.Publisher

	// QueueName — очередь, в которую ставятся jobs.
	QueueName string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueName := cfg.QueueName
	if queueName == "" {
		queueName = "plans"
	}

	return &Handler{
		planner:   cfg.Planner,
		plans:     cfg.Plans,
		queue:     cfg.Queue,
		bus:       cfg.Bus,
		gateway:   cfg.Gateway,
		publisher: cfg.Publisher,
		queueName: queueName,
		logger:    logger,
	}
}
