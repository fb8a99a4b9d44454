package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/eventbus"
	"github.com/omnibrowser/redix-core/internal/queue"
)

// Default configuration values.
const (
	defaultReapSpec      = "@every 30s"
	defaultRetentionSpec = "@hourly"
	defaultRetention     = 7 * 24 * time.Hour
)

// terminalStatuses — статусы, подпадающие под retention-очистку.
var terminalStatuses = []domain.JobStatus{
	domain.JobStatusCompleted,
	domain.JobStatusFailed,
	domain.JobStatusCancelled,
}

// Sweeper — опциональная массовая retention-очистка хранилища
// (быстрый SQL-путь поверх per-job удаления). Реализуется *repo.JobRepo.
type Sweeper interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MarkerPurger — опциональная чистка истёкших dedup-маркеров.
// Реализуется *repo.MarkerRepo.
type MarkerPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Janitor — фоновая уборка: возврат истёкших lease, retention
// завершённых jobs с их event history, чистка dedup-маркеров.
type Janitor struct {
	cfg     Config
	queue   *queue.Queue
	bus     *eventbus.Bus
	sweeper Sweeper
	markers MarkerPurger
	logger  *slog.Logger

	cron *cron.Cron
}

// Config — конфигурация Janitor.
type Config struct {
	// Queue — очередь jobs (обязательно).
	Queue *queue.Queue

	// Bus — шина событий: history удалённых jobs тоже чистится.
	Bus *eventbus.Bus

	// QueueName — очередь, подпадающая под retention.
	QueueName string

	// Sweeper — массовая очистка хранилища. nil допустим.
	Sweeper Sweeper

	// Markers — чистка dedup-маркеров. nil допустим.
	Markers MarkerPurger

	// ReapSpec — cron-расписание возврата истёкших lease.
	ReapSpec string

	// RetentionSpec — cron-расписание retention-очистки.
	RetentionSpec string

	// Retention — сколько хранить терминальные jobs.
	Retention time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Janitor.
func New(cfg Config) *Janitor {
	if cfg.ReapSpec == "" {
		cfg.ReapSpec = defaultReapSpec
	}
	if cfg.RetentionSpec == "" {
		cfg.RetentionSpec = defaultRetentionSpec
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Janitor{
		cfg:     cfg,
		queue:   cfg.Queue,
		bus:     cfg.Bus,
		sweeper: cfg.Sweeper,
		markers: cfg.Markers,
		logger:  cfg.Logger,
		cron:    cron.New(),
	}
}

// Start регистрирует cron-задачи и запускает планировщик.
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc(j.cfg.ReapSpec, func() { j.ReapOnce(ctx) }); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc(j.cfg.RetentionSpec, func() { j.SweepOnce(ctx) }); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info("janitor started",
		"reap_spec", j.cfg.ReapSpec,
		"retention_spec", j.cfg.RetentionSpec,
		"retention", j.cfg.Retention,
	)
	return nil
}

// Stop останавливает планировщик и дожидается текущих задач.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("janitor stopped")
}

// ReapOnce возвращает в очередь jobs с истёкшим lease.
func (j *Janitor) ReapOnce(ctx context.Context) int {
	reaped := j.queue.ReapExpired(ctx)
	if reaped > 0 {
		j.logger.Info("expired leases reaped", "count", reaped)
	}
	return reaped
}

// SweepOnce выполняет один retention-проход.
//
// Терминальные jobs старше Retention удаляются вместе с их event
// history; затем опциональные массовая очистка хранилища и чистка
// dedup-маркеров.
func (j *Janitor) SweepOnce(ctx context.Context) int {
	cutoff := time.Now().Add(-j.cfg.Retention)
	store := j.queue.Store()
	removed := 0

	for _, status := range terminalStatuses {
		jobs, err := store.ListJobs(ctx, j.cfg.QueueName, status)
		if err != nil {
			j.logger.Warn("retention list failed", "status", status, "error", err)
			continue
		}

		for _, job := range jobs {
			if job.CompletedAt == nil || job.CompletedAt.After(cutoff) {
				continue
			}
			if j.bus != nil {
				j.bus.Purge(job.ID)
			}
			if err := store.DeleteJob(ctx, job.ID); err != nil {
				j.logger.Warn("retention delete failed", "job_id", job.ID, "error", err)
				continue
			}
			removed++
		}
	}

	if j.sweeper != nil {
		n, err := j.sweeper.DeleteFinishedBefore(ctx, cutoff)
		if err != nil {
			j.logger.Warn("bulk retention sweep failed", "error", err)
		} else if n > 0 {
			j.logger.Info("bulk retention sweep", "deleted", n)
		}
	}

	if j.markers != nil {
		n, err := j.markers.PurgeExpired(ctx)
		if err != nil {
			j.logger.Warn("marker purge failed", "error", err)
		} else if n > 0 {
			j.logger.Debug("dedup markers purged", "count", n)
		}
	}

	if removed > 0 {
		j.logger.Info("retention sweep finished", "removed", removed, "cutoff", cutoff)
	}
	return removed
}
