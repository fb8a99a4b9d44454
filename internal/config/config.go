package config

import "time"

// Config — вся конфигурация redix-core, сгруппированная по подсистемам.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	MQ       MQConfig       `mapstructure:"mq"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Janitor  JanitorConfig  `mapstructure:"janitor"`
}

// ServerConfig — настройки HTTP-сервера.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig — настройки PostgreSQL.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// MQConfig — настройки RabbitMQ.
//
// Пустой URL допустим: процессы деградируют до polling-only режима.
type MQConfig struct {
	URL string `mapstructure:"url"`
}

// QueueConfig — настройки очереди jobs.
type QueueConfig struct {
	Name          string        `mapstructure:"name" validate:"required"`
	LeaseTimeout  time.Duration `mapstructure:"lease_timeout" validate:"gt=0"`
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"gt=0"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" validate:"gt=0"`
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay" validate:"gt=0"`
	Concurrency   int           `mapstructure:"concurrency" validate:"gt=0"`
	RateLimit     int           `mapstructure:"rate_limit" validate:"gte=0"`
	DeadLetterCap int           `mapstructure:"dead_letter_cap" validate:"gt=0"`
}

// WorkerConfig — настройки воркера.
type WorkerConfig struct {
	ID           string        `mapstructure:"id"`
	Slots        int           `mapstructure:"slots" validate:"gt=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	TaskTimeout  time.Duration `mapstructure:"task_timeout" validate:"gt=0"`
}

// GatewayConfig — настройки WebSocket-шлюза.
type GatewayConfig struct {
	MaxBurstSize  int           `mapstructure:"max_burst_size" validate:"gt=0"`
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
}

// JanitorConfig — настройки фоновой уборки.
type JanitorConfig struct {
	// ReapSpec — cron-расписание возврата истёкших lease.
	ReapSpec string `mapstructure:"reap_spec" validate:"required"`

	// RetentionSpec — cron-расписание чистки завершённых jobs.
	RetentionSpec string `mapstructure:"retention_spec" validate:"required"`

	// Retention — сколько хранить терминальные jobs и их history.
	Retention time.Duration `mapstructure:"retention" validate:"gt=0"`
}
