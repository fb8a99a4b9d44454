package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omnibrowser/redix-core/internal/eventbus"
	"github.com/omnibrowser/redix-core/internal/telemetry"
)

// Default configuration values.
const (
	defaultWriteWait     = 10 * time.Second
	defaultPongWait      = 60 * time.Second
	defaultReadLimit     = 4 * 1024
	defaultFlushInterval = 100 * time.Millisecond
	defaultMaxBurstSize  = 32
)

// Gateway раздаёт поток событий WebSocket-клиентам.
//
// Один клиент может подписаться на несколько jobs; один job может
// иметь много подписчиков. Подписка начинается с replay истории
// (после from_sequence клиента), затем переходит на live-поток.
// Backpressure гасится per-connection буфером с коалесингом:
// медленный клиент получает реже, но не тормозит публикацию.
type Gateway struct {
	cfg      Config
	bus      *eventbus.Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// Config — конфигурация Gateway.
type Config struct {
	// Bus — источник событий (обязательно).
	Bus *eventbus.Bus

	// WriteWait — таймаут записи одного кадра.
	WriteWait time.Duration

	// PongWait — максимум ожидания pong; ping шлётся чаще.
	PongWait time.Duration

	// ReadLimit — максимальный размер входящего кадра.
	ReadLimit int64

	// FlushInterval — минимальный интервал между батчами событий.
	FlushInterval time.Duration

	// MaxBurstSize — потолок несброшенного буфера соединения.
	// Достигнув его, буфер сбрасывается немедленно, не дожидаясь тика.
	MaxBurstSize int

	// CheckOrigin — политика Origin. nil — разрешить всё
	// (ожидается reverse proxy перед сервисом).
	CheckOrigin func(r *http.Request) bool

	// AllowPublish разрешает кадры publish. Выключено по умолчанию:
	// обычные клиенты только читают, производители событий — внутренние
	// соединения за доверенным периметром.
	AllowPublish bool

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Gateway.
func New(cfg Config) *Gateway {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.MaxBurstSize <= 0 {
		cfg.MaxBurstSize = defaultMaxBurstSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Gateway{
		cfg:    cfg,
		bus:    cfg.Bus,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeHTTP апгрейдит соединение и запускает read/write циклы.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConnection(g, ws)
	telemetry.WSConnections.Inc()
	g.logger.Debug("websocket connected", "remote", r.RemoteAddr)

	go conn.writePump()
	conn.readPump()

	telemetry.WSConnections.Dec()
	g.logger.Debug("websocket disconnected", "remote", r.RemoteAddr)
}
