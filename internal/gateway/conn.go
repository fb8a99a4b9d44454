package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/telemetry"
)

// connection — одно WebSocket-соединение с его подписками и буфером.
//
// Инварианты буфера:
//   - события одного job сбрасываются в порядке sequence;
//   - несброшенный буфер не превышает MaxBurstSize: достигнув потолок,
//     соединение сбрасывается немедленно;
//   - подряд идущие job:progress одного job сливаются в последний —
//     медленный клиент теряет промежуточные проценты, не факты.
type connection struct {
	g  *Gateway
	ws *websocket.Conn

	mu       sync.Mutex
	subs     map[string]func() // jobID → cancel live-подписки
	pending  map[string][]domain.Event
	buffered int
	control  []ServerFrame
	closed   bool

	flushCh chan struct{}
	done    chan struct{}
}

func newConnection(g *Gateway, ws *websocket.Conn) *connection {
	return &connection{
		g:       g,
		ws:      ws,
		subs:    make(map[string]func()),
		pending: make(map[string][]domain.Event),
		flushCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// readPump читает кадры клиента до разрыва соединения.
func (c *connection) readPump() {
	defer c.teardown()

	c.ws.SetReadLimit(c.g.cfg.ReadLimit)
	c.ws.SetReadDeadline(time.Now().Add(c.g.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.g.cfg.PongWait))
	})

	for {
		var frame ClientFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.g.logger.Debug("websocket read error", "error", err)
			}
			return
		}

		switch frame.Type {
		case FrameSubscribe:
			c.subscribe(frame.JobID, frame.FromSequence)
		case FrameUnsubscribe:
			c.unsubscribe(frame.JobID)
		case FramePublish:
			c.publish(frame)
		default:
			c.enqueueControl(ServerFrame{Type: FrameError, Error: "unknown frame type"})
		}
	}
}

// writePump сбрасывает буфер по тикам, сигналам и шлёт ping.
func (c *connection) writePump() {
	flushTicker := time.NewTicker(c.g.cfg.FlushInterval)
	pingPeriod := c.g.cfg.PongWait * 9 / 10
	pingTicker := time.NewTicker(pingPeriod)
	defer flushTicker.Stop()
	defer pingTicker.Stop()

	for {
		select {
		case <-c.done:
			return

		case <-c.flushCh:
			if !c.flush() {
				return
			}

		case <-flushTicker.C:
			if !c.flush() {
				return
			}

		case <-pingTicker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.g.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.ws.Close()
				return
			}
		}
	}
}

// subscribe подписывает соединение на события job.
//
// Live-подписка оформляется раньше чтения history: события,
// опубликованные между двумя вызовами, попадут в оба источника
// и отфильтруются по sequence, а не потеряются.
func (c *connection) subscribe(jobID string, fromSequence int64) {
	if jobID == "" {
		c.enqueueControl(ServerFrame{Type: FrameError, Error: "subscribe requires job_id"})
		return
	}

	c.mu.Lock()
	if _, ok := c.subs[jobID]; ok {
		c.mu.Unlock()
		c.enqueueControl(ServerFrame{Type: FrameError, JobID: jobID, Error: "already subscribed"})
		return
	}
	// Слот резервируется до оформления подписки, чтобы параллельный
	// subscribe того же job не продублировал поток
	c.subs[jobID] = func() {}
	c.mu.Unlock()

	live, cancel := c.g.bus.Subscribe(jobID)

	history := c.g.bus.History(jobID, 0)
	var replay []domain.Event
	replayedThrough := fromSequence
	for _, ev := range history {
		if ev.Sequence > fromSequence {
			replay = append(replay, ev)
			replayedThrough = ev.Sequence
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return
	}
	c.subs[jobID] = cancel
	c.control = append(c.control, ServerFrame{
		Type:         FrameSubscribed,
		JobID:        jobID,
		LastSequence: replayedThrough,
	})
	for _, ev := range replay {
		c.bufferLocked(ev)
	}
	c.mu.Unlock()
	c.signalFlush()

	go c.forward(live, replayedThrough)
}

// forward переносит live-события в буфер соединения.
func (c *connection) forward(live <-chan domain.Event, replayedThrough int64) {
	for ev := range live {
		// Уже отдано replay'ем
		if ev.Sequence <= replayedThrough {
			continue
		}
		c.enqueueEvent(ev)
	}
}

// publish принимает событие от производителя и кладёт его в шину.
// Отправитель получает событие обратно через свою подписку, как все.
func (c *connection) publish(frame ClientFrame) {
	if !c.g.cfg.AllowPublish {
		c.enqueueControl(ServerFrame{Type: FrameError, JobID: frame.JobID, Error: "publish not allowed"})
		return
	}
	if frame.JobID == "" {
		c.enqueueControl(ServerFrame{Type: FrameError, Error: "publish requires job_id"})
		return
	}
	c.g.bus.Publish(frame.JobID, domain.EventJobProgress, frame.Data)
}

// unsubscribe снимает live-подписку и забывает буфер job.
func (c *connection) unsubscribe(jobID string) {
	c.mu.Lock()
	cancel, ok := c.subs[jobID]
	if ok {
		delete(c.subs, jobID)
		c.buffered -= len(c.pending[jobID])
		delete(c.pending, jobID)
	}
	c.mu.Unlock()

	if ok {
		cancel()
	}
}

// enqueueEvent кладёт событие в буфер с коалесингом.
func (c *connection) enqueueEvent(ev domain.Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.bufferLocked(ev)
	full := c.buffered >= c.g.cfg.MaxBurstSize
	c.mu.Unlock()

	if full {
		c.signalFlush()
	}
}

// bufferLocked — тело enqueueEvent. Под c.mu.
func (c *connection) bufferLocked(ev domain.Event) {
	buf := c.pending[ev.JobID]
	if ev.EventType == domain.EventJobProgress && len(buf) > 0 &&
		buf[len(buf)-1].EventType == domain.EventJobProgress {
		buf[len(buf)-1] = ev
		c.pending[ev.JobID] = buf
		telemetry.WSEventsCoalesced.Inc()
		return
	}
	c.pending[ev.JobID] = append(buf, ev)
	c.buffered++
}

// enqueueControl кладёт служебный кадр и будит writePump.
func (c *connection) enqueueControl(frame ServerFrame) {
	c.mu.Lock()
	if !c.closed {
		c.control = append(c.control, frame)
	}
	c.mu.Unlock()
	c.signalFlush()
}

func (c *connection) signalFlush() {
	select {
	case c.flushCh <- struct{}{}:
	default:
	}
}

// flush отдаёт накопленные кадры клиенту. false — соединение мертво.
func (c *connection) flush() bool {
	c.mu.Lock()
	control := c.control
	c.control = nil
	var batches []ServerFrame
	for jobID, events := range c.pending {
		if len(events) == 0 {
			continue
		}
		batches = append(batches, ServerFrame{
			Type:   FrameEvents,
			JobID:  jobID,
			Events: events,
		})
		delete(c.pending, jobID)
	}
	c.buffered = 0
	c.mu.Unlock()

	for _, frame := range append(control, batches...) {
		c.ws.SetWriteDeadline(time.Now().Add(c.g.cfg.WriteWait))
		if err := c.ws.WriteJSON(frame); err != nil {
			c.ws.Close()
			return false
		}
		telemetry.WSFramesSent.Inc()
	}
	return true
}

// teardown снимает все подписки и закрывает соединение.
func (c *connection) teardown() {
	c.mu.Lock()
	c.closed = true
	cancels := make([]func(), 0, len(c.subs))
	for _, cancel := range c.subs {
		cancels = append(cancels, cancel)
	}
	c.subs = map[string]func(){}
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	close(c.done)
	c.ws.Close()
}
