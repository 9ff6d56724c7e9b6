package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"prochat/internal/errors"
	"prochat/internal/metrics"
	"prochat/internal/models"
	"prochat/internal/retry"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Channel is the surface session coordinators and the inbox depend on. One
// Manager owns the single transport; everything else holds subscriptions.
type Channel interface {
	Subscribe(ctx context.Context, joinEvent, leaveEvent string, joinData interface{}, handler Handler) (*Subscription, error)
	Unsubscribe(ctx context.Context, sub *Subscription) error
	Emit(ctx context.Context, event string, data interface{}) error
}

// Manager owns the single websocket connection and fans inbound frames out to
// all current subscriptions. Lost connections are re-dialed with exponential
// backoff and every active room is re-joined.
type Manager struct {
	url     string
	logger  *logrus.Logger
	backoff *retry.Backoff

	mu      sync.RWMutex
	conn    *websocket.Conn
	subs    map[string]*Subscription
	running bool

	writeMu sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager for the given channel URL.
func NewManager(url string, backoffConfig retry.BackoffConfig, logger *logrus.Logger) *Manager {
	return &Manager{
		url:     url,
		logger:  logger,
		backoff: retry.NewBackoff(backoffConfig),
		subs:    make(map[string]*Subscription),
	}
}

// Connect dials the channel and starts the read loop.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("realtime manager is already connected")
	}

	conn, err := m.dial(ctx)
	if err != nil {
		return errors.NewRealtimeError("failed to connect to real-time channel", err)
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.conn = conn
	m.running = true

	m.wg.Add(1)
	go m.readLoop()

	m.logger.WithField("url", m.url).Info("Real-time channel connected")
	return nil
}

// Close tears the connection down. Active subscriptions are discarded without
// leave events; the server drops room membership with the connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.cancel()
	conn := m.conn
	m.conn = nil
	m.subs = make(map[string]*Subscription)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client shutdown")
	}
	m.wg.Wait()

	m.logger.Info("Real-time channel closed")
	return nil
}

// IsRunning reports whether the manager currently holds a connection.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Subscribe emits the room's join event and registers the handler for every
// inbound frame. Subscribers filter by their own chat id; frames for rooms
// they don't care about are dropped on their side.
func (m *Manager) Subscribe(ctx context.Context, joinEvent, leaveEvent string, joinData interface{}, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	sub := &Subscription{
		id:         uuid.NewString(),
		joinEvent:  joinEvent,
		leaveEvent: leaveEvent,
		joinData:   joinData,
		handler:    handler,
	}

	if joinEvent != "" {
		if err := m.Emit(ctx, joinEvent, joinData); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.subs[sub.id] = sub
	m.mu.Unlock()

	return sub, nil
}

// Unsubscribe emits the room's leave event and deregisters the handler.
// Safe to call with an already-removed subscription.
func (m *Manager) Unsubscribe(ctx context.Context, sub *Subscription) error {
	if sub == nil {
		return nil
	}

	m.mu.Lock()
	_, present := m.subs[sub.id]
	delete(m.subs, sub.id)
	m.mu.Unlock()

	if !present || sub.leaveEvent == "" {
		return nil
	}
	return m.Emit(ctx, sub.leaveEvent, sub.joinData)
}

// JoinChat subscribes to a chat room.
func (m *Manager) JoinChat(ctx context.Context, chatID string, handler Handler) (*Subscription, error) {
	return m.Subscribe(ctx, models.EventJoinChat, models.EventLeaveChat, chatID, handler)
}

// JoinProfessional registers for the professional's general notification room.
func (m *Manager) JoinProfessional(ctx context.Context, userID string, handler Handler) (*Subscription, error) {
	return m.Subscribe(ctx, models.EventJoinProfessional, "", userID, handler)
}

// Emit writes one outbound frame.
func (m *Manager) Emit(ctx context.Context, event string, data interface{}) error {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil {
		return errors.New(errors.ErrCodeRealtimeChannel, "real-time channel is not connected")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return errors.NewRealtimeError("failed to emit event", err).WithContext("event", event)
	}

	metrics.IncrementCounter("realtime_events_emitted", map[string]string{"event": event}, "Outbound real-time events")
	return nil
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, m.url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (m *Manager) readLoop() {
	defer m.wg.Done()

	for {
		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(m.ctx)
		if err != nil {
			select {
			case <-m.ctx.Done():
				return
			default:
			}

			m.logger.WithError(err).Warn("Real-time read failed, reconnecting")
			if !m.reconnect() {
				return
			}
			continue
		}

		m.dispatch(data)
	}
}

// dispatch fans one inbound frame out to every subscription, synchronously,
// preserving the channel's per-room delivery order.
func (m *Manager) dispatch(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
		m.logger.WithField("payload_bytes", len(data)).Debug("Dropping malformed real-time frame")
		metrics.IncrementCounter("realtime_frames_dropped", nil, "Malformed inbound frames")
		return
	}

	metrics.IncrementCounter("realtime_events_received", map[string]string{"event": frame.Event}, "Inbound real-time events")

	m.mu.RLock()
	subs := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(frame.Event, frame.Data)
	}
}

// reconnect re-dials with backoff and re-joins every active room. Returns
// false when the manager is shutting down or all attempts failed.
func (m *Manager) reconnect() bool {
	metrics.IncrementCounter("realtime_reconnects", nil, "Connection re-establishment attempts")

	var conn *websocket.Conn
	err := m.backoff.Retry(m.ctx, func() error {
		dialCtx, cancel := context.WithTimeout(m.ctx, 15*time.Second)
		defer cancel()

		c, dialErr := m.dial(dialCtx)
		if dialErr != nil {
			return dialErr
		}
		conn = c
		return nil
	})
	if err != nil {
		m.logger.WithError(err).Error("Real-time reconnect failed, giving up")
		m.mu.Lock()
		m.running = false
		m.conn = nil
		m.mu.Unlock()
		return false
	}

	m.mu.Lock()
	m.conn = conn
	subs := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		if sub.joinEvent == "" {
			continue
		}
		if emitErr := m.Emit(m.ctx, sub.joinEvent, sub.joinData); emitErr != nil {
			m.logger.WithError(emitErr).WithField("event", sub.joinEvent).Warn("Failed to re-join room after reconnect")
		}
	}

	m.logger.Info("Real-time channel reconnected")
	return true
}
