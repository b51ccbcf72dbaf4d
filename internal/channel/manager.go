package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Middleware wraps the inbound handler chain.
type Middleware func(next InboundHandler) InboundHandler

// Manager connects every registered adapter, keeps the connections alive and
// dispatches inbound messages to a single processor through a worker pool.
// Each chat is pinned to one worker so its messages are processed in arrival order.
type Manager struct {
	registry        *Registry
	processor       InboundProcessor
	refreshInterval time.Duration
	retryMax        int
	retryBackoff    time.Duration
	logger          *slog.Logger
	middlewares     []Middleware

	limitMu  sync.RWMutex
	limiters map[Type]*rate.Limiter

	inboundQueues []chan inboundTask
	inboundOnce   sync.Once
	inboundCtx    context.Context
	inboundCancel context.CancelFunc

	refreshMu   sync.Mutex
	mu          sync.Mutex
	connections map[Type]*connectionEntry
}

// TransportStatus reports the connectivity of one transport.
type TransportStatus struct {
	Transport Type `json:"transport"`
	Connected bool `json:"connected"`
}

func NewManager(log *slog.Logger, registry *Registry, processor InboundProcessor) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		registry:        registry,
		processor:       processor,
		refreshInterval: 30 * time.Second,
		retryMax:        3,
		retryBackoff:    200 * time.Millisecond,
		logger:          log.With(slog.String("component", "channel")),
		limiters:        map[Type]*rate.Limiter{},
		inboundQueues:   newInboundQueues(4, 256),
		connections:     map[Type]*connectionEntry{},
	}
}

// Use registers inbound middlewares; they apply to connections started afterwards.
func (m *Manager) Use(mw ...Middleware) {
	m.middlewares = append(m.middlewares, mw...)
}

// SetRateLimit bounds outbound sends on one transport. A non-positive rate removes the limit.
func (m *Manager) SetRateLimit(transport Type, perSecond float64, burst int) {
	transport = normalizeType(transport.String())
	m.limitMu.Lock()
	defer m.limitMu.Unlock()
	if perSecond <= 0 {
		delete(m.limiters, transport)
		return
	}
	if burst <= 0 {
		burst = 1
	}
	m.limiters[transport] = rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (m *Manager) Start(ctx context.Context) {
	if m.logger != nil {
		m.logger.Info("manager start", slog.Int("transports", len(m.registry.Types())))
	}
	m.startInboundWorkers(ctx)
	go func() {
		m.refresh(ctx)
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if m.logger != nil {
					m.logger.Info("manager stop")
				}
				m.stopAll(context.WithoutCancel(ctx))
				return
			case <-ticker.C:
				m.refresh(ctx)
			}
		}
	}()
}

// Send delivers one outbound message over the named transport.
func (m *Manager) Send(ctx context.Context, transport Type, msg OutboundMessage) error {
	adapter, ok := m.registry.Get(transport)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransport, transport)
	}
	msg.ChatID = strings.TrimSpace(msg.ChatID)
	if msg.ChatID == "" {
		return errors.New("chat id is required")
	}
	if msg.IsEmpty() {
		return errors.New("message is required")
	}
	if err := m.wait(ctx, adapter.Type()); err != nil {
		return err
	}
	var lastErr error
	for i := 0; i < m.retryMax; i++ {
		err := adapter.Send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if m.logger != nil {
			m.logger.Warn("send outbound retry",
				slog.String("channel", adapter.Type().String()),
				slog.Int("attempt", i+1),
				slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * m.retryBackoff):
		}
	}
	if m.logger != nil {
		m.logger.Error("send outbound failed", slog.String("channel", adapter.Type().String()), slog.String("chat_id", msg.ChatID), slog.Any("error", lastErr))
	}
	return fmt.Errorf("send outbound failed after retries: %w", lastErr)
}

// SendTyping shows a typing indicator in the given chat.
func (m *Manager) SendTyping(ctx context.Context, transport Type, chatID string) error {
	adapter, ok := m.registry.Get(transport)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransport, transport)
	}
	if strings.TrimSpace(chatID) == "" {
		return errors.New("chat id is required")
	}
	return adapter.SendTyping(ctx, strings.TrimSpace(chatID))
}

// Status lists every registered transport with its connectivity flag.
func (m *Manager) Status() []TransportStatus {
	types := m.registry.Types()
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]TransportStatus, 0, len(types))
	for _, t := range types {
		entry := m.connections[t]
		items = append(items, TransportStatus{
			Transport: t,
			Connected: entry != nil && entry.connection != nil && entry.connection.Running(),
		})
	}
	return items
}

func (m *Manager) Shutdown(ctx context.Context) error {
	if m.inboundCancel != nil {
		m.inboundCancel()
	}
	m.stopAll(ctx)
	return nil
}

func (m *Manager) wait(ctx context.Context, transport Type) error {
	m.limitMu.RLock()
	limiter := m.limiters[normalizeType(transport.String())]
	m.limitMu.RUnlock()
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (m *Manager) handleError(transport Type, err error) {
	if err == nil || m.logger == nil {
		return
	}
	m.logger.Error("transport error", slog.String("channel", transport.String()), slog.Any("error", err))
}

func (m *Manager) newReplySender(transport Type) ReplySender {
	return &managerReplySender{
		manager:   m,
		transport: transport,
	}
}

type managerReplySender struct {
	manager   *Manager
	transport Type
}

func (s *managerReplySender) Send(ctx context.Context, msg OutboundMessage) error {
	if s.manager == nil {
		return errors.New("channel manager not configured")
	}
	return s.manager.Send(ctx, s.transport, msg)
}
