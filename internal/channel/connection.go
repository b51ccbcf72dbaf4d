package channel

import (
	"context"
	"errors"
	"log/slog"
)

type connectionEntry struct {
	connection Connection
}

// refresh (re)connects every registered adapter whose connection is missing or down.
// A failing adapter is logged and skipped so the others keep running.
func (m *Manager) refresh(ctx context.Context) {
	// Serialize refresh calls to prevent concurrent passes from starting
	// duplicate adapter connections.
	if !m.refreshMu.TryLock() {
		return
	}
	defer m.refreshMu.Unlock()

	for _, transport := range m.registry.Types() {
		if ctx.Err() != nil {
			return
		}
		if err := m.ensureConnection(ctx, transport); err != nil {
			if m.logger != nil {
				m.logger.Error("adapter start failed", slog.String("channel", transport.String()), slog.Any("error", err))
			}
		}
	}
}

func (m *Manager) ensureConnection(ctx context.Context, transport Type) error {
	adapter, ok := m.registry.Get(transport)
	if !ok {
		return nil
	}

	m.mu.Lock()
	entry := m.connections[transport]
	if entry != nil && entry.connection != nil && entry.connection.Running() {
		m.mu.Unlock()
		return nil
	}
	delete(m.connections, transport)
	m.mu.Unlock()

	if entry != nil && entry.connection != nil {
		if m.logger != nil {
			m.logger.Info("adapter restart", slog.String("channel", transport.String()))
		}
		if err := entry.connection.Stop(ctx); err != nil && !errors.Is(err, ErrStopNotSupported) && m.logger != nil {
			m.logger.Warn("adapter stop failed", slog.String("channel", transport.String()), slog.Any("error", err))
		}
	} else if m.logger != nil {
		m.logger.Info("adapter start", slog.String("channel", transport.String()))
	}

	handler := m.HandleInbound
	for i := len(m.middlewares) - 1; i >= 0; i-- {
		handler = m.middlewares[i](handler)
	}
	conn, err := adapter.Connect(ctx, handler, m.handleError)
	if err != nil {
		return err
	}

	m.mu.Lock()
	// Another refresh may have raced us; keep the existing connection.
	if existing, ok := m.connections[transport]; ok && existing != nil {
		m.mu.Unlock()
		_ = conn.Stop(ctx)
		return nil
	}
	m.connections[transport] = &connectionEntry{connection: conn}
	m.mu.Unlock()
	return nil
}

func (m *Manager) stopAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for transport, entry := range m.connections {
		if entry != nil && entry.connection != nil {
			if m.logger != nil {
				m.logger.Info("adapter stop", slog.String("channel", transport.String()))
			}
			if err := entry.connection.Stop(ctx); err != nil && !errors.Is(err, ErrStopNotSupported) && m.logger != nil {
				m.logger.Warn("adapter stop failed", slog.String("channel", transport.String()), slog.Any("error", err))
			}
		}
		delete(m.connections, transport)
	}
}
