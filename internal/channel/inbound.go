package channel

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
)

type inboundTask struct {
	ctx context.Context
	msg InboundMessage
}

// newInboundQueues splits capacity evenly across one queue per worker.
func newInboundQueues(workers, capacity int) []chan inboundTask {
	if workers <= 0 {
		workers = 1
	}
	queues := make([]chan inboundTask, workers)
	for i := range queues {
		queues[i] = make(chan inboundTask, max(capacity/workers, 1))
	}
	return queues
}

// inboundQueue picks the worker queue for a chat. Messages of one chat always
// land on the same queue; different chats spread across workers.
func (m *Manager) inboundQueue(msg InboundMessage) chan inboundTask {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalizeType(msg.Transport.String())))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(msg.ChatID))
	return m.inboundQueues[h.Sum32()%uint32(len(m.inboundQueues))]
}

// HandleInbound enqueues an inbound message for asynchronous processing by the
// worker that owns its chat.
func (m *Manager) HandleInbound(ctx context.Context, msg InboundMessage) error {
	if m.processor == nil {
		return errors.New("inbound processor not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m.startInboundWorkers(ctx)
	if m.inboundCtx != nil && m.inboundCtx.Err() != nil {
		return errors.New("inbound dispatcher stopped")
	}
	task := inboundTask{
		ctx: context.WithoutCancel(ctx),
		msg: msg,
	}
	select {
	case m.inboundQueue(msg) <- task:
		return nil
	default:
		return errors.New("inbound queue full")
	}
}

func (m *Manager) handleInbound(ctx context.Context, msg InboundMessage) error {
	if m.processor == nil {
		return errors.New("inbound processor not configured")
	}
	sender := m.newReplySender(msg.Transport)
	if err := m.processor.HandleInbound(ctx, msg, sender); err != nil {
		if m.logger != nil {
			m.logger.Error("inbound processing failed", slog.String("channel", msg.Transport.String()), slog.Any("error", err))
		}
		return err
	}
	return nil
}

func (m *Manager) startInboundWorkers(ctx context.Context) {
	m.inboundOnce.Do(func() {
		workerCtx := ctx
		if workerCtx == nil {
			workerCtx = context.Background()
		}
		m.inboundCtx, m.inboundCancel = context.WithCancel(workerCtx)
		for _, queue := range m.inboundQueues {
			go m.runInboundWorker(m.inboundCtx, queue)
		}
	})
}

func (m *Manager) runInboundWorker(ctx context.Context, queue <-chan inboundTask) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-queue:
			_ = m.handleInbound(task.ctx, task.msg)
		}
	}
}
