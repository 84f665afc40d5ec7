// SPDX-License-Identifier: MIT

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/pagetap/pagetap/internal/log"
	"github.com/pagetap/pagetap/internal/metrics"
)

// MemoryBus is the in-process pub/sub used when controller and agent share
// one process. It is not durable and provides ordered, at-least-attempted
// delivery per subscriber while publish contexts remain active.
type MemoryBus struct {
	logger zerolog.Logger

	mu   sync.RWMutex
	subs map[string][]chan Message
}

const subBuffer = 64

const dropLogEvery = 100

var dropCount atomic.Uint64

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		logger: log.WithComponent("bus"),
		subs:   make(map[string][]chan Message),
	}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	chs := append([]chan Message(nil), b.subs[topic]...)
	b.mu.RUnlock()
	for _, ch := range chs {
		select {
		case ch <- msg:
		case <-ctx.Done():
			reason := publishDropReason(ctx.Err())
			metrics.IncBusDropReason(topic, reason)
			count := dropCount.Add(1)
			if count%dropLogEvery == 0 {
				b.logger.Warn().
					Str("topic", topic).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("memory bus failed to publish due to context cancellation")
			}
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	ch := make(chan Message, subBuffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	return &memSub{b: b, topic: topic, ch: ch}, nil
}

// SubscriberCount reports the number of active subscribers on a topic.
// Callers use it to sequence publishes against asynchronous subscription.
func (b *MemoryBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan Message
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	lst := s.b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s.ch {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	close(s.ch) // signal subscriber to stop
	return nil
}

// Ensure compliance
var _ Bus = (*MemoryBus)(nil)
