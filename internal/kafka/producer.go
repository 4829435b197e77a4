package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/storefront-checkout/internal/metrics"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer is a buffered, fire-and-forget publisher. The topic travels on
// each message, so one producer serves every order topic.
type Producer struct {
	w     messageWriter
	inbox chan kafka.Message
	done  chan struct{}
	log   *slog.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewProducer(brokers []string, buf int, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	p := &Producer{log: log.With("component", "kafka-producer")}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion:   p.completed,
	}
	p.init(buf)
	return p
}

func (p *Producer) init(buf int) {
	if buf <= 0 {
		buf = 1
	}
	p.inbox = make(chan kafka.Message, buf)
	p.done = make(chan struct{})
}

// completed is the async writer's delivery callback.
func (p *Producer) completed(msgs []kafka.Message, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	for _, m := range msgs {
		metrics.EventPublished(m.Topic, result)
	}
	if err != nil {
		p.log.Error("deliver events", "count", len(msgs), "err", err)
	}
}

// Start runs the write loop until Close is called or ctx is done. Buffered
// messages are flushed before the writer is closed.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			p.Close()
		case <-p.done:
		}
	}()
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				metrics.EventPublished(m.Topic, "error")
				p.log.Error("write event", "topic", m.Topic, "key", string(m.Key), "err", err)
			}
		}
		if err := p.w.Close(); err != nil {
			p.log.Error("close writer", "err", err)
		}
	}()
}

// Publish enqueues one message. It never blocks: when the buffer is full or
// the producer is closed the message is dropped and counted.
func (p *Producer) Publish(topic string, key, value []byte, headers map[string]string) {
	m := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: toHeaders(headers),
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		metrics.EventPublished(topic, "dropped")
		p.log.Warn("publish after close", "topic", topic, "key", string(key))
		return
	}
	select {
	case p.inbox <- m:
	default:
		metrics.EventPublished(topic, "dropped")
		p.log.Warn("producer buffer full, event dropped", "topic", topic, "key", string(key))
	}
}

// Close stops accepting messages; the loop flushes what is buffered and
// exits. Safe to call more than once.
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
	})
}

// WaitClosed blocks until the write loop has flushed and exited.
func (p *Producer) WaitClosed() { <-p.done }
