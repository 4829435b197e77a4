package kafka

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is fully processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r          messageReader
	workers    int
	backoff    time.Duration
	maxBackoff time.Duration
	log        *slog.Logger
}

func NewConsumer(brokers []string, group string, topics []string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commits are synchronous and explicit
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r messageReader, workers int, log *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		r:          r,
		workers:    workers,
		backoff:    200 * time.Millisecond,
		maxBackoff: 10 * time.Second,
		log:        log.With("component", "kafka-consumer"),
	}
}

// Start fetches until ctx is done and fans messages out to the worker pool.
// A partition is always served by the same worker, which handles and commits
// its messages strictly in offset order. Since the producer partitions by
// order ID, events of one order are handled in the order they were produced.
// Start returns after every worker has exited; a shutdown is not an error.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				c.handle(ctx, h, m)
			}
		}(jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case jobs[c.slot(m.Topic, m.Partition)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// handle retries m until it succeeds or ctx is done. A message that never
// succeeds is never committed, so nothing after it in its partition is
// committed either and it is redelivered after a restart or rebalance.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) {
	// after shutdown, queued messages stay uncommitted behind any failure
	if ctx.Err() != nil {
		return
	}
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		c.log.Error("handle message", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset,
			"attempt", attempt, "err", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
		if wait *= 2; wait > c.maxBackoff {
			wait = c.maxBackoff
		}
	}
	if ctx.Err() != nil {
		return
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.log.Error("commit offset", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "err", err)
	}
}

func (c *Consumer) slot(topic string, partition int) int {
	if c.workers == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	_, _ = h.Write([]byte(strconv.Itoa(partition)))
	return int(h.Sum32() % uint32(c.workers))
}
