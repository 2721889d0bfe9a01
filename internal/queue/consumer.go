package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/seaward/buoyd/config"
	"github.com/seaward/buoyd/internal/logging"
	"github.com/seaward/buoyd/internal/metrics"
	"github.com/seaward/buoyd/internal/store"
	"github.com/seaward/buoyd/internal/telemetry"
	"github.com/seaward/buoyd/internal/validation"
)

// Config holds the consumer loop timings. Zero values take the documented
// defaults.
type Config struct {
	ReceiveMax     int           // messages per poll
	ReceiveWait    time.Duration // long-poll wait of one receive
	BaseSleep      time.Duration // pause after a non-empty batch
	InitialBackoff time.Duration // first empty-poll sleep
	MaxBackoff     time.Duration // empty-poll sleep ceiling
	ErrorPause     time.Duration // pause after a transport failure
}

func (c Config) withDefaults() Config {
	if c.ReceiveMax <= 0 {
		c.ReceiveMax = config.DefaultReceiveMax
	}
	if c.ReceiveWait <= 0 {
		c.ReceiveWait = config.DefaultReceiveWait
	}
	if c.BaseSleep <= 0 {
		c.BaseSleep = config.DefaultBaseSleep
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = config.DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = config.DefaultMaxBackoff
	}
	if c.ErrorPause <= 0 {
		c.ErrorPause = config.DefaultErrorPause
	}
	return c
}

// Consumer drains a Queue into a Store. Run on exactly one goroutine; the
// loop is not safe for concurrent Run calls against the same Consumer.
type Consumer struct {
	queue Queue
	store store.Store
	cfg   Config
	mtx   *metrics.Metrics
	log   *slog.Logger

	consecutiveEmpty int
}

// New builds a consumer. mtx may be nil to disable instrumentation.
func New(q Queue, st store.Store, cfg Config, mtx *metrics.Metrics) *Consumer {
	return &Consumer{
		queue: q,
		store: st,
		cfg:   cfg.withDefaults(),
		mtx:   mtx,
		log:   logging.Component("queue.consumer"),
	}
}

// Run polls until ctx is cancelled. Every suspension point (the long-poll
// receive, the backoff sleep, the post-batch sleep, the error pause) aborts
// promptly on cancellation; an in-flight message apply+ack is finished first.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("consumer started",
		"receive_max", c.cfg.ReceiveMax,
		"receive_wait", c.cfg.ReceiveWait,
		"max_backoff", c.cfg.MaxBackoff)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := c.queue.Receive(ctx, c.cfg.ReceiveMax, c.cfg.ReceiveWait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Transport fault: pause and retry. The backoff counter is
			// untouched, error pauses are not empty polls.
			c.record(metrics.PollOutcomeError)
			c.log.Warn("receive failed", "error", err)
			if !sleep(ctx, c.cfg.ErrorPause) {
				return ctx.Err()
			}
			continue
		}

		if len(msgs) == 0 {
			c.consecutiveEmpty++
			c.record(metrics.PollOutcomeEmpty)
			delay := Backoff(c.cfg.InitialBackoff, c.cfg.MaxBackoff, c.consecutiveEmpty)
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			continue
		}

		c.consecutiveEmpty = 0
		c.record(metrics.PollOutcomeBatch)
		if c.mtx != nil {
			c.mtx.RecordBatch(len(msgs))
		}
		c.drain(ctx, msgs)

		if !sleep(ctx, c.cfg.BaseSleep) {
			return ctx.Err()
		}
	}
}

// drain processes one batch. Failures are isolated per message: a message
// that fails to decode or apply stays unacknowledged for redelivery and the
// rest of the batch proceeds.
func (c *Consumer) drain(ctx context.Context, msgs []Message) {
	for _, m := range msgs {
		r, err := telemetry.DecodeReading(m.Body)
		if err != nil {
			c.fail("decode", m.ID, err)
			continue
		}
		if err := validation.ValidateReading(r); err != nil {
			c.fail("validate", m.ID, err)
			continue
		}
		if err := c.store.Update(ctx, []*telemetry.Reading{r}); err != nil {
			c.fail("apply", m.ID, err)
			continue
		}
		if err := c.queue.Ack(ctx, m.ID); err != nil {
			// Applied but not acknowledged: the message will come back as a
			// duplicate, which stores tolerate.
			c.fail("ack", m.ID, err)
			continue
		}
		if c.mtx != nil {
			c.mtx.RecordIngest(metrics.ChannelQueue, 1)
			c.mtx.RecordAck()
		}
	}
}

func (c *Consumer) fail(stage, id string, err error) {
	c.log.Warn("message "+stage+" failed", "id", id, "error", err)
	if c.mtx != nil {
		c.mtx.RecordIngestFailure(metrics.ChannelQueue, stage)
	}
}

func (c *Consumer) record(outcome string) {
	if c.mtx != nil {
		c.mtx.RecordPoll(outcome)
	}
}

// sleep waits d unless ctx is cancelled first, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
