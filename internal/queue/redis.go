package queue

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seaward/buoyd/config"
	"github.com/seaward/buoyd/internal/errors"
)

// RedisConfig identifies the stream the consumer drains.
type RedisConfig struct {
	Addr     string
	Stream   string
	Group    string
	Consumer string // consumer name within the group; defaults to hostname+pid
}

// RedisQueue adapts a Redis stream consumer group to the Queue interface.
// XREADGROUP with a block timeout provides the long-poll receive; XACK plus
// XDEL provides the delete-on-success acknowledgment. Messages never
// acknowledged stay in the group's pending list and are redelivered after a
// restart via the group cursor.
type RedisQueue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
}

// NewRedisQueue connects and ensures the stream and group exist.
func NewRedisQueue(ctx context.Context, cfg RedisConfig) (*RedisQueue, error) {
	if cfg.Addr == "" {
		cfg.Addr = config.DefaultRedisAddr
	}
	if cfg.Stream == "" {
		cfg.Stream = config.DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = config.DefaultConsumerGroup
	}
	if cfg.Consumer == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "buoyd"
		}
		cfg.Consumer = host + "-" + strconv.Itoa(os.Getpid())
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})

	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		client.Close()
		return nil, errors.Wrap(errors.ErrTransport, err.Error())
	}

	return &RedisQueue{
		client:   client,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: cfg.Consumer,
	}, nil
}

// Receive reads up to max new entries, blocking up to wait. A block timeout
// with no entries is an empty batch, not an error.
func (q *RedisQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(max),
		Block:    wait,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrTransport, err.Error())
	}

	var msgs []Message
	for _, s := range streams {
		for _, entry := range s.Messages {
			msgs = append(msgs, Message{ID: entry.ID, Body: entryBody(entry)})
		}
	}
	return msgs, nil
}

// entryBody extracts the payload from a stream entry. Producers publish the
// reading JSON under the "body" field.
func entryBody(entry redis.XMessage) []byte {
	if v, ok := entry.Values["body"].(string); ok {
		return []byte(v)
	}
	return nil
}

// Ack acknowledges the entry in the group and deletes it from the stream.
func (q *RedisQueue) Ack(ctx context.Context, id string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, id).Err(); err != nil {
		return errors.Wrap(errors.ErrTransport, err.Error())
	}
	if err := q.client.XDel(ctx, q.stream, id).Err(); err != nil {
		return errors.Wrap(errors.ErrTransport, err.Error())
	}
	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
