// buoysim publishes randomized buoy readings to the Redis stream, for
// end-to-end exercise of the queue consumer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seaward/buoyd/config"
	"github.com/seaward/buoyd/internal/logging"
	"github.com/seaward/buoyd/internal/telemetry"
)

// buoy is one simulated drifting buoy.
type buoy struct {
	id   int
	lat  float64
	lon  float64
	temp float64
}

// drift nudges the position and environment by small random steps.
func (b *buoy) drift(rng *rand.Rand) {
	b.lat += (rng.Float64() - 0.5) * 0.001
	b.lon += (rng.Float64() - 0.5) * 0.001
	b.temp += (rng.Float64() - 0.5) * 0.2
}

// readings emits the buoy's current state as one reading per field.
func (b *buoy) readings(now int64) []telemetry.Reading {
	return []telemetry.Reading{
		{SourceID: b.id, Type: telemetry.TypeTemperature, Value: b.temp, TimestampMs: now},
		{SourceID: b.id, Type: telemetry.TypePressure, Value: 1.0 + b.temp/1000, TimestampMs: now},
		{SourceID: b.id, Type: telemetry.TypeLatitude, Value: b.lat, TimestampMs: now},
		{SourceID: b.id, Type: telemetry.TypeLongitude, Value: b.lon, TimestampMs: now},
	}
}

func main() {
	redisAddr := flag.String("redis", config.DefaultRedisAddr, "redis address")
	stream := flag.String("stream", config.DefaultStream, "redis stream")
	count := flag.Int("buoys", 3, "number of simulated buoys")
	interval := flag.Duration("interval", 2*time.Second, "publish interval per buoy")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	logging.Init(slog.LevelInfo, false)
	log := logging.Component("buoysim")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer client.Close()

	rng := rand.New(rand.NewSource(*seed))
	buoys := make([]*buoy, *count)
	for i := range buoys {
		buoys[i] = &buoy{
			id:   i + 1,
			lat:  41.5 + rng.Float64(),
			lon:  -70.5 - rng.Float64(),
			temp: 15 + rng.Float64()*10,
		}
	}

	log.Info("publishing", "addr", *redisAddr, "stream", *stream,
		"buoys", *count, "interval", *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stopped")
			return
		case <-ticker.C:
		}

		now := time.Now().UnixMilli()
		for _, b := range buoys {
			b.drift(rng)
			for _, r := range b.readings(now) {
				body, err := json.Marshal(r)
				if err != nil {
					continue
				}
				err = client.XAdd(ctx, &redis.XAddArgs{
					Stream: *stream,
					Values: map[string]any{"body": string(body)},
				}).Err()
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warn("publish failed", "buoy", b.id, "error", err)
					break
				}
			}
		}
	}
}
