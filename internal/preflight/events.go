package preflight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"streampack/internal/config"
	"streampack/internal/events"
)

// CheckEvents verifies the configured event backend is reachable.
func CheckEvents(ctx context.Context, cfg config.Events) Result {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch cfg.Backend {
	case config.EventsNone:
		return Result{Name: "Events", Passed: true, Detail: "Disabled"}
	case config.EventsRedis:
		const name = "Redis events"
		client := events.NewRedis(cfg)
		defer client.Close()
		if err := client.Ping(checkCtx); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.RedisAddr, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (channel %s)", cfg.RedisAddr, cfg.RedisChannel)}
	case config.EventsKafka:
		const name = "Kafka events"
		brokers := strings.Join(cfg.KafkaBrokers, ",")
		client := events.NewKafka(cfg)
		defer client.Close()
		if err := client.Ping(checkCtx); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", brokers, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (topic %s)", brokers, cfg.KafkaTopic)}
	default:
		return Result{Name: "Events", Detail: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}
}
