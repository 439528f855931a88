package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownPolicies = map[string]struct{}{
	"basic":    {},
	"extended": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLadder(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.UploadsDir) == "" {
		return errors.New("paths.uploads_dir must be set")
	}
	return nil
}

func (c *Config) validateLadder() error {
	if _, ok := knownPolicies[c.Ladder.Policy]; !ok {
		return fmt.Errorf("ladder.policy: unsupported value %q (expected basic or extended)", c.Ladder.Policy)
	}
	for _, tier := range c.Ladder.Tiers {
		if tier <= 0 {
			return fmt.Errorf("ladder.tiers: tier %d must be positive", tier)
		}
	}
	if c.Ladder.Floor < 0 {
		return errors.New("ladder.floor must not be negative")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreFile, StoreSQLite:
		return nil
	default:
		return fmt.Errorf("store.backend: unsupported value %q (expected file or sqlite)", c.Store.Backend)
	}
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case EventsNone:
		return nil
	case EventsRedis:
		if strings.TrimSpace(c.Events.RedisAddr) == "" {
			return errors.New("events.redis_addr must be set when events.backend is redis")
		}
		return nil
	case EventsKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			return errors.New("events.kafka_brokers must be set when events.backend is kafka")
		}
		return nil
	default:
		return fmt.Errorf("events.backend: unsupported value %q (expected none, redis, or kafka)", c.Events.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
