package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var tablePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}

	if c.Output.Root == "" {
		return errors.New("output.root is required")
	}
	if _, err := time.LoadLocation(c.Output.Timezone); err != nil {
		return fmt.Errorf("output.timezone: %w", err)
	}

	if c.Bridge.ReconnectMaxDelay < c.Bridge.ReconnectBaseDelay {
		return errors.New("bridge.reconnect_max_delay must be >= bridge.reconnect_base_delay")
	}
	if c.Bridge.QueueLimit < 1 {
		return errors.New("bridge.queue_limit must be >= 1")
	}

	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}
	if c.Writer.BufferSize < 1 {
		return errors.New("writer.buffer_size must be >= 1")
	}

	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		d := &c.Sources[i]
		if err := d.Validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if seen[d.Source] {
			return fmt.Errorf("sources[%d].id %q is duplicated", i, d.Source)
		}
		seen[d.Source] = true

		// The session scan reads back through the in-memory port.
		if need := d.Session.Span(); c.Bridge.Retention < need {
			return fmt.Errorf("bridge.retention (%d) must cover sources[%d].session (%d bars)",
				c.Bridge.Retention, i, need)
		}
	}

	if c.Consolidator.Tolerance <= 0 {
		return errors.New("consolidator.tolerance must be > 0")
	}
	if c.Consolidator.MaxDepthLevels < 0 {
		return errors.New("consolidator.max_depth_levels must be >= 0")
	}
	if c.Consolidator.Workers < 1 {
		return errors.New("consolidator.workers must be >= 1")
	}

	if c.Export.Database {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if !tablePattern.MatchString(db.Table) {
		return fmt.Errorf("%s.table %q is not a valid identifier", prefix, db.Table)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	if db.URL != "" {
		return nil
	}
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	return nil
}
