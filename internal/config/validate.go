package config

import (
	"fmt"
	"strings"
)

// Validate performs rule checks on the loaded configuration. Load calls it.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be > 0 (got %d)", c.Server.MaxBodyBytes)
	}

	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("queue.concurrency must be > 0 (got %d)", c.Queue.Concurrency)
	}
	if c.Queue.MaxRetry < 0 {
		return fmt.Errorf("queue.max_retry must be >= 0 (got %d)", c.Queue.MaxRetry)
	}
	if c.Queue.BufferSize <= 0 {
		return fmt.Errorf("queue.buffer_size must be > 0 (got %d)", c.Queue.BufferSize)
	}

	if c.Archive.Enabled() {
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required when archive.endpoint is set")
		}
		if c.Archive.PresignTTL <= 0 {
			return fmt.Errorf("archive.presign_ttl must be > 0 (got %s)", c.Archive.PresignTTL)
		}
	}

	if strings.TrimSpace(c.Workflow.DefaultApprover) == "" {
		return fmt.Errorf("workflow.default_approver must not be empty")
	}

	return nil
}

func (s *StoreConfig) validate() error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	switch s.Driver {
	case DriverPostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for driver %q", s.Driver)
		}
		if s.MaxConns <= 0 {
			return fmt.Errorf("max_conns must be > 0 (got %d)", s.MaxConns)
		}
		if s.MinConns < 0 || s.MinConns > s.MaxConns {
			return fmt.Errorf("min_conns must be between 0 and max_conns (got %d)", s.MinConns)
		}
	case DriverFirestore:
		if s.FirestoreProjectID == "" {
			return fmt.Errorf("firestore_project_id is required for driver %q", s.Driver)
		}
		if s.FirestoreCollection == "" {
			return fmt.Errorf("firestore_collection must not be empty")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown driver %q (want postgres, firestore or memory)", s.Driver)
	}
	return nil
}
