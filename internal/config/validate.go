package config

import (
	"fmt"

	"github.com/heartmarshall/names-loader/internal/domain"
)

// maxBatchSize bounds the rows held in memory per flush.
const maxBatchSize = 1_000_000

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if !c.Database.UsesSQLite() && c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database: dsn or host is required")
	}

	if err := c.Loader.validate(); err != nil {
		return fmt.Errorf("loader: %w", err)
	}

	if c.Database.UsesSQLite() && c.Loader.WriteStrategy() == domain.WriteStrategyCopy {
		return fmt.Errorf("loader: strategy %q is not supported by the sqlite destination", domain.WriteStrategyCopy)
	}

	return nil
}

// applyDefaults fills the settings whose default depends on other settings.
func (c *Config) applyDefaults() {
	if c.Loader.Strategy == "" {
		c.Loader.Strategy = string(domain.WriteStrategyCopy)
		if c.Database.UsesSQLite() {
			c.Loader.Strategy = string(domain.WriteStrategyRows)
		}
	}
}

func (l *LoaderConfig) validate() error {
	if l.BatchSize <= 0 || l.BatchSize > maxBatchSize {
		return fmt.Errorf("batch_size must be in 1..%d (got %d)", maxBatchSize, l.BatchSize)
	}
	if !l.WriteStrategy().IsValid() {
		return fmt.Errorf("strategy must be one of copy, rows (got %q)", l.Strategy)
	}
	if !l.RebuildPolicy().IsValid() {
		return fmt.Errorf("rebuild must be one of rebuild, append (got %q)", l.Rebuild)
	}
	if !l.OrderPolicy().IsValid() {
		return fmt.Errorf("order_check must be one of warn, strict (got %q)", l.OrderCheck)
	}
	if l.SampleSize < 0 {
		return fmt.Errorf("sample_size must be >= 0 (got %d)", l.SampleSize)
	}
	return nil
}

// WriteStrategy returns the configured strategy as a domain value.
func (l LoaderConfig) WriteStrategy() domain.WriteStrategy {
	return domain.WriteStrategy(l.Strategy)
}

// RebuildPolicy returns the configured rebuild policy as a domain value.
func (l LoaderConfig) RebuildPolicy() domain.RebuildPolicy {
	return domain.RebuildPolicy(l.Rebuild)
}

// OrderPolicy returns the configured order check policy as a domain value.
func (l LoaderConfig) OrderPolicy() domain.OrderPolicy {
	return domain.OrderPolicy(l.OrderCheck)
}
