package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if err := c.validateClustering(); err != nil {
		return err
	}
	return c.validateWorker()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required (set DATABASE_URL)")
	}
	return nil
}

func (c *Config) validateServices() error {
	if !c.Transcription.Mock && c.Transcription.URL == "" {
		return errors.New("transcription.url is required unless USE_MOCK_TRANSCRIBE=true")
	}
	if !c.LLM.Mock && (c.LLM.GatewayURL == "" || c.LLM.APIKey == "") {
		return errors.New("llm.gateway_url and llm.api_key are required unless USE_MOCK_LLM=true")
	}
	if !c.Embedding.Mock && c.Embedding.URL == "" {
		return errors.New("embedding.url is required unless USE_MOCK_EMBEDDING=true")
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	if c.Embedding.Dimension <= 0 {
		return errors.New("embedding.dimension must be positive")
	}
	if c.Embedding.BatchSize <= 0 {
		return errors.New("embedding.batch_size must be positive")
	}
	if c.Embedding.BatchDelayMs < 0 {
		return errors.New("embedding.batch_delay_ms must not be negative")
	}
	if len(c.Embedding.Kinds) == 0 {
		return errors.New("embedding.kinds must name at least one facet kind")
	}
	return nil
}

func (c *Config) validateClustering() error {
	if c.Clustering.Threshold <= 0 || c.Clustering.Threshold > 1 {
		return errors.New("clustering.threshold must be in (0, 1]")
	}
	if c.Clustering.MinEvidencePerPain < 0 || c.Clustering.MinGroupSize < 0 {
		return errors.New("clustering minimums must not be negative")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be positive")
	}
	if c.Worker.PollIntervalMs <= 0 {
		return errors.New("worker.poll_interval_ms must be positive")
	}
	if c.Worker.MaxAttempts <= 0 || c.Worker.StageAttempts <= 0 {
		return errors.New("worker.max_attempts and worker.stage_attempts must be positive")
	}
	if c.Worker.RetryMaxDelayMs < c.Worker.RetryBaseDelayMs {
		return errors.New("worker.retry_max_delay_ms must be >= worker.retry_base_delay_ms")
	}
	return nil
}
