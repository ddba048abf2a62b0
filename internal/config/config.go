package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Database selects the gorm dialector.
type Database struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Transcription configures the external transcription service.
type Transcription struct {
	URL               string `toml:"url"`
	Mock              bool   `toml:"mock"`
	RequestTimeoutSec int    `toml:"request_timeout_sec"`
	PollIntervalMs    int    `toml:"poll_interval_ms"`
	MaxPolls          int    `toml:"max_polls"`
}

// LLM configures the OpenAI-compatible chat completion gateway.
type LLM struct {
	GatewayURL        string `toml:"gateway_url"`
	APIKey            string `toml:"api_key"`
	Model             string `toml:"model"`
	Mock              bool   `toml:"mock"`
	RequestTimeoutSec int    `toml:"request_timeout_sec"`
	MaxRetrySec       int    `toml:"max_retry_sec"`
}

// Embedding configures the embedding service and batching.
type Embedding struct {
	URL             string   `toml:"url"`
	APIKey          string   `toml:"api_key"`
	Model           string   `toml:"model"`
	Mock            bool     `toml:"mock"`
	Dimension       int      `toml:"dimension"`
	BatchSize       int      `toml:"batch_size"`
	BatchDelayMs    int      `toml:"batch_delay_ms"`
	Kinds           []string `toml:"kinds"`
	FreeTextKinds   []string `toml:"free_text_kinds"`
	RequestTimeoutS int      `toml:"request_timeout_sec"`
}

// Clustering holds similarity and pain matrix thresholds.
type Clustering struct {
	Threshold          float64 `toml:"threshold"`
	MinEvidencePerPain int     `toml:"min_evidence_per_pain"`
	MinGroupSize       int     `toml:"min_group_size"`
	TopActions         int     `toml:"top_actions"`
}

// Worker configures the job queue consumer.
type Worker struct {
	Concurrency      int `toml:"concurrency"`
	PollIntervalMs   int `toml:"poll_interval_ms"`
	MaxAttempts      int `toml:"max_attempts"`
	RetryBaseDelayMs int `toml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `toml:"retry_max_delay_ms"`
	StaleAfterSec    int `toml:"stale_after_sec"`
	StageAttempts    int `toml:"stage_attempts"`
}

// Server configures the HTTP API.
type Server struct {
	Port            string `toml:"port"`
	ReadTimeoutSec  int    `toml:"read_timeout_sec"`
	WriteTimeoutSec int    `toml:"write_timeout_sec"`
	IdleTimeoutSec  int    `toml:"idle_timeout_sec"`
}

type Config struct {
	Database      Database      `toml:"database"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Embedding     Embedding     `toml:"embedding"`
	Clustering    Clustering    `toml:"clustering"`
	Worker        Worker        `toml:"worker"`
	Server        Server        `toml:"server"`
}

// Load builds the configuration from defaults, an optional TOML file and the
// environment, in that order of precedence (environment wins). An empty path
// falls back to INSIGHTS_CONFIG. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = os.Getenv("INSIGHTS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %q: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %q: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envString("DB_DRIVER", &c.Database.Driver)
	envString("DATABASE_URL", &c.Database.DSN)

	envString("TRANSCRIBE_URL", &c.Transcription.URL)
	envBool("USE_MOCK_TRANSCRIBE", &c.Transcription.Mock)

	envString("LLM_GATEWAY_URL", &c.LLM.GatewayURL)
	envString("LLM_API_KEY", &c.LLM.APIKey)
	envString("LLM_MODEL", &c.LLM.Model)
	envBool("USE_MOCK_LLM", &c.LLM.Mock)

	envString("EMBEDDING_URL", &c.Embedding.URL)
	envString("EMBEDDING_API_KEY", &c.Embedding.APIKey)
	envString("EMBEDDING_MODEL", &c.Embedding.Model)
	envBool("USE_MOCK_EMBEDDING", &c.Embedding.Mock)
	envInt("EMBEDDING_DIMENSION", &c.Embedding.Dimension)
	envInt("EMBEDDING_BATCH_SIZE", &c.Embedding.BatchSize)
	envInt("EMBEDDING_BATCH_DELAY_MS", &c.Embedding.BatchDelayMs)
	envList("EMBEDDING_KINDS", &c.Embedding.Kinds)
	envList("EMBEDDING_FREE_TEXT_KINDS", &c.Embedding.FreeTextKinds)

	envFloat("CLUSTER_THRESHOLD", &c.Clustering.Threshold)
	envInt("PAIN_MIN_EVIDENCE", &c.Clustering.MinEvidencePerPain)
	envInt("PAIN_MIN_GROUP_SIZE", &c.Clustering.MinGroupSize)

	envInt("WORKER_CONCURRENCY", &c.Worker.Concurrency)
	envInt("WORKER_POLL_INTERVAL_MS", &c.Worker.PollIntervalMs)
	envInt("JOB_MAX_ATTEMPTS", &c.Worker.MaxAttempts)

	envString("PORT", &c.Server.Port)
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Transcription.URL = strings.TrimRight(strings.TrimSpace(c.Transcription.URL), "/")
	c.LLM.GatewayURL = strings.TrimSpace(c.LLM.GatewayURL)
	c.Embedding.URL = strings.TrimRight(strings.TrimSpace(c.Embedding.URL), "/")
	c.Embedding.Kinds = normalizeList(c.Embedding.Kinds)
	c.Embedding.FreeTextKinds = normalizeList(c.Embedding.FreeTextKinds)
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}

func envList(key string, dst *[]string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.Split(v, ",")
	}
}

func ms(n int) time.Duration  { return time.Duration(n) * time.Millisecond }
func sec(n int) time.Duration { return time.Duration(n) * time.Second }

func (t Transcription) RequestTimeout() time.Duration { return sec(t.RequestTimeoutSec) }
func (t Transcription) PollInterval() time.Duration   { return ms(t.PollIntervalMs) }
func (l LLM) RequestTimeout() time.Duration           { return sec(l.RequestTimeoutSec) }
func (l LLM) MaxRetry() time.Duration                 { return sec(l.MaxRetrySec) }
func (e Embedding) BatchDelay() time.Duration         { return ms(e.BatchDelayMs) }
func (e Embedding) RequestTimeout() time.Duration     { return sec(e.RequestTimeoutS) }
func (w Worker) PollInterval() time.Duration          { return ms(w.PollIntervalMs) }
func (w Worker) RetryBaseDelay() time.Duration        { return ms(w.RetryBaseDelayMs) }
func (w Worker) RetryMaxDelay() time.Duration         { return ms(w.RetryMaxDelayMs) }
func (w Worker) StaleAfter() time.Duration            { return sec(w.StaleAfterSec) }
func (s Server) ReadTimeout() time.Duration           { return sec(s.ReadTimeoutSec) }
func (s Server) WriteTimeout() time.Duration          { return sec(s.WriteTimeoutSec) }
func (s Server) IdleTimeout() time.Duration           { return sec(s.IdleTimeoutSec) }
