package config

// Default returns the baseline configuration. External service URLs have no
// defaults; set them or enable the matching mock flag.
func Default() *Config {
	return &Config{
		Database: Database{
			Driver: "sqlite",
			DSN:    "file:insights.db?cache=shared",
		},
		Transcription: Transcription{
			RequestTimeoutSec: 12,
			PollIntervalMs:    1500,
			MaxPolls:          40,
		},
		LLM: LLM{
			Model:             "gpt-4o-mini",
			RequestTimeoutSec: 25,
			MaxRetrySec:       45,
		},
		Embedding: Embedding{
			Model:           "text-embedding-3-small",
			Dimension:       1536,
			BatchSize:       10,
			BatchDelayMs:    1000,
			Kinds:           []string{"pain"},
			FreeTextKinds:   []string{"survey_response", "quote"},
			RequestTimeoutS: 20,
		},
		Clustering: Clustering{
			Threshold:          0.82,
			MinEvidencePerPain: 3,
			MinGroupSize:       2,
			TopActions:         5,
		},
		Worker: Worker{
			Concurrency:      2,
			PollIntervalMs:   1000,
			MaxAttempts:      3,
			RetryBaseDelayMs: 2000,
			RetryMaxDelayMs:  60000,
			StaleAfterSec:    300,
			StageAttempts:    3,
		},
		Server: Server{
			Port:            "8080",
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 60,
			IdleTimeoutSec:  120,
		},
	}
}
