package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/logger"
)

// LLMClient calls an OpenAI-compatible chat completion gateway and decodes
// the JSON object the model returns.
type LLMClient struct {
	url      string
	apiKey   string
	model    string
	http     *http.Client
	maxRetry time.Duration
	log      *logger.Logger
}

func NewLLMClient(cfg config.LLM, log *logger.Logger) *LLMClient {
	return &LLMClient{
		url:      cfg.GatewayURL,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		http:     &http.Client{Timeout: cfg.RequestTimeout()},
		maxRetry: cfg.MaxRetry(),
		log:      log.Component("llm-client"),
	}
}

// CompleteJSON sends prompt as a single user message and unmarshals the
// first JSON object in the reply into target. Transport failures, 5xx and
// unparseable replies are retried; 4xx is not.
func (c *LLMClient) CompleteJSON(ctx context.Context, prompt string, target any) error {
	const op = "llm.complete"
	if c.url == "" || c.apiKey == "" {
		return apperr.Errorf(apperr.KindInvalidArgument, op, "llm gateway not configured")
	}

	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature":     0.0,
		"response_format": map[string]string{"type": "json_object"},
	}
	data, _ := json.Marshal(reqBody)
	c.log.WithField("payload_len", len(data)).Debug("llm request")

	var lastErr error
	kind := apperr.KindTransientUpstream
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		c.log.WithField("http_status", resp.StatusCode).Debug("llm raw response received")

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			lastErr = fmt.Errorf("llm client error: status=%d body=%s", resp.StatusCode, truncate(string(body), 512))
			kind = apperr.KindValidation
			return backoff.Permanent(lastErr)
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("llm server error: status=%d", resp.StatusCode)
			return lastErr
		}

		// Try choices[0].message.content (OpenAI-like)
		if inner := extractContentFromChoices(body); inner != "" {
			if err := json.Unmarshal([]byte(inner), target); err == nil {
				return nil
			}
			c.log.Warn("unmarshal from choices content failed")
		}

		// Fallback: find first balanced JSON in response body
		if fallback := extractJSON(string(body)); fallback != "" {
			if err := json.Unmarshal([]byte(fallback), target); err == nil {
				return nil
			}
			c.log.Warn("unmarshal from fallback JSON failed")
		}

		lastErr = fmt.Errorf("no JSON found in LLM output")
		return lastErr
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetry
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return apperr.E(kind, op, fmt.Errorf("llm extract failed: %w", lastErr))
	}
	return nil
}

// extractContentFromChoices attempts to read openai-style choices[0].message.content JSON
func extractContentFromChoices(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}

	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	c0, _ := choices[0].(map[string]any)
	if c0 == nil {
		return ""
	}
	msg, _ := c0["message"].(map[string]any)
	if msg == nil {
		return ""
	}
	content, _ := msg["content"].(string)
	return extractJSON(content)
}

// extractJSON finds the first balanced JSON object in a string and returns it.
// Markdown fences are stripped first and braces inside strings are ignored.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
