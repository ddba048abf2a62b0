package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/logger"
)

type PublishSuccessResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		MediaId          string `json:"MediaId"`
		Status           string `json:"Status"`
		LanguageId       int    `json:"LanguageId"`
		TranscriptionURL string `json:"TranscriptionURL"`
		WordsCount       int    `json:"WordsCount"`
	} `json:"Data"`
	Reason   string `json:"Reason,omitempty"`
	UniqueId string `json:"UniqueId,omitempty"`
}

type StatusResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		AudioURL             string `json:"AudioURL"`
		LanguageId           int    `json:"LanguageId"`
		Status               string `json:"Status"` // Success, Queued, Processing, Failed
		TranscriptionTextURL string `json:"TranscriptionTextURL"`
		WordsCount           int    `json:"WordsCount"`
	} `json:"Data"`
	Reason   string `json:"Reason,omitempty"`
	UniqueId string `json:"UniqueId,omitempty"`
}

// Transcriber fetches the provider transcript for a media URL.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (any, error)
}

// Client talks to the publish/poll/download transcription service.
type Client struct {
	host         string
	http         *http.Client
	pollInterval time.Duration
	maxPolls     int
	maxRetry     time.Duration
	log          *logger.Logger
}

func NewClient(cfg config.Transcription, log *logger.Logger) *Client {
	interval := cfg.PollInterval()
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}
	return &Client{
		host:         strings.TrimRight(cfg.URL, "/"),
		http:         &http.Client{Timeout: cfg.RequestTimeout()},
		pollInterval: interval,
		maxPolls:     cfg.MaxPolls,
		maxRetry:     cfg.RequestTimeout(),
		log:          log.Component("transcription"),
	}
}

// Transcribe submits mediaURL and returns the provider's transcript payload:
// a decoded JSON object when the download is JSON, the raw text otherwise.
func (c *Client) Transcribe(ctx context.Context, mediaURL string) (any, error) {
	const op = "transcription.transcribe"
	if c.host == "" {
		return nil, apperr.Errorf(apperr.KindInvalidArgument, op, "transcription url not configured")
	}
	log := c.log.WithField("media_url", mediaURL)
	log.Info("starting transcription")

	mediaID, existingURL, err := c.publish(ctx, mediaURL)
	if err != nil {
		return nil, err
	}
	if existingURL != "" {
		log.WithField("existing_url", existingURL).Info("transcription already exists, downloading")
		return c.download(ctx, existingURL)
	}

	finalURL, err := c.poll(ctx, mediaID, log)
	if err != nil {
		return nil, err
	}
	log.WithField("final_url", finalURL).Info("download final transcript")
	return c.download(ctx, finalURL)
}

func (c *Client) publish(ctx context.Context, mediaURL string) (string, string, error) {
	const op = "transcription.publish"
	endpoint := c.host + "/transcribe"

	var resp PublishSuccessResponse
	err := c.doJSON(ctx, op, func() (*http.Request, error) {
		var b bytes.Buffer
		w := multipart.NewWriter(&b)
		_ = w.WriteField("callRecordingLink", mediaURL)
		_ = w.WriteField("callType", "interview")
		_ = w.Close()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &b)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	}, &resp)
	if err != nil {
		return "", "", err
	}
	if resp.Code != http.StatusOK {
		return "", "", apperr.Errorf(apperr.KindTransientUpstream, op, "code=%d reason=%s", resp.Code, resp.Reason)
	}
	if resp.Data.TranscriptionURL != "" && strings.EqualFold(resp.Data.Status, "success") {
		return "", resp.Data.TranscriptionURL, nil
	}
	return resp.Data.MediaId, "", nil
}

func (c *Client) poll(ctx context.Context, mediaID string, log *logrus.Entry) (string, error) {
	const op = "transcription.poll"
	u, err := url.Parse(c.host + "/getstatus")
	if err != nil {
		return "", apperr.E(apperr.KindInvalidArgument, op, err)
	}
	q := u.Query()
	q.Set("mediaId", mediaID)
	u.RawQuery = q.Encode()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		var s StatusResponse
		err := c.doJSON(ctx, op, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		}, &s)
		if err != nil {
			log.WithError(err).Warn("polling failed")
			continue
		}

		log.WithFields(logrus.Fields{"media_id": mediaID, "status": s.Data.Status}).Debug("poll status")
		switch s.Data.Status {
		case "Success":
			return s.Data.TranscriptionTextURL, nil
		case "Queued", "Processing":
			continue
		case "Failed":
			return "", apperr.Errorf(apperr.KindValidation, op, "transcription failed: %s", s.Reason)
		}
	}
	return "", apperr.Errorf(apperr.KindTransientUpstream, op, "transcription timeout after %d polls", c.maxPolls)
}

func (c *Client) download(ctx context.Context, target string) (any, error) {
	const op = "transcription.download"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperr.E(apperr.KindInvalidArgument, op, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.E(apperr.KindTransientUpstream, op, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, apperr.Errorf(apperr.KindTransientUpstream, op, "download failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var decoded map[string]any
	if json.Unmarshal(body, &decoded) == nil && decoded != nil {
		return decoded, nil
	}
	return string(body), nil
}

// doJSON retries newReq with exponential backoff until it yields a decodable
// body. 4xx responses are permanent and surface as validation errors.
func (c *Client) doJSON(ctx context.Context, op string, newReq func() (*http.Request, error), target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetry

	var lastErr error
	kind := apperr.KindTransientUpstream
	operation := func() error {
		req, err := newReq()
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status=%d body=%s", resp.StatusCode, string(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("client error: status=%d body=%s", resp.StatusCode, string(body))
			kind = apperr.KindValidation
			return backoff.Permanent(lastErr)
		}
		if len(body) == 0 {
			lastErr = fmt.Errorf("empty body")
			return lastErr
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(body))
			return lastErr
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return apperr.E(kind, op, lastErr)
	}
	return nil
}

// MockClient returns a canned diarized transcript. Enabled by
// USE_MOCK_TRANSCRIBE=true.
type MockClient struct{}

func (MockClient) Transcribe(ctx context.Context, mediaURL string) (any, error) {
	return map[string]any{
		"full_transcript": "We lose hours every week reconciling invoices by hand. " +
			"Our finance team would pay for something that syncs with the bank automatically.",
		"audio_duration": 42.0,
		"language_code":  "en",
		"utterances": []any{
			map[string]any{"speaker": "A", "text": "How do you handle invoicing today?", "start": 0, "end": 3200},
			map[string]any{"speaker": "B", "text": "We lose hours every week reconciling invoices by hand.", "start": 3400, "end": 9800},
			map[string]any{"speaker": "B", "text": "Our finance team would pay for something that syncs with the bank automatically.", "start": 10000, "end": 17500},
		},
	}, nil
}
