package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/logger"
)

func testClient(url string) *Client {
	return NewClient(config.Transcription{
		URL:               url,
		RequestTimeoutSec: 2,
		PollIntervalMs:    5,
		MaxPolls:          5,
	}, logger.Discard())
}

func TestTranscribePublishPollDownload(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "https://media.example/a.mp3", r.FormValue("callRecordingLink"))
		_, _ = w.Write([]byte(`{"Code":200,"Status":"ok","Data":{"MediaId":"m-1","Status":"Queued"}}`))
	})
	mux.HandleFunc("/getstatus", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "m-1", r.URL.Query().Get("mediaId"))
		status := "Processing"
		if atomic.AddInt32(&polls, 1) >= 2 {
			status = "Success"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Code": 200,
			"Data": map[string]any{"Status": status, "TranscriptionTextURL": srv.URL + "/text"},
		})
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"full_transcript":"hello","utterances":[{"speaker":"A","text":"hello"}]}`))
	})

	raw, err := testClient(srv.URL).Transcribe(context.Background(), "https://media.example/a.mp3")
	require.NoError(t, err)
	m, ok := raw.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello", m["full_transcript"])
	assert.EqualValues(t, 2, atomic.LoadInt32(&polls))
}

func TestTranscribeExistingTranscriptAsText(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Code": 200,
			"Data": map[string]any{"Status": "Success", "TranscriptionURL": srv.URL + "/text"},
		})
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain transcript"))
	})

	raw, err := testClient(srv.URL).Transcribe(context.Background(), "https://media.example/b.mp3")
	require.NoError(t, err)
	assert.Equal(t, "plain transcript", raw)
}

func TestTranscribeClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad media", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Transcribe(context.Background(), "https://media.example/c.mp3")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestTranscribeFailedStatus(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Code":200,"Data":{"MediaId":"m-2","Status":"Queued"}}`))
	})
	mux.HandleFunc("/getstatus", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Code":200,"Reason":"unsupported codec","Data":{"Status":"Failed"}}`))
	})

	_, err := testClient(srv.URL).Transcribe(context.Background(), "https://media.example/d.mp3")
	require.Error(t, err)
	assert.False(t, apperr.IsRetryable(err))
	assert.Contains(t, err.Error(), "unsupported codec")
}
