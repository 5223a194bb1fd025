package reviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
	"github.com/a11yscope/a11yscope-cli/internal/config"
)

func liveTestConfig() config.ReviewerConfig {
	return config.ReviewerConfig{
		Mode:       config.ReviewerLive,
		Model:      "gemini-2.5-flash",
		APIKey:     "test-key",
		APITimeout: 5 * time.Second,
		MaxTokens:  512,
	}
}

// setupLive rigs a Live reviewer against a mock generateContent endpoint.
func setupLive(t *testing.T, handler http.HandlerFunc) *Live {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := liveTestConfig()
	cfg.Endpoint = server.URL

	l, err := NewLive(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return l
}

// geminiBody wraps verdict JSON in the generateContent response envelope.
func geminiBody(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	require.NoError(t, err)
	return body
}

func TestNewLive_Defaults(t *testing.T) {
	cfg := liveTestConfig()
	l, err := NewLive(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	expected := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	assert.Equal(t, expected, l.endpoint)
	assert.Equal(t, cfg.APITimeout, l.httpClient.Timeout)
	assert.Equal(t, cfg.Model, l.Name())
}

func TestNewLive_RequiresAPIKey(t *testing.T) {
	cfg := liveTestConfig()
	cfg.APIKey = ""
	_, err := NewLive(cfg, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestLiveReview_Success(t *testing.T) {
	l := setupLive(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var payload geminiRequestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Contents, 1)
		assert.Equal(t, "judge this", payload.Contents[0].Parts[0].Text)
		assert.Equal(t, "application/json", payload.GenerationConfig.ResponseMimeType)

		w.Write(geminiBody(t, `{"outcome": "confirmed", "confidence": 0.85, "rationale": "Ratio fails."}`))
	})

	v, err := l.Review(context.Background(), schemas.Prompt{Text: "judge this"})
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeConfirmed, v.Outcome)
	assert.InDelta(t, 0.85, v.Confidence, 1e-9)
	assert.Equal(t, "gemini-2.5-flash", v.Reviewer)
}

func TestLiveReview_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	l := setupLive(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(geminiBody(t, `{"outcome": "false-positive", "confidence": 0.7, "rationale": "ok"}`))
	})

	v, err := l.Review(context.Background(), schemas.Prompt{Text: "p"})
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeFalsePositive, v.Outcome)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLiveReview_PermanentOn4xx(t *testing.T) {
	var calls atomic.Int32
	l := setupLive(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := l.Review(context.Background(), schemas.Prompt{Text: "p"})
	require.ErrorIs(t, err, ErrReviewerUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestLiveReview_MalformedResponse(t *testing.T) {
	l := setupLive(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiBody(t, "I would rather chat about something else."))
	})

	_, err := l.Review(context.Background(), schemas.Prompt{Text: "p"})
	require.ErrorIs(t, err, ErrReviewerMalformedResponse)
}

func TestLiveReview_UnknownOutcomeRejected(t *testing.T) {
	l := setupLive(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiBody(t, `{"outcome": "probably-fine", "confidence": 0.9, "rationale": "r"}`))
	})

	_, err := l.Review(context.Background(), schemas.Prompt{Text: "p"})
	require.ErrorIs(t, err, ErrReviewerMalformedResponse)
}

func TestLiveReview_ConfidenceClamped(t *testing.T) {
	l := setupLive(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiBody(t, `{"outcome": "confirmed", "confidence": 3.5, "rationale": "r"}`))
	})

	v, err := l.Review(context.Background(), schemas.Prompt{Text: "p"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.Confidence)
}

func TestLiveReview_SafetyBlockIsPermanent(t *testing.T) {
	var calls atomic.Int32
	l := setupLive(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, err := json.Marshal(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{}}, "finishReason": "SAFETY"},
			},
		})
		require.NoError(t, err)
		w.Write(body)
	})

	_, err := l.Review(context.Background(), schemas.Prompt{Text: "p"})
	require.ErrorIs(t, err, ErrReviewerUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLiveReview_ContextCancelled(t *testing.T) {
	l := setupLive(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write(geminiBody(t, `{"outcome": "confirmed", "confidence": 1, "rationale": "r"}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := l.Review(ctx, schemas.Prompt{Text: "p"})
	require.ErrorIs(t, err, ErrReviewerUnavailable)
}

func TestFromConfig(t *testing.T) {
	t.Run("stub", func(t *testing.T) {
		r, err := FromConfig(config.ReviewerConfig{Mode: config.ReviewerStub}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, StubName, r.Name())
	})

	t.Run("live", func(t *testing.T) {
		r, err := FromConfig(liveTestConfig(), zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, "gemini-2.5-flash", r.Name())
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := FromConfig(config.ReviewerConfig{Mode: "psychic"}, zaptest.NewLogger(t))
		require.Error(t, err)
	})
}
