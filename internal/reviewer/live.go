package reviewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
	"github.com/a11yscope/a11yscope-cli/internal/config"
)

// systemPrompt pins the live capability to the verdict contract.
const systemPrompt = "You are an accessibility reviewer. " +
	"Return ONLY a compact JSON object with keys: outcome, confidence, rationale."

// Live forwards prompts to a Gemini-style generateContent endpoint and parses
// the response into the Verdict shape.
type Live struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        config.ReviewerConfig
	logger     *zap.Logger
}

// -- Gemini API request/response structures (internal to this file) --

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// NewLive initializes the live reviewer.
func NewLive(cfg config.ReviewerConfig, logger *zap.Logger) (*Live, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("reviewer API key is required for live mode")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf(
			"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Live{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		model:    cfg.Model,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		limiter: limiter,
		logger:  logger.Named("reviewer.live"),
	}, nil
}

// Name implements schemas.Reviewer.
func (l *Live) Name() string { return l.model }

// Review sends the prompt to the endpoint with retries and parses the
// structured verdict out of the response. Transport failures surface as
// ErrReviewerUnavailable, unparseable responses as
// ErrReviewerMalformedResponse; both are per-candidate and non-fatal.
func (l *Live) Review(ctx context.Context, prompt schemas.Prompt) (schemas.Verdict, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return schemas.Verdict{}, fmt.Errorf("%w: %v", ErrReviewerUnavailable, err)
	}

	raw, err := l.generate(ctx, prompt.Text)
	if err != nil {
		return schemas.Verdict{}, fmt.Errorf("%w: %v", ErrReviewerUnavailable, err)
	}

	wire, err := parseVerdictResponse(raw)
	if err != nil {
		return schemas.Verdict{}, fmt.Errorf("%w: %v", ErrReviewerMalformedResponse, err)
	}

	outcome := schemas.Outcome(wire.Outcome)
	switch outcome {
	case schemas.OutcomeConfirmed, schemas.OutcomeFalsePositive, schemas.OutcomeNeedsHumanReview:
	default:
		return schemas.Verdict{}, fmt.Errorf("%w: unknown outcome %q",
			ErrReviewerMalformedResponse, wire.Outcome)
	}

	confidence := wire.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return schemas.Verdict{
		Outcome:    outcome,
		Confidence: confidence,
		Rationale:  wire.Rationale,
		Reviewer:   l.model,
	}, nil
}

// generate performs the HTTP exchange with exponential backoff on transient
// failures.
func (l *Live) generate(ctx context.Context, userPrompt string) (string, error) {
	payload := geminiRequestPayload{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
		SystemInstruction: &geminiSystemInstruction{
			Parts: []geminiPart{{Text: systemPrompt}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      l.cfg.Temperature,
			ResponseMimeType: "application/json",
			MaxOutputTokens:  l.cfg.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 90 * time.Second
	b.MaxInterval = 15 * time.Second

	var responseContent string

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", l.apiKey)

		start := time.Now()
		resp, err := l.httpClient.Do(httpReq)
		if err != nil {
			l.logger.Warn("Network error during review request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return l.handleAPIError(resp.StatusCode, respBody)
		}

		var rp geminiResponsePayload
		if err := json.Unmarshal(respBody, &rp); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(rp.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("API returned no candidates"))
		}
		candidate := rp.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("API blocked the request (reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("API returned empty content parts (reason: %s)", candidate.FinishReason)
		}

		l.logger.Debug("Review generation complete",
			zap.Duration("duration", time.Since(start)),
			zap.Int("prompt_tokens", rp.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", rp.UsageMetadata.CandidatesTokenCount),
		)

		responseContent = candidate.Content.Parts[0].Text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

func (l *Live) handleAPIError(statusCode int, body []byte) error {
	l.logger.Error("Reviewer API returned error status",
		zap.Int("status", statusCode), zap.ByteString("response", body))
	err := fmt.Errorf("reviewer API error: status %d", statusCode)

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient, retry.
	default:
		return backoff.Permanent(err)
	}
}
