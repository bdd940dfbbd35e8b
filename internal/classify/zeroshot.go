package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ZeroShotConfig configures the hosted zero-shot scoring client.
type ZeroShotConfig struct {
	// BaseURL is the full inference endpoint for the zero-shot model.
	BaseURL string
	// APIKey, when set, is sent as a bearer token.
	APIKey string
	// Timeout bounds a single Score call including retries. Default 30s.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after a retryable
	// failure (429, 5xx, transport error). Default 2.
	MaxRetries int
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// ZeroShot scores text against candidate labels via a hosted
// zero-shot-classification endpoint speaking the common JSON contract:
// {"inputs": text, "parameters": {"candidate_labels": [...]}} in,
// {"labels": [...], "scores": [...]} out.
type ZeroShot struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

// HTTPError is a non-2xx reply from the scoring endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := http.StatusText(e.StatusCode)
	if msg == "" {
		msg = "http error"
	}
	return fmt.Sprintf("zero-shot endpoint: status=%d %s", e.StatusCode, msg)
}

// NewZeroShot builds the client. BaseURL is required.
func NewZeroShot(cfg ZeroShotConfig) (*ZeroShot, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("classify: zero-shot base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	if cfg.MaxRetries == 0 {
		maxRetries = 2
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &ZeroShot{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    timeout,
		maxRetries: maxRetries,
		httpClient: hc,
	}, nil
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Score implements Scorer. Retryable failures back off and retry up to the
// configured budget; anything else surfaces immediately.
func (z *ZeroShot) Score(ctx context.Context, text string, labels []string) ([]LabelScore, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels},
	}); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, z.timeout)
	defer cancel()

	var lastErr error
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt <= z.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.baseURL, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if z.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+z.apiKey)
		}

		resp, err := z.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, readErr
			}
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return decodeScores(raw, len(labels))
			}
			lastErr = &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
			if !retryableStatus(resp.StatusCode) {
				return nil, lastErr
			}
		}

		if attempt < z.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func decodeScores(raw []byte, wantLabels int) ([]LabelScore, error) {
	var resp zeroShotResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("zero-shot response: %w", err)
	}
	if len(resp.Labels) != len(resp.Scores) {
		return nil, fmt.Errorf("zero-shot response: %d labels with %d scores", len(resp.Labels), len(resp.Scores))
	}
	if len(resp.Labels) != wantLabels {
		return nil, fmt.Errorf("zero-shot response: got %d labels, want %d", len(resp.Labels), wantLabels)
	}
	scores := make([]LabelScore, len(resp.Labels))
	for i := range resp.Labels {
		scores[i] = LabelScore{Label: resp.Labels[i], Score: resp.Scores[i]}
	}
	return scores, nil
}
