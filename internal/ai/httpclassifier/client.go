// Package httpclassifier talks to an external text moderation service over HTTP.
package httpclassifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/ai"
	"github.com/spigell/offer-matcher/internal/logger"
)

// concurrentClassifications is the number of parallel requests ClassifyBatch issues
const concurrentClassifications = 5

const defaultTimeout = 30 * time.Second

// Client is an HTTP client for the moderation service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClassifyRequest is the request body for classification
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyResponse is the response from classification. Absent scores decode as nil.
type ClassifyResponse struct {
	Toxicity       *float64 `json:"toxicity"`
	Insult         *float64 `json:"insult"`
	Threat         *float64 `json:"threat"`
	IdentityAttack *float64 `json:"identity_attack"`
}

var _ ai.BatchClassifier = (*Client)(nil)

// HealthResponse is the response from health check
type HealthResponse struct {
	Status string `json:"status"`
}

// New creates a new classifier client
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithCommonFields(log, "http", ""),
	}
}

// Health checks if the moderation service is running
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to moderation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &health, nil
}

// EnsureRunning returns an error naming the service URL when it is unreachable
func (c *Client) EnsureRunning(ctx context.Context) error {
	health, err := c.Health(ctx)
	if err == nil && health.Status == "ok" {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("unexpected status %q", health.Status)
	}
	return fmt.Errorf("moderation service not available at %s: %w", c.baseURL, err)
}

// Classify sends text to the moderation service and returns its four scores.
func (c *Client) Classify(ctx context.Context, text string) (*ai.RiskScores, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text to classify is empty")
	}

	body, err := json.Marshal(ClassifyRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("classification failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("classification received", zap.Duration("took", time.Since(started)))

	return result.scores()
}

func (r ClassifyResponse) scores() (*ai.RiskScores, error) {
	var missing []string
	get := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return min(1, max(0, *v))
	}

	scores := &ai.RiskScores{
		Toxicity:       get("toxicity", r.Toxicity),
		Insult:         get("insult", r.Insult),
		Threat:         get("threat", r.Threat),
		IdentityAttack: get("identity_attack", r.IdentityAttack),
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("classification response is missing scores: %s", strings.Join(missing, ", "))
	}
	return scores, nil
}

// ClassifyBatch classifies texts in parallel. Results keep the input order.
func (c *Client) ClassifyBatch(ctx context.Context, texts []string) []ai.BatchResult {
	results := make([]ai.BatchResult, len(texts))
	resultChan := make(chan ai.BatchResult, len(texts))

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrentClassifications)

	for i, text := range texts {
		wg.Add(1)
		go func(index int, text string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultChan <- ai.BatchResult{Index: index, Error: ctx.Err()}
				return
			}

			scores, err := c.Classify(ctx, text)
			resultChan <- ai.BatchResult{Index: index, Scores: scores, Error: err}
		}(i, text)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for r := range resultChan {
		results[r.Index] = r
	}

	return results
}
