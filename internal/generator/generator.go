// internal/generator/generator.go
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"content-scheduler/internal/common/errors"
	commonhttp "content-scheduler/internal/common/http"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/metrics"
)

// Request describes the content the external generation service should
// produce for a client.
type Request struct {
	ClientID string `json:"clientId"`
	Topic    string `json:"topic,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

type generateResponse struct {
	ContentRef string `json:"contentRef"`
}

// Client talks to the external content generation service. Failures are
// classified so the caller's retry policy can tell transient conditions
// (timeouts, 5xx, 429) from permanent ones.
type Client struct {
	baseURL string
	http    *commonhttp.Client
	logger  logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    commonhttp.NewClient(timeout),
		logger:  log.WithFields(map[string]interface{}{"component": "generator"}),
	}
}

// Generate requests one content piece and returns its reference.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.NewGenerationFailedError(fmt.Sprintf("encode request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewGenerationFailedError(fmt.Sprintf("build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.GenerationAttempts.WithLabelValues("timeout").Inc()
		c.logger.Warn("generation request failed", map[string]interface{}{
			"clientId": req.ClientID,
			"error":    err.Error(),
		})
		return "", errors.NewGenerationTimeoutError(err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// handled below
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		metrics.GenerationAttempts.WithLabelValues("throttled").Inc()
		return "", errors.NewGenerationThrottledError(resp.StatusCode, readBodyPrefix(resp.Body))
	default:
		metrics.GenerationAttempts.WithLabelValues("failed").Inc()
		return "", errors.NewGenerationFailedError(fmt.Sprintf("status %d: %s", resp.StatusCode, readBodyPrefix(resp.Body)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.GenerationAttempts.WithLabelValues("failed").Inc()
		return "", errors.NewGenerationFailedError(fmt.Sprintf("decode response: %v", err))
	}
	if out.ContentRef == "" {
		metrics.GenerationAttempts.WithLabelValues("failed").Inc()
		return "", errors.NewGenerationFailedError("response missing contentRef")
	}

	metrics.GenerationAttempts.WithLabelValues("success").Inc()
	return out.ContentRef, nil
}

func readBodyPrefix(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
