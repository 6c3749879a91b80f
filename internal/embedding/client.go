// Package embedding calls an OpenAI-compatible embeddings endpoint.
package embedding

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

	"curation-service/internal/apperr"
)

const defaultTimeout = 20 * time.Second

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// New returns nil when apiKey is empty. Callers must not store a nil *Client in
// an interface; search then reports the service as unconfigured.
func New(baseURL, apiKey, model string, httpClient *http.Client) *Client {
	if apiKey == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("embeddings http %d: %s", e.StatusCode, e.Body)
}

// Embed returns the vector for one text. Failures are UpstreamErrors: 429,
// 5xx and network errors are transient, other statuses are not.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Model: c.model, Input: []string{text}})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Upstream("embedding request could not be built", false, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream("embedding service unreachable", isTransportTransient(err), err)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	_ = resp.Body.Close()
	if err != nil {
		return nil, apperr.Upstream("embedding response unreadable", true, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &httpError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, apperr.Upstream("embedding service rejected the request", transient, herr)
	}

	var out embeddingsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.Upstream("embedding response malformed", false, err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, apperr.Upstream("embedding response empty", false, nil)
	}

	vec := make([]float32, len(out.Data[0].Embedding))
	for i, f := range out.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}

// isTransportTransient treats every transport failure as retry-safe except a
// caller that went away.
func isTransportTransient(err error) bool {
	return !errors.Is(err, context.Canceled)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
