package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"moderation/internal/metrics"
	"moderation/internal/models"
)

// Client talks to the semantic retrieval service that indexes the safety
// corpus. Layer 2 is advisory context, not a gate: reranker failure degrades
// to the coarse-ranked list, and callers are expected to degrade to empty
// context when retrieval itself fails.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new retrieval service client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type searchRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k"`
	MinScore float64 `json:"min_score"`
	Status   string  `json:"status"`
}

// passageList absorbs the retrieval service's habit of returning a single
// object instead of a one-element array for single-hit queries. The
// ambiguity is resolved here and never reaches the engine.
type passageList []models.ContextPassage

func (p *passageList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single models.ContextPassage
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*p = passageList{single}
		return nil
	}
	var many []models.ContextPassage
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return err
	}
	*p = passageList(many)
	return nil
}

type searchResponse struct {
	Passages passageList `json:"passages"`
}

type rerankRequest struct {
	Query    string                  `json:"query"`
	Passages []models.ContextPassage `json:"passages"`
}

type rerankResponse struct {
	Passages passageList `json:"passages"`
}

// Retrieve fetches the top-K most similar active safety-corpus passages
// above minScore.
func (c *Client) Retrieve(ctx context.Context, query string, topK int, minScore float64) ([]models.ContextPassage, error) {
	reqBody := searchRequest{
		Query:    query,
		TopK:     topK,
		MinScore: minScore,
		Status:   "active",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/search", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retrieval service returned status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Passages, nil
}

// Rerank runs the retrieved passages through the secondary scorer.
func (c *Client) Rerank(ctx context.Context, query string, passages []models.ContextPassage) ([]models.ContextPassage, error) {
	reqBody := rerankRequest{
		Query:    query,
		Passages: passages,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/rerank", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank service returned status %d", resp.StatusCode)
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Passages, nil
}

// RetrieveContext fetches layer-2 context for a redacted query. The result
// is ordered best-first and bounded by topK to cap prompt growth. A rerank
// failure falls back to the coarse-ranked list; only a retrieval failure is
// surfaced to the caller.
func (c *Client) RetrieveContext(ctx context.Context, query string, topK int, minScore float64) ([]models.ContextPassage, error) {
	passages, err := c.Retrieve(ctx, query, topK, minScore)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return passages, nil
	}

	reranked, err := c.Rerank(ctx, query, passages)
	if err != nil {
		c.logger.Warn("Reranker failed, falling back to coarse ranking", zap.Error(err))
		metrics.RetrievalDegraded.Inc()
		reranked = passages
	}

	if len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, nil
}
