package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"moderation/internal/engine"
	"moderation/internal/metrics"
	"moderation/internal/models"
)

// SystemPrompt is the fixed instruction block sent with every classification
// call. The exporter reuses it so training rows reproduce the exact prompt
// the model saw.
const SystemPrompt = `You are a content-safety classifier for user comments on a mental-health community platform. Assess whether the comment indicates crisis or self-harm risk. Use the reference passages, when present, to ground your assessment. Respond with a single JSON object and nothing else: {"risk_level": "Safe" | "High_Risk" | "Uncertain", "confidence": <number between 0 and 1>, "reason": "<short explanation>"}`

// Client talks to the external classification provider's chat completion
// gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new classifier client.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			// Per-call deadline comes from the settings snapshot; this is a
			// hard ceiling in case settings carry an absurd timeout.
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

type chatRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// BuildUserPrompt assembles the user message from redacted content and
// layer-2 context. Exported for the exporter, which must emit the same
// prompt shape.
func BuildUserPrompt(content string, passages []models.ContextPassage) string {
	var b strings.Builder
	if len(passages) > 0 {
		b.WriteString("Reference passages:\n")
		for i, p := range passages {
			fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, p.Label, p.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("Comment:\n")
	b.WriteString(content)
	return b.String()
}

// Classify sends one classification call for redacted content plus layer-2
// context and parses the fixed output schema. Any timeout, network error,
// bad status, or unparsable response is recovered as a nil result, the
// fail-closed sentinel the decision engine holds on. Latency is always
// returned, including for failed calls. Exactly one outbound call per
// invocation; retries belong to the caller and must produce a new
// assessment.
func (c *Client) Classify(ctx context.Context, content string, passages []models.ContextPassage, modelID string, timeout time.Duration) (*engine.ClassifierResult, int64) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result := c.classify(ctx, content, passages, modelID)
	latency := time.Since(start)

	metrics.ClassifierLatency.Observe(latency.Seconds())
	if result == nil {
		metrics.ClassifierFailures.Inc()
	}
	return result, latency.Milliseconds()
}

func (c *Client) classify(ctx context.Context, content string, passages []models.ContextPassage, modelID string) *engine.ClassifierResult {
	reqBody := chatRequest{
		Model: modelID,
		Messages: []models.ChatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: BuildUserPrompt(content, passages)},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		c.logger.Error("Failed to marshal classifier request", zap.Error(err))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		c.logger.Error("Failed to create classifier request", zap.Error(err))
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Classifier call failed", zap.Error(err), zap.String("model_id", modelID))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Classifier returned non-OK status", zap.Int("status", resp.StatusCode), zap.String("model_id", modelID))
		return nil
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		c.logger.Warn("Failed to decode classifier response", zap.Error(err))
		return nil
	}
	if len(chat.Choices) == 0 {
		c.logger.Warn("Classifier response carried no choices", zap.String("model_id", modelID))
		return nil
	}

	return ParseClassifierOutput(chat.Choices[0].Message.Content, c.logger)
}

// ParseClassifierOutput parses and validates the fixed classifier schema.
// Returns nil for anything that does not strictly match it.
func ParseClassifierOutput(raw string, logger *zap.Logger) *engine.ClassifierResult {
	// Some models wrap JSON output in markdown fences despite instructions.
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var result engine.ClassifierResult
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
		logger.Warn("Classifier output is not valid JSON", zap.Error(err))
		return nil
	}

	switch result.RiskLevel {
	case engine.RiskSafe, engine.RiskHigh, engine.RiskUncertain:
	default:
		logger.Warn("Classifier output carried unknown risk level", zap.String("risk_level", string(result.RiskLevel)))
		return nil
	}

	if result.Confidence < 0 || result.Confidence > 1 {
		logger.Warn("Classifier output carried out-of-range confidence", zap.Float64("confidence", result.Confidence))
		return nil
	}

	return &result
}
