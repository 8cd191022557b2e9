// Package prioritizer asks the Anthropic Messages API to rank tasks against
// free-text prioritization rules.
//
// A ranking is best effort. Every failure (transport, timeout, non-2xx,
// unusable payload) is reported as ErrUnavailable, and callers are expected
// to carry on with the priorities they already have.
package prioritizer

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

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-prioritizer/internal/model"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-20250514"
	DefaultTimeout = 30 * time.Second

	anthropicVersion = "2023-06-01"
	maxTokens        = 1024
	maxErrorBody     = 512
	toolName         = "prioritize_tasks"
	toolDescription  = "Rank the tasks according to the prioritization statement so that the most " +
		"important tasks get the lowest numbers. Return every task with its priority and a short explanation."
)

// inputSchema forces the shape {tasks: [{task_id, priority 1..10, explanation}]}.
const inputSchema = `{
	"type": "object",
	"properties": {
		"tasks": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"task_id": {"type": "integer", "description": "The ID of the task"},
					"priority": {"type": "integer", "minimum": 1, "maximum": 10, "description": "1 is the highest priority"},
					"explanation": {"type": "string", "description": "Why the task got this priority"}
				},
				"required": ["task_id", "priority", "explanation"]
			}
		}
	},
	"required": ["tasks"]
}`

var ErrUnavailable = errors.New("prioritization unavailable")

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// AnthropicClient holds no mutable state and is safe for concurrent use.
type AnthropicClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

type messagesRequest struct {
	Model      string     `json:"model"`
	MaxTokens  int        `json:"max_tokens"`
	Messages   []message  `json:"messages"`
	Tools      []tool     `json:"tools"`
	ToolChoice toolChoice `json:"tool_choice"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type messagesResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type rankingInput struct {
	Tasks *[]model.TaskPriority `json:"tasks"`
}

func NewAnthropicClient(cfg Config, logger *zap.Logger) *AnthropicClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &AnthropicClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		now:     time.Now,
	}
}

// Rank issues a single ranking request for the tasks that are not completed.
// The response may omit tasks, repeat priorities or leave the 1..10 range.
// tasks is never modified.
func (c *AnthropicClient) Rank(ctx context.Context, tasks []model.Task, rules []string) ([]model.TaskPriority, error) {
	rankable := 0
	for _, t := range tasks {
		if t.Rankable() {
			rankable++
		}
	}
	if rankable == 0 {
		return nil, nil
	}

	c.logger.Info("requesting task prioritization",
		zap.Int("tasks", rankable),
		zap.Int("rules", len(rules)),
	)

	ranked, err := c.rank(ctx, BuildPrompt(tasks, rules, c.now()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	for _, p := range ranked {
		c.logger.Debug("task ranked",
			zap.Int64("task_id", p.TaskID),
			zap.Int("priority", p.Priority),
			zap.String("explanation", p.Explanation),
		)
	}
	return ranked, nil
}

func (c *AnthropicClient) rank(ctx context.Context, prompt string) ([]model.TaskPriority, error) {
	if c.apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not set")
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
		Tools: []tool{{
			Name:        toolName,
			Description: toolDescription,
			InputSchema: json.RawMessage(inputSchema),
		}},
		ToolChoice: toolChoice{Type: "tool", Name: toolName},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, fmt.Errorf("anthropic api error (%d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp messagesResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	for _, block := range apiResp.Content {
		if block.Type != "tool_use" || block.Name != toolName {
			continue
		}
		var in rankingInput
		if err := json.Unmarshal(block.Input, &in); err != nil {
			return nil, fmt.Errorf("decode tool input: %w", err)
		}
		if in.Tasks == nil {
			return nil, fmt.Errorf("tool input has no tasks")
		}
		return *in.Tasks, nil
	}

	return nil, fmt.Errorf("no %s tool call in response (stop_reason %q)", toolName, apiResp.StopReason)
}
