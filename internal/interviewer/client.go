package interviewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chadiek/interview-demo/internal/agent"
	"github.com/chadiek/interview-demo/internal/session"
)

// Client talks to a chat-completions compatible LLM API and shapes it into
// the interview agent contract.
type Client struct {
	HTTPClient *http.Client
	Endpoint   string
	APIKey     string
	Model      string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// stepPayload is the JSON shape the agent is instructed to answer with.
type stepPayload struct {
	Reply     string `json:"reply"`
	NextStage string `json:"next_stage"`
}

func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = "gpt-oss-120b"
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Endpoint:   "https://api.cerebras.ai/v1/chat/completions",
		APIKey:     apiKey,
		Model:      model,
	}
}

// Next implements agent.Agent: one structured interview step.
func (c *Client) Next(ctx context.Context, st session.Stage, history []session.Turn, message, submittedCode, resume string) (*agent.Step, error) {
	msgs := []chatMessage{{Role: "system", Content: systemPrompt(st, resume)}}
	for _, t := range history {
		role := "user"
		if t.Role == "ASSISTANT" {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: t.Text})
	}
	content := message
	if submittedCode != "" {
		content += "\n\nSubmitted code:\n```\n" + submittedCode + "\n```"
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: content})

	raw, err := c.complete(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return parseStep(raw), nil
}

// Scoring implements agent.Reporter.
func (c *Client) Scoring(ctx context.Context, history []session.Turn) (string, error) {
	return c.report(ctx, scoringPrompt, history)
}

// Recommendation implements agent.Reporter.
func (c *Client) Recommendation(ctx context.Context, history []session.Turn) (string, error) {
	return c.report(ctx, recommendationPrompt, history)
}

func (c *Client) report(ctx context.Context, system string, history []session.Turn) (string, error) {
	var b strings.Builder
	for _, t := range history {
		b.WriteString("[" + t.Role + "] " + t.Text + "\n")
	}
	msgs := []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: b.String()},
	}
	return c.complete(ctx, msgs)
}

func (c *Client) complete(ctx context.Context, msgs []chatMessage) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("interviewer: api key missing")
	}
	reqBody, _ := json.Marshal(chatCompletionsRequest{Model: c.Model, Messages: msgs})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("interviewer: status=%d body=%s", resp.StatusCode, string(b))
	}
	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("interviewer: empty choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// parseStep extracts the structured step from the model output. Models wrap
// JSON in code fences often enough that fences are stripped first; anything
// that still fails to parse is treated as a plain reply with no transition.
func parseStep(raw string) *agent.Step {
	txt := strings.TrimSpace(raw)
	txt = strings.TrimPrefix(txt, "```json")
	txt = strings.TrimPrefix(txt, "```")
	txt = strings.TrimSuffix(txt, "```")
	txt = strings.TrimSpace(txt)

	var p stepPayload
	if err := json.Unmarshal([]byte(txt), &p); err == nil && p.Reply != "" {
		return &agent.Step{Reply: p.Reply, NextStage: p.NextStage}
	}
	return &agent.Step{Reply: raw}
}
