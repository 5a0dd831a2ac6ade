package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/foliolab/enrich/internal/logging"
)

// ClaudeProvider is the fallback LM backend used when OpenAI is
// unavailable or exhausts its retries.
type ClaudeProvider struct {
	client *anthropic.Client
	model  string
	policy RetryPolicy
	log    *logging.Logger
}

func NewClaudeProvider(apiKey, model string, policy RetryPolicy) *ClaudeProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeProvider{client: &client, model: model, policy: policy, log: logging.New("CLAUDE")}
}

func (p *ClaudeProvider) Name() string { return "claude" }

func (p *ClaudeProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	err := withRetry(ctx, p.log, p.policy, func() error {
		maxTokens := int64(req.MaxTokens)
		if maxTokens <= 0 {
			maxTokens = 1024
		}
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(p.model),
			MaxTokens: maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
			},
		}
		if req.SystemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
		}
		msg, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return err
		}
		text := ""
		for _, block := range msg.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}
		resp = &Response{Text: text, Provider: p.Name()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
