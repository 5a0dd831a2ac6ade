package llm

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/foliolab/enrich/internal/logging"
)

// OpenAIProvider is the primary LM backend, wrapping the official
// SDK client with the shared retry policy.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	policy RetryPolicy
	log    *logging.Logger
}

func NewOpenAIProvider(apiKey, model string, policy RetryPolicy) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{client: &client, model: model, policy: policy, log: logging.New("OPENAI")}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	err := withRetry(ctx, p.log, p.policy, func() error {
		messages := []openai.ChatCompletionMessageParamUnion{}
		if req.SystemPrompt != "" {
			messages = append(messages, openai.SystemMessage(req.SystemPrompt))
		}
		messages = append(messages, openai.UserMessage(req.UserPrompt))

		params := openai.ChatCompletionNewParams{
			Model:    p.model,
			Messages: messages,
		}
		if req.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(req.MaxTokens))
		}
		if req.Temperature > 0 {
			params.Temperature = openai.Float(req.Temperature)
		}

		completion, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return err
		}
		if len(completion.Choices) == 0 {
			resp = &Response{Text: "", Provider: p.Name()}
			return nil
		}
		resp = &Response{Text: completion.Choices[0].Message.Content, Provider: p.Name()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Embed generates an embedding vector using OpenAI's embeddings API,
// satisfying the Embedder interface the embedding index populator
// calls through.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := withRetry(ctx, p.log, p.policy, func() error {
		resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: openai.EmbeddingModelTextEmbedding3Small,
			Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return nil
		}
		vec := make([]float32, len(resp.Data[0].Embedding))
		for i, v := range resp.Data[0].Embedding {
			vec[i] = float32(v)
		}
		out = vec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
