package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/foliolab/enrich/internal/apperrors"
	"github.com/foliolab/enrich/internal/logging"
)

// OllamaProvider is the last-resort local fallback, used when neither
// OpenAI nor Claude is reachable. There is no official Go SDK for
// Ollama, so this talks to its HTTP API directly with net/http.
type OllamaProvider struct {
	baseURL string
	model   string
	policy  RetryPolicy
	log     *logging.Logger
	httpc   *http.Client
}

func NewOllamaProvider(baseURL, model string, policy RetryPolicy) *OllamaProvider {
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		policy:  policy,
		log:     logging.New("OLLAMA"),
		httpc:   &http.Client{},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	err := withRetry(ctx, p.log, p.policy, func() error {
		messages := []ollamaChatMessage{}
		if req.SystemPrompt != "" {
			messages = append(messages, ollamaChatMessage{Role: "system", Content: req.SystemPrompt})
		}
		messages = append(messages, ollamaChatMessage{Role: "user", Content: req.UserPrompt})

		body, err := json.Marshal(ollamaChatRequest{Model: p.model, Messages: messages, Stream: false})
		if err != nil {
			return apperrors.NewFatalError("ollama", "failed to encode request", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return apperrors.NewFatalError("ollama", "failed to build request", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := p.httpc.Do(httpReq)
		if err != nil {
			return apperrors.NewTransientDependencyError("ollama", "request failed", err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests {
			return apperrors.NewTransientDependencyError("ollama", fmt.Sprintf("status %d", httpResp.StatusCode), nil)
		}
		if httpResp.StatusCode != http.StatusOK {
			return apperrors.NewFatalError("ollama", fmt.Sprintf("status %d", httpResp.StatusCode), nil)
		}

		var parsed ollamaChatResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
			return apperrors.NewSchemaError("ollama", "malformed response body", err)
		}
		resp = &Response{Text: parsed.Message.Content, Provider: p.Name()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
