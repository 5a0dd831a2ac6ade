// Package llm provides the language-model abstraction every stage that
// needs LM judgment (Concept Proposer, Reranker, Branch Judge,
// Document-Type Classifier, Dependency Relation Extractor, Metadata
// Synthesizer) calls through, plus the three-provider fallback chain
// (OpenAI primary, Claude fallback, Ollama local fallback).
package llm

import (
	"context"
	"time"
)

// Request is one completion call. Schema, when set, is a JSON Schema
// the caller expects the response to validate against; providers that
// support structured output enforce it server-side, others rely on
// prompt instructions and the caller's own parse-and-retry.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Schema       map[string]interface{}
	MaxTokens    int
	Temperature  float64
	// Task is a pass-through routing key ("concept_proposer",
	// "rerank", ...) the chain may use to prefer a provider for this
	// call. Empty means default provider order.
	Task string
}

// Response is one completion result.
type Response struct {
	Text     string
	Provider string
}

// Provider is a single language-model backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// Embedder produces a dense vector for a string, used to populate and
// query the embedding index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetryPolicy controls the exponential backoff applied around
// transient failures (rate limits, timeouts, connection resets).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second}
}
