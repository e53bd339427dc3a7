// Package summarize turns transcripts into structured Markdown summaries
// via the chat-completion API, chunking oversized documents and writing
// front-matter-tagged output files.
package summarize

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/avern/wikiscribe/internal/apierr"
)

// Generator produces markdown from an instruction and a content payload.
type Generator interface {
	Generate(ctx context.Context, instruction, content string) (string, error)
}

// chatCompleter is the slice of the OpenAI client we use.
// *openai.Client implements this implicitly; tests inject mocks.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Generator     = (*OpenAIGenerator)(nil)
	_ chatCompleter = (*openai.Client)(nil)
)

// Generation defaults.
const (
	defaultModel       = openai.GPT4oMini
	defaultTemperature = 0.3
	defaultMaxTokens   = 4096
)

// OpenAIGenerator generates markdown using OpenAI's chat completion API.
type OpenAIGenerator struct {
	client      chatCompleter
	model       string
	temperature float32
	maxTokens   int
}

// GeneratorOption configures an OpenAIGenerator.
type GeneratorOption func(*OpenAIGenerator)

// WithGeneratorModel sets the completion model.
func WithGeneratorModel(model string) GeneratorOption {
	return func(g *OpenAIGenerator) {
		g.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GeneratorOption {
	return func(g *OpenAIGenerator) {
		g.temperature = t
	}
}

// withCompleter sets a custom chat completer (for testing).
func withCompleter(c chatCompleter) GeneratorOption {
	return func(g *OpenAIGenerator) {
		g.client = c
	}
}

// NewOpenAIGenerator creates an OpenAIGenerator around the given client.
func NewOpenAIGenerator(client *openai.Client, opts ...GeneratorOption) *OpenAIGenerator {
	g := &OpenAIGenerator{
		client:      client,
		model:       defaultModel,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate sends one system+user completion request. Errors are classified
// into apierr sentinels; retry policy belongs to the caller.
func (g *OpenAIGenerator) Generate(ctx context.Context, instruction, content string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", apierr.Classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from generation API")
	}
	return resp.Choices[0].Message.Content, nil
}
