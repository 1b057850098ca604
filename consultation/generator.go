package consultation

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/medrounds/med-consult-api/config"
)

// Generator invokes the external text generation service with a role-specific
// system instruction and returns free text. Any failure is returned as a
// *GenerationError and must be treated as recoverable by callers.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (string, error)
}

// OpenAIGenerator is the production Generator over the OpenAI chat completion API
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator builds a generator from the project config. An empty
// model falls back to gpt-3.5-turbo, matching the consultation product tier.
func NewOpenAIGenerator(conf *config.Config) *OpenAIGenerator {
	clientConfig := openai.DefaultConfig(conf.OpenAIKey)
	if conf.OpenAIBaseURL != "" {
		clientConfig.BaseURL = conf.OpenAIBaseURL
	}
	model := conf.OpenAIModel
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

// Generate runs a single chat completion with the given system instruction
func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", &GenerationError{Op: "completion", Cause: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &GenerationError{Op: "completion", Cause: errEmptyCompletion}
	}
	return resp.Choices[0].Message.Content, nil
}

var errEmptyCompletion = &emptyCompletionError{}

type emptyCompletionError struct{}

func (*emptyCompletionError) Error() string { return "empty completion response" }
