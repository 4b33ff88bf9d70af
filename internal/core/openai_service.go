package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIChatModel      = "gpt-4o-mini"
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"

	openAIBatchSize = 100
)

// OpenAIService embeds and generates through any OpenAI compatible endpoint.
type OpenAIService struct {
	client         *openai.Client
	embeddingModel string
}

// NewOpenAIService targets endpoint as the API base URL (for example https://api.openai.com/v1).
func NewOpenAIService(apiKey, endpoint, embeddingModel string) *OpenAIService {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	if embeddingModel == "" {
		embeddingModel = DefaultOpenAIEmbeddingModel
	}
	return &OpenAIService{client: openai.NewClientWithConfig(cfg), embeddingModel: embeddingModel}
}

func (s *OpenAIService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIBatchSize {
		end := min(start+openAIBatchSize, len(texts))
		vectors, err := s.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (s *OpenAIService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *OpenAIService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(s.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", classifyOpenAIError(err))
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Generate maps the sampling parameters onto a chat completion. top_k and
// min_new_tokens have no equivalent; repetition penalty becomes a frequency
// penalty offset so that 1.0 means none.
func (s *OpenAIService) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	p := req.Params
	// The request drops a zero temperature, letting the server pick its default.
	temperature := float32(p.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature:      temperature,
		TopP:             float32(p.TopP),
		MaxTokens:        p.MaxNewTokens,
		FrequencyPenalty: float32(p.RepetitionPenalty - 1),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", classifyOpenAIError(err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response had no choices")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", wrapAs(ErrRefused, fmt.Errorf("completion stopped by content filter"))
	}
	return choice.Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if classified, ok := classifyStatus(apiErr.HTTPStatusCode, err); ok {
			return classified
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if classified, ok := classifyStatus(reqErr.HTTPStatusCode, err); ok {
			return classified
		}
	}
	return classifyTransport(err)
}
