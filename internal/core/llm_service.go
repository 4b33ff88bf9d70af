package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/yaoapp/kun/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

const (
	DefaultGeminiChatModel      = "gemini-1.5-flash-latest"
	DefaultGeminiEmbeddingModel = "text-embedding-004"

	geminiBatchSize = 100
)

// GeminiService embeds and generates through the Gemini API.
type GeminiService struct {
	client         *genai.Client
	embeddingModel string
}

func NewGeminiService(ctx context.Context, apiKey, endpoint, embeddingModel string) (*GeminiService, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if embeddingModel == "" {
		embeddingModel = DefaultGeminiEmbeddingModel
	}
	return &GeminiService{client: client, embeddingModel: embeddingModel}, nil
}

func (s *GeminiService) Close() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		log.Error("Error closing GenAI client: %v", err)
		return
	}
	log.Info("GenAI client closed.")
}

func (s *GeminiService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	em := s.client.EmbeddingModel(s.embeddingModel)
	em.TaskType = genai.TaskTypeRetrievalDocument

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchSize {
		end := min(start+geminiBatchSize, len(texts))
		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		res, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embedding request failed: %w", classifyGeminiError(err))
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), end-start)
		}
		for _, e := range res.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

func (s *GeminiService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(s.embeddingModel)
	em.TaskType = genai.TaskTypeRetrievalQuery
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", classifyGeminiError(err))
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

// Generate runs one prompt. A fresh model handle carries the request's sampling parameters;
// repetition penalty and min_new_tokens have no Gemini equivalent.
func (s *GeminiService) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	p := req.Params
	model := s.client.GenerativeModel(p.Model)
	model.SetTemperature(float32(p.Temperature))
	model.SetTopK(int32(p.TopK))
	model.SetTopP(float32(p.TopP))
	model.SetMaxOutputTokens(int32(p.MaxNewTokens))

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", classifyGeminiError(err))
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini response had no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			log.Debug("Gemini response part was not text: %T", part)
		}
	}
	return text.String(), nil
}

func classifyGeminiError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return wrapAs(ErrRefused, err)
	}
	if apiErr, ok := apierror.FromError(err); ok {
		if apiErr.Reason() == "API_KEY_INVALID" {
			return wrapAs(ErrAuth, err)
		}
		if classified, ok := classifyStatus(apiErr.HTTPCode(), err); ok {
			return classified
		}
		switch apiErr.GRPCStatus().Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return wrapAs(ErrAuth, err)
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
			return wrapAs(ErrTransport, err)
		}
	}
	return classifyTransport(err)
}
