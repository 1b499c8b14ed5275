package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"chatstream/pkg/config"
	"chatstream/pkg/logger"
	"chatstream/pkg/models"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultEmbedModel = "text-embedding-3-small"
)

// OpenAI is the production provider. The API key comes from
// OPENAI_API_KEY; it is never read from config files.
type OpenAI struct {
	client     *openai.Client
	model      string
	embedModel string
}

// NewOpenAI builds the provider from LLM config. Outbound calls go through
// the instrumented transport.
func NewOpenAI(cfg config.LLMConfig) (*OpenAI, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	opts := []option.RequestOption{option.WithHTTPClient(HTTPClient())}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}
	return &OpenAI{
		client:     openai.NewClient(opts...),
		model:      model,
		embedModel: embedModel,
	}, nil
}

func (p *OpenAI) Name() string { return "openai" }

// Stream issues a streaming chat completion, forwarding text deltas as
// they arrive.
func (p *OpenAI) Stream(ctx context.Context, req ChatRequest) (<-chan Chunk, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		msgs = append(msgs, openai.SystemMessage(req.Instructions))
	}
	for _, m := range req.Messages {
		text := m.Text()
		if text == "" {
			continue
		}
		switch m.Role {
		case models.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(text))
		case models.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(text))
		default:
			msgs = append(msgs, openai.UserMessage(text))
		}
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no usable messages in request")
	}

	sse := p.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.F(model),
		Messages: openai.F(msgs),
	})

	out := make(chan Chunk, 16)
	go func() {
		defer close(out)
		defer sse.Close()
		var acc openai.ChatCompletionAccumulator
		for sse.Next() {
			chunk := sse.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) > 0 {
				if delta := chunk.Choices[0].Delta.Content; delta != "" {
					select {
					case out <- Chunk{Text: delta}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		if err := sse.Err(); err != nil {
			logger.Warn("openai_stream_failed", "model", model, "error", err)
			out <- Chunk{Err: err}
			return
		}
		logger.Debug("openai_stream_done", "model", model, "choices", len(acc.Choices))
	}()
	return out, nil
}

// Embed returns one vector per input.
func (p *OpenAI) Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
	model := req.Model
	if model == "" {
		model = p.embedModel
	}
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:          openai.F(model),
		Input:          openai.F[openai.EmbeddingNewParamsInputUnion](openai.EmbeddingNewParamsInputArrayOfStrings(req.Inputs)),
		EncodingFormat: openai.F(openai.EmbeddingNewParamsEncodingFormatFloat),
	})
	if err != nil {
		return EmbedResponse{}, err
	}
	vectors := make([][]float64, len(resp.Data))
	for _, d := range resp.Data {
		if int(d.Index) < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return EmbedResponse{
		Model:   resp.Model,
		Vectors: vectors,
		Usage:   resp.Usage.TotalTokens,
	}, nil
}
