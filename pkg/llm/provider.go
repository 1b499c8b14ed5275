package llm

import (
	"context"

	"chatstream/pkg/models"
)

// ChatRequest asks a provider to continue a conversation.
type ChatRequest struct {
	Model        string
	Instructions string
	Messages     []models.Message
}

// Chunk is one piece of streamed provider output. Err, when set, ends the
// stream; the channel is closed after the final chunk either way.
type Chunk struct {
	Text string
	Err  error
}

// EmbedRequest asks a provider to embed one or more inputs.
type EmbedRequest struct {
	Model  string
	Inputs []string
}

// EmbedResponse carries one vector per input, in order.
type EmbedResponse struct {
	Model   string
	Vectors [][]float64
	Usage   int64
}

// Provider generates text and embeddings. Stream returns a channel of
// chunks; cancellation of ctx aborts the underlying call.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req ChatRequest) (<-chan Chunk, error)
	Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error)
}
