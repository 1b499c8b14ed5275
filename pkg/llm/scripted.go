package llm

import (
	"context"
	"hash/fnv"
	"strings"
	"time"
)

// Scripted is a deterministic provider for tests and local development.
// It echoes a canned reply word by word and produces stable pseudo
// embeddings, so streaming and resumption paths can be exercised without
// network access.
type Scripted struct {
	// Reply overrides the generated text; empty uses a default built from
	// the last user message.
	Reply string
	// ChunkDelay paces the stream; zero emits as fast as the consumer reads.
	ChunkDelay time.Duration
	// Dim is the embedding dimensionality; zero defaults to 8.
	Dim int
}

func (p *Scripted) Name() string { return "scripted" }

func (p *Scripted) Stream(ctx context.Context, req ChatRequest) (<-chan Chunk, error) {
	reply := p.Reply
	if reply == "" {
		last := ""
		for _, m := range req.Messages {
			if t := m.Text(); t != "" {
				last = t
			}
		}
		reply = "You said: " + last
	}
	words := strings.Fields(reply)
	out := make(chan Chunk, len(words))
	go func() {
		defer close(out)
		for i, w := range words {
			if i > 0 {
				w = " " + w
			}
			if p.ChunkDelay > 0 {
				select {
				case <-time.After(p.ChunkDelay):
				case <-ctx.Done():
					out <- Chunk{Err: ctx.Err()}
					return
				}
			}
			select {
			case out <- Chunk{Text: w}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *Scripted) Embed(_ context.Context, req EmbedRequest) (EmbedResponse, error) {
	dim := p.Dim
	if dim <= 0 {
		dim = 8
	}
	vectors := make([][]float64, len(req.Inputs))
	for i, in := range req.Inputs {
		v := make([]float64, dim)
		h := fnv.New64a()
		h.Write([]byte(in))
		seed := h.Sum64()
		for j := range v {
			seed = seed*6364136223846793005 + 1442695040888963407
			v[j] = float64(int64(seed>>11)) / float64(1<<52)
		}
		vectors[i] = v
	}
	model := req.Model
	if model == "" {
		model = "scripted-embed"
	}
	return EmbedResponse{Model: model, Vectors: vectors, Usage: int64(len(req.Inputs))}, nil
}
