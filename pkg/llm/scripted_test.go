package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatstream/pkg/models"
)

func TestScriptedStreamEchoes(t *testing.T) {
	p := &Scripted{}
	chunks, err := p.Stream(context.Background(), ChatRequest{
		Messages: []models.Message{
			{Role: models.RoleUser, Parts: []models.Part{models.TextPart("hello there")}},
		},
	})
	require.NoError(t, err)

	var b strings.Builder
	for ch := range chunks {
		require.NoError(t, ch.Err)
		b.WriteString(ch.Text)
	}
	require.Equal(t, "You said: hello there", b.String())
}

func TestScriptedStreamCancel(t *testing.T) {
	p := &Scripted{Reply: strings.Repeat("word ", 100), ChunkDelay: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chunks, err := p.Stream(ctx, ChatRequest{})
	require.NoError(t, err)

	n := 0
	for ch := range chunks {
		if ch.Err != nil {
			require.ErrorIs(t, ch.Err, context.Canceled)
			break
		}
		n++
		if n == 3 {
			cancel()
		}
	}
	require.Less(t, n, 100)
}

func TestScriptedEmbedDeterministic(t *testing.T) {
	p := &Scripted{Dim: 4}
	a, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"alpha", "beta"}})
	require.NoError(t, err)
	require.Len(t, a.Vectors, 2)
	require.Len(t, a.Vectors[0], 4)
	require.NotEqual(t, a.Vectors[0], a.Vectors[1])

	b, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"alpha"}})
	require.NoError(t, err)
	require.Equal(t, a.Vectors[0], b.Vectors[0])
}
