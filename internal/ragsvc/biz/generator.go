package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/ragsvc/internal/ragsvc/metrics"
	"github.com/kart-io/ragsvc/internal/ragsvc/store"
	"github.com/kart-io/ragsvc/pkg/llm"
)

// systemPrompt frames the assistant role for answer generation.
const systemPrompt = "You are a helpful assistant that answers questions based on the provided context."

// promptTemplate instructs the model to answer strictly from the
// supplied context.
const promptTemplate = `Context information is below:
%s

Given the context information and no prior knowledge, answer the following question:
%s

Only if the answer cannot be found in the context, say "I don't have enough information to answer this question." Try to give as much info as possible, with proper line breaks according to the meaning.`

// Generator produces an answer from a question and its retrieved context.
type Generator struct {
	chat    llm.ChatProvider
	metrics *metrics.RAGMetrics
}

// NewGenerator creates a Generator.
func NewGenerator(chat llm.ChatProvider) *Generator {
	return &Generator{
		chat:    chat,
		metrics: metrics.GetRAGMetrics(),
	}
}

// Generate answers the question grounded on the given chunks.
func (g *Generator) Generate(ctx context.Context, question string, chunks []store.ScoredChunk) (string, error) {
	prompt := buildPrompt(question, chunks)

	started := time.Now()
	answer, err := g.chat.Generate(ctx, prompt, systemPrompt)
	g.metrics.RecordGeneration(time.Since(started), err)
	if err != nil {
		return "", err
	}
	return answer, nil
}

// buildPrompt joins the chunk contents into a context block and fills
// the prompt template.
func buildPrompt(question string, chunks []store.ScoredChunk) string {
	contents := make([]string, len(chunks))
	for i, chunk := range chunks {
		contents[i] = chunk.Chunk
	}
	context := strings.Join(contents, "\n\n")

	return fmt.Sprintf(promptTemplate, context, question)
}
