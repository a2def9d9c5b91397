package rag

import (
	"context"
	"fmt"
	"strings"
)

// synthesize builds the grounding context from the final ranked results
// and asks the answer model for a cited response. The grounding contract
// (answer only from context, cite sources, admit insufficiency) is
// enforced by prompt instruction; it cannot be verified by the pipeline.
func (p *Pipeline) synthesize(ctx context.Context, question string, results []SearchResult) (string, error) {
	prompt := answerPrompt(question, buildContext(results))
	answer, err := p.generator.GenerateText(ctx, p.cfg.AnswerModel, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// buildContext concatenates the selected chunks in rank order, each
// prefixed with its originating document name so the model can cite it.
func buildContext(results []SearchResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		name := r.Chunk.Meta.Filename
		if name == "" {
			name = "Unknown"
		}
		blocks[i] = fmt.Sprintf("Document %d (from %s):\n%s", i+1, name, r.Chunk.Text)
	}
	return strings.Join(blocks, "\n\n")
}

func answerPrompt(question, context string) string {
	return fmt.Sprintf(`You are Pleader AI, an expert legal assistant specializing EXCLUSIVELY in Indian law.

Context from documents:
%s

Question: %s

STRICT INSTRUCTIONS:
- Answer ONLY based on the provided context from uploaded documents
- You must ONLY discuss Indian legal framework, acts, sections, and precedents
- Do NOT reference laws from other jurisdictions (US, UK, etc.) unless explicitly comparing to Indian law
- Cite specific document names, section numbers, article numbers, or case references when making claims
- Format your response with clear headings, bullet points, and structured sections
- If the context doesn't contain sufficient information, clearly state: "Based on the uploaded documents, I don't have enough information to answer this fully."
- Include relevant Indian legal references: Acts, Articles of Constitution, IPC sections, case law citations
- Be professional, precise, and grounded strictly in Indian legal context

Answer (with citations):`, context, question)
}
