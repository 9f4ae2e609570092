// Package ai wraps the Gemini API behind the three narrow clause contracts
// the editor consumes: suggestion, rewriting, and whole-document renumbering.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"lexdraft/api/internal/contract"
)

// ErrEmptyResponse is returned when the model produces no usable text.
var ErrEmptyResponse = errors.New("model returned no usable text")

const suggestPrompt = `You are a legal drafting assistant. Draft a single contract clause matching this description. Return only the clause text, no preamble and no markdown fences.

Description:
%s`

const rewritePrompt = `You are a legal drafting assistant. Rewrite the clause below following the instruction. Return only the rewritten clause text, no preamble and no markdown fences.

Instruction: %s

Clause:
%s`

const renumberPrompt = `You are a legal drafting assistant. The document below is split into cells by the literal delimiter line:

%s

Renumber the clauses sequentially and fix every cross-reference so it points at the new numbers. Do not add, remove, merge or reorder cells, and reproduce each delimiter exactly as given, the same number of times. Return only the full document text.

Document:
%s`

// Assistant is a Gemini-backed implementation of the clause collaborators.
// It also satisfies contract.Rewriter for the renumbering reconciliation.
type Assistant struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, apiKey, model string) (*Assistant, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Assistant{client: client, model: model}, nil
}

// SuggestClause drafts a clause from a free-form description.
func (a *Assistant) SuggestClause(ctx context.Context, description string) (string, error) {
	return a.generate(ctx, fmt.Sprintf(suggestPrompt, description))
}

// RewriteClause rewrites a clause per the given instruction.
func (a *Assistant) RewriteClause(ctx context.Context, clauseText, instruction string) (string, error) {
	return a.generate(ctx, fmt.Sprintf(rewritePrompt, instruction, clauseText))
}

// Renumber sends the full joined document through the model. The delimiter
// convention is best-effort: the reconciliation on the caller's side rejects
// any response that does not split back into the original cell count.
func (a *Assistant) Renumber(ctx context.Context, text string) (string, error) {
	out, err := a.generate(ctx, fmt.Sprintf(renumberPrompt, strings.TrimSpace(contract.CellDelimiter), text))
	if err != nil {
		return "", err
	}
	return out, nil
}

func (a *Assistant) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := cleanFences(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func cleanFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
