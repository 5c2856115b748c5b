package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/minirag/vectorstore"
)

// rerank helpers shared by the providers: both prompt the model with an
// enumerated candidate list and expect a JSON array of ids back.

const rerankSnippetLen = 500

// BuildRerankPrompt renders the instruction the model is asked to answer
// with a JSON id array sorted by descending relevance.
func BuildRerankPrompt(query string, docs []vectorstore.RetrievedDocument, topN int) string {
	var b strings.Builder
	for i, doc := range docs {
		snippet := doc.Text
		if len(snippet) > rerankSnippetLen {
			snippet = snippet[:rerankSnippetLen]
		}
		fmt.Fprintf(&b, "ID: %d | Content: %s\n", i, snippet)
	}

	return fmt.Sprintf(`You are an expert search evaluator. Rank the following documents based on their relevance to the user query.

Query: %s

Documents:
%s
Output only a JSON list of IDs in order of relevance, from most relevant to least.
Example: [3, 0, 2, 1]
Return only the top %d IDs.`, query, b.String(), topN)
}

// ParseRankedIDs extracts the id array from a model response, tolerating
// markdown code fences. Out-of-range ids are dropped; duplicates keep
// their first position.
func ParseRankedIDs(response string, docCount int) ([]int, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var ids []int
	if err := json.Unmarshal([]byte(cleaned), &ids); err != nil {
		return nil, fmt.Errorf("rerank response is not a JSON id list: %w", err)
	}

	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id < 0 || id >= docCount {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// ReorderDocs applies a ranked id list to the candidates, capping at topN.
// On an empty ranking it falls back to the original order.
func ReorderDocs(docs []vectorstore.RetrievedDocument, ids []int, topN int) []vectorstore.RetrievedDocument {
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}
	if len(ids) == 0 {
		return docs[:topN]
	}
	out := make([]vectorstore.RetrievedDocument, 0, topN)
	for _, id := range ids {
		out = append(out, docs[id])
		if len(out) == topN {
			break
		}
	}
	return out
}

// RerankByIDs prompts the generation function for a JSON id ranking of the
// candidates and applies it. A generation or parse failure falls back to
// the original order truncated to topN; the call still succeeds.
func RerankByIDs(ctx context.Context, generate func(context.Context, string) (string, error),
	logger *slog.Logger, query string, docs []vectorstore.RetrievedDocument, topN int) ([]vectorstore.RetrievedDocument, error) {

	if len(docs) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}
	if logger == nil {
		logger = slog.Default()
	}

	response, err := generate(ctx, BuildRerankPrompt(query, docs, topN))
	if err != nil {
		logger.Warn("rerank generation failed, keeping original order", "error", err)
		return docs[:topN], nil
	}

	ids, err := ParseRankedIDs(response, len(docs))
	if err != nil {
		logger.Warn("rerank response unparsable, keeping original order", "error", err)
		return docs[:topN], nil
	}
	return ReorderDocs(docs, ids, topN), nil
}

// Truncate bounds input text to maxChars characters, trimming whitespace.
// Zero or negative maxChars disables truncation.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return strings.TrimSpace(text)
	}
	runes := []rune(text)
	if len(runes) > maxChars {
		runes = runes[:maxChars]
	}
	return strings.TrimSpace(string(runes))
}
