// Package ragas scores retrieval-augmented answers with an LLM judge using
// the ragas metric set: faithfulness to the retrieved contexts, relevancy
// of the answer to the question, and correctness against the ground truth.
package ragas

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/minirag/eval"
	"github.com/sweetpotato0/minirag/llm"
	"github.com/sweetpotato0/minirag/pkg/logging"
)

const (
	MetricFaithfulness      = "faithfulness"
	MetricAnswerRelevancy   = "answer_relevancy"
	MetricAnswerCorrectness = "answer_correctness"
)

const judgePrompt = `You are an impartial judge for retrieval-augmented answers.

## Contexts:
%s

## Question:
%s

## Answer:
%s

## Reference answer:
%s

Score the answer on three metrics, each between 0.0 and 1.0:
- "faithfulness": the answer only states facts supported by the contexts.
- "answer_relevancy": the answer addresses the question directly.
- "answer_correctness": the answer agrees with the reference answer.

Return only a JSON object with those three keys.`

// Provider judges records one at a time and averages the per-record scores.
type Provider struct {
	judge  llm.Provider
	logger *slog.Logger
}

// New creates the provider on top of a configured generation model.
func New(judge llm.Provider) *Provider {
	return &Provider{
		judge:  judge,
		logger: logging.WithComponent("ragas"),
	}
}

// Name identifies the provider in reports.
func (p *Provider) Name() string {
	return "RAGAS"
}

// Evaluate scores every record and returns the mean of each metric.
// Records whose judgement cannot be obtained or parsed are skipped; the
// run fails only when no record could be judged.
func (p *Provider) Evaluate(ctx context.Context, records []eval.Record) (map[string]float64, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to evaluate")
	}

	sums := map[string]float64{}
	judged := 0
	for i, record := range records {
		scores, err := p.judgeRecord(ctx, record)
		if err != nil {
			p.logger.Warn("record judgement failed, skipping", "record", i, "error", err)
			continue
		}
		for metric, value := range scores {
			sums[metric] += value
		}
		judged++
	}
	if judged == 0 {
		return nil, fmt.Errorf("no record could be judged")
	}

	means := make(map[string]float64, len(sums))
	for metric, sum := range sums {
		means[metric] = sum / float64(judged)
	}
	return means, nil
}

func (p *Provider) judgeRecord(ctx context.Context, record eval.Record) (map[string]float64, error) {
	contexts := "- " + strings.Join(record.Contexts, "\n- ")
	prompt := fmt.Sprintf(judgePrompt, contexts, record.Question, record.Answer, record.GroundTruth)

	response, err := p.judge.GenerateText(ctx, prompt, nil, llm.GenerateOptions{})
	if err != nil {
		return nil, err
	}
	return ParseScores(response)
}

// ParseScores extracts the metric object from a judge response, tolerating
// markdown code fences around the JSON.
func ParseScores(response string) (map[string]float64, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw map[string]float64
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse judge response: %w", err)
	}

	scores := map[string]float64{}
	for _, metric := range []string{MetricFaithfulness, MetricAnswerRelevancy, MetricAnswerCorrectness} {
		value, ok := raw[metric]
		if !ok {
			return nil, fmt.Errorf("judge response missing metric %q", metric)
		}
		if value < 0 || value > 1 {
			return nil, fmt.Errorf("metric %q out of range: %v", metric, value)
		}
		scores[metric] = value
	}
	return scores, nil
}
