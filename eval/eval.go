package eval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	errorskg "github.com/sweetpotato0/minirag/errors"
	"github.com/sweetpotato0/minirag/nlp"
	"github.com/sweetpotato0/minirag/pkg/logging"
	"github.com/sweetpotato0/minirag/signal"
)

// Sample is one evaluation query with its caller-supplied reference answer.
type Sample struct {
	Question    string `json:"question"`
	GroundTruth string `json:"ground_truth"`
}

// Record is a completed retrieval-and-answer trace for one sample.
type Record struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Contexts    []string `json:"contexts"`
	GroundTruth string   `json:"ground_truth"`
}

// Report aggregates per-metric scores over the evaluated records.
type Report struct {
	Provider string             `json:"provider"`
	Scores   map[string]float64 `json:"scores"`
	Records  []Record           `json:"records"`
}

// Provider scores a batch of evaluation records.
type Provider interface {
	Name() string
	Evaluate(ctx context.Context, records []Record) (map[string]float64, error)
}

// Controller runs the retrieval pipeline over evaluation samples and hands
// the resulting records to the scoring provider.
type Controller struct {
	nlp      *nlp.Controller
	provider Provider
	logger   *slog.Logger
}

// New creates an evaluation controller.
func New(nlpController *nlp.Controller, provider Provider) *Controller {
	return &Controller{
		nlp:      nlpController,
		provider: provider,
		logger:   logging.WithComponent("eval"),
	}
}

// Run retrieves and answers every sample against the project, then scores
// the collected records. A retrieval or generation failure aborts the run.
func (c *Controller) Run(ctx context.Context, projectID int64, samples []Sample, topK int) (*Report, signal.Signal, error) {
	if len(samples) == 0 {
		return nil, signal.EvaluationFailed,
			fmt.Errorf("no evaluation samples: %w", errorskg.ErrInvalidInput)
	}

	records := make([]Record, 0, len(samples))
	for _, sample := range samples {
		question := strings.TrimSpace(sample.Question)
		if question == "" {
			return nil, signal.EvaluationFailed,
				fmt.Errorf("empty question in sample: %w", errorskg.ErrInvalidInput)
		}

		docs, _, err := c.nlp.Search(ctx, projectID, question, topK)
		if err != nil {
			return nil, signal.EvaluationFailed, err
		}

		contexts := make([]string, len(docs))
		for i, doc := range docs {
			contexts[i] = doc.Text
		}

		answer, err := c.nlp.GenerateFromDocs(ctx, question, docs)
		if err != nil {
			return nil, signal.EvaluationFailed, err
		}

		records = append(records, Record{
			Question:    question,
			Answer:      answer,
			Contexts:    contexts,
			GroundTruth: sample.GroundTruth,
		})
	}

	scores, err := c.provider.Evaluate(ctx, records)
	if err != nil {
		return nil, signal.EvaluationFailed, err
	}

	c.logger.Info("evaluation completed", "project_id", projectID,
		"provider", c.provider.Name(), "samples", len(records))
	return &Report{
		Provider: c.provider.Name(),
		Scores:   scores,
		Records:  records,
	}, signal.EvaluationCompleted, nil
}
