// Package summarize produces one-shot summaries of document chunks.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stupiduntilnot/docchat/internal/model"
)

const (
	// DefaultMaxChunks bounds how many leading chunks go into one prompt.
	DefaultMaxChunks = 3
	// FailureMessage is returned when the model yields no summary.
	FailureMessage = "Fail to summarize the document. Try again..."

	promptPrefix = "Write a concise summary of the following:\n\n"
	promptSuffix = "\n\nCONCISE SUMMARY "
)

// BuildPrompt stuffs the first maxChunks chunks into the summary prompt.
func BuildPrompt(chunks []string, maxChunks int) string {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	return promptPrefix + strings.Join(chunks, "\n\n") + promptSuffix
}

type SummarizerConfig struct {
	Provider  model.Provider
	Params    model.Params
	MaxChunks int
	Logger    logrus.FieldLogger
}

type Summarizer struct {
	provider  model.Provider
	params    model.Params
	maxChunks int
	logger    logrus.FieldLogger
}

func NewSummarizer(config SummarizerConfig) *Summarizer {
	maxChunks := config.MaxChunks
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Summarizer{
		provider:  config.Provider,
		params:    config.Params,
		maxChunks: maxChunks,
		logger:    logger,
	}
}

// Summarize returns a summary of the leading chunks using a single model
// call, or FailureMessage when there is nothing to summarize or the model
// returns only whitespace.
func (s *Summarizer) Summarize(ctx context.Context, modelID string, chunks []string) (string, error) {
	if len(chunks) == 0 {
		return FailureMessage, nil
	}
	resp, err := s.provider.Complete(ctx, model.CompletionRequest{
		ModelID: modelID,
		Prompt:  BuildPrompt(chunks, s.maxChunks),
		Params:  s.params,
	})
	if err != nil {
		return "", fmt.Errorf("summary completion: %w", err)
	}
	used := len(chunks)
	if used > s.maxChunks {
		used = s.maxChunks
	}
	s.logger.WithFields(logrus.Fields{
		"model_id":    modelID,
		"chunks":      len(chunks),
		"chunks_used": used,
	}).Debug("document summarized")
	if strings.TrimSpace(resp.Content) == "" {
		return FailureMessage, nil
	}
	return resp.Content, nil
}
