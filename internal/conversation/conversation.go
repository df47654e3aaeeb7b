// Package conversation answers free-text queries with the user's session
// history as context.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"

	"github.com/stupiduntilnot/docchat/internal/metrics"
	"github.com/stupiduntilnot/docchat/internal/model"
	"github.com/stupiduntilnot/docchat/internal/session"
)

const promptTemplate = `Human: Use the following pieces of context to provide a concise answer to the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

Current conversation:
{{range .History}}{{if eq .Role "assistant"}}Assistant: {{else}}Human: {{end}}{{.Text}}
{{end}}
Human: {{.Input}}
Assistant:`

var prompt = template.Must(template.New("conversation").Parse(promptTemplate))

type promptData struct {
	History []session.Turn
	Input   string
}

// RenderPrompt builds the model prompt from prior turns and the new query.
func RenderPrompt(history []session.Turn, query string) (string, error) {
	var b strings.Builder
	if err := prompt.Execute(&b, promptData{History: history, Input: query}); err != nil {
		return "", fmt.Errorf("render conversation prompt: %w", err)
	}
	return b.String(), nil
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Provider   model.Provider
	Sessions   session.Store
	Compressor session.Compressor
	Params     model.Params
	Logger     logrus.FieldLogger
}

// Engine runs one conversational exchange per Answer call.
type Engine struct {
	provider   model.Provider
	sessions   session.Store
	compressor session.Compressor
	params     model.Params
	logger     logrus.FieldLogger
}

func NewEngine(config EngineConfig) *Engine {
	compressor := config.Compressor
	if compressor == nil {
		compressor = &session.SimpleCompressor{}
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		provider:   config.Provider,
		sessions:   config.Sessions,
		compressor: compressor,
		params:     config.Params,
		logger:     logger,
	}
}

// Answer sends query with the user's history to modelID and records the
// exchange. Nothing is recorded when the model call fails. A failed session
// write is logged and the answer is still returned.
func (e *Engine) Answer(ctx context.Context, userID, modelID, query string) (string, error) {
	history, err := e.sessions.History(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	text, err := RenderPrompt(e.compressor.Compress(history), query)
	if err != nil {
		return "", err
	}

	resp, err := e.provider.Complete(ctx, model.CompletionRequest{
		ModelID: modelID,
		Prompt:  text,
		Params:  e.params,
	})
	if err != nil {
		return "", fmt.Errorf("model completion: %w", err)
	}

	if err := e.sessions.Append(ctx, userID,
		session.Turn{Role: session.RoleHuman, Text: query},
		session.Turn{Role: session.RoleAssistant, Text: resp.Content},
	); err != nil {
		metrics.SessionWriteFailures.Inc()
		e.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"model_id": modelID,
		}).Error("failed to append conversation turns")
	}

	e.logger.WithFields(logrus.Fields{
		"user_id":       userID,
		"model_id":      modelID,
		"history_turns": len(history),
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
	}).Debug("conversation answered")
	return resp.Content, nil
}
