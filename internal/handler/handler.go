// Package handler routes chat requests to model administration, the
// conversation engine or the document summarizer.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stupiduntilnot/docchat/internal/control"
	"github.com/stupiduntilnot/docchat/internal/db"
	"github.com/stupiduntilnot/docchat/internal/document"
	"github.com/stupiduntilnot/docchat/internal/metrics"
	"github.com/stupiduntilnot/docchat/internal/model"
	"github.com/stupiduntilnot/docchat/internal/store"
)

const (
	TypeText     = "text"
	TypeDocument = "document"

	listModelsCommand  = "list models"
	changeModelCommand = "change the model to "
)

const (
	branchListModels   = "list_models"
	branchChangeModel  = "change_model"
	branchConversation = "conversation"
	branchDocument     = "document"
	branchUnsupported  = "unsupported"
)

var (
	ErrLogPersistence         = errors.New("call log persistence failure")
	ErrUnsupportedRequestType = errors.New("unsupported request type")
)

// Request is one invocation.
type Request struct {
	UserID    string `json:"user-id"`
	RequestID string `json:"request-id"`
	Type      string `json:"type"`
	Body      string `json:"body"`
}

// Response is the invocation result.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Msg        string `json:"msg"`
}

// ModelConfig resolves and persists a user's active model.
type ModelConfig interface {
	Load(ctx context.Context, userID string) string
	Save(ctx context.Context, userID, modelID string) error
}

// Catalog lists the models that can be selected.
type Catalog interface {
	Models(ctx context.Context) ([]model.Descriptor, error)
}

type Conversation interface {
	Answer(ctx context.Context, userID, modelID, query string) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, modelID string, chunks []string) (string, error)
}

type Normalizer interface {
	Normalize(docType string, raw []byte) (string, error)
}

// Config wires a Handler. Events may be nil.
type Config struct {
	ModelConfig   ModelConfig
	Catalog       Catalog
	Conversation  Conversation
	Summarizer    Summarizer
	Fetcher       document.Fetcher
	Normalizer    Normalizer
	CallLog       store.CallLogStore
	ChunkSize     int
	StrictCallLog bool
	Events        *db.EventLog
	Logger        logrus.FieldLogger
}

type Handler struct {
	config Config
	logger logrus.FieldLogger
	now    func() time.Time
}

func New(config Config) *Handler {
	if config.ChunkSize <= 0 {
		config.ChunkSize = document.DefaultChunkSize
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{config: config, logger: logger, now: time.Now}
}

// Handle processes one request. Administrative commands never touch the
// call log; every other request writes exactly one entry.
func (h *Handler) Handle(ctx context.Context, req Request) (Response, error) {
	startedAt := h.now()
	log := h.logger.WithFields(logrus.Fields{
		"user_id":    req.UserID,
		"request_id": req.RequestID,
		"type":       req.Type,
	})
	var parent *int64
	if id := h.config.Events.Record(nil, db.EventRequestStarted, map[string]any{
		"user_id":    req.UserID,
		"request_id": req.RequestID,
		"type":       req.Type,
	}); id != 0 {
		parent = &id
	}

	modelID := h.config.ModelConfig.Load(ctx, req.UserID)
	h.config.Events.Record(parent, db.EventConfigLoaded, map[string]any{"model_id": modelID})
	log = log.WithField("model_id", modelID)

	branch, msg, err := h.dispatch(ctx, log, parent, req, modelID)
	log = log.WithField("branch", branch)

	if err == nil && branch != branchListModels && branch != branchChangeModel {
		err = h.writeCallLog(ctx, log, parent, req, modelID, msg, startedAt)
	}

	elapsed := h.now().Sub(startedAt)
	metrics.Requests.WithLabelValues(branch, metrics.Result(err)).Inc()
	metrics.RequestLatency.WithLabelValues(branch).Observe(elapsed.Seconds())

	if err != nil {
		h.config.Events.Record(parent, db.EventRequestFailed, map[string]any{
			"branch": branch,
			"error":  err.Error(),
		})
		log.WithError(err).Error("request failed")
		return Response{}, err
	}
	h.config.Events.Record(parent, db.EventRequestCompleted, map[string]any{
		"branch":     branch,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	log.WithField("elapsed_ms", elapsed.Milliseconds()).Info("request completed")
	return Response{StatusCode: 200, Msg: msg}, nil
}

func (h *Handler) dispatch(ctx context.Context, log logrus.FieldLogger, parent *int64, req Request, modelID string) (string, string, error) {
	if req.Type == TypeText && strings.HasPrefix(req.Body, listModelsCommand) {
		msg, err := h.listModels(ctx, modelID)
		return branchListModels, msg, err
	}
	if req.Type == TypeText && strings.HasPrefix(req.Body, changeModelCommand) {
		msg, err := h.changeModel(ctx, log, parent, req, modelID)
		return branchChangeModel, msg, err
	}

	switch req.Type {
	case TypeText:
		h.warnUnknownModel(ctx, log, modelID)
		msg, err := h.config.Conversation.Answer(ctx, req.UserID, modelID, req.Body)
		if err != nil {
			h.recordModelFailure(parent, err)
			return branchConversation, "", fmt.Errorf("answer: %w", err)
		}
		h.config.Events.Record(parent, db.EventModelInvoked, map[string]any{"branch": branchConversation})
		return branchConversation, msg, nil
	case TypeDocument:
		h.warnUnknownModel(ctx, log, modelID)
		msg, err := h.summarizeDocument(ctx, log, parent, req.Body, modelID)
		return branchDocument, msg, err
	default:
		log.WithError(ErrUnsupportedRequestType).Warn("unsupported request type")
		return branchUnsupported, "unsupported request type: " + req.Type, nil
	}
}

func (h *Handler) listModels(ctx context.Context, current string) (string, error) {
	models, err := h.config.Catalog.Models(ctx)
	if err != nil {
		return "", fmt.Errorf("list models: %w", err)
	}
	var b strings.Builder
	b.WriteString("The list of models: \n")
	for _, m := range models {
		b.WriteString(m.ID)
		b.WriteString("\n")
	}
	b.WriteString("current model: ")
	b.WriteString(current)
	return b.String(), nil
}

func (h *Handler) changeModel(ctx context.Context, log logrus.FieldLogger, parent *int64, req Request, current string) (string, error) {
	target := req.Body[strings.LastIndex(req.Body, "to ")+len("to "):]
	if target == current {
		return "No change! The new model is the same as the current model.", nil
	}
	models, err := h.config.Catalog.Models(ctx)
	if err != nil {
		return "", fmt.Errorf("list models: %w", err)
	}
	if !model.ContainsID(models, target) {
		return target + " is not in lists.", nil
	}
	if err := h.config.ModelConfig.Save(ctx, req.UserID, target); err != nil {
		return "", err
	}
	h.config.Events.Record(parent, db.EventModelChanged, map[string]any{
		"from": current,
		"to":   target,
	})
	log.WithField("new_model_id", target).Info("model changed")
	return "The model is changed to " + target, nil
}

func (h *Handler) summarizeDocument(ctx context.Context, log logrus.FieldLogger, parent *int64, key, modelID string) (string, error) {
	docType := document.TypeOf(key)
	if !document.Supported(docType) {
		h.config.Events.Record(parent, db.EventDocumentRejected, map[string]any{"key": key, "reason": "unsupported"})
		return "unsupported document type: " + docType, nil
	}

	raw, err := h.config.Fetcher.Fetch(ctx, key)
	if errors.Is(err, document.ErrNotFound) {
		log.WithError(err).Warn("document not found")
		h.config.Events.Record(parent, db.EventDocumentRejected, map[string]any{"key": key, "reason": "not_found"})
		return "unable to read document: " + key, nil
	}
	if err != nil {
		return "", fmt.Errorf("fetch document %s: %w", key, err)
	}
	h.config.Events.Record(parent, db.EventDocumentFetched, map[string]any{"key": key, "bytes": len(raw)})

	text, err := h.config.Normalizer.Normalize(docType, raw)
	if errors.Is(err, document.ErrUnsupportedType) || errors.Is(err, document.ErrUnparseable) {
		log.WithError(err).Warn("document rejected")
		h.config.Events.Record(parent, db.EventDocumentRejected, map[string]any{"key": key, "reason": err.Error()})
		return "unsupported document type: " + docType, nil
	}
	if err != nil {
		return "", fmt.Errorf("normalize document %s: %w", key, err)
	}

	chunks := document.Chunk(document.CollapseNewlines(text), h.config.ChunkSize)
	h.config.Events.Record(parent, db.EventDocumentChunked, map[string]any{"key": key, "chunks": len(chunks)})

	summary, err := h.config.Summarizer.Summarize(ctx, modelID, chunks)
	if err != nil {
		h.recordModelFailure(parent, err)
		return "", fmt.Errorf("summarize document %s: %w", key, err)
	}
	if len(chunks) > 0 {
		h.config.Events.Record(parent, db.EventModelInvoked, map[string]any{"branch": branchDocument})
	}
	return summary, nil
}

func (h *Handler) writeCallLog(ctx context.Context, log logrus.FieldLogger, parent *int64, req Request, modelID, msg string, startedAt time.Time) error {
	now := h.now()
	err := h.config.CallLog.Append(ctx, store.CallLogEntry{
		UserID:    req.UserID,
		RequestID: req.RequestID,
		Type:      req.Type,
		Body:      req.Body,
		Msg:       msg,
		ModelID:   modelID,
		ElapsedMS: now.Sub(startedAt).Milliseconds(),
		CreatedAt: now,
	})
	if err == nil {
		h.config.Events.Record(parent, db.EventCallLogWritten, nil)
		return nil
	}

	metrics.CallLogFailures.Inc()
	h.config.Events.Record(parent, db.EventCallLogFailed, map[string]any{"error": err.Error()})
	if h.config.StrictCallLog {
		return fmt.Errorf("%w: %v", ErrLogPersistence, err)
	}
	log.WithError(err).Error("failed to write call log")
	return nil
}

// warnUnknownModel flags stored model ids that are no longer in the catalog.
// Catalog failures are ignored here.
func (h *Handler) warnUnknownModel(ctx context.Context, log logrus.FieldLogger, modelID string) {
	models, err := h.config.Catalog.Models(ctx)
	if err != nil || model.ContainsID(models, modelID) {
		return
	}
	log.Warn("configured model is not in the current catalog")
}

func (h *Handler) recordModelFailure(parent *int64, err error) {
	var limitErr *control.LimitError
	if errors.As(err, &limitErr) {
		h.config.Events.Record(parent, db.EventWallTimeExhausted, map[string]any{
			"elapsed_seconds":   limitErr.Value,
			"threshold_seconds": limitErr.Threshold,
		})
	}
	h.config.Events.Record(parent, db.EventModelFailed, map[string]any{
		"error":       err.Error(),
		"error_class": control.ClassifyError(err),
	})
}
