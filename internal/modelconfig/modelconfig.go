// Package modelconfig resolves and persists each user's active model.
package modelconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stupiduntilnot/docchat/internal/store"
)

var ErrPersistence = errors.New("configuration persistence failure")

// Service applies the load and save policy on top of a raw ConfigStore.
type Service struct {
	store        store.ConfigStore
	defaultModel string
	logger       logrus.FieldLogger

	// OnHeal, when set, is called after a default was written back for a user.
	OnHeal func(userID, modelID string, err error)
}

func NewService(s store.ConfigStore, defaultModel string, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{store: s, defaultModel: defaultModel, logger: logger}
}

// DefaultModel returns the process-wide default model id.
func (s *Service) DefaultModel() string {
	return s.defaultModel
}

// Load returns the user's model id. A missing, empty or unreadable entry is
// replaced by the default model and written back; a failure of that write is
// logged and otherwise ignored.
func (s *Service) Load(ctx context.Context, userID string) string {
	modelID, err := s.store.Get(ctx, userID)
	if err == nil && modelID != "" {
		return modelID
	}

	log := s.logger.WithFields(logrus.Fields{"user_id": userID, "model_id": s.defaultModel})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log = log.WithError(err)
	}
	healErr := s.store.Put(ctx, userID, s.defaultModel)
	if healErr != nil {
		log.WithField("heal_error", healErr.Error()).Warn("failed to persist default model")
	} else {
		log.Info("default model persisted")
	}
	if s.OnHeal != nil {
		s.OnHeal(userID, s.defaultModel, healErr)
	}
	return s.defaultModel
}

// Save upserts the user's model id.
func (s *Service) Save(ctx context.Context, userID, modelID string) error {
	if err := s.store.Put(ctx, userID, modelID); err != nil {
		return fmt.Errorf("%w: save model for user %s: %v", ErrPersistence, userID, err)
	}
	return nil
}
