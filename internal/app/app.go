// Package app assembles the request handler and its collaborators from
// configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stupiduntilnot/docchat/internal/catalog"
	"github.com/stupiduntilnot/docchat/internal/config"
	"github.com/stupiduntilnot/docchat/internal/control"
	"github.com/stupiduntilnot/docchat/internal/conversation"
	"github.com/stupiduntilnot/docchat/internal/db"
	"github.com/stupiduntilnot/docchat/internal/document"
	"github.com/stupiduntilnot/docchat/internal/dummy"
	"github.com/stupiduntilnot/docchat/internal/handler"
	"github.com/stupiduntilnot/docchat/internal/metrics"
	"github.com/stupiduntilnot/docchat/internal/model"
	"github.com/stupiduntilnot/docchat/internal/modelconfig"
	"github.com/stupiduntilnot/docchat/internal/openai"
	"github.com/stupiduntilnot/docchat/internal/session"
	"github.com/stupiduntilnot/docchat/internal/store"
	"github.com/stupiduntilnot/docchat/internal/summarize"
)

// App holds the wired components of one process.
type App struct {
	Handler     *handler.Handler
	DB          *sql.DB
	Events      *db.EventLog
	ConfigStore store.ConfigStore
	CallLog     store.CallLogStore
	ModelConfig *modelconfig.Service
	Catalog     *catalog.Cache
	Sessions    session.Store
	Logger      logrus.FieldLogger

	redis *redis.Client
}

// Build opens storage, records process.started for role and wires the
// handler.
func Build(ctx context.Context, cfg config.ServerConfig, role string, logger logrus.FieldLogger) (*App, error) {
	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	a := &App{DB: database, Logger: logger}
	a.Events = &db.EventLog{DB: database, Logger: logger}
	rootID, err := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{
		"role":     role,
		"pid":      os.Getpid(),
		"provider": cfg.ModelProvider,
		"store":    cfg.StoreBackend,
		"source":   cfg.DocumentSource,
	})
	if err != nil {
		logger.WithError(err).Warn("failed to log process.started")
	} else {
		a.Events.Root = &rootID
	}

	if err := a.buildStores(cfg); err != nil {
		a.Close()
		return nil, err
	}

	provider, source, err := newModelBackend(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	guarded := control.NewGuardedProvider(
		&instrumentedProvider{next: provider},
		control.Policy{MaxWallTime: cfg.ControlMaxWall},
		control.NewCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitCooldown),
	)
	guarded.OnStateChange = a.onCircuitChange

	a.Catalog = catalog.NewCache(source, cfg.CatalogRefresh, logger)
	a.Catalog.OnRefresh = a.onCatalogRefresh
	if err := a.Catalog.Load(ctx); err != nil {
		logger.WithError(err).Warn("initial model catalog load failed")
	}

	a.ModelConfig = modelconfig.NewService(a.ConfigStore, cfg.DefaultModel, logger)
	a.ModelConfig.OnHeal = a.onConfigHeal

	switch cfg.SessionBackend {
	case "sqlite":
		a.Sessions = &session.SQLiteStore{DB: database}
	default:
		a.Sessions = session.NewMemoryStore(cfg.SessionTTL)
	}

	fetcher, err := newFetcher(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	params := model.Params{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature, TopP: cfg.TopP}
	a.Handler = handler.New(handler.Config{
		ModelConfig: a.ModelConfig,
		Catalog:     a.Catalog,
		Conversation: conversation.NewEngine(conversation.EngineConfig{
			Provider:   guarded,
			Sessions:   a.Sessions,
			Compressor: &session.SimpleCompressor{MaxTurns: cfg.HistoryWindow},
			Params:     params,
			Logger:     logger,
		}),
		Summarizer: summarize.NewSummarizer(summarize.SummarizerConfig{
			Provider:  guarded,
			Params:    params,
			MaxChunks: cfg.SummaryMaxChunks,
			Logger:    logger,
		}),
		Fetcher:       fetcher,
		Normalizer:    document.NewNormalizer(),
		CallLog:       a.CallLog,
		ChunkSize:     cfg.ChunkSize,
		StrictCallLog: cfg.StrictCallLog,
		Events:        a.Events,
		Logger:        logger,
	})
	return a, nil
}

func (a *App) buildStores(cfg config.ServerConfig) error {
	switch cfg.StoreBackend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		a.ConfigStore = store.NewRedisConfigStore(a.redis, cfg.RedisPrefix)
		a.CallLog = store.NewRedisCallLogStore(a.redis, cfg.RedisPrefix)
	default:
		a.ConfigStore = &store.SQLiteConfigStore{DB: a.DB}
		a.CallLog = &store.SQLiteCallLogStore{DB: a.DB}
	}
	return nil
}

// Close records process.stopped and releases storage.
func (a *App) Close() error {
	a.Events.Record(nil, db.EventProcessStopped, map[string]any{"pid": os.Getpid()})
	if a.redis != nil {
		a.redis.Close()
	}
	return a.DB.Close()
}

func newModelBackend(cfg config.ServerConfig) (model.Provider, model.Catalog, error) {
	switch cfg.ModelProvider {
	case "openai":
		client := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ControlMaxWall+10*time.Second)
		return client, client, nil
	case "dummy":
		p, err := dummy.NewProvider(cfg.DummyScript)
		if err != nil {
			return nil, nil, err
		}
		return p, dummy.NewCatalog(cfg.DummyCatalog...), nil
	default:
		return nil, nil, fmt.Errorf("unsupported model provider: %s", cfg.ModelProvider)
	}
}

func newFetcher(ctx context.Context, cfg config.ServerConfig) (document.Fetcher, error) {
	switch cfg.DocumentSource {
	case "s3":
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return &document.S3Fetcher{
			Client: s3.NewFromConfig(awsCfg),
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
		}, nil
	case "dir":
		return &document.DirFetcher{Root: cfg.DocumentDir}, nil
	default:
		return nil, fmt.Errorf("unsupported document source: %s", cfg.DocumentSource)
	}
}

func (a *App) onCircuitChange(from, to control.CircuitState, errClass string) {
	log := a.Logger.WithFields(logrus.Fields{"from": from, "to": to, "error_class": errClass})
	switch to {
	case control.CircuitOpen:
		a.Events.Record(nil, db.EventCircuitOpened, map[string]any{"error_class": errClass, "from": string(from)})
		log.Warn("model circuit opened")
	case control.CircuitClosed:
		a.Events.Record(nil, db.EventCircuitClosed, map[string]any{"recovered": true})
		log.Info("model circuit closed")
	}
}

func (a *App) onCatalogRefresh(err error) {
	metrics.CatalogRefreshes.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		a.Events.Record(nil, db.EventCatalogFailed, map[string]any{"error": err.Error()})
		return
	}
	a.Events.Record(nil, db.EventCatalogLoaded, nil)
}

func (a *App) onConfigHeal(userID, modelID string, err error) {
	metrics.ConfigHeals.WithLabelValues(metrics.Result(err)).Inc()
	payload := map[string]any{"user_id": userID, "model_id": modelID}
	if err != nil {
		payload["error"] = err.Error()
	}
	a.Events.Record(nil, db.EventConfigHealed, payload)
}

// instrumentedProvider counts backend calls by result.
type instrumentedProvider struct {
	next model.Provider
}

func (p *instrumentedProvider) Complete(ctx context.Context, req model.CompletionRequest) (model.CompletionResponse, error) {
	resp, err := p.next.Complete(ctx, req)
	metrics.ModelCalls.WithLabelValues(metrics.Result(err)).Inc()
	return resp, err
}
