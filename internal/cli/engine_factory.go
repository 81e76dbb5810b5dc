package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/storyweaver"
	"github.com/aretw0/storyweaver/internal/config"
	"github.com/aretw0/storyweaver/pkg/adapters/file"
	"github.com/aretw0/storyweaver/pkg/adapters/memory"
	"github.com/aretw0/storyweaver/pkg/adapters/openai"
	"github.com/aretw0/storyweaver/pkg/adapters/redis"
	"github.com/aretw0/storyweaver/pkg/adapters/storyapi"
	"github.com/aretw0/storyweaver/pkg/domain"
	"github.com/aretw0/storyweaver/pkg/ports"
	"github.com/aretw0/storyweaver/pkg/session"
	"github.com/aretw0/storyweaver/pkg/storygen"
)

// ErrNoAPIKey is returned when in-process generation is needed without an API key.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY is required when no BACKEND_URL is set")

// StoreKind selects the session store used when no Redis URL is configured.
type StoreKind int

const (
	StoreMemory StoreKind = iota
	StoreFile
)

// NewLocalService creates the in-process story service on the OpenAI API.
func NewLocalService(cfg config.Config, logger *slog.Logger) (*storygen.Local, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, ErrNoAPIKey
	}
	opts := []openai.Option{}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	if cfg.StoryModel != "" {
		opts = append(opts, openai.WithStoryModel(cfg.StoryModel))
	}
	if cfg.ImageModel != "" {
		opts = append(opts, openai.WithImageModel(cfg.ImageModel))
	}
	gen := openai.New(cfg.OpenAIAPIKey, opts...)
	return storygen.NewLocal(gen, storygen.WithLogger(logger)), nil
}

// NewStoryService returns the story backend client when BackendURL is set and the
// in-process service otherwise.
func NewStoryService(cfg config.Config, logger *slog.Logger) (ports.StoryService, error) {
	if cfg.BackendURL != "" {
		logger.Debug("using story backend", "url", cfg.BackendURL)
		return storyapi.New(cfg.BackendURL, storyapi.WithLogger(logger)), nil
	}
	return NewLocalService(cfg, logger)
}

// NewEngine initializes the wizard engine with the configured limits and policy.
func NewEngine(cfg config.Config, svc ports.StoryService, logger *slog.Logger, hooks domain.LifecycleHooks) (*storyweaver.Engine, error) {
	eng, err := storyweaver.New(svc,
		storyweaver.WithLogger(logger),
		storyweaver.WithLifecycleHooks(hooks),
		storyweaver.WithImageTimeout(cfg.ImageTimeout),
		storyweaver.WithMaxConcurrency(cfg.MaxConcurrency),
		storyweaver.WithFanOutPolicy(cfg.Policy()),
		storyweaver.WithDefaultScenes(cfg.DefaultScenes),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return eng, nil
}

// NewSessionManager picks Redis (with distributed locking) when RedisURL is set and the
// given fallback otherwise. The returned func releases the store.
func NewSessionManager(ctx context.Context, cfg config.Config, fallback StoreKind, logger *slog.Logger) (*session.Manager, func() error, error) {
	if cfg.RedisURL != "" {
		store, err := redis.NewFromURL(cfg.RedisURL, redis.WithTTL(cfg.SessionTTL))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("redis unavailable: %w", err)
		}
		locker := redis.NewLocker(store.Client(), redis.DefaultPrefix)
		mgr := session.NewManager(store,
			session.WithLocker(locker),
			session.WithStaleAfter(cfg.BusyTimeout),
			session.WithLogger(logger),
		)
		return mgr, store.Close, nil
	}

	var store ports.StateStore
	switch fallback {
	case StoreFile:
		store = file.New(cfg.SessionDir)
	default:
		store = memory.NewStore()
	}
	mgr := session.NewManager(store, session.WithStaleAfter(cfg.BusyTimeout), session.WithLogger(logger))
	return mgr, func() error { return nil }, nil
}
