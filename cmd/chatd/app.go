package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/meikuraledutech/chat"
	"github.com/meikuraledutech/chat/extract"
	"github.com/meikuraledutech/chat/firestore"
	"github.com/meikuraledutech/chat/gemini"
	"github.com/meikuraledutech/chat/hfimage"
	"github.com/meikuraledutech/chat/history"
	"github.com/meikuraledutech/chat/memory"
	"github.com/meikuraledutech/chat/mock"
	"github.com/meikuraledutech/chat/ollama"
	"github.com/meikuraledutech/chat/orchestrator"
	"github.com/meikuraledutech/chat/postgres"
	"github.com/meikuraledutech/chat/sqlite"
	"github.com/meikuraledutech/chat/traininglog"
)

// openedStore is a ready store plus its interaction table, if it has one.
type openedStore struct {
	chat.Store
	sink chat.InteractionSink
}

// openStore opens the configured store and applies its schema.
func openStore(ctx context.Context, cfg chat.AppConfig) (*openedStore, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := s.CreateSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return &openedStore{Store: s, sink: s}, nil

	case "postgres":
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.CreateSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return &openedStore{Store: s, sink: s}, nil

	case "firestore":
		s, err := firestore.NewStore(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: s, sink: s}, nil

	case "memory":
		return &openedStore{Store: memory.New()}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// buildBackends wires the generation backends, the extractor and the
// interaction sinks named by cfg.
func buildBackends(ctx context.Context, cfg chat.AppConfig, storeSink chat.InteractionSink, logger *zap.Logger) (orchestrator.Backends, error) {
	b := orchestrator.Backends{
		Extractor: extract.New(logger.Named("extract")),
		Sink:      chat.MultiSink{traininglog.New(cfg.InteractionLog), storeSink},
	}

	switch cfg.GenerationBackend {
	case "ollama":
		c := ollama.New(cfg.OllamaHost, cfg.Models, logger.Named("ollama"))
		b.Text, b.Vision = c, c
	case "gemini":
		g, err := gemini.New(ctx, gemini.Config{
			APIKey: cfg.GeminiAPI,
			Model:  cfg.GeminiModel,
			Models: cfg.GeminiModels,
		}, logger.Named("gemini"))
		if err != nil {
			return orchestrator.Backends{}, err
		}
		b.Text, b.Vision = g, g
	case "mock":
		m := mock.New(cfg.ImagesDir)
		b.Text, b.Vision, b.Images = m, m, m
		return b, nil
	default:
		return orchestrator.Backends{}, fmt.Errorf("unknown generation backend %q", cfg.GenerationBackend)
	}

	b.Images = hfimage.New(hfimage.Config{
		Token:   cfg.HFToken,
		Model:   cfg.HFImageModel,
		BaseURL: cfg.HFBaseURL,
		Dir:     cfg.ImagesDir,
	}, logger.Named("hfimage"))

	return b, nil
}

type app struct {
	store   *openedStore
	history *history.Manager
	orch    *orchestrator.Orchestrator
}

func newApp(ctx context.Context, cfg chat.AppConfig, logger *zap.Logger) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backends, err := buildBackends(ctx, cfg, store.sink, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	h := history.New(store, logger.Named("history"))
	orch := orchestrator.New(h, backends, orchestrator.Options{
		PublicBaseURL:      cfg.PublicBaseURL,
		Timeout:            cfg.GenerationTimeout,
		ExtractConcurrency: cfg.ExtractConcurrency,
	}, logger.Named("orchestrator"))

	logger.Info("app ready",
		zap.String("store", cfg.StoreDriver),
		zap.String("backend", cfg.GenerationBackend),
	)
	return &app{store: store, history: h, orch: orch}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
