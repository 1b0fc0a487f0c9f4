package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/techtag/internal/cache"
	"github.com/ppiankov/techtag/internal/logging"
	"github.com/ppiankov/techtag/internal/model"
	"github.com/ppiankov/techtag/internal/ontology"
	"github.com/ppiankov/techtag/internal/pipeline"
	"github.com/ppiankov/techtag/internal/review"
	"github.com/ppiankov/techtag/internal/rules"
	"github.com/ppiankov/techtag/internal/store"
	"github.com/ppiankov/techtag/internal/worker"
)

// app holds the components a command needs, wired from one Config.
type app struct {
	cfg      *model.Config
	logger   *zap.Logger
	ontology *ontology.Loader
	rules    *rules.Loader
	engine   *pipeline.Engine
	store    *store.Store
	batch    *worker.BatchProcessor
	reviewer *review.Reviewer
}

// newApp wires the engine. The store is opened only when withStore is set.
func newApp(ctx context.Context, withStore bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	c := cache.NewMemoryCache(cfg.Cache.TTL, 0)
	ids := ontology.NewLoader(cfg.Ontology, c, cfg.Cache.TTL, logger)
	rl := rules.NewLoader(cfg.Rules.Path, ids, c, cfg.Cache.TTL, logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		ontology: ids,
		rules:    rl,
		engine:   pipeline.NewEngine(rl, ids, logger),
	}
	if !withStore {
		return a, nil
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st
	a.batch = worker.NewBatchProcessor(st, a.engine, cfg.Batch, logger)
	a.reviewer = review.NewReviewer(st, ids, logger)
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
