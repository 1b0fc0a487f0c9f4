package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/techtag/internal/metrics"
	"github.com/ppiankov/techtag/internal/model"
)

// ItemStore is the persistence a batch run needs.
type ItemStore interface {
	FetchUntagged(ctx context.Context, limit int) ([]model.Item, error)
	SaveSuggestion(ctx context.Context, id string, result model.TaggingResult) error
	ResetSuggestions(ctx context.Context) (int64, error)
}

// Classifier resolves item content against a validated rule set.
type Classifier interface {
	RuleSet() (*model.RuleSet, error)
	AnalyzeWith(rs *model.RuleSet, content string) model.Analysis
}

// errMalformedContent marks item content that cannot be classified.
var errMalformedContent = errors.New("malformed content")

// classifyJob classifies and persists a single item.
type classifyJob struct {
	index      int
	item       model.Item
	rules      *model.RuleSet
	classifier Classifier
	store      ItemStore
	limiter    *Limiter
}

func (j *classifyJob) Execute(ctx context.Context) Result {
	res := &itemResult{index: j.index, itemID: j.item.ID}

	if strings.TrimSpace(j.item.Content) == "" {
		res.err = fmt.Errorf("%w: empty", errMalformedContent)
		return res
	}
	if !utf8.ValidString(j.item.Content) {
		res.err = fmt.Errorf("%w: invalid UTF-8", errMalformedContent)
		return res
	}

	analysis := j.classifier.AnalyzeWith(j.rules, j.item.Content)
	res.result = analysis.Result
	if !analysis.Result.HasPrimary() {
		res.outcome = model.OutcomeNoMatch
		return res
	}

	if err := j.limiter.Wait(ctx); err != nil {
		res.err = err
		return res
	}
	if err := j.store.SaveSuggestion(ctx, j.item.ID, analysis.Result); err != nil {
		res.err = err
		return res
	}
	res.outcome = model.OutcomeSuggested
	return res
}

// itemResult is the outcome of one classifyJob.
type itemResult struct {
	index   int
	itemID  string
	outcome model.ItemOutcome
	result  model.TaggingResult
	err     error
}

func (r *itemResult) Err() error {
	return r.err
}

// BatchProcessor classifies untagged items concurrently.
type BatchProcessor struct {
	store      ItemStore
	classifier Classifier
	limiter    *Limiter
	workers    int
	maxItems   int
	logger     *zap.Logger
	now        func() time.Time
}

// NewBatchProcessor creates a batch processor tuned by cfg.
func NewBatchProcessor(store ItemStore, classifier Classifier, cfg model.BatchConfig, logger *zap.Logger) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProcessor{
		store:      store,
		classifier: classifier,
		limiter:    NewLimiter(cfg.WritesPerSecond, cfg.Burst),
		workers:    cfg.Workers,
		maxItems:   cfg.MaxItems,
		logger:     logger,
		now:        time.Now,
	}
}

// ClassifyBatch classifies up to maxItems untagged items and stores a
// suggestion for every item that resolves to a primary technique. A
// non-positive maxItems uses the configured default.
//
// Configuration errors abort the run before any item is touched. Failures on
// individual items are recorded in the report as "<id>: <message>" and never
// stop the run. Cancelling ctx stops enqueueing; accepted items finish and
// the report is marked cancelled.
func (b *BatchProcessor) ClassifyBatch(ctx context.Context, maxItems int) (model.RunReport, error) {
	report := model.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: b.now(),
		Errors:    []string{},
	}
	logger := b.logger.With(zap.String("run_id", report.RunID))

	rs, err := b.classifier.RuleSet()
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues(metrics.ResultLabel(err)).Inc()
		logger.Error("batch aborted: configuration invalid", zap.Error(err))
		return report, err
	}

	if maxItems <= 0 {
		maxItems = b.maxItems
	}
	items, err := b.store.FetchUntagged(ctx, maxItems)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues(metrics.ResultLabel(err)).Inc()
		return report, fmt.Errorf("fetch untagged items: %w", err)
	}
	logger.Info("batch started", zap.Int("items", len(items)), zap.Int("workers", b.workers))

	pool := NewPool(b.workers)
	pool.Start(ctx)
	for i, item := range items {
		job := &classifyJob{
			index:      i,
			item:       item,
			rules:      rs,
			classifier: b.classifier,
			store:      b.store,
			limiter:    b.limiter,
		}
		if !pool.Submit(ctx, job) {
			report.Cancelled = true
			break
		}
	}

	results := make([]*itemResult, 0, len(items))
	for _, r := range pool.Wait() {
		results = append(results, r.(*itemResult))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })

	for _, r := range results {
		report.Processed++
		outcome := r.outcome
		if r.err != nil {
			outcome = model.OutcomeError
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", r.itemID, r.err))
			logger.Warn("item failed", zap.String("item_id", r.itemID), zap.Error(r.err))
		}
		switch outcome {
		case model.OutcomeSuggested:
			report.Suggested++
			logger.Debug("item suggested",
				zap.String("item_id", r.itemID),
				zap.String("primary", string(r.result.Primary)),
				zap.Int("mentions", len(r.result.Mentions)),
			)
		case model.OutcomeNoMatch:
			report.NoMatch++
		}
		metrics.BatchItemsTotal.WithLabelValues(string(outcome)).Inc()
	}

	report.FinishedAt = b.now()
	runResult := "ok"
	if report.Cancelled {
		runResult = "cancelled"
	}
	metrics.BatchRunsTotal.WithLabelValues(runResult).Inc()

	logger.Info("batch finished",
		zap.Int("processed", report.Processed),
		zap.Int("suggested", report.Suggested),
		zap.Int("no_match", report.NoMatch),
		zap.Int("errors", len(report.Errors)),
		zap.Bool("cancelled", report.Cancelled),
		zap.Duration("duration", report.Duration()),
	)
	return report, nil
}

// ResetSuggestions reverts every suggested or pending item to untagged.
func (b *BatchProcessor) ResetSuggestions(ctx context.Context) (int64, error) {
	n, err := b.store.ResetSuggestions(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset suggestions: %w", err)
	}
	b.logger.Info("suggestions reset", zap.Int64("items", n))
	return n, nil
}
