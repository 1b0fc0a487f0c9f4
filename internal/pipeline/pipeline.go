package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/techtag/internal/metrics"
	"github.com/ppiankov/techtag/internal/model"
	"github.com/ppiankov/techtag/internal/normalize"
	"github.com/ppiankov/techtag/internal/score"
)

// RuleSource provides the validated rule set and can drop its cache
type RuleSource interface {
	LoadConfig() (*model.RuleSet, error)
	Invalidate()
}

// Invalidator drops a cached value
type Invalidator interface {
	Invalidate()
}

// Engine orchestrates normalization, scoring and resolution for text chunks
type Engine struct {
	rules    RuleSource
	ontology Invalidator
	scorer   *score.Scorer
	resolver *score.Resolver
	logger   *zap.Logger
}

// NewEngine creates an engine reading rules from rules. ontology may be nil
// when the id source is not cached separately.
func NewEngine(rules RuleSource, ontology Invalidator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		rules:    rules,
		ontology: ontology,
		scorer:   score.NewScorer(),
		resolver: score.NewResolver(),
		logger:   logger.Named("engine"),
	}
}

// RuleSet returns the current validated rule set
func (e *Engine) RuleSet() (*model.RuleSet, error) {
	rs, err := e.rules.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return rs, nil
}

// Analyze classifies one chunk with the current rule set. Configuration
// errors are returned; an empty result is not an error.
func (e *Engine) Analyze(content string) (*model.Analysis, error) {
	rs, err := e.RuleSet()
	if err != nil {
		return nil, err
	}
	analysis := e.AnalyzeWith(rs, content)
	return &analysis, nil
}

// AnalyzeWith classifies one chunk with a rule set the caller already loaded
func (e *Engine) AnalyzeWith(rs *model.RuleSet, content string) model.Analysis {
	start := time.Now()

	// 1. Normalize with the rule set's options
	normalized := normalize.Text(content, rs.Normalization)

	// 2. Score every rule
	matches := e.scorer.Score(normalized, rs)

	// 3. Resolve primary and mentions
	result := e.resolver.Resolve(matches, rs.Policy, rs.Scoring)

	metrics.AnalyzeDuration.Observe(time.Since(start).Seconds())

	if matches == nil {
		matches = []model.Match{}
	}
	return model.Analysis{
		Normalized: normalized,
		Matches:    matches,
		Result:     result,
	}
}

// Invalidate drops cached ontology ids and rules so the next load re-reads
// and re-validates both sources
func (e *Engine) Invalidate() {
	if e.ontology != nil {
		e.ontology.Invalidate()
	}
	e.rules.Invalidate()
}

// Reload invalidates the caches and loads the rule set again, surfacing any
// configuration error immediately
func (e *Engine) Reload() (*model.RuleSet, error) {
	e.Invalidate()
	rs, err := e.RuleSet()
	if err != nil {
		e.logger.Error("reload failed", zap.Error(err))
		return nil, err
	}
	e.logger.Info("configuration reloaded", zap.Int("techniques", len(rs.Rules)))
	return rs, nil
}
