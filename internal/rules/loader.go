package rules

import (
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/techtag/internal/cache"
	"github.com/ppiankov/techtag/internal/metrics"
	"github.com/ppiankov/techtag/internal/model"
	"github.com/ppiankov/techtag/internal/ontology"
)

// IDSource provides the ontology ids rules are validated against.
type IDSource interface {
	LoadIDs() (ontology.IDSet, error)
}

// Loader reads, validates and caches the rule configuration.
type Loader struct {
	path   string
	ids    IDSource
	memo   *cache.Memo[*model.RuleSet]
	logger *zap.Logger
}

// NewLoader creates a loader for the rule document at path.
func NewLoader(path string, ids IDSource, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		path:   path,
		ids:    ids,
		memo:   cache.NewMemo[*model.RuleSet](c, cache.Key("rules", path), ttl),
		logger: logger.Named("rules"),
	}
}

// Path returns the rule document path.
func (l *Loader) Path() string { return l.path }

// LoadConfig returns the cached rule set, re-reading and re-validating the
// source on a miss. Failures are not cached.
func (l *Loader) LoadConfig() (*model.RuleSet, error) {
	return l.memo.Get(l.read)
}

// Invalidate forces the next LoadConfig to re-read and re-validate.
func (l *Loader) Invalidate() {
	l.memo.Invalidate()
	metrics.CacheInvalidationsTotal.Inc()
	l.logger.Info("rule cache invalidated", zap.String("path", l.path))
}

func (l *Loader) read() (rs *model.RuleSet, err error) {
	defer func() {
		metrics.ConfigLoadsTotal.WithLabelValues("rules", metrics.ResultLabel(err)).Inc()
	}()

	ids, err := l.ids.LoadIDs()
	if err != nil {
		l.logger.Error("ontology unavailable", zap.Error(err))
		return nil, err
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, &model.ConfigError{Source: l.path, Err: err}
	}

	rs, notes, err := compile(data, ontology.FormatFromPath(l.path), l.path, ids)
	if err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			l.logger.Error("rule configuration rejected",
				zap.String("path", l.path),
				zap.Strings("invalid_ids", vErr.InvalidIDs),
				zap.Strings("problems", vErr.Problems),
			)
		}
		return nil, err
	}
	for _, note := range notes {
		l.logger.Warn(note, zap.String("path", l.path))
	}

	l.logger.Info("rule configuration validated",
		zap.String("path", l.path),
		zap.String("version", rs.Version),
		zap.Int("techniques", len(rs.Rules)),
	)
	return rs, nil
}
