// Package ontology loads the authoritative set of technique ids.
package ontology

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/techtag/internal/cache"
	"github.com/ppiankov/techtag/internal/metrics"
	"github.com/ppiankov/techtag/internal/model"
)

// IDSet is a set of known technique ids.
type IDSet map[model.TechniqueID]struct{}

// Has reports whether id is known.
func (s IDSet) Has(id model.TechniqueID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order.
func (s IDSet) Sorted() []model.TechniqueID {
	out := make([]model.TechniqueID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Loader reads and caches the ontology id set.
type Loader struct {
	path     string
	rootKey  string
	idFields []string
	memo     *cache.Memo[IDSet]
	logger   *zap.Logger
}

// NewLoader creates a loader for the ontology at cfg.Path. The id set stays in
// c until Invalidate is called or ttl expires.
func NewLoader(cfg model.OntologyConfig, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	fields := cfg.IDFields
	if len(fields) == 0 {
		fields = []string{"nummer"}
	}
	return &Loader{
		path:     cfg.Path,
		rootKey:  cfg.RootKey,
		idFields: fields,
		memo:     cache.NewMemo[IDSet](c, cache.Key("ontology", cfg.Path), ttl),
		logger:   logger.Named("ontology"),
	}
}

// Path returns the ontology source path.
func (l *Loader) Path() string { return l.path }

// LoadIDs returns the cached id set, reading the source on a miss.
func (l *Loader) LoadIDs() (IDSet, error) {
	return l.memo.Get(l.read)
}

// Invalidate forces the next LoadIDs to re-read the source.
func (l *Loader) Invalidate() {
	l.memo.Invalidate()
	metrics.CacheInvalidationsTotal.Inc()
	l.logger.Info("ontology cache invalidated", zap.String("path", l.path))
}

func (l *Loader) read() (ids IDSet, err error) {
	defer func() {
		metrics.ConfigLoadsTotal.WithLabelValues("ontology", metrics.ResultLabel(err)).Inc()
	}()

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, &model.ConfigError{Source: l.path, Err: err}
	}
	ids, err = Parse(data, FormatFromPath(l.path), l.rootKey, l.idFields)
	if err != nil {
		return nil, &model.ConfigError{Source: l.path, Err: err}
	}
	l.logger.Info("ontology loaded", zap.String("path", l.path), zap.Int("ids", len(ids)))
	return ids, nil
}

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from the file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

var errNoIDs = errors.New("no technique ids found")

// Parse extracts every id found under rootKey (or the whole document when the
// key is absent) in any object field named in idFields.
func Parse(data []byte, format Format, rootKey string, idFields []string) (IDSet, error) {
	fields := make(map[string]bool, len(idFields))
	for _, f := range idFields {
		fields[f] = true
	}
	ids := make(IDSet)

	switch format {
	case FormatYAML:
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		root := &doc
		if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
			root = root.Content[0]
		}
		if sub := yamlChild(root, rootKey); sub != nil {
			root = sub
		}
		walkYAML(root, fields, ids)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		if m, ok := doc.(map[string]any); ok && rootKey != "" {
			if sub, ok := m[rootKey]; ok {
				doc = sub
			}
		}
		walkJSON(doc, fields, ids)
	}

	if len(ids) == 0 {
		return nil, errNoIDs
	}
	return ids, nil
}

func walkJSON(v any, fields map[string]bool, ids IDSet) {
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			if fields[key] {
				addID(ids, scalarJSON(child))
			}
			walkJSON(child, fields, ids)
		}
	case []any:
		for _, child := range node {
			walkJSON(child, fields, ids)
		}
	}
}

func scalarJSON(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	}
	return ""
}

func yamlChild(node *yaml.Node, key string) *yaml.Node {
	if key == "" || node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func walkYAML(node *yaml.Node, fields map[string]bool, ids IDSet) {
	if node == nil {
		return
	}
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if fields[key.Value] && val.Kind == yaml.ScalarNode {
				addID(ids, val.Value)
			}
			walkYAML(val, fields, ids)
		}
	case yaml.SequenceNode, yaml.DocumentNode:
		for _, child := range node.Content {
			walkYAML(child, fields, ids)
		}
	}
}

func addID(ids IDSet, raw string) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		ids[model.TechniqueID(raw)] = struct{}{}
	}
}
