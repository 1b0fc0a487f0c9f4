// Package rules loads, validates and caches the heuristic rule configuration.
package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/techtag/internal/ontology"
)

// document mirrors the on-disk rule configuration. Pointer fields mark values
// that must be present; a nil pointer after decoding is a validation problem.
type document struct {
	Version        string            `json:"version" yaml:"version"`
	Description    string            `json:"description" yaml:"description"`
	SSOT           *ssotDoc          `json:"ssot" yaml:"ssot"`
	Normalization  *normalizationDoc `json:"normalization" yaml:"normalization"`
	Scoring        *scoringDoc       `json:"scoring" yaml:"scoring"`
	PrimaryPolicy  *policyDoc        `json:"primary_policy" yaml:"primary_policy"`
	Techniques     techniqueList     `json:"techniques" yaml:"techniques"`
	GlobalExcludes []string          `json:"global_excludes" yaml:"global_excludes"`
}

type ssotDoc struct {
	SourceFile      string `json:"source_file" yaml:"source_file"`
	EnforceIDsExist *bool  `json:"enforce_ids_exist" yaml:"enforce_ids_exist"`
}

type normalizationDoc struct {
	Lowercase          *bool `json:"lowercase" yaml:"lowercase"`
	StripDiacritics    *bool `json:"strip_diacritics" yaml:"strip_diacritics"`
	RemovePunctuation  *bool `json:"remove_punctuation" yaml:"remove_punctuation"`
	CollapseWhitespace *bool `json:"collapse_whitespace" yaml:"collapse_whitespace"`
}

type scoringDoc struct {
	AnchorWeight        *float64 `json:"anchor_weight" yaml:"anchor_weight"`
	SupportWeight       *float64 `json:"support_weight" yaml:"support_weight"`
	MinScoreToConsider  *float64 `json:"min_score_to_consider" yaml:"min_score_to_consider"`
	LeafDominanceMargin *float64 `json:"leaf_dominance_margin" yaml:"leaf_dominance_margin"`
}

type preferParentDoc struct {
	MinDistinctChildMentions *int  `json:"min_distinct_child_mentions" yaml:"min_distinct_child_mentions"`
	OrParentAnchorHit        *bool `json:"or_parent_anchor_hit" yaml:"or_parent_anchor_hit"`
}

type policyDoc struct {
	PreferParentPrimaryWhen  *preferParentDoc `json:"prefer_parent_primary_when" yaml:"prefer_parent_primary_when"`
	ParentChildBonusPerChild *float64         `json:"parent_child_bonus_per_distinct_child" yaml:"parent_child_bonus_per_distinct_child"`
	ParentSelection          string           `json:"parent_selection" yaml:"parent_selection"`
}

type techniqueDoc struct {
	Naam              string   `json:"naam" yaml:"naam"`
	Kind              string   `json:"kind" yaml:"kind"`
	Emit              []string `json:"emit" yaml:"emit"`
	Anchors           []string `json:"anchors" yaml:"anchors"`
	Support           []string `json:"support" yaml:"support"`
	MinAnchorMatches  *int     `json:"min_anchor_matches" yaml:"min_anchor_matches"`
	MinSupportMatches *int     `json:"min_support_matches" yaml:"min_support_matches"`
	Notes             string   `json:"notes" yaml:"notes"`
}

var techniqueFields = map[string]bool{
	"naam": true, "kind": true, "emit": true, "anchors": true, "support": true,
	"min_anchor_matches": true, "min_support_matches": true, "notes": true,
}

type techniqueEntry struct {
	ID  string
	Doc techniqueDoc
}

// techniqueList keeps techniques in document order, which maps would lose.
type techniqueList []techniqueEntry

// shapeError marks a document that parsed but has fields of the wrong shape.
type shapeError struct {
	err error
}

func (e *shapeError) Error() string { return e.err.Error() }
func (e *shapeError) Unwrap() error { return e.err }

func (l *techniqueList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return &shapeError{errors.New("techniques must be an object keyed by technique id")}
	}

	var out techniqueList
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := keyTok.(string)
		var doc techniqueDoc
		if err := dec.Decode(&doc); err != nil {
			return &shapeError{fmt.Errorf("techniques.%s: %w", id, err)}
		}
		out = append(out, techniqueEntry{ID: id, Doc: doc})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*l = out
	return nil
}

func (l *techniqueList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &shapeError{fmt.Errorf("line %d: techniques must be a mapping keyed by technique id", node.Line)}
	}
	var out techniqueList
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.MappingNode {
			return &shapeError{fmt.Errorf("techniques.%s: line %d: expected a mapping", key.Value, val.Line)}
		}
		for j := 0; j+1 < len(val.Content); j += 2 {
			if field := val.Content[j].Value; !techniqueFields[field] {
				return &shapeError{fmt.Errorf("techniques.%s: line %d: unknown field %q", key.Value, val.Content[j].Line, field)}
			}
		}
		var doc techniqueDoc
		if err := val.Decode(&doc); err != nil {
			return &shapeError{fmt.Errorf("techniques.%s: %w", key.Value, err)}
		}
		out = append(out, techniqueEntry{ID: key.Value, Doc: doc})
	}
	*l = out
	return nil
}

// parseDocument decodes data strictly: unknown fields are rejected.
// Syntax errors are returned as-is; shape errors are wrapped in *shapeError.
func parseDocument(data []byte, format ontology.Format) (*document, error) {
	var doc document
	switch format {
	case ontology.FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			var typeErr *yaml.TypeError
			if errors.As(err, &typeErr) {
				return nil, &shapeError{err}
			}
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) || strings.HasPrefix(err.Error(), "json: unknown field") {
				return nil, &shapeError{err}
			}
			return nil, err
		}
	}
	return &doc, nil
}
