package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/techtag/internal/model"
	"github.com/ppiankov/techtag/internal/normalize"
	"github.com/ppiankov/techtag/internal/ontology"
)

const (
	defaultMinAnchorMatches  = 1
	defaultMinSupportMatches = 0
)

// Compile parses, validates and compiles a rule document against the given
// ontology ids. Unreadable documents yield *model.ConfigError; documents that
// parse but reference unknown ids or have missing or malformed fields yield
// *model.ValidationError listing every problem found.
func Compile(data []byte, format ontology.Format, source string, ids ontology.IDSet) (*model.RuleSet, error) {
	rs, _, err := compile(data, format, source, ids)
	return rs, err
}

// compile is Compile plus non-fatal notes about accepted but unused settings.
func compile(data []byte, format ontology.Format, source string, ids ontology.IDSet) (*model.RuleSet, []string, error) {
	doc, err := parseDocument(data, format)
	if err != nil {
		var shape *shapeError
		if errors.As(err, &shape) {
			return nil, nil, &model.ValidationError{Source: source, Problems: []string{shape.Error()}}
		}
		return nil, nil, &model.ConfigError{Source: source, Err: err}
	}

	c := &compiler{source: source, ids: ids}
	rs := c.compile(doc)
	if err := c.err(); err != nil {
		return nil, nil, err
	}

	var notes []string
	if doc.SSOT != nil && doc.SSOT.EnforceIDsExist != nil && !*doc.SSOT.EnforceIDsExist {
		notes = append(notes, "ssot.enforce_ids_exist=false ignored: ids are always validated")
	}
	if len(doc.GlobalExcludes) > 0 {
		notes = append(notes, fmt.Sprintf("global_excludes (%d phrases) are not used for scoring", len(doc.GlobalExcludes)))
	}
	return rs, notes, nil
}

type compiler struct {
	source   string
	ids      ontology.IDSet
	invalid  map[string]bool
	problems []string
}

func (c *compiler) problemf(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

func (c *compiler) err() error {
	if len(c.invalid) == 0 && len(c.problems) == 0 {
		return nil
	}
	invalid := make([]string, 0, len(c.invalid))
	for id := range c.invalid {
		invalid = append(invalid, id)
	}
	sort.Strings(invalid)
	return &model.ValidationError{Source: c.source, InvalidIDs: invalid, Problems: c.problems}
}

func (c *compiler) compile(doc *document) *model.RuleSet {
	norm := c.normalization(doc.Normalization)
	scoring := c.scoring(doc.Scoring)
	policy := c.policy(doc.PrimaryPolicy)

	if len(doc.Techniques) == 0 {
		c.problemf("techniques: at least one technique is required")
	}

	seen := make(map[string]bool, len(doc.Techniques))
	rules := make([]model.TechniqueRule, 0, len(doc.Techniques))
	for _, entry := range doc.Techniques {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			c.problemf("techniques: empty technique id")
			continue
		}
		if seen[id] {
			c.problemf("techniques.%s: duplicate technique id", id)
			continue
		}
		seen[id] = true
		if !c.ids.Has(model.TechniqueID(id)) {
			if c.invalid == nil {
				c.invalid = make(map[string]bool)
			}
			c.invalid[id] = true
		}
		rules = append(rules, c.technique(id, entry.Doc, norm))
	}

	rs := model.NewRuleSet(rules)
	rs.Version = doc.Version
	rs.Description = doc.Description
	rs.Source = c.source
	rs.Normalization = norm
	rs.Scoring = scoring
	rs.Policy = policy
	return rs
}

func (c *compiler) normalization(d *normalizationDoc) model.NormalizationOptions {
	if d == nil {
		c.problemf("normalization: block is required")
		return model.NormalizationOptions{}
	}
	return model.NormalizationOptions{
		Lowercase:          c.requireBool("normalization.lowercase", d.Lowercase),
		StripDiacritics:    c.requireBool("normalization.strip_diacritics", d.StripDiacritics),
		StripPunctuation:   c.requireBool("normalization.remove_punctuation", d.RemovePunctuation),
		CollapseWhitespace: c.requireBool("normalization.collapse_whitespace", d.CollapseWhitespace),
	}
}

func (c *compiler) scoring(d *scoringDoc) model.ScoringConfig {
	if d == nil {
		c.problemf("scoring: block is required")
		return model.ScoringConfig{}
	}
	return model.ScoringConfig{
		AnchorWeight:        c.requireNonNegative("scoring.anchor_weight", d.AnchorWeight),
		SupportWeight:       c.requireNonNegative("scoring.support_weight", d.SupportWeight),
		MinScoreToConsider:  c.requireNonNegative("scoring.min_score_to_consider", d.MinScoreToConsider),
		LeafDominanceMargin: c.requireNonNegative("scoring.leaf_dominance_margin", d.LeafDominanceMargin),
	}
}

func (c *compiler) policy(d *policyDoc) model.PrimaryPolicy {
	if d == nil {
		c.problemf("primary_policy: block is required")
		return model.PrimaryPolicy{}
	}
	var p model.PrimaryPolicy
	if d.PreferParentPrimaryWhen == nil {
		c.problemf("primary_policy.prefer_parent_primary_when: block is required")
	} else {
		when := d.PreferParentPrimaryWhen
		if when.MinDistinctChildMentions == nil {
			c.problemf("primary_policy.prefer_parent_primary_when.min_distinct_child_mentions: required")
		} else if *when.MinDistinctChildMentions < 0 {
			c.problemf("primary_policy.prefer_parent_primary_when.min_distinct_child_mentions: must not be negative")
		} else {
			p.MinDistinctChildMentions = *when.MinDistinctChildMentions
		}
		p.PreferParentOnAnchorHit = c.requireBool("primary_policy.prefer_parent_primary_when.or_parent_anchor_hit", when.OrParentAnchorHit)
	}
	p.ParentChildBonusPerChild = c.requireNonNegative("primary_policy.parent_child_bonus_per_distinct_child", d.ParentChildBonusPerChild)

	switch model.ParentSelection(d.ParentSelection) {
	case "", model.ParentSelectionLast:
		p.ParentSelection = model.ParentSelectionLast
	case model.ParentSelectionBest:
		p.ParentSelection = model.ParentSelectionBest
	default:
		c.problemf("primary_policy.parent_selection: must be %q or %q, got %q",
			model.ParentSelectionLast, model.ParentSelectionBest, d.ParentSelection)
	}
	return p
}

func (c *compiler) technique(id string, d techniqueDoc, norm model.NormalizationOptions) model.TechniqueRule {
	field := "techniques." + id
	kind := model.Kind(d.Kind)
	if d.Kind == "" {
		c.problemf("%s.kind: required", field)
	} else if !kind.Valid() {
		c.problemf("%s.kind: unknown kind %q", field, d.Kind)
	}

	rule := model.TechniqueRule{
		ID:                model.TechniqueID(id),
		Name:              d.Naam,
		Kind:              kind,
		Anchors:           c.phrases(field+".anchors", d.Anchors, norm),
		Support:           c.phrases(field+".support", d.Support, norm),
		MinAnchorMatches:  defaultMinAnchorMatches,
		MinSupportMatches: defaultMinSupportMatches,
		Notes:             d.Notes,
	}
	if d.MinAnchorMatches != nil {
		if *d.MinAnchorMatches < 0 {
			c.problemf("%s.min_anchor_matches: must not be negative", field)
		}
		rule.MinAnchorMatches = *d.MinAnchorMatches
	}
	if d.MinSupportMatches != nil {
		if *d.MinSupportMatches < 0 {
			c.problemf("%s.min_support_matches: must not be negative", field)
		}
		rule.MinSupportMatches = *d.MinSupportMatches
	}
	return rule
}

func (c *compiler) phrases(field string, raw []string, norm model.NormalizationOptions) []model.Phrase {
	out := make([]model.Phrase, 0, len(raw))
	for i, p := range raw {
		n := normalize.Text(p, norm)
		if strings.TrimSpace(n) == "" {
			c.problemf("%s[%d]: phrase %q is empty after normalization", field, i, p)
			continue
		}
		out = append(out, model.Phrase{Raw: p, Normalized: n})
	}
	return out
}

func (c *compiler) requireBool(field string, v *bool) bool {
	if v == nil {
		c.problemf("%s: required", field)
		return false
	}
	return *v
}

func (c *compiler) requireNonNegative(field string, v *float64) float64 {
	if v == nil {
		c.problemf("%s: required", field)
		return 0
	}
	if *v < 0 {
		c.problemf("%s: must not be negative", field)
	}
	return *v
}
