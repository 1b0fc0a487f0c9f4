package model

import "strings"

// TechniqueID is a hierarchical dotted identifier such as "4.2.3".
// Parent relationships are purely lexical.
type TechniqueID string

// Parent returns the id with its last dotted segment removed, or "" for a root id.
func (id TechniqueID) Parent() TechniqueID {
	i := strings.LastIndexByte(string(id), '.')
	if i <= 0 {
		return ""
	}
	return id[:i]
}

// Grandparent returns the parent of the parent, or "".
func (id TechniqueID) Grandparent() TechniqueID {
	p := id.Parent()
	if p == "" {
		return ""
	}
	return p.Parent()
}

// IsChildOf reports whether id lives anywhere below parent in the hierarchy.
func (id TechniqueID) IsChildOf(parent TechniqueID) bool {
	return parent != "" && strings.HasPrefix(string(id), string(parent)+".")
}

// Kind classifies a technique rule. Phase and overview are coarse ancestor
// categories; only technique and theme may win as leaf primary.
type Kind string

const (
	KindPhase     Kind = "phase"
	KindOverview  Kind = "overview"
	KindTechnique Kind = "technique"
	KindTheme     Kind = "theme"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPhase, KindOverview, KindTechnique, KindTheme:
		return true
	}
	return false
}

// LeafEligible reports whether rules of this kind can be picked as best leaf.
func (k Kind) LeafEligible() bool {
	return k == KindTechnique || k == KindTheme
}

// Phrase is a configured anchor or support phrase. Normalized is computed once
// at load time with the rule set's normalization options.
type Phrase struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
}

// TechniqueRule is the compiled per-technique configuration.
type TechniqueRule struct {
	ID                TechniqueID `json:"id"`
	Name              string      `json:"name,omitempty"`
	Kind              Kind        `json:"kind"`
	Anchors           []Phrase    `json:"anchors"`
	Support           []Phrase    `json:"support"`
	MinAnchorMatches  int         `json:"min_anchor_matches"`
	MinSupportMatches int         `json:"min_support_matches"`
	Notes             string      `json:"notes,omitempty"`
}

// ScoringConfig holds the weights and thresholds used by the scorer and resolver.
type ScoringConfig struct {
	AnchorWeight        float64 `json:"anchor_weight"`
	SupportWeight       float64 `json:"support_weight"`
	MinScoreToConsider  float64 `json:"min_score_to_consider"`
	LeafDominanceMargin float64 `json:"leaf_dominance_margin"`
}

// ParentSelection decides which qualifying parent wins when several qualify.
type ParentSelection string

const (
	// ParentSelectionLast keeps the last qualifying candidate in evaluation order.
	ParentSelectionLast ParentSelection = "last"
	// ParentSelectionBest keeps the qualifying candidate with the highest parent score.
	ParentSelectionBest ParentSelection = "best"
)

// PrimaryPolicy controls when a parent technique may override the best leaf.
type PrimaryPolicy struct {
	MinDistinctChildMentions int             `json:"min_distinct_child_mentions"`
	PreferParentOnAnchorHit  bool            `json:"prefer_parent_on_anchor_hit"`
	ParentChildBonusPerChild float64         `json:"parent_child_bonus_per_distinct_child"`
	ParentSelection          ParentSelection `json:"parent_selection"`
}

// NormalizationOptions toggles the steps of text normalization.
type NormalizationOptions struct {
	Lowercase          bool `json:"lowercase"`
	StripDiacritics    bool `json:"strip_diacritics"`
	CollapseWhitespace bool `json:"collapse_whitespace"`
	StripPunctuation   bool `json:"strip_punctuation"`
}

// RuleSet is a validated, compiled rule configuration. Rules keep document order,
// which is the tie-break order for leaf selection and fallback.
type RuleSet struct {
	Version       string               `json:"version,omitempty"`
	Description   string               `json:"description,omitempty"`
	Source        string               `json:"source,omitempty"`
	Normalization NormalizationOptions `json:"normalization"`
	Scoring       ScoringConfig        `json:"scoring"`
	Policy        PrimaryPolicy        `json:"primary_policy"`
	Rules         []TechniqueRule      `json:"techniques"`

	index map[TechniqueID]int
}

// NewRuleSet builds a rule set and indexes its rules by id.
func NewRuleSet(rules []TechniqueRule) *RuleSet {
	rs := &RuleSet{Rules: rules}
	rs.reindex()
	return rs
}

func (rs *RuleSet) reindex() {
	rs.index = make(map[TechniqueID]int, len(rs.Rules))
	for i, r := range rs.Rules {
		rs.index[r.ID] = i
	}
}

// Rule looks up a rule by id.
func (rs *RuleSet) Rule(id TechniqueID) (TechniqueRule, bool) {
	i := rs.Order(id)
	if i < 0 {
		return TechniqueRule{}, false
	}
	return rs.Rules[i], true
}

// Order returns the position of id in configuration order, or -1.
func (rs *RuleSet) Order(id TechniqueID) int {
	if rs.index != nil {
		if i, ok := rs.index[id]; ok {
			return i
		}
		return -1
	}
	for i, r := range rs.Rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// IDs returns the rule ids in configuration order.
func (rs *RuleSet) IDs() []TechniqueID {
	ids := make([]TechniqueID, len(rs.Rules))
	for i, r := range rs.Rules {
		ids[i] = r.ID
	}
	return ids
}
