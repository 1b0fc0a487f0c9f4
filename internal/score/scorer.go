package score

import (
	"github.com/ppiankov/techtag/internal/model"
	"github.com/ppiankov/techtag/internal/normalize"
)

// Scorer evaluates technique rules against normalized text
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score evaluates every rule against an already normalized chunk and returns
// the qualifying matches in rule configuration order. It is pure: the same
// chunk and rule set always yield the same matches.
func (s *Scorer) Score(normalized string, rs *model.RuleSet) []model.Match {
	var matches []model.Match

	for _, rule := range rs.Rules {
		// 1. Anchor hits
		anchors := matchedPhrases(normalized, rule.Anchors)

		// 2. Support hits
		support := matchedPhrases(normalized, rule.Support)

		// 3. Per-rule gates
		if len(anchors) < rule.MinAnchorMatches || len(support) < rule.MinSupportMatches {
			continue
		}

		// 4. Weighted score, 5. noise floor
		score := float64(len(anchors))*rs.Scoring.AnchorWeight + float64(len(support))*rs.Scoring.SupportWeight
		if score < rs.Scoring.MinScoreToConsider {
			continue
		}

		matches = append(matches, model.Match{
			ID:             rule.ID,
			Kind:           rule.Kind,
			AnchorHits:     len(anchors),
			SupportHits:    len(support),
			Score:          score,
			MatchedAnchors: anchors,
			MatchedSupport: support,
		})
	}

	return matches
}

// matchedPhrases returns the raw form of every phrase contained in text
func matchedPhrases(text string, phrases []model.Phrase) []string {
	var hits []string
	for _, p := range phrases {
		if normalize.Contains(text, p.Normalized) {
			hits = append(hits, p.Raw)
		}
	}
	return hits
}
