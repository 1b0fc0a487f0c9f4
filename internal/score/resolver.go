package score

import "github.com/ppiankov/techtag/internal/model"

// Resolver picks the primary technique and the mentions for a chunk
type Resolver struct{}

// NewResolver creates a new resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve turns scored matches into a tagging result.
//
// The best leaf (technique or theme) is the default primary. A parent of the
// matched ids can take over when enough distinct children matched, or when it
// anchor-matched itself and the policy allows that, provided its candidacy
// score beats the leaf score minus the dominance margin. Without any primary
// the highest-scoring match wins. The primary is always among the mentions.
func (r *Resolver) Resolve(matches []model.Match, policy model.PrimaryPolicy, scoring model.ScoringConfig) model.TaggingResult {
	result := model.TaggingResult{
		Mentions: []model.TechniqueID{},
		Scores:   map[model.TechniqueID]float64{},
	}
	if len(matches) == 0 {
		return result
	}

	byID := make(map[model.TechniqueID]model.Match, len(matches))
	for _, m := range matches {
		if _, dup := byID[m.ID]; dup {
			continue
		}
		byID[m.ID] = m
		result.Mentions = append(result.Mentions, m.ID)
		result.Scores[m.ID] = m.Score
	}

	leafScore := 0.0
	if leaf, ok := bestLeaf(matches); ok {
		result.Primary = leaf.ID
		leafScore = leaf.Score
	}

	var (
		chosenParent bool
		chosenScore  float64
	)
	for _, parent := range candidateParents(result.Mentions) {
		children := distinctChildren(parent, result.Mentions)
		own, matched := byID[parent]
		anchorHit := matched && own.AnchorHits > 0

		if children < policy.MinDistinctChildMentions && !(policy.PreferParentOnAnchorHit && anchorHit) {
			continue
		}

		parentScore := float64(children) * policy.ParentChildBonusPerChild
		if matched {
			parentScore += own.Score
		}
		if parentScore <= leafScore-scoring.LeafDominanceMargin {
			continue
		}

		if policy.ParentSelection == model.ParentSelectionBest && chosenParent && parentScore <= chosenScore {
			continue
		}
		result.Primary = parent
		chosenParent = true
		chosenScore = parentScore
	}

	if result.Primary == "" {
		result.Primary = highest(matches).ID
	}
	if !result.Mentioned(result.Primary) {
		result.Mentions = append(result.Mentions, result.Primary)
	}

	return result
}

// bestLeaf returns the highest-scoring leaf-kind match; the first one seen wins ties
func bestLeaf(matches []model.Match) (model.Match, bool) {
	var (
		best  model.Match
		found bool
	)
	for _, m := range matches {
		if !m.Kind.LeafEligible() {
			continue
		}
		if !found || m.Score > best.Score {
			best = m
			found = true
		}
	}
	return best, found
}

// highest returns the highest-scoring match of any kind; the first one seen wins ties
func highest(matches []model.Match) model.Match {
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Score > best.Score {
			best = m
		}
	}
	return best
}

// candidateParents lists the grandparent and parent of every mention, in
// mention order, without duplicates. Deeper parents come later so that they
// win under last-qualifying selection.
func candidateParents(mentions []model.TechniqueID) []model.TechniqueID {
	seen := make(map[model.TechniqueID]bool)
	var out []model.TechniqueID
	add := func(id model.TechniqueID) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range mentions {
		add(id.Grandparent())
		add(id.Parent())
	}
	return out
}

// distinctChildren counts mentions anywhere below parent
func distinctChildren(parent model.TechniqueID, mentions []model.TechniqueID) int {
	n := 0
	for _, id := range mentions {
		if id.IsChildOf(parent) {
			n++
		}
	}
	return n
}
