package model

// Match is a technique that cleared its rule thresholds for one chunk.
type Match struct {
	ID             TechniqueID `json:"id"`
	Kind           Kind        `json:"kind"`
	AnchorHits     int         `json:"anchor_hits"`
	SupportHits    int         `json:"support_hits"`
	Score          float64     `json:"score"`
	MatchedAnchors []string    `json:"matched_anchors,omitempty"`
	MatchedSupport []string    `json:"matched_support,omitempty"`
}

// TaggingResult is the outcome of resolving a chunk's matches.
// Primary is empty when nothing matched.
type TaggingResult struct {
	Primary  TechniqueID             `json:"primary,omitempty"`
	Mentions []TechniqueID           `json:"mentions"`
	Scores   map[TechniqueID]float64 `json:"scores"`
}

// HasPrimary reports whether a primary technique was selected.
func (r TaggingResult) HasPrimary() bool {
	return r.Primary != ""
}

// Mentioned reports whether id is among the mentions.
func (r TaggingResult) Mentioned(id TechniqueID) bool {
	for _, m := range r.Mentions {
		if m == id {
			return true
		}
	}
	return false
}

// Analysis bundles a tagging result with the intermediate data that produced it.
type Analysis struct {
	Normalized string        `json:"normalized"`
	Matches    []Match       `json:"matches"`
	Result     TaggingResult `json:"result"`
}
