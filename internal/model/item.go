package model

import "time"

// ReviewStatus is the human-review lifecycle state of a classifiable item.
type ReviewStatus string

const (
	StatusUntagged  ReviewStatus = "untagged"
	StatusSuggested ReviewStatus = "suggested"
	StatusPending   ReviewStatus = "pending"
	StatusApproved  ReviewStatus = "approved"
	StatusCorrected ReviewStatus = "corrected"
	StatusRejected  ReviewStatus = "rejected"
)

var allStatuses = []ReviewStatus{
	StatusUntagged,
	StatusSuggested,
	StatusPending,
	StatusApproved,
	StatusCorrected,
	StatusRejected,
}

// AllStatuses returns every review status in lifecycle order.
func AllStatuses() []ReviewStatus {
	out := make([]ReviewStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (ReviewStatus, bool) {
	for _, s := range allStatuses {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Reviewable reports whether a reviewer may act on items in this status.
func (s ReviewStatus) Reviewable() bool {
	return s == StatusSuggested || s == StatusPending
}

// Terminal reports whether the status ends the review lifecycle.
func (s ReviewStatus) Terminal() bool {
	return s == StatusApproved || s == StatusCorrected || s == StatusRejected
}

// ReviewableStatuses lists the statuses that accept review decisions.
func ReviewableStatuses() []ReviewStatus {
	return []ReviewStatus{StatusSuggested, StatusPending}
}

var transitions = map[ReviewStatus][]ReviewStatus{
	StatusUntagged:  {StatusSuggested},
	StatusSuggested: {StatusApproved, StatusCorrected, StatusRejected, StatusUntagged},
	StatusPending:   {StatusApproved, StatusCorrected, StatusRejected, StatusUntagged},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to ReviewStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Item is a classifiable chunk of text tracked by the store.
type Item struct {
	ID                   string        `json:"id"`
	SourceID             string        `json:"source_id,omitempty"`
	Title                string        `json:"title,omitempty"`
	Content              string        `json:"content"`
	ReviewStatus         ReviewStatus  `json:"review_status"`
	TechniqueID          TechniqueID   `json:"technique_id,omitempty"`
	ApprovedTechniqueID  TechniqueID   `json:"approved_technique_id,omitempty"`
	SuggestedTechniqueID TechniqueID   `json:"suggested_technique_id,omitempty"`
	SuggestedMentions    []TechniqueID `json:"suggested_mentions,omitempty"`
	NeedsReview          bool          `json:"needs_review"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// TagSource describes where an item's effective technique came from.
func (it Item) TagSource() string {
	switch {
	case it.TechniqueID != "":
		return "confirmed"
	case it.SuggestedTechniqueID != "":
		return "heuristic_suggested"
	default:
		return "untagged"
	}
}

// EffectiveTechnique returns the confirmed technique, falling back to the suggestion.
func (it Item) EffectiveTechnique() TechniqueID {
	if it.TechniqueID != "" {
		return it.TechniqueID
	}
	return it.SuggestedTechniqueID
}

// TechniqueCount pairs a technique id with an item count.
type TechniqueCount struct {
	TechniqueID TechniqueID `json:"technique_id"`
	Count       int         `json:"count"`
}

// ReviewStats summarizes the review queue.
type ReviewStats struct {
	ByStatus     map[ReviewStatus]int `json:"by_status"`
	NeedsReview  int                  `json:"needs_review"`
	TopSuggested []TechniqueCount     `json:"top_suggested"`
}
