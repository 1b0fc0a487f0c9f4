// Package review moves suggested classifications to a confirmed state.
package review

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/techtag/internal/metrics"
	"github.com/ppiankov/techtag/internal/model"
	"github.com/ppiankov/techtag/internal/ontology"
)

// TopSuggestedLimit is how many suggested techniques Stats reports.
const TopSuggestedLimit = 15

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 50

// ErrItemNotFound is returned when the addressed item does not exist.
var ErrItemNotFound = errors.New("item not found")

// TransitionError reports a review decision the item's status does not allow.
type TransitionError struct {
	ItemID string
	From   model.ReviewStatus
	To     model.ReviewStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("item %s: cannot move from %s to %s", e.ItemID, e.From, e.To)
}

// Store is the persistence the reviewer acts on.
type Store interface {
	GetItem(ctx context.Context, id string) (*model.Item, error)
	Approve(ctx context.Context, id string) (bool, error)
	Correct(ctx context.Context, id string, replacement model.TechniqueID) (bool, error)
	Reject(ctx context.Context, id string) (bool, error)
	BulkApproveByTechnique(ctx context.Context, techniqueID model.TechniqueID) (int64, error)
	ReviewStats(ctx context.Context, top int) (model.ReviewStats, error)
	ListForReview(ctx context.Context, limit int) ([]model.Item, error)
}

// IDSource supplies the known technique ids.
type IDSource interface {
	LoadIDs() (ontology.IDSet, error)
}

// Reviewer applies review decisions.
type Reviewer struct {
	store  Store
	ids    IDSource
	logger *zap.Logger
}

// NewReviewer creates a reviewer. Technique ids supplied by reviewers are
// checked against ids; a nil ids skips that check.
func NewReviewer(store Store, ids IDSource, logger *zap.Logger) *Reviewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reviewer{store: store, ids: ids, logger: logger.Named("review")}
}

// Approve confirms the item's suggested technique.
func (r *Reviewer) Approve(ctx context.Context, id string) (*model.Item, error) {
	return r.transition(ctx, id, model.StatusApproved, func() (bool, error) {
		return r.store.Approve(ctx, id)
	})
}

// Reject dismisses the item's suggestion. With a replacement the item is
// corrected to that technique; without one it is rejected and no technique
// is confirmed.
func (r *Reviewer) Reject(ctx context.Context, id string, replacement model.TechniqueID) (*model.Item, error) {
	if replacement == "" {
		return r.transition(ctx, id, model.StatusRejected, func() (bool, error) {
			return r.store.Reject(ctx, id)
		})
	}
	if err := r.checkID(replacement); err != nil {
		return nil, err
	}
	return r.transition(ctx, id, model.StatusCorrected, func() (bool, error) {
		return r.store.Correct(ctx, id, replacement)
	})
}

// BulkApproveByTechnique approves every suggested item whose suggestion is
// techniqueID and returns how many were approved. The id is matched against
// stored suggestions only, so suggestions for ids since removed from the
// ontology can still be approved.
func (r *Reviewer) BulkApproveByTechnique(ctx context.Context, techniqueID model.TechniqueID) (int64, error) {
	if techniqueID == "" {
		return 0, &model.ValidationError{Source: "review", Problems: []string{"technique id is required"}}
	}
	n, err := r.store.BulkApproveByTechnique(ctx, techniqueID)
	if err != nil {
		return 0, err
	}
	metrics.ReviewTransitionsTotal.WithLabelValues(string(model.StatusApproved)).Add(float64(n))
	r.logger.Info("bulk approved",
		zap.String("technique_id", string(techniqueID)),
		zap.Int64("items", n),
	)
	return n, nil
}

// Stats summarizes the review queue.
func (r *Reviewer) Stats(ctx context.Context) (model.ReviewStats, error) {
	return r.store.ReviewStats(ctx, TopSuggestedLimit)
}

// List returns items awaiting review.
func (r *Reviewer) List(ctx context.Context, limit int) ([]model.Item, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return r.store.ListForReview(ctx, limit)
}

func (r *Reviewer) transition(ctx context.Context, id string, to model.ReviewStatus, apply func() (bool, error)) (*model.Item, error) {
	item, err := r.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrItemNotFound)
	}
	if !model.CanTransition(item.ReviewStatus, to) {
		return nil, &TransitionError{ItemID: id, From: item.ReviewStatus, To: to}
	}

	ok, err := apply()
	if err != nil {
		return nil, err
	}
	if !ok {
		// Status changed between the read and the conditional update.
		current, err := r.store.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, fmt.Errorf("%s: %w", id, ErrItemNotFound)
		}
		return nil, &TransitionError{ItemID: id, From: current.ReviewStatus, To: to}
	}

	metrics.ReviewTransitionsTotal.WithLabelValues(string(to)).Inc()
	r.logger.Info("review transition",
		zap.String("item_id", id),
		zap.String("from", string(item.ReviewStatus)),
		zap.String("to", string(to)),
	)

	updated, err := r.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrItemNotFound)
	}
	return updated, nil
}

func (r *Reviewer) checkID(id model.TechniqueID) error {
	if r.ids == nil {
		return nil
	}
	known, err := r.ids.LoadIDs()
	if err != nil {
		return err
	}
	if !known.Has(id) {
		return &model.ValidationError{Source: "review", InvalidIDs: []string{string(id)}}
	}
	return nil
}
