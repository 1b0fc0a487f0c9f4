package store

import (
	"context"
	"fmt"

	"github.com/ppiankov/techtag/internal/model"
)

// Approve confirms the suggestion of a suggested or pending item. The
// suggested technique becomes the confirmed technique; an item without a
// suggestion keeps its existing confirmed technique. It reports whether the
// item was in a reviewable status.
func (s *Store) Approve(ctx context.Context, id string) (bool, error) {
	return s.review(ctx, id,
		`technique_id = COALESCE(suggested_technique_id, technique_id),
             approved_technique_id = COALESCE(suggested_technique_id, technique_id)`,
		model.StatusApproved,
	)
}

// Correct replaces the suggestion of a reviewable item with replacement.
func (s *Store) Correct(ctx context.Context, id string, replacement model.TechniqueID) (bool, error) {
	return s.review(ctx, id,
		`technique_id = ?, approved_technique_id = ?`,
		model.StatusCorrected,
		string(replacement), string(replacement),
	)
}

// Reject marks a reviewable item rejected without confirming any technique.
func (s *Store) Reject(ctx context.Context, id string) (bool, error) {
	return s.review(ctx, id, "", model.StatusRejected)
}

func (s *Store) review(ctx context.Context, id, set string, to model.ReviewStatus, setArgs ...any) (bool, error) {
	statuses := model.ReviewableStatuses()
	if set != "" {
		set += ","
	}
	args := append([]any{}, setArgs...)
	args = append(args, string(to), s.timestamp(), id)
	args = append(args, statusArgs(statuses)...)

	res, err := s.execWithRetry(ctx,
		`UPDATE items
         SET `+set+` review_status = ?, needs_review = 0, updated_at = ?
         WHERE id = ? AND review_status IN (`+makePlaceholders(len(statuses))+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("%s item %s: %w", to, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BulkApproveByTechnique approves every suggested item whose suggestion is
// techniqueID and returns the count affected. Pending items are left alone.
func (s *Store) BulkApproveByTechnique(ctx context.Context, techniqueID model.TechniqueID) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE items
         SET technique_id = suggested_technique_id, approved_technique_id = suggested_technique_id,
             review_status = ?, needs_review = 0, updated_at = ?
         WHERE review_status = ? AND suggested_technique_id = ?`,
		string(model.StatusApproved), s.timestamp(),
		string(model.StatusSuggested), string(techniqueID),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk approve %s: %w", techniqueID, err)
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of items per review status. Every known
// status is present in the result.
func (s *Store) CountByStatus(ctx context.Context) (map[model.ReviewStatus]int, error) {
	rows, err := s.query(ctx, `SELECT review_status, COUNT(1) FROM items GROUP BY review_status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	stats := make(map[model.ReviewStatus]int)
	for _, st := range model.AllStatuses() {
		stats[st] = 0
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[model.ReviewStatus(status)] = count
	}
	return stats, rows.Err()
}

// TopSuggested returns the most frequent suggested techniques among items
// awaiting review.
func (s *Store) TopSuggested(ctx context.Context, limit int) ([]model.TechniqueCount, error) {
	rows, err := s.query(ctx,
		`SELECT suggested_technique_id, COUNT(1) AS n FROM items
         WHERE needs_review = 1 AND suggested_technique_id IS NOT NULL
         GROUP BY suggested_technique_id
         ORDER BY n DESC, suggested_technique_id
         LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top suggested: %w", err)
	}
	defer rows.Close()

	out := []model.TechniqueCount{}
	for rows.Next() {
		var tc model.TechniqueCount
		var id string
		if err := rows.Scan(&id, &tc.Count); err != nil {
			return nil, err
		}
		tc.TechniqueID = model.TechniqueID(id)
		out = append(out, tc)
	}
	return out, rows.Err()
}

// ReviewStats aggregates status counts, the review backlog and the top
// suggested techniques.
func (s *Store) ReviewStats(ctx context.Context, top int) (model.ReviewStats, error) {
	byStatus, err := s.CountByStatus(ctx)
	if err != nil {
		return model.ReviewStats{}, err
	}
	var needsReview int
	if err := s.queryRow(ctx, `SELECT COUNT(1) FROM items WHERE needs_review = 1`).Scan(&needsReview); err != nil {
		return model.ReviewStats{}, fmt.Errorf("count needs review: %w", err)
	}
	topSuggested, err := s.TopSuggested(ctx, top)
	if err != nil {
		return model.ReviewStats{}, err
	}
	return model.ReviewStats{
		ByStatus:     byStatus,
		NeedsReview:  needsReview,
		TopSuggested: topSuggested,
	}, nil
}

// ListForReview returns up to limit suggested or pending items ordered by
// suggested technique.
func (s *Store) ListForReview(ctx context.Context, limit int) ([]model.Item, error) {
	statuses := model.ReviewableStatuses()
	args := append(statusArgs(statuses), limit)
	return s.list(ctx,
		`SELECT `+itemColumns+` FROM items
         WHERE review_status IN (`+makePlaceholders(len(statuses))+`)
         ORDER BY suggested_technique_id, source_id, id
         LIMIT ?`,
		args...,
	)
}
