package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/techtag/internal/model"
)

const itemColumns = `id, source_id, title, content, review_status, technique_id,
    approved_technique_id, suggested_technique_id, suggested_mentions, needs_review,
    created_at, updated_at`

// AddItem inserts a new item. Missing ids are generated; a missing status
// defaults to untagged.
func (s *Store) AddItem(ctx context.Context, item *model.Item) error {
	if strings.TrimSpace(item.Content) == "" {
		return fmt.Errorf("add item: content is required")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.ReviewStatus == "" {
		item.ReviewStatus = model.StatusUntagged
	}
	if _, ok := model.ParseStatus(string(item.ReviewStatus)); !ok {
		return fmt.Errorf("add item %s: invalid review status %q", item.ID, item.ReviewStatus)
	}
	mentions, err := encodeMentions(item.SuggestedMentions)
	if err != nil {
		return fmt.Errorf("add item %s: %w", item.ID, err)
	}

	now := s.timestamp()
	_, err = s.execWithRetry(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.SourceID,
		item.Title,
		item.Content,
		string(item.ReviewStatus),
		nullableID(item.TechniqueID),
		nullableID(item.ApprovedTechniqueID),
		nullableID(item.SuggestedTechniqueID),
		mentions,
		boolToInt(item.NeedsReview),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("add item %s: %w", item.ID, err)
	}
	item.CreatedAt, _ = parseTime(now)
	item.UpdatedAt = item.CreatedAt
	return nil
}

// GetItem returns the item with id, or nil when it does not exist.
func (s *Store) GetItem(ctx context.Context, id string) (*model.Item, error) {
	row := s.queryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListAll returns every item ordered by creation.
func (s *Store) ListAll(ctx context.Context) ([]model.Item, error) {
	return s.list(ctx, `SELECT `+itemColumns+` FROM items ORDER BY created_at, id`)
}

// FetchUntagged returns up to limit untagged items that carry neither a
// confirmed technique nor a suggestion, oldest first.
func (s *Store) FetchUntagged(ctx context.Context, limit int) ([]model.Item, error) {
	if limit <= 0 {
		return []model.Item{}, nil
	}
	return s.list(ctx,
		`SELECT `+itemColumns+` FROM items
         WHERE review_status = ?
           AND (technique_id IS NULL OR technique_id = '')
           AND (suggested_technique_id IS NULL OR suggested_technique_id = '')
         ORDER BY created_at, id
         LIMIT ?`,
		string(model.StatusUntagged), limit,
	)
}

// SaveSuggestion records a tagging result on an untagged item and moves it
// to suggested. It returns ErrConflict when the item is no longer untagged.
func (s *Store) SaveSuggestion(ctx context.Context, id string, result model.TaggingResult) error {
	if !result.HasPrimary() {
		return fmt.Errorf("save suggestion %s: result has no primary", id)
	}
	mentions, err := encodeMentions(result.Mentions)
	if err != nil {
		return fmt.Errorf("save suggestion %s: %w", id, err)
	}

	res, err := s.execWithRetry(ctx,
		`UPDATE items
         SET suggested_technique_id = ?, suggested_mentions = ?, review_status = ?,
             needs_review = 1, updated_at = ?
         WHERE id = ? AND review_status = ?`,
		string(result.Primary), mentions, string(model.StatusSuggested), s.timestamp(),
		id, string(model.StatusUntagged),
	)
	if err != nil {
		return fmt.Errorf("save suggestion %s: %w", id, err)
	}
	return s.expectOne(ctx, res, id)
}

// ResetSuggestions reverts every suggested or pending item to untagged and
// clears its suggestion. It returns the number of items reset.
func (s *Store) ResetSuggestions(ctx context.Context) (int64, error) {
	statuses := model.ReviewableStatuses()
	args := append([]any{string(model.StatusUntagged), s.timestamp()}, statusArgs(statuses)...)
	res, err := s.execWithRetry(ctx,
		`UPDATE items
         SET review_status = ?, suggested_technique_id = NULL, suggested_mentions = NULL,
             needs_review = 0, updated_at = ?
         WHERE review_status IN (`+makePlaceholders(len(statuses))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset suggestions: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]model.Item, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// expectOne maps a conditional update that touched no row to ErrNotFound or
// ErrConflict.
func (s *Store) expectOne(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("item %s is %s: %w", id, item.ReviewStatus, ErrConflict)
}

func encodeMentions(ids []model.TechniqueID) (any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode mentions: %w", err)
	}
	return string(data), nil
}
