package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/techtag/internal/model"
)

func scanItem(scanner interface{ Scan(dest ...any) error }) (*model.Item, error) {
	var (
		item        model.Item
		statusStr   string
		technique   sql.NullString
		approved    sql.NullString
		suggested   sql.NullString
		mentionsRaw sql.NullString
		needsReview sql.NullInt64
		createdRaw  string
		updatedRaw  string
	)

	if err := scanner.Scan(
		&item.ID,
		&item.SourceID,
		&item.Title,
		&item.Content,
		&statusStr,
		&technique,
		&approved,
		&suggested,
		&mentionsRaw,
		&needsReview,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	status, ok := model.ParseStatus(statusStr)
	if !ok {
		return nil, fmt.Errorf("item %s: unknown review status %q", item.ID, statusStr)
	}
	item.ReviewStatus = status
	item.TechniqueID = model.TechniqueID(technique.String)
	item.ApprovedTechniqueID = model.TechniqueID(approved.String)
	item.SuggestedTechniqueID = model.TechniqueID(suggested.String)
	item.NeedsReview = needsReview.Valid && needsReview.Int64 != 0

	if mentionsRaw.Valid && mentionsRaw.String != "" {
		if err := json.Unmarshal([]byte(mentionsRaw.String), &item.SuggestedMentions); err != nil {
			return nil, fmt.Errorf("item %s: decode mentions: %w", item.ID, err)
		}
	}

	var err error
	if item.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, fmt.Errorf("item %s: %w", item.ID, err)
	}
	if item.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return nil, fmt.Errorf("item %s: %w", item.ID, err)
	}
	return &item, nil
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

func nullableID(id model.TechniqueID) any {
	if id == "" {
		return nil
	}
	return string(id)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
