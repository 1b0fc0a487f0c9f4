package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/techtag/internal/model"
	"github.com/ppiankov/techtag/internal/normalize"
	"github.com/ppiankov/techtag/internal/pipeline"
)

type fakeStore struct {
	mu        sync.Mutex
	items     []model.Item
	saved     map[string]model.TaggingResult
	saveErr   map[string]error
	fetchErr  error
	lastLimit int
}

func newFakeStore(items ...model.Item) *fakeStore {
	return &fakeStore{
		items:   items,
		saved:   make(map[string]model.TaggingResult),
		saveErr: make(map[string]error),
	}
}

func (s *fakeStore) FetchUntagged(_ context.Context, limit int) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []model.Item
	for _, it := range s.items {
		if len(out) == limit {
			break
		}
		if it.ReviewStatus == model.StatusUntagged {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveSuggestion(_ context.Context, id string, result model.TaggingResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveErr[id]; err != nil {
		return err
	}
	s.saved[id] = result
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].ReviewStatus = model.StatusSuggested
			s.items[i].SuggestedTechniqueID = result.Primary
		}
	}
	return nil
}

func (s *fakeStore) ResetSuggestions(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.items {
		if s.items[i].ReviewStatus.Reviewable() {
			s.items[i].ReviewStatus = model.StatusUntagged
			s.items[i].SuggestedTechniqueID = ""
			n++
		}
	}
	return n, nil
}

type staticRules struct {
	rs  *model.RuleSet
	err error
}

func (r *staticRules) LoadConfig() (*model.RuleSet, error) { return r.rs, r.err }
func (r *staticRules) Invalidate()                         {}

func phrases(raw ...string) []model.Phrase {
	out := make([]model.Phrase, len(raw))
	for i, p := range raw {
		out[i] = model.Phrase{Raw: p, Normalized: normalize.Text(p, normalize.Full)}
	}
	return out
}

func testEngine(err error) *pipeline.Engine {
	rs := model.NewRuleSet([]model.TechniqueRule{
		{ID: "2.1", Kind: model.KindTechnique, Anchors: phrases("pingpongtechniek"), MinAnchorMatches: 1},
		{ID: "3.1.1", Kind: model.KindTechnique, Anchors: phrases("roux"), MinAnchorMatches: 1},
		{ID: "3.1.2", Kind: model.KindTechnique, Anchors: phrases("binden"), MinAnchorMatches: 1},
	})
	rs.Normalization = normalize.Full
	rs.Scoring = model.ScoringConfig{AnchorWeight: 1, SupportWeight: 0.3, MinScoreToConsider: 1, LeafDominanceMargin: 0.1}
	rs.Policy = model.PrimaryPolicy{MinDistinctChildMentions: 2, PreferParentOnAnchorHit: true, ParentChildBonusPerChild: 0.5}
	if err != nil {
		rs = nil
	}
	return pipeline.NewEngine(&staticRules{rs: rs, err: err}, nil, nil)
}

func untagged(id, content string) model.Item {
	return model.Item{ID: id, Content: content, ReviewStatus: model.StatusUntagged}
}

func newProcessor(store ItemStore, classifier Classifier, workers int) *BatchProcessor {
	return NewBatchProcessor(store, classifier, model.BatchConfig{MaxItems: 500, Workers: workers}, nil)
}

func TestClassifyBatch_Outcomes(t *testing.T) {
	store := newFakeStore(
		untagged("a", "De pingpongtechniek in actie"),
		untagged("b", "Vandaag gaan we binden met een roux"),
		untagged("c", "Niets relevants hier"),
	)

	report, err := newProcessor(store, testEngine(nil), 2).ClassifyBatch(context.Background(), 10)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Suggested)
	assert.Equal(t, 1, report.NoMatch)
	assert.Empty(t, report.Errors)
	assert.False(t, report.Cancelled)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	assert.Equal(t, model.TechniqueID("2.1"), store.saved["a"].Primary)
	assert.Equal(t, model.TechniqueID("3.1"), store.saved["b"].Primary)
	assert.ElementsMatch(t, []model.TechniqueID{"3.1.1", "3.1.2", "3.1"}, store.saved["b"].Mentions)
	_, saved := store.saved["c"]
	assert.False(t, saved, "no-match items stay untagged")
}

func TestClassifyBatch_ItemErrorsDoNotAbort(t *testing.T) {
	store := newFakeStore(
		untagged("a", "pingpongtechniek"),
		untagged("b", "pingpongtechniek"),
		untagged("c", "bad \xff bytes"),
		untagged("d", "pingpongtechniek"),
		untagged("e", " \t\n "),
	)
	store.saveErr["b"] = errors.New("disk full")

	report, err := newProcessor(store, testEngine(nil), 3).ClassifyBatch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Processed)
	assert.Equal(t, 2, report.Suggested)
	assert.Zero(t, report.NoMatch, "blank content is an error, not a no-match")
	assert.Equal(t, []string{
		"b: disk full",
		"c: malformed content: invalid UTF-8",
		"e: malformed content: empty",
	}, report.Errors)
	assert.Contains(t, store.saved, "a")
	assert.Contains(t, store.saved, "d")
}

func TestClassifyBatch_ConfigErrorIsFatal(t *testing.T) {
	store := newFakeStore(untagged("a", "pingpongtechniek"))
	cfgErr := &model.ValidationError{Source: "rules.json", InvalidIDs: []string{"9.9.9"}}

	_, err := newProcessor(store, testEngine(cfgErr), 1).ClassifyBatch(context.Background(), 10)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"9.9.9"}, verr.InvalidIDs)
	assert.Empty(t, store.saved)
	assert.Zero(t, store.lastLimit, "items are not fetched when configuration is invalid")
}

func TestClassifyBatch_FetchError(t *testing.T) {
	store := newFakeStore()
	store.fetchErr = errors.New("connection refused")

	_, err := newProcessor(store, testEngine(nil), 1).ClassifyBatch(context.Background(), 10)
	assert.ErrorContains(t, err, "connection refused")
}

func TestClassifyBatch_LimitAndDefault(t *testing.T) {
	var items []model.Item
	for i := 0; i < 120; i++ {
		items = append(items, untagged(fmt.Sprintf("item-%03d", i), "pingpongtechniek"))
	}
	store := newFakeStore(items...)
	p := NewBatchProcessor(store, testEngine(nil), model.BatchConfig{MaxItems: 100, Workers: 4}, nil)

	report, err := p.ClassifyBatch(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Processed)

	report, err = p.ClassifyBatch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 100, store.lastLimit)
	assert.Equal(t, 100, report.Processed)
	assert.Len(t, store.saved, 105)
}

func TestClassifyBatch_Cancelled(t *testing.T) {
	store := newFakeStore(untagged("a", "pingpongtechniek"), untagged("b", "pingpongtechniek"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newProcessor(store, testEngine(nil), 1).ClassifyBatch(ctx, 10)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Zero(t, report.Processed)
	assert.Empty(t, store.saved)
}

func TestClassifyBatch_SecondRunFindsNothing(t *testing.T) {
	store := newFakeStore(untagged("a", "pingpongtechniek"), untagged("b", "niets"))
	p := newProcessor(store, testEngine(nil), 2)

	_, err := p.ClassifyBatch(context.Background(), 10)
	require.NoError(t, err)

	report, err := p.ClassifyBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed, "only the no-match item is still untagged")
	assert.Equal(t, 1, report.NoMatch)
}

func TestResetSuggestions(t *testing.T) {
	store := newFakeStore(untagged("a", "pingpongtechniek"), untagged("b", "roux en binden"))
	p := newProcessor(store, testEngine(nil), 2)

	_, err := p.ClassifyBatch(context.Background(), 10)
	require.NoError(t, err)

	n, err := p.ResetSuggestions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = p.ResetSuggestions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	var ids []string
	for _, it := range store.items {
		if it.ReviewStatus == model.StatusUntagged {
			ids = append(ids, it.ID)
		}
	}
	sort.Strings(ids)
	assert.Equal(t, "a,b", strings.Join(ids, ","))
}
