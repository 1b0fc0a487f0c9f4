package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/techtag/internal/model"
	"github.com/ppiankov/techtag/internal/ontology"
	"github.com/ppiankov/techtag/internal/rules"
)

const ontologyDoc = `{"technieken": [
  {"nummer": "2", "subtechnieken": [{"nummer": "2.1"}, {"nummer": "2.2"}]},
  {"nummer": "3", "subtechnieken": [{"nummer": "3.1", "subtechnieken": [{"nummer": "3.1.1"}, {"nummer": "3.1.2"}]}]}
]}`

const rulesDoc = `{
  "version": "2.0",
  "normalization": {"lowercase": true, "strip_diacritics": true, "remove_punctuation": true, "collapse_whitespace": true},
  "scoring": {"anchor_weight": 1.0, "support_weight": 0.3, "min_score_to_consider": 1.0, "leaf_dominance_margin": 0.1},
  "primary_policy": {
    "prefer_parent_primary_when": {"min_distinct_child_mentions": 2, "or_parent_anchor_hit": true},
    "parent_child_bonus_per_distinct_child": 0.5
  },
  "techniques": {
    "2.1": {"kind": "technique", "anchors": ["pingpongtechniek"], "support": []},
    "3.1.1": {"kind": "technique", "anchors": ["roux"], "support": ["boter"]},
    "3.1.2": {"kind": "technique", "anchors": ["binden"], "support": ["bloem"]}
  }
}`

type fakeRules struct {
	rs          *model.RuleSet
	err         error
	invalidated int
}

func (f *fakeRules) LoadConfig() (*model.RuleSet, error) { return f.rs, f.err }
func (f *fakeRules) Invalidate()                         { f.invalidated++ }

type fakeOntology struct{ invalidated int }

func (f *fakeOntology) Invalidate() { f.invalidated++ }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	ontologyPath := filepath.Join(dir, "techniques.json")
	rulesPath := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(ontologyPath, []byte(ontologyDoc), 0o644))
	require.NoError(t, os.WriteFile(rulesPath, []byte(rulesDoc), 0o644))

	ids := ontology.NewLoader(model.OntologyConfig{Path: ontologyPath, RootKey: "technieken", IDFields: []string{"nummer"}}, nil, 0, nil)
	return NewEngine(rules.NewLoader(rulesPath, ids, nil, 0, nil), ids, nil)
}

func TestEngineAnalyzeScenarioA(t *testing.T) {
	engine := newTestEngine(t)

	a, err := engine.Analyze("We bespreken vandaag de pingpongtechniek en wedervragen.")
	require.NoError(t, err)

	assert.Equal(t, "we bespreken vandaag de pingpongtechniek en wedervragen", a.Normalized)
	assert.Equal(t, model.TechniqueID("2.1"), a.Result.Primary)
	assert.Equal(t, []model.TechniqueID{"2.1"}, a.Result.Mentions)
	require.Len(t, a.Matches, 1)
	assert.Equal(t, []string{"pingpongtechniek"}, a.Matches[0].MatchedAnchors)
}

func TestEngineAnalyzeParentPrimary(t *testing.T) {
	engine := newTestEngine(t)

	a, err := engine.Analyze("Een saus binden met een roux.")
	require.NoError(t, err)

	assert.Equal(t, model.TechniqueID("3.1"), a.Result.Primary)
	assert.ElementsMatch(t, []model.TechniqueID{"3.1.1", "3.1.2", "3.1"}, a.Result.Mentions)
}

func TestEngineAnalyzeNoMatch(t *testing.T) {
	engine := newTestEngine(t)

	a, err := engine.Analyze("Niets relevants hier.")
	require.NoError(t, err)
	assert.False(t, a.Result.HasPrimary())
	assert.Empty(t, a.Matches)
	assert.Empty(t, a.Result.Mentions)
}

func TestEngineSurfacesConfigErrors(t *testing.T) {
	vErr := &model.ValidationError{InvalidIDs: []string{"9.9.9"}}
	engine := NewEngine(&fakeRules{err: vErr}, nil, nil)

	_, err := engine.Analyze("pingpongtechniek")
	var got *model.ValidationError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, []string{"9.9.9"}, got.InvalidIDs)
}

func TestEngineReloadInvalidatesBothCaches(t *testing.T) {
	fr := &fakeRules{rs: model.NewRuleSet(nil)}
	fo := &fakeOntology{}
	engine := NewEngine(fr, fo, nil)

	_, err := engine.Reload()
	require.NoError(t, err)
	assert.Equal(t, 1, fr.invalidated)
	assert.Equal(t, 1, fo.invalidated)
}

func TestRendererRunMarkdown(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := model.RunReport{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Processed:  3,
		Suggested:  1,
		NoMatch:    1,
		Errors:     []string{"item-3: disk full"},
	}

	md := NewRenderer().RunMarkdown(report)
	assert.Contains(t, md, "# Classification run run-1")
	assert.Contains(t, md, "| 3 | 1 | 1 | 1 |")
	assert.Contains(t, md, "- `item-3: disk full`")
	assert.Contains(t, md, "1.5s")
}

func TestRendererWritesFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer()
	report := model.RunReport{RunID: "run-2", Errors: []string{}}

	require.NoError(t, r.RenderJSON(report, filepath.Join(dir, "out", "report.json")))
	require.NoError(t, r.RenderMarkdown(report, filepath.Join(dir, "out", "report.md")))

	data, err := os.ReadFile(filepath.Join(dir, "out", "report.json"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"run_id": "run-2"`))
}

func TestRendererAnalysisMarkdown(t *testing.T) {
	engine := newTestEngine(t)
	a, err := engine.Analyze("pingpongtechniek")
	require.NoError(t, err)

	md := NewRenderer().AnalysisMarkdown(*a)
	assert.Contains(t, md, "**Primary:** `2.1`")
	assert.Contains(t, md, "| 2.1 | technique | 1.00 | pingpongtechniek |  |")
}
