package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/techtag/internal/model"
)

func testViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TECHTAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, model.DefaultConfig())
	return v
}

func TestDecodeConfigDefaults(t *testing.T) {
	cfg, err := decodeConfig(testViper())
	require.NoError(t, err)

	d := model.DefaultConfig()
	assert.Equal(t, d.Rules.Path, cfg.Rules.Path)
	assert.Equal(t, model.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, []string{"nummer"}, cfg.Ontology.IDFields)
	assert.Equal(t, 500, cfg.Batch.MaxItems)
}

func TestDecodeConfigEnvOverrides(t *testing.T) {
	t.Setenv("TECHTAG_STORE_PATH", "/tmp/other.db")
	t.Setenv("TECHTAG_BATCH_MAX_ITEMS", "25")
	t.Setenv("TECHTAG_CACHE_TTL", "5m")
	t.Setenv("TECHTAG_RULES_WATCH", "true")

	cfg, err := decodeConfig(testViper())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.Equal(t, 25, cfg.Batch.MaxItems)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Rules.Watch)
}

func TestDecodeConfigFile(t *testing.T) {
	v := testViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
store:
  driver: postgres
  dsn: postgres://techtag@localhost/techtag
batch:
  workers: 3
log:
  format: json
`)))

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, model.DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep defaults")
}

func TestDecodeConfigRejectsInvalid(t *testing.T) {
	v := testViper()
	v.Set("store.driver", "postgres")
	v.Set("store.dsn", "")

	_, err := decodeConfig(v)
	assert.ErrorContains(t, err, "store.dsn")
}

func TestDecodeConfigVerbose(t *testing.T) {
	v := testViper()
	v.Set("verbose", true)

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestDefaultConfigYAMLRoundTrip(t *testing.T) {
	data, err := defaultConfigYAML()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# techtag configuration file"))

	v := testViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(data)))
	cfg, err := decodeConfig(v)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "ontology")
	assert.Equal(t, model.DefaultConfig().API, cfg.API)
}

func TestReadImport(t *testing.T) {
	input := `# exported from the video catalogue
{"id": "v1", "source_id": "video-1", "title": "Les 1", "content": "De pingpongtechniek"}

{"source_id": "video-2", "content": "Een roux binden"}
`
	items, err := readImport(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "v1", items[0].ID)
	assert.Equal(t, "Les 1", items[0].Title)
	assert.Empty(t, items[1].ID, "ids are generated by the store")
	assert.Equal(t, "video-2", items[1].SourceID)
}

func TestReadImportErrors(t *testing.T) {
	_, err := readImport(strings.NewReader("{\"content\": \"ok\"}\n{not json}\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = readImport(strings.NewReader(`{"content": "  "}`))
	assert.ErrorContains(t, err, "content is required")

	_, err = readImport(strings.NewReader(`{"content": "x", "colour": "red"}`))
	assert.ErrorContains(t, err, "line 1")
}

func exportItems() []model.Item {
	return []model.Item{
		{ID: "a", SourceID: "s1", Title: "Approved, with comma", ReviewStatus: model.StatusApproved, TechniqueID: "2.1", SuggestedTechniqueID: "2.1"},
		{ID: "b", SourceID: "s2", ReviewStatus: model.StatusSuggested, SuggestedTechniqueID: "3.1", SuggestedMentions: []model.TechniqueID{"3.1.1", "3.1"}},
		{ID: "c", ReviewStatus: model.StatusUntagged},
	}
}

func TestWriteExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeExport(&buf, "csv", toExport(exportItems())))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "tag_source", records[0][4])
	assert.Equal(t, []string{"a", "s1", "Approved, with comma", "approved", "confirmed", "2.1", "2.1", ""}, records[1])
	assert.Equal(t, []string{"b", "s2", "", "suggested", "heuristic_suggested", "3.1", "3.1", "3.1.1 3.1"}, records[2])
	assert.Equal(t, "untagged", records[3][4])
}

func TestWriteExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeExport(&buf, "json", toExport(exportItems())))

	var got []exportRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "heuristic_suggested", got[1].TagSource)
	assert.Equal(t, model.TechniqueID("3.1"), got[1].EffectiveTechnique)
}

func TestWriteExportUnknownFormat(t *testing.T) {
	assert.Error(t, writeExport(&bytes.Buffer{}, "xml", nil))
}

func TestReadChunk(t *testing.T) {
	got, err := readChunk([]string{"de", "pingpongtechniek"}, "", strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "de pingpongtechniek", got)

	got, err = readChunk(nil, "", strings.NewReader("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	got, err = readChunk([]string{"ignored"}, "-", strings.NewReader("dash stdin"))
	require.NoError(t, err)
	assert.Equal(t, "dash stdin", got)

	_, err = readChunk(nil, "/does/not/exist.txt", nil)
	assert.Error(t, err)
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Technique", "Items"}, [][]string{{"2.1", "3"}, {"3.1"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "TECHNIQUE")
	assert.Contains(t, out, "2.1")
	assert.Equal(t, "", renderTable(nil, nil, nil))
}

func TestPrintAnalysis(t *testing.T) {
	var buf bytes.Buffer
	printAnalysis(&buf, model.Analysis{
		Matches: []model.Match{{ID: "3.1.1", Kind: model.KindTechnique, AnchorHits: 1, Score: 1, MatchedAnchors: []string{"roux"}}},
		Result:  model.TaggingResult{Primary: "3.1", Mentions: []model.TechniqueID{"3.1.1", "3.1"}},
	})
	out := buf.String()
	assert.Contains(t, out, "Primary:   3.1")
	assert.Contains(t, out, "Mentions:  3.1.1, 3.1")
	assert.Contains(t, out, "roux")

	buf.Reset()
	printAnalysis(&buf, model.Analysis{})
	assert.Contains(t, buf.String(), "Primary:   none")
	assert.Contains(t, buf.String(), "No technique matched.")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
