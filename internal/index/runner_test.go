package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/kbi/internal/config"
	"github.com/Aman-CERP/kbi/internal/errors"
	"github.com/Aman-CERP/kbi/internal/outline"
	"github.com/Aman-CERP/kbi/internal/telemetry"
	"github.com/Aman-CERP/kbi/internal/ui"
)

// MockRenderer implements ui.Renderer for testing. Parse workers report
// progress concurrently, so every method locks.
type MockRenderer struct {
	mu              sync.Mutex
	CompleteCalled  bool
	ProgressEvents  []ui.ProgressEvent
	ErrorEvents     []ui.ErrorEvent
	CompletionStats ui.CompletionStats
}

func (m *MockRenderer) Start(ctx context.Context) error { return nil }

func (m *MockRenderer) UpdateProgress(event ui.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProgressEvents = append(m.ProgressEvents, event)
}

func (m *MockRenderer) AddError(event ui.ErrorEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorEvents = append(m.ErrorEvents, event)
}

func (m *MockRenderer) Complete(stats ui.CompletionStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalled = true
	m.CompletionStats = stats
}

func (m *MockRenderer) Stop() error { return nil }

func (m *MockRenderer) stages() []ui.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ui.Stage
	for _, e := range m.ProgressEvents {
		if len(out) == 0 || out[len(out)-1] != e.Stage {
			out = append(out, e.Stage)
		}
	}
	return out
}

// writeFiles creates files under dir from a path → content map.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// newTestRunner returns a runner over dir with docs/ as the only root and
// keywords.txt as the only keyword file.
func newTestRunner(t *testing.T, mutate func(*config.Config)) (*Runner, *MockRenderer) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Paths.Include = []string{"docs"}
	cfg.Keywords.Files = []string{"keywords.txt"}
	cfg.Performance.Workers = 4
	if mutate != nil {
		mutate(cfg)
	}
	renderer := &MockRenderer{}
	r, err := NewRunner(RunnerDependencies{Config: cfg, Renderer: renderer})
	require.NoError(t, err)
	return r, renderer
}

func branch(root *outline.Node, title string) *outline.Node {
	return root.Child(title)
}

func texts(nodes []*outline.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Text
	}
	return out
}

func TestNewRunner(t *testing.T) {
	t.Run("requires config", func(t *testing.T) {
		_, err := NewRunner(RunnerDependencies{})
		assert.Error(t, err)
	})

	t.Run("defaults renderer and registry", func(t *testing.T) {
		r, err := NewRunner(RunnerDependencies{Config: config.NewConfig()})
		require.NoError(t, err)
		assert.NotNil(t, r.renderer)
		assert.ElementsMatch(t, []string{".md", ".markdown", ".mm"}, r.registry.Extensions())
		assert.Nil(t, r.metrics)
	})

	t.Run("unknown handler is a config error", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.FileTypes["text"] = config.FileTypeConfig{Extensions: []string{".txt"}, Handler: "plaintext"}
		_, err := NewRunner(RunnerDependencies{Config: cfg})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
	})

	t.Run("metrics file enables metrics", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Telemetry.MetricsFile = filepath.Join(t.TempDir(), "kbi.prom")
		r, err := NewRunner(RunnerDependencies{Config: cfg})
		require.NoError(t, err)
		assert.NotNil(t, r.metrics)
	})
}

func TestRunner_ScopedMatch(t *testing.T) {
	// Given a node "API Gateway" whose child is "reference guide"
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/gateway.md": "# API Gateway\n\n- reference guide\n- rate limits\n",
		"docs/other.md":   "# Reference\n\n- unrelated reference\n",
		"keywords.txt":    "Docs\n\tapi:reference\n",
	})
	r, renderer := newTestRunner(t, nil)

	// When indexing
	res, err := r.Run(context.Background(), RunnerConfig{Dir: dir})
	require.NoError(t, err)

	// Then the leaf holds exactly the child inside the api scope
	kw := branch(res.Index, "Keyword Index")
	require.NotNil(t, kw)
	docs := kw.Child("Docs")
	require.NotNil(t, docs)
	leaf := docs.Child("api:reference")
	require.NotNil(t, leaf)
	assert.Equal(t, []string{"reference guide"}, texts(leaf.Children))

	assert.Equal(t, 1, res.Keywords)
	assert.Equal(t, 1, res.Matches)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 0, res.ExitCode())
	assert.True(t, renderer.CompleteCalled)
	assert.Equal(t, res.Output, renderer.CompletionStats.Output)

	data, err := os.ReadFile(filepath.Join(dir, "index.mm"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `TEXT="api:reference"`)
	assert.Contains(t, string(data), `TEXT="reference guide"`)
	assert.Equal(t, int64(len(data)), res.OutputBytes)
}

func TestRunner_UnmatchedLeafKept(t *testing.T) {
	// Given a leaf whose scope term matches nothing
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/a.md":    "# Alpha\n\n- bar\n",
		"keywords.txt": "Empty\n\tfoo:bar\n",
	})
	r, _ := newTestRunner(t, nil)

	// When indexing
	res, err := r.Run(context.Background(), RunnerConfig{Dir: dir})
	require.NoError(t, err)

	// Then the leaf is present with no children
	leaf := branch(res.Index, "Keyword Index").Child("Empty").Child("foo:bar")
	require.NotNil(t, leaf)
	assert.Empty(t, leaf.Children)
	assert.Equal(t, 0, res.Matches)
}

func TestRunner_SearchesParagraphText(t *testing.T) {
	tests := []struct {
		name        string
		richContent bool
		want        []string
	}{
		{name: "rich content on", richContent: true, want: []string{"Deployment"}},
		{name: "rich content off", richContent: false, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given a term that only appears in a paragraph under a heading
			dir := t.TempDir()
			writeFiles(t, dir, map[string]string{
				"docs/guide.md": "# Deployment\n\nUse kubernetes for rollout.\n",
				"keywords.txt":  "Ops\n\tkubernetes\n",
			})
			r, _ := newTestRunner(t, func(cfg *config.Config) {
				cfg.Search.RichContent = tt.richContent
			})

			// When indexing
			res, err := r.Run(context.Background(), RunnerConfig{Dir: dir})
			require.NoError(t, err)

			// Then the heading owning the paragraph is matched only with rich content
			leaf := branch(res.Index, "Keyword Index").Child("Ops").Child("kubernetes")
			require.NotNil(t, leaf)
			assert.Equal(t, tt.want, texts(leaf.Children))
			assert.Equal(t, len(tt.want), res.Matches)
		})
	}
}

func TestRunner_UnbalancedTermIsCompileWarning(t *testing.T) {
	// Given a leaf that would only compile once wrapped in anchors
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/guide.md": "# Deployment\n\n- kubernetes rollout\n",
		"keywords.txt":  "G\n\tkubernetes\n\tfoo)|(deploy\n",
	})
	r, _ := newTestRunner(t, func(cfg *config.Config) {
		cfg.Search.WholeWord = true
	})

	// When indexing
	res, err := r.Run(context.Background(), RunnerConfig{Dir: dir})
	require.NoError(t, err)

	// Then the leaf is rejected with a warning and never searched
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, errors.ErrCodePatternCompile, res.Diagnostics[0].Code)
	assert.Equal(t, "foo)|(deploy", res.Diagnostics[0].Details["term"])
	assert.Equal(t, 1, res.Warnings)
	assert.Equal(t, 0, res.ExitCode())

	group := branch(res.Index, "Keyword Index").Child("G")
	require.NotNil(t, group)
	assert.Equal(t, []string{"kubernetes"}, texts(group.Children))
	assert.Equal(t, 1, res.Keywords)
}

func TestRunner_TagsListDocumentOnce(t *testing.T) {
	// Given markers spread over several nodes of one document
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/notes.md": "# Notes\n\nStarted #testing today.\n\n## Tools\n\n- #python scripts\n- more #testing\n",
		"docs/plain.md": "# Plain\n\nno markers here\n",
		"keywords.txt":  "Group\n\tnotes\n",
	})
	r, _ := newTestRunner(t, nil)

	// When indexing
	res, err := r.Run(context.Background(), RunnerConfig{Dir: dir})
	require.NoError(t, err)

	// Then each tag lists the document exactly once, tags sorted
	tagBranch := branch(res.Index, "Tag Index")
	require.NotNil(t, tagBranch)
	assert.Equal(t, []string{"python", "testing"}, texts(tagBranch.Children))
	for _, tag := range tagBranch.Children {
		assert.Equal(t, []string{"notes.md"}, texts(tag.Children), "tag %s", tag.Text)
	}
	assert.Equal(t, 2, res.Tags)
}

func TestRunner_StructuralErrorKeepsOtherBranches(t *testing.T) {
	// Given a keyword file that jumps two levels in one step
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/a.md":    "# Alpha\n\nsee #python\n",
		"keywords.txt": "Top\n\tmid\n\t\t\tdeep\n",
	})
	r, renderer := newTestRunner(t, nil)

	// When indexing
	res, err := r.Run(context.Background(), RunnerConfig{Dir: dir})

	// Then the run still writes, without the keyword branch
	require.NoError(t, err)
	assert.True(t, res.KeywordsAborted)
	assert.Equal(t, 1, res.ExitCode())
	assert.Equal(t, telemetry.StatusKeywordsAborted, res.Status())
	assert.Equal(t, []string{"File System Index", "Tag Index"}, texts(res.Index.Children))
	assert.FileExists(t, filepath.Join(dir, "index.mm"))

	// And the structural error names the offending line
	var structural *errors.KBIError
	for _, d := range res.Diagnostics {
		if d.Code == errors.ErrCodeKeywordStructure {
			structural = d
		}
	}
	require.NotNil(t, structural)
	assert.Equal(t, 3, structural.Line)
	assert.True(t, strings.HasSuffix(structural.File, "keywords.txt"))
	assert.Equal(t, 1, res.Errors)
	assert.True(t, renderer.CompletionStats.KeywordsAborted)
}

func TestRunner_StructuralErrorOnlyDropsItsFile(t *testing.T) {
	// Given one good and one malformed keyword file
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/a.md":  "# Alpha\n",
		"good.txt":   "Good\n\talpha\n",
		"broken.txt": "Bad\n\t\tbeta\n",
	})
	r, _ := newTestRunner(t, func(c *config.Config) {
		c.Keywords.Files = []string{"broken.txt", "good.txt"}
	})

	// When indexing
	res, err := r.Run(context.Background(), RunnerConfig{Dir: dir})
	require.NoError(t, err)

	// Then the good file still contributes its patterns
	assert.True(t, res.KeywordsAborted)
	kw := branch(res.Index, "Keyword Index")
	require.NotNil(t, kw)
	assert.Equal(t, []string{"Good"}, texts(kw.Children))
	assert.Equal(t, []string{"Alpha"}, texts(kw.Child("Good").Child("alpha").Children))
}

func TestRunner_Deterministic(t *testing.T) {
	// Given a mixed corpus with several workers
	dir := t.TempDir()
	files := map[string]string{
		"keywords.txt": "Langs\n\tgo\n\tpython\nTopics\n\tguide:intro\n",
	}
	for i := 0; i < 20; i++ {
		name := filepath.ToSlash(filepath.Join("docs", string(rune('a'+i%5)), "doc"+string(rune('a'+i))+".md"))
		files[name] = "# Guide " + string(rune('A'+i)) + "\n\n- intro to go #go\n- python notes #python\n"
	}
	writeFiles(t, dir, files)
	r, _ := newTestRunner(t, nil)
	out := filepath.Join(dir, "index.mm")

	// When indexing twice
	_, err := r.Run(context.Background(), RunnerConfig{Dir: dir})
	require.NoError(t, err)
	first, err := os.ReadFile(out)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), RunnerConfig{Dir: dir})
	require.NoError(t, err)
	second, err := os.ReadFile(out)
	require.NoError(t, err)

	// Then the output is byte identical
	assert.Equal(t, string(first), string(second))
}

func TestRunner_Diagnostics(t *testing.T) {
	// Given an undecodable document and a root that does not exist
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/good.md": "# Good\n",
		"docs/bad.mm":  "<map><node TEXT=\"unterminated\"",
		"keywords.txt": "Group\n\tgood\n",
	})
	r, renderer := newTestRunner(t, func(c *config.Config) {
		c.Paths.Include = []string{"docs", "missing"}
	})

	// When indexing
	res, err := r.Run(context.Background(), RunnerConfig{Dir: dir})
	require.NoError(t, err)

	// Then both are warnings and the good document is indexed
	codes := make([]string, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		codes = append(codes, d.Code)
	}
	assert.Contains(t, codes, errors.ErrCodeHandlerParse)
	assert.Contains(t, codes, errors.ErrCodeFileNotFound)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 0, res.Errors)
	assert.Equal(t, len(res.Diagnostics), res.Warnings)
	assert.Equal(t, 0, res.ExitCode())
	assert.Len(t, renderer.ErrorEvents, len(res.Diagnostics))
}

func TestRunner_OutputNotIndexed(t *testing.T) {
	// Given a previous index inside the scanned root
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/a.md":     "# Alpha\n",
		"docs/index.mm": "<map><node TEXT=\"stale\"/></map>",
		"keywords.txt":  "Group\n\talpha\n",
	})
	r, _ := newTestRunner(t, nil)

	// When writing the new index over it
	res, err := r.Run(context.Background(), RunnerConfig{Dir: dir, Output: "docs/index.mm"})
	require.NoError(t, err)

	// Then the old index is not read as a document
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, filepath.Join(dir, "docs", "index.mm"), res.Output)
}

func TestRunner_Overrides(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/a.md":  "# Alpha\n",
		"notes/b.md": "# Beta\n",
		"other.txt":  "Other\n\tbeta\n",
	})
	r, _ := newTestRunner(t, nil)

	res, err := r.Run(context.Background(), RunnerConfig{
		Dir:          dir,
		Roots:        []string{"notes"},
		KeywordFiles: []string{"other.txt"},
		Output:       "out/map.mm",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, res.Matches)
	assert.FileExists(t, filepath.Join(dir, "out", "map.mm"))
}

func TestRunner_TagsDisabled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/a.md":    "# Alpha #python\n",
		"keywords.txt": "Group\n\talpha\n",
	})
	r, _ := newTestRunner(t, func(c *config.Config) { c.Tags.Enabled = false })

	res, err := r.Run(context.Background(), RunnerConfig{Dir: dir})
	require.NoError(t, err)

	assert.Nil(t, res.Index.Child("Tag Index"))
	assert.Equal(t, 0, res.Tags)
}

func TestRunner_FatalErrors(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		mutate   func(*config.Config)
		wantCode string
	}{
		{
			name:     "no readable roots",
			files:    map[string]string{"keywords.txt": "A\n\tb\n"},
			mutate:   func(c *config.Config) { c.Paths.Include = []string{"nowhere"} },
			wantCode: errors.ErrCodeRootUnreadable,
		},
		{
			name:     "missing keyword file",
			files:    map[string]string{"docs/a.md": "# A\n"},
			wantCode: errors.ErrCodeKeywordsMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, tt.files)
			r, renderer := newTestRunner(t, tt.mutate)

			res, err := r.Run(context.Background(), RunnerConfig{Dir: dir})

			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.wantCode, errors.GetCode(err))
			assert.True(t, errors.IsFatal(err))
			assert.False(t, renderer.CompleteCalled)
			assert.NoFileExists(t, filepath.Join(dir, "index.mm"))
		})
	}
}

func TestRunner_Canceled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/a.md":    "# Alpha\n",
		"keywords.txt": "Group\n\talpha\n",
	})
	r, _ := newTestRunner(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, RunnerConfig{Dir: dir})

	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "index.mm"))
}

func TestRunner_StageOrder(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/a.md":    "# Alpha #go\n",
		"keywords.txt": "Group\n\talpha\n",
	})
	r, renderer := newTestRunner(t, nil)

	_, err := r.Run(context.Background(), RunnerConfig{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, []ui.Stage{
		ui.StageScanning,
		ui.StageParsing,
		ui.StageTagging,
		ui.StageSearching,
		ui.StageAssembling,
		ui.StageWriting,
	}, renderer.stages())
}

func TestRunner_RecordsHistoryAndMetrics(t *testing.T) {
	// Given history and a metrics textfile
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"docs/a.md":    "# Alpha\n",
		"docs/b.txt":   "ignored by extension",
		"keywords.txt": "Group\n\talpha\n\tmissing\n",
	})
	history, err := telemetry.OpenHistory(filepath.Join(dir, "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	cfg := config.NewConfig()
	cfg.Paths.Include = []string{"docs"}
	cfg.Keywords.Files = []string{"keywords.txt"}
	cfg.Telemetry.MetricsFile = filepath.Join(dir, "metrics", "kbi.prom")
	r, err := NewRunner(RunnerDependencies{Config: cfg, Renderer: &MockRenderer{}, History: history})
	require.NoError(t, err)

	// When indexing
	res, err := r.Run(context.Background(), RunnerConfig{Dir: dir})
	require.NoError(t, err)

	// Then the run is in history
	runs, err := history.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.ID, runs[0].ID)
	assert.Equal(t, telemetry.StatusOK, runs[0].Status)
	assert.Equal(t, 1, runs[0].Files)
	assert.Equal(t, 2, runs[0].Keywords)
	assert.Equal(t, 1, runs[0].Matches)
	assert.Equal(t, res.OutputBytes, runs[0].OutputBytes)

	// And the textfile has the run gauges
	data, err := os.ReadFile(cfg.Telemetry.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kbi_documents 1")
	assert.Contains(t, string(data), "kbi_keywords 2")
	assert.Contains(t, string(data), "kbi_last_run_success 1")
	assert.Contains(t, string(data), `kbi_stage_duration_seconds{stage="write"}`)
}

func TestRunnerResult_ExitCode(t *testing.T) {
	tests := []struct {
		name string
		res  RunnerResult
		want int
	}{
		{"clean", RunnerResult{}, 0},
		{"warnings only", RunnerResult{Warnings: 3}, 0},
		{"errors", RunnerResult{Errors: 1}, 1},
		{"keywords aborted", RunnerResult{KeywordsAborted: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.ExitCode())
		})
	}
}
