// Package index runs the kbi pipeline: discover documents, parse them into a
// forest, extract tags, search keyword patterns, assemble the outline, and
// write the mind map.
package index

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/kbi/internal/assemble"
	"github.com/Aman-CERP/kbi/internal/config"
	"github.com/Aman-CERP/kbi/internal/doctree"
	"github.com/Aman-CERP/kbi/internal/errors"
	"github.com/Aman-CERP/kbi/internal/fsindex"
	"github.com/Aman-CERP/kbi/internal/handler"
	"github.com/Aman-CERP/kbi/internal/keywords"
	"github.com/Aman-CERP/kbi/internal/mindmap"
	"github.com/Aman-CERP/kbi/internal/outline"
	"github.com/Aman-CERP/kbi/internal/scanner"
	"github.com/Aman-CERP/kbi/internal/search"
	"github.com/Aman-CERP/kbi/internal/tags"
	"github.com/Aman-CERP/kbi/internal/telemetry"
	"github.com/Aman-CERP/kbi/internal/ui"
)

// RunnerConfig holds per-invocation overrides of the loaded config.
type RunnerConfig struct {
	// Dir resolves relative include, keyword, and output paths. Defaults to
	// the working directory.
	Dir string

	// Roots replaces paths.include when non-empty.
	Roots []string

	// KeywordFiles replaces keywords.files when non-empty.
	KeywordFiles []string

	// Output replaces output.file when set.
	Output string
}

// RunnerResult is the outcome of a run that wrote its output.
type RunnerResult struct {
	ID          string
	Output      string
	OutputBytes int64
	Base        string
	Files       int
	Nodes       int
	Keywords    int
	Matches     int
	Tags        int
	Duration    time.Duration
	Stages      ui.StageTimings

	// Diagnostics are the non-fatal problems, ordered by file and line.
	Diagnostics []*errors.KBIError
	Errors      int
	Warnings    int

	// KeywordsAborted is set when at least one keyword file was rejected
	// for a structural error.
	KeywordsAborted bool

	Forest *doctree.Forest
	Index  *outline.Node
}

// ExitCode is 1 when a keyword file was rejected or another error was
// reported, else 0.
func (r *RunnerResult) ExitCode() int {
	if r.KeywordsAborted || r.Errors > 0 {
		return 1
	}
	return 0
}

// Status classifies the run for history.
func (r *RunnerResult) Status() string {
	if r.KeywordsAborted {
		return telemetry.StatusKeywordsAborted
	}
	return telemetry.StatusOK
}

// RunnerDependencies are injected into NewRunner.
type RunnerDependencies struct {
	// Config is required.
	Config *config.Config

	// Renderer receives progress. Defaults to a plain renderer that
	// discards output.
	Renderer ui.Renderer

	// Registry maps extensions to handlers. Defaults to one built from
	// Config.FileTypes.
	Registry *handler.Registry

	// Metrics and History are optional.
	Metrics *telemetry.RunMetrics
	History *telemetry.HistoryStore
}

// Runner executes index runs.
type Runner struct {
	cfg      *config.Config
	renderer ui.Renderer
	registry *handler.Registry
	metrics  *telemetry.RunMetrics
	history  *telemetry.HistoryStore
}

// NewRunner validates deps and creates a Runner.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}

	renderer := deps.Renderer
	if renderer == nil {
		renderer = ui.NewPlainRenderer(ui.NewConfig(io.Discard))
	}

	registry := deps.Registry
	if registry == nil {
		types := make(map[string]handler.FileType, len(deps.Config.FileTypes))
		for name, ft := range deps.Config.FileTypes {
			types[name] = handler.FileType{Extensions: ft.Extensions, Handler: ft.Handler}
		}
		var err error
		registry, err = handler.FromFileTypes(types)
		if err != nil {
			return nil, err
		}
	}

	metrics := deps.Metrics
	if metrics == nil && deps.Config.Telemetry.MetricsFile != "" {
		metrics = telemetry.NewRunMetrics()
	}

	return &Runner{
		cfg:      deps.Config,
		renderer: renderer,
		registry: registry,
		metrics:  metrics,
		history:  deps.History,
	}, nil
}

// Run executes the pipeline once. A returned error is fatal and no output
// was written. Keyword files with structural errors do not fail the run;
// they are reported in the result and the other branches are still written.
func (r *Runner) Run(ctx context.Context, rc RunnerConfig) (*RunnerResult, error) {
	start := time.Now()
	res := &RunnerResult{ID: uuid.NewString()}
	diags := errors.NewCollector()

	if err := r.run(ctx, rc, res, diags); err != nil {
		r.finishFailed(res, start, err)
		return nil, err
	}
	res.Duration = time.Since(start)

	// History failures become warnings, so record before counting.
	r.record(ctx, res, start, diags)

	res.Diagnostics = diags.Items()
	for _, d := range res.Diagnostics {
		switch d.Severity {
		case errors.SeverityWarning, errors.SeverityInfo:
			res.Warnings++
		default:
			res.Errors++
		}
	}

	r.renderer.Complete(ui.CompletionStats{
		Output:          res.Output,
		Files:           res.Files,
		Nodes:           res.Nodes,
		Keywords:        res.Keywords,
		Matches:         res.Matches,
		Tags:            res.Tags,
		Duration:        res.Duration,
		Errors:          res.Errors,
		Warnings:        res.Warnings,
		Stages:          res.Stages,
		KeywordsAborted: res.KeywordsAborted,
	})

	slog.Info("index_complete",
		slog.String("run_id", res.ID),
		slog.String("output", res.Output),
		slog.Int("files", res.Files),
		slog.Int("nodes", res.Nodes),
		slog.Int("keywords", res.Keywords),
		slog.Int("matches", res.Matches),
		slog.Int("tags", res.Tags),
		slog.Int("errors", res.Errors),
		slog.Int("warnings", res.Warnings),
		slog.Bool("keywords_aborted", res.KeywordsAborted),
		slog.Int64("duration_total_ms", res.Duration.Milliseconds()),
		slog.Int64("duration_scan_ms", res.Stages.Scan.Milliseconds()),
		slog.Int64("duration_parse_ms", res.Stages.Parse.Milliseconds()),
		slog.Int64("duration_tags_ms", res.Stages.Tags.Milliseconds()),
		slog.Int64("duration_search_ms", res.Stages.Search.Milliseconds()),
		slog.Int64("duration_assemble_ms", res.Stages.Assemble.Milliseconds()),
		slog.Int64("duration_write_ms", res.Stages.Write.Milliseconds()))

	return res, nil
}

// record publishes metrics and appends the run to history. Neither can
// fail the run.
func (r *Runner) record(ctx context.Context, res *RunnerResult, start time.Time, diags *errors.Collector) {
	if r.metrics != nil {
		m := r.metrics
		m.Files.Set(float64(res.Files))
		m.Nodes.Set(float64(res.Nodes))
		m.Keywords.Set(float64(res.Keywords))
		m.KeywordMatches.Set(float64(res.Matches))
		m.Tags.Set(float64(res.Tags))
		m.OutputBytes.Set(float64(res.OutputBytes))
		m.ObserveStage("scan", res.Stages.Scan)
		m.ObserveStage("parse", res.Stages.Parse)
		m.ObserveStage("tags", res.Stages.Tags)
		m.ObserveStage("search", res.Stages.Search)
		m.ObserveStage("assemble", res.Stages.Assemble)
		m.ObserveStage("write", res.Stages.Write)
		m.Finish(res.Duration, !res.KeywordsAborted, time.Now())
		r.writeMetrics()
	}

	if r.history == nil {
		return
	}
	run := telemetry.Run{
		ID:          res.ID,
		StartedAt:   start,
		Duration:    res.Duration,
		Output:      res.Output,
		OutputBytes: res.OutputBytes,
		Files:       res.Files,
		Nodes:       res.Nodes,
		Keywords:    res.Keywords,
		Matches:     res.Matches,
		Tags:        res.Tags,
		Status:      res.Status(),
		Diagnostics: make(map[string]int),
	}
	for _, d := range diags.Items() {
		run.Diagnostics[d.Code]++
		if d.Severity == errors.SeverityWarning || d.Severity == errors.SeverityInfo {
			run.Warnings++
		} else {
			run.Errors++
		}
	}
	if err := r.history.Record(ctx, run); err != nil {
		herr := errors.New(errors.ErrCodeHistoryFailed, "failed to record run history", err)
		herr.Severity = errors.SeverityWarning
		r.report(diags, herr)
	}
}

// finishFailed records a run that produced no output.
func (r *Runner) finishFailed(res *RunnerResult, start time.Time, err error) {
	duration := time.Since(start)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	slog.Error("index_failed",
		slog.String("run_id", res.ID),
		slog.String("code", code),
		slog.String("error", err.Error()),
		slog.Int64("duration_ms", duration.Milliseconds()))

	if r.metrics != nil {
		r.metrics.Finish(duration, false, time.Now())
		r.writeMetrics()
	}
	if r.history != nil {
		// ctx may be the reason for the failure.
		run := telemetry.Run{
			ID:        res.ID,
			StartedAt: start,
			Duration:  duration,
			Output:    res.Output,
			Files:     res.Files,
			Nodes:     res.Nodes,
			Errors:    1,
			Status:    telemetry.StatusFailed,
			Diagnostics: map[string]int{code: 1},
		}
		if herr := r.history.Record(context.Background(), run); herr != nil {
			slog.Warn("history_record_failed", slog.String("error", herr.Error()))
		}
	}
}

func (r *Runner) writeMetrics() {
	path := r.cfg.Telemetry.MetricsFile
	if path == "" {
		return
	}
	if err := r.metrics.WriteTextfile(path); err != nil {
		slog.Warn("metrics_write_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func (r *Runner) run(ctx context.Context, rc RunnerConfig, res *RunnerResult, diags *errors.Collector) error {
	dir := rc.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errors.IOError("cannot determine working directory", err)
		}
		dir = wd
	}
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(dir, p)
	}

	output := r.cfg.Output.File
	if rc.Output != "" {
		output = rc.Output
	}
	res.Output = resolve(output)

	roots := r.cfg.Paths.Include
	if len(rc.Roots) > 0 {
		roots = rc.Roots
	}
	keywordFiles := r.cfg.Keywords.Files
	if len(rc.KeywordFiles) > 0 {
		keywordFiles = rc.KeywordFiles
	}
	workers := r.cfg.Workers()

	// Stage 1: discover documents.
	stageStart := time.Now()
	files, base, err := r.scan(ctx, roots, resolve, res.Output, diags)
	if err != nil {
		return err
	}
	res.Base = base
	res.Stages.Scan = time.Since(stageStart)

	// Stage 2: parse into the forest.
	stageStart = time.Now()
	forest, err := r.buildForest(ctx, files, workers, diags)
	if err != nil {
		return err
	}
	res.Forest = forest
	res.Files = len(forest.Roots())
	res.Nodes = forest.Len()
	res.Stages.Parse = time.Since(stageStart)

	// Stage 3: tags.
	stageStart = time.Now()
	var tagIndex *tags.Index
	if r.cfg.Tags.Enabled {
		r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageTagging, Total: res.Files})
		x := tags.NewExtractor(tags.WithExcluded(r.cfg.Tags.Excluded), tags.WithWorkers(workers))
		tagIndex, err = x.BuildIndex(ctx, forest)
		if err != nil {
			return err
		}
		res.Tags = tagIndex.Len()
		r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageTagging, Current: res.Files, Total: res.Files})
	}
	res.Stages.Tags = time.Since(stageStart)

	// Stage 4: keyword files and searches.
	stageStart = time.Now()
	compiler, err := search.NewRegexCompiler(
		search.WithWholeWord(r.cfg.Search.WholeWord),
		search.WithCacheSize(r.cfg.Search.RegexCacheSize))
	if err != nil {
		return errors.InternalError("cannot create pattern compiler", err)
	}
	trees, aborted, err := r.parseKeywords(keywordFiles, resolve, compiler, diags)
	if err != nil {
		return err
	}
	res.KeywordsAborted = aborted
	for _, t := range trees {
		res.Keywords += t.PatternCount()
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSearching, Total: res.Keywords})
	engine := search.NewEngine(forest, compiler,
		search.WithWorkers(workers),
		search.WithRichContent(r.cfg.Search.RichContent))
	stats, err := engine.SearchTrees(ctx, trees)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.New(errors.ErrCodeSearchFailed, "keyword search failed", err)
	}
	res.Matches = stats.Matched
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSearching, Current: stats.Patterns, Total: stats.Patterns})
	slog.Info("keywords_searched",
		slog.Int("patterns", stats.Patterns),
		slog.Int("matches", stats.Matched),
		slog.Int("empty", stats.Empty))
	res.Stages.Search = time.Since(stageStart)

	// Every leaf has its matches and the tag index is complete.
	stageStart = time.Now()
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageAssembling, Message: "Assembling index"})
	fsBranch := fsindex.Build(forest, fsindex.Options{
		ExpandDocuments: r.cfg.Output.ExpandDocuments,
		MaxText:         r.cfg.Output.MaxTextLength,
	})
	res.Index = assemble.Assemble(assemble.Input{
		Forest:     forest,
		FileSystem: fsBranch,
		Keywords:   trees,
		Tags:       tagIndex,
		Options: assemble.Options{
			Title:   r.cfg.Output.Title,
			MaxText: r.cfg.Output.MaxTextLength,
		},
	})
	outline.AssignIDs(res.Index)
	res.Stages.Assemble = time.Since(stageStart)

	if err := ctx.Err(); err != nil {
		return err
	}

	// Stage 5: write.
	stageStart = time.Now()
	total := res.Index.Count()
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageWriting, Total: total, CurrentFile: res.Output})
	if err := mindmap.WriteFile(res.Output, res.Index, forest, mindmap.Options{BaseDir: base}); err != nil {
		return err
	}
	if info, err := os.Stat(res.Output); err == nil {
		res.OutputBytes = info.Size()
	}
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageWriting, Current: total, Total: total, CurrentFile: res.Output})
	res.Stages.Write = time.Since(stageStart)

	return nil
}

// scan discovers the documents under roots.
func (r *Runner) scan(ctx context.Context, roots []string, resolve func(string) string, output string, diags *errors.Collector) ([]scanner.File, string, error) {
	abs := make([]string, len(roots))
	for i, root := range roots {
		abs[i] = resolve(root)
	}
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: fmt.Sprintf("Scanning %d roots", len(abs)),
	})
	slog.Info("index_scan_started", slog.Any("roots", abs))

	s, err := scanner.New()
	if err != nil {
		return nil, "", errors.InternalError("cannot create scanner", err)
	}
	result, err := s.Scan(ctx, scanner.Options{
		Roots:            abs,
		Exclude:          r.cfg.Paths.Exclude,
		RespectGitignore: r.cfg.Paths.RespectGitignore,
		FollowSymlinks:   r.cfg.Paths.FollowSymlinks,
		MaxFileSize:      r.cfg.Paths.MaxFileSize,
		Extensions:       r.registry.Extensions(),
		Skip:             []string{output},
	})
	if err != nil {
		return nil, "", err
	}
	r.report(diags, result.Warnings...)

	slog.Info("index_scan_complete",
		slog.String("base", result.Base),
		slog.Int("files", len(result.Files)),
		slog.Int("warnings", len(result.Warnings)))
	return result.Files, result.Base, nil
}

// buildForest parses files on a bounded pool and appends the trees in
// discovery order once all parses have finished.
func (r *Runner) buildForest(ctx context.Context, files []scanner.File, workers int, diags *errors.Collector) (*doctree.Forest, error) {
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageParsing, Total: len(files)})

	trees := make([]*doctree.Tree, len(files))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tree, err := r.registry.ParseFile(gctx, f.AbsPath, f.Path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				// A bad document only removes itself from the forest.
				r.report(diags, asKBI(err))
			} else {
				trees[i] = tree
			}
			r.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageParsing,
				Current:     int(done.Add(1)),
				Total:       len(files),
				CurrentFile: f.Path,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	forest := doctree.NewForest()
	for _, t := range trees {
		if t == nil {
			continue
		}
		if _, err := forest.Append(t); err != nil {
			return nil, errors.InternalError("cannot add document to forest", err)
		}
	}
	forest.Freeze()

	slog.Info("forest_built",
		slog.Int("files", len(files)),
		slog.Int("documents", len(forest.Roots())),
		slog.Int("nodes", forest.Len()))
	return forest, nil
}

// parseKeywords parses every keyword file in order. A structurally invalid
// file is reported and skipped; an unreadable one is fatal.
func (r *Runner) parseKeywords(files []string, resolve func(string) string, compiler *search.RegexCompiler, diags *errors.Collector) ([]*keywords.Tree, bool, error) {
	opts := keywords.Options{
		IndentWidth: r.cfg.Keywords.IndentWidth,
		Compile:     compiler.Check,
	}

	var trees []*keywords.Tree
	aborted := false
	for _, name := range files {
		tree, warnings, err := keywords.ParseFile(resolve(name), opts)
		if err != nil {
			if errors.GetCode(err) == errors.ErrCodeKeywordStructure {
				aborted = true
				r.report(diags, asKBI(err))
				slog.Warn("keyword_file_rejected",
					slog.String("file", name),
					slog.String("error", err.Error()))
				continue
			}
			return nil, false, err
		}
		r.report(diags, warnings...)
		r.report(diags, keywords.Validate(tree)...)
		trees = append(trees, tree)
	}
	return trees, aborted, nil
}

// report records diagnostics and forwards them to the renderer.
func (r *Runner) report(diags *errors.Collector, items ...*errors.KBIError) {
	for _, ke := range items {
		if ke == nil {
			continue
		}
		diags.Add(ke)
		r.renderer.AddError(ui.ErrorEvent{
			File:   ke.Location(),
			Err:    fmt.Errorf("%s", ke.Message),
			IsWarn: ke.Severity == errors.SeverityWarning || ke.Severity == errors.SeverityInfo,
		})
		if r.metrics != nil {
			r.metrics.ObserveDiagnostic(ke.Code, string(ke.Severity))
		}
	}
}

func asKBI(err error) *errors.KBIError {
	if ke, ok := errors.As(err); ok {
		return ke
	}
	return errors.Wrap(errors.ErrCodeInternal, err)
}
