package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"redraft/internal/core"
	"redraft/internal/llm"
	"redraft/internal/prompts"
	"redraft/internal/store"
)

type fakeScraper struct {
	content *core.ArticleContent
	err     error
	calls   int
}

func (f *fakeScraper) Extract(ctx context.Context, url string) (*core.ArticleContent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

// fakeLLM scripts one response per call. A nil entry in errs means success
// with the corresponding text; block, when set, holds every call until the
// channel closes or the context ends.
type fakeLLM struct {
	mu      sync.Mutex
	texts   []string
	errs    []error
	prompts []string
	calls   int
	started chan struct{}
	block   chan struct{}
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, _ llm.Params) (*llm.Result, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	started, block := f.started, f.block
	f.mu.Unlock()

	if started != nil && i == 0 {
		close(started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, core.Wrap(core.KindCancelled, "generation cancelled", ctx.Err())
		}
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	text := "生成的正文"
	if i < len(f.texts) && f.texts[i] != "" {
		text = f.texts[i]
	}
	return &llm.Result{Text: text, FinishReason: "stop"}, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeDetector scripts one score per call against a fixed threshold of 25.
// A non-nil error entry yields the worst-case result alongside the error,
// matching the driver's exhaustion contract.
type fakeDetector struct {
	mu     sync.Mutex
	scores []float64
	errs   []error
	calls  int
}

func (f *fakeDetector) Detect(ctx context.Context, text string) (*core.DetectionResult, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()

	score := 10.0
	if i < len(f.scores) {
		score = f.scores[i]
	}
	status := "success"
	var err error
	if i < len(f.errs) && f.errs[i] != nil {
		err = f.errs[i]
		score = 100
		status = "error"
	}
	return &core.DetectionResult{
		DetectionType: "ai_probability",
		Platform:      "zerogpt",
		Score:         score,
		Threshold:     25,
		Passed:        err == nil && score < 25,
		DetectedAt:    time.Now(),
		Attempts:      1,
		PageStatus:    status,
	}, err
}

func (f *fakeDetector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, article *core.Article) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "out/test.md", nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testDeps struct {
	scraper   *fakeScraper
	llm       *fakeLLM
	detector  *fakeDetector
	publisher *fakePublisher
}

func newTestPipeline(t *testing.T, deps *testDeps, cfg *Config) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if deps.scraper == nil {
		deps.scraper = &fakeScraper{content: &core.ArticleContent{
			Title:       "抓取的标题",
			Content:     "抓取的正文。",
			WordCount:   100,
			ReadingTime: 1,
		}}
	}
	if deps.llm == nil {
		deps.llm = &fakeLLM{}
	}
	if deps.detector == nil {
		deps.detector = &fakeDetector{}
	}
	if deps.publisher == nil {
		deps.publisher = &fakePublisher{}
	}
	if cfg == nil {
		cfg = &Config{
			Threshold:      25,
			MaxAttempts:    3,
			RetryDelay:     time.Millisecond,
			StageTimeout:   5 * time.Second,
			ArticleTimeout: 30 * time.Second,
		}
	}

	p := NewPipeline(st, deps.scraper, deps.llm, deps.detector, deps.publisher,
		prompts.NewCatalog(st), prompts.NewClassifier(), cfg)
	return p, st
}

func TestURLImportHappyPath(t *testing.T) {
	deps := testDeps{
		llm:      &fakeLLM{texts: []string{"翻译后的正文。", "优化后的正文。"}},
		detector: &fakeDetector{scores: []float64{12}},
	}
	p, st := newTestPipeline(t, &deps, nil)

	id, err := p.ImportURL("https://example.com/post", "medium", core.LengthMedium)
	if err != nil {
		t.Fatalf("ImportURL failed: %v", err)
	}
	taskID, err := p.Process(id, Options{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	p.Wait()

	article, err := st.GetArticle(id)
	if err != nil {
		t.Fatal(err)
	}
	if article.Status != core.StatusReady {
		t.Fatalf("status: got %s, want ready (last error %q)", article.Status, article.LastError)
	}
	if article.ContentOriginal != "抓取的正文。" {
		t.Errorf("original content: %q", article.ContentOriginal)
	}
	if article.ContentTranslated != "翻译后的正文。" {
		t.Errorf("translated content: %q", article.ContentTranslated)
	}
	if article.ContentOptimised != "优化后的正文。" {
		t.Errorf("optimised content: %q", article.ContentOptimised)
	}
	if article.Title != "抓取的标题" {
		t.Errorf("title: %q", article.Title)
	}
	if article.AIProbability == nil || *article.AIProbability != 12 {
		t.Errorf("ai probability: %v", article.AIProbability)
	}

	task, err := st.GetTask(taskID)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != core.TaskCompleted || task.Progress != 100 {
		t.Errorf("task: %+v", task)
	}

	last, err := st.LastDetection(id)
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.Score != 12 || !last.Passed {
		t.Errorf("last detection: %+v", last)
	}
}

func TestTopicCreationPath(t *testing.T) {
	deps := testDeps{
		llm:      &fakeLLM{texts: []string{"创作的初稿。", "优化后的定稿。"}},
		detector: &fakeDetector{scores: []float64{8}},
	}
	p, st := newTestPipeline(t, &deps, nil)

	id, err := p.CreateTopic(TopicSpec{
		Topic:        "国产数据库的现状",
		TargetLength: core.LengthShort,
		Keywords:     []string{"TiDB", "OceanBase"},
	})
	if err != nil {
		t.Fatalf("CreateTopic failed: %v", err)
	}
	if _, err := p.Process(id, Options{}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	p.Wait()

	article, err := st.GetArticle(id)
	if err != nil {
		t.Fatal(err)
	}
	if article.Status != core.StatusReady {
		t.Fatalf("status: got %s (last error %q)", article.Status, article.LastError)
	}
	if article.Title != "国产数据库的现状" {
		t.Errorf("title should default to the topic, got %q", article.Title)
	}
	// The topic path commits the accepted rewrite back to the original slot.
	if article.ContentOriginal != "优化后的定稿。" {
		t.Errorf("accepted draft: %q", article.ContentOriginal)
	}
	if article.ContentOptimised != "" {
		t.Errorf("topic path must not touch the optimised slot: %q", article.ContentOptimised)
	}
	if deps.scraper.calls != 0 {
		t.Error("topic creation must not scrape")
	}
	// The creation prompt carries the brief.
	if !strings.Contains(deps.llm.prompts[0], "国产数据库的现状") {
		t.Errorf("creation prompt missing topic: %q", deps.llm.prompts[0])
	}
	if !strings.Contains(deps.llm.prompts[0], "TiDB、OceanBase") {
		t.Errorf("creation prompt missing keywords: %q", deps.llm.prompts[0])
	}
}

func TestOptimisationExhaustionFailsArticle(t *testing.T) {
	deps := testDeps{
		llm:      &fakeLLM{},
		detector: &fakeDetector{scores: []float64{80, 60}},
	}
	cfg := &Config{
		Threshold:      25,
		MaxAttempts:    2,
		RetryDelay:     time.Millisecond,
		StageTimeout:   5 * time.Second,
		ArticleTimeout: 30 * time.Second,
	}
	p, st := newTestPipeline(t, &deps, cfg)

	id, err := p.ImportURL("https://example.com/stubborn", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	taskID, err := p.Process(id, Options{})
	if err != nil {
		t.Fatal(err)
	}
	p.Wait()

	article, err := st.GetArticle(id)
	if err != nil {
		t.Fatal(err)
	}
	if article.Status != core.StatusFailed {
		t.Fatalf("status: got %s, want failed", article.Status)
	}
	if !strings.Contains(article.LastError, "above threshold") {
		t.Errorf("last error should explain the exhaustion: %q", article.LastError)
	}
	// Accepted content is only committed on a pass.
	if article.ContentOptimised != "" {
		t.Errorf("failed run must not commit optimised content: %q", article.ContentOptimised)
	}
	if article.AIProbability == nil || *article.AIProbability != 60 {
		t.Errorf("last measured probability: %v", article.AIProbability)
	}

	task, err := st.GetTask(taskID)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != core.TaskFailed {
		t.Errorf("task status: got %s, want failed", task.Status)
	}
	if deps.detector.callCount() != 2 {
		t.Errorf("detector calls: got %d, want 2", deps.detector.callCount())
	}
}

func TestAutoPublish(t *testing.T) {
	deps := testDeps{
		llm:       &fakeLLM{},
		detector:  &fakeDetector{scores: []float64{5}},
		publisher: &fakePublisher{},
	}
	p, st := newTestPipeline(t, &deps, nil)

	id, err := p.ImportURL("https://example.com/publish-me", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Process(id, Options{AutoPublish: true}); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	article, err := st.GetArticle(id)
	if err != nil {
		t.Fatal(err)
	}
	if article.Status != core.StatusReady {
		t.Fatalf("status: got %s (last error %q)", article.Status, article.LastError)
	}
	if deps.publisher.callCount() != 1 {
		t.Errorf("publisher calls: got %d, want 1", deps.publisher.callCount())
	}
	if article.PublishedAt == nil {
		t.Error("published_at should be set after delivery")
	}
}

func TestPublishWithoutAutoPublishSkipped(t *testing.T) {
	deps := testDeps{
		llm:       &fakeLLM{},
		detector:  &fakeDetector{scores: []float64{5}},
		publisher: &fakePublisher{},
	}
	p, st := newTestPipeline(t, &deps, nil)

	id, err := p.ImportURL("https://example.com/hold", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Process(id, Options{}); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	if deps.publisher.callCount() != 0 {
		t.Error("publish must not run unless requested")
	}
	article, _ := st.GetArticle(id)
	if article.PublishedAt != nil {
		t.Error("published_at should stay unset")
	}
}

func TestDetectorFailureContinuesLoop(t *testing.T) {
	deps := testDeps{
		llm: &fakeLLM{},
		detector: &fakeDetector{
			errs:   []error{core.E(core.KindTransport, "all sessions failed"), nil},
			scores: []float64{0, 15},
		},
	}
	p, st := newTestPipeline(t, &deps, nil)

	id, err := p.ImportURL("https://example.com/flaky", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Process(id, Options{}); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	article, err := st.GetArticle(id)
	if err != nil {
		t.Fatal(err)
	}
	// Round one's detector failure is not a pass and not fatal; round two
	// passes.
	if article.Status != core.StatusReady {
		t.Fatalf("status: got %s (last error %q)", article.Status, article.LastError)
	}
	if deps.detector.callCount() != 2 {
		t.Errorf("detector calls: got %d, want 2", deps.detector.callCount())
	}

	history, err := st.ListDetections(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("detections recorded: got %d, want 2", len(history))
	}
}

func TestLLMFailureAbortsRun(t *testing.T) {
	deps := testDeps{
		llm:      &fakeLLM{errs: []error{core.E(core.KindLLMFailure, "model unavailable")}},
		detector: &fakeDetector{},
	}
	p, st := newTestPipeline(t, &deps, nil)

	id, err := p.ImportURL("https://example.com/dead-llm", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Process(id, Options{}); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	article, err := st.GetArticle(id)
	if err != nil {
		t.Fatal(err)
	}
	if article.Status != core.StatusFailed {
		t.Fatalf("status: got %s, want failed", article.Status)
	}
	if !strings.Contains(article.LastError, "model unavailable") {
		t.Errorf("last error: %q", article.LastError)
	}
	if deps.detector.callCount() != 0 {
		t.Error("nothing should reach the detector when generation fails")
	}
}

func TestReprocessFailedArticleResets(t *testing.T) {
	deps := testDeps{
		llm: &fakeLLM{errs: []error{
			core.E(core.KindLLMFailure, "first run dies"),
			nil, nil,
		}},
		detector: &fakeDetector{scores: []float64{10}},
	}
	p, st := newTestPipeline(t, &deps, nil)

	id, err := p.ImportURL("https://example.com/retry-me", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Process(id, Options{}); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	article, _ := st.GetArticle(id)
	if article.Status != core.StatusFailed {
		t.Fatalf("first run should fail, got %s", article.Status)
	}
	if article.ProcessingAttempts != 1 {
		t.Errorf("attempts after failure: got %d, want 1", article.ProcessingAttempts)
	}

	if _, err := p.Process(id, Options{}); err != nil {
		t.Fatalf("reprocess failed to start: %v", err)
	}
	p.Wait()

	article, err = st.GetArticle(id)
	if err != nil {
		t.Fatal(err)
	}
	if article.Status != core.StatusReady {
		t.Fatalf("status after retry: got %s (last error %q)", article.Status, article.LastError)
	}
	// A retry is a fresh start, not a continuation.
	if article.ProcessingAttempts != 0 {
		t.Errorf("retry should zero the attempt counter: got %d", article.ProcessingAttempts)
	}
	if article.LastError != "" {
		t.Errorf("last error should be cleared, got %q", article.LastError)
	}
}

func TestCancelMidRun(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	deps := testDeps{
		llm:      &fakeLLM{block: block, started: started},
		detector: &fakeDetector{},
	}
	p, st := newTestPipeline(t, &deps, nil)

	id, err := p.ImportURL("https://example.com/cancel-me", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	taskID, err := p.Process(id, Options{})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("task never reached the generation stage")
	}
	if err := p.Cancel(taskID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	p.Wait()
	close(block)

	task, err := st.GetTask(taskID)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != core.TaskCancelled {
		t.Errorf("task status: got %s, want cancelled", task.Status)
	}
	// The article keeps the status of the stage it was in, never failed.
	article, _ := st.GetArticle(id)
	if article.Status != core.StatusTranslating {
		t.Errorf("article status: got %s, want translating", article.Status)
	}
}

func TestCancelTerminalTask(t *testing.T) {
	deps := testDeps{
		llm:      &fakeLLM{},
		detector: &fakeDetector{scores: []float64{5}},
	}
	p, st := newTestPipeline(t, &deps, nil)

	id, err := p.ImportURL("https://example.com/done", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	taskID, err := p.Process(id, Options{})
	if err != nil {
		t.Fatal(err)
	}
	p.Wait()

	if task, _ := st.GetTask(taskID); task.Status != core.TaskCompleted {
		t.Fatalf("precondition: task should be completed, got %s", task.Status)
	}
	if err := p.Cancel(taskID); !core.IsKind(err, core.KindValidation) {
		t.Errorf("cancelling a finished task: got %v, want validation", err)
	}
}

func TestCancelUnknownTask(t *testing.T) {
	p, _ := newTestPipeline(t, &testDeps{}, nil)
	if err := p.Cancel("no-such-task"); !core.IsKind(err, core.KindNotFound) {
		t.Errorf("got %v, want not_found", err)
	}
}

func TestProcessManyReportsStartFailures(t *testing.T) {
	deps := testDeps{
		llm:      &fakeLLM{},
		detector: &fakeDetector{scores: []float64{5, 5}},
	}
	p, _ := newTestPipeline(t, &deps, nil)

	a, err := p.ImportURL("https://example.com/one", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.ImportURL("https://example.com/two", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}

	tasks, failures := p.ProcessMany([]int64{a, b, 9999}, Options{})
	p.Wait()

	if len(tasks) != 2 {
		t.Errorf("started tasks: got %d, want 2", len(tasks))
	}
	if !core.IsKind(failures[9999], core.KindNotFound) {
		t.Errorf("missing article: got %v, want not_found", failures[9999])
	}
}

func TestDuplicateURLImport(t *testing.T) {
	p, _ := newTestPipeline(t, &testDeps{}, nil)

	if _, err := p.ImportURL("https://example.com/same", "", core.LengthMedium); err != nil {
		t.Fatal(err)
	}
	_, err := p.ImportURL("https://example.com/same", "", core.LengthMedium)
	if !core.IsKind(err, core.KindDuplicateKey) {
		t.Errorf("got %v, want duplicate_key", err)
	}
}

func TestImportURLValidation(t *testing.T) {
	p, _ := newTestPipeline(t, &testDeps{}, nil)
	if _, err := p.ImportURL("   ", "", core.LengthMedium); !core.IsKind(err, core.KindValidation) {
		t.Errorf("blank URL: got %v, want validation", err)
	}
	if _, err := p.CreateTopic(TopicSpec{}); !core.IsKind(err, core.KindValidation) {
		t.Errorf("blank topic: got %v, want validation", err)
	}
}

func TestAIReductionStageOnReentry(t *testing.T) {
	// An article whose accepted draft drifted back over the threshold gets
	// the targeted rewrite prompt, not the generic optimisation one.
	deps := testDeps{
		llm:      &fakeLLM{},
		detector: &fakeDetector{scores: []float64{9}},
	}
	p, st := newTestPipeline(t, &deps, nil)

	id, err := p.ImportURL("https://example.com/drifted", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a prior accepted run that later measured high again.
	prior := "早先通过的草稿。"
	high := 70.0
	for _, status := range []core.Status{core.StatusExtracting, core.StatusTranslating, core.StatusOptimising} {
		s := status
		if err := st.UpdateArticle(id, store.ArticlePatch{Status: &s}); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.UpdateArticle(id, store.ArticlePatch{
		ContentOptimised: &prior,
		AIProbability:    &high,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Process(id, Options{Steps: []string{StepOptimise}}); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	article, err := st.GetArticle(id)
	if err != nil {
		t.Fatal(err)
	}
	if article.Status != core.StatusReady {
		t.Fatalf("status: got %s (last error %q)", article.Status, article.LastError)
	}
	if deps.llm.callCount() != 1 {
		t.Fatalf("llm calls: got %d, want 1", deps.llm.callCount())
	}
	// The rewrite prompt operates on the previously accepted draft.
	if !strings.Contains(deps.llm.prompts[0], prior) {
		t.Errorf("rewrite prompt should carry the accepted draft: %q", deps.llm.prompts[0])
	}
}

func TestFirstRoundIgnoresStoredProbability(t *testing.T) {
	// A stale measurement from an earlier run informs round two onwards, but
	// round one always starts from the midpoint band.
	deps := testDeps{
		llm:      &fakeLLM{},
		detector: &fakeDetector{scores: []float64{9}},
	}
	p, st := newTestPipeline(t, &deps, nil)

	id, err := p.ImportURL("https://example.com/stale-score", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	translated := "早先翻译好的正文。"
	high := 70.0
	for _, status := range []core.Status{core.StatusExtracting, core.StatusTranslating} {
		s := status
		if err := st.UpdateArticle(id, store.ArticlePatch{Status: &s}); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.UpdateArticle(id, store.ArticlePatch{
		ContentTranslated: &translated,
		AIProbability:     &high,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Process(id, Options{Steps: []string{StepOptimise}}); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	article, err := st.GetArticle(id)
	if err != nil {
		t.Fatal(err)
	}
	if article.Status != core.StatusReady {
		t.Fatalf("status: got %s (last error %q)", article.Status, article.LastError)
	}
	// The stored 70% would select the heavy band; round one must use the
	// midpoint's standard band instead.
	if strings.Contains(deps.llm.prompts[0], "深度改写") {
		t.Errorf("round one used the heavy rewrite prompt: %q", deps.llm.prompts[0])
	}
	if !strings.Contains(deps.llm.prompts[0], "真人作者的手笔") {
		t.Errorf("round one should use the standard rewrite prompt: %q", deps.llm.prompts[0])
	}
}

func TestExhaustionErrorKind(t *testing.T) {
	deps := testDeps{
		llm:      &fakeLLM{},
		detector: &fakeDetector{scores: []float64{80, 60}},
	}
	cfg := &Config{
		Threshold:      25,
		MaxAttempts:    2,
		RetryDelay:     time.Millisecond,
		StageTimeout:   5 * time.Second,
		ArticleTimeout: 30 * time.Second,
	}
	p, st := newTestPipeline(t, &deps, cfg)

	id, err := p.ImportURL("https://example.com/never-passes", "", core.LengthMedium)
	if err != nil {
		t.Fatal(err)
	}
	translated := "顽固的正文。"
	for _, status := range []core.Status{core.StatusExtracting, core.StatusTranslating} {
		s := status
		if err := st.UpdateArticle(id, store.ArticlePatch{Status: &s}); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.UpdateArticle(id, store.ArticlePatch{ContentTranslated: &translated}); err != nil {
		t.Fatal(err)
	}
	article, err := st.GetArticle(id)
	if err != nil {
		t.Fatal(err)
	}

	err = p.runLoop(context.Background(), article, Options{}, false)
	if err == nil {
		t.Fatal("exhaustion should surface an error")
	}
	// Giving up after the attempt budget is an expected stage outcome, not an
	// invariant violation.
	if !core.IsKind(err, core.KindThresholdNotMet) {
		t.Errorf("error kind: got %s, want threshold_not_met", core.KindOf(err))
	}
	if core.IsKind(err, core.KindFatal) {
		t.Error("exhaustion must not be classified fatal")
	}
}
