package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"redraft/internal/core"
	"redraft/internal/llm"
	"redraft/internal/logger"
	"redraft/internal/prompts"
	"redraft/internal/store"
)

// Step names in execution order. The step list for an article derives from
// its creation type.
const (
	StepExtract   = "extract"
	StepCreate    = "create"
	StepTranslate = "translate"
	StepOptimise  = "optimise"
	StepPublish   = "publish"
)

const taskTypeProcessing = "article_processing"

// Config holds the pipeline's tuning knobs.
type Config struct {
	Threshold      float64       // AI probability acceptance bar, 0-100
	MaxAttempts    int           // optimisation rounds before giving up
	RetryDelay     time.Duration // pause between optimisation rounds
	StageTimeout   time.Duration // budget per stage
	ArticleTimeout time.Duration // budget per article end to end
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() *Config {
	return &Config{
		Threshold:      25,
		MaxAttempts:    5,
		RetryDelay:     2 * time.Second,
		StageTimeout:   10 * time.Minute,
		ArticleTimeout: 2 * time.Hour,
	}
}

// Pipeline coordinates all stage components over the store.
type Pipeline struct {
	store      Store
	scraper    Scraper
	llm        llm.Client
	detector   Detector
	publisher  Publisher
	catalog    *prompts.Catalog
	classifier *prompts.Classifier
	config     *Config

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewPipeline creates a pipeline with all dependencies.
func NewPipeline(
	st Store,
	scraper Scraper,
	llmClient llm.Client,
	detector Detector,
	publisher Publisher,
	catalog *prompts.Catalog,
	classifier *prompts.Classifier,
	config *Config,
) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if classifier == nil {
		classifier = prompts.NewClassifier()
	}
	return &Pipeline{
		store:      st,
		scraper:    scraper,
		llm:        llmClient,
		detector:   detector,
		publisher:  publisher,
		catalog:    catalog,
		classifier: classifier,
		config:     config,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Options configures one processing run.
type Options struct {
	Steps       []string // explicit step list; nil derives from creation type
	AutoPublish bool     // append the publish step
	PromptID    *int64   // pin a stored template for the LLM stages
}

// Process starts a background task for the article and returns its task id.
// A failed article is reset to pending before processing restarts.
func (p *Pipeline) Process(articleID int64, opts Options) (string, error) {
	article, err := p.store.GetArticle(articleID)
	if err != nil {
		return "", err
	}

	if article.Status == core.StatusFailed {
		// Retrying is an explicit fresh start: the attempt counter goes back
		// to zero along with the error.
		status := core.StatusPending
		attempts := 0
		empty := ""
		if err := p.store.UpdateArticle(articleID, store.ArticlePatch{
			Status:             &status,
			ProcessingAttempts: &attempts,
			LastError:          &empty,
		}); err != nil {
			return "", err
		}
		article.Status = core.StatusPending
	}

	steps := opts.Steps
	if len(steps) == 0 {
		steps = defaultSteps(article.CreationType)
	}
	if opts.AutoPublish && steps[len(steps)-1] != StepPublish {
		steps = append(steps, StepPublish)
	}

	taskID := uuid.NewString()
	if _, err := p.store.CreateTask(taskID, articleID, taskTypeProcessing); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.config.ArticleTimeout)
	p.mu.Lock()
	p.cancels[taskID] = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			cancel()
			p.mu.Lock()
			delete(p.cancels, taskID)
			p.mu.Unlock()
		}()
		p.run(ctx, taskID, articleID, steps, opts)
	}()

	return taskID, nil
}

// ProcessMany starts one task per article and returns article id -> task id.
// Articles that fail to start are reported in the error map instead.
func (p *Pipeline) ProcessMany(articleIDs []int64, opts Options) (map[int64]string, map[int64]error) {
	tasks := make(map[int64]string, len(articleIDs))
	failures := make(map[int64]error)
	for _, id := range articleIDs {
		taskID, err := p.Process(id, opts)
		if err != nil {
			failures[id] = err
			continue
		}
		tasks[id] = taskID
	}
	return tasks, failures
}

// Cancel stops a running task. Terminal tasks cannot be cancelled.
func (p *Pipeline) Cancel(taskID string) error {
	task, err := p.store.GetTask(taskID)
	if err != nil {
		return err
	}
	switch task.Status {
	case core.TaskCompleted, core.TaskFailed, core.TaskCancelled:
		return core.Ef(core.KindValidation, "task %s already %s", taskID, task.Status)
	}

	p.mu.Lock()
	cancel, ok := p.cancels[taskID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return p.store.SetTaskStatus(taskID, core.TaskCancelled, "cancelled by request")
}

// Wait blocks until all background tasks have finished. Used on shutdown and
// by the CLI, which exits after its one task.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// defaultSteps derives the step list from how the article entered the system.
// The create step runs the detect-optimise loop internally, so the topic path
// is a single step.
func defaultSteps(ct core.CreationType) []string {
	if ct == core.CreationTopicCreation {
		return []string{StepCreate}
	}
	return []string{StepExtract, StepTranslate, StepOptimise}
}

// run executes the step list for one article, maintaining task progress and
// the article status machine.
func (p *Pipeline) run(ctx context.Context, taskID string, articleID int64, steps []string, opts Options) {
	if err := p.store.SetTaskStatus(taskID, core.TaskRunning, ""); err != nil {
		logger.Error("mark task running", err, "task_id", taskID)
		return
	}
	logger.Info("task started", "task_id", taskID, "article_id", articleID, "steps", steps)

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			p.finishCancelled(taskID, articleID)
			return
		}

		progress := float64(i) / float64(len(steps)) * 100
		if err := p.store.SetTaskProgress(taskID, progress, step); err != nil {
			logger.Warn("task progress update failed", "task_id", taskID, "error", err)
		}

		stageCtx, cancel := context.WithTimeout(ctx, p.config.StageTimeout)
		err := p.runStep(stageCtx, step, articleID, opts)
		cancel()

		if err != nil {
			if core.KindOf(err) == core.KindCancelled || ctx.Err() != nil {
				p.finishCancelled(taskID, articleID)
				return
			}
			p.finishFailed(taskID, articleID, step, err)
			return
		}
	}

	if err := p.store.SetTaskProgress(taskID, 100, "done"); err != nil {
		logger.Warn("task progress update failed", "task_id", taskID, "error", err)
	}
	if err := p.store.SetTaskStatus(taskID, core.TaskCompleted, ""); err != nil {
		logger.Error("mark task completed", err, "task_id", taskID)
	}
	logger.Info("task completed", "task_id", taskID, "article_id", articleID)
}

func (p *Pipeline) runStep(ctx context.Context, step string, articleID int64, opts Options) error {
	article, err := p.store.GetArticle(articleID)
	if err != nil {
		return err
	}

	switch step {
	case StepExtract:
		return p.runExtract(ctx, article)
	case StepCreate:
		return p.runCreate(ctx, article, opts)
	case StepTranslate:
		return p.runTranslate(ctx, article, opts)
	case StepOptimise:
		return p.runOptimise(ctx, article, opts)
	case StepPublish:
		return p.runPublish(ctx, article)
	}
	return core.Ef(core.KindValidation, "unknown step %q", step)
}

func (p *Pipeline) finishFailed(taskID string, articleID int64, step string, err error) {
	msg := fmt.Sprintf("%s: %v", step, err)
	logger.Error("task failed", err, "task_id", taskID, "article_id", articleID, "step", step)

	status := core.StatusFailed
	patch := store.ArticlePatch{
		Status:    &status,
		LastError: &msg,
	}
	if article, gerr := p.store.GetArticle(articleID); gerr == nil {
		attempts := article.ProcessingAttempts + 1
		patch.ProcessingAttempts = &attempts
	}
	if uerr := p.store.UpdateArticle(articleID, patch); uerr != nil {
		logger.Error("mark article failed", uerr, "article_id", articleID)
	}
	if serr := p.store.SetTaskStatus(taskID, core.TaskFailed, msg); serr != nil {
		logger.Error("mark task failed", serr, "task_id", taskID)
	}
}

// finishCancelled marks the task cancelled. The article keeps whatever status
// the last step set so a later run can pick up from there.
func (p *Pipeline) finishCancelled(taskID string, articleID int64) {
	logger.Info("task cancelled", "task_id", taskID, "article_id", articleID)
	if err := p.store.SetTaskStatus(taskID, core.TaskCancelled, "processing cancelled"); err != nil {
		logger.Error("mark task cancelled", err, "task_id", taskID)
	}
}

// runExtract scrapes the source URL into the original content slot.
func (p *Pipeline) runExtract(ctx context.Context, article *core.Article) error {
	if err := p.setStatus(article, core.StatusExtracting); err != nil {
		return err
	}

	content, err := p.scraper.Extract(ctx, article.SourceURL)
	if err != nil {
		return fmt.Errorf("extract %s: %w", article.SourceURL, err)
	}

	patch := store.ArticlePatch{
		ContentOriginal: &content.Content,
		WordCount:       &content.WordCount,
		ReadingTime:     &content.ReadingTime,
	}
	if content.Title != "" {
		patch.Title = &content.Title
	}
	if len(content.Tags) > 0 {
		patch.Tags = content.Tags
	}
	return p.store.UpdateArticle(article.ID, patch)
}

// runCreate generates an original draft from the article's topic brief.
func (p *Pipeline) runCreate(ctx context.Context, article *core.Article, opts Options) error {
	if err := p.setStatus(article, core.StatusCreating); err != nil {
		return err
	}

	length := article.TargetLength
	if length == "" {
		length = core.LengthMedium
	}
	style := article.WritingStyle
	if style == "" {
		style = "专业而不失亲和"
	}
	reqs := article.CreationReqs
	if reqs == "" {
		reqs = "无其他特殊要求"
	}

	sel, err := p.catalog.Select(prompts.Request{
		Stage:       core.TemplateCreation,
		ContentType: p.classifier.Classify(article.Topic, article.CreationReqs),
		PromptID:    pinnedPrompt(article, opts),
		Vars: map[string]string{
			"topic":         article.Topic,
			"target_length": string(length),
			"writing_style": style,
			"keywords":      joinOr(article.Keywords, "围绕主题自选"),
			"requirements":  reqs,
		},
	})
	if err != nil {
		return fmt.Errorf("select creation prompt: %w", err)
	}

	result, err := p.llm.Call(ctx, sel.Prompt, llm.Params{})
	if err != nil {
		return fmt.Errorf("create draft: %w", err)
	}

	patch := store.ArticlePatch{
		ContentOriginal:  &result.Text,
		SelectedPromptID: sel.TemplateID,
	}
	if article.Title == "" {
		patch.Title = &article.Topic
	}
	if err := p.store.UpdateArticle(article.ID, patch); err != nil {
		return err
	}
	article.ContentOriginal = result.Text

	// The topic path humanises the fresh draft in place.
	return p.runLoop(ctx, article, opts, true)
}

// runTranslate turns the extracted original into the working translation.
func (p *Pipeline) runTranslate(ctx context.Context, article *core.Article, opts Options) error {
	if article.ContentOriginal == "" {
		return core.E(core.KindValidation, "nothing to translate: original content is empty")
	}
	if err := p.setStatus(article, core.StatusTranslating); err != nil {
		return err
	}

	sel, err := p.catalog.Select(prompts.Request{
		Stage:       core.TemplateTranslation,
		ContentType: p.classifier.Classify(article.Title, article.ContentOriginal),
		PromptID:    pinnedPrompt(article, opts),
		Vars:        map[string]string{"content": article.ContentOriginal},
	})
	if err != nil {
		return fmt.Errorf("select translation prompt: %w", err)
	}

	result, err := p.llm.Call(ctx, sel.Prompt, llm.Params{})
	if err != nil {
		return fmt.Errorf("translate: %w", err)
	}

	return p.store.UpdateArticle(article.ID, store.ArticlePatch{
		ContentTranslated: &result.Text,
		SelectedPromptID:  sel.TemplateID,
	})
}

// runPublish delivers a ready article and records the publication time.
func (p *Pipeline) runPublish(ctx context.Context, article *core.Article) error {
	if article.Status != core.StatusReady {
		return core.Ef(core.KindValidation, "article %d is %s, only ready articles publish", article.ID, article.Status)
	}
	if err := p.setStatus(article, core.StatusPublishing); err != nil {
		return err
	}

	ref, err := p.publisher.Publish(ctx, article)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	logger.Info("article delivered", "article_id", article.ID, "destination", ref)

	status := core.StatusReady
	now := time.Now().UTC()
	return p.store.UpdateArticle(article.ID, store.ArticlePatch{
		Status:      &status,
		PublishedAt: &now,
	})
}

// setStatus moves the article's lifecycle state and keeps the in-memory copy
// in sync.
func (p *Pipeline) setStatus(article *core.Article, status core.Status) error {
	if err := p.store.UpdateArticle(article.ID, store.ArticlePatch{Status: &status}); err != nil {
		return err
	}
	article.Status = status
	return nil
}

func pinnedPrompt(article *core.Article, opts Options) *int64 {
	if opts.PromptID != nil {
		return opts.PromptID
	}
	return article.SelectedPromptID
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	out := items[0]
	for _, item := range items[1:] {
		out += "、" + item
	}
	return out
}
