// Package pipeline orchestrates the article lifecycle: import or create,
// translate, optimise against the detector, publish. Stages run in background
// tasks; the orchestrator owns status transitions and cancellation.
package pipeline

import (
	"context"

	"redraft/internal/core"
	"redraft/internal/store"
)

// Scraper fetches a source URL and extracts the readable article.
type Scraper interface {
	Extract(ctx context.Context, url string) (*core.ArticleContent, error)
}

// Detector scores text against the external AI detector. The result is
// usable whenever the error is nil; a non-nil error with a non-nil result
// means all sessions failed and the score is the worst-case fallback.
type Detector interface {
	Detect(ctx context.Context, text string) (*core.DetectionResult, error)
}

// Publisher delivers a ready article to its destination and returns a
// destination reference.
type Publisher interface {
	Publish(ctx context.Context, article *core.Article) (string, error)
}

// Store is the persistence slice the pipeline drives.
type Store interface {
	CreateArticle(article *core.Article) (int64, error)
	GetArticle(id int64) (*core.Article, error)
	UpdateArticle(id int64, patch store.ArticlePatch) error
	CreateTask(taskID string, articleID int64, taskType string) (*core.Task, error)
	GetTask(taskID string) (*core.Task, error)
	SetTaskStatus(taskID string, status core.TaskStatus, errMsg string) error
	SetTaskProgress(taskID string, progress float64, currentStep string) error
	AppendDetection(d *core.DetectionResult) (int64, error)
	LastDetection(articleID int64) (*core.DetectionResult, error)
	RecordTemplateUse(id int64, passed bool, qualityScore float64) error
}

var _ Store = (*store.Store)(nil)
