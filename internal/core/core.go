package core

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an Article.
type Status string

const (
	StatusPending     Status = "pending"
	StatusExtracting  Status = "extracting"
	StatusCreating    Status = "creating"
	StatusTranslating Status = "translating"
	StatusOptimising  Status = "optimising"
	StatusDetecting   Status = "detecting"
	StatusPublishing  Status = "publishing"
	StatusReady       Status = "ready"
	StatusFailed      Status = "failed"
)

// statusTransitions lists the allowed next states for each status.
// optimising and detecting alternate while the detect-optimise loop runs.
var statusTransitions = map[Status][]Status{
	StatusPending:     {StatusExtracting, StatusCreating, StatusFailed},
	StatusExtracting:  {StatusTranslating, StatusFailed},
	StatusCreating:    {StatusOptimising, StatusDetecting, StatusReady, StatusFailed},
	StatusTranslating: {StatusOptimising, StatusFailed},
	StatusOptimising:  {StatusDetecting, StatusReady, StatusFailed},
	StatusDetecting:   {StatusOptimising, StatusReady, StatusFailed},
	StatusReady:       {StatusPublishing, StatusPending},
	StatusPublishing:  {StatusReady, StatusFailed},
	StatusFailed:      {StatusPending},
}

// IsValid reports whether s is one of the declared status values.
func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Setting the same status again is always allowed (idempotent updates).
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CreationType distinguishes how an Article entered the pipeline.
type CreationType string

const (
	CreationURLImport     CreationType = "url_import"
	CreationTopicCreation CreationType = "topic_creation"
)

// SourcePlatformTopic is the reserved source_platform value for topic-created articles.
const SourcePlatformTopic = "topic_creation"

// TargetLength is the requested output size class.
type TargetLength string

const (
	LengthMini   TargetLength = "mini"
	LengthShort  TargetLength = "short"
	LengthMedium TargetLength = "medium"
	LengthLong   TargetLength = "long"
)

// CharRange returns the inclusive character range (Chinese characters) for a
// target length. Unknown lengths fall back to the medium range.
func (l TargetLength) CharRange() (int, int) {
	switch l {
	case LengthMini:
		return 300, 500
	case LengthShort:
		return 500, 800
	case LengthLong:
		return 1500, 3000
	default:
		return 800, 1500
	}
}

// Article is the unit of work flowing through the pipeline. The four content
// slots fill progressively as stages run; any of them may be empty.
type Article struct {
	ID                 int64        `json:"id"`
	SourceKey          string       `json:"source_key"` // source URL or topic://<topic>#<ms>; unique
	Title              string       `json:"title"`
	SourcePlatform     string       `json:"source_platform"`
	CreationType       CreationType `json:"creation_type"`
	SourceURL          string       `json:"source_url"`
	Topic              string       `json:"topic"`
	ContentOriginal    string       `json:"content_original"`
	ContentTranslated  string       `json:"content_translated"`
	ContentOptimised   string       `json:"content_optimised"`
	ContentFinal       string       `json:"content_final"`
	Status             Status       `json:"status"`
	AIProbability      *float64     `json:"ai_probability"` // nil until a detection succeeded
	Category           string       `json:"category"`
	WordCount          int          `json:"word_count"`
	ReadingTime        int          `json:"estimated_reading_time"` // minutes
	Tags               []string     `json:"tags"`
	TargetLength       TargetLength `json:"target_length"`
	WritingStyle       string       `json:"writing_style"`
	Keywords           []string     `json:"keywords"`
	CreationReqs       string       `json:"creation_requirements"`
	SelectedPromptID   *int64       `json:"selected_prompt_id"`
	SelectedModelID    *int64       `json:"selected_model_id"`
	ProcessingAttempts int          `json:"processing_attempts"`
	LastError          string       `json:"last_error"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	PublishedAt        *time.Time   `json:"published_at"`
}

// BestContent returns the richest available content slot, preferring the
// optimised draft, then the translation, then the original.
func (a *Article) BestContent() string {
	if a.ContentOptimised != "" {
		return a.ContentOptimised
	}
	if a.ContentTranslated != "" {
		return a.ContentTranslated
	}
	return a.ContentOriginal
}

// TopicSourceKey builds the synthetic unique source key for a topic-created
// article.
func TopicSourceKey(topic string, at time.Time) string {
	return fmt.Sprintf("topic://%s#%d", topic, at.UnixMilli())
}

// TemplateType classifies prompt templates by the stage they serve.
type TemplateType string

const (
	TemplateTranslation  TemplateType = "translation"
	TemplateOptimisation TemplateType = "optimisation"
	TemplateCreation     TemplateType = "creation"
	TemplateAIReduction  TemplateType = "ai_reduction"
)

// ContentType classifies article content for prompt selection.
type ContentType string

const (
	ContentTechnical ContentType = "technical"
	ContentTutorial  ContentType = "tutorial"
	ContentNews      ContentType = "news"
	ContentGeneral   ContentType = "general"
)

// PromptTemplate is a stored prompt with {variable} placeholders.
type PromptTemplate struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"` // globally unique
	DisplayName string       `json:"display_name"`
	Description string       `json:"description"`
	Type        TemplateType `json:"type"`
	Template    string       `json:"template"`
	Variables   []string     `json:"variables"`
	Version     int          `json:"version"`
	Language    string       `json:"language"`
	ContentType ContentType  `json:"content_type"`
	Priority    int          `json:"priority"` // larger wins on ties
	IsActive    bool         `json:"is_active"`
	IsDefault   bool         `json:"is_default"`
	SuccessRate float64      `json:"success_rate"`
	UsageCount  int          `json:"usage_count"`
	AvgQuality  float64      `json:"average_quality_score"`
	Parameters  string       `json:"parameters"`
	TestGroup   string       `json:"test_group"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	LastUsedAt  *time.Time   `json:"last_used_at"`
	CreatedBy   string       `json:"created_by"`
}

// DetectionResult records one detector submission. Rows are append-only.
type DetectionResult struct {
	ID            int64     `json:"id"`
	ArticleID     int64     `json:"article_id"`
	DetectionType string    `json:"detection_type"`
	Platform      string    `json:"platform"`
	Score         float64   `json:"score"` // AI probability 0-100
	Threshold     float64   `json:"threshold"`
	Passed        bool      `json:"is_passed"`
	DetectedAt    time.Time `json:"detected_at"`
	// Diagnostic blob: which identity served the submission and how it went.
	ProfileID  int    `json:"profile_id"`
	EgressIP   string `json:"egress_ip"`
	Attempts   int    `json:"attempts"`
	PageStatus string `json:"page_status"` // success, partial_success, error
}

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Task tracks one background processing run over a single article.
type Task struct {
	ID          int64      `json:"id"`
	TaskID      string     `json:"task_id"` // unique external identifier
	ArticleID   int64      `json:"article_id"`
	Type        string     `json:"type"` // "article_processing"
	Status      TaskStatus `json:"status"`
	Progress    float64    `json:"progress"` // 0-100, monotonically non-decreasing
	CurrentStep string     `json:"current_step"`
	Error       string     `json:"error"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Identity is one (browser profile, egress IP) pair used for detector
// submissions. Identities live only in memory.
type Identity struct {
	ProfileID            int       `json:"profile_id"`
	UserDataDir          string    `json:"user_data_dir"`
	CurrentProxy         string    `json:"current_proxy"` // empty when direct
	EgressIP             string    `json:"egress_ip"`     // last observed public IP
	DetectionsUsedToday  int       `json:"detections_used_today"`
	VerificationFailures int       `json:"verification_failures"`
	LastSwitchedAt       time.Time `json:"last_switched_at"`
}

// ArticleContent is what the scraper returns for a source URL.
type ArticleContent struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Author      string     `json:"author"`
	PublishDate *time.Time `json:"publish_date"`
	Tags        []string   `json:"tags"`
	WordCount   int        `json:"word_count"`
	ReadingTime int        `json:"reading_time"` // minutes
}
