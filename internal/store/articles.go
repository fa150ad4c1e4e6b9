package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"redraft/internal/core"
)

// CreateArticle inserts a new article and returns its id. A source_key
// collision surfaces as a DuplicateKey error.
func (s *Store) CreateArticle(article *core.Article) (int64, error) {
	if article.SourceKey == "" {
		return 0, core.E(core.KindValidation, "article source_key is required")
	}
	switch article.CreationType {
	case core.CreationURLImport:
		if article.SourceURL == "" {
			return 0, core.E(core.KindValidation, "url_import article requires source_url")
		}
	case core.CreationTopicCreation:
		if article.Topic == "" {
			return 0, core.E(core.KindValidation, "topic_creation article requires topic")
		}
	default:
		return 0, core.Ef(core.KindValidation, "unknown creation_type %q", article.CreationType)
	}

	status := article.Status
	if status == "" {
		status = core.StatusPending
	}
	if !status.IsValid() {
		return 0, core.Ef(core.KindValidation, "unknown status %q", status)
	}
	length := article.TargetLength
	if length == "" {
		length = core.LengthMedium
	}

	now := time.Now().UTC()
	query := `
	INSERT INTO articles
	(source_key, title, source_platform, creation_type, source_url, topic,
	 content_original, content_translated, content_optimised, content_final,
	 status, ai_probability, category, word_count, estimated_reading_time, tags,
	 target_length, writing_style, keywords, selected_prompt_id, selected_model_id,
	 creation_requirements, processing_attempts, last_error, created_at, updated_at, published_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.Exec(query,
		article.SourceKey,
		article.Title,
		article.SourcePlatform,
		string(article.CreationType),
		article.SourceURL,
		article.Topic,
		article.ContentOriginal,
		article.ContentTranslated,
		article.ContentOptimised,
		article.ContentFinal,
		string(status),
		article.AIProbability,
		article.Category,
		article.WordCount,
		article.ReadingTime,
		marshalList(article.Tags),
		string(length),
		article.WritingStyle,
		marshalList(article.Keywords),
		article.SelectedPromptID,
		article.SelectedModelID,
		article.CreationReqs,
		article.ProcessingAttempts,
		article.LastError,
		now,
		now,
		article.PublishedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, core.Ef(core.KindDuplicateKey, "source_key %q already exists", article.SourceKey)
		}
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return res.LastInsertId()
}

const articleColumns = `
	id, source_key, title, source_platform, creation_type, source_url, topic,
	content_original, content_translated, content_optimised, content_final,
	status, ai_probability, category, word_count, estimated_reading_time, tags,
	target_length, writing_style, keywords, selected_prompt_id, selected_model_id,
	creation_requirements, processing_attempts, last_error, created_at, updated_at, published_at`

func scanArticle(row interface{ Scan(...any) error }) (*core.Article, error) {
	var a core.Article
	var creationType, status, length, tags, keywords string
	var aiProb sql.NullFloat64
	var promptID, modelID sql.NullInt64
	var publishedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.SourceKey, &a.Title, &a.SourcePlatform, &creationType,
		&a.SourceURL, &a.Topic,
		&a.ContentOriginal, &a.ContentTranslated, &a.ContentOptimised, &a.ContentFinal,
		&status, &aiProb, &a.Category, &a.WordCount, &a.ReadingTime, &tags,
		&length, &a.WritingStyle, &keywords, &promptID, &modelID,
		&a.CreationReqs, &a.ProcessingAttempts, &a.LastError,
		&a.CreatedAt, &a.UpdatedAt, &publishedAt,
	)
	if err != nil {
		return nil, err
	}

	a.CreationType = core.CreationType(creationType)
	a.Status = core.Status(status)
	a.TargetLength = core.TargetLength(length)
	a.Tags = unmarshalList(tags)
	a.Keywords = unmarshalList(keywords)
	if aiProb.Valid {
		a.AIProbability = &aiProb.Float64
	}
	if promptID.Valid {
		a.SelectedPromptID = &promptID.Int64
	}
	if modelID.Valid {
		a.SelectedModelID = &modelID.Int64
	}
	if publishedAt.Valid {
		a.PublishedAt = &publishedAt.Time
	}
	return &a, nil
}

// GetArticle loads one article by id.
func (s *Store) GetArticle(id int64) (*core.Article, error) {
	row := s.db.QueryRow("SELECT"+articleColumns+" FROM articles WHERE id = ?", id)
	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, core.Ef(core.KindNotFound, "article %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}
	return article, nil
}

// ArticlePatch lists the mutable article fields. Nil fields are left
// untouched; the update is applied atomically in one statement.
type ArticlePatch struct {
	Title              *string
	ContentOriginal    *string
	ContentTranslated  *string
	ContentOptimised   *string
	ContentFinal       *string
	Status             *core.Status
	AIProbability      *float64
	Category           *string
	WordCount          *int
	ReadingTime        *int
	Tags               []string
	Keywords           []string
	SelectedPromptID   *int64
	ProcessingAttempts *int
	LastError          *string
	PublishedAt        *time.Time
}

// UpdateArticle applies a patch inside a transaction. A status change is
// validated against the lifecycle before the write.
func (s *Store) UpdateArticle(id int64, patch ArticlePatch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if patch.Status != nil {
		var current string
		err := tx.QueryRow("SELECT status FROM articles WHERE id = ?", id).Scan(&current)
		if err == sql.ErrNoRows {
			return core.Ef(core.KindNotFound, "article %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}
		if !core.Status(current).CanTransitionTo(*patch.Status) {
			return core.Ef(core.KindValidation, "invalid status transition %s -> %s", current, *patch.Status)
		}
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.ContentOriginal != nil {
		add("content_original", *patch.ContentOriginal)
	}
	if patch.ContentTranslated != nil {
		add("content_translated", *patch.ContentTranslated)
	}
	if patch.ContentOptimised != nil {
		add("content_optimised", *patch.ContentOptimised)
	}
	if patch.ContentFinal != nil {
		add("content_final", *patch.ContentFinal)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.AIProbability != nil {
		add("ai_probability", *patch.AIProbability)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.WordCount != nil {
		add("word_count", *patch.WordCount)
	}
	if patch.ReadingTime != nil {
		add("estimated_reading_time", *patch.ReadingTime)
	}
	if patch.Tags != nil {
		add("tags", marshalList(patch.Tags))
	}
	if patch.Keywords != nil {
		add("keywords", marshalList(patch.Keywords))
	}
	if patch.SelectedPromptID != nil {
		add("selected_prompt_id", *patch.SelectedPromptID)
	}
	if patch.ProcessingAttempts != nil {
		add("processing_attempts", *patch.ProcessingAttempts)
	}
	if patch.LastError != nil {
		add("last_error", *patch.LastError)
	}
	if patch.PublishedAt != nil {
		add("published_at", *patch.PublishedAt)
	}

	args = append(args, id)
	res, err := tx.Exec("UPDATE articles SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.Ef(core.KindNotFound, "article %d not found", id)
	}

	return tx.Commit()
}

// ArticleFilter narrows ListArticles.
type ArticleFilter struct {
	Status       core.Status
	CreationType core.CreationType
	Category     string
	Page         int // 1-based
	PerPage      int // defaults to 20
}

// ListArticles returns a page of articles newest first plus the total count.
func (s *Store) ListArticles(filter ArticleFilter) ([]core.Article, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CreationType != "" {
		where = append(where, "creation_type = ?")
		args = append(args, string(filter.CreationType))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM articles WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage

	query := "SELECT" + articleColumns + " FROM articles WHERE " + clause +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := s.db.Query(query, append(args, perPage, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, *article)
	}
	return articles, total, rows.Err()
}
