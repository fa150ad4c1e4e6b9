// Package publish delivers finished articles to their destination. The file
// publisher writes markdown with front matter into a local directory; other
// destinations implement the same interface.
package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"redraft/internal/core"
	"redraft/internal/logger"
)

// Publisher delivers one ready article and returns a destination reference.
type Publisher interface {
	Publish(ctx context.Context, article *core.Article) (string, error)
}

// FilePublisher writes articles as markdown files with YAML front matter.
type FilePublisher struct {
	dir string
}

// NewFilePublisher builds a publisher targeting the given directory.
func NewFilePublisher(dir string) *FilePublisher {
	if dir == "" {
		dir = "published"
	}
	return &FilePublisher{dir: dir}
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9\p{Han}]+`)

// Publish writes the article's best content to disk and returns the path.
func (p *FilePublisher) Publish(ctx context.Context, article *core.Article) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", core.Wrap(core.KindCancelled, "publish cancelled", err)
	}

	content := article.BestContent()
	if content == "" {
		return "", core.E(core.KindValidation, "article has no content to publish")
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create publish directory: %w", err)
	}

	name := fmt.Sprintf("%s-%d.md", slugify(article.Title), article.ID)
	path := filepath.Join(p.dir, name)

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", article.Title)
	fmt.Fprintf(&b, "date: %s\n", time.Now().Format(time.RFC3339))
	if article.Category != "" {
		fmt.Fprintf(&b, "category: %s\n", article.Category)
	}
	if len(article.Tags) > 0 {
		fmt.Fprintf(&b, "tags: [%s]\n", strings.Join(article.Tags, ", "))
	}
	if article.CreationType == core.CreationURLImport && article.SourceURL != "" {
		fmt.Fprintf(&b, "source: %s\n", article.SourceURL)
	}
	if article.AIProbability != nil {
		fmt.Fprintf(&b, "ai_probability: %.1f\n", *article.AIProbability)
	}
	b.WriteString("---\n\n")
	b.WriteString(content)
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write article file: %w", err)
	}

	logger.Info("article published", "article_id", article.ID, "path", path)
	return path, nil
}

// slugify keeps latin alphanumerics and Han characters; everything else
// collapses to a hyphen.
func slugify(title string) string {
	s := slugUnsafe.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "article"
	}
	if r := []rune(s); len(r) > 60 {
		s = strings.Trim(string(r[:60]), "-")
	}
	return s
}
