package prompts

import (
	"strings"

	"redraft/internal/core"
)

// Keyword seeds for content-type classification. Substring match over the
// title plus the first 500 characters of content, case-insensitive.
var (
	technicalKeywords = []string{
		"ai", "machine learning", "algorithm", "programming", "api",
		"database", "cloud", "docker", "kubernetes", "blockchain",
		"framework", "compiler", "microservice", "devops",
	}
	tutorialKeywords = []string{
		"how to", "tutorial", "guide", "step by step", "learn",
		"beginner", "getting started",
	}
	newsKeywords = []string{
		"news", "breaking", "release", "update", "latest", "today", "yesterday",
	}
)

// Classifier derives a content type from keyword hits. Keyword sets are
// configurable; the zero value uses the seeds.
type Classifier struct {
	Technical []string
	Tutorial  []string
	News      []string
}

// NewClassifier returns a classifier with the seed keyword sets.
func NewClassifier() *Classifier {
	return &Classifier{
		Technical: technicalKeywords,
		Tutorial:  tutorialKeywords,
		News:      newsKeywords,
	}
}

// Classify derives the content type for a (title, content) pair. Technical
// wins at two or more hits; tutorial and news need one; anything else is
// general.
func (c *Classifier) Classify(title, content string) core.ContentType {
	if runes := []rune(content); len(runes) > 500 {
		content = string(runes[:500])
	}
	haystack := strings.ToLower(title + " " + content)

	count := func(keywords []string) int {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				hits++
			}
		}
		return hits
	}

	if count(c.Technical) >= 2 {
		return core.ContentTechnical
	}
	if count(c.Tutorial) >= 1 {
		return core.ContentTutorial
	}
	if count(c.News) >= 1 {
		return core.ContentNews
	}
	return core.ContentGeneral
}
