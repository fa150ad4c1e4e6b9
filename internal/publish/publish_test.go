package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"redraft/internal/core"
)

func TestPublishWritesFrontMatter(t *testing.T) {
	dir := t.TempDir()
	prob := 18.5
	article := &core.Article{
		ID:               42,
		Title:            "Go 泛型上手",
		Category:         "技术",
		Tags:             []string{"golang", "generics"},
		CreationType:     core.CreationURLImport,
		SourceURL:        "https://example.com/generics",
		ContentOptimised: "优化后的正文。",
		AIProbability:    &prob,
	}

	path, err := NewFilePublisher(dir).Publish(context.Background(), article)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if filepath.Base(path) != "go-泛型上手-42.md" {
		t.Errorf("file name: got %q", filepath.Base(path))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	for _, want := range []string{
		`title: "Go 泛型上手"`,
		"category: 技术",
		"tags: [golang, generics]",
		"source: https://example.com/generics",
		"ai_probability: 18.5",
		"优化后的正文。",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q:\n%s", want, body)
		}
	}
	if !strings.HasPrefix(body, "---\n") {
		t.Error("front matter delimiter missing")
	}
}

func TestPublishTopicArticleOmitsSource(t *testing.T) {
	dir := t.TempDir()
	article := &core.Article{
		ID:              7,
		Title:           "原创主题",
		CreationType:    core.CreationTopicCreation,
		ContentOriginal: "原创正文。",
	}

	path, err := NewFilePublisher(dir).Publish(context.Background(), article)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "source:") {
		t.Error("topic articles have no source line")
	}
}

func TestPublishUsesBestContent(t *testing.T) {
	dir := t.TempDir()
	article := &core.Article{
		ID:                3,
		Title:             "best content",
		ContentOriginal:   "original",
		ContentTranslated: "translated",
		ContentOptimised:  "optimised",
	}

	path, err := NewFilePublisher(dir).Publish(context.Background(), article)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), "optimised") || strings.Contains(string(raw), "translated") {
		t.Errorf("should publish the optimised slot:\n%s", raw)
	}
}

func TestPublishEmptyContent(t *testing.T) {
	_, err := NewFilePublisher(t.TempDir()).Publish(context.Background(), &core.Article{ID: 1, Title: "empty"})
	if !core.IsKind(err, core.KindValidation) {
		t.Errorf("got %v, want validation", err)
	}
}

func TestPublishCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFilePublisher(t.TempDir()).Publish(ctx, &core.Article{ID: 1, ContentOriginal: "x"})
	if !core.IsKind(err, core.KindCancelled) {
		t.Errorf("got %v, want cancelled", err)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello, World!", "hello-world"},
		{"Go 并发模式", "go-并发模式"},
		{"!!!", "article"},
		{"  trimmed  ", "trimmed"},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}

	long := strings.Repeat("很长的标题", 30)
	if got := slugify(long); len([]rune(got)) > 60 {
		t.Errorf("slug should be capped at 60 runes, got %d", len([]rune(got)))
	}
}
