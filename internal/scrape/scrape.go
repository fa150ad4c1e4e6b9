// Package scrape fetches a source article and extracts its readable content.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"redraft/internal/core"
)

const (
	fetchTimeout   = 30 * time.Second
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	wordsPerMinute = 200
)

// Scraper fetches and extracts articles over HTTP.
type Scraper struct {
	httpClient *http.Client
}

// NewScraper builds a scraper with the default HTTP client.
func NewScraper() *Scraper {
	return &Scraper{
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
}

// Extract fetches the URL and returns the readable article content.
func (s *Scraper) Extract(ctx context.Context, rawURL string) (*core.ArticleContent, error) {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, core.Ef(core.KindValidation, "invalid source URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, core.Wrap(core.KindTransport, "fetch article", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.Ef(core.KindTransport, "fetch article: %s returned %d", rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	content := extractContent(doc)
	if content == "" {
		return nil, core.Ef(core.KindValidation, "no readable content found at %s", rawURL)
	}

	words := countWords(content)
	article := &core.ArticleContent{
		Title:       extractTitle(doc),
		Content:     content,
		Author:      firstMeta(doc, `meta[name="author"]`, `meta[property="article:author"]`),
		Tags:        extractTags(doc),
		WordCount:   words,
		ReadingTime: (words + wordsPerMinute - 1) / wordsPerMinute,
	}
	if published := firstMeta(doc, `meta[property="article:published_time"]`, `meta[name="date"]`); published != "" {
		if t, err := time.Parse(time.RFC3339, published); err == nil {
			article.PublishDate = &t
		}
	}
	return article, nil
}

// extractContent pulls the article body, preferring semantic containers and
// falling back to the densest collection of paragraphs.
func extractContent(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, form, iframe").Remove()

	for _, selector := range []string{"article", "main", `[role="main"]`, ".post-content", ".article-content", "#content"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			if text := collectParagraphs(sel); text != "" {
				return text
			}
		}
	}
	return collectParagraphs(doc.Find("body"))
}

func collectParagraphs(sel *goquery.Selection) string {
	var parts []string
	sel.Find("p, h1, h2, h3, li").Each(func(_ int, node *goquery.Selection) {
		text := strings.TrimSpace(node.Text())
		if len(text) >= 20 {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func extractTitle(doc *goquery.Document) string {
	if title := firstMeta(doc, `meta[property="og:title"]`); title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func extractTags(doc *goquery.Document) []string {
	raw := firstMeta(doc, `meta[name="keywords"]`, `meta[property="article:tag"]`)
	if raw == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func firstMeta(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if content, ok := doc.Find(selector).First().Attr("content"); ok {
			if content = strings.TrimSpace(content); content != "" {
				return content
			}
		}
	}
	return ""
}

// countWords counts CJK characters individually and other scripts by
// whitespace-separated words, so mixed-language articles get a sane count.
func countWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			count++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}
