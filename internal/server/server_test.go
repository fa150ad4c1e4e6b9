package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"redraft/internal/config"
	"redraft/internal/core"
	"redraft/internal/llm"
	"redraft/internal/pipeline"
	"redraft/internal/prompts"
	"redraft/internal/store"
)

type stubScraper struct{}

func (stubScraper) Extract(ctx context.Context, url string) (*core.ArticleContent, error) {
	return &core.ArticleContent{
		Title:       "抓取的标题",
		Content:     "抓取的正文。",
		WordCount:   50,
		ReadingTime: 1,
	}, nil
}

type stubLLM struct{}

func (stubLLM) Call(ctx context.Context, prompt string, _ llm.Params) (*llm.Result, error) {
	return &llm.Result{Text: "生成的正文。", FinishReason: "stop"}, nil
}

type stubDetector struct{}

func (stubDetector) Detect(ctx context.Context, text string) (*core.DetectionResult, error) {
	return &core.DetectionResult{
		DetectionType: "ai_probability",
		Platform:      "zerogpt",
		Score:         10,
		Threshold:     25,
		Passed:        true,
		DetectedAt:    time.Now(),
		Attempts:      1,
		PageStatus:    "success",
	}, nil
}

type stubPublisher struct{}

func (stubPublisher) Publish(ctx context.Context, article *core.Article) (string, error) {
	return "out/stub.md", nil
}

func newTestServer(t *testing.T) (*Server, *store.Store, *pipeline.Pipeline) {
	t.Helper()
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := &pipeline.Config{
		Threshold:      25,
		MaxAttempts:    2,
		RetryDelay:     time.Millisecond,
		StageTimeout:   5 * time.Second,
		ArticleTimeout: 30 * time.Second,
	}
	p := pipeline.NewPipeline(st, stubScraper{}, stubLLM{}, stubDetector{}, stubPublisher{},
		prompts.NewCatalog(st), prompts.NewClassifier(), cfg)
	return New(st, p, config.Server{Addr: ":0"}), st, p
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body: %s", rec.Body.String())
	}
}

func TestCreateArticleFromURL(t *testing.T) {
	s, st, p := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/articles",
		`{"url": "https://example.com/post", "platform": "medium"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ArticleID int64  `json:"article_id"`
		TaskID    string `json:"task_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ArticleID == 0 || resp.TaskID == "" {
		t.Fatalf("response: %+v", resp)
	}
	p.Wait()

	article, err := st.GetArticle(resp.ArticleID)
	if err != nil {
		t.Fatal(err)
	}
	if article.Status != core.StatusReady {
		t.Errorf("status after processing: got %s (last error %q)", article.Status, article.LastError)
	}
}

func TestCreateArticleValidation(t *testing.T) {
	s, _, _ := newTestServer(t)

	cases := []string{
		`{}`,
		`{"url": "https://example.com/x", "topic": "both set"}`,
		`not json`,
	}
	for _, body := range cases {
		if rec := doJSON(t, s, http.MethodPost, "/api/articles", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: got %d, want 400", body, rec.Code)
		}
	}
}

func TestCreateArticleDuplicateURL(t *testing.T) {
	s, _, p := newTestServer(t)

	body := `{"url": "https://example.com/dup"}`
	if rec := doJSON(t, s, http.MethodPost, "/api/articles", body); rec.Code != http.StatusAccepted {
		t.Fatalf("first import: got %d", rec.Code)
	}
	rec := doJSON(t, s, http.MethodPost, "/api/articles", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("second import: got %d, want 409", rec.Code)
	}
	p.Wait()
}

func TestCreateArticleFromTopic(t *testing.T) {
	s, st, p := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/articles",
		`{"topic": "云原生安全", "target_length": "short", "keywords": ["eBPF"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	p.Wait()

	var resp struct {
		ArticleID int64 `json:"article_id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	article, err := st.GetArticle(resp.ArticleID)
	if err != nil {
		t.Fatal(err)
	}
	if article.CreationType != core.CreationTopicCreation || article.Topic != "云原生安全" {
		t.Errorf("article: %+v", article)
	}
}

func TestGetArticleWithDetections(t *testing.T) {
	s, _, p := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/articles", `{"url": "https://example.com/detail"}`)
	var created struct {
		ArticleID int64 `json:"article_id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	p.Wait()

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/articles/%d", created.ArticleID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var resp struct {
		Article    core.Article           `json:"article"`
		Detections []core.DetectionResult `json:"detections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Article.ID != created.ArticleID {
		t.Errorf("article id: got %d", resp.Article.ID)
	}
	if len(resp.Detections) == 0 {
		t.Error("detection history should be included")
	}
}

func TestGetArticleErrors(t *testing.T) {
	s, _, _ := newTestServer(t)

	if rec := doJSON(t, s, http.MethodGet, "/api/articles/not-a-number", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d, want 400", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/api/articles/99999", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing article: got %d, want 404", rec.Code)
	}
}

func TestListArticles(t *testing.T) {
	s, _, p := newTestServer(t)

	for i := 0; i < 3; i++ {
		doJSON(t, s, http.MethodPost, "/api/articles",
			fmt.Sprintf(`{"url": "https://example.com/list-%d"}`, i))
	}
	p.Wait()

	rec := doJSON(t, s, http.MethodGet, "/api/articles?status=ready&per_page=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var resp struct {
		Data  []core.Article `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 {
		t.Errorf("total: got %d, want 3", resp.Total)
	}
	if len(resp.Data) != 2 {
		t.Errorf("page size: got %d, want 2", len(resp.Data))
	}
}

func TestRetryArticle(t *testing.T) {
	s, _, p := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/articles", `{"url": "https://example.com/retry"}`)
	var created struct {
		ArticleID int64 `json:"article_id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	p.Wait()

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/articles/%d/retry", created.ArticleID), "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "task_id") {
		t.Errorf("body: %s", rec.Body.String())
	}
	p.Wait()
}

func TestTaskEndpoints(t *testing.T) {
	s, _, p := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/articles", `{"url": "https://example.com/tasks"}`)
	var created struct {
		TaskID string `json:"task_id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	p.Wait()

	rec = doJSON(t, s, http.MethodGet, "/api/tasks/"+created.TaskID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get task: got %d", rec.Code)
	}
	var task core.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatal(err)
	}
	if task.Status != core.TaskCompleted {
		t.Errorf("task status: got %s", task.Status)
	}

	if rec := doJSON(t, s, http.MethodGet, "/api/tasks/does-not-exist", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing task: got %d, want 404", rec.Code)
	}

	// A completed task cannot be cancelled.
	rec = doJSON(t, s, http.MethodPost, "/api/tasks/"+created.TaskID+"/cancel", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("cancel finished task: got %d, want 400", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/tasks", "")
	if rec.Code != http.StatusOK {
		t.Errorf("list tasks: got %d", rec.Code)
	}
}
