package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"redraft/internal/core"
	"redraft/internal/logger"
	"redraft/internal/pipeline"
	"redraft/internal/store"
)

// createArticleRequest accepts both intake paths: a source URL for import or
// a topic brief for original creation. Exactly one of url/topic must be set.
type createArticleRequest struct {
	URL          string   `json:"url"`
	Platform     string   `json:"platform"`
	Topic        string   `json:"topic"`
	Title        string   `json:"title"`
	TargetLength string   `json:"target_length"`
	WritingStyle string   `json:"writing_style"`
	Keywords     []string `json:"keywords"`
	Requirements string   `json:"requirements"`
	Category     string   `json:"category"`
	AutoPublish  bool     `json:"auto_publish"`
	PromptID     *int64   `json:"prompt_id"`
}

type createArticleResponse struct {
	ArticleID int64  `json:"article_id"`
	TaskID    string `json:"task_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	if err := s.store.Ping(); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy", "checks": checks,
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "checks": checks})
}

// handleCreateArticle handles POST /api/articles.
func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var req createArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if (req.URL == "") == (req.Topic == "") {
		s.respondError(w, http.StatusBadRequest, "exactly one of url or topic is required")
		return
	}

	var articleID int64
	var err error
	if req.URL != "" {
		articleID, err = s.pipeline.ImportURL(req.URL, req.Platform, core.TargetLength(req.TargetLength))
	} else {
		articleID, err = s.pipeline.CreateTopic(pipeline.TopicSpec{
			Topic:        req.Topic,
			Title:        req.Title,
			TargetLength: core.TargetLength(req.TargetLength),
			WritingStyle: req.WritingStyle,
			Keywords:     req.Keywords,
			Requirements: req.Requirements,
			Category:     req.Category,
		})
	}
	if err != nil {
		s.respondKindError(w, err)
		return
	}

	taskID, err := s.pipeline.Process(articleID, pipeline.Options{
		AutoPublish: req.AutoPublish,
		PromptID:    req.PromptID,
	})
	if err != nil {
		s.respondKindError(w, err)
		return
	}

	s.respondJSON(w, http.StatusAccepted, createArticleResponse{
		ArticleID: articleID,
		TaskID:    taskID,
	})
}

// handleListArticles handles GET /api/articles with status, creation_type,
// category, page and per_page query filters.
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ArticleFilter{
		Status:       core.Status(q.Get("status")),
		CreationType: core.CreationType(q.Get("creation_type")),
		Category:     q.Get("category"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	articles, total, err := s.store.ListArticles(filter)
	if err != nil {
		s.respondKindError(w, err)
		return
	}
	if articles == nil {
		articles = []core.Article{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"data":  articles,
		"total": total,
	})
}

// handleGetArticle handles GET /api/articles/{id}, returning the article with
// its detection history.
func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid article id")
		return
	}

	article, err := s.store.GetArticle(id)
	if err != nil {
		s.respondKindError(w, err)
		return
	}
	detections, err := s.store.ListDetections(id)
	if err != nil {
		s.respondKindError(w, err)
		return
	}
	if detections == nil {
		detections = []core.DetectionResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"article":    article,
		"detections": detections,
	})
}

// handleRetryArticle handles POST /api/articles/{id}/retry.
func (s *Server) handleRetryArticle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid article id")
		return
	}

	var req struct {
		AutoPublish bool   `json:"auto_publish"`
		PromptID    *int64 `json:"prompt_id"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	taskID, err := s.pipeline.Process(id, pipeline.Options{
		AutoPublish: req.AutoPublish,
		PromptID:    req.PromptID,
	})
	if err != nil {
		s.respondKindError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]any{"task_id": taskID})
}

// handleListTasks handles GET /api/tasks, listing pending and running tasks.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListActiveTasks()
	if err != nil {
		s.respondKindError(w, err)
		return
	}
	if tasks == nil {
		tasks = []core.Task{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"data": tasks})
}

// handleGetTask handles GET /api/tasks/{taskID}.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(chi.URLParam(r, "taskID"))
	if err != nil {
		s.respondKindError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}

// handleCancelTask handles POST /api/tasks/{taskID}/cancel.
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if err := s.pipeline.Cancel(taskID); err != nil {
		s.respondKindError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"task_id": taskID, "status": "cancelled"})
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encode JSON response", err)
	}
}

// respondError writes a JSON error envelope.
func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]any{"error": msg})
}

// respondKindError maps the error taxonomy onto HTTP statuses.
func (s *Server) respondKindError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch core.KindOf(err) {
	case core.KindValidation:
		status = http.StatusBadRequest
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindDuplicateKey:
		status = http.StatusConflict
	case core.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", err)
	}
	s.respondError(w, status, err.Error())
}
