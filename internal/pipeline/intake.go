package pipeline

import (
	"strings"
	"time"

	"redraft/internal/core"
)

// TopicSpec is the brief for a topic-created article.
type TopicSpec struct {
	Topic        string
	Title        string
	TargetLength core.TargetLength
	WritingStyle string
	Keywords     []string
	Requirements string
	Category     string
}

// ImportURL registers a source URL for processing and returns the article id.
// The URL doubles as the unique source key, so re-importing the same URL
// surfaces as a duplicate-key error.
func (p *Pipeline) ImportURL(rawURL, platform string, length core.TargetLength) (int64, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return 0, core.E(core.KindValidation, "source URL is required")
	}
	return p.store.CreateArticle(&core.Article{
		SourceKey:      rawURL,
		SourceURL:      rawURL,
		SourcePlatform: platform,
		CreationType:   core.CreationURLImport,
		TargetLength:   length,
		Status:         core.StatusPending,
	})
}

// CreateTopic registers a topic brief for original creation and returns the
// article id. The source key embeds a timestamp so the same topic can be
// commissioned repeatedly.
func (p *Pipeline) CreateTopic(spec TopicSpec) (int64, error) {
	topic := strings.TrimSpace(spec.Topic)
	if topic == "" {
		return 0, core.E(core.KindValidation, "topic is required")
	}
	title := spec.Title
	if title == "" {
		title = topic
	}
	return p.store.CreateArticle(&core.Article{
		SourceKey:      core.TopicSourceKey(topic, time.Now()),
		Title:          title,
		Topic:          topic,
		SourcePlatform: core.SourcePlatformTopic,
		CreationType:   core.CreationTopicCreation,
		TargetLength:   spec.TargetLength,
		WritingStyle:   spec.WritingStyle,
		Keywords:       spec.Keywords,
		CreationReqs:   spec.Requirements,
		Category:       spec.Category,
		Status:         core.StatusPending,
	})
}
