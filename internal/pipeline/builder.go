package pipeline

import (
	"context"
	"time"

	"redraft/internal/config"
	"redraft/internal/core"
	"redraft/internal/detector"
	"redraft/internal/identity"
	"redraft/internal/llm"
	"redraft/internal/prompts"
	"redraft/internal/publish"
	"redraft/internal/scrape"
	"redraft/internal/store"
)

// Builder assembles a pipeline from configuration, with per-component
// overrides for tests and alternate deployments.
type Builder struct {
	cfg       *config.Config
	store     *store.Store
	scraper   Scraper
	llmClient llm.Client
	detector  Detector
	publisher Publisher
}

// NewBuilder starts a builder over loaded configuration and an open store.
func NewBuilder(cfg *config.Config, st *store.Store) *Builder {
	return &Builder{cfg: cfg, store: st}
}

// WithScraper overrides the URL scraper.
func (b *Builder) WithScraper(s Scraper) *Builder {
	b.scraper = s
	return b
}

// WithLLM overrides the LLM client.
func (b *Builder) WithLLM(c llm.Client) *Builder {
	b.llmClient = c
	return b
}

// WithDetector overrides the AI detector.
func (b *Builder) WithDetector(d Detector) *Builder {
	b.detector = d
	return b
}

// WithPublisher overrides the publisher.
func (b *Builder) WithPublisher(p Publisher) *Builder {
	b.publisher = p
	return b
}

// Build wires the remaining components from configuration and returns the
// pipeline.
func (b *Builder) Build(ctx context.Context) (*Pipeline, error) {
	cfg := b.cfg

	if b.scraper == nil {
		b.scraper = scrape.NewScraper()
	}

	if b.llmClient == nil {
		client, err := buildLLM(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.llmClient = client
	}

	if b.detector == nil {
		ids, err := identity.NewController(identity.Options{
			ControllerURL:  cfg.Proxy.ControllerURL,
			Candidates:     cfg.Proxy.Candidates,
			EchoURL:        cfg.Proxy.EchoURL,
			ProfileDirRoot: cfg.Detector.ProfileDirRoot,
		})
		if err != nil {
			return nil, err
		}
		sub, err := detector.NewRodSubmitter(detector.RodConfig{
			URL:                 cfg.Detector.URL,
			Headless:            cfg.Detector.Headless,
			BrowserBin:          cfg.Detector.BrowserBin,
			QuotaPhrases:        cfg.Detector.QuotaPhrases,
			VerificationPhrases: cfg.Detector.VerificationPhrases,
			Timing: detector.TimingFromSeconds(
				cfg.Performance.AIDetectionTimeout,
				cfg.Performance.BrowserStartupWait,
				cfg.Performance.PageLoadWait,
				cfg.Performance.ElementFindTimeout,
			),
		})
		if err != nil {
			return nil, err
		}
		b.detector = detector.NewDriver(sub, ids, cfg.Detector.Platform, cfg.AIDetection.Threshold)
	}

	if b.publisher == nil {
		b.publisher = publish.NewFilePublisher(cfg.Publish.Directory)
	}

	pipelineCfg := &Config{
		Threshold:      cfg.AIDetection.Threshold,
		MaxAttempts:    cfg.AIOptimization.MaxAttempts,
		RetryDelay:     time.Duration(cfg.AIOptimization.RetryDelaySeconds) * time.Second,
		StageTimeout:   DefaultConfig().StageTimeout,
		ArticleTimeout: DefaultConfig().ArticleTimeout,
	}

	return NewPipeline(
		b.store,
		b.scraper,
		b.llmClient,
		b.detector,
		b.publisher,
		prompts.NewCatalog(b.store),
		prompts.NewClassifier(),
		pipelineCfg,
	), nil
}

// buildLLM picks the backend: the OpenAI-compatible endpoint when configured,
// otherwise Gemini.
func buildLLM(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	if cfg.LLM.EndpointURL != "" {
		return llm.NewHTTPClient(cfg.LLM.EndpointURL, cfg.LLM.APIKey, cfg.LLM.DefaultModel)
	}
	client, err := llm.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return nil, core.Wrap(core.KindValidation,
			"no LLM backend configured (set llm.endpoint_url or gemini.api_key)", err)
	}
	return client, nil
}
