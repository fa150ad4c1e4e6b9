package pipeline

import (
	"context"
	"fmt"
	"time"

	"redraft/internal/core"
	"redraft/internal/llm"
	"redraft/internal/logger"
	"redraft/internal/prompts"
	"redraft/internal/store"
)

// runOptimise is the detect-optimise loop for the URL-import path: rewrite,
// score, repeat until the draft passes the threshold or the attempt budget
// runs out. Accepted content is only ever replaced by content that also
// passed, so a failing run never clobbers a previously accepted draft.
func (p *Pipeline) runOptimise(ctx context.Context, article *core.Article, opts Options) error {
	return p.runLoop(ctx, article, opts, false)
}

// runLoop is the shared detect-optimise body. The topic path commits passing
// candidates to the original slot, the import path to the optimised slot.
func (p *Pipeline) runLoop(ctx context.Context, article *core.Article, opts Options, commitToOriginal bool) error {
	candidate := article.BestContent()
	if candidate == "" {
		return core.E(core.KindValidation, "nothing to optimise: no content in any slot")
	}

	// Re-entry with previously accepted content that drifted back over the
	// threshold gets the targeted rewrite rather than generic optimisation.
	stage := core.TemplateOptimisation
	if article.ContentOptimised != "" {
		stage = core.TemplateAIReduction
	}

	// Attempt 1 always assumes the midpoint for band selection. Measured
	// probabilities, including one persisted by an earlier run, apply from
	// attempt 2 on.
	prob := 50.0
	measured := false
	lastScore := 50.0
	if article.AIProbability != nil {
		measured = true
		lastScore = *article.AIProbability
	}

	contentType := p.classifier.Classify(article.Title, candidate)

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return core.Wrap(core.KindCancelled, "optimisation cancelled", err)
		}
		if err := p.setStatus(article, core.StatusOptimising); err != nil {
			return err
		}

		if attempt > 1 {
			if measured {
				prob = lastScore
			} else {
				// No measurement ever succeeded: assume the detector would
				// have scored high.
				prob = 75
			}
		}

		band := prompts.BandFor(prob, attempt)
		sel, err := p.catalog.Select(prompts.Request{
			Stage:       stage,
			ContentType: contentType,
			Band:        band,
			Round:       attempt,
			PromptID:    pinnedPrompt(article, opts),
			Vars:        map[string]string{"content": candidate},
		})
		if err != nil {
			return fmt.Errorf("select %s prompt: %w", stage, err)
		}

		logger.Info("optimisation round",
			"article_id", article.ID, "attempt", attempt, "band", band, "ai_probability", prob)

		result, err := p.llm.Call(ctx, sel.Prompt, llm.Params{})
		if err != nil {
			// An LLM failure leaves nothing to detect; the whole run aborts.
			return fmt.Errorf("optimise round %d: %w", attempt, err)
		}
		candidate = result.Text

		if err := ctx.Err(); err != nil {
			return core.Wrap(core.KindCancelled, "optimisation cancelled", err)
		}
		if err := p.setStatus(article, core.StatusDetecting); err != nil {
			return err
		}

		detection, derr := p.detector.Detect(ctx, candidate)
		if derr != nil && core.KindOf(derr) == core.KindCancelled {
			return derr
		}

		if detection != nil {
			detection.ArticleID = article.ID
			if _, err := p.store.AppendDetection(detection); err != nil {
				logger.Warn("record detection failed", "article_id", article.ID, "error", err)
			}
			if sel.TemplateID != nil {
				if err := p.store.RecordTemplateUse(*sel.TemplateID, detection.Passed, 100-detection.Score); err != nil {
					logger.Warn("record template use failed", "template_id", *sel.TemplateID, "error", err)
				}
			}
			if err := p.store.UpdateArticle(article.ID, store.ArticlePatch{
				AIProbability: &detection.Score,
			}); err != nil {
				logger.Warn("record ai probability failed", "article_id", article.ID, "error", err)
			}
			lastScore = detection.Score
			measured = true
		}

		if derr != nil {
			// A dead detector is not a pass. Keep the latest draft as next
			// round's input and try again.
			logger.Warn("detection failed, continuing loop",
				"article_id", article.ID, "attempt", attempt, "error", derr)
		} else if detection.Passed {
			status := core.StatusReady
			patch := store.ArticlePatch{
				AIProbability: &detection.Score,
				Status:        &status,
			}
			if commitToOriginal {
				patch.ContentOriginal = &candidate
			} else {
				patch.ContentOptimised = &candidate
			}
			if err := p.store.UpdateArticle(article.ID, patch); err != nil {
				return err
			}
			article.Status = core.StatusReady
			if commitToOriginal {
				article.ContentOriginal = candidate
			} else {
				article.ContentOptimised = candidate
			}
			logger.Info("optimisation passed",
				"article_id", article.ID, "attempt", attempt, "ai_probability", detection.Score)
			return nil
		}

		if attempt < p.config.MaxAttempts {
			select {
			case <-time.After(p.config.RetryDelay):
			case <-ctx.Done():
				return core.Wrap(core.KindCancelled, "optimisation cancelled", ctx.Err())
			}
		}
	}

	return core.Ef(core.KindThresholdNotMet, "AI probability %.0f%% above threshold %.0f%% after %d attempts",
		lastScore, p.config.Threshold, p.config.MaxAttempts)
}
