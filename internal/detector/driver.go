// Package detector scores text against an external web-based AI detector.
// The detector is adversarial infrastructure: it meters free checks per
// visitor and throws verification challenges, so the driver pairs every
// submission with an identity from the rotation controller.
package detector

import (
	"context"
	"strings"
	"time"

	"redraft/internal/core"
	"redraft/internal/logger"
)

const (
	// Submissions shorter than this are rejected before any session is opened.
	minInputChars = 10
	// The detector ignores very short samples, so input is padded up to here.
	minSubmitChars = 350
	// The detector truncates anyway; cutting client-side keeps the score
	// aligned with what was actually analysed.
	maxSubmitChars = 2000

	maxSubmitAttempts = 3
)

// submitter performs one detector session: open, paste, submit, read score.
// Failures are classified through the error Kind taxonomy: quota_exceeded,
// verification_failed, timeout, transport.
type submitter interface {
	Submit(ctx context.Context, text string, ident core.Identity) (float64, error)
}

// identities is the slice of the rotation controller the driver needs.
type identities interface {
	Current() core.Identity
	RecordDetection()
	RecordVerificationFailure() int
	ShouldRotate() bool
	RotateProfile() (core.Identity, error)
	RotateProxy(ctx context.Context, maxAttempts int) (core.Identity, error)
}

// Driver wraps a submitter with input shaping and the retry envelope.
type Driver struct {
	sub       submitter
	ids       identities
	platform  string
	threshold float64
}

// NewDriver builds a driver over the given submitter and identity controller.
func NewDriver(sub submitter, ids identities, platform string, threshold float64) *Driver {
	return &Driver{sub: sub, ids: ids, platform: platform, threshold: threshold}
}

// Detect scores one piece of text. The returned result is always usable when
// the error is nil: a timed-out session degrades to a conservative
// partial_success score rather than failing the caller.
func (d *Driver) Detect(ctx context.Context, text string) (*core.DetectionResult, error) {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) < minInputChars {
		return nil, core.Ef(core.KindValidation,
			"text too short for detection: %d chars, need at least %d", len(runes), minInputChars)
	}
	payload := shapeInput(runes)

	var lastErr error
	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, core.Wrap(core.KindCancelled, "detection cancelled", err)
		}

		ident := d.ids.Current()
		score, err := d.sub.Submit(ctx, payload, ident)
		if err == nil {
			d.ids.RecordDetection()
			return d.result(score, ident, attempt, "success"), nil
		}
		lastErr = err

		switch core.KindOf(err) {
		case core.KindQuotaExceeded:
			logger.Warn("detector quota exhausted, minting fresh profile",
				"profile_id", ident.ProfileID, "attempt", attempt)
			if _, rerr := d.ids.RotateProfile(); rerr != nil {
				return nil, core.Wrap(core.KindFatal, "profile rotation failed", rerr)
			}
		case core.KindVerificationFailed:
			streak := d.ids.RecordVerificationFailure()
			logger.Warn("detector verification challenge",
				"profile_id", ident.ProfileID, "streak", streak, "attempt", attempt)
			if d.ids.ShouldRotate() {
				if _, rerr := d.ids.RotateProxy(ctx, 0); rerr != nil {
					logger.Error("proxy rotation failed, continuing on current egress", rerr)
				}
			}
		case core.KindTimeout:
			// Page never produced a score in time. Assume the midpoint so the
			// optimisation loop keeps moving instead of stalling.
			logger.Warn("detection timed out, assuming midpoint score", "attempt", attempt)
			return d.result(50, ident, attempt, "partial_success"), nil
		case core.KindCancelled:
			return nil, err
		default:
			logger.Warn("detector session failed, retrying", "attempt", attempt, "error", err)
		}

		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil, core.Wrap(core.KindCancelled, "detection cancelled", ctx.Err())
		}
	}

	// All attempts burned. Score worst-case so the result can never be
	// mistaken for a pass.
	ident := d.ids.Current()
	return d.result(100, ident, maxSubmitAttempts, "error"), lastErr
}

func (d *Driver) result(score float64, ident core.Identity, attempts int, status string) *core.DetectionResult {
	return &core.DetectionResult{
		DetectionType: "ai_probability",
		Platform:      d.platform,
		Score:         score,
		Threshold:     d.threshold,
		Passed:        status == "success" && score < d.threshold,
		DetectedAt:    time.Now(),
		ProfileID:     ident.ProfileID,
		EgressIP:      ident.EgressIP,
		Attempts:      attempts,
		PageStatus:    status,
	}
}

// shapeInput pads short text up to the detector's effective minimum by
// repetition and truncates past its analysis window.
func shapeInput(runes []rune) string {
	if len(runes) > maxSubmitChars {
		return string(runes[:maxSubmitChars])
	}
	if len(runes) >= minSubmitChars {
		return string(runes)
	}
	var b strings.Builder
	for len([]rune(b.String())) < minSubmitChars {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(runes))
	}
	padded := []rune(b.String())
	if len(padded) > maxSubmitChars {
		padded = padded[:maxSubmitChars]
	}
	return string(padded)
}
