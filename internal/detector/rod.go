package detector

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"redraft/internal/core"
	"redraft/internal/logger"
)

// Timing controls how long each phase of a detector session waits.
type Timing struct {
	BrowserStartup time.Duration // settle time after chrome launch
	PageLoad       time.Duration // settle time after navigation
	ElementFind    time.Duration // per-locator budget
	Detection      time.Duration // total budget for the score to appear
}

// RodConfig configures the browser-driven submitter.
type RodConfig struct {
	URL                 string
	Headless            bool
	BrowserBin          string
	QuotaPhrases        []string
	VerificationPhrases []string
	Timing              Timing
}

// RodSubmitter drives the detector page with a real browser. Each submission
// gets a fresh chrome instance bound to the identity's profile directory and
// proxy, so the detector sees whoever the identity says it sees.
type RodSubmitter struct {
	cfg RodConfig
}

// NewRodSubmitter builds a browser-driven submitter.
func NewRodSubmitter(cfg RodConfig) (*RodSubmitter, error) {
	if cfg.URL == "" {
		return nil, core.E(core.KindValidation, "detector.url is required")
	}
	return &RodSubmitter{cfg: cfg}, nil
}

// Locator layers for the input area and submit control. Tried in order:
// semantic tags first, site-specific classes second, a JS sweep last.
var (
	inputSelectors  = []string{"textarea", `[contenteditable="true"]`, ".detect-input textarea", "#content-input"}
	submitSelectors = []string{`button[type="submit"]`, ".detect-btn", ".submit-btn"}
	submitLabels    = regexp.MustCompile(`检测|开始检测|Detect|Check|Analyze`)

	percentRe = regexp.MustCompile(`([0-9]{1,3}(?:\.[0-9]+)?)\s*%`)
)

// Submit runs one full detector session and returns the reported AI
// probability. Errors carry the Kind the driver's envelope dispatches on.
func (s *RodSubmitter) Submit(ctx context.Context, text string, ident core.Identity) (float64, error) {
	l := launcher.New().
		Headless(s.cfg.Headless).
		UserDataDir(ident.UserDataDir).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set("no-first-run")
	if s.cfg.BrowserBin != "" {
		l = l.Bin(s.cfg.BrowserBin)
	}
	if ident.CurrentProxy != "" {
		l = l.Proxy(ident.CurrentProxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return 0, core.Wrap(core.KindTransport, "launch browser", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return 0, core.Wrap(core.KindTransport, "connect to browser", err)
	}
	defer browser.Close()

	if err := sleepCtx(ctx, s.cfg.Timing.BrowserStartup); err != nil {
		return 0, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: s.cfg.URL})
	if err != nil {
		return 0, core.Wrap(core.KindTransport, "open detector page", err)
	}
	if err := page.Context(ctx).Timeout(s.cfg.Timing.Detection).WaitLoad(); err != nil {
		return 0, core.Wrap(core.KindTransport, "detector page load", err)
	}
	if err := sleepCtx(ctx, s.cfg.Timing.PageLoad); err != nil {
		return 0, err
	}

	// A quota or verification wall can replace the form entirely, so check
	// before hunting for the textarea.
	if err := s.checkWalls(page); err != nil {
		return 0, err
	}

	if err := s.fillInput(page, text); err != nil {
		return 0, err
	}
	if err := s.clickSubmit(page); err != nil {
		return 0, err
	}

	return s.awaitScore(ctx, page)
}

// fillInput locates the text area through the locator layers and types the
// payload into it.
func (s *RodSubmitter) fillInput(page *rod.Page, text string) error {
	for _, sel := range inputSelectors {
		el, err := page.Timeout(s.cfg.Timing.ElementFind).Element(sel)
		if err != nil {
			continue
		}
		if err := el.Input(text); err == nil {
			return nil
		}
	}

	// JS fallback: set the value on the first visible textarea directly and
	// fire an input event so framework bindings notice.
	res, err := page.Evaluate(&rod.EvalOptions{
		JS: `(payload) => {
			const el = Array.from(document.querySelectorAll('textarea'))
				.find(t => t.offsetParent !== null);
			if (!el) return false;
			el.value = payload;
			el.dispatchEvent(new Event('input', { bubbles: true }));
			return true;
		}`,
		JSArgs:  []interface{}{text},
		ByValue: true,
	})
	if err == nil && res.Value.Bool() {
		return nil
	}
	return core.E(core.KindTransport, "detector input area not found")
}

// clickSubmit finds the submit control: CSS layers first, then any button
// whose label matches the known submit wording.
func (s *RodSubmitter) clickSubmit(page *rod.Page) error {
	for _, sel := range submitSelectors {
		el, err := page.Timeout(s.cfg.Timing.ElementFind).Element(sel)
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			return nil
		}
	}

	el, err := page.Timeout(s.cfg.Timing.ElementFind).ElementR("button", submitLabels.String())
	if err == nil {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			return nil
		}
	}
	return core.E(core.KindTransport, "detector submit control not found")
}

// awaitScore polls the result area until a percentage shows up or the
// detection budget runs out. A short warm-up precedes polling because the
// page shows a spinner with a stale 0% during analysis.
func (s *RodSubmitter) awaitScore(ctx context.Context, page *rod.Page) (float64, error) {
	warmup := 5 * time.Second
	if warmup > s.cfg.Timing.Detection/2 {
		warmup = s.cfg.Timing.Detection / 2
	}
	if err := sleepCtx(ctx, warmup); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(s.cfg.Timing.Detection - warmup)
	for {
		if err := s.checkWalls(page); err != nil {
			return 0, err
		}
		if score, ok := s.readScore(page); ok {
			return score, nil
		}
		if time.Now().After(deadline) {
			return 0, core.Ef(core.KindTimeout, "no detection score after %s", s.cfg.Timing.Detection)
		}
		if err := sleepCtx(ctx, time.Second); err != nil {
			return 0, err
		}
	}
}

// readScore extracts the first percentage from the result area. Page chrome
// (nav bars, pricing banners) is excluded by preferring dedicated result
// containers over the whole body.
func (s *RodSubmitter) readScore(page *rod.Page) (float64, bool) {
	text := s.pageText(page, ".result, .detect-result, .score, [class*='result']")
	if text == "" {
		return 0, false
	}
	match := percentRe.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(match[1], 64)
	if err != nil || score < 0 || score > 100 {
		logger.Warn("detector reported unusable percentage", "raw", match[0])
		return 0, false
	}
	return score, true
}

// checkWalls scans the page text for the configured quota and verification
// phrases and returns the matching Kind.
func (s *RodSubmitter) checkWalls(page *rod.Page) error {
	text := s.pageText(page, "body")
	if text == "" {
		return nil
	}
	for _, phrase := range s.cfg.QuotaPhrases {
		if strings.Contains(text, phrase) {
			return core.Ef(core.KindQuotaExceeded, "detector quota wall: %q", phrase)
		}
	}
	for _, phrase := range s.cfg.VerificationPhrases {
		if strings.Contains(text, phrase) {
			return core.Ef(core.KindVerificationFailed, "detector verification wall: %q", phrase)
		}
	}
	return nil
}

// pageText returns the innerText of the first matching container, falling
// back to the body.
func (s *RodSubmitter) pageText(page *rod.Page, selectors string) string {
	res, err := page.Evaluate(&rod.EvalOptions{
		JS: `(sels) => {
			const el = document.querySelector(sels) || document.body;
			return el ? el.innerText : '';
		}`,
		JSArgs:  []interface{}{selectors},
		ByValue: true,
	})
	if err != nil || res == nil {
		return ""
	}
	return res.Value.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return core.Wrap(core.KindCancelled, "detection cancelled", ctx.Err())
	}
}

// TimingFromSeconds converts the configured second-granularity knobs into a
// Timing block.
func TimingFromSeconds(detectionTimeout int, browserStartup, pageLoad float64, elementFind int) Timing {
	return Timing{
		BrowserStartup: time.Duration(browserStartup * float64(time.Second)),
		PageLoad:       time.Duration(pageLoad * float64(time.Second)),
		ElementFind:    time.Duration(elementFind) * time.Second,
		Detection:      time.Duration(detectionTimeout) * time.Second,
	}
}

var _ submitter = (*RodSubmitter)(nil)
