// Package identity manages the (browser profile, egress IP) pairs used for
// detector submissions. The detector meters its free quota per apparent
// visitor, so exhausting one identity means minting another rather than
// stopping work.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"redraft/internal/core"
	"redraft/internal/logger"
)

const (
	// After this long on one egress IP a rotation is due even without failures.
	maxProxyAge = 30 * time.Minute
	// Verification failures on one IP before rotation is recommended.
	rotateAfterFailures = 2
	// Controller-managed proxies need a moment to settle after a node switch.
	nodeSwitchWait = 3 * time.Second

	defaultRotationAttempts = 5
	echoTimeout             = 10 * time.Second
)

// Options configures the controller. All fields are optional; a zero Options
// gives a direct-connection identity that can still rotate profiles.
type Options struct {
	ControllerURL  string   // local proxy manager API, e.g. clash
	Candidates     []string // enumerated proxy URLs to cycle through
	EchoURL        string   // public IP echo endpoint
	ProfileDirRoot string   // parent directory for browser profiles
}

// RotationEvent records one proxy rotation attempt and its observed outcome.
type RotationEvent struct {
	At         time.Time `json:"at"`
	Strategy   string    `json:"strategy"`
	Proxy      string    `json:"proxy"`
	ObservedIP string    `json:"observed_ip"`
	Changed    bool      `json:"changed"`
}

// Controller owns the active identity. All rotation goes through one mutex so
// concurrent detector calls never race a half-switched proxy.
type Controller struct {
	mu           sync.Mutex
	opts         Options
	identity     core.Identity
	candidateIdx int
	lastKnownIP  string
	history      []RotationEvent
	httpClient   *http.Client
}

// NewController builds a controller and mints the first identity.
func NewController(opts Options) (*Controller, error) {
	c := &Controller{
		opts:       opts,
		httpClient: &http.Client{Timeout: echoTimeout},
	}
	if err := c.mintProfile(); err != nil {
		return nil, err
	}
	return c, nil
}

// Current returns a snapshot of the active identity.
func (c *Controller) Current() core.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// History returns a copy of the rotation log, oldest first.
func (c *Controller) History() []RotationEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RotationEvent, len(c.history))
	copy(out, c.history)
	return out
}

// RecordDetection counts one successful detector submission against the
// active identity and clears its verification-failure streak.
func (c *Controller) RecordDetection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity.DetectionsUsedToday++
	c.identity.VerificationFailures = 0
}

// RecordVerificationFailure counts one verification challenge against the
// active identity and reports the updated streak.
func (c *Controller) RecordVerificationFailure() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity.VerificationFailures++
	return c.identity.VerificationFailures
}

// ShouldRotate reports whether the active proxy is due for rotation: two or
// more verification failures, or more than thirty minutes on the same egress.
func (c *Controller) ShouldRotate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity.VerificationFailures >= rotateAfterFailures {
		return true
	}
	return time.Since(c.identity.LastSwitchedAt) > maxProxyAge
}

// RotateProfile mints a fresh browser profile: next profile id, empty user
// data dir, counters zeroed. The proxy is kept.
func (c *Controller) RotateProfile() (core.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	proxy, egress := c.identity.CurrentProxy, c.identity.EgressIP
	if err := c.mintProfile(); err != nil {
		return core.Identity{}, err
	}
	c.identity.CurrentProxy = proxy
	c.identity.EgressIP = egress
	logger.Info("rotated browser profile", "profile_id", c.identity.ProfileID)
	return c.identity, nil
}

// mintProfile replaces the identity in place. Caller holds the lock (or is
// the constructor).
func (c *Controller) mintProfile() error {
	id := c.identity.ProfileID + 1
	root := c.opts.ProfileDirRoot
	if root == "" {
		root = filepath.Join(os.TempDir(), "redraft-profiles")
	}
	dir := filepath.Join(root, fmt.Sprintf("profile_%d_%d", id, time.Now().UnixMilli()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	c.identity = core.Identity{
		ProfileID:      id,
		UserDataDir:    dir,
		LastSwitchedAt: time.Now(),
	}
	return nil
}

// RotateProxy tries up to maxAttempts times to land on a different egress IP,
// walking the available strategies in order: controller node switch, direct
// connection, candidate enumeration. A nil echo result is treated as unknown,
// never as changed.
func (c *Controller) RotateProxy(ctx context.Context, maxAttempts int) (core.Identity, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultRotationAttempts
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.lastKnownIP
	if before == "" {
		before, _ = c.echoIP(ctx)
		if before != "" {
			c.identity.EgressIP = before
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		strategy, proxy, err := c.switchEgress(ctx, attempt)
		if err != nil {
			lastErr = err
			logger.Warn("proxy switch failed", "strategy", strategy, "attempt", attempt, "error", err)
			continue
		}

		// Install the candidate provisionally so the echo routes through it,
		// and roll back unless the egress actually changed.
		prevProxy := c.identity.CurrentProxy
		c.identity.CurrentProxy = proxy

		observed, echoErr := c.echoIP(ctx)
		changed := observed != "" && before != "" && observed != before
		c.history = append(c.history, RotationEvent{
			At:         time.Now(),
			Strategy:   strategy,
			Proxy:      proxy,
			ObservedIP: observed,
			Changed:    changed,
		})
		if echoErr != nil {
			logger.Warn("IP echo failed after proxy switch", "strategy", strategy, "error", echoErr)
		}

		if changed || (before == "" && observed != "") {
			c.identity.VerificationFailures = 0
			c.identity.LastSwitchedAt = time.Now()
			c.identity.EgressIP = observed
			c.lastKnownIP = observed
			logger.Info("rotated proxy", "strategy", strategy, "egress_ip", observed)
			return c.identity, nil
		}
		c.identity.CurrentProxy = prevProxy
		lastErr = core.Ef(core.KindTransport, "egress IP did not change (strategy %s)", strategy)
	}

	if lastErr == nil {
		lastErr = core.E(core.KindTransport, "no rotation strategy available")
	}
	// Record the attempt even though the egress never changed, so the next
	// ShouldRotate does not immediately demand another rotation.
	c.identity.LastSwitchedAt = time.Now()
	return core.Identity{}, core.Wrap(core.KindTransport,
		fmt.Sprintf("proxy rotation failed after %d attempts", maxAttempts), lastErr)
}

// switchEgress applies one rotation strategy. The strategy cycles with the
// attempt number so repeated failures fall through to the next mechanism.
func (c *Controller) switchEgress(ctx context.Context, attempt int) (strategy, proxy string, err error) {
	strategies := c.availableStrategies()
	if len(strategies) == 0 {
		return "none", "", core.E(core.KindTransport, "no proxy controller, candidates or direct fallback configured")
	}
	strategy = strategies[(attempt-1)%len(strategies)]

	switch strategy {
	case "controller":
		if err := c.switchControllerNode(ctx); err != nil {
			return strategy, "", err
		}
		// The controller keeps the same local listen address; only the exit
		// node behind it changes.
		return strategy, c.identity.CurrentProxy, nil
	case "direct":
		return strategy, "", nil
	case "candidate":
		proxy = c.opts.Candidates[c.candidateIdx%len(c.opts.Candidates)]
		c.candidateIdx++
		return strategy, proxy, nil
	}
	return strategy, "", core.Ef(core.KindFatal, "unknown rotation strategy %q", strategy)
}

func (c *Controller) availableStrategies() []string {
	var out []string
	if c.opts.ControllerURL != "" {
		out = append(out, "controller")
	}
	if len(c.opts.Candidates) > 0 {
		out = append(out, "candidate")
	}
	if c.identity.CurrentProxy != "" {
		out = append(out, "direct")
	}
	return out
}

// switchControllerNode asks the local proxy manager to move to its next exit
// node, then waits for the switch to settle.
func (c *Controller) switchControllerNode(ctx context.Context) error {
	endpoint := strings.TrimSuffix(c.opts.ControllerURL, "/") + "/switch"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build switch request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Wrap(core.KindTransport, "proxy controller switch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return core.Ef(core.KindTransport, "proxy controller switch returned %d", resp.StatusCode)
	}

	select {
	case <-time.After(nodeSwitchWait):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// echoIP asks the configured echo endpoint for the current public IP, routed
// through the active proxy. Returns "" when the IP cannot be determined.
func (c *Controller) echoIP(ctx context.Context) (string, error) {
	if c.opts.EchoURL == "" {
		return "", nil
	}

	client := c.httpClient
	if c.identity.CurrentProxy != "" {
		proxyURL, err := url.Parse(c.identity.CurrentProxy)
		if err != nil {
			return "", fmt.Errorf("parse proxy URL: %w", err)
		}
		client = &http.Client{
			Timeout:   echoTimeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.EchoURL, nil)
	if err != nil {
		return "", fmt.Errorf("build echo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", core.Wrap(core.KindTransport, "IP echo", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("read echo response: %w", err)
	}

	// ipify returns {"ip":"1.2.3.4"} with format=json, plain text otherwise.
	var parsed struct {
		IP string `json:"ip"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.IP != "" {
		return parsed.IP, nil
	}
	return strings.TrimSpace(string(body)), nil
}
