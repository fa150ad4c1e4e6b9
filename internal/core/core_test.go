package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusExtracting, true},
		{StatusPending, StatusCreating, true},
		{StatusPending, StatusTranslating, false},
		{StatusExtracting, StatusTranslating, true},
		{StatusTranslating, StatusOptimising, true},
		{StatusOptimising, StatusDetecting, true},
		{StatusDetecting, StatusOptimising, true},
		{StatusDetecting, StatusReady, true},
		{StatusDetecting, StatusFailed, true},
		{StatusReady, StatusPublishing, true},
		{StatusPublishing, StatusReady, true},
		{StatusFailed, StatusPending, true},
		{StatusReady, StatusExtracting, false},
		{StatusFailed, StatusReady, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestStatusSelfTransitionAllowed(t *testing.T) {
	for status := range statusTransitions {
		if !status.CanTransitionTo(status) {
			t.Errorf("%s -> %s should be allowed", status, status)
		}
	}
}

func TestStatusIsValid(t *testing.T) {
	if !StatusDetecting.IsValid() {
		t.Error("detecting should be valid")
	}
	if Status("bogus").IsValid() {
		t.Error("bogus should not be valid")
	}
}

func TestBestContent(t *testing.T) {
	a := Article{ContentOriginal: "original"}
	if got := a.BestContent(); got != "original" {
		t.Errorf("got %q, want original", got)
	}
	a.ContentTranslated = "translated"
	if got := a.BestContent(); got != "translated" {
		t.Errorf("got %q, want translated", got)
	}
	a.ContentOptimised = "optimised"
	if got := a.BestContent(); got != "optimised" {
		t.Errorf("got %q, want optimised", got)
	}
}

func TestTopicSourceKey(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	key := TopicSourceKey("国产数据库", at)
	want := "topic://国产数据库#1700000000000"
	if key != want {
		t.Errorf("got %q, want %q", key, want)
	}

	// Same topic at a different instant must produce a different key.
	other := TopicSourceKey("国产数据库", at.Add(time.Millisecond))
	if key == other {
		t.Error("keys for different instants should differ")
	}
}

func TestCharRange(t *testing.T) {
	cases := []struct {
		length   TargetLength
		min, max int
	}{
		{LengthMini, 300, 500},
		{LengthShort, 500, 800},
		{LengthMedium, 800, 1500},
		{LengthLong, 1500, 3000},
		{TargetLength("unknown"), 800, 1500},
	}
	for _, tc := range cases {
		min, max := tc.length.CharRange()
		if min != tc.min || max != tc.max {
			t.Errorf("%s: got %d-%d, want %d-%d", tc.length, min, max, tc.min, tc.max)
		}
	}
}

func TestKindOf(t *testing.T) {
	err := E(KindQuotaExceeded, "quota wall")
	if KindOf(err) != KindQuotaExceeded {
		t.Errorf("got %s, want quota_exceeded", KindOf(err))
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if KindOf(wrapped) != KindQuotaExceeded {
		t.Errorf("wrapped: got %s, want quota_exceeded", KindOf(wrapped))
	}

	if KindOf(errors.New("plain")) != KindFatal {
		t.Error("unclassified errors should map to fatal")
	}
	if KindOf(context.Canceled) != KindCancelled {
		t.Error("context.Canceled should map to cancelled")
	}
	if KindOf(context.DeadlineExceeded) != KindTimeout {
		t.Error("context.DeadlineExceeded should map to timeout")
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := Wrap(KindTransport, "fetch failed", inner)
	if !errors.Is(err, inner) {
		t.Error("wrapped error should unwrap to the inner error")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("error text should mention the cause, got %q", err.Error())
	}
}
