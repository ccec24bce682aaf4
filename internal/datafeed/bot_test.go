package datafeed

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/fetch"
)

func newTestBot(t *testing.T) (*Bot, *bus.Bus) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	b := bus.New(&bus.Config{Logger: logger})

	bot := NewBot(&BotConfig{
		Logger:              logger,
		Fetcher:             fetch.New(&fetch.Config{Logger: logger, Timeout: time.Second, BaseDelay: time.Millisecond}),
		Bus:                 b,
		GammaAPIURL:         "http://127.0.0.1:0", // detection paths unused in these tests
		StartingBalanceUSDC: 20000,
		MinEdgePct:          5,
		EntryWindow:         45 * time.Second,
		EdgePollInterval:    3 * time.Second,
	})

	return bot, b
}

func TestDedupKeyFormat(t *testing.T) {
	e := &LiveEvent{Home: "Arsenal", Away: "Chelsea", Type: Goal, Minute: 37}
	if got := e.DedupKey(); got != "arsenal_chelsea_goal_37" {
		t.Errorf("dedup key = %q", got)
	}
}

func TestDuplicateEventsSuppressed(t *testing.T) {
	bot, b := newTestBot(t)
	ctx := context.Background()

	event := LiveEvent{
		FixtureID:  1,
		Home:       "Arsenal",
		Away:       "Chelsea",
		Minute:     12,
		Type:       MatchStart,
		Source:     sourceAPIFootball,
		DetectedAt: time.Now(),
	}

	bot.handleEvent(ctx, &event)
	dup := event
	bot.handleEvent(ctx, &dup)

	published := 0
	for _, ev := range b.History() {
		if ev.Type == "datafeed_live_event" {
			published++
		}
	}
	if published != 1 {
		t.Errorf("published %d live events, want 1", published)
	}
}

func TestDedupWindowExpires(t *testing.T) {
	bot, _ := newTestBot(t)

	event := &LiveEvent{Home: "Arsenal", Away: "Chelsea", Type: Goal, Minute: 12}

	if bot.isDuplicate(event) {
		t.Fatal("first event marked duplicate")
	}
	if !bot.isDuplicate(event) {
		t.Fatal("repeat within window not suppressed")
	}

	// Age the entry past the window; GC runs on the next event.
	bot.mu.Lock()
	bot.lastSeen[event.DedupKey()] = time.Now().Add(-2 * dedupWindow)
	bot.mu.Unlock()

	if bot.isDuplicate(event) {
		t.Error("expired entry still suppressing")
	}
}

func TestStaleEventSkipsDetection(t *testing.T) {
	bot, b := newTestBot(t)

	event := LiveEvent{
		FixtureID:  2,
		Home:       "Bayern",
		Away:       "Dortmund",
		Minute:     55,
		Type:       Goal,
		Source:     sourceAPIFootball,
		DetectedAt: time.Now().Add(-5 * time.Minute), // outside entry window
	}

	bot.handleEvent(context.Background(), &event)

	// The event itself is still published; no opportunity follows.
	var live, opps int
	for _, ev := range b.History() {
		switch ev.Type {
		case "datafeed_live_event":
			live++
		case "datafeed_opportunity":
			opps++
		}
	}
	if live != 1 || opps != 0 {
		t.Errorf("live=%d opportunities=%d", live, opps)
	}
}
