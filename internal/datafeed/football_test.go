package datafeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/fetch"
)

type fixtureServer struct {
	mu        sync.Mutex
	body      string
	remaining string
	srv       *httptest.Server
}

func newFixtureServer(body string) *fixtureServer {
	fs := &fixtureServer{body: body}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		if fs.remaining != "" {
			w.Header().Set("x-ratelimit-requests-remaining", fs.remaining)
		}
		w.Write([]byte(fs.body))
	}))
	return fs
}

func (fs *fixtureServer) set(body, remaining string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.body = body
	fs.remaining = remaining
}

func fixtureBody(goalsHome, goalsAway int, events string) string {
	return `{"response": [{
		"fixture": {"id": 42, "status": {"elapsed": 37}},
		"teams": {"home": {"name": "Arsenal"}, "away": {"name": "Chelsea"}},
		"goals": {"home": ` + itoa(goalsHome) + `, "away": ` + itoa(goalsAway) + `},
		"events": [` + events + `]
	}]}`
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	return string(rune('0' + n))
}

func newTestFootballFeed(t *testing.T, url string, b *bus.Bus) *FootballFeed {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return NewFootballFeed(&FootballFeedConfig{
		Logger:  logger,
		Fetcher: fetch.New(&fetch.Config{Logger: logger, Timeout: 2 * time.Second, BaseDelay: time.Millisecond}),
		Bus:     b,
		APIKey:  "test-key",
		BaseURL: url,
	})
}

func TestFootballFeedDiff(t *testing.T) {
	fs := newFixtureServer(fixtureBody(0, 0, ""))
	defer fs.srv.Close()

	feed := newTestFootballFeed(t, fs.srv.URL, nil)
	ctx := context.Background()

	events, err := feed.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(events) != 1 || events[0].Type != MatchStart {
		t.Fatalf("first poll events = %+v, want match_start", events)
	}
	if events[0].Home != "Arsenal" || events[0].Away != "Chelsea" || events[0].Minute != 37 {
		t.Errorf("event fields = %+v", events[0])
	}

	// Goal plus a red card at the tail of the events array.
	fs.set(fixtureBody(1, 0, `{"type": "Card", "detail": "Red Card", "team": {"name": "Chelsea"}}`), "")
	events, err = feed.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("second poll events = %+v", events)
	}
	if events[0].Type != Goal || events[0].HomeGoals != 1 {
		t.Errorf("goal event = %+v", events[0])
	}
	if events[1].Type != RedCard || events[1].CardSide != "away" {
		t.Errorf("red card event = %+v", events[1])
	}

	// Fixture disappears: match_end at minute 90.
	fs.set(`{"response": []}`, "")
	events, err = feed.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(events) != 1 || events[0].Type != MatchEnd || events[0].Minute != 90 {
		t.Errorf("final poll events = %+v, want match_end at 90", events)
	}
}

func TestFootballFeedAPIStatus(t *testing.T) {
	fs := newFixtureServer(`{"response": []}`)
	defer fs.srv.Close()

	logger, _ := zap.NewDevelopment()
	b := bus.New(&bus.Config{Logger: logger})
	feed := newTestFootballFeed(t, fs.srv.URL, b)
	ctx := context.Background()

	for _, tt := range []struct {
		remaining string
		want      string
	}{
		{"95", "green"},
		{"12", "yellow"},
		{"3", "red"},
	} {
		fs.set(`{"response": []}`, tt.remaining)
		if _, err := feed.Poll(ctx); err != nil {
			t.Fatalf("poll: %v", err)
		}

		history := b.History()
		last := history[len(history)-1]
		if last.Type != "datafeed_api_status" {
			t.Fatalf("last event = %s", last.Type)
		}
		payload := last.Data.(map[string]interface{})
		if payload["status"] != tt.want {
			t.Errorf("remaining %s: status = %v, want %s", tt.remaining, payload["status"], tt.want)
		}
	}
}

func TestSportradarFixtureID(t *testing.T) {
	if got := sportradarFixtureID("sr:sport_event:12345"); got != 12345 {
		t.Errorf("trailing int id = %d", got)
	}

	hashed := sportradarFixtureID("sr:sport_event:abc")
	if hashed <= 0 || hashed > 0xFFFFFF {
		t.Errorf("hashed id out of range: %d", hashed)
	}
	if hashed != sportradarFixtureID("sr:sport_event:abc") {
		t.Error("hashed id not stable")
	}
}

func TestPlayedMinute(t *testing.T) {
	if got := playedMinute("67:12"); got != 67 {
		t.Errorf("playedMinute = %d", got)
	}
	if got := playedMinute(""); got != 0 {
		t.Errorf("empty clock = %d", got)
	}
}
