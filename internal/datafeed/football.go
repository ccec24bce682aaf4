package datafeed

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/internal/fetch"
)

const (
	defaultFootballURL = "https://v3.football.api-sports.io"
	sourceAPIFootball  = "api-football"
)

// afResponse is the api-football live fixtures wire shape.
type afResponse struct {
	Response []afFixture `json:"response"`
}

type afFixture struct {
	Fixture struct {
		ID     int `json:"id"`
		Status struct {
			Elapsed int `json:"elapsed"`
		} `json:"status"`
	} `json:"fixture"`
	Teams struct {
		Home struct {
			Name string `json:"name"`
		} `json:"home"`
		Away struct {
			Name string `json:"name"`
		} `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home int `json:"home"`
		Away int `json:"away"`
	} `json:"goals"`
	Events []afEvent `json:"events"`
}

type afEvent struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Team   struct {
		Name string `json:"name"`
	} `json:"team"`
}

// fixtureState is the remembered snapshot per live fixture.
type fixtureState struct {
	home, away           string
	homeGoals, awayGoals int
	redCards             int
	minute               int
}

// FootballFeedConfig holds api-football feed configuration.
type FootballFeedConfig struct {
	Logger  *zap.Logger
	Fetcher *fetch.Client
	Bus     *bus.Bus
	APIKey  string
	BaseURL string
}

// FootballFeed polls api-football live fixtures and diffs them into events.
type FootballFeed struct {
	cfg    FootballFeedConfig
	logger *zap.Logger

	mu   sync.Mutex
	prev map[int]fixtureState
}

// NewFootballFeed creates the api-football feed.
func NewFootballFeed(cfg *FootballFeedConfig) *FootballFeed {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultFootballURL
	}
	return &FootballFeed{
		cfg:    *cfg,
		logger: cfg.Logger,
		prev:   make(map[int]fixtureState),
	}
}

// Source identifies the feed in events and dedup keys.
func (f *FootballFeed) Source() string { return sourceAPIFootball }

// Poll fetches live fixtures and returns the events since the last poll.
func (f *FootballFeed) Poll(ctx context.Context) ([]LiveEvent, error) {
	resp, err := f.cfg.Fetcher.Get(ctx, f.cfg.BaseURL+"/fixtures",
		map[string]string{"live": "all"},
		map[string]string{"x-apisports-key": f.cfg.APIKey})
	if err != nil {
		return nil, err
	}

	f.publishAPIStatus(resp.Header.Get("x-ratelimit-requests-remaining"))

	var payload afResponse
	if err := decodeJSON(resp.Body, &payload); err != nil {
		return nil, err
	}

	now := time.Now()
	current := make(map[int]fixtureState, len(payload.Response))
	var events []LiveEvent

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, fx := range payload.Response {
		id := fx.Fixture.ID
		state := fixtureState{
			home:      fx.Teams.Home.Name,
			away:      fx.Teams.Away.Name,
			homeGoals: fx.Goals.Home,
			awayGoals: fx.Goals.Away,
			redCards:  countRedCards(fx.Events),
			minute:    fx.Fixture.Status.Elapsed,
		}
		current[id] = state

		prev, known := f.prev[id]
		if !known {
			events = append(events, f.event(id, state, MatchStart, "", now))
			continue
		}

		if state.homeGoals > prev.homeGoals || state.awayGoals > prev.awayGoals {
			events = append(events, f.event(id, state, Goal, "", now))
		}
		if state.redCards > prev.redCards {
			events = append(events, f.event(id, state, RedCard, redCardSide(fx), now))
		}
	}

	for id, state := range f.prev {
		if _, still := current[id]; !still {
			state.minute = 90
			events = append(events, f.event(id, state, MatchEnd, "", now))
		}
	}

	f.prev = current

	return events, nil
}

func (f *FootballFeed) event(id int, state fixtureState, typ EventType, cardSide string, now time.Time) LiveEvent {
	return LiveEvent{
		FixtureID:  id,
		Home:       state.home,
		Away:       state.away,
		HomeGoals:  state.homeGoals,
		AwayGoals:  state.awayGoals,
		Minute:     state.minute,
		Type:       typ,
		Source:     sourceAPIFootball,
		DetectedAt: now,
		CardSide:   cardSide,
	}
}

// publishAPIStatus maps the remaining-requests header to a traffic-light
// status: green above 20, yellow above 5, red otherwise.
func (f *FootballFeed) publishAPIStatus(remainingHeader string) {
	if f.cfg.Bus == nil || remainingHeader == "" {
		return
	}

	remaining := 0
	for _, r := range remainingHeader {
		if r < '0' || r > '9' {
			return
		}
		remaining = remaining*10 + int(r-'0')
	}

	status := "red"
	switch {
	case remaining > 20:
		status = "green"
	case remaining > 5:
		status = "yellow"
	}

	f.cfg.Bus.Publish("datafeed_api_status", map[string]interface{}{
		"source":    sourceAPIFootball,
		"status":    status,
		"remaining": remaining,
	})
}

func countRedCards(events []afEvent) int {
	n := 0
	for _, e := range events {
		if isRedCard(e) {
			n++
		}
	}
	return n
}

// redCardSide inspects the tail of the events array for the newest red card.
func redCardSide(fx afFixture) string {
	for i := len(fx.Events) - 1; i >= 0; i-- {
		if !isRedCard(fx.Events[i]) {
			continue
		}
		if fx.Events[i].Team.Name == fx.Teams.Home.Name {
			return "home"
		}
		return "away"
	}
	return ""
}

func isRedCard(e afEvent) bool {
	return strings.EqualFold(e.Type, "Card") && strings.Contains(strings.ToLower(e.Detail), "red")
}
