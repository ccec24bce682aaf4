package datafeed

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/fetch"
)

const (
	defaultSportradarSoccerURL = "https://api.sportradar.com/soccer/trial/v4/en"
	defaultSportradarNBAURL    = "https://api.sportradar.com/nba/trial/v8/en"
	sourceSportradar           = "sportradar"
	sourceSportradarNBA        = "sportradar-nba"
)

// srResponse is the sportradar live summaries wire shape, shared between the
// soccer and NBA endpoints.
type srResponse struct {
	Summaries []srSummary `json:"summaries"`
}

type srSummary struct {
	SportEvent struct {
		ID          string `json:"id"`
		Competitors []struct {
			Name      string `json:"name"`
			Qualifier string `json:"qualifier"`
		} `json:"competitors"`
	} `json:"sport_event"`
	SportEventStatus struct {
		HomeScore int `json:"home_score"`
		AwayScore int `json:"away_score"`
		Clock     struct {
			Played string `json:"played"`
		} `json:"clock"`
	} `json:"sport_event_status"`
}

// SportradarFeedConfig holds sportradar feed configuration.
type SportradarFeedConfig struct {
	Logger    *zap.Logger
	Fetcher   *fetch.Client
	APIKey    string
	SoccerURL string
	NBAURL    string
	EnableNBA bool
}

// SportradarFeed polls sportradar live summaries for soccer and, optionally,
// NBA games (score changes reported as goal-proxy events).
type SportradarFeed struct {
	cfg    SportradarFeedConfig
	logger *zap.Logger

	mu         sync.Mutex
	prevSoccer map[int]fixtureState
	prevNBA    map[int]fixtureState
}

// NewSportradarFeed creates the sportradar feed.
func NewSportradarFeed(cfg *SportradarFeedConfig) *SportradarFeed {
	if cfg.SoccerURL == "" {
		cfg.SoccerURL = defaultSportradarSoccerURL
	}
	if cfg.NBAURL == "" {
		cfg.NBAURL = defaultSportradarNBAURL
	}
	return &SportradarFeed{
		cfg:        *cfg,
		logger:     cfg.Logger,
		prevSoccer: make(map[int]fixtureState),
		prevNBA:    make(map[int]fixtureState),
	}
}

// Source identifies the feed in events and dedup keys.
func (f *SportradarFeed) Source() string { return sourceSportradar }

// Poll fetches live summaries and returns the events since the last poll.
func (f *SportradarFeed) Poll(ctx context.Context) ([]LiveEvent, error) {
	events, err := f.pollSport(ctx, f.cfg.SoccerURL, sourceSportradar, &f.prevSoccer, MatchStart, MatchEnd)
	if err != nil {
		return nil, err
	}

	if f.cfg.EnableNBA {
		nba, err := f.pollSport(ctx, f.cfg.NBAURL, sourceSportradarNBA, &f.prevNBA, GameStart, GameEnd)
		if err != nil {
			f.logger.Warn("sportradar-nba-poll-failed", zap.Error(err))
		} else {
			events = append(events, nba...)
		}
	}

	return events, nil
}

func (f *SportradarFeed) pollSport(ctx context.Context, baseURL, source string, prev *map[int]fixtureState, startType, endType EventType) ([]LiveEvent, error) {
	var payload srResponse
	err := f.cfg.Fetcher.GetJSON(ctx, baseURL+"/schedules/live/summaries.json",
		map[string]string{"api_key": f.cfg.APIKey}, nil, &payload)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	current := make(map[int]fixtureState, len(payload.Summaries))
	var events []LiveEvent

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range payload.Summaries {
		id := sportradarFixtureID(s.SportEvent.ID)
		state := fixtureState{
			homeGoals: s.SportEventStatus.HomeScore,
			awayGoals: s.SportEventStatus.AwayScore,
			minute:    playedMinute(s.SportEventStatus.Clock.Played),
		}
		for _, c := range s.SportEvent.Competitors {
			switch c.Qualifier {
			case "home":
				state.home = c.Name
			case "away":
				state.away = c.Name
			}
		}
		current[id] = state

		old, known := (*prev)[id]
		if !known {
			events = append(events, srEvent(id, state, startType, source, now))
			continue
		}
		if state.homeGoals > old.homeGoals || state.awayGoals > old.awayGoals {
			events = append(events, srEvent(id, state, Goal, source, now))
		}
	}

	for id, state := range *prev {
		if _, still := current[id]; !still {
			state.minute = 90
			events = append(events, srEvent(id, state, endType, source, now))
		}
	}

	*prev = current

	return events, nil
}

func srEvent(id int, state fixtureState, typ EventType, source string, now time.Time) LiveEvent {
	return LiveEvent{
		FixtureID:  id,
		Home:       state.home,
		Away:       state.away,
		HomeGoals:  state.homeGoals,
		AwayGoals:  state.awayGoals,
		Minute:     state.minute,
		Type:       typ,
		Source:     source,
		DetectedAt: now,
	}
}

// sportradarFixtureID takes the trailing integer of ids like
// "sr:sport_event:12345"; non-numeric tails hash to a 24-bit id.
func sportradarFixtureID(id string) int {
	if idx := strings.LastIndex(id, ":"); idx >= 0 {
		if n, err := strconv.Atoi(id[idx+1:]); err == nil {
			return n
		}
	}

	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() & 0xFFFFFF)
}

// playedMinute parses "MM:SS" clock strings.
func playedMinute(played string) int {
	mins, _, found := strings.Cut(played, ":")
	if !found {
		return 0
	}
	n, err := strconv.Atoi(mins)
	if err != nil {
		return 0
	}
	return n
}
