package datafeed

import (
	"fmt"
	"strings"
	"time"
)

// EventType is a live sport event kind.
type EventType string

const (
	MatchStart EventType = "match_start"
	Goal       EventType = "goal"
	RedCard    EventType = "red_card"
	MatchEnd   EventType = "match_end"

	// NBA branch equivalents; score changes are reported as Goal.
	GameStart EventType = "game_start"
	GameEnd   EventType = "game_end"
)

// LiveEvent is one normalized event from a live sports feed.
type LiveEvent struct {
	FixtureID  int       `json:"fixture_id"`
	Home       string    `json:"home"`
	Away       string    `json:"away"`
	HomeGoals  int       `json:"home_goals"`
	AwayGoals  int       `json:"away_goals"`
	Minute     int       `json:"minute"`
	Type       EventType `json:"type"`
	Source     string    `json:"source"`
	DetectedAt time.Time `json:"detected_at"`
	// CardSide is "home" or "away" for red-card events.
	CardSide string `json:"card_side,omitempty"`
}

// DedupKey identifies an event for suppression purposes.
func (e *LiveEvent) DedupKey() string {
	return fmt.Sprintf("%s_%s_%s_%d",
		strings.ToLower(e.Home), strings.ToLower(e.Away), e.Type, e.Minute)
}

// MarketType classifies a matched market by its title.
type MarketType string

const (
	GameWinner MarketType = "game_winner"
	OverUnder  MarketType = "over_under"
	BTTS       MarketType = "btts"
)

// MatchedMarket is a catalogue market matched to a live fixture.
type MatchedMarket struct {
	ConditionID string     `json:"condition_id"`
	Question    string     `json:"question"`
	YesTokenID  string     `json:"yes_token_id"`
	NoTokenID   string     `json:"no_token_id"`
	Price       float64    `json:"price"`
	Type        MarketType `json:"market_type"`
	// Line is the parsed over/under line; zero otherwise.
	Line  float64 `json:"line,omitempty"`
	Score float64 `json:"match_score"`
}

// Opportunity is a detected pricing edge on a matched market.
type Opportunity struct {
	FixtureID   int           `json:"fixture_id"`
	Event       EventType     `json:"event"`
	Market      MatchedMarket `json:"market"`
	Side        string        `json:"side"`
	FairValue   float64       `json:"fair_value"`
	MarketPrice float64       `json:"market_price"`
	EdgePct     float64       `json:"edge_pct"`
	FeedSource  string        `json:"feed_source"`
	DetectedAt  time.Time     `json:"detected_at"`
}

// PendingEdge is an opportunity awaiting a price move measurement.
type PendingEdge struct {
	Key          string
	TokenID      string
	ConditionID  string
	InitialPrice float64
	EventTS      time.Time
	FeedSource   string
}

// EdgeMeasurement records how fast the market moved after an event.
type EdgeMeasurement struct {
	LatencySeconds   float64 `json:"latency_s"`
	PriceAtDetection float64 `json:"price_at_detection"`
	PriceAfterMove   float64 `json:"price_after_move"`
	PriceDelta       float64 `json:"price_delta"`
	FeedSource       string  `json:"feed_source"`
}
