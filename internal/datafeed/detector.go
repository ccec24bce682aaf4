package datafeed

import (
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	// leagueGoalRate is the assumed full-match goal rate for the Poisson
	// over/under model.
	leagueGoalRate = 2.6
	matchMinutes   = 90.0

	// redCardSwing is the home-win probability adjustment on a red card.
	redCardSwing = 0.12
)

type half string

const (
	firstHalf  half = "first_half"
	secondHalf half = "second_half"
)

// winProbs is (home win, draw, away win).
type winProbs struct {
	home, draw, away float64
}

// winProbTable maps (clipped goal diff, half) to fair outcome probabilities.
var winProbTable = map[int]map[half]winProbs{
	-2: {firstHalf: {0.08, 0.14, 0.78}, secondHalf: {0.04, 0.08, 0.88}},
	-1: {firstHalf: {0.20, 0.28, 0.52}, secondHalf: {0.12, 0.20, 0.68}},
	0:  {firstHalf: {0.40, 0.30, 0.30}, secondHalf: {0.35, 0.38, 0.27}},
	1:  {firstHalf: {0.62, 0.24, 0.14}, secondHalf: {0.72, 0.20, 0.08}},
	2:  {firstHalf: {0.80, 0.12, 0.08}, secondHalf: {0.90, 0.06, 0.04}},
}

// Detector turns matched live events into opportunities when the model's
// fair value diverges from the market price by at least the edge threshold.
type Detector struct {
	logger *zap.Logger
	// minEdge is the acceptance threshold as a probability (not percent).
	minEdge float64
}

// NewDetector creates a detector with the edge threshold in percent.
func NewDetector(logger *zap.Logger, minEdgePct float64) *Detector {
	return &Detector{logger: logger, minEdge: minEdgePct / 100.0}
}

// Evaluate computes fair value for the market given the event and returns an
// opportunity when the edge clears the threshold. BTTS markets are matched
// but not modeled.
func (d *Detector) Evaluate(event *LiveEvent, market *MatchedMarket) (*Opportunity, bool) {
	var fair float64

	switch market.Type {
	case GameWinner:
		fair = fairHomeWin(event)
	case OverUnder:
		fair = overProbability(market.Line, event.HomeGoals+event.AwayGoals, minutesRemaining(event.Minute))
	default:
		return nil, false
	}

	edge := fair - market.Price
	if math.Abs(edge) < d.minEdge {
		return nil, false
	}

	side := "Yes"
	fairValue := fair
	if edge < 0 {
		side = "No"
		fairValue = 1 - fair
	}

	opp := &Opportunity{
		FixtureID:   event.FixtureID,
		Event:       event.Type,
		Market:      *market,
		Side:        side,
		FairValue:   fairValue,
		MarketPrice: market.Price,
		EdgePct:     math.Abs(edge) * 100,
		FeedSource:  event.Source,
		DetectedAt:  time.Now(),
	}

	d.logger.Info("edge-detected",
		zap.String("question", market.Question),
		zap.String("side", side),
		zap.Float64("fair", fairValue),
		zap.Float64("price", market.Price),
		zap.Float64("edge-pct", opp.EdgePct))

	return opp, true
}

// fairHomeWin looks up the home-win probability for the current score and
// half. A red card shifts it by redCardSwing: against home when home is
// trailing or level, against away otherwise.
func fairHomeWin(event *LiveEvent) float64 {
	diff := clip(event.HomeGoals-event.AwayGoals, -2, 2)

	h := firstHalf
	if event.Minute > 45 {
		h = secondHalf
	}

	fair := winProbTable[diff][h].home

	if event.Type == RedCard {
		if event.HomeGoals <= event.AwayGoals {
			fair -= redCardSwing
		} else {
			fair += redCardSwing
		}
		fair = clamp(fair, 0.01, 0.99)
	}

	return fair
}

// overProbability is P(total goals > line) under a Poisson remainder model
// with rate leagueGoalRate/matchMinutes per minute.
func overProbability(line float64, currentGoals int, minsRemaining float64) float64 {
	if minsRemaining <= 0 {
		return 0
	}

	needed := int(math.Floor(line)) + 1 - currentGoals
	if needed <= 0 {
		return 1
	}

	lambda := leagueGoalRate / matchMinutes * minsRemaining

	cumulative := 0.0
	term := math.Exp(-lambda) // Poisson(0; lambda)
	for k := 0; k < needed; k++ {
		cumulative += term
		term *= lambda / float64(k+1)
	}

	return 1 - cumulative
}

func minutesRemaining(minute int) float64 {
	remaining := matchMinutes - float64(minute)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
