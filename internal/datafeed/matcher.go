package datafeed

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/pkg/cache"
	"github.com/edgefeed/signal-engine/pkg/types"
)

const (
	catalogueCacheKey = "soccer_markets"
	catalogueTTL      = 300 * time.Second

	// matchThreshold accepts a market outright; boostedThreshold applies
	// when either team is in the reference-portfolio team set.
	matchThreshold    = 0.50
	boostedThreshold  = 0.35
	catalogueTagValue = "Soccer"
)

var (
	overUnderRe = regexp.MustCompile(`(?i)o/?u\s*(\d+\.?\d*)`)
	bttsRe      = regexp.MustCompile(`(?i)both\s+teams?\s+(to\s+)?score`)
)

// teamAbbreviations expands common short forms before similarity scoring.
var teamAbbreviations = map[string]string{
	"utd":    "united",
	"city":   "city",
	"ucl":    "champions league",
	"psg":    "paris saint germain",
	"man":    "manchester",
	"inter":  "internazionale",
	"atleti": "atletico",
	"wolves": "wolverhampton",
	"spurs":  "tottenham",
}

// MatcherConfig holds market matcher configuration.
type MatcherConfig struct {
	Logger      *zap.Logger
	Fetcher     *fetch.Client
	Cache       cache.Cache
	GammaAPIURL string
	MarketLimit int
}

// Matcher maps live fixtures to catalogue markets by title similarity.
type Matcher struct {
	cfg    MatcherConfig
	logger *zap.Logger
}

// NewMatcher creates a market matcher.
func NewMatcher(cfg *MatcherConfig) *Matcher {
	if cfg.MarketLimit <= 0 {
		cfg.MarketLimit = 200
	}
	return &Matcher{cfg: *cfg, logger: cfg.Logger}
}

// Match finds the best catalogue market for a fixture. referenceTitles are
// titles of positions already held elsewhere; a fixture whose team appears
// in one of them is accepted at the lower threshold.
func (m *Matcher) Match(ctx context.Context, home, away string, referenceTitles []string) (*MatchedMarket, bool) {
	markets, err := m.catalogue(ctx)
	if err != nil {
		m.logger.Warn("market-catalogue-fetch-failed", zap.Error(err))
		MatchesTotal.WithLabelValues("catalogue_error").Inc()
		return nil, false
	}

	normHome := normalizeTitle(home)
	normAway := normalizeTitle(away)
	threshold := matchThreshold
	if teamInReference(normHome, referenceTitles) || teamInReference(normAway, referenceTitles) {
		threshold = boostedThreshold
	}

	var best *types.Market
	bestScore := 0.0
	for i := range markets {
		score := matchScore(markets[i].Question, normHome, normAway)
		if score > bestScore {
			bestScore = score
			best = &markets[i]
		}
	}

	if best == nil || bestScore < threshold {
		MatchesTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	matched := &MatchedMarket{
		ConditionID: best.ConditionID,
		Question:    best.Question,
		Score:       bestScore,
	}
	if len(best.ClobTokenIDs) > 0 {
		matched.YesTokenID = best.ClobTokenIDs[0]
	}
	if len(best.ClobTokenIDs) > 1 {
		matched.NoTokenID = best.ClobTokenIDs[1]
	}
	switch {
	case best.BestAsk != nil:
		matched.Price = *best.BestAsk
	case best.BestBid != nil:
		matched.Price = *best.BestBid
	}

	matched.Type, matched.Line = classifyMarket(best.Question)

	MatchesTotal.WithLabelValues("hit").Inc()
	m.logger.Debug("market-matched",
		zap.String("home", home),
		zap.String("away", away),
		zap.String("question", matched.Question),
		zap.Float64("score", bestScore))

	return matched, true
}

// catalogue fetches the active soccer market list, cached for five minutes.
func (m *Matcher) catalogue(ctx context.Context) ([]types.Market, error) {
	if m.cfg.Cache != nil {
		if v, ok := m.cfg.Cache.Get(catalogueCacheKey); ok {
			if markets, ok := v.([]types.Market); ok {
				return markets, nil
			}
		}
	}

	var markets []types.Market
	err := m.cfg.Fetcher.GetJSON(ctx, m.cfg.GammaAPIURL+"/markets", map[string]string{
		"active": "true",
		"tag":    catalogueTagValue,
		"limit":  strconv.Itoa(m.cfg.MarketLimit),
	}, nil, &markets)
	if err != nil {
		return nil, err
	}

	if m.cfg.Cache != nil {
		m.cfg.Cache.Set(catalogueCacheKey, markets, catalogueTTL)
	}

	return markets, nil
}

// classifyMarket derives the market type (and over/under line) from the
// title.
func classifyMarket(question string) (MarketType, float64) {
	if match := overUnderRe.FindStringSubmatch(question); match != nil {
		line, err := strconv.ParseFloat(match[1], 64)
		if err == nil {
			return OverUnder, line
		}
	}
	if bttsRe.MatchString(question) {
		return BTTS, 0
	}
	return GameWinner, 0
}

// matchScore combines sequence similarity of the title against each team
// with token overlap, equally weighted.
func matchScore(question, normHome, normAway string) float64 {
	normTitle := normalizeTitle(question)

	simHome := sequenceRatio(normTitle, normHome)
	simAway := sequenceRatio(normTitle, normAway)
	sim := simHome
	if simAway > sim {
		sim = simAway
	}

	return sim*0.5 + wordOverlap(normTitle, normHome+" "+normAway)*0.5
}

// normalizeTitle lowercases, strips punctuation and expands abbreviations.
func normalizeTitle(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		if full, ok := teamAbbreviations[w]; ok {
			words[i] = full
		}
	}

	return strings.Join(words, " ")
}

// wordOverlap is the fraction of team tokens present in the title.
func wordOverlap(title, teams string) float64 {
	teamWords := strings.Fields(teams)
	if len(teamWords) == 0 {
		return 0
	}

	titleSet := make(map[string]struct{})
	for _, w := range strings.Fields(title) {
		titleSet[w] = struct{}{}
	}

	matched := 0
	for _, w := range teamWords {
		if _, ok := titleSet[w]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(teamWords))
}

// teamInReference reports whether a normalized team name appears in any
// reference title.
func teamInReference(team string, titles []string) bool {
	if team == "" {
		return false
	}
	for _, title := range titles {
		if strings.Contains(normalizeTitle(title), team) {
			return true
		}
	}
	return false
}

// sequenceRatio is 2M/(len(a)+len(b)) where M sums recursive longest common
// substring matches.
func sequenceRatio(a, b string) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}
	return 2 * float64(matchingChars(a, b)) / float64(len(a)+len(b))
}

func matchingChars(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}

	return size +
		matchingChars(a[:ai], b[:bi]) +
		matchingChars(a[ai+size:], b[bi+size:])
}

func longestCommonSubstring(a, b string) (ai, bi, size int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}

	return ai, bi, size
}
