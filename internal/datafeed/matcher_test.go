package datafeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/fetch"
	"github.com/edgefeed/signal-engine/pkg/cache"
)

func TestClassifyMarket(t *testing.T) {
	tests := []struct {
		question string
		want     MarketType
		wantLine float64
	}{
		{"Arsenal vs Chelsea O/U 2.5", OverUnder, 2.5},
		{"Goals ou3.5 in El Clasico?", OverUnder, 3.5},
		{"Will both teams to score?", BTTS, 0},
		{"Both teams score in Arsenal vs Chelsea?", BTTS, 0},
		{"Will Arsenal beat Chelsea?", GameWinner, 0},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			typ, line := classifyMarket(tt.question)
			if typ != tt.want || line != tt.wantLine {
				t.Errorf("classify = %s/%f, want %s/%f", typ, line, tt.want, tt.wantLine)
			}
		})
	}
}

func newCatalogueServer(body string) (*httptest.Server, *int64) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		fmt.Fprint(w, body)
	}))
	return srv, &calls
}

func newTestMatcher(t *testing.T, url string) (*Matcher, cache.Cache) {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	c, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(c.Close)

	return NewMatcher(&MatcherConfig{
		Logger:      logger,
		Fetcher:     fetch.New(&fetch.Config{Logger: logger, Timeout: 2 * time.Second, BaseDelay: time.Millisecond}),
		Cache:       c,
		GammaAPIURL: url,
	}), c
}

func TestMatchAcceptsAndRejects(t *testing.T) {
	srv, _ := newCatalogueServer(`[
		{"conditionId": "0xgood", "question": "Will Arsenal beat Chelsea in the league match?", "bestAsk": 0.55, "clobTokenIds": ["yes-tok", "no-tok"]},
		{"conditionId": "0xnoise", "question": "Bitcoin above 100k by March?", "bestAsk": 0.40, "clobTokenIds": ["btc-yes", "btc-no"]}
	]`)
	defer srv.Close()

	m, _ := newTestMatcher(t, srv.URL)

	matched, ok := m.Match(context.Background(), "Arsenal", "Chelsea", nil)
	if !ok {
		t.Fatal("expected a match")
	}
	if matched.ConditionID != "0xgood" || matched.YesTokenID != "yes-tok" || matched.NoTokenID != "no-tok" {
		t.Errorf("matched = %+v", matched)
	}
	if matched.Price != 0.55 {
		t.Errorf("price = %f, want bestAsk 0.55", matched.Price)
	}
	if matched.Type != GameWinner {
		t.Errorf("type = %s, want %s", matched.Type, GameWinner)
	}

	if _, ok := m.Match(context.Background(), "Bayern", "Dortmund", nil); ok {
		t.Error("unrelated teams matched")
	}
}

func TestMatchReferenceBoost(t *testing.T) {
	// "Arsenal to win?" against "Arsenal FC" scores between the boosted and
	// the normal threshold.
	srv, _ := newCatalogueServer(`[
		{"conditionId": "0xmid", "question": "Arsenal to win?", "bestAsk": 0.50, "clobTokenIds": ["yes-tok", "no-tok"]}
	]`)
	defer srv.Close()

	m, _ := newTestMatcher(t, srv.URL)

	if _, ok := m.Match(context.Background(), "Arsenal FC", "Chelsea FC", nil); ok {
		t.Error("mid-score match accepted without reference boost")
	}

	refs := []string{"Will Arsenal FC win?"}
	if _, ok := m.Match(context.Background(), "Arsenal FC", "Chelsea FC", refs); !ok {
		t.Error("mid-score match rejected despite reference boost")
	}
}

func TestCatalogueCached(t *testing.T) {
	srv, calls := newCatalogueServer(`[
		{"conditionId": "0xgood", "question": "Will Arsenal beat Chelsea in the league match?", "bestAsk": 0.55, "clobTokenIds": ["yes-tok", "no-tok"]}
	]`)
	defer srv.Close()

	m, c := newTestMatcher(t, srv.URL)

	m.Match(context.Background(), "Arsenal", "Chelsea", nil)
	c.(*cache.RistrettoCache).Wait()
	m.Match(context.Background(), "Arsenal", "Chelsea", nil)

	if n := atomic.LoadInt64(calls); n != 1 {
		t.Errorf("catalogue fetched %d times, want 1", n)
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got := normalizeTitle("Man Utd vs. Spurs!"); got != "manchester united vs tottenham" {
		t.Errorf("normalize = %q", got)
	}
}
