package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

// marketPage is a stand-in for the cached slice of a Gamma catalogue fetch.
type marketPage struct {
	Tag       string
	MarketIDs []string
}

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()
	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(c.Close)
	return c.(*RistrettoCache)
}

func TestRoundTrip(t *testing.T) {
	c := newTestCache(t)

	page := marketPage{
		Tag:       "soccer",
		MarketIDs: []string{"0xcond1", "0xcond2"},
	}
	if !c.Set("gamma:markets:tag=soccer", page, time.Minute) {
		t.Fatal("set rejected")
	}
	c.Wait()

	got, found := c.Get("gamma:markets:tag=soccer")
	if !found {
		t.Fatal("page not found after set")
	}
	if len(got.(marketPage).MarketIDs) != 2 {
		t.Errorf("cached page = %+v", got)
	}
}

func TestMissOnUnknownKey(t *testing.T) {
	c := newTestCache(t)

	if _, found := c.Get("flow:0xdeadbeef"); found {
		t.Error("unexpected hit on never-set key")
	}
}

func TestDeleteDropsEntry(t *testing.T) {
	c := newTestCache(t)

	c.Set("clob:book:tok-yes", marketPage{Tag: "book"}, time.Minute)
	c.Wait()
	if _, found := c.Get("clob:book:tok-yes"); !found {
		t.Skip("entry not admitted")
	}

	c.Delete("clob:book:tok-yes")
	if _, found := c.Get("clob:book:tok-yes"); found {
		t.Error("entry survived delete")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)

	c.Set("fixtures:live", marketPage{Tag: "live"}, 100*time.Millisecond)
	c.Wait()
	if _, found := c.Get("fixtures:live"); !found {
		t.Skip("entry not admitted")
	}

	time.Sleep(200 * time.Millisecond)

	if _, found := c.Get("fixtures:live"); found {
		t.Error("entry survived its TTL")
	}
}

func TestClearDropsEverything(t *testing.T) {
	c := newTestCache(t)

	c.Set("gamma:markets:tag=nba", marketPage{Tag: "nba"}, time.Minute)
	c.Set("gamma:markets:tag=nfl", marketPage{Tag: "nfl"}, time.Minute)
	c.Wait()

	_, found1 := c.Get("gamma:markets:tag=nba")
	_, found2 := c.Get("gamma:markets:tag=nfl")
	if !found1 || !found2 {
		t.Skip("entries not admitted")
	}

	c.Clear()

	if _, found := c.Get("gamma:markets:tag=nba"); found {
		t.Error("entry survived clear")
	}
	if _, found := c.Get("gamma:markets:tag=nfl"); found {
		t.Error("entry survived clear")
	}
}
