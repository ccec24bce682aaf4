package cache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMissCounterAdvances(t *testing.T) {
	c := newTestCache(t)

	before := testutil.ToFloat64(CacheMissesTotal)
	c.Get("gamma:markets:absent")
	if got := testutil.ToFloat64(CacheMissesTotal); got != before+1 {
		t.Errorf("misses = %v, want %v", got, before+1)
	}
}

func TestHitAndSetCountersAdvance(t *testing.T) {
	c := newTestCache(t)

	sets := testutil.ToFloat64(CacheSetsTotal)
	if !c.Set("gamma:markets:tag=nhl", marketPage{Tag: "nhl"}, time.Minute) {
		t.Skip("entry not admitted")
	}
	if got := testutil.ToFloat64(CacheSetsTotal); got != sets+1 {
		t.Errorf("sets = %v, want %v", got, sets+1)
	}
	c.Wait()

	hits := testutil.ToFloat64(CacheHitsTotal)
	if _, found := c.Get("gamma:markets:tag=nhl"); !found {
		t.Skip("entry not admitted")
	}
	if got := testutil.ToFloat64(CacheHitsTotal); got != hits+1 {
		t.Errorf("hits = %v, want %v", got, hits+1)
	}
}

func TestDeleteCounterAdvances(t *testing.T) {
	c := newTestCache(t)

	before := testutil.ToFloat64(CacheDeletesTotal)
	c.Delete("clob:book:gone")
	if got := testutil.ToFloat64(CacheDeletesTotal); got != before+1 {
		t.Errorf("deletes = %v, want %v", got, before+1)
	}
}
