package cache

import (
	"sync/atomic"
	"time"
)

// CacheMetrics is a point-in-time copy of Counters.
type CacheMetrics struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Errors    int64 `json:"errors"`
	Sets      int64 `json:"sets"`
	Deletes   int64 `json:"deletes"`
	StartTime int64 `json:"start_time"`
}

type Counters struct {
	hits, misses, errors, sets, deletes atomic.Int64
	startTime                           atomic.Int64
}

func NewCounters() *Counters {
	c := &Counters{}
	c.startTime.Store(time.Now().Unix())
	return c
}

func (c *Counters) RecordHit()    { c.hits.Add(1) }
func (c *Counters) RecordMiss()   { c.misses.Add(1) }
func (c *Counters) RecordError()  { c.errors.Add(1) }
func (c *Counters) RecordSet()    { c.sets.Add(1) }
func (c *Counters) RecordDelete() { c.deletes.Add(1) }

func (c *Counters) GetStats() CacheMetrics {
	return CacheMetrics{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Errors:    c.errors.Load(),
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		StartTime: c.startTime.Load(),
	}
}

// HitRate is the percentage of lookups answered from cache.
func (c *Counters) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total) * 100.0
}

func (c *Counters) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.errors.Store(0)
	c.sets.Store(0)
	c.deletes.Store(0)
	c.startTime.Store(time.Now().Unix())
}
