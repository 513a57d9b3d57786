package sbmark

import (
	"sync"
	"time"
)

type OpKind int

const (
	OpPut OpKind = iota
	OpGet
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "PUT"
	case OpGet:
		return "GET"
	}
	return "UNKNOWN"
}

// Stat is the record of one completed operation. Values are never modified after creation.
type Stat struct {
	Kind   OpKind
	Start  time.Time
	End    time.Time
	Size   int64
	Key    string
	Worker int
}

func (s Stat) Elapsed() time.Duration {
	return s.End.Sub(s.Start)
}

// StatsSink is the write-only view of the collection handed to workers.
type StatsSink interface {
	Append(Stat)
}

// StatsCollection is an append-only multiset of stats shared by all workers of a run.
type StatsCollection struct {
	mu    sync.Mutex
	stats []Stat
}

func NewStatsCollection(capacity int) *StatsCollection {
	return &StatsCollection{stats: make([]Stat, 0, capacity)}
}

func (c *StatsCollection) Append(s Stat) {
	c.mu.Lock()
	c.stats = append(c.stats, s)
	c.mu.Unlock()
}

func (c *StatsCollection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stats)
}

// Stats returns a copy of the collected stats. Call it only after all workers have joined.
func (c *StatsCollection) Stats() []Stat {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Stat, len(c.stats))
	copy(out, c.stats)
	return out
}
