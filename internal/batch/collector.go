package batch

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"genvrbatch/internal/domain"
)

// ItemState tracks one batch item through its lifecycle.
type ItemState string

const (
	ItemStatePending   ItemState = "pending"
	ItemStateRunning   ItemState = "running"
	ItemStateSucceeded ItemState = "succeeded"
	ItemStateFailed    ItemState = "failed"
)

// ItemRecord is the collected outcome of one batch item.
type ItemRecord struct {
	Index       int               `json:"index"`
	Request     domain.JobRequest `json:"request"`
	State       ItemState         `json:"state"`
	Result      *domain.JobResult `json:"result,omitempty"`
	StartedAt   time.Time         `json:"started_at,omitempty"`
	CompletedAt time.Time         `json:"completed_at,omitempty"`
}

// Collector is a Reporter that records per-item outcomes in memory so a
// snapshot can be served while the batch runs and a report exported after it
// completes. Safe for concurrent use by all workers of one batch.
type Collector struct {
	mu      sync.Mutex
	records map[int]*ItemRecord
	summary *domain.BatchSummary
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{records: make(map[int]*ItemRecord)}
}

func (c *Collector) ItemStarted(index int, req domain.JobRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[index] = &ItemRecord{
		Index:     index,
		Request:   req,
		State:     ItemStateRunning,
		StartedAt: time.Now(),
	}
}

func (c *Collector) ItemCompleted(index int, result domain.JobResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.records[index]
	if !ok {
		record = &ItemRecord{Index: index}
		c.records[index] = record
	}
	record.Result = &result
	record.CompletedAt = time.Now()
	if result.Succeeded() {
		record.State = ItemStateSucceeded
	} else {
		record.State = ItemStateFailed
	}
}

func (c *Collector) BatchCompleted(summary domain.BatchSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = &summary
}

var _ Reporter = (*Collector)(nil)

// Done reports whether the batch-completed event has been observed.
func (c *Collector) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary != nil
}

// Summary returns the final summary, or nil while the batch is running.
func (c *Collector) Summary() *domain.BatchSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return nil
	}
	summary := *c.summary
	return &summary
}

// Items returns a copy of all recorded items ordered by input index.
func (c *Collector) Items() []ItemRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := lo.Map(lo.Values(c.records), func(r *ItemRecord, _ int) ItemRecord {
		return *r
	})
	sort.Slice(items, func(i, j int) bool { return items[i].Index < items[j].Index })
	return items
}
