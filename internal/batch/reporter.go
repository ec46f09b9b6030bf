package batch

import (
	"sync"

	"genvrbatch/internal/domain"
)

// Reporter is the sink for batch progress events. Item events may arrive in
// any order relative to the input sequence; BatchCompleted is always the last
// event of a run. Implementations consumed by a GUI must not block: workers
// call these methods directly.
type Reporter interface {
	ItemStarted(index int, req domain.JobRequest)
	ItemCompleted(index int, result domain.JobResult)
	BatchCompleted(summary domain.BatchSummary)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) ItemStarted(int, domain.JobRequest)  {}
func (NopReporter) ItemCompleted(int, domain.JobResult) {}
func (NopReporter) BatchCompleted(domain.BatchSummary)  {}

var _ Reporter = NopReporter{}

// FanoutReporter forwards every event to each reporter in order.
type FanoutReporter []Reporter

func (f FanoutReporter) ItemStarted(index int, req domain.JobRequest) {
	for _, r := range f {
		r.ItemStarted(index, req)
	}
}

func (f FanoutReporter) ItemCompleted(index int, result domain.JobResult) {
	for _, r := range f {
		r.ItemCompleted(index, result)
	}
}

func (f FanoutReporter) BatchCompleted(summary domain.BatchSummary) {
	for _, r := range f {
		r.BatchCompleted(summary)
	}
}

var _ Reporter = FanoutReporter(nil)

// EventType tags entries emitted by an EventReporter.
type EventType string

const (
	EventItemStarted    EventType = "item_started"
	EventItemCompleted  EventType = "item_completed"
	EventBatchCompleted EventType = "batch_completed"
)

// Event is one progress notification. Exactly one of Request, Result or
// Summary is populated depending on Type.
type Event struct {
	Type    EventType            `json:"type"`
	Index   int                  `json:"index,omitempty"`
	Request *domain.JobRequest   `json:"request,omitempty"`
	Result  *domain.JobResult    `json:"result,omitempty"`
	Summary *domain.BatchSummary `json:"summary,omitempty"`
}

// EventReporter marshals progress events onto a buffered channel so an event
// loop (a GUI thread, an SSE writer) can consume them asynchronously instead
// of being called from worker goroutines. The channel is closed after the
// batch-completed event. If a consumer falls behind the buffer, events are
// dropped rather than blocking the worker pool.
type EventReporter struct {
	events chan Event
	stop   chan struct{}
	once   sync.Once
}

// NewEventReporter creates a reporter with the given buffer size.
func NewEventReporter(buffer int) *EventReporter {
	if buffer < 1 {
		buffer = 64
	}
	return &EventReporter{
		events: make(chan Event, buffer),
		stop:   make(chan struct{}),
	}
}

// Events returns the consumer side of the event stream.
func (r *EventReporter) Events() <-chan Event {
	return r.events
}

// Stop signals that no consumer will drain the stream anymore, releasing a
// BatchCompleted blocked on the final send. Idempotent.
func (r *EventReporter) Stop() {
	r.once.Do(func() { close(r.stop) })
}

func (r *EventReporter) ItemStarted(index int, req domain.JobRequest) {
	r.emit(Event{Type: EventItemStarted, Index: index, Request: &req})
}

func (r *EventReporter) ItemCompleted(index int, result domain.JobResult) {
	r.emit(Event{Type: EventItemCompleted, Index: index, Result: &result})
}

func (r *EventReporter) BatchCompleted(summary domain.BatchSummary) {
	// Completion must reach the consumer: block until the buffer drains,
	// then end the stream. A stopped reporter has no consumer left to wait
	// for.
	select {
	case r.events <- Event{Type: EventBatchCompleted, Summary: &summary}:
	case <-r.stop:
	}
	close(r.events)
}

func (r *EventReporter) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
	}
}

var _ Reporter = (*EventReporter)(nil)
