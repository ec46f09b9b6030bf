package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"genvrbatch/internal/domain"
	"genvrbatch/internal/infra"
	"genvrbatch/internal/storage"
)

// ErrBatchNotFound is returned for snapshot, cancel or export requests
// against an unknown batch id.
var ErrBatchNotFound = errors.New("batch not found")

// ErrBatchRunning is returned when an export is requested before the batch
// has completed.
var ErrBatchRunning = errors.New("batch still running")

// Snapshot is a point-in-time view of one batch run served to frontends.
type Snapshot struct {
	ID        string               `json:"id"`
	Total     int                  `json:"total"`
	Done      bool                 `json:"done"`
	CreatedAt time.Time            `json:"created_at"`
	Summary   *domain.BatchSummary `json:"summary,omitempty"`
	Items     []ItemRecord         `json:"items"`
}

type run struct {
	id        string
	total     int
	createdAt time.Time
	token     *Token
	collector *Collector
}

// Manager starts batches in the background and tracks them in memory for the
// daemon API. Nothing survives a process restart.
type Manager struct {
	executor *Executor
	logger   infra.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// NewManager wires an executor.
func NewManager(executor *Executor, logger infra.Logger) *Manager {
	return &Manager{
		executor: executor,
		logger:   logger,
		runs:     make(map[string]*run),
	}
}

// Start launches a batch and returns its id immediately. The batch runs on
// its own goroutine; progress is observed through Snapshot.
func (m *Manager) Start(ctx context.Context, requests []domain.JobRequest, concurrency int) string {
	r := &run{
		id:        uuid.NewString(),
		total:     len(requests),
		createdAt: time.Now(),
		token:     NewToken(),
		collector: NewCollector(),
	}

	m.mu.Lock()
	m.runs[r.id] = r
	m.mu.Unlock()

	m.logger.Info().
		Str("batch_id", r.id).
		Int("total", r.total).
		Int("concurrency", concurrency).
		Msg("batch: started")

	go m.executor.Run(ctx, requests, concurrency, r.collector, r.token)
	return r.id
}

// Snapshot returns the current view of one batch.
func (m *Manager) Snapshot(id string) (*Snapshot, error) {
	r, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ID:        r.id,
		Total:     r.total,
		Done:      r.collector.Done(),
		CreatedAt: r.createdAt,
		Summary:   r.collector.Summary(),
		Items:     r.collector.Items(),
	}, nil
}

// Cancel sets the batch's cancellation token. In-flight items observe it at
// their next poll tick; pending items are never started.
func (m *Manager) Cancel(id string) error {
	r, err := m.lookup(id)
	if err != nil {
		return err
	}
	r.token.Cancel()
	m.logger.Info().Str("batch_id", id).Msg("batch: cancellation requested")
	return nil
}

// Export writes the completed batch report as JSON through the file store and
// returns the storage key.
func (m *Manager) Export(ctx context.Context, id string, store *storage.FileStore) (string, error) {
	r, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	if !r.collector.Done() {
		return "", ErrBatchRunning
	}
	snapshot := Snapshot{
		ID:        r.id,
		Total:     r.total,
		Done:      true,
		CreatedAt: r.createdAt,
		Summary:   r.collector.Summary(),
		Items:     r.collector.Items(),
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode batch report: %w", err)
	}
	key := fmt.Sprintf("batches/%s/report.json", r.id)
	return store.Write(ctx, key, data)
}

func (m *Manager) lookup(id string) (*run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return r, nil
}
