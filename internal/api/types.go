package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NamiraNet/namira-pool/internal/workerpool"
)

type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

type MessageResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type SubmitRequest struct {
	Count int   `json:"count"`
	MinMS int64 `json:"min_ms,omitempty"`
	MaxMS int64 `json:"max_ms,omitempty"`
}

// Batch records the outcome of one POST /tasks call. Accepted+Rejected falls short of
// Count when the pool stopped part way through.
type Batch struct {
	ID        string    `json:"batch_id"`
	Count     int       `json:"count"`
	FirstID   int       `json:"first_task_id"`
	Accepted  int       `json:"accepted"`
	Rejected  int       `json:"rejected"`
	CreatedAt time.Time `json:"created_at"`
}

func NewBatch(count, firstID int) *Batch {
	return &Batch{
		ID:        uuid.NewString(),
		Count:     count,
		FirstID:   firstID,
		CreatedAt: time.Now(),
	}
}

// batchStore keeps the most recent batches, evicting the oldest beyond limit.
type batchStore struct {
	mu    sync.Mutex
	limit int
	byID  map[string]*Batch
	order []string
}

func newBatchStore(limit int) *batchStore {
	return &batchStore{limit: limit, byID: make(map[string]*Batch)}
}

func (s *batchStore) put(b *Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[b.ID] = b
	s.order = append(s.order, b.ID)
	for len(s.order) > s.limit {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *batchStore) get(id string) (*Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	return b, ok
}

func (s *batchStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

type StatsResponse struct {
	Snapshot     workerpool.Snapshot `json:"snapshot"`
	DropRate     float64             `json:"drop_rate"`
	QueueLengths []int               `json:"queue_lengths"`
	Settled      bool                `json:"settled"`
}

type WorkerPoolStatus struct {
	QueueCount      int    `json:"queue_count"`
	ThreadsPerQueue int    `json:"threads_per_queue"`
	QueueCapacity   int    `json:"queue_capacity"`
	RejectPolicy    string `json:"reject_policy"`
	QueueLength     int    `json:"queue_length"`
	IsRunning       bool   `json:"is_running"`
	Uptime          string `json:"uptime"`
}

type HealthResponse struct {
	Status     string           `json:"status"`
	Version    string           `json:"version"`
	Build      VersionInfo      `json:"build"`
	WorkerPool WorkerPoolStatus `json:"worker_pool"`
}
