package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/NamiraNet/namira-pool/internal/logger"
	"github.com/NamiraNet/namira-pool/internal/report"
	"github.com/NamiraNet/namira-pool/internal/workerpool"
	"github.com/NamiraNet/namira-pool/internal/workload"
)

const (
	// MaxBatchSize bounds the count accepted by POST /tasks.
	MaxBatchSize = 10000
	// DefaultBatchHistory is how many batches GET /tasks/{id} can still find.
	DefaultBatchHistory = 1024
)

type Handler struct {
	pool        *workerpool.WorkerPool
	sleeper     *workload.Sleeper
	store       *report.RedisStore
	batches     *batchStore
	nextTaskID  atomic.Int64
	logger      *zap.Logger
	versionInfo VersionInfo
	startedAt   time.Time
}

// NewHandler serves pool, drawing payloads from sleeper unless a request supplies its
// own range. store may be nil, which disables the report endpoints. A nil log falls back
// to the process-wide logger.
func NewHandler(pool *workerpool.WorkerPool, sleeper *workload.Sleeper, store *report.RedisStore, log *zap.Logger, versionInfo VersionInfo) *Handler {
	if log == nil {
		log = logger.Get()
	}
	return &Handler{
		pool:        pool,
		sleeper:     sleeper,
		store:       store,
		batches:     newBatchStore(DefaultBatchHistory),
		logger:      log,
		versionInfo: versionInfo,
		startedAt:   time.Now(),
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Invalid Json", zap.Error(err))
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Count < 1 || req.Count > MaxBatchSize {
		writeError(w, "count must be between 1 and 10000", http.StatusBadRequest)
		return
	}

	sleeper := h.sleeper
	if req.MinMS != 0 || req.MaxMS != 0 {
		custom, err := workload.NewSleeper(
			time.Duration(req.MinMS)*time.Millisecond,
			time.Duration(req.MaxMS)*time.Millisecond)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sleeper = custom
	}

	firstID := int(h.nextTaskID.Add(int64(req.Count))) - req.Count
	batch := NewBatch(req.Count, firstID)

	var submitErr error
	for i := 0; i < req.Count && submitErr == nil; i++ {
		err := h.pool.SubmitContext(r.Context(), workerpool.WorkItem{ID: firstID + i, Payload: sleeper.Payload()})
		switch {
		case err == nil:
			batch.Accepted++
		case errors.Is(err, workerpool.ErrRejected):
			batch.Rejected++
		default:
			// the pool counted this attempt as rejected
			batch.Rejected++
			submitErr = err
		}
	}

	// stored even when cut short, accepted tasks still run
	h.batches.put(batch)
	h.logger.Info("batch submitted",
		zap.String("batch_id", batch.ID),
		zap.Int("accepted", batch.Accepted),
		zap.Int("rejected", batch.Rejected),
		zap.Error(submitErr))

	status := http.StatusAccepted
	switch {
	case errors.Is(submitErr, workerpool.ErrPoolShutdown):
		status = http.StatusServiceUnavailable
	case submitErr != nil:
		h.logger.Error("Failed to submit task", zap.String("batch_id", batch.ID), zap.Error(submitErr))
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, batch)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	if batch, exists := h.batches.get(mux.Vars(r)["id"]); exists {
		writeJSON(w, batch)
		return
	}
	writeError(w, "Batch not found", http.StatusNotFound)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := h.pool.Stats().Snapshot()
	writeJSON(w, StatsResponse{
		Snapshot:     snap,
		DropRate:     snap.DropRate(),
		QueueLengths: h.pool.QueueLengths(),
		Settled:      snap.Settled(),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := h.pool.Config()
	queued := 0
	for _, n := range h.pool.QueueLengths() {
		queued += n
	}

	status := "ok"
	if h.pool.IsShutdown() {
		status = "stopping"
	}

	writeJSON(w, HealthResponse{
		Status:  status,
		Version: h.versionInfo.Version,
		Build:   h.versionInfo,
		WorkerPool: WorkerPoolStatus{
			QueueCount:      cfg.QueueCount,
			ThreadsPerQueue: cfg.ThreadsPerQueue,
			QueueCapacity:   cfg.QueueCapacity,
			RejectPolicy:    string(cfg.RejectPolicy),
			QueueLength:     queued,
			IsRunning:       !h.pool.IsShutdown(),
			Uptime:          time.Since(h.startedAt).Round(time.Second).String(),
		},
	})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, "Report storage is not configured", http.StatusNotImplemented)
		return
	}

	var (
		rep *report.Report
		err error
	)
	if id := mux.Vars(r)["id"]; id == "latest" {
		rep, err = h.store.Latest(r.Context())
	} else {
		rep, err = h.store.Load(r.Context(), id)
	}

	switch {
	case errors.Is(err, report.ErrNotFound):
		writeError(w, "Report not found", http.StatusNotFound)
	case err != nil:
		h.logger.Error("Failed to load report", zap.Error(err))
		writeError(w, "Failed to load report", http.StatusInternalServerError)
	default:
		writeJSON(w, rep)
	}
}

// Helper functions
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(MessageResponse{
		Status:  code,
		Message: message,
	}); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
