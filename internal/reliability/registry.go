package reliability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sheetbuilder/sheetbuilder/internal/jobs"
)

// sweepInterval is how often expired completed entries are collected. Lazy
// eviction on lookup covers missed ticks.
const sweepInterval = 5 * time.Minute

// OutcomeKind discriminates the registry's decision for one submission.
type OutcomeKind int

const (
	// Registered means the submission is fresh and the caller owns starting
	// the work.
	Registered OutcomeKind = iota
	// DuplicateActive means an equivalent job is already running.
	DuplicateActive
	// DuplicateCompleted means an equivalent job finished within the result
	// TTL and its cached result should be returned without reprocessing.
	DuplicateCompleted
)

// Outcome carries the decision plus the job id it refers to. Result is set
// only for DuplicateCompleted and is a caller-owned copy.
type Outcome struct {
	Kind   OutcomeKind
	JobID  string
	Result *jobs.Result
}

type activeEntry struct {
	jobID     string
	startedAt time.Time
}

type completedEntry struct {
	jobID       string
	completedAt time.Time
	result      jobs.Result
}

// Config holds the reliability knobs. All of them may be swapped at runtime
// through UpdateConfig.
type Config struct {
	// IdempotencyActive enables deduplication. When false every submission
	// registers fresh.
	IdempotencyActive bool

	// EnforceProgressForLarge makes the synchronous path refuse uploads at or
	// above LargeFileThresholdMB.
	EnforceProgressForLarge bool

	// LargeFileThresholdMB is the synchronous-path size cutoff in MiB.
	LargeFileThresholdMB int

	// ResultTTL is how long a completed result is served to duplicate
	// submissions.
	ResultTTL time.Duration

	Logger *slog.Logger
}

// Registry maps upload fingerprints to running jobs and recently completed
// results. One mutex covers both maps so a submission's whole decision is
// atomic: for any fingerprint at most one active entry exists, and an active
// entry and a fresh completed entry never coexist.
type Registry struct {
	mu        sync.Mutex
	active    map[string]activeEntry
	completed map[string]completedEntry
	cfg       Config
	logger    *slog.Logger
}

// NewRegistry returns an empty registry with the given knobs.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		active:    make(map[string]activeEntry),
		completed: make(map[string]completedEntry),
		cfg:       cfg,
		logger:    logger,
	}
}

// UpdateConfig swaps the reliability knobs at runtime. Existing entries keep
// their timestamps; a shortened TTL takes effect on the next lookup or sweep.
func (r *Registry) UpdateConfig(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.IdempotencyActive = cfg.IdempotencyActive
	r.cfg.EnforceProgressForLarge = cfg.EnforceProgressForLarge
	r.cfg.LargeFileThresholdMB = cfg.LargeFileThresholdMB
	r.cfg.ResultTTL = cfg.ResultTTL
}

// RegisterOrResolve decides the fate of a submission under one lock, so
// concurrent equivalent submissions serialize and exactly one wins. The
// jobIDFactory runs only for fresh submissions, and inserting the active
// entry is the final step, so a panicking factory leaves the registry
// unchanged. With idempotency off every call registers fresh.
func (r *Registry) RegisterOrResolve(fp Fingerprint, jobIDFactory func() string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.IdempotencyActive {
		return Outcome{Kind: Registered, JobID: jobIDFactory()}
	}

	digest := fp.Digest()
	if entry, ok := r.active[digest]; ok {
		r.logger.Debug("duplicate submission joins active job",
			"job_id", entry.jobID, "file", fp.Name)
		return Outcome{Kind: DuplicateActive, JobID: entry.jobID}
	}
	if entry, ok := r.completed[digest]; ok {
		if time.Since(entry.completedAt) < r.cfg.ResultTTL {
			res := entry.result
			return Outcome{Kind: DuplicateCompleted, JobID: entry.jobID, Result: &res}
		}
		delete(r.completed, digest)
	}

	jobID := jobIDFactory()
	r.active[digest] = activeEntry{jobID: jobID, startedAt: time.Now()}
	return Outcome{Kind: Registered, JobID: jobID}
}

// MarkCompleted moves an active registration into the completed cache. The
// job id must match the active entry so a stale caller cannot clobber a newer
// registration. The stored result is a copy, as is every copy later handed
// out, so callers can never mutate the cache.
func (r *Registry) MarkCompleted(fp Fingerprint, jobID string, result jobs.Result) {
	digest := fp.Digest()
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.active[digest]
	if !ok || entry.jobID != jobID {
		return
	}
	delete(r.active, digest)
	r.completed[digest] = completedEntry{
		jobID:       jobID,
		completedAt: time.Now(),
		result:      result,
	}
}

// MarkFailed removes the active registration without caching anything, so an
// immediate retry of the same upload registers fresh. The job id must match.
func (r *Registry) MarkFailed(fp Fingerprint, jobID string) {
	digest := fp.Digest()
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.active[digest]
	if !ok || entry.jobID != jobID {
		return
	}
	delete(r.active, digest)
}

// ShouldBlockLegacy reports whether the synchronous path must refuse an
// upload of this size and point the client at the progress-tracked endpoint.
func (r *Registry) ShouldBlockLegacy(sizeBytes int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.cfg.EnforceProgressForLarge {
		return false
	}
	return sizeBytes >= int64(r.cfg.LargeFileThresholdMB)*1024*1024
}

// Stats returns the current entry counts.
func (r *Registry) Stats() (active, completed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active), len(r.completed)
}

// StartSweeper drops expired completed entries every five minutes until ctx
// is done.
func (r *Registry) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.sweep(time.Now()); n > 0 {
					r.logger.Debug("swept expired results", "count", n)
				}
			}
		}
	}()
}

func (r *Registry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for digest, entry := range r.completed {
		if now.Sub(entry.completedAt) >= r.cfg.ResultTTL {
			delete(r.completed, digest)
			n++
		}
	}
	return n
}
