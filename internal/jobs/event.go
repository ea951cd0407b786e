package jobs

import "time"

// PerfStats carries worker-side resource counters so operators can tune the
// form cache capacity from the event stream alone.
type PerfStats struct {
	MemoryMB        float64 `json:"memoryMB"`
	CacheHits       int64   `json:"cacheHits"`
	CacheMisses     int64   `json:"cacheMisses"`
	CacheHitRatio   float64 `json:"cacheHitRatio"`
	CachedObjects   int     `json:"cachedObjects"`
	SheetsGenerated int     `json:"sheetsGenerated"`
}

// ProgressEvent is the full current state of a job at one instant. Events are
// self-contained: a subscriber that misses intermediate events loses
// granularity, never information.
type ProgressEvent struct {
	JobID           string    `json:"jobId"`
	Stage           Stage     `json:"stage"`
	CurrentPage     int       `json:"currentPage"`
	TotalPages      int       `json:"totalPages"`
	PercentComplete float64   `json:"percentComplete"`
	PagesPerSecond  float64   `json:"pagesPerSecond"`
	EtaSeconds      float64   `json:"etaSeconds"`
	ElapsedSeconds  float64   `json:"elapsedSeconds"`
	Operation       string    `json:"operation"`
	Perf            PerfStats `json:"perf"`
	Timestamp       time.Time `json:"timestamp"`
}
