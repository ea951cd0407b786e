package sheets

import (
	"runtime"
	"time"

	"github.com/sheetbuilder/sheetbuilder/internal/jobs"
)

// Progress cadences. Dimension scanning reports every dimScanReportEvery
// pages inside the [5,10] percent band; page processing reports every
// max(pageReportMin, N/pageReportDivisor) pages inside [10,90].
const (
	dimScanReportEvery = 100
	pageReportMin      = 10
	pageReportDivisor  = 50
)

// Sink receives progress from a running composition. The broker-backed sink
// publishes to subscribers; the synchronous path uses NopSink.
type Sink interface {
	Progress(evt jobs.ProgressEvent)
	Stage(stage jobs.Stage, operation string)
}

// NopSink drops everything.
type NopSink struct{}

func (NopSink) Progress(jobs.ProgressEvent) {}

func (NopSink) Stage(jobs.Stage, string) {}

// BrokerSink publishes progress for one job to a broker.
type BrokerSink struct {
	Broker *jobs.Broker
	JobID  string
}

func (s *BrokerSink) Progress(evt jobs.ProgressEvent) {
	s.Broker.UpdateProgress(s.JobID, evt)
}

func (s *BrokerSink) Stage(stage jobs.Stage, operation string) {
	s.Broker.UpdateStage(s.JobID, stage, operation)
}

// tracker shapes raw worker counters into events: stage-banded percentages,
// throughput, ETA, and a monotonic clamp so percent and page never regress
// from this worker.
type tracker struct {
	jobID       string
	totalPages  int
	startedAt   time.Time
	sink        Sink
	lastPercent float64
	lastPage    int
}

func newTracker(jobID string, totalPages int, sink Sink) *tracker {
	return &tracker{
		jobID:      jobID,
		totalPages: totalPages,
		startedAt:  time.Now(),
		sink:       sink,
	}
}

// percentFor interpolates the stage's percent band by pages processed.
func (t *tracker) percentFor(stage jobs.Stage, page int) float64 {
	if t.totalPages <= 0 {
		return 0
	}
	frac := float64(page+1) / float64(t.totalPages)
	if frac > 1 {
		frac = 1
	}
	switch stage {
	case jobs.StagePreparingDimensions:
		return 5 + 5*frac
	case jobs.StageProcessingPages:
		return 10 + 80*frac
	case jobs.StageOptimizingOutput:
		return 95
	default:
		return 0
	}
}

// report emits one event for the given page (zero-based) with perf counters.
func (t *tracker) report(stage jobs.Stage, page int, operation string, perf jobs.PerfStats) {
	elapsed := time.Since(t.startedAt).Seconds()
	percent := t.percentFor(stage, page)
	if percent < t.lastPercent {
		percent = t.lastPercent
	}
	t.lastPercent = percent
	if page < t.lastPage {
		page = t.lastPage
	}
	t.lastPage = page

	var pps, eta float64
	if elapsed > 0 {
		pps = float64(page+1) / elapsed
	}
	remaining := float64(t.totalPages - page - 1)
	if remaining < 0 {
		remaining = 0
	}
	eta = remaining / maxFloat(pps, 0.1)

	t.sink.Progress(jobs.ProgressEvent{
		JobID:           t.jobID,
		Stage:           stage,
		CurrentPage:     page + 1,
		TotalPages:      t.totalPages,
		PercentComplete: percent,
		PagesPerSecond:  pps,
		EtaSeconds:      eta,
		ElapsedSeconds:  elapsed,
		Operation:       operation,
		Perf:            perf,
		Timestamp:       time.Now(),
	})
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// memoryMB samples current heap usage for perf counters.
func memoryMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.Alloc) / (1024 * 1024)
}

// pageReportInterval is the ProcessingPages cadence for a document of n pages.
func pageReportInterval(n int) int {
	interval := n / pageReportDivisor
	if interval < pageReportMin {
		interval = pageReportMin
	}
	return interval
}
