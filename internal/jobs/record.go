package jobs

import "time"

// Stage identifies where a job is in its lifecycle.
type Stage string

const (
	StageInitializing        Stage = "Initializing"
	StagePreparingDimensions Stage = "PreparingDimensions"
	StageProcessingPages     Stage = "ProcessingPages"
	StageOptimizingOutput    Stage = "OptimizingOutput"
	StageFinalizing          Stage = "Finalizing"
	StageCompleted           Stage = "Completed"
	StageFailed              Stage = "Failed"
)

// Terminal reports whether the stage ends a job.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// stageRank orders the linear pipeline. Failed shares the top rank because it
// is reachable from any non-terminal stage.
var stageRank = map[Stage]int{
	StageInitializing:        0,
	StagePreparingDimensions: 1,
	StageProcessingPages:     2,
	StageOptimizingOutput:    3,
	StageFinalizing:          4,
	StageCompleted:           5,
	StageFailed:              5,
}

// canTransition reports whether a record may move from one stage to another:
// forward or same-stage moves only, nothing leaves a terminal stage, and
// Failed is reachable from anywhere non-terminal.
func canTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	fr, ok := stageRank[from]
	tr, ok2 := stageRank[to]
	if !ok || !ok2 {
		return false
	}
	return tr >= fr
}

// Result describes a finished composition.
type Result struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	OutputFileName       string `json:"outputFileName"`
	DownloadPath         string `json:"downloadPath"`
	ProcessingTimeMillis int64  `json:"processingTimeMillis"`
	InputPages           int    `json:"inputPages"`
	OutputPages          int    `json:"outputPages"`
}

// Record is the broker-owned state of one job. Terminal records never change
// again; the reaper removes them after a retention window.
type Record struct {
	JobID        string
	Stage        Stage
	StartedAt    time.Time
	EndedAt      *time.Time
	LastProgress *ProgressEvent
	Result       *Result
	ErrorMessage string
}

// snapshot returns a copy whose pointer fields are detached from broker
// state, so callers cannot mutate a live record through it.
func (r *Record) snapshot() Record {
	out := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	if r.LastProgress != nil {
		evt := *r.LastProgress
		out.LastProgress = &evt
	}
	if r.Result != nil {
		res := *r.Result
		out.Result = &res
	}
	return out
}
