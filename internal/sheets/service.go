package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/sheetbuilder/sheetbuilder/internal/jobs"
	"github.com/sheetbuilder/sheetbuilder/internal/metrics"
	"github.com/sheetbuilder/sheetbuilder/internal/reliability"
	"github.com/sheetbuilder/sheetbuilder/internal/storage"
)

// ErrTooLargeForSync means the upload must go through the progress-tracked
// asynchronous endpoint.
var ErrTooLargeForSync = errors.New("upload exceeds synchronous size limit")

// ErrUploadStore means the upload could not be persisted before composition.
var ErrUploadStore = errors.New("upload could not be stored")

// DownloadPathPrefix is where composed outputs are served from.
const DownloadPathPrefix = "/api/pdf/download/"

// ServiceConfig wires the service's collaborators.
type ServiceConfig struct {
	Registry *reliability.Registry
	Broker   *jobs.Broker
	Store    *storage.Store
	Composer *Composer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Service runs the submission flow shared by both HTTP entry points:
// fingerprint the upload, let the registry decide its fate, stage the file,
// and hand fresh work to a background composition task.
type Service struct {
	registry *reliability.Registry
	broker   *jobs.Broker
	store    *storage.Store
	composer *Composer
	metrics  *metrics.Metrics
	logger   *slog.Logger

	runCtx context.Context

	// compositions counts composition runs; deduplication is asserted
	// against it.
	compositions atomic.Int64
}

// NewService returns a service over the given collaborators.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: cfg.Registry,
		broker:   cfg.Broker,
		store:    cfg.Store,
		composer: cfg.Composer,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// Start binds background maintenance to ctx: the registry sweep, the broker
// reaper, and the storage retention sweep. Composition tasks spawned from
// later submissions also run under ctx, never under a request context, so a
// disconnecting submitter cannot cancel running work.
func (s *Service) Start(ctx context.Context) {
	s.runCtx = ctx
	s.registry.StartSweeper(ctx)
	s.broker.StartReaper(ctx)
	s.store.StartSweeper(ctx)
}

// SubmitOutcome is the submission decision, ready to serialize.
type SubmitOutcome struct {
	JobID     string
	Duplicate bool
	Result    *jobs.Result
}

// SubmitAsync registers the upload and, when it wins the registration, stages
// the file and spawns the composition task. Duplicate submissions return the
// existing job or the cached result without touching the upload stream.
func (s *Service) SubmitAsync(fp reliability.Fingerprint, upload io.Reader) (SubmitOutcome, error) {
	outcome := s.registry.RegisterOrResolve(fp, s.broker.CreateJob)
	switch outcome.Kind {
	case reliability.DuplicateActive:
		s.metrics.DuplicateActive.Inc()
		return SubmitOutcome{JobID: outcome.JobID, Duplicate: true}, nil
	case reliability.DuplicateCompleted:
		s.metrics.DuplicateCompleted.Inc()
		return SubmitOutcome{JobID: outcome.JobID, Duplicate: true, Result: outcome.Result}, nil
	}

	stagedPath, err := s.store.StageUpload(fp.Name, upload)
	if err != nil {
		s.broker.FailJob(outcome.JobID, "storing upload failed")
		s.registry.MarkFailed(fp, outcome.JobID)
		return SubmitOutcome{}, fmt.Errorf("storing upload: %w", err)
	}

	req := s.buildRequest(fp, outcome.JobID, stagedPath)
	s.compositions.Add(1)
	s.metrics.JobsStarted.Inc()
	s.metrics.ActiveJobs.Inc()
	s.logger.Info("composition job started",
		"job_id", req.JobID, "file", fp.Name, "rotation", fp.Rotation, "order", fp.Order)
	go s.runJob(fp, req)

	return SubmitOutcome{JobID: outcome.JobID}, nil
}

// SubmitSync runs a composition inline and returns its result. Uploads at or
// above the large-file threshold are refused when enforcement is on, so they
// go through the progress-tracked path instead.
func (s *Service) SubmitSync(ctx context.Context, fp reliability.Fingerprint, upload io.Reader) (jobs.Result, error) {
	if s.registry.ShouldBlockLegacy(fp.SizeBytes) {
		return jobs.Result{}, ErrTooLargeForSync
	}
	stagedPath, err := s.store.StageUpload(fp.Name, upload)
	if err != nil {
		return jobs.Result{}, fmt.Errorf("%w: %v", ErrUploadStore, err)
	}
	req := s.buildRequest(fp, "", stagedPath)
	s.compositions.Add(1)
	return s.composer.Compose(ctx, req, NopSink{})
}

// Compositions returns how many composition runs have started.
func (s *Service) Compositions() int64 {
	return s.compositions.Load()
}

func (s *Service) buildRequest(fp reliability.Fingerprint, jobID, stagedPath string) Request {
	clean := storage.OutputFileName(fp.Name, fp.Rotation, fp.Order)
	return Request{
		JobID:          jobID,
		SourcePath:     stagedPath,
		OriginalName:   fp.Name,
		Rotation:       fp.Rotation,
		Order:          fp.Order,
		OutputPath:     s.store.NewOutputPath(clean),
		OutputFileName: clean,
		DownloadPath:   DownloadPathPrefix + url.PathEscape(clean),
	}
}

func (s *Service) runJob(fp reliability.Fingerprint, req Request) {
	defer s.metrics.ActiveJobs.Dec()
	started := time.Now()
	sink := &BrokerSink{Broker: s.broker, JobID: req.JobID}
	result, err := s.composer.Compose(s.jobCtx(), req, sink)
	s.metrics.JobDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		s.broker.FailJob(req.JobID, err.Error())
		s.registry.MarkFailed(fp, req.JobID)
		s.metrics.JobsFailed.Inc()
		s.logger.Error("composition failed", "job_id", req.JobID, "file", fp.Name, "error", err)
		return
	}
	// Subscribers learn the outcome before the registry flips, so a racing
	// duplicate submission lands on a job whose status already reads
	// Completed.
	s.broker.CompleteJob(req.JobID, result)
	s.registry.MarkCompleted(fp, req.JobID, result)
	s.metrics.JobsCompleted.Inc()
	s.metrics.PagesProcessed.Add(float64(result.InputPages))
	s.metrics.SheetsGenerated.Add(float64(result.OutputPages))
}

// jobCtx is the lifetime for composition tasks.
func (s *Service) jobCtx() context.Context {
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}
