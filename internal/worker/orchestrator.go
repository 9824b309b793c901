package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/event-etl/internal/domain"
	"github.com/ignite/event-etl/internal/metrics"
	"github.com/ignite/event-etl/internal/pkg/logger"
	"github.com/ignite/event-etl/internal/service/ingest"
)

// Task types and the batch chain.
const (
	TaskRunExtractors       = "etl.run_extractors"
	TaskTransformAndLoadAll = "etl.transform_and_load_all"
	TaskDocument            = "document.process"

	BatchChain = "etl"
)

// BatchSteps is the ordered batch chain.
var BatchSteps = []string{TaskRunExtractors, TaskTransformAndLoadAll}

// Defaults for document processing.
const (
	DefaultDocumentTimeout = 300 * time.Second
	DefaultDocumentRetries = 2
	DefaultRetryDelay      = 10 * time.Second
)

// StatusTracker is the processing flag as seen by background work.
type StatusTracker interface {
	Begin(ctx context.Context) error
	Touch(ctx context.Context) error
	Finish(ctx context.Context) (int64, error)
}

// ExtractorRunner runs registered extraction sources by name.
type ExtractorRunner interface {
	Names() []string
	Run(ctx context.Context, name string) ([]domain.RawRecord, error)
}

// RecordLoader captures and loads raw records.
type RecordLoader interface {
	Capture(ctx context.Context, raw domain.RawRecord) (domain.CapturedRecord, error)
	Load(ctx context.Context, raw domain.RawRecord) (domain.LoadResult, error)
	Replay(ctx context.Context, batchSize int) (ingest.Summary, error)
}

// DocumentParser turns an uploaded file into raw records.
type DocumentParser func(ctx context.Context, path, fileType string) ([]domain.RawRecord, error)

// Config tunes the orchestrator.
type Config struct {
	DocumentTimeout time.Duration
	DocumentRetries int
	RetryDelay      time.Duration
	ReplayBatch     int
	// SkipExtractors are registered names the batch sweep leaves out.
	SkipExtractors []string
}

func (c *Config) applyDefaults() {
	if c.DocumentTimeout <= 0 {
		c.DocumentTimeout = DefaultDocumentTimeout
	}
	if c.DocumentRetries < 0 {
		c.DocumentRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.ReplayBatch <= 0 {
		c.ReplayBatch = ingest.DefaultReplayBatch
	}
}

// Orchestrator dispatches and runs the pipeline's background work: the
// batch chain (sweep every extractor, then transform and load everything
// captured) and one task per uploaded document.
type Orchestrator struct {
	queue      *Queue
	chains     *Chains
	status     StatusTracker
	extractors ExtractorRunner
	loader     RecordLoader
	parse      DocumentParser
	cfg        Config
	now        func() time.Time
}

// New wires an orchestrator. The batch chain's steps and finalizer are
// registered on construction.
func New(queue *Queue, status StatusTracker, extractors ExtractorRunner, loader RecordLoader, parse DocumentParser, cfg Config) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		queue:      queue,
		chains:     NewChains(queue),
		status:     status,
		extractors: extractors,
		loader:     loader,
		parse:      parse,
		cfg:        cfg,
		now:        time.Now,
	}
	o.chains.RegisterStep(TaskRunExtractors, o.RunExtractors)
	o.chains.RegisterStep(TaskTransformAndLoadAll, o.TransformAndLoadAll)
	o.chains.OnFinish(BatchChain, o.finalizeBatch)
	return o
}

// Register installs the orchestrator's handlers on p.
func (o *Orchestrator) Register(p *Pool) {
	p.Handle(TaskChain, o.chains.Handle)
	p.Handle(TaskDocument, o.ProcessDocument)
}

// DispatchBatch marks the pipeline running and enqueues a batch chain.
// Concurrent dispatches are not deduplicated.
func (o *Orchestrator) DispatchBatch(ctx context.Context) (string, error) {
	if err := o.status.Begin(ctx); err != nil {
		logger.Warn("[Orchestrator] status unavailable, dispatching anyway", "error", err)
	}
	id, err := o.chains.Start(ctx, BatchChain, BatchSteps, nil)
	if err != nil {
		o.finishUnit(ctx)
		return "", fmt.Errorf("dispatch batch: %w", err)
	}
	logger.Info("[Orchestrator] batch dispatched", "chain_id", id)
	return id, nil
}

// SourceResult is one extractor's outcome in a sweep.
type SourceResult struct {
	Name     string `json:"name"`
	Captured int    `json:"captured"`
	Error    string `json:"error,omitempty"`
}

// SweepResult is the output of the extractor sweep step.
type SweepResult struct {
	Sources  []SourceResult `json:"sources"`
	Captured int            `json:"captured"`
	Failed   int            `json:"failed"`
}

// RunExtractors runs every registered extractor in turn and captures what
// each returns. A failing extractor is logged and the sweep moves on; the
// step itself only fails when ctx is done.
func (o *Orchestrator) RunExtractors(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	o.touch(ctx)

	skip := make(map[string]bool, len(o.cfg.SkipExtractors))
	for _, n := range o.cfg.SkipExtractors {
		skip[n] = true
	}

	var res SweepResult
	for _, name := range o.extractors.Names() {
		if skip[name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr := o.runExtractor(ctx, name)
		res.Sources = append(res.Sources, sr)
		res.Captured += sr.Captured
		if sr.Error != "" {
			res.Failed++
		}
		o.touch(ctx)
	}

	logger.Info("[Orchestrator] extractor sweep finished",
		"sources", len(res.Sources), "captured", res.Captured, "failed", res.Failed)
	return json.Marshal(res)
}

func (o *Orchestrator) runExtractor(ctx context.Context, name string) SourceResult {
	sr := SourceResult{Name: name}
	records, err := o.extractors.Run(ctx, name)
	if err != nil {
		logger.Error("[Orchestrator] extractor failed", "extractor", name, "error", err)
		metrics.IncreaseExtractorRunsMetric(name, metrics.OutcomeFailure)
		sr.Error = err.Error()
		return sr
	}
	for _, rec := range records {
		if _, err := o.loader.Capture(ctx, rec); err != nil {
			logger.Error("[Orchestrator] capture failed", "extractor", name, "error", err)
			metrics.IncreaseExtractorRunsMetric(name, metrics.OutcomeFailure)
			sr.Error = err.Error()
			return sr
		}
		sr.Captured++
	}
	metrics.IncreaseExtractorRunsMetric(name, metrics.OutcomeSuccess)
	logger.Info("[Orchestrator] extractor finished", "extractor", name, "captured", sr.Captured)
	return sr
}

// TransformAndLoadAll transforms and loads every captured record that has
// not been processed yet.
func (o *Orchestrator) TransformAndLoadAll(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	o.touch(ctx)
	sum, err := o.loader.Replay(ctx, o.cfg.ReplayBatch)
	if err != nil {
		return nil, fmt.Errorf("transform and load: %w", err)
	}
	logger.Info("[Orchestrator] transform and load finished",
		"inserted", sum.Inserted, "duplicate", sum.Duplicate, "skipped", sum.Skipped, "failed", sum.Failed)
	return json.Marshal(sum)
}

func (o *Orchestrator) finalizeBatch(ctx context.Context, res ChainResult) {
	if res.Err != nil {
		logger.Warn("[Orchestrator] batch ended with failure", "chain_id", res.ChainID, "step", res.FailedStep, "error", res.Err)
	}
	o.finishUnit(ctx)
}

func (o *Orchestrator) touch(ctx context.Context) {
	if err := o.status.Touch(ctx); err != nil {
		logger.Warn("[Orchestrator] status refresh failed", "error", err)
	}
}

func (o *Orchestrator) finishUnit(ctx context.Context) {
	remaining, err := o.status.Finish(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn("[Orchestrator] status finish failed", "error", err)
		return
	}
	if remaining == 0 {
		logger.Info("[Orchestrator] all work finished, status complete")
	}
}
