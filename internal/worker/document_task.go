package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ignite/event-etl/internal/document"
	"github.com/ignite/event-etl/internal/metrics"
	"github.com/ignite/event-etl/internal/pkg/logger"
	"github.com/ignite/event-etl/internal/service/ingest"
)

// DocumentPayload is the payload of a TaskDocument task.
type DocumentPayload struct {
	Path     string `json:"filepath"`
	FileType string `json:"file_type"`
}

// DispatchDocument marks the pipeline running and enqueues one document
// task for the file at path.
func (o *Orchestrator) DispatchDocument(ctx context.Context, path, fileType string) (string, error) {
	if err := o.status.Begin(ctx); err != nil {
		logger.Warn("[Orchestrator] status unavailable, dispatching anyway", "error", err)
	}
	t, err := NewTask(TaskDocument, DocumentPayload{Path: path, FileType: fileType})
	if err == nil {
		err = o.queue.Enqueue(ctx, t)
	}
	if err != nil {
		o.finishUnit(ctx)
		return "", fmt.Errorf("dispatch document %s: %w", filepath.Base(path), err)
	}
	logger.Info("[Orchestrator] document dispatched", "task_id", t.ID, "file", filepath.Base(path), "type", fileType)
	return t.ID, nil
}

// ProcessDocument parses one uploaded file and loads its records under a
// hard timeout. A failed attempt is retried after a fixed delay with the
// file kept in place; once the task succeeds or gives up the file is
// deleted.
func (o *Orchestrator) ProcessDocument(ctx context.Context, task Task) error {
	var p DocumentPayload
	if err := task.Decode(&p); err != nil {
		o.finishUnit(ctx)
		return Fatal(err)
	}
	if p.Path == "" || p.FileType == "" {
		if p.Path != "" {
			removeFile(p.Path)
		}
		o.finishUnit(ctx)
		return Fatal(errors.New("filepath and file_type are required"))
	}
	name := filepath.Base(p.Path)
	if _, err := os.Stat(p.Path); err != nil {
		o.finishUnit(ctx)
		return Fatal(fmt.Errorf("file not found: %s: %w", name, err))
	}

	logger.Info("[DocumentTask] processing", "task_id", task.ID, "file", name, "type", p.FileType, "attempt", task.Attempt)
	o.touch(ctx)

	sum, err := o.loadWithTimeout(ctx, p)
	switch {
	case err == nil:
		logger.Info("[DocumentTask] complete", "file", name,
			"inserted", sum.Inserted, "duplicate", sum.Duplicate, "skipped", sum.Skipped, "failed", sum.Failed)
	case errors.Is(err, document.ErrUnsupportedType):
		logger.Warn("[DocumentTask] skipping unsupported document", "file", name, "type", p.FileType)
		err = nil
	case !IsFatal(err) && task.Attempt < o.cfg.DocumentRetries:
		rerr := o.scheduleRetry(ctx, task)
		if rerr == nil {
			logger.Warn("[DocumentTask] attempt failed, retry scheduled",
				"file", name, "attempt", task.Attempt, "retry_in", o.cfg.RetryDelay, "error", err)
			return fmt.Errorf("process %s (attempt %d): %w", name, task.Attempt, err)
		}
		logger.Error("[DocumentTask] could not schedule retry", "file", name, "error", rerr)
	}

	removeFile(p.Path)
	o.finishUnit(ctx)
	if err != nil {
		return fmt.Errorf("process %s: %w", name, err)
	}
	return nil
}

func (o *Orchestrator) scheduleRetry(ctx context.Context, task Task) error {
	if err := o.queue.EnqueueAt(ctx, task.Retry(), o.now().Add(o.cfg.RetryDelay)); err != nil {
		return err
	}
	metrics.IncreaseTaskRetriesMetric(task.Type)
	return nil
}

type loadOutcome struct {
	sum ingest.Summary
	err error
}

// loadWithTimeout runs the parse and load on its own goroutine and stops
// waiting when the deadline passes, so a parser that ignores its context
// still cannot hold the worker.
func (o *Orchestrator) loadWithTimeout(ctx context.Context, p DocumentPayload) (ingest.Summary, error) {
	tctx, cancel := context.WithTimeout(ctx, o.cfg.DocumentTimeout)
	defer cancel()

	done := make(chan loadOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- loadOutcome{err: fmt.Errorf("document processing panicked: %v", r)}
			}
		}()
		sum, err := o.loadDocument(tctx, p)
		done <- loadOutcome{sum: sum, err: err}
	}()

	select {
	case out := <-done:
		return out.sum, out.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return ingest.Summary{}, ctx.Err()
		}
		return ingest.Summary{}, fmt.Errorf("processing timeout (%s)", o.cfg.DocumentTimeout)
	}
}

func (o *Orchestrator) loadDocument(ctx context.Context, p DocumentPayload) (ingest.Summary, error) {
	var sum ingest.Summary
	records, err := o.parse(ctx, p.Path, p.FileType)
	if err != nil {
		return sum, err
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := o.loader.Load(ctx, rec)
		if err != nil {
			return sum, err
		}
		sum.Add(res)
	}
	return sum, nil
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("[DocumentTask] could not delete file", "file", filepath.Base(path), "error", err)
		return
	}
	logger.Debug("[DocumentTask] cleaned up", "file", filepath.Base(path))
}
