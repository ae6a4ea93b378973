package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Worker processes a single document job.
type Worker struct {
	conv *Converter
	log  *slog.Logger
}

func NewWorker(conv *Converter, log *slog.Logger) *Worker {
	return &Worker{conv: conv, log: log}
}

// Process converts the job's document and records the outcome on the job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename, "mode", string(job.Mode))

	ctx, ok := job.begin(ctx)
	if !ok {
		log.Info("job cancelled before start")
		return
	}
	defer job.release()

	res, err := w.conv.Convert(ctx, Request{
		Filename: job.Filename,
		Data:     job.FileData(),
		Title:    job.Title,
		Mode:     job.Mode,
	}, job.Progress)

	switch {
	case err != nil && errors.Is(err, context.Canceled) && res != nil && res.Tree.Count() > 0:
		w.finish(log, job, StatusCancelled, res)
	case err != nil && errors.Is(err, context.Canceled):
		log.Info("job cancelled")
		job.Fail(StatusCancelled, err)
	case err != nil:
		log.Error("conversion failed", "error", err)
		job.Fail(StatusFailed, err)
	case len(res.Warnings) > 0:
		w.finish(log, job, StatusPartial, res)
	default:
		w.finish(log, job, StatusCompleted, res)
	}
}

func (w *Worker) finish(log *slog.Logger, job *Job, status JobStatus, res *Result) {
	out, err := res.XML()
	if err != nil {
		log.Error("serialize failed", "error", err)
		job.Fail(StatusFailed, fmt.Errorf("serialize: %w", err))
		return
	}
	job.Complete(status, res, out)
	log.Info("job finished",
		"status", string(status),
		"strategy", string(res.Strategy),
		"sections", res.Tree.Count(),
		"warnings", len(res.Warnings),
	)
}
