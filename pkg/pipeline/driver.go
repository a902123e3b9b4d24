// Package pipeline drives a resumable labelling run: it reads the input
// dataset, corrects every structure after the last checkpoint in order,
// appends it to the output dataset and then advances the checkpoint.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/dftd-labeler/pkg/appender"
	"github.com/psantana5/dftd-labeler/pkg/extxyz"
	"github.com/psantana5/dftd-labeler/pkg/jobid"
	"github.com/psantana5/dftd-labeler/pkg/logging"
	"github.com/psantana5/dftd-labeler/pkg/models"
	"github.com/psantana5/dftd-labeler/pkg/progress"
	"github.com/psantana5/dftd-labeler/pkg/tracing"
)

// ErrInterrupted is returned when the context is cancelled between structures
var ErrInterrupted = errors.New("run interrupted")

// Corrector adds the dispersion correction to one structure
type Corrector interface {
	Method() string
	Scheme() models.Scheme
	Correct(ctx context.Context, s *models.Structure) (*models.Structure, error)
}

// Options configures a Driver. Logger, Tracer and Metrics are optional.
type Options struct {
	Store     progress.Store
	Corrector Corrector
	Logger    *logging.Logger
	Tracer    *tracing.Provider
	Metrics   *Metrics
	RunID     string
}

// Driver runs labelling jobs one at a time
type Driver struct {
	store     progress.Store
	corrector Corrector
	logger    *logging.Logger
	tracer    *tracing.Provider
	metrics   *Metrics
	runID     string
	now       func() time.Time

	mu     sync.RWMutex
	status models.JobResult
}

// New creates a driver
func New(opts Options) *Driver {
	d := &Driver{
		store:     opts.Store,
		corrector: opts.Corrector,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
		metrics:   opts.Metrics,
		runID:     opts.RunID,
		now:       time.Now,
	}
	if d.logger == nil {
		d.logger = logging.Nop()
	}
	if d.tracer == nil {
		d.tracer = tracing.Noop()
	}
	if d.metrics == nil {
		d.metrics = NewMetrics()
	}
	if d.runID == "" {
		d.runID = uuid.New().String()
	}
	d.status = models.JobResult{RunID: d.runID, State: models.StateInit, LastIndex: -1}
	return d
}

// Status returns a snapshot of the current or last run
func (d *Driver) Status() models.JobResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Driver) update(fn func(r *models.JobResult)) {
	d.mu.Lock()
	fn(&d.status)
	d.mu.Unlock()
}

// transition moves the run to state, rejecting moves the state machine forbids
func (d *Driver) transition(logger *logging.Logger, to models.PipelineState) error {
	d.mu.Lock()
	from := d.status.State
	if err := models.ValidateTransition(from, to); err != nil {
		d.mu.Unlock()
		return err
	}
	d.status.State = to
	if models.IsTerminalState(to) {
		t := d.now()
		d.status.CompletedAt = &t
	}
	d.mu.Unlock()

	logger.Info("Pipeline state changed", map[string]interface{}{"from": from, "to": to})
	return nil
}

// Run processes job from its last checkpoint to the end of the input dataset.
// The returned result is always non-nil and reflects the final state.
func (d *Driver) Run(ctx context.Context, job models.Job) (*models.JobResult, error) {
	if err := job.Validate(); err != nil {
		return d.reject(job, err)
	}
	if d.corrector.Method() != job.Method || d.corrector.Scheme() != job.Scheme {
		return d.reject(job, fmt.Errorf("%w: corrector is configured for %s/%s, job asks for %s/%s",
			models.ErrConfig, d.corrector.Method(), d.corrector.Scheme(), job.Method, job.Scheme))
	}

	job.ID = jobid.Identity(job.InputPath, job.OutputPath)
	logger := d.logger.WithFields(map[string]interface{}{"job_id": job.ID, "run_id": d.runID})
	d.update(func(r *models.JobResult) {
		*r = models.JobResult{
			JobID:     job.ID,
			RunID:     d.runID,
			State:     models.StateInit,
			LastIndex: -1,
			StartedAt: d.now(),
		}
	})

	ctx, span := d.tracer.StartRun(ctx, job, d.runID)
	err := d.run(ctx, logger, job)
	tracing.End(span, err)
	res := d.Status()
	return &res, err
}

// reject reports a job refused before any I/O
func (d *Driver) reject(job models.Job, err error) (*models.JobResult, error) {
	now := d.now()
	res := models.JobResult{
		RunID:       d.runID,
		State:       models.StateFailed,
		LastIndex:   -1,
		Error:       err.Error(),
		StartedAt:   now,
		CompletedAt: &now,
	}
	d.update(func(r *models.JobResult) { *r = res })
	return &res, err
}

func (d *Driver) fail(logger *logging.Logger, err error) error {
	d.update(func(r *models.JobResult) { r.Error = err.Error() })
	if terr := d.transition(logger, models.StateFailed); terr != nil {
		logger.Error("Invalid state transition", map[string]interface{}{"error": terr.Error()})
	}
	logger.Error("Labelling failed", map[string]interface{}{"error": err.Error()})
	return err
}

func (d *Driver) run(ctx context.Context, logger *logging.Logger, job models.Job) error {
	logger.Info("Starting labelling job", map[string]interface{}{
		"input":      job.InputPath,
		"output":     job.OutputPath,
		"method":     job.Method,
		"dispersion": job.Scheme.String(),
	})

	rec, err := d.store.Load(ctx, job.ID)
	if err != nil {
		return d.fail(logger, fmt.Errorf("failed to load progress: %w", err))
	}
	if rec != nil && (rec.InputPath != job.InputPath || rec.OutputPath != job.OutputPath) {
		return d.fail(logger, fmt.Errorf("%w: record for %s names input %q and output %q",
			progress.ErrCorrupt, job.ID, rec.InputPath, rec.OutputPath))
	}
	start := progress.NextIndex(rec)
	d.update(func(r *models.JobResult) {
		r.StartIndex = start
		r.LastIndex = start - 1
	})
	d.metrics.lastIndex.Set(float64(start - 1))
	if rec != nil {
		logger.Info("Resuming from progress record", map[string]interface{}{"last_index": rec.LastIndex})
	}

	if err := d.transition(logger, models.StateLoadingInput); err != nil {
		return err
	}
	frames, err := extxyz.ReadFile(job.InputPath)
	if err != nil {
		return d.fail(logger, err)
	}
	total := len(frames)
	d.update(func(r *models.JobResult) { r.Total = total })
	d.metrics.datasetSize.Set(float64(total))

	if start >= total {
		logger.Info("Nothing to do, every structure is already labelled", map[string]interface{}{"structures": total})
		return d.transition(logger, models.StateDone)
	}

	if err := d.transition(logger, models.StateProcessing); err != nil {
		return err
	}
	out := appender.New(job.OutputPath, job.Method, job.Scheme)

	for i := start; i < total; i++ {
		if ctx.Err() != nil {
			return d.interrupt(logger, ctx.Err())
		}
		// Release the frame once it has been handled.
		s := frames[i]
		frames[i] = nil

		if err := d.processOne(ctx, logger, job, out, i, s); err != nil {
			if ctx.Err() != nil {
				return d.interrupt(logger, ctx.Err())
			}
			return d.fail(logger, err)
		}
	}

	logger.Info("Labelling complete", map[string]interface{}{"structures": total, "processed": total - start})
	return d.transition(logger, models.StateDone)
}

func (d *Driver) interrupt(logger *logging.Logger, cause error) error {
	err := fmt.Errorf("%w: %w", ErrInterrupted, cause)
	d.update(func(r *models.JobResult) { r.Error = err.Error() })
	if terr := d.transition(logger, models.StateInterrupted); terr != nil {
		return terr
	}
	st := d.Status()
	logger.Warn("Labelling interrupted, rerun to resume", map[string]interface{}{"last_index": st.LastIndex})
	return err
}

// processOne corrects, appends and checkpoints one structure.
// The checkpoint only moves after the frame is durably appended.
func (d *Driver) processOne(ctx context.Context, logger *logging.Logger, job models.Job, out *appender.Appender, index int, s *models.Structure) error {
	ctx, span := d.tracer.StartStructure(ctx, index, s)
	err := d.processStages(ctx, logger, job, out, index, s)
	tracing.End(span, err)
	return err
}

func (d *Driver) processStages(ctx context.Context, logger *logging.Logger, job models.Job, out *appender.Appender, index int, s *models.Structure) error {
	logger.Info("Processing structure", map[string]interface{}{"index": index})

	tracing.Stage(ctx, StageCorrect)
	started := time.Now()
	corrected, err := d.corrector.Correct(ctx, s)
	d.metrics.duration.Observe(time.Since(started).Seconds())
	if err != nil {
		d.metrics.failed.WithLabelValues(StageCorrect).Inc()
		return fmt.Errorf("structure %d: %w", index, err)
	}

	tracing.Stage(ctx, StageAppend)
	if err := out.Append(corrected); err != nil {
		d.metrics.failed.WithLabelValues(StageAppend).Inc()
		return fmt.Errorf("structure %d: append to %s: %w", index, out.Path(), err)
	}

	rec := progress.Record{
		JobID:      job.ID,
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
		LastIndex:  index,
		RunID:      d.runID,
		UpdatedAt:  d.now(),
	}
	tracing.Stage(ctx, StageProgress)
	// The frame is already appended; use a context that survives an
	// interrupt so the checkpoint matches the output.
	if err := d.store.Save(context.WithoutCancel(ctx), rec); err != nil {
		d.metrics.failed.WithLabelValues(StageProgress).Inc()
		return fmt.Errorf("structure %d: save progress: %w", index, err)
	}

	d.metrics.processed.Inc()
	d.metrics.lastIndex.Set(float64(index))
	d.update(func(r *models.JobResult) {
		r.LastIndex = index
		r.Processed++
	})
	return nil
}
