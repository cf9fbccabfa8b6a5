// Package worker serialises frames into a single OCR on one goroutine and
// reports results to listeners.
package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/cardscan/internal/common"
	"github.com/Veraticus/cardscan/internal/detect"
	"github.com/Veraticus/cardscan/internal/frame"
	"github.com/Veraticus/cardscan/internal/model"
	"github.com/Veraticus/cardscan/internal/ocr"
)

// DefaultQueueSize is the number of frames that may wait for the worker.
const DefaultQueueSize = 8

// ErrClosed is returned when posting to a closed runner.
var ErrClosed = errors.New("worker closed")

// Scanner is the OCR capability the runner drives.
type Scanner interface {
	Scan(img image.Image) ocr.Result
	IsInitialized() bool
}

// Prediction is delivered to listeners once a job has been processed.
type Prediction struct {
	Image    image.Image
	Err      error
	Source   string
	Number   string
	Boxes    []model.DetectedBox
	Attempts int
	Duration time.Duration
	Found    bool
	// Expiry is set when the grid held at least one expiry cell.
	Expiry bool
}

// Listener receives job outcomes on the worker goroutine.
type Listener interface {
	// OnPrediction receives every processed job that did not fault twice,
	// including jobs whose frame could not be prepared (Err set).
	OnPrediction(p Prediction)
	// OnFatalError receives jobs whose scan faulted on both attempts.
	OnFatalError(p Prediction)
}

// Job is one frame to scan.
type Job struct {
	Image    image.Image
	Listener Listener
	Source   string
	// Raw frames are cropped around ROICenter and rotated upright by
	// Orientation before scanning.
	Raw         bool
	Orientation frame.Orientation
	ROICenter   float64
}

// Runner processes jobs one at a time in the order they were posted.
type Runner struct {
	scanner Scanner
	jobs    chan Job
	done    chan struct{}
	logger  *slog.Logger
	once    sync.Once
}

// New creates a runner with room for queueSize pending jobs.
func New(scanner Scanner, queueSize int, logger *slog.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Runner{
		scanner: scanner,
		jobs:    make(chan Job, queueSize),
		done:    make(chan struct{}),
		logger:  common.ComponentLogger(logger, "worker"),
	}
}

// Post queues job, waiting for room in the queue.
func (r *Runner) Post(ctx context.Context, job Job) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}

	select {
	case r.jobs <- job:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("post %s: %w", job.Source, ctx.Err())
	}
}

// TryPost queues job if there is room and reports whether it did. Live
// sources use it to drop frames while the worker is busy.
func (r *Runner) TryPost(job Job) bool {
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.jobs <- job:
		return true
	default:
		return false
	}
}

// WarmUp queues a scan of a blank card image so the engines are built before
// the first real frame. It does nothing when the engines are already built or
// work is pending.
func (r *Runner) WarmUp() bool {
	if r.scanner.IsInitialized() || r.Pending() > 0 {
		return false
	}
	return r.TryPost(Job{
		Image:  frame.Blank(detect.InputWidth, detect.InputHeight),
		Source: "warm-up",
	})
}

// Pending returns the number of queued jobs.
func (r *Runner) Pending() int {
	return len(r.jobs)
}

// Run processes jobs until ctx is cancelled or the runner is closed. After
// Close, jobs already queued are processed before Run returns nil.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-r.jobs:
			r.process(job)
		case <-r.done:
			for {
				select {
				case job := <-r.jobs:
					r.process(job)
				default:
					return nil
				}
			}
		}
	}
}

// Close stops accepting jobs.
func (r *Runner) Close() {
	r.once.Do(func() { close(r.done) })
}

func (r *Runner) process(job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("job failed", "source", job.Source, "panic", rec)
		}
	}()

	img := job.Image
	if job.Raw {
		prepared, err := frame.Prepare(job.Image, job.Orientation, job.ROICenter)
		if err != nil {
			r.logger.Warn("failed to prepare frame", "source", job.Source, "error", err)
			r.notify(job, Prediction{Source: job.Source, Image: job.Image, Err: err}, false)
			return
		}
		img = prepared
	}

	result := r.scanner.Scan(img)
	p := Prediction{
		Source:   job.Source,
		Image:    img,
		Number:   result.Number,
		Found:    result.Found,
		Boxes:    result.Boxes,
		Attempts: result.Attempts,
		Duration: result.Duration,
		Err:      result.Err,
		Expiry:   len(result.Expiry) > 0,
	}
	r.notify(job, p, errors.Is(result.Err, common.ErrUnrecoverable))
}

// notify calls the job's listener. A panicking listener is logged and does
// not stop the worker.
func (r *Runner) notify(job Job, p Prediction, fatal bool) {
	if job.Listener == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked", "source", job.Source, "panic", rec)
		}
	}()

	if fatal {
		job.Listener.OnFatalError(p)
		return
	}
	job.Listener.OnPrediction(p)
}

// Funcs adapts a pair of functions to Listener. Nil functions are skipped.
type Funcs struct {
	Prediction func(p Prediction)
	Fatal      func(p Prediction)
}

// OnPrediction calls f.Prediction.
func (f Funcs) OnPrediction(p Prediction) {
	if f.Prediction != nil {
		f.Prediction(p)
	}
}

// OnFatalError calls f.Fatal.
func (f Funcs) OnFatalError(p Prediction) {
	if f.Fatal != nil {
		f.Fatal(p)
	}
}
