// Package ocr reads card numbers from card images. It owns the grid detector
// and the digit classifier, builds them lazily, and rebuilds them once when an
// attempt faults.
package ocr

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Veraticus/cardscan/internal/common"
	"github.com/Veraticus/cardscan/internal/detect"
	"github.com/Veraticus/cardscan/internal/frame"
	"github.com/Veraticus/cardscan/internal/geometry"
	"github.com/Veraticus/cardscan/internal/inference"
	"github.com/Veraticus/cardscan/internal/lines"
	"github.com/Veraticus/cardscan/internal/model"
	"github.com/Veraticus/cardscan/internal/recognize"
	"github.com/Veraticus/cardscan/internal/render"
	"github.com/Veraticus/cardscan/internal/service"
)

// State is the lifecycle state of an OCR.
type State int32

// OCR states.
const (
	StateUninitialized State = iota
	StateReady
	StatePredicting
	StateUnrecoverable
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StatePredicting:
		return "predicting"
	case StateUnrecoverable:
		return "unrecoverable"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Result is the outcome of one Scan. Expiry lists the grid cells classified
// as an expiry date, whether or not a number was read.
type Result struct {
	// Err is set when both attempts faulted. A scan that simply found no
	// number has a nil Err.
	Err      error
	Number   string
	Boxes    []model.DetectedBox
	Expiry   []detect.Cell
	Attempts int
	Duration time.Duration
	Found    bool
}

// Option configures an OCR.
type Option func(*OCR)

// WithAssembler replaces the default line assembler.
func WithAssembler(a service.LineAssembler) Option {
	return func(o *OCR) { o.assembler = a }
}

// WithRenderer replaces the default number renderer.
func WithRenderer(r service.NumberRenderer) Option {
	return func(o *OCR) { o.renderer = r }
}

// WithThreads sets the thread hint passed to the engines.
func WithThreads(n int) Option {
	return func(o *OCR) {
		if n > 0 {
			o.threads = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *OCR) { o.logger = common.ComponentLogger(logger, "ocr") }
}

type engines struct {
	detector   *detect.Detector
	classifier *recognize.Classifier
}

// close releases both engines. A panicking backend is reported as an error so
// teardown during recovery cannot escape a scan.
func (e *engines) close() error {
	return errors.Join(
		common.Guard(e.detector.Close),
		common.Guard(e.classifier.Close),
	)
}

// OCR is the card-number reader. It is safe for concurrent use; calls are
// serialised.
type OCR struct {
	loader    service.ModelLoader
	factory   inference.Factory
	assembler service.LineAssembler
	renderer  service.NumberRenderer
	logger    *slog.Logger
	engines   *engines
	lastBoxes []model.DetectedBox
	threads   int

	mu            sync.Mutex
	state         atomic.Int32
	initialized   atomic.Bool
	unrecoverable atomic.Bool
}

// New creates an OCR that loads models with loader and builds backends with
// factory. No engine is built until the first scan.
func New(loader service.ModelLoader, factory inference.Factory, opts ...Option) *OCR {
	o := &OCR{
		loader:    loader,
		factory:   factory,
		assembler: lines.NewDefaultAssembler(),
		renderer:  render.NewRenderer(),
		threads:   inference.DefaultThreads,
		logger:    common.ComponentLogger(nil, "ocr"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Predict returns the card number in img, if any. It never panics and never
// returns an error; faults are reported through HadUnrecoverableFault.
func (o *OCR) Predict(img image.Image) (string, bool) {
	r := o.Scan(img)
	return r.Number, r.Found
}

// Scan runs the pipeline on img. A faulting attempt discards both engines and
// is retried once with fresh ones. When the retry faults too, the sticky
// unrecoverable flag is set and Result.Err wraps common.ErrUnrecoverable.
func (o *OCR) Scan(img image.Image) Result {
	if img == nil || img.Bounds().Empty() {
		return Result{Err: common.ErrEmptyImage}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	o.state.Store(int32(StatePredicting))

	var res Result
	attempts, err := common.WithRecovery(func(int) error {
		var runErr error
		res, runErr = o.attempt(img)
		return runErr
	}, func(err error) {
		if common.IsFault(err) {
			o.logger.Info("attempt failed, rebuilding engines", "error", err)
		} else {
			o.logger.Warn("attempt failed with unexpected error, rebuilding engines", "error", err)
		}
		o.lastBoxes = nil
		o.discardEngines()
	})

	if err != nil {
		o.lastBoxes = nil
		o.discardEngines()
		o.unrecoverable.Store(true)
		o.state.Store(int32(StateUnrecoverable))
		o.logger.Error("unrecoverable fault", "error", err, "attempts", attempts)
		return Result{
			Attempts: attempts,
			Duration: time.Since(start),
			Err:      fmt.Errorf("%w: %w", common.ErrUnrecoverable, err),
		}
	}

	o.lastBoxes = res.Boxes
	o.state.Store(int32(StateReady))
	o.logger.Debug("scan complete",
		"found", res.Found,
		"boxes", len(res.Boxes),
		"expiry_cells", len(res.Expiry),
		"attempts", attempts)

	res.Boxes = append([]model.DetectedBox(nil), res.Boxes...)
	res.Attempts = attempts
	res.Duration = time.Since(start)
	return res
}

// attempt runs the pipeline once: detect, assemble boxes, try horizontal
// lines and fall back to vertical lines.
func (o *OCR) attempt(img image.Image) (Result, error) {
	eng, err := o.ensureEngines()
	if err != nil {
		return Result{}, err
	}

	grid, err := eng.detector.Detect(img)
	if err != nil {
		return Result{}, err
	}
	boxes := detect.AssembleBoxes(grid, eng.detector.Layout(), geometry.SizeOf(img))
	res := Result{Expiry: grid.ExpiryCells()}

	horizontal := o.assembler.HorizontalLines(boxes)
	number, found, err := o.renderer.RenderNumber(eng.classifier, img, horizontal)
	if err != nil {
		return Result{}, err
	}
	res.Boxes = horizontal.Boxes()
	if found {
		res.Number, res.Found = number, true
		return res, nil
	}

	vertical := o.assembler.VerticalLines(boxes)
	number, found, err = o.renderer.RenderNumber(eng.classifier, img, vertical)
	if err != nil {
		return Result{}, err
	}
	res.Number, res.Found = number, found
	res.Boxes = append(res.Boxes, vertical.Boxes()...)
	return res, nil
}

func (o *OCR) ensureEngines() (*engines, error) {
	if o.engines != nil {
		return o.engines, nil
	}

	gridModel, err := o.loader.LoadGridModel()
	if err != nil {
		return nil, fmt.Errorf("%w: load grid model: %w", common.ErrEngineConstruction, err)
	}
	digitModel, err := o.loader.LoadDigitModel()
	if err != nil {
		return nil, fmt.Errorf("%w: load digit model: %w", common.ErrEngineConstruction, err)
	}

	gridBackend, err := o.factory(gridModel, detect.Spec(o.threads))
	if err != nil {
		return nil, fmt.Errorf("%w: grid engine: %w", common.ErrEngineConstruction, err)
	}
	digitBackend, err := o.factory(digitModel, recognize.Spec(o.threads))
	if err != nil {
		if cerr := gridBackend.Close(); cerr != nil {
			o.logger.Warn("failed to close grid engine", "error", cerr)
		}
		return nil, fmt.Errorf("%w: digit engine: %w", common.ErrEngineConstruction, err)
	}

	o.engines = &engines{
		detector:   detect.New(gridBackend, o.threads),
		classifier: recognize.New(digitBackend, o.threads),
	}
	o.initialized.Store(true)
	o.logger.Debug("engines built", "threads", o.threads)
	return o.engines, nil
}

func (o *OCR) discardEngines() {
	if o.engines == nil {
		return
	}
	if err := o.engines.close(); err != nil {
		o.logger.Warn("failed to close engines", "error", err)
	}
	o.engines = nil
	o.initialized.Store(false)
}

// LastDetectedBoxes returns the boxes examined by the most recent scan:
// horizontal line boxes followed by vertical line boxes when the vertical
// pass ran.
func (o *OCR) LastDetectedBoxes() []model.DetectedBox {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.DetectedBox(nil), o.lastBoxes...)
}

// HadUnrecoverableFault reports whether any scan ever failed twice in a row.
// Once set it stays set.
func (o *OCR) HadUnrecoverableFault() bool {
	return o.unrecoverable.Load()
}

// State returns the current lifecycle state.
func (o *OCR) State() State {
	return State(o.state.Load())
}

// IsInitialized reports whether both engines are currently built.
func (o *OCR) IsInitialized() bool {
	return o.initialized.Load()
}

// WarmUp builds the engines and runs one scan over a blank card-sized image.
func (o *OCR) WarmUp() error {
	if r := o.Scan(frame.Blank(detect.InputWidth, detect.InputHeight)); r.Err != nil {
		return fmt.Errorf("warm up: %w", r.Err)
	}
	return nil
}

// Close releases the engines. A later scan rebuilds them.
func (o *OCR) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.engines == nil {
		return nil
	}
	err := o.engines.close()
	o.engines = nil
	o.initialized.Store(false)
	if o.state.Load() == int32(StateReady) {
		o.state.Store(int32(StateUninitialized))
	}
	return err
}
