package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/cardscan/internal/cli"
	"github.com/Veraticus/cardscan/internal/common"
	"github.com/Veraticus/cardscan/internal/config"
	"github.com/Veraticus/cardscan/internal/frame"
	"github.com/Veraticus/cardscan/internal/inference"
	"github.com/Veraticus/cardscan/internal/inference/onnx"
	"github.com/Veraticus/cardscan/internal/model"
	"github.com/Veraticus/cardscan/internal/ocr"
	"github.com/Veraticus/cardscan/internal/service"
	"github.com/Veraticus/cardscan/internal/worker"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Read card numbers from images",
		Long: `Scan one or more card images and print the card number found in each.

Directories are searched recursively for png, jpeg, gif, bmp, tiff and webp
files. Images taken straight from a camera sensor can be cropped to the card
area and rotated upright with --orientation and --roi-center.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScan,
	}

	// Flags
	cmd.Flags().Int("orientation", 0, "sensor orientation of raw frames in degrees (0, 90, 180, 270)")
	cmd.Flags().Float64("roi-center", frame.DefaultROICenter, "vertical center of the card region in raw frames, as a ratio")
	cmd.Flags().Bool("reveal", false, "print full card numbers instead of masked ones")
	cmd.Flags().Bool("no-save", false, "do not record scans in the history database")
	cmd.Flags().Bool("warm-up", false, "build the recognition engines before the first image")

	return cmd
}

// scanOptions controls a batch of scans.
type scanOptions struct {
	orientation frame.Orientation
	roiCenter   float64
	raw         bool
	reveal      bool
	warmUp      bool
	threads     int
}

// scanDeps are the collaborators of a batch of scans. store is nil when
// results are not recorded.
type scanDeps struct {
	loader      service.ModelLoader
	factory     inference.Factory
	store       service.ScanStore
	out         io.Writer
	progressOut io.Writer
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return common.NewUserError("invalid configuration", err)
	}
	if err := cfg.RequireModels(); err != nil {
		return common.NewUserError("set models.grid_path and models.digit_path in your config", err)
	}

	degrees, _ := cmd.Flags().GetInt("orientation")
	orientation, err := frame.ParseOrientation(degrees)
	if err != nil {
		return err
	}
	roiCenter, _ := cmd.Flags().GetFloat64("roi-center")
	reveal, _ := cmd.Flags().GetBool("reveal")
	noSave, _ := cmd.Flags().GetBool("no-save")
	warmUp, _ := cmd.Flags().GetBool("warm-up")

	opts := scanOptions{
		orientation: orientation,
		roiCenter:   roiCenter,
		raw:         cmd.Flags().Changed("orientation") || cmd.Flags().Changed("roi-center"),
		reveal:      reveal,
		warmUp:      warmUp,
		threads:     cfg.Models.Threads,
	}

	onnxRuntime := onnx.Runtime{
		LibraryPath: cfg.Runtime.LibraryPath,
		InputName:   cfg.Runtime.InputName,
		OutputName:  cfg.Runtime.OutputName,
	}
	deps := scanDeps{
		loader:      inference.FileLoader{GridPath: cfg.Models.GridPath, DigitPath: cfg.Models.DigitPath},
		factory:     onnxRuntime.Factory(),
		out:         cmd.OutOrStdout(),
		progressOut: cmd.ErrOrStderr(),
	}

	if !noSave {
		store, cleanup, err := getDatabase(cmd.Context(), cfg.Database.Path)
		if err != nil {
			return err
		}
		defer cleanup()
		deps.store = store
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), !noSave)
	defer interrupts.Stop()

	summary, err := scanImages(ctx, deps, opts, args)
	if err != nil {
		if interrupts.WasInterrupted() && errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if summary.Total > 1 {
		if _, err := fmt.Fprintln(deps.out, cli.RenderSummary(summary)); err != nil {
			slog.Warn("Failed to write summary", "error", err)
		}
	}
	return nil
}

// scanOutcome is one finished image. number is only held in memory.
type scanOutcome struct {
	number string
	record model.ScanRecord
}

// scanImages scans every image under paths through a worker runner and
// reports each outcome as it arrives. Failures of individual images are
// reported, not returned.
func scanImages(ctx context.Context, deps scanDeps, opts scanOptions, paths []string) (service.ScanSummary, error) {
	start := time.Now()

	files, err := collectImages(paths)
	if err != nil {
		return service.ScanSummary{}, err
	}
	if len(files) == 0 {
		return service.ScanSummary{}, common.NewUserError("no images found", os.ErrNotExist)
	}

	logger := common.ComponentLogger(nil, "scan")
	reader := ocr.New(deps.loader, deps.factory, ocr.WithThreads(opts.threads), ocr.WithLogger(slog.Default()))
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("Failed to close recognition engines", "error", err)
		}
	}()

	runner := worker.New(reader, worker.DefaultQueueSize, slog.Default())
	runErr := make(chan error, 1)
	go func() { runErr <- runner.Run(ctx) }()

	if opts.warmUp && !runner.WarmUp() {
		logger.Debug("Warm-up skipped")
	}

	var progress *cli.Progress
	if len(files) > 1 {
		progress = cli.NewProgress(deps.progressOut, len(files), "Scanning cards...")
	}

	outcomes := make(chan scanOutcome, len(files))
	var (
		records []model.ScanRecord
		wg      sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for o := range outcomes {
			records = append(records, report(ctx, deps, opts, o))
			if progress != nil {
				progress.Increment()
			}
		}
	}()

	listener := worker.Funcs{
		Prediction: func(p worker.Prediction) { outcomes <- outcomeOf(p) },
		Fatal: func(p worker.Prediction) {
			common.LogError(p.Err, "Recognition failed on both attempts", common.Fields{"source": p.Source, "attempts": p.Attempts})
			outcomes <- outcomeOf(p)
		},
	}

	var postErr error
	for _, path := range files {
		if postErr = ctx.Err(); postErr != nil {
			break
		}
		img, err := decodeImage(path)
		if err != nil {
			logger.Warn("Skipping image", "path", path, "error", err)
			outcomes <- outcomeOf(worker.Prediction{Source: path, Err: err})
			continue
		}

		job := worker.Job{
			Image:       img,
			Listener:    listener,
			Source:      path,
			Raw:         opts.raw,
			Orientation: opts.orientation,
			ROICenter:   opts.roiCenter,
		}
		if postErr = runner.Post(ctx, job); postErr != nil {
			break
		}
	}

	runner.Close()
	if err := <-runErr; err != nil && postErr == nil {
		postErr = err
	}
	close(outcomes)
	wg.Wait()

	if progress != nil && postErr == nil {
		progress.Finish()
	}

	summary := cli.Summarize(records, time.Since(start))
	common.LogInfo("Scan batch finished", common.Fields{
		"total":         summary.Total,
		"found":         summary.Found,
		"failed":        summary.Failed,
		"unrecoverable": summary.Unrecoverable,
		"duration":      summary.Duration,
	})
	if postErr != nil {
		return summary, fmt.Errorf("scan stopped after %d of %d images: %w", len(records), len(files), postErr)
	}
	return summary, nil
}

func outcomeOf(p worker.Prediction) scanOutcome {
	rec := model.NewScanRecord(p.Source, p.Number, p.Found, p.Boxes)
	rec.Attempts = p.Attempts
	rec.Duration = p.Duration
	rec.HasExpiry = p.Expiry
	if p.Err != nil {
		rec.Error = p.Err.Error()
		rec.Unrecoverable = errors.Is(p.Err, common.ErrUnrecoverable)
	}
	return scanOutcome{number: p.Number, record: rec}
}

// report prints o and records it when a store is configured.
func report(ctx context.Context, deps scanDeps, opts scanOptions, o scanOutcome) model.ScanRecord {
	rec := o.record
	if deps.store != nil {
		if err := deps.store.SaveScan(context.WithoutCancel(ctx), &rec); err != nil {
			slog.Warn("Failed to record scan", "source", rec.Source, "error", err)
		}
	}
	if _, err := fmt.Fprintln(deps.out, cli.FormatScan(rec, o.number, opts.reveal)); err != nil {
		slog.Warn("Failed to write scan result", "error", err)
	}
	return rec
}
