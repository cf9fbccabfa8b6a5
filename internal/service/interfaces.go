// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"image"
	"time"

	"github.com/Veraticus/cardscan/internal/geometry"
	"github.com/Veraticus/cardscan/internal/model"
)

// ModelLoader supplies the serialized neural models.
type ModelLoader interface {
	LoadGridModel() ([]byte, error)
	LoadDigitModel() ([]byte, error)
}

// LineAssembler groups detected boxes into candidate reading lines.
type LineAssembler interface {
	HorizontalLines(boxes []model.DetectedBox) model.Lines
	VerticalLines(boxes []model.DetectedBox) model.Lines
}

// DigitClassifier classifies the characters inside one box of an image.
type DigitClassifier interface {
	Classify(img image.Image, rect geometry.Rectangle) (model.CharacterSlots, error)
}

// NumberRenderer turns candidate lines into a card number using classifier.
// found is false when no line yields a number; that is not an error.
type NumberRenderer interface {
	RenderNumber(classifier DigitClassifier, img image.Image, lines model.Lines) (number string, found bool, err error)
}

// ScanFilter defines filtering options for scan history queries.
type ScanFilter struct {
	Since     *time.Time
	Limit     int
	FoundOnly bool
}

// ScanStore defines the contract for scan history persistence.
type ScanStore interface {
	SaveScan(ctx context.Context, rec *model.ScanRecord) error
	GetScan(ctx context.Context, id int64) (*model.ScanRecord, error)
	ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRecord, error)
	DeleteScansBefore(ctx context.Context, before time.Time) (int64, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// ScanSummary aggregates the outcome of a batch of scans.
type ScanSummary struct {
	Total         int
	Found         int
	Failed        int
	Unrecoverable int
	Duration      time.Duration
}
