// Package storage provides the scan history persistence layer.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/cardscan/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidScan    = errors.New("invalid scan record")
	ErrUnmaskedNumber = errors.New("card number is not masked")
	ErrScanNotFound   = errors.New("scan not found")
)

// maxVisibleDigits is how many digits of a card number may be stored.
const maxVisibleDigits = 4

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateScanRecord validates a scan record before it is stored.
func validateScanRecord(rec *model.ScanRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: scan record", ErrNilParameter)
	}
	if strings.TrimSpace(rec.Source) == "" {
		return fmt.Errorf("%w: missing source", ErrInvalidScan)
	}
	if rec.ScannedAt.IsZero() {
		return fmt.Errorf("%w: missing scan time", ErrInvalidScan)
	}
	if rec.Attempts < 0 || rec.Duration < 0 {
		return fmt.Errorf("%w: negative attempts or duration", ErrInvalidScan)
	}

	// Never persist more of the number than its last four digits
	if n := countDigits(rec.MaskedNumber); n > maxVisibleDigits {
		return fmt.Errorf("%w: %d digits visible", ErrUnmaskedNumber, n)
	}
	if n := countDigits(rec.Last4); n != len(rec.Last4) || n > maxVisibleDigits {
		return fmt.Errorf("%w: last4 must be at most %d digits", ErrInvalidScan, maxVisibleDigits)
	}
	return nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
