package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/cardscan/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name    string
		str     string
		wantErr bool
	}{
		{name: "valid string", str: "test"},
		{name: "empty string", str: "", wantErr: true},
		{name: "whitespace only", str: " \t\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, "param")
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrEmptyString) {
				t.Errorf("validateString() error = %v, want ErrEmptyString", err)
			}
		})
	}
}

func TestValidateScanRecord(t *testing.T) {
	valid := func() *model.ScanRecord {
		rec := model.NewScanRecord("card.png", "4242424242424242", true, nil)
		return &rec
	}

	tests := []struct {
		wantErr error
		modify  func(*model.ScanRecord) *model.ScanRecord
		name    string
	}{
		{
			name:   "valid found scan",
			modify: func(r *model.ScanRecord) *model.ScanRecord { return r },
		},
		{
			name: "valid empty scan",
			modify: func(_ *model.ScanRecord) *model.ScanRecord {
				rec := model.NewScanRecord("card.png", "", false, nil)
				return &rec
			},
		},
		{
			name:    "nil record",
			modify:  func(_ *model.ScanRecord) *model.ScanRecord { return nil },
			wantErr: ErrNilParameter,
		},
		{
			name: "missing source",
			modify: func(r *model.ScanRecord) *model.ScanRecord {
				r.Source = " "
				return r
			},
			wantErr: ErrInvalidScan,
		},
		{
			name: "missing time",
			modify: func(r *model.ScanRecord) *model.ScanRecord {
				r.ScannedAt = time.Time{}
				return r
			},
			wantErr: ErrInvalidScan,
		},
		{
			name: "negative attempts",
			modify: func(r *model.ScanRecord) *model.ScanRecord {
				r.Attempts = -1
				return r
			},
			wantErr: ErrInvalidScan,
		},
		{
			name: "full number",
			modify: func(r *model.ScanRecord) *model.ScanRecord {
				r.MaskedNumber = "4242 4242 4242 4242"
				return r
			},
			wantErr: ErrUnmaskedNumber,
		},
		{
			name: "last4 too long",
			modify: func(r *model.ScanRecord) *model.ScanRecord {
				r.Last4 = "42424"
				return r
			},
			wantErr: ErrInvalidScan,
		},
		{
			name: "last4 not digits",
			modify: func(r *model.ScanRecord) *model.ScanRecord {
				r.Last4 = "42a2"
				return r
			},
			wantErr: ErrInvalidScan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateScanRecord(tt.modify(valid()))
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("validateScanRecord() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateScanRecord() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
